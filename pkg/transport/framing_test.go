package transport

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewFrameWriter(&buf)
	reader := NewFrameReader(&buf)

	payload := []byte{0xA1, 0x01, 0x2A}
	if err := writer.WriteFrame(payload); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	if buf.Len() != FrameSize(len(payload)) {
		t.Errorf("frame size = %d, want %d", buf.Len(), FrameSize(len(payload)))
	}

	got, err := reader.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("payload = %x, want %x", got, payload)
	}
}

func TestFrameMultipleMessages(t *testing.T) {
	var buf bytes.Buffer
	framer := NewFramer(&buf)

	messages := [][]byte{
		[]byte("first"),
		[]byte("second"),
		[]byte("third"),
	}
	for _, msg := range messages {
		if err := framer.WriteFrame(msg); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	for i, want := range messages {
		got, err := framer.ReadFrame()
		if err != nil {
			t.Fatalf("ReadFrame %d failed: %v", i, err)
		}
		if !bytes.Equal(got, want) {
			t.Errorf("message %d = %q, want %q", i, got, want)
		}
	}
}

func TestWriteFrameEmpty(t *testing.T) {
	writer := NewFrameWriter(&bytes.Buffer{})
	if err := writer.WriteFrame(nil); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("error = %v, want ErrMessageEmpty", err)
	}
}

func TestWriteFrameTooLarge(t *testing.T) {
	writer := NewFrameWriterWithMaxSize(&bytes.Buffer{}, 8)
	if err := writer.WriteFrame(make([]byte, 9)); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameTooLarge(t *testing.T) {
	var buf bytes.Buffer
	writer := NewFrameWriter(&buf)
	if err := writer.WriteFrame(make([]byte, 64)); err != nil {
		t.Fatal(err)
	}

	reader := NewFrameReaderWithMaxSize(&buf, 8)
	if _, err := reader.ReadFrame(); !errors.Is(err, ErrMessageTooLarge) {
		t.Errorf("error = %v, want ErrMessageTooLarge", err)
	}
}

func TestReadFrameTruncated(t *testing.T) {
	var buf bytes.Buffer
	writer := NewFrameWriter(&buf)
	if err := writer.WriteFrame([]byte("truncate me")); err != nil {
		t.Fatal(err)
	}

	// Drop the last byte of the payload
	data := buf.Bytes()[:buf.Len()-1]
	reader := NewFrameReader(bytes.NewReader(data))
	if _, err := reader.ReadFrame(); !errors.Is(err, ErrFrameTruncated) {
		t.Errorf("error = %v, want ErrFrameTruncated", err)
	}
}

func TestReadFrameEOF(t *testing.T) {
	reader := NewFrameReader(bytes.NewReader(nil))
	if _, err := reader.ReadFrame(); err != io.EOF {
		t.Errorf("error = %v, want io.EOF", err)
	}
}

func TestReadFrameZeroLength(t *testing.T) {
	reader := NewFrameReader(bytes.NewReader([]byte{0, 0, 0, 0}))
	if _, err := reader.ReadFrame(); !errors.Is(err, ErrMessageEmpty) {
		t.Errorf("error = %v, want ErrMessageEmpty", err)
	}
}
