package wire

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder mode for officina messages.
// Configured for deterministic encoding with integer keys.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for officina messages.
var decMode cbor.DecMode

func init() {
	var err error

	// Configure encoder for deterministic output
	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnixMicro,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Configure decoder to be lenient for forward compatibility
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// Marshal encodes a value to CBOR bytes.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR bytes into a value.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// NewEncoder creates a new CBOR encoder that writes to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return encMode.NewEncoder(w)
}

// NewDecoder creates a new CBOR decoder that reads from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return decMode.NewDecoder(r)
}

// EncodeRequest encodes a request message to CBOR bytes.
func EncodeRequest(req *Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return Marshal(req)
}

// DecodeRequest decodes CBOR bytes into a request message.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("failed to decode request: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// EncodeResponse encodes a response message to CBOR bytes.
func EncodeResponse(resp *Response) ([]byte, error) {
	return Marshal(resp)
}

// DecodeResponse decodes CBOR bytes into a response message.
func DecodeResponse(data []byte) (*Response, error) {
	var resp Response
	if err := Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &resp, nil
}

// EncodeNotification encodes a notification message to CBOR bytes.
// Notifications have messageId=0 which is handled automatically.
func EncodeNotification(notif *Notification) ([]byte, error) {
	wireMsg := struct {
		MessageID      uint32 `cbor:"1,keyasint"`
		SubscriptionID uint32 `cbor:"2,keyasint"`
		MachineID      uint8  `cbor:"3,keyasint"`
		FeatureID      uint8  `cbor:"4,keyasint"`
		AttributeID    uint16 `cbor:"5,keyasint"`
		Value          any    `cbor:"6,keyasint"`
		Timestamp      int64  `cbor:"7,keyasint"`
	}{
		MessageID:      NotificationMessageID,
		SubscriptionID: notif.SubscriptionID,
		MachineID:      notif.MachineID,
		FeatureID:      notif.FeatureID,
		AttributeID:    notif.AttributeID,
		Value:          notif.Value,
		Timestamp:      notif.Timestamp.UnixMicro(),
	}
	return Marshal(wireMsg)
}

// DecodeNotification decodes CBOR bytes into a notification message.
func DecodeNotification(data []byte) (*Notification, error) {
	var wireMsg struct {
		MessageID      uint32 `cbor:"1,keyasint"`
		SubscriptionID uint32 `cbor:"2,keyasint"`
		MachineID      uint8  `cbor:"3,keyasint"`
		FeatureID      uint8  `cbor:"4,keyasint"`
		AttributeID    uint16 `cbor:"5,keyasint"`
		Value          any    `cbor:"6,keyasint"`
		Timestamp      int64  `cbor:"7,keyasint"`
	}
	if err := Unmarshal(data, &wireMsg); err != nil {
		return nil, fmt.Errorf("failed to decode notification: %w", err)
	}
	if wireMsg.MessageID != NotificationMessageID {
		return nil, fmt.Errorf("not a notification message: messageId=%d", wireMsg.MessageID)
	}
	return &Notification{
		SubscriptionID: wireMsg.SubscriptionID,
		MachineID:      wireMsg.MachineID,
		FeatureID:      wireMsg.FeatureID,
		AttributeID:    wireMsg.AttributeID,
		Value:          wireMsg.Value,
		Timestamp:      timeFromUnixMicro(wireMsg.Timestamp),
	}, nil
}

func timeFromUnixMicro(us int64) time.Time {
	return time.UnixMicro(us)
}

// MessageType represents the type of a decoded message.
type MessageType int

const (
	MessageTypeUnknown MessageType = iota
	MessageTypeRequest
	MessageTypeResponse
	MessageTypeNotification
)

// PeekMessageType examines CBOR data to determine the message type
// without fully decoding it.
//
// Message type detection logic:
// - Notification: messageId (key 1) = 0
// - Request: key 2 is a valid operation AND the message is shaped like
//   a request (addressed machine/feature, or a payload at key 5)
// - Response: everything else
//
// Keys 3 through 5 are decoded as raw CBOR because their meaning
// differs between requests and responses: a response puts its payload
// at key 3, which may be a map and never decodes as a small id.
func PeekMessageType(data []byte) (MessageType, error) {
	var peek struct {
		MessageID uint32          `cbor:"1,keyasint"`
		Field2    uint64          `cbor:"2,keyasint"`
		Field3    cbor.RawMessage `cbor:"3,keyasint"`
		Field4    cbor.RawMessage `cbor:"4,keyasint"`
		Payload   cbor.RawMessage `cbor:"5,keyasint"`
	}
	if err := Unmarshal(data, &peek); err != nil {
		return MessageTypeUnknown, fmt.Errorf("failed to peek message: %w", err)
	}

	if peek.MessageID == NotificationMessageID {
		return MessageTypeNotification, nil
	}

	if peek.Field2 > 0xff || !Operation(peek.Field2).IsValid() {
		return MessageTypeResponse, nil
	}

	// An addressed machine or feature marks a request.
	if id, ok := rawUint(peek.Field3); ok && id > 0 {
		return MessageTypeRequest, nil
	}
	if id, ok := rawUint(peek.Field4); ok && id > 0 {
		return MessageTypeRequest, nil
	}

	// Unsubscribe addresses machine 0 but carries a payload at key 5,
	// which no response uses.
	if len(peek.Payload) > 0 {
		return MessageTypeRequest, nil
	}

	// A fleet-wide browse has neither addressing nor payload. Error
	// responses always carry a diagnostic payload at key 3, so an
	// absent key 3 together with the browse opcode means a request.
	if Operation(peek.Field2) == OpBrowse && len(peek.Field3) == 0 {
		return MessageTypeRequest, nil
	}

	return MessageTypeResponse, nil
}

// rawUint decodes a raw CBOR value as an unsigned integer. It reports
// false when the value is absent or not an integer.
func rawUint(raw cbor.RawMessage) (uint64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var v uint64
	if err := decMode.Unmarshal(raw, &v); err != nil {
		return 0, false
	}
	return v, true
}
