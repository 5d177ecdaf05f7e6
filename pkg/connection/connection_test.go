package connection

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestBackoffGrowthAndCap(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}

	for i, exp := range want {
		if got := b.Next(); got != exp {
			t.Errorf("attempt %d: Next() = %v, want %v", i+1, got, exp)
		}
	}

	if got := b.Attempts(); got != len(want) {
		t.Errorf("Attempts() = %d, want %d", got, len(want))
	}
}

func TestBackoffJitterBounds(t *testing.T) {
	base := 100 * time.Millisecond
	b := NewBackoffWithConfig(BackoffConfig{
		Initial: base,
		Max:     base,
		Jitter:  JitterFactor,
	})

	varied := false
	var first time.Duration
	for i := 0; i < 20; i++ {
		d := b.Next()
		if d < base || d > base+time.Duration(float64(base)*JitterFactor) {
			t.Fatalf("sample %d: %v outside [%v, %v]", i, d, base,
				base+time.Duration(float64(base)*JitterFactor))
		}
		if i == 0 {
			first = d
		} else if d != first {
			varied = true
		}
	}
	if !varied {
		t.Error("jitter produced identical delays for every attempt")
	}
}

func TestBackoffReset(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Jitter: 0})

	for i := 0; i < 4; i++ {
		b.Next()
	}
	if got := b.Current(); got != 16*time.Second {
		t.Fatalf("Current() after 4 attempts = %v, want 16s", got)
	}

	b.Reset()
	if got := b.Current(); got != InitialBackoff {
		t.Errorf("Current() after reset = %v, want %v", got, InitialBackoff)
	}
	if got := b.Attempts(); got != 0 {
		t.Errorf("Attempts() after reset = %d, want 0", got)
	}
}

func TestBackoffConfigDefaults(t *testing.T) {
	b := NewBackoffWithConfig(BackoffConfig{Multiplier: 0.5, Jitter: -1})

	if b.initial != InitialBackoff {
		t.Errorf("initial = %v, want %v", b.initial, InitialBackoff)
	}
	if b.max != MaxBackoff {
		t.Errorf("max = %v, want %v", b.max, MaxBackoff)
	}
	if b.multiplier != BackoffMultiplier {
		t.Errorf("multiplier = %v, want %v", b.multiplier, BackoffMultiplier)
	}
	if b.jitter != 0 {
		t.Errorf("jitter = %v, want 0", b.jitter)
	}
}

func TestManagerConnect(t *testing.T) {
	var dials atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		dials.Add(1)
		return nil
	})
	defer m.Close()

	if m.State() != StateDisconnected {
		t.Fatalf("initial state = %v, want DISCONNECTED", m.State())
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false after successful dial")
	}
	if got := dials.Load(); got != 1 {
		t.Errorf("dial count = %d, want 1", got)
	}

	if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
}

func TestManagerConnectFailure(t *testing.T) {
	dialErr := errors.New("plant unreachable")
	m := NewManager(func(ctx context.Context) error { return dialErr })
	defer m.Close()

	if err := m.Connect(context.Background()); !errors.Is(err, dialErr) {
		t.Fatalf("Connect() error = %v, want %v", err, dialErr)
	}
	if m.State() != StateDisconnected {
		t.Errorf("state after failed dial = %v, want DISCONNECTED", m.State())
	}
}

func TestManagerConnectAfterClose(t *testing.T) {
	m := NewManager(func(ctx context.Context) error { return nil })
	m.Close()

	if err := m.Connect(context.Background()); !errors.Is(err, ErrLinkClosed) {
		t.Errorf("Connect() after Close() error = %v, want ErrLinkClosed", err)
	}

	// Closing again is a no-op.
	m.Close()
}

func TestManagerLinkLossTriggersReconnect(t *testing.T) {
	var dials atomic.Int32
	m := NewManager(func(ctx context.Context) error {
		dials.Add(1)
		return nil
	})
	defer m.Close()

	type report struct {
		attempt int
		delay   time.Duration
	}
	reports := make(chan report, 8)
	m.OnReconnecting(func(attempt int, delay time.Duration) {
		reports <- report{attempt, delay}
	})

	reconnected := make(chan struct{}, 8)
	m.OnConnected(func() { reconnected <- struct{}{} })

	m.StartReconnectLoop()
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	<-reconnected

	m.NotifyConnectionLost()
	if m.State() != StateReconnecting {
		t.Fatalf("state after link loss = %v, want RECONNECTING", m.State())
	}

	select {
	case r := <-reports:
		if r.attempt != 1 {
			t.Errorf("first redial attempt = %d, want 1", r.attempt)
		}
		if r.delay < InitialBackoff {
			t.Errorf("first redial delay = %v, want >= %v", r.delay, InitialBackoff)
		}
	case <-time.After(time.Second):
		t.Fatal("no reconnect attempt reported")
	}

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("link not restored")
	}
	if !m.IsConnected() {
		t.Error("IsConnected() = false after redial")
	}
	if got := dials.Load(); got != 2 {
		t.Errorf("dial count = %d, want 2", got)
	}
}

func TestManagerAutoReconnectDisabled(t *testing.T) {
	m := NewManager(func(ctx context.Context) error { return nil })
	defer m.Close()

	m.SetAutoReconnect(false)
	m.StartReconnectLoop()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	m.NotifyConnectionLost()
	if m.State() != StateDisconnected {
		t.Errorf("state = %v, want DISCONNECTED", m.State())
	}

	time.Sleep(50 * time.Millisecond)
	if m.IsConnected() {
		t.Error("reconnected although auto-reconnect is disabled")
	}
}

func TestManagerStateTransitions(t *testing.T) {
	type transition struct{ from, to State }
	trans := make(chan transition, 8)

	m := NewManager(func(ctx context.Context) error { return nil })
	defer m.Close()
	m.OnStateChange(func(oldState, newState State) {
		trans <- transition{oldState, newState}
	})

	disconnected := make(chan struct{}, 1)
	m.OnDisconnected(func() { disconnected <- struct{}{} })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	m.SetAutoReconnect(false)
	m.Disconnect()

	want := []transition{
		{StateDisconnected, StateConnecting},
		{StateConnecting, StateConnected},
		{StateConnected, StateDisconnected},
	}
	var got []transition
	for range want {
		select {
		case tr := <-trans:
			got = append(got, tr)
		case <-time.After(time.Second):
			t.Fatal("missing state transition")
		}
	}
	for i, w := range want {
		if got[i] != w {
			t.Errorf("transition %d: %v -> %v, want %v -> %v",
				i, got[i].from, got[i].to, w.from, w.to)
		}
	}

	select {
	case <-disconnected:
	case <-time.After(time.Second):
		t.Error("OnDisconnected callback not invoked")
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateDisconnected, "DISCONNECTED"},
		{StateConnecting, "CONNECTING"},
		{StateConnected, "CONNECTED"},
		{StateReconnecting, "RECONNECTING"},
		{StateClosed, "CLOSED"},
		{State(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
