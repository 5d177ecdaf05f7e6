package connection

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Plant link errors.
var (
	ErrLinkClosed       = errors.New("plant link closed")
	ErrAlreadyConnected = errors.New("already connected to plant")
)

// reconnectDialTimeout bounds a single dial attempt inside the
// reconnect loop.
const reconnectDialTimeout = 30 * time.Second

// State represents the plant link state.
type State uint8

const (
	// StateDisconnected indicates no active plant link.
	StateDisconnected State = iota

	// StateConnecting indicates a dial is in progress.
	StateConnecting

	// StateConnected indicates an established plant link.
	StateConnected

	// StateReconnecting indicates the backoff loop is trying to
	// restore a lost link.
	StateReconnecting

	// StateClosed indicates the manager has been shut down.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// DialFunc establishes the transport link to the plant. A nil return
// means the link is up; session recovery (browse, resubscribe) is the
// caller's concern and does not affect the backoff.
type DialFunc func(ctx context.Context) error

// Manager tracks the controller's link to one plant and restores it
// with backoff when it drops.
type Manager struct {
	mu sync.RWMutex

	state   State
	backoff *Backoff
	dial    DialFunc

	// Reconnect automatically after a lost link.
	autoReconnect bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Wakes the reconnect loop. Buffered so a loss detected while a
	// cycle is running coalesces into one pending wake.
	wake chan struct{}

	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)
}

// NewManager creates a manager that dials the plant with dial.
func NewManager(dial DialFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoff(),
		dial:          dial,
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		wake:          make(chan struct{}, 1),
	}
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected reports whether the plant link is up.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// SetAutoReconnect enables or disables the reconnect loop for
// subsequent link losses.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect dials the plant once.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrLinkClosed
	}

	oldState := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateConnecting)

	err := m.dial(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.notifyStateChange(StateConnecting, StateDisconnected)
		return err
	}

	m.state = StateConnected
	m.backoff.Reset()
	m.mu.Unlock()

	m.notifyStateChange(StateConnecting, StateConnected)
	if m.onConnected != nil {
		m.onConnected()
	}

	return nil
}

// Disconnect drops the plant link deliberately. The reconnect loop
// still runs unless auto-reconnect is disabled.
func (m *Manager) Disconnect() {
	m.linkDown()
}

// NotifyConnectionLost reports a detected link loss, typically from a
// failed read on the plant connection. Triggers the reconnect loop
// when auto-reconnect is enabled.
func (m *Manager) NotifyConnectionLost() {
	m.linkDown()
}

func (m *Manager) linkDown() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect

	if autoReconnect {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	newState := m.state
	m.mu.Unlock()

	m.notifyStateChange(oldState, newState)
	if m.onDisconnected != nil {
		m.onDisconnected()
	}

	if autoReconnect {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// StartReconnectLoop starts the background reconnect goroutine.
// Must be called once before link losses can be recovered.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts the manager down and stops the reconnect loop.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.notifyStateChange(oldState, StateClosed)

	m.cancel()
	m.wg.Wait()
}

func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.wake:
			m.runBackoffCycle()
		}
	}
}

// runBackoffCycle redials the plant until the link is back or the
// manager closes. Each attempt is reported before its delay so the
// reconnect reporter sees the wait, not just the dial.
func (m *Manager) runBackoffCycle() {
	for {
		m.mu.RLock()
		state := m.state
		m.mu.RUnlock()

		if state == StateClosed || state == StateConnected {
			return
		}

		delay := m.backoff.Next()
		attempt := m.backoff.Attempts()

		if m.onReconnecting != nil {
			m.onReconnecting(attempt, delay)
		}

		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		m.mu.Lock()
		if m.state == StateClosed || m.state == StateConnected {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(m.ctx, reconnectDialTimeout)
		err := m.dial(ctx)
		cancel()

		if err != nil {
			continue
		}

		// The link counts as restored once the dial returns. The
		// backoff resets here; request failures after this point must
		// come back through NotifyConnectionLost to start a new cycle.
		m.mu.Lock()
		oldState := m.state
		m.state = StateConnected
		m.backoff.Reset()
		m.mu.Unlock()

		m.notifyStateChange(oldState, StateConnected)
		if m.onConnected != nil {
			m.onConnected()
		}
		return
	}
}

func (m *Manager) notifyStateChange(oldState, newState State) {
	if m.onStateChange != nil {
		m.onStateChange(oldState, newState)
	}
}

// OnStateChange sets a callback for link state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback invoked when the plant link comes up,
// on the first connect and after every successful redial.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback invoked when the plant link drops.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback invoked before each redial attempt
// with the attempt number and the delay about to be waited.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}
