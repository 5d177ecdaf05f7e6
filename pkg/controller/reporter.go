package controller

import (
	"sync"
	"time"
)

// ReconnectAttempt records one reconnection attempt.
type ReconnectAttempt struct {
	// Attempt is the attempt number since the last successful connect.
	Attempt int

	// Delay is the backoff delay that preceded the attempt.
	Delay time.Duration

	// Time is when the attempt was scheduled.
	Time time.Time
}

// ReconnectReporter collects reconnection attempts for operator
// visibility. It is fed by the connection manager's OnReconnecting
// callback.
type ReconnectReporter struct {
	mu sync.Mutex

	attempts []ReconnectAttempt
	onReport func(ReconnectAttempt)
}

// NewReconnectReporter creates an empty reporter.
func NewReconnectReporter() *ReconnectReporter {
	return &ReconnectReporter{}
}

// Record registers a reconnection attempt.
func (r *ReconnectReporter) Record(attempt int, delay time.Duration) {
	entry := ReconnectAttempt{
		Attempt: attempt,
		Delay:   delay,
		Time:    time.Now(),
	}

	r.mu.Lock()
	r.attempts = append(r.attempts, entry)
	fn := r.onReport
	r.mu.Unlock()

	if fn != nil {
		fn(entry)
	}
}

// OnReport sets a callback invoked for each recorded attempt.
func (r *ReconnectReporter) OnReport(fn func(ReconnectAttempt)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReport = fn
}

// Attempts returns a snapshot of all recorded attempts.
func (r *ReconnectReporter) Attempts() []ReconnectAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ReconnectAttempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// Reset clears the recorded attempts.
func (r *ReconnectReporter) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = nil
}
