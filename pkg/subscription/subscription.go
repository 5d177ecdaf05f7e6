package subscription

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Subscription errors.
var (
	ErrInvalidInterval      = errors.New("invalid sampling interval")
	ErrInvalidQueueDepth    = errors.New("invalid queue depth")
	ErrResourceExhausted    = errors.New("maximum subscriptions reached")
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrInvalidAttributeID   = errors.New("invalid attribute ID")
)

// Default subscription limits.
const (
	DefaultSamplingInterval = 1 * time.Second
	DefaultQueueDepth       = 10
	DefaultMaxSubscriptions = 50
	MaxQueueDepth           = 1000
	MinSamplingInterval     = 100 * time.Millisecond
)

// Config holds subscription manager configuration.
type Config struct {
	// MaxSubscriptions is the maximum number of subscriptions allowed.
	MaxSubscriptions int

	// MaxQueueDepth caps the per-attribute queue depth a subscriber
	// may request.
	MaxQueueDepth int

	// MinSamplingInterval is the fastest sampling rate a subscriber
	// may request.
	MinSamplingInterval time.Duration
}

// DefaultConfig returns the default subscription configuration.
func DefaultConfig() Config {
	return Config{
		MaxSubscriptions:    DefaultMaxSubscriptions,
		MaxQueueDepth:       MaxQueueDepth,
		MinSamplingInterval: MinSamplingInterval,
	}
}

// Sample is a single queued attribute value.
type Sample struct {
	// AttributeID identifies the sampled attribute.
	AttributeID uint16

	// Value is the attribute value at capture time.
	Value any

	// Timestamp is when the change was captured.
	Timestamp time.Time
}

// sampleQueue is a bounded FIFO of samples for one attribute.
// When full, the configured overflow policy decides whether the oldest
// or the newest sample is dropped.
type sampleQueue struct {
	samples       []Sample
	depth         int
	discardOldest bool
	dropped       uint64
}

func newSampleQueue(depth int, discardOldest bool) *sampleQueue {
	return &sampleQueue{
		samples:       make([]Sample, 0, depth),
		depth:         depth,
		discardOldest: discardOldest,
	}
}

// push enqueues a sample, applying the overflow policy when full.
func (q *sampleQueue) push(s Sample) {
	if len(q.samples) < q.depth {
		q.samples = append(q.samples, s)
		return
	}

	q.dropped++
	if q.discardOldest {
		copy(q.samples, q.samples[1:])
		q.samples[len(q.samples)-1] = s
	}
	// discard-newest: the incoming sample is dropped
}

// drain returns all queued samples in FIFO order and empties the queue.
func (q *sampleQueue) drain() []Sample {
	if len(q.samples) == 0 {
		return nil
	}
	out := q.samples
	q.samples = make([]Sample, 0, q.depth)
	return out
}

// Subscription represents an active subscription with per-attribute
// bounded sample queues drained at the sampling interval.
type Subscription struct {
	mu sync.Mutex

	// ID is the unique subscription identifier.
	ID uint32

	// MachineID identifies the subscribed machine.
	MachineID uint8

	// FeatureID identifies the subscribed feature.
	FeatureID uint8

	// AttributeIDs lists subscribed attributes (empty = all).
	AttributeIDs []uint16

	// SamplingInterval is the queue drain period.
	SamplingInterval time.Duration

	// QueueDepth is the per-attribute queue capacity.
	QueueDepth int

	// DiscardOldest selects the overflow policy.
	DiscardOldest bool

	// queues holds one bounded FIFO per subscribed attribute.
	// Created lazily on first change for attributes subscribed via
	// the empty (all attributes) form.
	queues map[uint16]*sampleQueue

	// active indicates if the subscription is live.
	active bool

	// reportedDrops counts the overflow drops already reported
	// through the manager's overflow callback.
	reportedDrops uint64

	// stopCh stops the sampling loop.
	stopCh chan struct{}
}

// NewSubscription creates a new subscription.
func NewSubscription(id uint32, machineID, featureID uint8, attributeIDs []uint16, interval time.Duration, queueDepth int, discardOldest bool) *Subscription {
	sub := &Subscription{
		ID:               id,
		MachineID:        machineID,
		FeatureID:        featureID,
		AttributeIDs:     attributeIDs,
		SamplingInterval: interval,
		QueueDepth:       queueDepth,
		DiscardOldest:    discardOldest,
		queues:           make(map[uint16]*sampleQueue),
		active:           true,
		stopCh:           make(chan struct{}),
	}
	for _, attrID := range attributeIDs {
		sub.queues[attrID] = newSampleQueue(queueDepth, discardOldest)
	}
	return sub
}

// covers reports whether the subscription includes the attribute.
func (s *Subscription) covers(attrID uint16) bool {
	if len(s.AttributeIDs) == 0 {
		return true
	}
	for _, id := range s.AttributeIDs {
		if id == attrID {
			return true
		}
	}
	return false
}

// RecordChange queues a value change for the attribute.
// Changes for attributes outside the subscription are ignored.
func (s *Subscription) RecordChange(attrID uint16, value any) {
	if !s.covers(attrID) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	q, exists := s.queues[attrID]
	if !exists {
		q = newSampleQueue(s.QueueDepth, s.DiscardOldest)
		s.queues[attrID] = q
	}
	q.push(Sample{
		AttributeID: attrID,
		Value:       value,
		Timestamp:   time.Now(),
	})
}

// DrainAll returns the queued samples of every attribute in FIFO order
// and empties the queues. Samples are grouped by attribute, attributes
// in ascending ID order.
func (s *Subscription) DrainAll() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Sample
	for _, attrID := range sortedQueueIDs(s.queues) {
		out = append(out, s.queues[attrID].drain()...)
	}
	return out
}

// DroppedCount returns the total number of samples dropped by the
// overflow policy across all attribute queues.
func (s *Subscription) DroppedCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint64
	for _, q := range s.queues {
		total += q.dropped
	}
	return total
}

// takeNewDrops returns the drops accumulated since the previous call.
func (s *Subscription) takeNewDrops() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total uint64
	for _, q := range s.queues {
		total += q.dropped
	}
	delta := total - s.reportedDrops
	s.reportedDrops = total
	return delta
}

// Active reports whether the subscription is live.
func (s *Subscription) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Deactivate marks the subscription inactive and stops its sampling loop.
func (s *Subscription) Deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}
	s.active = false
	close(s.stopCh)
}

func sortedQueueIDs(queues map[uint16]*sampleQueue) []uint16 {
	ids := make([]uint16, 0, len(queues))
	for id := range queues {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
