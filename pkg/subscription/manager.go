package subscription

import (
	"sync"
	"sync/atomic"
	"time"
)

// Notification is a single sampled value delivered to the notification
// callback.
type Notification struct {
	// SubscriptionID identifies the subscription.
	SubscriptionID uint32

	// MachineID identifies the machine.
	MachineID uint8

	// FeatureID identifies the feature.
	FeatureID uint8

	// AttributeID identifies the sampled attribute.
	AttributeID uint16

	// Value is the sampled value.
	Value any

	// Timestamp is when the change was captured.
	Timestamp time.Time
}

// idCounter generates subscription IDs.
var idCounter atomic.Uint32

func nextID() uint32 {
	return idCounter.Add(1)
}

// Manager manages the subscriptions of a plant. Each subscription runs
// its own sampling loop that drains the per-attribute queues at the
// sampling interval and emits one notification per queued sample.
type Manager struct {
	mu sync.RWMutex

	config Config

	// Active subscriptions by ID
	subscriptions map[uint32]*Subscription

	// Index by (machineID, featureID) for efficient change dispatch
	featureIndex map[featureKey][]*Subscription

	onNotification func(Notification)
	onOverflow     func(subscriptionID uint32, dropped uint64)

	wg sync.WaitGroup
}

// featureKey is a composite key for the feature index.
type featureKey struct {
	machineID uint8
	featureID uint8
}

// NewManager creates a new subscription manager with default configuration.
func NewManager() *Manager {
	return NewManagerWithConfig(DefaultConfig())
}

// NewManagerWithConfig creates a new subscription manager with custom configuration.
func NewManagerWithConfig(config Config) *Manager {
	if config.MaxSubscriptions <= 0 {
		config.MaxSubscriptions = DefaultMaxSubscriptions
	}
	if config.MaxQueueDepth <= 0 {
		config.MaxQueueDepth = MaxQueueDepth
	}
	if config.MinSamplingInterval <= 0 {
		config.MinSamplingInterval = MinSamplingInterval
	}

	return &Manager{
		config:        config,
		subscriptions: make(map[uint32]*Subscription),
		featureIndex:  make(map[featureKey][]*Subscription),
	}
}

// Subscribe creates a new subscription and starts its sampling loop.
// A zero interval or depth selects the defaults (1s, 10). Returns the
// subscription ID.
func (m *Manager) Subscribe(
	machineID, featureID uint8,
	attributeIDs []uint16,
	interval time.Duration,
	queueDepth int,
	discardOldest bool,
) (uint32, error) {
	if interval == 0 {
		interval = DefaultSamplingInterval
	}
	if interval < m.config.MinSamplingInterval {
		return 0, ErrInvalidInterval
	}
	if queueDepth == 0 {
		queueDepth = DefaultQueueDepth
	}
	if queueDepth < 1 || queueDepth > m.config.MaxQueueDepth {
		return 0, ErrInvalidQueueDepth
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.subscriptions) >= m.config.MaxSubscriptions {
		return 0, ErrResourceExhausted
	}

	id := nextID()
	sub := NewSubscription(id, machineID, featureID, attributeIDs, interval, queueDepth, discardOldest)

	m.subscriptions[id] = sub

	key := featureKey{machineID: machineID, featureID: featureID}
	m.featureIndex[key] = append(m.featureIndex[key], sub)

	m.wg.Add(1)
	go m.samplingLoop(sub)

	return id, nil
}

// Unsubscribe removes a subscription and stops its sampling loop.
func (m *Manager) Unsubscribe(subscriptionID uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	sub, exists := m.subscriptions[subscriptionID]
	if !exists {
		return ErrSubscriptionNotFound
	}

	sub.Deactivate()
	delete(m.subscriptions, subscriptionID)
	m.removeFromIndex(sub)

	return nil
}

// removeFromIndex must be called with m.mu held.
func (m *Manager) removeFromIndex(sub *Subscription) {
	key := featureKey{machineID: sub.MachineID, featureID: sub.FeatureID}
	subs := m.featureIndex[key]
	for i, s := range subs {
		if s.ID == sub.ID {
			m.featureIndex[key] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(m.featureIndex[key]) == 0 {
		delete(m.featureIndex, key)
	}
}

// NotifyChange queues a value change for dispatch to relevant subscriptions.
func (m *Manager) NotifyChange(machineID, featureID uint8, attrID uint16, value any) {
	m.mu.RLock()
	key := featureKey{machineID: machineID, featureID: featureID}
	subs := m.featureIndex[key]
	m.mu.RUnlock()

	for _, sub := range subs {
		sub.RecordChange(attrID, value)
	}
}

// samplingLoop drains the subscription's queues at its sampling interval.
func (m *Manager) samplingLoop(sub *Subscription) {
	defer m.wg.Done()

	ticker := time.NewTicker(sub.SamplingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sub.stopCh:
			return
		case <-ticker.C:
			m.deliver(sub)
		}
	}
}

// deliver emits one notification per queued sample and reports
// overflow drops accumulated since the previous delivery.
func (m *Manager) deliver(sub *Subscription) {
	m.mu.RLock()
	onNotify := m.onNotification
	onOverflow := m.onOverflow
	m.mu.RUnlock()

	samples := sub.DrainAll()

	if dropped := sub.takeNewDrops(); dropped > 0 && onOverflow != nil {
		onOverflow(sub.ID, dropped)
	}

	if onNotify == nil {
		return
	}

	for _, s := range samples {
		onNotify(Notification{
			SubscriptionID: sub.ID,
			MachineID:      sub.MachineID,
			FeatureID:      sub.FeatureID,
			AttributeID:    s.AttributeID,
			Value:          s.Value,
			Timestamp:      s.Timestamp,
		})
	}
}

// ClearAll removes all subscriptions (e.g., on connection loss).
func (m *Manager) ClearAll() {
	m.mu.Lock()
	for _, sub := range m.subscriptions {
		sub.Deactivate()
	}
	m.subscriptions = make(map[uint32]*Subscription)
	m.featureIndex = make(map[featureKey][]*Subscription)
	m.mu.Unlock()

	m.wg.Wait()
}

// Count returns the number of active subscriptions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Get returns a subscription by ID.
func (m *Manager) Get(subscriptionID uint32) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, exists := m.subscriptions[subscriptionID]
	if !exists {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// OnNotification sets the callback for notifications.
func (m *Manager) OnNotification(fn func(Notification)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onNotification = fn
}

// OnOverflow sets the callback invoked when a subscription's overflow
// policy has discarded samples since the previous delivery.
func (m *Manager) OnOverflow(fn func(subscriptionID uint32, dropped uint64)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOverflow = fn
}
