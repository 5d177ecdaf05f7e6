package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/interaction"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

// Monitoring defaults.
const (
	// DefaultSamplingInterval is the subscription sampling interval.
	DefaultSamplingInterval = 1000 * time.Millisecond

	// DefaultQueueDepth is the per-attribute sample queue depth.
	DefaultQueueDepth = 10
)

// NotAvailable is the label used when a machine cannot be read.
const NotAvailable = "N/A"

// StatusChange is a decoded monitored value change.
type StatusChange struct {
	// MachineID is the machine's wire address.
	MachineID uint8

	// MachineName is the machine's display name, when known.
	MachineName string

	// FeatureID identifies the feature the change came from.
	FeatureID uint8

	// AttributeID identifies the changed attribute.
	AttributeID uint16

	// Label is the decoded display label ("On", "Level 3", "Unknown", ...).
	Label string

	// Raw is the undecoded wire value.
	Raw any

	// Timestamp is the sample time.
	Timestamp time.Time
}

// Monitor subscribes to machine status and spindle speed across the
// fleet and decodes incoming samples to display labels.
type Monitor struct {
	ctrl *Controller

	mu       sync.Mutex
	running  bool
	subs     []uint32
	names    map[uint8]string
	onChange func(StatusChange)
}

// NewMonitor creates a monitor for the controller's fleet.
func NewMonitor(ctrl *Controller) *Monitor {
	return &Monitor{
		ctrl:  ctrl,
		names: make(map[uint8]string),
	}
}

// OnChange sets the callback for decoded value changes.
func (m *Monitor) OnChange(fn func(StatusChange)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Start subscribes to every discovered machine's status and spindle
// speed. Discovery runs first if the controller has not browsed yet.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("monitor already running")
	}
	m.running = true
	m.mu.Unlock()

	machines := m.ctrl.Machines()
	if len(machines) == 0 {
		var err error
		machines, err = m.ctrl.DiscoverMachines(ctx)
		if err != nil {
			m.setStopped()
			return err
		}
	}

	client := m.ctrl.Client()
	if client == nil {
		m.setStopped()
		return ErrNotStarted
	}

	m.ctrl.SetNotificationHandler(m.handleNotification)

	interval := m.ctrl.config.SamplingInterval
	if interval == 0 {
		interval = DefaultSamplingInterval
	}
	depth := m.ctrl.config.QueueDepth
	if depth == 0 {
		depth = DefaultQueueDepth
	}

	var subs []uint32
	for _, mach := range machines {
		m.mu.Lock()
		m.names[mach.ID] = mach.Name
		m.mu.Unlock()

		machiningAttrs := []uint16{machine.MachiningAttrStatus, machine.MachiningAttrEnergy}
		if mach.SupportsPredictiveMaintenance() {
			machiningAttrs = append(machiningAttrs, machine.MachiningAttrAIActive)
		}

		statusSub, _, err := client.Subscribe(ctx, mach.ID, uint8(model.FeatureMachining),
			&interaction.SubscribeOptions{
				AttributeIDs:     machiningAttrs,
				SamplingInterval: interval,
				QueueDepth:       depth,
				DiscardOldest:    true,
			})
		if err != nil {
			m.stopSubs(ctx, subs)
			m.setStopped()
			return err
		}
		subs = append(subs, statusSub)

		speedSub, _, err := client.Subscribe(ctx, mach.ID, uint8(model.FeatureSpindle),
			&interaction.SubscribeOptions{
				AttributeIDs:     []uint16{machine.SpindleAttrSpeed},
				SamplingInterval: interval,
				QueueDepth:       depth,
				DiscardOldest:    true,
			})
		if err != nil {
			m.stopSubs(ctx, subs)
			m.setStopped()
			return err
		}
		subs = append(subs, speedSub)
	}

	m.mu.Lock()
	m.subs = subs
	m.mu.Unlock()

	return nil
}

// Stop cancels all monitor subscriptions.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	subs := m.subs
	m.subs = nil
	m.running = false
	m.mu.Unlock()

	m.stopSubs(ctx, subs)
	return nil
}

func (m *Monitor) setStopped() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

func (m *Monitor) stopSubs(ctx context.Context, subs []uint32) {
	client := m.ctrl.Client()
	if client == nil {
		return
	}
	for _, id := range subs {
		_ = client.Unsubscribe(ctx, id)
	}
}

// handleNotification decodes a sample into a StatusChange.
func (m *Monitor) handleNotification(notif *wire.Notification) {
	m.mu.Lock()
	name := m.names[notif.MachineID]
	fn := m.onChange
	m.mu.Unlock()

	if fn == nil {
		return
	}

	change := StatusChange{
		MachineID:   notif.MachineID,
		MachineName: name,
		FeatureID:   notif.FeatureID,
		AttributeID: notif.AttributeID,
		Label:       decodeLabel(notif.FeatureID, notif.AttributeID, notif.Value),
		Raw:         notif.Value,
		Timestamp:   notif.Timestamp,
	}
	fn(change)
}

// decodeLabel maps a wire value to its display label. Enum values
// outside the closed sets decode to "Unknown"; non-enum attributes
// render their value directly.
func decodeLabel(featureID uint8, attrID uint16, value any) string {
	switch {
	case featureID == uint8(model.FeatureMachining) && attrID == machine.MachiningAttrStatus:
		v, ok := asInt64(value)
		if !ok {
			return catalog.UnknownLabel
		}
		return catalog.StatusLabel(v)
	case featureID == uint8(model.FeatureSpindle) && attrID == machine.SpindleAttrSpeed:
		v, ok := asInt64(value)
		if !ok {
			return catalog.UnknownLabel
		}
		return catalog.SpeedLabel(v)
	case featureID == uint8(model.FeatureMachining) && attrID == machine.MachiningAttrEnergy:
		if f, ok := asFloat64(value); ok {
			return fmt.Sprintf("%.1f kW", f)
		}
		return catalog.UnknownLabel
	case featureID == uint8(model.FeatureMachining) && attrID == machine.MachiningAttrAIActive:
		if b, ok := value.(bool); ok {
			return fmt.Sprintf("AI %v", b)
		}
		return catalog.UnknownLabel
	default:
		return catalog.UnknownLabel
	}
}

// asFloat64 normalizes the numeric types CBOR decoding produces.
func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := asInt64(v)
		return float64(i), ok
	}
}

// Snapshot is a synchronous read of one machine's monitored
// attributes, decoded to display labels. Attributes that cannot be
// resolved hold "N/A".
type Snapshot struct {
	Status   string
	Energy   string
	Speed    string
	AIActive string
}

// DumpAllStatuses reads every discovered machine's monitored
// attributes and returns decoded snapshots by machine name.
func (m *Monitor) DumpAllStatuses(ctx context.Context) map[string]Snapshot {
	out := make(map[string]Snapshot)

	client := m.ctrl.Client()
	machines := m.ctrl.Machines()

	for _, mach := range machines {
		snap := Snapshot{
			Status:   NotAvailable,
			Energy:   NotAvailable,
			Speed:    NotAvailable,
			AIActive: NotAvailable,
		}
		if client == nil {
			out[mach.Name] = snap
			continue
		}

		if values, err := client.Read(ctx, mach.ID, uint8(model.FeatureMachining), nil); err == nil {
			if v, ok := asInt64(values[machine.MachiningAttrStatus]); ok {
				snap.Status = catalog.StatusLabel(v)
			}
			if f, ok := asFloat64(values[machine.MachiningAttrEnergy]); ok {
				snap.Energy = fmt.Sprintf("%.1f", f)
			}
			if b, ok := values[machine.MachiningAttrAIActive].(bool); ok {
				snap.AIActive = fmt.Sprintf("%v", b)
			}
		}

		if values, err := client.Read(ctx, mach.ID, uint8(model.FeatureSpindle),
			[]uint16{machine.SpindleAttrSpeed}); err == nil {
			if v, ok := asInt64(values[machine.SpindleAttrSpeed]); ok {
				snap.Speed = catalog.SpeedLabel(v)
			}
		}

		out[mach.Name] = snap
	}

	return out
}

// asInt64 normalizes the integer types CBOR decoding produces.
func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}
