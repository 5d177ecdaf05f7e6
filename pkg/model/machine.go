package model

import (
	"context"
	"errors"
	"sync"
)

// Machine errors.
var (
	ErrFeatureNotFound = errors.New("feature not found")
	ErrMachineNotFound = errors.New("machine not found")
)

// Machine represents one machine instance in the fleet hierarchy.
// Identity (id, browse name) and kind are immutable after creation.
type Machine struct {
	mu sync.RWMutex

	// id is the machine identifier used for wire addressing.
	id uint8

	// name is the browse name (e.g. "CNC1", "CNCPro1").
	name string

	// kind is the machine variant tag.
	kind MachineKind

	// Features indexed by type.
	features map[FeatureType]*Feature

	// ops serializes the guarded operations on this machine and its
	// owned spindle. Handlers hold it for the duration of a status,
	// speed, or maintenance change so the derived energy draw is never
	// observed inconsistent with status/speed.
	ops sync.Mutex
}

// NewMachine creates a new machine instance.
func NewMachine(id uint8, name string, kind MachineKind) *Machine {
	return &Machine{
		id:       id,
		name:     name,
		kind:     kind,
		features: make(map[FeatureType]*Feature),
	}
}

// ID returns the machine ID.
func (m *Machine) ID() uint8 {
	return m.id
}

// Name returns the machine browse name.
func (m *Machine) Name() string {
	return m.name
}

// Kind returns the machine kind.
func (m *Machine) Kind() MachineKind {
	return m.kind
}

// LockOps acquires the machine's exclusive operation scope.
// The scope covers the machine and its owned spindle feature.
func (m *Machine) LockOps() {
	m.ops.Lock()
}

// UnlockOps releases the machine's exclusive operation scope.
func (m *Machine) UnlockOps() {
	m.ops.Unlock()
}

// AddFeature adds a feature to the machine.
func (m *Machine) AddFeature(feature *Feature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.features[feature.Type()] = feature
}

// GetFeature returns a feature by type.
func (m *Machine) GetFeature(featureType FeatureType) (*Feature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	feature, exists := m.features[featureType]
	if !exists {
		return nil, ErrFeatureNotFound
	}
	return feature, nil
}

// HasFeature returns true if the machine has the given feature.
func (m *Machine) HasFeature(featureType FeatureType) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.features[featureType]
	return exists
}

// Features returns all features on this machine.
func (m *Machine) Features() []*Feature {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Feature, 0, len(m.features))
	for _, f := range m.features {
		result = append(result, f)
	}
	return result
}

// ReadAttribute reads an attribute from a feature.
func (m *Machine) ReadAttribute(featureType FeatureType, attrID uint16) (any, error) {
	feature, err := m.GetFeature(featureType)
	if err != nil {
		return nil, err
	}
	return feature.ReadAttribute(attrID)
}

// WriteAttribute writes an attribute to a feature.
func (m *Machine) WriteAttribute(featureType FeatureType, attrID uint16, value any) error {
	feature, err := m.GetFeature(featureType)
	if err != nil {
		return err
	}
	return feature.WriteAttribute(attrID, value)
}

// InvokeCommand invokes a command on a feature.
func (m *Machine) InvokeCommand(ctx context.Context, featureType FeatureType, cmdID uint8, params map[string]any) (map[string]any, error) {
	feature, err := m.GetFeature(featureType)
	if err != nil {
		return nil, err
	}
	return feature.InvokeCommand(ctx, cmdID, params)
}

// MachineInfo describes a machine for the browse operation.
type MachineInfo struct {
	ID       uint8       `cbor:"1,keyasint"`
	Name     string      `cbor:"2,keyasint"`
	Kind     MachineKind `cbor:"3,keyasint"`
	Features []uint8     `cbor:"4,keyasint"` // Feature type IDs
}

// Info returns machine information for the browse operation.
func (m *Machine) Info() *MachineInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	features := make([]uint8, 0, len(m.features))
	for ft := range m.features {
		features = append(features, uint8(ft))
	}

	return &MachineInfo{
		ID:       m.id,
		Name:     m.name,
		Kind:     m.kind,
		Features: features,
	}
}
