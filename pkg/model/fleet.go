package model

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// Fleet errors.
var (
	ErrDuplicateMachineID   = errors.New("duplicate machine ID")
	ErrDuplicateMachineName = errors.New("duplicate machine name")
)

// Fleet is the top-level container of the addressable hierarchy.
// Machines are registered once during startup; the set is fixed while
// the server is accepting requests.
type Fleet struct {
	mu sync.RWMutex

	// plantName labels the fleet (from configuration).
	plantName string

	// Machines indexed by ID.
	machines map[uint8]*Machine

	// machinesByName supports browse-name lookup at the protocol boundary.
	machinesByName map[string]*Machine
}

// NewFleet creates an empty fleet.
func NewFleet(plantName string) *Fleet {
	return &Fleet{
		plantName:      plantName,
		machines:       make(map[uint8]*Machine),
		machinesByName: make(map[string]*Machine),
	}
}

// PlantName returns the fleet label.
func (f *Fleet) PlantName() string {
	return f.plantName
}

// AddMachine registers a machine in the hierarchy.
// Duplicate ids or browse names are configuration errors.
func (f *Fleet) AddMachine(m *Machine) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.machines[m.ID()]; exists {
		return ErrDuplicateMachineID
	}
	if _, exists := f.machinesByName[m.Name()]; exists {
		return ErrDuplicateMachineName
	}

	f.machines[m.ID()] = m
	f.machinesByName[m.Name()] = m
	return nil
}

// GetMachine returns a machine by ID.
func (f *Fleet) GetMachine(id uint8) (*Machine, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	m, exists := f.machines[id]
	if !exists {
		return nil, ErrMachineNotFound
	}
	return m, nil
}

// GetMachineByName returns a machine by browse name.
func (f *Fleet) GetMachineByName(name string) (*Machine, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	m, exists := f.machinesByName[name]
	if !exists {
		return nil, ErrMachineNotFound
	}
	return m, nil
}

// Machines returns all machines ordered by ID.
func (f *Fleet) Machines() []*Machine {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]*Machine, 0, len(f.machines))
	for _, m := range f.machines {
		result = append(result, m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}

// MachineCount returns the number of registered machines.
func (f *Fleet) MachineCount() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.machines)
}

// GetFeature returns a feature from a specific machine.
func (f *Fleet) GetFeature(machineID uint8, featureType FeatureType) (*Feature, error) {
	m, err := f.GetMachine(machineID)
	if err != nil {
		return nil, err
	}
	return m.GetFeature(featureType)
}

// ReadAttribute reads an attribute from a specific machine and feature.
func (f *Fleet) ReadAttribute(machineID uint8, featureType FeatureType, attrID uint16) (any, error) {
	feature, err := f.GetFeature(machineID, featureType)
	if err != nil {
		return nil, err
	}
	return feature.ReadAttribute(attrID)
}

// InvokeCommand invokes a command on a specific machine and feature.
func (f *Fleet) InvokeCommand(ctx context.Context, machineID uint8, featureType FeatureType, cmdID uint8, params map[string]any) (map[string]any, error) {
	feature, err := f.GetFeature(machineID, featureType)
	if err != nil {
		return nil, err
	}
	return feature.InvokeCommand(ctx, cmdID, params)
}

// Info returns browse information for every machine, ordered by ID.
func (f *Fleet) Info() []*MachineInfo {
	machines := f.Machines()
	infos := make([]*MachineInfo, 0, len(machines))
	for _, m := range machines {
		infos = append(infos, m.Info())
	}
	return infos
}
