package controller

import (
	"context"
	"strings"
	"time"

	"github.com/officina-protocol/officina-go/pkg/log"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// Machine describes a machine discovered on the plant.
type Machine struct {
	// ID is the machine's wire address.
	ID uint8

	// Name is the machine's display name.
	Name string

	// Kind is the classified machine kind.
	Kind model.MachineKind

	// Features lists the machine's feature IDs.
	Features []uint8
}

// SupportsPredictiveMaintenance reports whether the machine exposes
// the AI maintenance command.
func (m *Machine) SupportsPredictiveMaintenance() bool {
	return m.Kind.SupportsPredictiveMaintenance()
}

// classifyKind determines the machine kind from the browse name.
// The Pro prefix is checked first because "CNC" is a prefix of
// "CNCPro". Names matching neither prefix are outside the machine
// naming convention and report false.
func classifyKind(name string) (model.MachineKind, bool) {
	if strings.HasPrefix(name, model.KindPro.BrowsePrefix()) {
		return model.KindPro, true
	}
	if strings.HasPrefix(name, model.KindBase.BrowsePrefix()) {
		return model.KindBase, true
	}
	return model.KindBase, false
}

// DiscoverMachines browses the plant and classifies its machines.
// Entries whose name matches neither naming prefix are not machines
// of this fleet and are dropped with a warning. The result is cached
// for name resolution until the next call.
func (c *Controller) DiscoverMachines(ctx context.Context) ([]Machine, error) {
	client := c.Client()
	if client == nil {
		return nil, ErrNotStarted
	}

	payload, err := client.Browse(ctx, 0)
	if err != nil {
		return nil, err
	}

	machines := make([]Machine, 0, len(payload.Machines))
	for _, entry := range payload.Machines {
		kind, ok := classifyKind(entry.Name)
		if !ok {
			c.logSkippedEntry(entry.Name)
			continue
		}
		machines = append(machines, Machine{
			ID:       entry.ID,
			Name:     entry.Name,
			Kind:     kind,
			Features: entry.Features,
		})
	}

	c.mu.Lock()
	c.machines = machines
	c.mu.Unlock()

	return machines, nil
}

func (c *Controller) logSkippedEntry(name string) {
	if c.config.Logger == nil {
		return
	}
	c.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		LocalRole: log.RoleController,
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: "browse entry does not match the machine naming convention",
			Context: name,
		},
	})
}

// Machines returns the machines from the last discovery.
func (c *Controller) Machines() []Machine {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Machine, len(c.machines))
	copy(out, c.machines)
	return out
}

// MachineByName resolves a discovered machine by display name.
func (c *Controller) MachineByName(name string) (*Machine, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.machines {
		if c.machines[i].Name == name {
			m := c.machines[i]
			return &m, nil
		}
	}
	return nil, ErrMachineNotFound
}
