package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/officina-protocol/officina-go/pkg/model"
)

// Configuration errors.
var (
	ErrNoPlantName      = errors.New("plant name is required")
	ErrNoMachines       = errors.New("at least one machine is required")
	ErrDuplicateID      = errors.New("duplicate machine ID")
	ErrDuplicateName    = errors.New("duplicate machine name")
	ErrInvalidKind      = errors.New("invalid machine kind")
	ErrNoPlantAddress   = errors.New("plant address or discovery is required")
	ErrInvalidInterval  = errors.New("sampling interval out of range")
	ErrInvalidMachineID = errors.New("machine ID must be non-zero")
)

// MachineConfig describes one machine in the fleet.
type MachineConfig struct {
	// ID is the machine's address on the wire. Must be unique and non-zero.
	ID uint8 `yaml:"id"`

	// Name is the machine's display name. Must be unique.
	Name string `yaml:"name"`

	// Kind is "CNC" or "CNCPro".
	Kind string `yaml:"kind"`

	// Tool is the initially mounted tool. Optional.
	Tool string `yaml:"tool"`
}

// MachineKind returns the parsed machine kind.
func (m *MachineConfig) MachineKind() (model.MachineKind, error) {
	return model.ParseMachineKind(m.Kind)
}

// PlantConfig configures a plant server.
type PlantConfig struct {
	// PlantName is the fleet's display name.
	PlantName string `yaml:"plant_name"`

	// ListenAddress is the TCP listen address (e.g., ":4840").
	// Empty means the default port on all interfaces.
	ListenAddress string `yaml:"listen_address"`

	// Advertise enables mDNS advertising of the plant service.
	Advertise bool `yaml:"advertise"`

	// LogFile is an optional protocol log file path.
	LogFile string `yaml:"log_file"`

	// ProductionIntervalMs simulates part production: while a machine is
	// On, its parts counter increments every interval. Zero disables it.
	ProductionIntervalMs int `yaml:"production_interval_ms"`

	// Machines describes the fleet.
	Machines []MachineConfig `yaml:"machines"`
}

// ProductionInterval returns the production tick interval.
func (c *PlantConfig) ProductionInterval() time.Duration {
	return time.Duration(c.ProductionIntervalMs) * time.Millisecond
}

// Validate checks the plant configuration for consistency.
func (c *PlantConfig) Validate() error {
	if c.PlantName == "" {
		return ErrNoPlantName
	}
	if len(c.Machines) == 0 {
		return ErrNoMachines
	}

	ids := make(map[uint8]bool)
	names := make(map[string]bool)
	for i := range c.Machines {
		m := &c.Machines[i]

		if m.ID == 0 {
			return fmt.Errorf("%w: machine %q", ErrInvalidMachineID, m.Name)
		}
		if ids[m.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateID, m.ID)
		}
		ids[m.ID] = true

		if m.Name == "" {
			return fmt.Errorf("machine %d: name is required", m.ID)
		}
		if names[m.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateName, m.Name)
		}
		names[m.Name] = true

		if _, err := m.MachineKind(); err != nil {
			return fmt.Errorf("%w: machine %q has kind %q", ErrInvalidKind, m.Name, m.Kind)
		}
	}

	return nil
}

// ControllerConfig configures a controller client.
type ControllerConfig struct {
	// PlantAddress is the plant server address ("host:port").
	// Empty means discover via mDNS.
	PlantAddress string `yaml:"plant_address"`

	// PlantName filters mDNS discovery to a specific plant.
	// Ignored when PlantAddress is set.
	PlantName string `yaml:"plant_name"`

	// Discover enables mDNS discovery when PlantAddress is empty.
	Discover bool `yaml:"discover"`

	// SamplingIntervalMs is the subscription sampling interval.
	// Zero means the server default (1000 ms).
	SamplingIntervalMs int `yaml:"sampling_interval_ms"`

	// QueueDepth is the per-attribute sample queue depth.
	// Zero means the server default (10).
	QueueDepth int `yaml:"queue_depth"`

	// LogFile is an optional protocol log file path.
	LogFile string `yaml:"log_file"`
}

// SamplingInterval returns the configured sampling interval.
func (c *ControllerConfig) SamplingInterval() time.Duration {
	return time.Duration(c.SamplingIntervalMs) * time.Millisecond
}

// Validate checks the controller configuration for consistency.
func (c *ControllerConfig) Validate() error {
	if c.PlantAddress == "" && !c.Discover {
		return ErrNoPlantAddress
	}
	if c.SamplingIntervalMs < 0 {
		return ErrInvalidInterval
	}
	if c.QueueDepth < 0 || c.QueueDepth > 255 {
		return fmt.Errorf("queue depth must be 0-255, got %d", c.QueueDepth)
	}
	return nil
}

// LoadPlant reads and validates a plant configuration file.
func LoadPlant(path string) (*PlantConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg PlantConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadController reads and validates a controller configuration file.
func LoadController(path string) (*ControllerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg ControllerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
