package plant

import (
	"errors"
	"time"

	"github.com/officina-protocol/officina-go/pkg/log"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrNoMachines     = errors.New("fleet has no machines")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Config configures a plant Service.
type Config struct {
	// ListenAddress is the address to listen on (e.g., ":4840").
	// Empty means the default port on all interfaces.
	ListenAddress string

	// Advertise enables mDNS advertising of the plant service.
	Advertise bool

	// ProductionInterval simulates part production: while a machine is
	// On, its parts counter increments every interval. Zero disables it.
	ProductionInterval time.Duration

	// MaxMessageSize is the maximum wire message size (default: 64KB).
	MaxMessageSize uint32

	// Logger is the optional protocol logger.
	// If nil, logging is disabled.
	Logger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddress: "",
		Advertise:     false,
	}
}
