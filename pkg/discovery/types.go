package discovery

import (
	"context"
	"errors"
	"time"
)

// Service type constants for mDNS.
const (
	// ServiceTypePlant is the service type advertised by plant servers.
	ServiceTypePlant = "_officina._tcp"

	// Domain is the mDNS domain.
	Domain = "local"

	// DefaultPort is the default plant server port.
	DefaultPort = 4840
)

// TXT record key constants.
const (
	TXTKeyPlantName    = "PN"  // Plant name
	TXTKeyMachineCount = "MC"  // Number of machines in the fleet (optional)
	TXTKeyVersion      = "VER" // Protocol version (optional)
)

// Timing constants.
const (
	// BrowseTimeout is the default timeout for mDNS browsing.
	BrowseTimeout = 10 * time.Second
)

// Limits.
const (
	// MaxInstanceNameLen is the DNS label limit.
	MaxInstanceNameLen = 63

	// MaxTXTRecordSize is the maximum total TXT record size.
	MaxTXTRecordSize = 400
)

// Discovery errors.
var (
	ErrInvalidTXTRecord    = errors.New("invalid TXT record format")
	ErrMissingRequired     = errors.New("missing required field")
	ErrInstanceNameTooLong = errors.New("instance name exceeds 63 characters")
	ErrNotFound            = errors.New("service not found")
	ErrBrowseTimeout       = errors.New("browse timeout")
)

// PlantInfo holds the data a plant server advertises about itself.
type PlantInfo struct {
	// PlantName is the plant's configured name.
	PlantName string

	// MachineCount is the number of machines in the fleet (optional).
	MachineCount uint8

	// Version is the protocol version string (optional).
	Version string

	// Port is the service port. Zero means DefaultPort.
	Port uint16
}

// PlantService represents a plant server found via mDNS.
type PlantService struct {
	// InstanceName is the mDNS instance name.
	InstanceName string

	// Host is the hostname (e.g., "plant-01.local").
	Host string

	// Port is the service port.
	Port uint16

	// Addresses contains resolved IP addresses.
	Addresses []string

	// PlantName is the plant name (from TXT "PN").
	PlantName string

	// MachineCount is the optional machine count (from TXT "MC").
	MachineCount uint8

	// Version is the optional protocol version (from TXT "VER").
	Version string
}

// Advertiser provides mDNS service advertising capabilities.
type Advertiser interface {
	// AdvertisePlant starts advertising the plant service.
	AdvertisePlant(ctx context.Context, info *PlantInfo) error

	// UpdatePlant updates TXT records for the plant service.
	UpdatePlant(info *PlantInfo) error

	// Stop stops all advertisements.
	Stop()
}

// Browser provides mDNS service browsing capabilities.
type Browser interface {
	// BrowsePlants searches for plant servers.
	// The channel is closed when the context is cancelled.
	BrowsePlants(ctx context.Context) (<-chan *PlantService, error)

	// FindByName searches for a plant with a specific plant name.
	// Returns when found or when the context is cancelled.
	FindByName(ctx context.Context, plantName string) (*PlantService, error)

	// Stop stops all active browsing operations.
	Stop()
}

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL.
	// Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{
		Interface: "",
		TTL:       120 * time.Second,
	}
}

// BrowserConfig configures browser behavior.
type BrowserConfig struct {
	// BrowseTimeout is the default timeout for browse operations.
	// Default: 10 seconds.
	BrowseTimeout time.Duration

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string
}

// DefaultBrowserConfig returns the default browser configuration.
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		BrowseTimeout: BrowseTimeout,
		Interface:     "",
	}
}
