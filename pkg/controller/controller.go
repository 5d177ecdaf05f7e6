package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/officina-protocol/officina-go/pkg/connection"
	"github.com/officina-protocol/officina-go/pkg/discovery"
	"github.com/officina-protocol/officina-go/pkg/interaction"
	"github.com/officina-protocol/officina-go/pkg/log"
	"github.com/officina-protocol/officina-go/pkg/transport"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

// Controller errors.
var (
	ErrNotStarted      = errors.New("controller not started")
	ErrAlreadyStarted  = errors.New("controller already started")
	ErrNoPlantAddress  = errors.New("no plant address and discovery disabled")
	ErrPlantNotFound   = errors.New("plant not found")
	ErrMachineNotFound = errors.New("machine not found")
)

// Config configures a Controller.
type Config struct {
	// PlantAddress is the plant server address ("host:port").
	// Empty means discover via mDNS.
	PlantAddress string

	// PlantName filters mDNS discovery to a specific plant.
	PlantName string

	// DiscoveryTimeout bounds mDNS discovery (default: 10s).
	DiscoveryTimeout time.Duration

	// RequestTimeout bounds individual requests (default: 30s).
	RequestTimeout time.Duration

	// SamplingInterval is the subscription sampling interval.
	// Zero means the server default (1000 ms).
	SamplingInterval time.Duration

	// QueueDepth is the per-attribute sample queue depth.
	// Zero means the server default (10).
	QueueDepth uint8

	// Logger is the optional protocol logger.
	Logger log.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DiscoveryTimeout: 10 * time.Second,
		RequestTimeout:   30 * time.Second,
	}
}

// Controller is a plant client: it connects to a plant server,
// discovers its machines, and exposes typed operations on them.
// Lost connections are reestablished with exponential backoff.
type Controller struct {
	mu sync.RWMutex

	config  Config
	address string
	started bool

	connMgr *connection.Manager
	conn    *transport.ClientConn
	client  *interaction.Client

	reporter *ReconnectReporter

	// Discovered machines by name
	machines []Machine

	// Sticky notification handler, reapplied after each reconnect.
	notifHandler func(*wire.Notification)

	// Called after every successful (re)connect.
	onConnected func()
}

// NewController creates a new controller.
func NewController(config Config) *Controller {
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 30 * time.Second
	}
	if config.DiscoveryTimeout == 0 {
		config.DiscoveryTimeout = 10 * time.Second
	}

	c := &Controller{
		config:   config,
		reporter: NewReconnectReporter(),
	}
	return c
}

// Reporter returns the controller's reconnect reporter.
func (c *Controller) Reporter() *ReconnectReporter {
	return c.reporter
}

// OnConnected sets a callback invoked after every successful
// connect or reconnect. Monitors use it to resubscribe.
func (c *Controller) OnConnected(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onConnected = fn
}

// Start resolves the plant address and establishes the connection.
// The reconnect loop keeps the connection alive until Stop is called.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	address, err := c.resolveAddress(ctx)
	if err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		return err
	}

	c.mu.Lock()
	c.address = address
	c.connMgr = connection.NewManager(c.dial)
	c.connMgr.OnReconnecting(c.reporter.Record)
	c.connMgr.OnConnected(c.notifyConnected)
	c.connMgr.StartReconnectLoop()
	mgr := c.connMgr
	c.mu.Unlock()

	if err := mgr.Connect(ctx); err != nil {
		c.mu.Lock()
		c.started = false
		c.mu.Unlock()
		mgr.Close()
		return err
	}

	return nil
}

// Stop closes the connection and stops reconnection.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return ErrNotStarted
	}
	c.started = false
	mgr := c.connMgr
	conn := c.conn
	client := c.client
	c.connMgr = nil
	c.conn = nil
	c.client = nil
	c.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if mgr != nil {
		mgr.Close()
	}
	return nil
}

// IsConnected returns true while the plant connection is up.
func (c *Controller) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connMgr != nil && c.connMgr.IsConnected()
}

// Client returns the current interaction client, or nil when
// disconnected.
func (c *Controller) Client() *interaction.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// Address returns the resolved plant address.
func (c *Controller) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// resolveAddress picks the configured address or discovers one via mDNS.
func (c *Controller) resolveAddress(ctx context.Context) (string, error) {
	if c.config.PlantAddress != "" {
		return c.config.PlantAddress, nil
	}

	browser, err := discovery.NewMDNSBrowser(discovery.DefaultBrowserConfig())
	if err != nil {
		return "", err
	}
	defer browser.Stop()

	browseCtx, cancel := context.WithTimeout(ctx, c.config.DiscoveryTimeout)
	defer cancel()

	var svc *discovery.PlantService
	if c.config.PlantName != "" {
		svc, err = browser.FindByName(browseCtx, c.config.PlantName)
	} else {
		svc, err = firstPlant(browseCtx, browser)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPlantNotFound, err)
	}

	if len(svc.Addresses) > 0 {
		return fmt.Sprintf("%s:%d", svc.Addresses[0], svc.Port), nil
	}
	return fmt.Sprintf("%s:%d", svc.Host, svc.Port), nil
}

// firstPlant returns the first plant service seen on the network.
func firstPlant(ctx context.Context, browser discovery.Browser) (*discovery.PlantService, error) {
	results, err := browser.BrowsePlants(ctx)
	if err != nil {
		return nil, err
	}

	select {
	case svc, ok := <-results:
		if !ok {
			return nil, discovery.ErrNotFound
		}
		return svc, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// dial establishes the transport connection and starts the read pump.
// It is called by the connection manager on connect and reconnect.
func (c *Controller) dial(ctx context.Context) error {
	tc, err := transport.NewClient(transport.ClientConfig{Logger: c.config.Logger})
	if err != nil {
		return err
	}

	c.mu.RLock()
	address := c.address
	c.mu.RUnlock()

	conn, err := tc.Connect(ctx, address)
	if err != nil {
		return err
	}

	client := interaction.NewClient(conn)
	client.SetTimeout(c.config.RequestTimeout)

	c.mu.Lock()
	oldClient := c.client
	c.conn = conn
	c.client = client
	handler := c.notifHandler
	c.mu.Unlock()

	if oldClient != nil {
		_ = oldClient.Close()
	}
	if handler != nil {
		client.SetNotificationHandler(handler)
	}

	go c.readPump(conn, client)
	return nil
}

func (c *Controller) readPump(conn *transport.ClientConn, client *interaction.Client) {
	for {
		data, err := conn.Receive(0)
		if err != nil {
			break
		}

		msgType, err := wire.PeekMessageType(data)
		if err != nil {
			continue
		}

		switch msgType {
		case wire.MessageTypeResponse:
			if resp, err := wire.DecodeResponse(data); err == nil {
				_ = client.HandleResponse(resp)
			}
		case wire.MessageTypeNotification:
			if notif, err := wire.DecodeNotification(data); err == nil {
				client.HandleNotification(notif)
			}
		}
	}

	// Connection lost: trigger reconnection unless we are stopping.
	c.mu.RLock()
	mgr := c.connMgr
	current := c.conn == conn
	c.mu.RUnlock()

	if mgr != nil && current {
		mgr.NotifyConnectionLost()
	}
}

// SetNotificationHandler sets the handler for incoming notifications.
// The handler survives reconnects.
func (c *Controller) SetNotificationHandler(fn func(*wire.Notification)) {
	c.mu.Lock()
	c.notifHandler = fn
	client := c.client
	c.mu.Unlock()

	if client != nil {
		client.SetNotificationHandler(fn)
	}
}

func (c *Controller) notifyConnected() {
	c.mu.RLock()
	fn := c.onConnected
	c.mu.RUnlock()
	if fn != nil {
		fn()
	}
}
