package plant

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/officina-protocol/officina-go/pkg/config"
	"github.com/officina-protocol/officina-go/pkg/discovery"
	"github.com/officina-protocol/officina-go/pkg/interaction"
	"github.com/officina-protocol/officina-go/pkg/log"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
	"github.com/officina-protocol/officina-go/pkg/subscription"
	"github.com/officina-protocol/officina-go/pkg/transport"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

// Service orchestrates a plant server: it binds the machine fleet to
// the interaction layer and exposes it over framed TCP, optionally
// advertising via mDNS.
type Service struct {
	mu sync.RWMutex

	config Config
	state  ServiceState

	fleet    *model.Fleet
	machines map[uint8]*machine.CNC

	subs    *subscription.Manager
	handler *interaction.Server
	server  *transport.Server

	advertiser discovery.Advertiser

	production *productionLoop
}

// NewService creates a plant service for the given machines.
func NewService(plantName string, machines []*machine.CNC, cfg Config) (*Service, error) {
	if plantName == "" {
		return nil, fmt.Errorf("%w: plant name is required", ErrInvalidConfig)
	}
	if len(machines) == 0 {
		return nil, ErrNoMachines
	}

	fleet := model.NewFleet(plantName)
	byID := make(map[uint8]*machine.CNC, len(machines))
	for _, cnc := range machines {
		if err := fleet.AddMachine(cnc.Machine()); err != nil {
			return nil, err
		}
		byID[cnc.Machine().ID()] = cnc
	}

	subs := subscription.NewManager()
	handler := interaction.NewServer(fleet, subs)

	s := &Service{
		config:   cfg,
		state:    StateIdle,
		fleet:    fleet,
		machines: byID,
		subs:     subs,
		handler:  handler,
	}
	subs.OnOverflow(s.logSubscriptionOverflow)

	return s, nil
}

// FromConfig builds a plant service from a loaded configuration file.
// The overrides argument supplies settings the file does not carry,
// such as the protocol logger.
func FromConfig(pc *config.PlantConfig, overrides Config) (*Service, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	machines := make([]*machine.CNC, 0, len(pc.Machines))
	for i := range pc.Machines {
		mc := &pc.Machines[i]
		kind, err := mc.MachineKind()
		if err != nil {
			return nil, err
		}

		var opts []machine.Option
		if mc.Tool != "" {
			opts = append(opts, machine.WithTool(mc.Tool))
		}

		var cnc *machine.CNC
		if kind == model.KindPro {
			cnc = machine.NewPro(mc.ID, mc.Name, opts...)
		} else {
			cnc = machine.NewBase(mc.ID, mc.Name, opts...)
		}
		machines = append(machines, cnc)
	}

	cfg := Config{
		ListenAddress:      pc.ListenAddress,
		Advertise:          pc.Advertise,
		ProductionInterval: pc.ProductionInterval(),
		MaxMessageSize:     overrides.MaxMessageSize,
		Logger:             overrides.Logger,
	}

	return NewService(pc.PlantName, machines, cfg)
}

// Fleet returns the underlying fleet model.
func (s *Service) Fleet() *model.Fleet {
	return s.fleet
}

// GetMachine returns the assembled machine with the given ID.
func (s *Service) GetMachine(id uint8) (*machine.CNC, bool) {
	cnc, ok := s.machines[id]
	return cnc, ok
}

// State returns the current service state.
func (s *Service) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Start starts the plant service.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	// Outgoing notifications go to every connected controller.
	s.handler.SetNotificationHandler(s.broadcastNotification)

	server, err := transport.NewServer(transport.ServerConfig{
		Address:        s.config.ListenAddress,
		MaxMessageSize: s.config.MaxMessageSize,
		Logger:         s.config.Logger,
		OnMessage:      s.handleMessage,
		OnDisconnect:   s.handleDisconnect,
	})
	if err != nil {
		s.setState(StateStopped)
		return err
	}
	s.server = server

	if err := server.Start(ctx); err != nil {
		s.setState(StateStopped)
		return err
	}

	if s.config.Advertise {
		advertiser, err := discovery.NewMDNSAdvertiser(discovery.DefaultAdvertiserConfig())
		if err != nil {
			_ = server.Stop()
			s.setState(StateStopped)
			return err
		}

		info := &discovery.PlantInfo{
			PlantName:    s.fleet.PlantName(),
			MachineCount: uint8(s.fleet.MachineCount()),
			Port:         listenPort(server.Addr()),
		}
		if err := advertiser.AdvertisePlant(ctx, info); err != nil {
			_ = server.Stop()
			s.setState(StateStopped)
			return err
		}
		s.advertiser = advertiser
	}

	if s.config.ProductionInterval > 0 {
		s.production = newProductionLoop(s.machines, s.config.ProductionInterval)
		s.production.Start()
	}

	s.setState(StateRunning)
	return nil
}

// Stop stops the plant service.
func (s *Service) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	if s.production != nil {
		s.production.Stop()
		s.production = nil
	}

	if s.advertiser != nil {
		s.advertiser.Stop()
		s.advertiser = nil
	}

	s.handler.CancelAllSubscriptions()

	var err error
	if s.server != nil {
		err = s.server.Stop()
		s.server = nil
	}

	s.setState(StateStopped)
	return err
}

// Addr returns the server's listen address, or nil if not started.
func (s *Service) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return nil
	}
	return s.server.Addr()
}

// ConnectionCount returns the number of connected controllers.
func (s *Service) ConnectionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.server == nil {
		return 0
	}
	return s.server.ConnectionCount()
}

// SubscriptionCount returns the number of active subscriptions.
func (s *Service) SubscriptionCount() int {
	return s.handler.SubscriptionCount()
}

func (s *Service) setState(state ServiceState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// handleMessage decodes an incoming message and dispatches requests.
func (s *Service) handleMessage(conn *transport.ServerConn, data []byte) {
	msgType, err := wire.PeekMessageType(data)
	if err != nil {
		return
	}
	if msgType != wire.MessageTypeRequest {
		// Controllers only send requests.
		return
	}

	req, err := wire.DecodeRequest(data)
	if err != nil {
		return
	}

	resp := s.handler.HandleRequest(context.Background(), req)
	if resp == nil {
		return
	}

	encoded, err := wire.EncodeResponse(resp)
	if err != nil {
		return
	}
	_ = conn.Send(encoded)
}

// logSubscriptionOverflow records samples discarded by a
// subscription's overflow policy.
func (s *Service) logSubscriptionOverflow(subscriptionID uint32, dropped uint64) {
	if s.config.Logger == nil {
		return
	}
	s.config.Logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryError,
		LocalRole: log.RolePlant,
		PlantName: s.fleet.PlantName(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerService,
			Message: fmt.Sprintf("subscription %d discarded %d samples on overflow", subscriptionID, dropped),
			Context: "sampling",
		},
	})
}

// handleDisconnect drops subscriptions when the last controller leaves.
func (s *Service) handleDisconnect(conn *transport.ServerConn) {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()

	if server != nil && server.ConnectionCount() == 0 {
		s.handler.CancelAllSubscriptions()
	}
}

// broadcastNotification sends a notification to all connected controllers.
func (s *Service) broadcastNotification(notif *wire.Notification) {
	s.mu.RLock()
	server := s.server
	s.mu.RUnlock()
	if server == nil {
		return
	}

	encoded, err := wire.EncodeNotification(notif)
	if err != nil {
		return
	}

	for _, conn := range server.Connections() {
		_ = conn.Send(encoded)
	}
}

// listenPort extracts the port from a listener address.
func listenPort(addr net.Addr) uint16 {
	if addr == nil {
		return 0
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return uint16(tcp.Port)
	}
	return 0
}
