package interaction

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
	"github.com/officina-protocol/officina-go/pkg/subscription"
	"github.com/officina-protocol/officina-go/pkg/wire"
)

// Server handles incoming officina requests against a fleet and manages
// subscriptions through the subscription manager.
type Server struct {
	mu sync.RWMutex

	fleet *model.Fleet
	subs  *subscription.Manager

	notifyHandler NotificationHandler
}

// NotificationHandler is called when a notification needs to be sent.
type NotificationHandler func(notif *wire.Notification)

// NewServer creates a new interaction server for the given fleet.
// Attribute changes on every machine feature are forwarded to the
// subscription manager.
func NewServer(fleet *model.Fleet, subs *subscription.Manager) *Server {
	s := &Server{
		fleet: fleet,
		subs:  subs,
	}

	for _, m := range fleet.Machines() {
		forwarder := &changeForwarder{machineID: m.ID(), subs: subs}
		for _, f := range m.Features() {
			f.Subscribe(forwarder)
		}
	}

	subs.OnNotification(s.dispatchNotification)

	return s
}

// changeForwarder feeds feature attribute changes into the subscription
// manager, adding the machine ID the feature itself does not know.
type changeForwarder struct {
	machineID uint8
	subs      *subscription.Manager
}

func (c *changeForwarder) OnAttributeChanged(featureType model.FeatureType, attrID uint16, value any) {
	c.subs.NotifyChange(c.machineID, uint8(featureType), attrID, value)
}

// SetNotificationHandler sets the handler for outgoing notifications.
func (s *Server) SetNotificationHandler(handler NotificationHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifyHandler = handler
}

// dispatchNotification converts a sampled value into a wire notification.
func (s *Server) dispatchNotification(n subscription.Notification) {
	s.mu.RLock()
	handler := s.notifyHandler
	s.mu.RUnlock()

	if handler == nil {
		return
	}

	handler(&wire.Notification{
		SubscriptionID: n.SubscriptionID,
		MachineID:      n.MachineID,
		FeatureID:      n.FeatureID,
		AttributeID:    n.AttributeID,
		Value:          n.Value,
		Timestamp:      n.Timestamp,
	})
}

// HandleRequest processes an incoming request and returns a response.
func (s *Server) HandleRequest(ctx context.Context, req *wire.Request) *wire.Response {
	switch req.Operation {
	case wire.OpRead:
		return s.handleRead(ctx, req)
	case wire.OpWrite:
		return s.handleWrite(ctx, req)
	case wire.OpSubscribe:
		return s.handleSubscribe(ctx, req)
	case wire.OpInvoke:
		return s.handleInvoke(ctx, req)
	case wire.OpBrowse:
		return s.handleBrowse(ctx, req)
	default:
		return errorResponse(req.MessageID, wire.StatusUnsupported, "unknown operation")
	}
}

// getFeature resolves the addressed feature or returns an error response.
func (s *Server) getFeature(req *wire.Request) (*model.Feature, *wire.Response) {
	feature, err := s.fleet.GetFeature(req.MachineID, model.FeatureType(req.FeatureID))
	if err != nil {
		if errors.Is(err, model.ErrMachineNotFound) {
			return nil, errorResponse(req.MessageID, wire.StatusInvalidMachine, "machine not found")
		}
		return nil, errorResponse(req.MessageID, wire.StatusInvalidFeature, "feature not found")
	}
	return feature, nil
}

// handleRead processes a Read request.
func (s *Server) handleRead(_ context.Context, req *wire.Request) *wire.Response {
	feature, errResp := s.getFeature(req)
	if errResp != nil {
		return errResp
	}

	attrIDs := wire.ExtractReadAttributeIDs(req.Payload)

	values := make(map[uint16]any)
	if len(attrIDs) == 0 {
		values = feature.ReadAllAttributes()
	} else {
		for _, id := range attrIDs {
			val, err := feature.ReadAttribute(id)
			if err != nil {
				return errorResponse(req.MessageID, wire.StatusInvalidAttribute, "attribute not found")
			}
			values[id] = val
		}
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload:   values,
	}
}

// handleWrite processes a Write request.
func (s *Server) handleWrite(_ context.Context, req *wire.Request) *wire.Response {
	feature, errResp := s.getFeature(req)
	if errResp != nil {
		return errResp
	}

	attrs := wire.ExtractWritePayload(req.Payload)
	if len(attrs) == 0 {
		return errorResponse(req.MessageID, wire.StatusInvalidArgument, "no attributes to write")
	}

	results := make(map[uint16]any)
	for id, val := range attrs {
		if err := feature.WriteAttribute(id, val); err != nil {
			return errorResponse(req.MessageID, writeErrorStatus(err), err.Error())
		}
		if readVal, err := feature.ReadAttribute(id); err == nil {
			results[id] = readVal
		} else {
			results[id] = val
		}
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload:   results,
	}
}

func writeErrorStatus(err error) wire.Status {
	switch {
	case errors.Is(err, model.ErrAttributeNotFound):
		return wire.StatusInvalidAttribute
	case errors.Is(err, model.ErrAttributeNotWritable):
		return wire.StatusReadOnly
	default:
		return wire.StatusInvalidArgument
	}
}

// handleSubscribe processes a Subscribe request.
// A request with machineId=0 and featureId=0 is an unsubscribe.
func (s *Server) handleSubscribe(ctx context.Context, req *wire.Request) *wire.Response {
	if req.MachineID == 0 && req.FeatureID == 0 {
		return s.handleUnsubscribe(ctx, req)
	}

	feature, errResp := s.getFeature(req)
	if errResp != nil {
		return errResp
	}

	sp := wire.ExtractSubscribePayload(req.Payload)
	if sp == nil {
		sp = &wire.SubscribePayload{DiscardOldest: true}
	}

	// Reject attribute IDs the feature does not have
	for _, attrID := range sp.AttributeIDs {
		if _, err := feature.GetAttribute(attrID); err != nil {
			return errorResponse(req.MessageID, wire.StatusInvalidAttribute, "attribute not found")
		}
	}

	subID, err := s.subs.Subscribe(
		req.MachineID,
		req.FeatureID,
		sp.AttributeIDs,
		time.Duration(sp.SamplingIntervalMs)*time.Millisecond,
		int(sp.QueueDepth),
		sp.DiscardOldest,
	)
	if err != nil {
		switch {
		case errors.Is(err, subscription.ErrInvalidInterval),
			errors.Is(err, subscription.ErrInvalidQueueDepth):
			return errorResponse(req.MessageID, wire.StatusInvalidArgument, err.Error())
		case errors.Is(err, subscription.ErrResourceExhausted):
			return errorResponse(req.MessageID, wire.StatusInternalError, err.Error())
		default:
			return errorResponse(req.MessageID, wire.StatusInternalError, err.Error())
		}
	}

	// Priming report: current values of the subscribed attributes
	currentValues := make(map[uint16]any)
	if len(sp.AttributeIDs) == 0 {
		currentValues = feature.ReadAllAttributes()
	} else {
		for _, id := range sp.AttributeIDs {
			if val, err := feature.ReadAttribute(id); err == nil {
				currentValues[id] = val
			}
		}
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload: &wire.SubscribeResponsePayload{
			SubscriptionID: subID,
			CurrentValues:  currentValues,
		},
	}
}

// handleUnsubscribe cancels a subscription.
func (s *Server) handleUnsubscribe(_ context.Context, req *wire.Request) *wire.Response {
	up := wire.ExtractUnsubscribePayload(req.Payload)
	if up == nil {
		return errorResponse(req.MessageID, wire.StatusInvalidArgument, "invalid unsubscribe payload")
	}

	if err := s.subs.Unsubscribe(up.SubscriptionID); err != nil {
		return errorResponse(req.MessageID, wire.StatusInvalidArgument, "subscription not found")
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
	}
}

// handleInvoke processes an Invoke request.
func (s *Server) handleInvoke(ctx context.Context, req *wire.Request) *wire.Response {
	feature, errResp := s.getFeature(req)
	if errResp != nil {
		return errResp
	}

	ip := wire.ExtractInvokePayload(req.Payload)
	if ip == nil {
		return errorResponse(req.MessageID, wire.StatusInvalidArgument, "invalid invoke payload")
	}

	params, _ := ip.Parameters.(map[string]any)

	result, err := feature.InvokeCommand(ctx, ip.CommandID, params)
	if err != nil {
		return errorResponse(req.MessageID, invokeErrorStatus(err), err.Error())
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload:   result,
	}
}

// invokeErrorStatus maps operation errors to wire status codes.
func invokeErrorStatus(err error) wire.Status {
	switch {
	case errors.Is(err, model.ErrCommandNotFound):
		return wire.StatusInvalidCommand
	case errors.Is(err, model.ErrInvalidParameters),
		errors.Is(err, machine.ErrStatusOutOfRange),
		errors.Is(err, machine.ErrSpeedOutOfRange):
		return wire.StatusInvalidArgument
	case errors.Is(err, machine.ErrMachineNotOn):
		return wire.StatusInvalidState
	case errors.Is(err, machine.ErrMaintenanceUnsupported):
		return wire.StatusUnsupported
	default:
		return wire.StatusInternalError
	}
}

// handleBrowse processes a Browse request. MachineID 0 lists the whole
// fleet; a non-zero machine ID returns just that machine.
func (s *Server) handleBrowse(_ context.Context, req *wire.Request) *wire.Response {
	var machines []*model.Machine
	if req.MachineID == 0 {
		machines = s.fleet.Machines()
	} else {
		m, err := s.fleet.GetMachine(req.MachineID)
		if err != nil {
			return errorResponse(req.MessageID, wire.StatusInvalidMachine, "machine not found")
		}
		machines = []*model.Machine{m}
	}

	entries := make([]wire.MachineEntry, 0, len(machines))
	for _, m := range machines {
		features := m.Features()
		featureIDs := make([]uint8, 0, len(features))
		for _, f := range features {
			featureIDs = append(featureIDs, uint8(f.Type()))
		}
		entries = append(entries, wire.MachineEntry{
			ID:       m.ID(),
			Name:     m.Name(),
			Kind:     uint8(m.Kind()),
			Features: featureIDs,
		})
	}

	return &wire.Response{
		MessageID: req.MessageID,
		Status:    wire.StatusSuccess,
		Payload: &wire.BrowseResponsePayload{
			PlantName: s.fleet.PlantName(),
			Machines:  entries,
		},
	}
}

// CancelAllSubscriptions cancels all subscriptions (e.g., on disconnect).
func (s *Server) CancelAllSubscriptions() {
	s.subs.ClearAll()
}

// SubscriptionCount returns the number of active subscriptions.
func (s *Server) SubscriptionCount() int {
	return s.subs.Count()
}

// errorResponse creates an error response.
func errorResponse(msgID uint32, status wire.Status, message string) *wire.Response {
	return &wire.Response{
		MessageID: msgID,
		Status:    status,
		Payload:   &wire.ErrorPayload{Message: message},
	}
}
