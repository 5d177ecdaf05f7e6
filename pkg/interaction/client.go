package interaction

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/officina-protocol/officina-go/pkg/wire"
)

// Client errors.
var (
	ErrRequestTimeout  = errors.New("request timed out")
	ErrClientClosed    = errors.New("client is closed")
	ErrUnexpectedReply = errors.New("unexpected reply")
)

// RequestSender is the interface for sending requests over a connection.
type RequestSender interface {
	// Send sends an encoded request frame.
	Send(data []byte) error
}

// Client provides a high-level API for making officina requests.
type Client struct {
	mu sync.RWMutex

	sender  RequestSender
	timeout time.Duration

	// Message ID generator
	nextMsgID uint32

	// Pending requests awaiting responses
	pending   map[uint32]chan *wire.Response
	pendingMu sync.RWMutex

	// Notification handler
	notifyHandler func(*wire.Notification)

	closed bool
}

// NewClient creates a new interaction client.
func NewClient(sender RequestSender) *Client {
	return &Client{
		sender:    sender,
		timeout:   30 * time.Second,
		nextMsgID: 1,
		pending:   make(map[uint32]chan *wire.Response),
	}
}

// SetTimeout sets the request timeout.
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeout = timeout
}

// SetNotificationHandler sets the handler for incoming notifications.
func (c *Client) SetNotificationHandler(handler func(*wire.Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notifyHandler = handler
}

// Close closes the client.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true

	// Cancel all pending requests
	c.pendingMu.Lock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[uint32]chan *wire.Response)
	c.pendingMu.Unlock()

	return nil
}

// nextMessageID generates the next unique message ID.
func (c *Client) nextMessageID() uint32 {
	return atomic.AddUint32(&c.nextMsgID, 1)
}

// sendRequest sends a request and waits for the response.
func (c *Client) sendRequest(ctx context.Context, req *wire.Request) (*wire.Response, error) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return nil, ErrClientClosed
	}
	timeout := c.timeout
	c.mu.RUnlock()

	respCh := make(chan *wire.Response, 1)

	c.pendingMu.Lock()
	c.pending[req.MessageID] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, req.MessageID)
		c.pendingMu.Unlock()
	}()

	data, err := wire.EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	if err := c.sender.Send(data); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(timeout):
		return nil, ErrRequestTimeout
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrClientClosed
		}
		return resp, nil
	}
}

// HandleResponse should be called when a response is received.
func (c *Client) HandleResponse(resp *wire.Response) error {
	c.pendingMu.RLock()
	ch, exists := c.pending[resp.MessageID]
	c.pendingMu.RUnlock()

	if !exists {
		return ErrUnexpectedReply
	}

	select {
	case ch <- resp:
	default:
		// Channel full or closed
	}
	return nil
}

// HandleNotification should be called when a notification is received.
func (c *Client) HandleNotification(notif *wire.Notification) {
	c.mu.RLock()
	handler := c.notifyHandler
	c.mu.RUnlock()

	if handler != nil {
		handler(notif)
	}
}

// Read reads attributes from a machine feature.
// If attrIDs is nil or empty, all attributes are read.
func (c *Client) Read(ctx context.Context, machineID uint8, featureID uint8, attrIDs []uint16) (map[uint16]any, error) {
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpRead,
		MachineID: machineID,
		FeatureID: featureID,
	}
	if len(attrIDs) > 0 {
		req.Payload = &wire.ReadPayload{AttributeIDs: attrIDs}
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Status.IsSuccess() {
		return nil, statusError(resp.Status, resp.Payload)
	}

	values := wire.ExtractAttributeValues(resp.Payload)
	if values == nil {
		return nil, ErrUnexpectedReply
	}
	return values, nil
}

// Write writes attributes to a machine feature and returns the values
// after the write.
func (c *Client) Write(ctx context.Context, machineID uint8, featureID uint8, attrs map[uint16]any) (map[uint16]any, error) {
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpWrite,
		MachineID: machineID,
		FeatureID: featureID,
		Payload:   attrs,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Status.IsSuccess() {
		return nil, statusError(resp.Status, resp.Payload)
	}

	return wire.ExtractAttributeValues(resp.Payload), nil
}

// SubscribeOptions configures a subscription.
type SubscribeOptions struct {
	// AttributeIDs limits the subscription to specific attributes.
	// Empty means subscribe to all attributes.
	AttributeIDs []uint16

	// SamplingInterval is the queue drain period (default 1s).
	SamplingInterval time.Duration

	// QueueDepth is the per-attribute buffer capacity (default 10).
	QueueDepth uint8

	// DiscardOldest selects the overflow policy.
	DiscardOldest bool
}

// Subscribe subscribes to attribute changes on a machine feature.
// Returns the subscription ID and the initial attribute values.
func (c *Client) Subscribe(ctx context.Context, machineID uint8, featureID uint8, opts *SubscribeOptions) (uint32, map[uint16]any, error) {
	payload := &wire.SubscribePayload{DiscardOldest: true}
	if opts != nil {
		payload.AttributeIDs = opts.AttributeIDs
		payload.SamplingIntervalMs = uint32(opts.SamplingInterval.Milliseconds())
		payload.QueueDepth = opts.QueueDepth
		payload.DiscardOldest = opts.DiscardOldest
	}

	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpSubscribe,
		MachineID: machineID,
		FeatureID: featureID,
		Payload:   payload,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return 0, nil, err
	}

	if !resp.Status.IsSuccess() {
		return 0, nil, statusError(resp.Status, resp.Payload)
	}

	switch p := resp.Payload.(type) {
	case *wire.SubscribeResponsePayload:
		return p.SubscriptionID, p.CurrentValues, nil
	case wire.SubscribeResponsePayload:
		return p.SubscriptionID, p.CurrentValues, nil
	case map[any]any:
		var subID uint32
		var values map[uint16]any
		if v, ok := p[uint64(1)].(uint64); ok {
			subID = uint32(v)
		}
		if v, ok := p[uint64(2)]; ok {
			values = wire.ExtractAttributeValues(v)
		}
		return subID, values, nil
	default:
		return 0, nil, ErrUnexpectedReply
	}
}

// Unsubscribe cancels a subscription.
func (c *Client) Unsubscribe(ctx context.Context, subscriptionID uint32) error {
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpSubscribe,
		MachineID: 0, // Indicates unsubscribe
		FeatureID: 0,
		Payload:   &wire.UnsubscribePayload{SubscriptionID: subscriptionID},
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return err
	}

	if !resp.Status.IsSuccess() {
		return statusError(resp.Status, resp.Payload)
	}

	return nil
}

// Invoke executes a command on a machine feature.
func (c *Client) Invoke(ctx context.Context, machineID uint8, featureID uint8, commandID uint8, params map[string]any) (any, error) {
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpInvoke,
		MachineID: machineID,
		FeatureID: featureID,
		Payload: &wire.InvokePayload{
			CommandID:  commandID,
			Parameters: params,
		},
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Status.IsSuccess() {
		return nil, statusError(resp.Status, resp.Payload)
	}

	return resp.Payload, nil
}

// Browse lists the machines of a plant. MachineID 0 lists the whole
// fleet; a non-zero machine ID returns just that machine.
func (c *Client) Browse(ctx context.Context, machineID uint8) (*wire.BrowseResponsePayload, error) {
	req := &wire.Request{
		MessageID: c.nextMessageID(),
		Operation: wire.OpBrowse,
		MachineID: machineID,
	}

	resp, err := c.sendRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	if !resp.Status.IsSuccess() {
		return nil, statusError(resp.Status, resp.Payload)
	}

	switch p := resp.Payload.(type) {
	case *wire.BrowseResponsePayload:
		return p, nil
	case wire.BrowseResponsePayload:
		return &p, nil
	case map[any]any:
		return extractBrowsePayload(p), nil
	default:
		return nil, ErrUnexpectedReply
	}
}

// extractBrowsePayload decodes a raw CBOR browse response map.
func extractBrowsePayload(m map[any]any) *wire.BrowseResponsePayload {
	out := &wire.BrowseResponsePayload{}
	if v, ok := m[uint64(1)].(string); ok {
		out.PlantName = v
	}
	arr, _ := m[uint64(2)].([]any)
	for _, item := range arr {
		em, ok := item.(map[any]any)
		if !ok {
			continue
		}
		var entry wire.MachineEntry
		if v, ok := em[uint64(1)].(uint64); ok {
			entry.ID = uint8(v)
		}
		if v, ok := em[uint64(2)].(string); ok {
			entry.Name = v
		}
		if v, ok := em[uint64(3)].(uint64); ok {
			entry.Kind = uint8(v)
		}
		if features, ok := em[uint64(4)].([]any); ok {
			for _, f := range features {
				if v, ok := f.(uint64); ok {
					entry.Features = append(entry.Features, uint8(v))
				}
			}
		}
		out.Machines = append(out.Machines, entry)
	}
	return out
}

// StatusError represents an error response from the server.
type StatusError struct {
	Status  wire.Status
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Status.String()
}

// statusError creates an error from a response status.
func statusError(status wire.Status, payload any) error {
	msg := ""
	switch ep := payload.(type) {
	case *wire.ErrorPayload:
		msg = ep.Message
	case wire.ErrorPayload:
		msg = ep.Message
	case map[any]any:
		if v, ok := ep[uint64(1)].(string); ok {
			msg = v
		}
	}
	return &StatusError{Status: status, Message: msg}
}
