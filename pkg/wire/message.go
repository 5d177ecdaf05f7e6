package wire

import (
	"fmt"
	"time"
)

// CBOR map keys for message encoding.
// All officina messages use integer keys for efficiency.
const (
	// Common message keys
	KeyMessageID  = 1
	KeyOpOrStatus = 2 // Operation (request) or Status (response)
	KeyMachineID  = 3
	KeyFeatureID  = 4
	KeyPayload    = 5
)

// MessageID 0 is reserved to indicate a notification message.
const NotificationMessageID uint32 = 0

// Request represents a request message from controller to plant.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32
//	  2: operation,    // uint8: 1=Read, 2=Write, 3=Subscribe, 4=Invoke, 5=Browse
//	  3: machineId,    // uint8 (0 for fleet-wide browse)
//	  4: featureId,    // uint8
//	  5: payload       // operation-specific data
//	}
type Request struct {
	MessageID uint32    `cbor:"1,keyasint"`
	Operation Operation `cbor:"2,keyasint"`
	MachineID uint8     `cbor:"3,keyasint,omitempty"`
	FeatureID uint8     `cbor:"4,keyasint,omitempty"`
	Payload   any       `cbor:"5,keyasint,omitempty"`
}

// Validate checks if the request is valid.
func (r *Request) Validate() error {
	if r.MessageID == NotificationMessageID {
		return fmt.Errorf("messageId 0 is reserved for notifications")
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("invalid operation: %d", r.Operation)
	}
	return nil
}

// Response represents a response message from plant to controller.
//
// CBOR encoding:
//
//	{
//	  1: messageId,    // uint32: matches request
//	  2: status,       // uint8: 0=success, or error code
//	  3: payload       // operation-specific response data
//	}
type Response struct {
	MessageID uint32 `cbor:"1,keyasint"`
	Status    Status `cbor:"2,keyasint"`
	Payload   any    `cbor:"3,keyasint,omitempty"`
}

// IsSuccess returns true if the response indicates success.
func (r *Response) IsSuccess() bool {
	return r.Status.IsSuccess()
}

// Notification carries one sampled attribute value to a subscriber.
//
// CBOR encoding:
//
//	{
//	  1: 0,                // messageId 0 = notification
//	  2: subscriptionId,   // uint32
//	  3: machineId,        // uint8
//	  4: featureId,        // uint8
//	  5: attributeId,      // uint16
//	  6: value,            // attribute value
//	  7: timestamp         // unix time
//	}
type Notification struct {
	SubscriptionID uint32    `cbor:"2,keyasint"`
	MachineID      uint8     `cbor:"3,keyasint"`
	FeatureID      uint8     `cbor:"4,keyasint"`
	AttributeID    uint16    `cbor:"5,keyasint"`
	Value          any       `cbor:"6,keyasint"`
	Timestamp      time.Time `cbor:"7,keyasint"`
}

// ReadPayload represents the payload for a Read request.
// An empty attribute list reads all readable attributes.
type ReadPayload struct {
	AttributeIDs []uint16 `cbor:"1,keyasint,omitempty"`
}

// SubscribePayload represents the payload for a Subscribe request.
//
// CBOR encoding:
//
//	{
//	  1: attributeIds,       // array (empty = all)
//	  2: samplingIntervalMs, // uint32
//	  3: queueDepth,         // uint8: per-attribute queue depth
//	  4: discardOldest       // bool: overflow policy
//	}
type SubscribePayload struct {
	AttributeIDs       []uint16 `cbor:"1,keyasint,omitempty"`
	SamplingIntervalMs uint32   `cbor:"2,keyasint,omitempty"`
	QueueDepth         uint8    `cbor:"3,keyasint,omitempty"`
	DiscardOldest      bool     `cbor:"4,keyasint,omitempty"`
}

// SubscribeResponsePayload is the response to a Subscribe request.
// CurrentValues is the priming report with the values at subscribe time.
type SubscribeResponsePayload struct {
	SubscriptionID uint32         `cbor:"1,keyasint"`
	CurrentValues  map[uint16]any `cbor:"2,keyasint,omitempty"`
}

// UnsubscribePayload cancels a subscription
// (sent as Subscribe with machineId=0, featureId=0).
type UnsubscribePayload struct {
	SubscriptionID uint32 `cbor:"1,keyasint"`
}

// InvokePayload represents the payload for an Invoke request.
type InvokePayload struct {
	CommandID  uint8 `cbor:"1,keyasint"`
	Parameters any   `cbor:"2,keyasint,omitempty"`
}

// ErrorPayload carries a diagnostic message with an error response.
type ErrorPayload struct {
	Message string `cbor:"1,keyasint"`
}

// MachineEntry describes one machine in a browse response.
// Kind is 0 for Base (browse prefix "CNC") and 1 for Pro ("CNCPro").
type MachineEntry struct {
	ID       uint8   `cbor:"1,keyasint"`
	Name     string  `cbor:"2,keyasint"`
	Kind     uint8   `cbor:"3,keyasint"`
	Features []uint8 `cbor:"4,keyasint"`
}

// BrowseResponsePayload is the response to a Browse request.
type BrowseResponsePayload struct {
	PlantName string         `cbor:"1,keyasint,omitempty"`
	Machines  []MachineEntry `cbor:"2,keyasint"`
}

// ExtractReadAttributeIDs extracts attribute IDs from a read request
// payload. After CBOR round-trip the Payload is a raw map (map[any]any),
// not *ReadPayload, so this function handles both typed and untyped forms.
func ExtractReadAttributeIDs(payload any) []uint16 {
	if payload == nil {
		return nil
	}

	// Typed form (used before encoding)
	if rp, ok := payload.(*ReadPayload); ok {
		return rp.AttributeIDs
	}

	// Raw CBOR map: {uint64(1): []any{uint64(id), ...}}
	var arr []any
	switch m := payload.(type) {
	case map[any]any:
		if v, ok := m[uint64(1)]; ok {
			arr, _ = v.([]any)
		}
	case map[uint64]any:
		if v, ok := m[uint64(1)]; ok {
			arr, _ = v.([]any)
		}
	default:
		return nil
	}

	if len(arr) == 0 {
		return nil
	}

	ids := make([]uint16, 0, len(arr))
	for _, item := range arr {
		switch v := item.(type) {
		case uint64:
			ids = append(ids, uint16(v))
		case int64:
			ids = append(ids, uint16(v))
		}
	}
	return ids
}

// ExtractSubscribePayload extracts a subscribe payload from a raw
// CBOR-decoded value. Returns nil if there is no payload.
func ExtractSubscribePayload(payload any) *SubscribePayload {
	if payload == nil {
		return nil
	}
	if sp, ok := payload.(*SubscribePayload); ok {
		return sp
	}

	m := toUintKeyMap(payload)
	if m == nil {
		return nil
	}

	sp := &SubscribePayload{}
	if arr, ok := m[1].([]any); ok {
		for _, item := range arr {
			switch v := item.(type) {
			case uint64:
				sp.AttributeIDs = append(sp.AttributeIDs, uint16(v))
			case int64:
				sp.AttributeIDs = append(sp.AttributeIDs, uint16(v))
			}
		}
	}
	if v, ok := m[2].(uint64); ok {
		sp.SamplingIntervalMs = uint32(v)
	}
	if v, ok := m[3].(uint64); ok {
		sp.QueueDepth = uint8(v)
	}
	if v, ok := m[4].(bool); ok {
		sp.DiscardOldest = v
	}

	return sp
}

// ExtractUnsubscribePayload extracts an unsubscribe payload from a raw
// CBOR-decoded value.
func ExtractUnsubscribePayload(payload any) *UnsubscribePayload {
	if up, ok := payload.(*UnsubscribePayload); ok {
		return up
	}

	m := toUintKeyMap(payload)
	if m == nil {
		return nil
	}
	if v, ok := m[1].(uint64); ok {
		return &UnsubscribePayload{SubscriptionID: uint32(v)}
	}
	return nil
}

// ExtractInvokePayload extracts an invoke payload from a raw
// CBOR-decoded value.
func ExtractInvokePayload(payload any) *InvokePayload {
	if ip, ok := payload.(*InvokePayload); ok {
		return ip
	}

	m := toUintKeyMap(payload)
	if m == nil {
		return nil
	}

	ip := &InvokePayload{}
	if v, ok := m[1].(uint64); ok {
		ip.CommandID = uint8(v)
	}
	if v, ok := m[2].(map[any]any); ok {
		params := make(map[string]any, len(v))
		for k, val := range v {
			if key, ok := k.(string); ok {
				params[key] = val
			}
		}
		ip.Parameters = params
	}
	return ip
}

// ExtractWritePayload extracts a write payload (attribute id -> value)
// from a raw CBOR-decoded value.
func ExtractWritePayload(payload any) map[uint16]any {
	if payload == nil {
		return nil
	}
	if wp, ok := payload.(map[uint16]any); ok {
		return wp
	}

	result := make(map[uint16]any)
	switch m := payload.(type) {
	case map[any]any:
		for k, v := range m {
			switch key := k.(type) {
			case uint64:
				result[uint16(key)] = v
			case int64:
				result[uint16(key)] = v
			}
		}
	case map[uint64]any:
		for k, v := range m {
			result[uint16(k)] = v
		}
	default:
		return nil
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// ExtractAttributeValues converts a raw CBOR-decoded attribute map
// (uint64 keys) to map[uint16]any. Used for read responses and priming
// reports on the controller side.
func ExtractAttributeValues(payload any) map[uint16]any {
	return ExtractWritePayload(payload)
}

// toUintKeyMap normalizes a CBOR-decoded map to uint64 keys.
func toUintKeyMap(payload any) map[uint64]any {
	switch raw := payload.(type) {
	case map[uint64]any:
		return raw
	case map[any]any:
		m := make(map[uint64]any, len(raw))
		for k, v := range raw {
			switch key := k.(type) {
			case uint64:
				m[key] = v
			case int64:
				if key >= 0 {
					m[uint64(key)] = v
				}
			}
		}
		return m
	default:
		return nil
	}
}
