package model

import (
	"errors"
	"fmt"
	"sync"
)

// Access flags for attributes.
type Access uint8

const (
	// AccessRead allows reading the attribute.
	AccessRead Access = 1 << iota

	// AccessWrite allows writing the attribute.
	AccessWrite

	// AccessSubscribe allows subscribing to changes.
	AccessSubscribe

	// Common access combinations.

	// AccessReadOnly is read and subscribe.
	AccessReadOnly = AccessRead | AccessSubscribe

	// AccessReadWrite is read, write, and subscribe.
	AccessReadWrite = AccessRead | AccessWrite | AccessSubscribe
)

// CanRead returns true if reading is allowed.
func (a Access) CanRead() bool { return a&AccessRead != 0 }

// CanWrite returns true if writing is allowed.
func (a Access) CanWrite() bool { return a&AccessWrite != 0 }

// CanSubscribe returns true if subscribing is allowed.
func (a Access) CanSubscribe() bool { return a&AccessSubscribe != 0 }

// String returns the access flags as a string.
func (a Access) String() string {
	var s string
	if a.CanRead() {
		s += "R"
	}
	if a.CanWrite() {
		s += "W"
	}
	if a.CanSubscribe() {
		s += "S"
	}
	if s == "" {
		return "-"
	}
	return s
}

// DataType represents the type of an attribute value.
type DataType uint8

const (
	DataTypeUnknown DataType = iota
	DataTypeBool
	DataTypeInt32
	DataTypeUint8
	DataTypeUint32
	DataTypeFloat64
	DataTypeString
	DataTypeEnum
)

// String returns the data type name.
func (d DataType) String() string {
	names := []string{
		"unknown", "bool", "int32", "uint8", "uint32",
		"float64", "string", "enum",
	}
	if int(d) < len(names) {
		return names[d]
	}
	return "unknown"
}

// AttributeMetadata describes an attribute's properties.
type AttributeMetadata struct {
	// ID is the attribute identifier within the feature.
	ID uint16

	// Name is the browse name of the attribute (e.g. "Status", "Velocita").
	// It is the stable identifier clients use at the protocol boundary.
	Name string

	// Type is the data type of the attribute value.
	Type DataType

	// Access defines the allowed operations.
	Access Access

	// MinValue is the minimum allowed value (for numeric types).
	MinValue any

	// MaxValue is the maximum allowed value (for numeric types).
	MaxValue any

	// Default is the initial value.
	Default any

	// Unit is the unit of measurement (e.g. "kW").
	Unit string

	// Description is a human-readable description.
	Description string
}

// Attribute represents an attribute instance with its current value.
type Attribute struct {
	mu       sync.RWMutex
	metadata *AttributeMetadata
	value    any
}

// Attribute errors.
var (
	ErrAttributeNotWritable = errors.New("attribute is not writable")
	ErrAttributeValueType   = errors.New("invalid value type for attribute")
	ErrAttributeOutOfRange  = errors.New("value out of range")
)

// NewAttribute creates a new attribute with the given metadata.
func NewAttribute(meta *AttributeMetadata) *Attribute {
	return &Attribute{
		metadata: meta,
		value:    meta.Default,
	}
}

// ID returns the attribute ID.
func (a *Attribute) ID() uint16 {
	return a.metadata.ID
}

// Name returns the attribute browse name.
func (a *Attribute) Name() string {
	return a.metadata.Name
}

// Metadata returns the attribute metadata.
func (a *Attribute) Metadata() *AttributeMetadata {
	return a.metadata
}

// Value returns the current attribute value.
func (a *Attribute) Value() any {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.value
}

// SetValue sets the attribute value.
// Returns an error if the attribute is not writable or the value is invalid.
func (a *Attribute) SetValue(value any) error {
	if !a.metadata.Access.CanWrite() {
		return ErrAttributeNotWritable
	}
	return a.setValueInternal(value)
}

// SetValueInternal sets the value without checking write access.
// Operation handlers use this to update read-only attributes such as the
// derived energy draw.
func (a *Attribute) SetValueInternal(value any) error {
	return a.setValueInternal(value)
}

func (a *Attribute) setValueInternal(value any) error {
	if value != nil {
		if err := a.validateValue(value); err != nil {
			return err
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.value = value

	return nil
}

// validateValue checks if the value matches the expected type and range.
func (a *Attribute) validateValue(value any) error {
	switch a.metadata.Type {
	case DataTypeBool:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: expected bool", ErrAttributeValueType)
		}
	case DataTypeInt32, DataTypeUint8, DataTypeUint32, DataTypeEnum:
		if !isIntegerType(value) {
			return fmt.Errorf("%w: expected integer", ErrAttributeValueType)
		}
	case DataTypeFloat64:
		if !isNumericType(value) {
			return fmt.Errorf("%w: expected number", ErrAttributeValueType)
		}
	case DataTypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("%w: expected string", ErrAttributeValueType)
		}
	}

	if a.metadata.MinValue != nil || a.metadata.MaxValue != nil {
		if err := a.checkRange(value); err != nil {
			return err
		}
	}

	return nil
}

// checkRange validates numeric range constraints.
func (a *Attribute) checkRange(value any) error {
	v, ok := toFloat64(value)
	if !ok {
		return nil // Not a numeric type
	}

	if a.metadata.MinValue != nil {
		min, _ := toFloat64(a.metadata.MinValue)
		if v < min {
			return fmt.Errorf("%w: %v < %v", ErrAttributeOutOfRange, value, a.metadata.MinValue)
		}
	}

	if a.metadata.MaxValue != nil {
		max, _ := toFloat64(a.metadata.MaxValue)
		if v > max {
			return fmt.Errorf("%w: %v > %v", ErrAttributeOutOfRange, value, a.metadata.MaxValue)
		}
	}

	return nil
}

// Helper functions for type checking.

func isIntegerType(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}

func isNumericType(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
