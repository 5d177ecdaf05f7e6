package model

import (
	"context"
	"errors"
	"sync"
)

// Feature errors.
var (
	ErrAttributeNotFound = errors.New("attribute not found")
)

// FeatureType is the numeric identifier of a feature within a machine.
type FeatureType uint8

// Feature types of the officina model.
const (
	// FeatureMachining holds the machine's operating attributes and the
	// status/maintenance commands.
	FeatureMachining FeatureType = 1

	// FeatureSpindle holds the owned spindle's speed attribute and the
	// speed change command. Browse name "Mandrino".
	FeatureSpindle FeatureType = 2
)

// String returns the feature type name.
func (f FeatureType) String() string {
	switch f {
	case FeatureMachining:
		return "Machining"
	case FeatureSpindle:
		return "Mandrino"
	default:
		return "Unknown"
	}
}

// Feature represents a feature instance containing attributes and commands.
type Feature struct {
	mu sync.RWMutex

	// featureType is the feature type identifier.
	featureType FeatureType

	// Attributes indexed by ID.
	attributes map[uint16]*Attribute

	// attributesByName supports name lookup at the protocol boundary.
	attributesByName map[string]*Attribute

	// Commands indexed by ID.
	commands map[uint8]*Command

	// commandsByName supports name lookup at the protocol boundary.
	commandsByName map[string]*Command

	// Subscribers for change notifications.
	subscribers []FeatureSubscriber
}

// FeatureSubscriber is notified when attributes change.
type FeatureSubscriber interface {
	// OnAttributeChanged is called when an attribute value changes.
	OnAttributeChanged(featureType FeatureType, attrID uint16, value any)
}

// NewFeature creates a new feature of the given type.
func NewFeature(featureType FeatureType) *Feature {
	return &Feature{
		featureType:      featureType,
		attributes:       make(map[uint16]*Attribute),
		attributesByName: make(map[string]*Attribute),
		commands:         make(map[uint8]*Command),
		commandsByName:   make(map[string]*Command),
	}
}

// Type returns the feature type.
func (f *Feature) Type() FeatureType {
	return f.featureType
}

// AddAttribute adds an attribute to the feature.
func (f *Feature) AddAttribute(attr *Attribute) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attributes[attr.ID()] = attr
	f.attributesByName[attr.Name()] = attr
}

// GetAttribute returns an attribute by ID.
func (f *Feature) GetAttribute(id uint16) (*Attribute, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	attr, exists := f.attributes[id]
	if !exists {
		return nil, ErrAttributeNotFound
	}
	return attr, nil
}

// GetAttributeByName returns an attribute by browse name.
func (f *Feature) GetAttributeByName(name string) (*Attribute, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	attr, exists := f.attributesByName[name]
	if !exists {
		return nil, ErrAttributeNotFound
	}
	return attr, nil
}

// ReadAttribute reads an attribute value by ID.
func (f *Feature) ReadAttribute(id uint16) (any, error) {
	attr, err := f.GetAttribute(id)
	if err != nil {
		return nil, err
	}

	if !attr.Metadata().Access.CanRead() {
		return nil, ErrAttributeNotFound // Treat non-readable as not found
	}

	return attr.Value(), nil
}

// WriteAttribute writes an attribute value by ID.
func (f *Feature) WriteAttribute(id uint16, value any) error {
	attr, err := f.GetAttribute(id)
	if err != nil {
		return err
	}

	if err := attr.SetValue(value); err != nil {
		return err
	}

	f.notifyAttributeChanged(id, value)

	return nil
}

// SetAttributeInternal sets an attribute value without checking write access.
// Operation handlers use this to update read-only attributes (status,
// energy draw, production counter).
func (f *Feature) SetAttributeInternal(id uint16, value any) error {
	attr, err := f.GetAttribute(id)
	if err != nil {
		return err
	}

	if err := attr.SetValueInternal(value); err != nil {
		return err
	}

	f.notifyAttributeChanged(id, value)

	return nil
}

// ReadAllAttributes returns all readable attribute values.
func (f *Feature) ReadAllAttributes() map[uint16]any {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make(map[uint16]any)
	for id, attr := range f.attributes {
		if attr.Metadata().Access.CanRead() {
			result[id] = attr.Value()
		}
	}
	return result
}

// AttributeList returns the IDs of all readable attributes.
func (f *Feature) AttributeList() []uint16 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]uint16, 0, len(f.attributes))
	for id, attr := range f.attributes {
		if attr.Metadata().Access.CanRead() {
			ids = append(ids, id)
		}
	}
	return ids
}

// AttributeNames returns the browse names of all readable attributes.
func (f *Feature) AttributeNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.attributesByName))
	for name, attr := range f.attributesByName {
		if attr.Metadata().Access.CanRead() {
			names = append(names, name)
		}
	}
	return names
}

// AddCommand adds a command to the feature.
func (f *Feature) AddCommand(cmd *Command) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands[cmd.ID()] = cmd
	f.commandsByName[cmd.Name()] = cmd
}

// GetCommand returns a command by ID.
func (f *Feature) GetCommand(id uint8) (*Command, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cmd, exists := f.commands[id]
	if !exists {
		return nil, ErrCommandNotFound
	}
	return cmd, nil
}

// GetCommandByName returns a command by browse name.
func (f *Feature) GetCommandByName(name string) (*Command, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	cmd, exists := f.commandsByName[name]
	if !exists {
		return nil, ErrCommandNotFound
	}
	return cmd, nil
}

// InvokeCommand invokes a command by ID.
func (f *Feature) InvokeCommand(ctx context.Context, id uint8, params map[string]any) (map[string]any, error) {
	cmd, err := f.GetCommand(id)
	if err != nil {
		return nil, err
	}
	return cmd.Invoke(ctx, params)
}

// CommandList returns the list of supported command IDs.
func (f *Feature) CommandList() []uint8 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	ids := make([]uint8, 0, len(f.commands))
	for id := range f.commands {
		ids = append(ids, id)
	}
	return ids
}

// CommandNames returns the browse names of all commands.
func (f *Feature) CommandNames() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.commandsByName))
	for name := range f.commandsByName {
		names = append(names, name)
	}
	return names
}

// Subscribe adds a subscriber for change notifications.
func (f *Feature) Subscribe(sub FeatureSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribers = append(f.subscribers, sub)
}

// Unsubscribe removes a subscriber.
func (f *Feature) Unsubscribe(sub FeatureSubscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, s := range f.subscribers {
		if s == sub {
			f.subscribers = append(f.subscribers[:i], f.subscribers[i+1:]...)
			return
		}
	}
}

// notifyAttributeChanged notifies all subscribers of an attribute change.
func (f *Feature) notifyAttributeChanged(attrID uint16, value any) {
	f.mu.RLock()
	subs := make([]FeatureSubscriber, len(f.subscribers))
	copy(subs, f.subscribers)
	f.mu.RUnlock()

	for _, sub := range subs {
		sub.OnAttributeChanged(f.featureType, attrID, value)
	}
}
