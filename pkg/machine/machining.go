package machine

import (
	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// Machining attribute IDs and browse names.
const (
	MachiningAttrStatus     uint16 = 1
	MachiningAttrTool       uint16 = 2
	MachiningAttrParts      uint16 = 3
	MachiningAttrEnergy     uint16 = 4
	MachiningAttrAIActive   uint16 = 5 // Pro only
)

// Browse names of the machining attributes.
const (
	NameStatus   = "Status"
	NameTool     = "Utensile"
	NameParts    = "PezziProdotti"
	NameEnergy   = "ConsumoEnergetico"
	NameAIActive = "StatusAI"
)

// Machining command IDs and browse names.
const (
	MachiningCmdChangeStatus          uint8 = 1
	MachiningCmdPredictiveMaintenance uint8 = 2 // Pro only
)

const (
	NameChangeStatus          = "ChangeStatus"
	NamePredictiveMaintenance = "ManutenzionePredittiva"
)

// DefaultTool is the tool label a machine starts with when the
// configuration does not name one.
const DefaultTool = "Fresa standard"

// Machining wraps a Feature with the machine's operating attributes:
// status, tool, production counter, derived energy draw, and, on Pro
// machines, the AI maintenance flag.
type Machining struct {
	*model.Feature
}

// NewMachining creates a new Machining feature for the given kind.
// The StatusAI attribute exists only when the kind supports predictive
// maintenance.
func NewMachining(kind model.MachineKind, tool string) *Machining {
	f := model.NewFeature(model.FeatureMachining)

	f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
		ID:          MachiningAttrStatus,
		Name:        NameStatus,
		Type:        model.DataTypeEnum,
		Access:      model.AccessReadOnly,
		Default:     int32(catalog.StatusOff),
		Description: "Machine status (0=Off, 1=On, 2=Alarm)",
	}))

	f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
		ID:          MachiningAttrTool,
		Name:        NameTool,
		Type:        model.DataTypeString,
		Access:      model.AccessReadOnly,
		Default:     tool,
		Description: "Mounted tool label",
	}))

	f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
		ID:          MachiningAttrParts,
		Name:        NameParts,
		Type:        model.DataTypeUint32,
		Access:      model.AccessReadOnly,
		Default:     uint32(0),
		Description: "Parts produced since startup",
	}))

	f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
		ID:          MachiningAttrEnergy,
		Name:        NameEnergy,
		Type:        model.DataTypeFloat64,
		Access:      model.AccessReadOnly,
		Default:     EnergyOff,
		Unit:        "kW",
		Description: "Derived energy draw",
	}))

	if kind.SupportsPredictiveMaintenance() {
		f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
			ID:          MachiningAttrAIActive,
			Name:        NameAIActive,
			Type:        model.DataTypeBool,
			Access:      model.AccessReadOnly,
			Default:     false,
			Description: "AI predictive maintenance active",
		}))
	}

	return &Machining{Feature: f}
}

// Status returns the current machine status.
func (m *Machining) Status() catalog.MachineStatus {
	v, err := m.ReadAttribute(MachiningAttrStatus)
	if err != nil {
		return catalog.StatusOff
	}
	n, _ := toInt64(v)
	s, _ := catalog.MachineStatusFromInt(n)
	return s
}

// Tool returns the mounted tool label.
func (m *Machining) Tool() string {
	v, err := m.ReadAttribute(MachiningAttrTool)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

// Parts returns the production counter.
func (m *Machining) Parts() uint32 {
	v, err := m.ReadAttribute(MachiningAttrParts)
	if err != nil {
		return 0
	}
	n, _ := toInt64(v)
	return uint32(n)
}

// Energy returns the derived energy draw in kW.
func (m *Machining) Energy() float64 {
	v, err := m.ReadAttribute(MachiningAttrEnergy)
	if err != nil {
		return 0
	}
	f, _ := toFloat64(v)
	return f
}

// AIActive returns the AI maintenance flag. Always false on Base
// machines, which do not carry the attribute.
func (m *Machining) AIActive() bool {
	v, err := m.ReadAttribute(MachiningAttrAIActive)
	if err != nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func (m *Machining) setStatus(s catalog.MachineStatus) {
	_ = m.SetAttributeInternal(MachiningAttrStatus, int32(s))
}

func (m *Machining) setEnergy(kw float64) {
	_ = m.SetAttributeInternal(MachiningAttrEnergy, kw)
}

func (m *Machining) setAIActive(active bool) {
	_ = m.SetAttributeInternal(MachiningAttrAIActive, active)
}

func (m *Machining) setParts(n uint32) {
	_ = m.SetAttributeInternal(MachiningAttrParts, n)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		i, ok := toInt64(v)
		return float64(i), ok
	}
}
