package machine

import (
	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// Spindle attribute and command IDs with their browse names.
const (
	SpindleAttrSpeed uint16 = 1

	SpindleCmdChangeSpeed uint8 = 1
)

const (
	NameSpeed       = "Velocita"
	NameChangeSpeed = "CambiareVelocita"
)

// Spindle wraps the Mandrino feature: the spindle speed level and the
// command that changes it.
type Spindle struct {
	*model.Feature
}

// NewSpindle creates a new spindle feature with the speed at its
// minimum level.
func NewSpindle() *Spindle {
	f := model.NewFeature(model.FeatureSpindle)

	f.AddAttribute(model.NewAttribute(&model.AttributeMetadata{
		ID:          SpindleAttrSpeed,
		Name:        NameSpeed,
		Type:        model.DataTypeEnum,
		Access:      model.AccessReadOnly,
		MinValue:    float64(catalog.SpeedMin),
		MaxValue:    float64(catalog.SpeedMax),
		Default:     int32(catalog.SpeedMin),
		Description: "Spindle speed level (1..5)",
	}))

	return &Spindle{Feature: f}
}

// Speed returns the current spindle speed level.
func (s *Spindle) Speed() catalog.SpindleSpeed {
	v, err := s.ReadAttribute(SpindleAttrSpeed)
	if err != nil {
		return catalog.SpeedMin
	}
	n, _ := toInt64(v)
	sp, _ := catalog.SpindleSpeedFromInt(n)
	return sp
}

func (s *Spindle) setSpeed(sp catalog.SpindleSpeed) {
	_ = s.SetAttributeInternal(SpindleAttrSpeed, int32(sp))
}
