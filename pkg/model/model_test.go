package model

import (
	"context"
	"errors"
	"sort"
	"testing"
)

func newTestFeature() *Feature {
	f := NewFeature(FeatureMachining)
	f.AddAttribute(NewAttribute(&AttributeMetadata{
		ID:      1,
		Name:    "Status",
		Type:    DataTypeEnum,
		Access:  AccessReadOnly,
		Default: int32(0),
	}))
	f.AddAttribute(NewAttribute(&AttributeMetadata{
		ID:       2,
		Name:     "Level",
		Type:     DataTypeInt32,
		Access:   AccessReadWrite,
		MinValue: int32(1),
		MaxValue: int32(5),
		Default:  int32(1),
	}))
	return f
}

func TestFleetAddMachine(t *testing.T) {
	fleet := NewFleet("Officina")

	if err := fleet.AddMachine(NewMachine(1, "CNC1", KindBase)); err != nil {
		t.Fatalf("AddMachine() error = %v", err)
	}
	if err := fleet.AddMachine(NewMachine(2, "CNCPro1", KindPro)); err != nil {
		t.Fatalf("AddMachine() error = %v", err)
	}

	t.Run("DuplicateID", func(t *testing.T) {
		err := fleet.AddMachine(NewMachine(1, "CNC9", KindBase))
		if !errors.Is(err, ErrDuplicateMachineID) {
			t.Errorf("error = %v, want ErrDuplicateMachineID", err)
		}
	})

	t.Run("DuplicateName", func(t *testing.T) {
		err := fleet.AddMachine(NewMachine(9, "CNC1", KindBase))
		if !errors.Is(err, ErrDuplicateMachineName) {
			t.Errorf("error = %v, want ErrDuplicateMachineName", err)
		}
	})

	if fleet.MachineCount() != 2 {
		t.Errorf("MachineCount() = %d, want 2", fleet.MachineCount())
	}
}

func TestFleetLookup(t *testing.T) {
	fleet := NewFleet("Officina")
	m := NewMachine(1, "CNC1", KindBase)
	if err := fleet.AddMachine(m); err != nil {
		t.Fatalf("AddMachine() error = %v", err)
	}

	got, err := fleet.GetMachine(1)
	if err != nil || got != m {
		t.Errorf("GetMachine(1) = %v, %v", got, err)
	}

	got, err = fleet.GetMachineByName("CNC1")
	if err != nil || got != m {
		t.Errorf("GetMachineByName(CNC1) = %v, %v", got, err)
	}

	if _, err := fleet.GetMachine(9); !errors.Is(err, ErrMachineNotFound) {
		t.Errorf("GetMachine(9) error = %v, want ErrMachineNotFound", err)
	}
	if _, err := fleet.GetMachineByName("CNC9"); !errors.Is(err, ErrMachineNotFound) {
		t.Errorf("GetMachineByName(CNC9) error = %v, want ErrMachineNotFound", err)
	}
}

func TestMachineFeatures(t *testing.T) {
	m := NewMachine(1, "CNC1", KindBase)
	m.AddFeature(newTestFeature())

	if !m.HasFeature(FeatureMachining) {
		t.Error("HasFeature(FeatureMachining) = false")
	}
	if m.HasFeature(FeatureSpindle) {
		t.Error("HasFeature(FeatureSpindle) = true for machine without spindle")
	}
	if _, err := m.GetFeature(FeatureSpindle); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("GetFeature(FeatureSpindle) error = %v, want ErrFeatureNotFound", err)
	}

	v, err := m.ReadAttribute(FeatureMachining, 1)
	if err != nil {
		t.Fatalf("ReadAttribute() error = %v", err)
	}
	if v != int32(0) {
		t.Errorf("ReadAttribute() = %v, want int32(0)", v)
	}
}

func TestMachineInfo(t *testing.T) {
	m := NewMachine(2, "CNCPro1", KindPro)
	m.AddFeature(NewFeature(FeatureMachining))
	m.AddFeature(NewFeature(FeatureSpindle))

	info := m.Info()
	if info.ID != 2 || info.Name != "CNCPro1" || info.Kind != KindPro {
		t.Errorf("Info() = %+v", info)
	}
	if len(info.Features) != 2 {
		t.Errorf("Info().Features = %v, want 2 entries", info.Features)
	}
}

func TestAttributeWriteAccess(t *testing.T) {
	f := newTestFeature()

	t.Run("ReadOnlyRejectsWrite", func(t *testing.T) {
		err := f.WriteAttribute(1, int32(1))
		if !errors.Is(err, ErrAttributeNotWritable) {
			t.Errorf("error = %v, want ErrAttributeNotWritable", err)
		}
	})

	t.Run("InternalSetBypassesAccess", func(t *testing.T) {
		if err := f.SetAttributeInternal(1, int32(2)); err != nil {
			t.Fatalf("SetAttributeInternal() error = %v", err)
		}
		v, _ := f.ReadAttribute(1)
		if v != int32(2) {
			t.Errorf("value = %v, want int32(2)", v)
		}
	})

	t.Run("RangeEnforced", func(t *testing.T) {
		err := f.WriteAttribute(2, int32(6))
		if !errors.Is(err, ErrAttributeOutOfRange) {
			t.Errorf("error = %v, want ErrAttributeOutOfRange", err)
		}
	})

	t.Run("TypeEnforced", func(t *testing.T) {
		err := f.WriteAttribute(2, "three")
		if !errors.Is(err, ErrAttributeValueType) {
			t.Errorf("error = %v, want ErrAttributeValueType", err)
		}
	})

}

type recordingSubscriber struct {
	featureType FeatureType
	attrID      uint16
	value       any
	calls       int
}

func (r *recordingSubscriber) OnAttributeChanged(featureType FeatureType, attrID uint16, value any) {
	r.featureType = featureType
	r.attrID = attrID
	r.value = value
	r.calls++
}

func TestFeatureSubscriber(t *testing.T) {
	f := newTestFeature()
	sub := &recordingSubscriber{}
	f.Subscribe(sub)

	if err := f.SetAttributeInternal(1, int32(1)); err != nil {
		t.Fatalf("SetAttributeInternal() error = %v", err)
	}
	if sub.calls != 1 || sub.featureType != FeatureMachining || sub.attrID != 1 || sub.value != int32(1) {
		t.Errorf("subscriber saw %+v", sub)
	}

	f.Unsubscribe(sub)
	if err := f.SetAttributeInternal(1, int32(2)); err != nil {
		t.Fatalf("SetAttributeInternal() error = %v", err)
	}
	if sub.calls != 1 {
		t.Errorf("calls = %d after unsubscribe, want 1", sub.calls)
	}
}

func TestFeatureBrowseNames(t *testing.T) {
	f := newTestFeature()
	f.AddAttribute(NewAttribute(&AttributeMetadata{
		ID:     3,
		Name:   "Trigger",
		Type:   DataTypeBool,
		Access: AccessWrite,
	}))
	f.AddCommand(NewCommand(&CommandMetadata{ID: 1, Name: "ChangeStatus"},
		func(ctx context.Context, params map[string]any) (map[string]any, error) {
			return nil, nil
		}))

	names := f.AttributeNames()
	sort.Strings(names)
	want := []string{"Level", "Status"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Errorf("AttributeNames() = %v, want %v", names, want)
	}

	cmds := f.CommandNames()
	if len(cmds) != 1 || cmds[0] != "ChangeStatus" {
		t.Errorf("CommandNames() = %v, want [ChangeStatus]", cmds)
	}
}

func TestCommandInvoke(t *testing.T) {
	cmd := NewCommand(&CommandMetadata{
		ID:   1,
		Name: "ChangeStatus",
		Parameters: []ParameterMetadata{
			{Name: "NewStatus", Type: DataTypeInt32, Required: true},
		},
	}, func(ctx context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"Success": true}, nil
	})

	t.Run("MissingRequiredParameter", func(t *testing.T) {
		_, err := cmd.Invoke(context.Background(), map[string]any{})
		if !errors.Is(err, ErrInvalidParameters) {
			t.Errorf("error = %v, want ErrInvalidParameters", err)
		}
	})

	t.Run("HandlerResult", func(t *testing.T) {
		result, err := cmd.Invoke(context.Background(), map[string]any{"NewStatus": int64(1)})
		if err != nil {
			t.Fatalf("Invoke() error = %v", err)
		}
		if result["Success"] != true {
			t.Errorf("result = %v", result)
		}
	})
}

func TestMachineKind(t *testing.T) {
	if KindBase.String() != "CNC" || KindPro.String() != "CNCPro" {
		t.Errorf("String() = %q, %q", KindBase, KindPro)
	}
	if !KindBase.IsValid() || !KindPro.IsValid() || MachineKind(9).IsValid() {
		t.Error("IsValid() wrong for closed set")
	}
	if KindBase.SupportsPredictiveMaintenance() {
		t.Error("base kind reports predictive maintenance support")
	}
	if !KindPro.SupportsPredictiveMaintenance() {
		t.Error("pro kind lacks predictive maintenance support")
	}

	k, err := ParseMachineKind("CNCPro")
	if err != nil || k != KindPro {
		t.Errorf("ParseMachineKind(CNCPro) = %v, %v", k, err)
	}
	if _, err := ParseMachineKind("Lathe"); err == nil {
		t.Error("ParseMachineKind(Lathe) succeeded")
	}
}
