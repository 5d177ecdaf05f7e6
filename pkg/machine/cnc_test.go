package machine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/model"
)

func TestNewBase(t *testing.T) {
	c := NewBase(1, "CNC1")

	if c.Machine().Kind() != model.KindBase {
		t.Errorf("kind = %v, want KindBase", c.Machine().Kind())
	}
	if c.Machining().Status() != catalog.StatusOff {
		t.Errorf("initial status = %v, want Off", c.Machining().Status())
	}
	if c.Spindle().Speed() != catalog.SpeedMin {
		t.Errorf("initial speed = %v, want %v", c.Spindle().Speed(), catalog.SpeedMin)
	}
	if c.Machining().Energy() != EnergyOff {
		t.Errorf("initial energy = %v, want %v", c.Machining().Energy(), EnergyOff)
	}
	if c.Machining().Tool() != DefaultTool {
		t.Errorf("tool = %q, want %q", c.Machining().Tool(), DefaultTool)
	}

	if _, err := c.Machining().GetAttribute(MachiningAttrAIActive); err == nil {
		t.Error("base machine should not expose StatusAI")
	}
	if _, err := c.Machining().GetCommand(MachiningCmdPredictiveMaintenance); err == nil {
		t.Error("base machine should not expose ManutenzionePredittiva")
	}
}

func TestNewPro(t *testing.T) {
	c := NewPro(2, "CNCPro1", WithTool("Fresa 12mm"))

	if c.Machine().Kind() != model.KindPro {
		t.Errorf("kind = %v, want KindPro", c.Machine().Kind())
	}
	if c.Machining().Tool() != "Fresa 12mm" {
		t.Errorf("tool = %q, want %q", c.Machining().Tool(), "Fresa 12mm")
	}
	if c.Machining().AIActive() {
		t.Error("AIActive should start false")
	}

	if _, err := c.Machining().GetAttributeByName(NameAIActive); err != nil {
		t.Errorf("StatusAI lookup failed: %v", err)
	}
	if _, err := c.Machining().GetCommandByName(NamePredictiveMaintenance); err != nil {
		t.Errorf("ManutenzionePredittiva lookup failed: %v", err)
	}
}

func TestChangeStatus(t *testing.T) {
	c := NewBase(1, "CNC1")

	if err := c.ChangeStatus(int64(catalog.StatusOn)); err != nil {
		t.Fatalf("ChangeStatus(On) failed: %v", err)
	}
	if c.Machining().Status() != catalog.StatusOn {
		t.Errorf("status = %v, want On", c.Machining().Status())
	}
	if c.Machining().Energy() != EnergyOn {
		t.Errorf("energy = %v, want %v", c.Machining().Energy(), EnergyOn)
	}

	if err := c.ChangeStatus(42); !errors.Is(err, ErrStatusOutOfRange) {
		t.Fatalf("ChangeStatus(42) error = %v, want ErrStatusOutOfRange", err)
	}
	if c.Machining().Status() != catalog.StatusOn {
		t.Error("failed change must not alter status")
	}
	if c.Machining().Energy() != EnergyOn {
		t.Error("failed change must not alter energy")
	}
}

func TestChangeSpindleSpeed(t *testing.T) {
	c := NewBase(1, "CNC1")

	if err := c.ChangeSpindleSpeed(3); !errors.Is(err, ErrMachineNotOn) {
		t.Fatalf("speed change while off: error = %v, want ErrMachineNotOn", err)
	}

	if err := c.ChangeStatus(int64(catalog.StatusOn)); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeSpindleSpeed(4); err != nil {
		t.Fatalf("ChangeSpindleSpeed(4) failed: %v", err)
	}
	if c.Spindle().Speed() != 4 {
		t.Errorf("speed = %v, want 4", c.Spindle().Speed())
	}
	if c.Machining().Energy() != 180.5 {
		t.Errorf("energy = %v, want 180.5", c.Machining().Energy())
	}

	if err := c.ChangeSpindleSpeed(6); !errors.Is(err, ErrSpeedOutOfRange) {
		t.Fatalf("ChangeSpindleSpeed(6) error = %v, want ErrSpeedOutOfRange", err)
	}
	if c.Spindle().Speed() != 4 {
		t.Error("failed change must not alter speed")
	}
}

func TestStatusChangePreservesSpeedValue(t *testing.T) {
	c := NewBase(1, "CNC1")

	if err := c.ChangeStatus(int64(catalog.StatusOn)); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeSpindleSpeed(5); err != nil {
		t.Fatal(err)
	}
	if err := c.ChangeStatus(int64(catalog.StatusAlarm)); err != nil {
		t.Fatal(err)
	}

	if c.Spindle().Speed() != 5 {
		t.Errorf("speed = %v, want 5 after status change", c.Spindle().Speed())
	}
	if c.Machining().Energy() != EnergyAlarm {
		t.Errorf("energy = %v, want %v", c.Machining().Energy(), EnergyAlarm)
	}
}

func TestRunPredictiveMaintenance(t *testing.T) {
	t.Run("pro toggles the flag", func(t *testing.T) {
		c := NewPro(2, "CNCPro1")

		if err := c.RunPredictiveMaintenance(); err != nil {
			t.Fatalf("RunPredictiveMaintenance failed: %v", err)
		}
		if !c.Machining().AIActive() {
			t.Error("AIActive = false, want true")
		}

		if err := c.RunPredictiveMaintenance(); err != nil {
			t.Fatal(err)
		}
		if c.Machining().AIActive() {
			t.Error("AIActive = true, want false after second run")
		}
	})

	t.Run("base rejects the operation", func(t *testing.T) {
		c := NewBase(1, "CNC1")

		if err := c.RunPredictiveMaintenance(); !errors.Is(err, ErrMaintenanceUnsupported) {
			t.Fatalf("error = %v, want ErrMaintenanceUnsupported", err)
		}
	})
}

func TestCommandDispatch(t *testing.T) {
	ctx := context.Background()
	c := NewPro(2, "CNCPro1")

	t.Run("ChangeStatus via command", func(t *testing.T) {
		result, err := c.Machine().InvokeCommand(ctx, model.FeatureMachining,
			MachiningCmdChangeStatus, map[string]any{ParamNewStatus: int64(1)})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if result[ResultSuccess] != true {
			t.Errorf("result = %v, want Success=true", result)
		}
		if c.Machining().Status() != catalog.StatusOn {
			t.Errorf("status = %v, want On", c.Machining().Status())
		}
	})

	t.Run("CambiareVelocita via command", func(t *testing.T) {
		_, err := c.Machine().InvokeCommand(ctx, model.FeatureSpindle,
			SpindleCmdChangeSpeed, map[string]any{ParamNewSpeed: int64(2)})
		if err != nil {
			t.Fatalf("invoke failed: %v", err)
		}
		if c.Spindle().Speed() != 2 {
			t.Errorf("speed = %v, want 2", c.Spindle().Speed())
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := c.Machine().InvokeCommand(ctx, model.FeatureMachining,
			MachiningCmdChangeStatus, map[string]any{})
		if !errors.Is(err, model.ErrInvalidParameters) {
			t.Fatalf("error = %v, want ErrInvalidParameters", err)
		}
	})

	t.Run("non-integer parameter", func(t *testing.T) {
		_, err := c.Machine().InvokeCommand(ctx, model.FeatureMachining,
			MachiningCmdChangeStatus, map[string]any{ParamNewStatus: "on"})
		if !errors.Is(err, ErrStatusOutOfRange) {
			t.Fatalf("error = %v, want ErrStatusOutOfRange", err)
		}
	})
}

func TestGuardRecoversPanic(t *testing.T) {
	handler := guard(func(params map[string]any) error {
		panic("handler fault")
	})

	result, err := handler(context.Background(), nil)
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("error = %v, want ErrInternal", err)
	}
	if result != nil {
		t.Errorf("result = %v, want nil", result)
	}
}

func TestProduceParts(t *testing.T) {
	c := NewBase(1, "CNC1")

	c.ProduceParts(3)
	if c.Machining().Parts() != 0 {
		t.Error("parts produced while off")
	}

	if err := c.ChangeStatus(int64(catalog.StatusOn)); err != nil {
		t.Fatal(err)
	}
	c.ProduceParts(3)
	c.ProduceParts(2)
	if c.Machining().Parts() != 5 {
		t.Errorf("parts = %v, want 5", c.Machining().Parts())
	}
}

func TestConcurrentOperations(t *testing.T) {
	c := NewBase(1, "CNC1")
	if err := c.ChangeStatus(int64(catalog.StatusOn)); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(n int64) {
			defer wg.Done()
			_ = c.ChangeSpindleSpeed(n%5 + 1)
		}(int64(i))
		go func() {
			defer wg.Done()
			_ = c.ChangeStatus(int64(catalog.StatusOn))
		}()
	}
	wg.Wait()

	// The last winning operation determines the energy draw: either the
	// plain On draw (status change last) or the speed draw (speed change
	// last). Anything else means a torn update.
	st := c.State()
	if st.Status != catalog.StatusOn {
		t.Fatalf("status = %v, want On", st.Status)
	}
	if st.Energy != EnergyOn && st.Energy != EnergyForSpeed(st.Speed) {
		t.Errorf("energy %v inconsistent with speed %v", st.Energy, st.Speed)
	}
}
