package controller

import (
	"context"
	"fmt"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/machine"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// Invoker exposes the machine commands by display name. Machine names
// resolve against the controller's last discovery.
type Invoker struct {
	ctrl *Controller
}

// NewInvoker creates an invoker for the controller's fleet.
func NewInvoker(ctrl *Controller) *Invoker {
	return &Invoker{ctrl: ctrl}
}

func (inv *Invoker) invoke(ctx context.Context, machineName string, featureID uint8, cmdID uint8, params map[string]any) error {
	mach, err := inv.ctrl.MachineByName(machineName)
	if err != nil {
		return err
	}

	client := inv.ctrl.Client()
	if client == nil {
		return ErrNotStarted
	}

	_, err = client.Invoke(ctx, mach.ID, featureID, cmdID, params)
	return err
}

// ChangeStatus requests a status transition on the named machine.
func (inv *Invoker) ChangeStatus(ctx context.Context, machineName string, status catalog.MachineStatus) error {
	return inv.invoke(ctx, machineName, uint8(model.FeatureMachining),
		machine.MachiningCmdChangeStatus,
		map[string]any{machine.ParamNewStatus: int64(status)})
}

// ChangeSpindleSpeed requests a spindle speed change on the named
// machine. The machine must be On.
func (inv *Invoker) ChangeSpindleSpeed(ctx context.Context, machineName string, speed catalog.SpindleSpeed) error {
	return inv.invoke(ctx, machineName, uint8(model.FeatureSpindle),
		machine.SpindleCmdChangeSpeed,
		map[string]any{machine.ParamNewSpeed: int64(speed)})
}

// RunPredictiveMaintenance toggles the AI maintenance assistant on the
// named machine. Only Pro machines expose the command.
func (inv *Invoker) RunPredictiveMaintenance(ctx context.Context, machineName string) error {
	return inv.invoke(ctx, machineName, uint8(model.FeatureMachining),
		machine.MachiningCmdPredictiveMaintenance, nil)
}

// DemoStep records the outcome of one step of the demo sequence.
type DemoStep struct {
	// Machine is the machine the step targeted.
	Machine string

	// Description says what the step did.
	Description string

	// Skipped is true when the step did not apply to the machine.
	Skipped bool

	// Err holds the step's failure, if any.
	Err error
}

// RunDemo walks every discovered machine through a demonstration
// sequence: power on, raise spindle speed, run AI maintenance on Pro
// machines, and power off. Steps that do not apply are reported as
// skipped rather than errors.
func (inv *Invoker) RunDemo(ctx context.Context) []DemoStep {
	var steps []DemoStep

	for _, mach := range inv.ctrl.Machines() {
		steps = append(steps, DemoStep{
			Machine:     mach.Name,
			Description: "power on",
			Err:         inv.ChangeStatus(ctx, mach.Name, catalog.StatusOn),
		})

		steps = append(steps, DemoStep{
			Machine:     mach.Name,
			Description: fmt.Sprintf("set spindle speed to %d", catalog.SpeedMax-1),
			Err:         inv.ChangeSpindleSpeed(ctx, mach.Name, catalog.SpeedMax-1),
		})

		if mach.SupportsPredictiveMaintenance() {
			steps = append(steps, DemoStep{
				Machine:     mach.Name,
				Description: "run predictive maintenance",
				Err:         inv.RunPredictiveMaintenance(ctx, mach.Name),
			})
		} else {
			steps = append(steps, DemoStep{
				Machine:     mach.Name,
				Description: "run predictive maintenance",
				Skipped:     true,
			})
		}

		steps = append(steps, DemoStep{
			Machine:     mach.Name,
			Description: "power off",
			Err:         inv.ChangeStatus(ctx, mach.Name, catalog.StatusOff),
		})
	}

	return steps
}
