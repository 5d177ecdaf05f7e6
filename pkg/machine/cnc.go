package machine

import (
	"context"
	"errors"
	"fmt"

	"github.com/officina-protocol/officina-go/pkg/catalog"
	"github.com/officina-protocol/officina-go/pkg/model"
)

// Command parameter and result keys.
const (
	ParamNewStatus = "NewStatus"
	ParamNewSpeed  = "NewSpeed"
	ResultSuccess  = "Success"
)

// ErrInternal reports a fault inside an operation handler. The
// machine state is left as it was before the operation.
var ErrInternal = errors.New("internal machine error")

// CNC is an assembled machine: the model instance plus its machining
// and spindle features, with the guarded operations wired as command
// handlers.
//
// The three operations (ChangeStatus, ChangeSpindleSpeed,
// RunPredictiveMaintenance) share one exclusive lock per machine, so
// a speed change never interleaves with a status change on the same
// machine.
type CNC struct {
	machine   *model.Machine
	machining *Machining
	spindle   *Spindle
}

// Option customizes a machine at build time.
type Option func(*options)

type options struct {
	tool string
}

// WithTool sets the mounted tool label.
func WithTool(tool string) Option {
	return func(o *options) { o.tool = tool }
}

// NewBase builds a Base machine (kind CNC) with machining and spindle
// features.
func NewBase(id uint8, name string, opts ...Option) *CNC {
	return build(id, name, model.KindBase, opts...)
}

// NewPro builds a Pro machine (kind CNCPro) with machining and spindle
// features plus the AI maintenance extension.
func NewPro(id uint8, name string, opts ...Option) *CNC {
	return build(id, name, model.KindPro, opts...)
}

func build(id uint8, name string, kind model.MachineKind, opts ...Option) *CNC {
	o := options{tool: DefaultTool}
	for _, opt := range opts {
		opt(&o)
	}

	m := model.NewMachine(id, name, kind)
	machining := NewMachining(kind, o.tool)
	spindle := NewSpindle()
	m.AddFeature(machining.Feature)
	m.AddFeature(spindle.Feature)

	c := &CNC{
		machine:   m,
		machining: machining,
		spindle:   spindle,
	}

	machining.AddCommand(model.NewCommand(&model.CommandMetadata{
		ID:          MachiningCmdChangeStatus,
		Name:        NameChangeStatus,
		Description: "Change the machine status",
		Parameters: []model.ParameterMetadata{
			{Name: ParamNewStatus, Type: model.DataTypeInt32, Required: true},
		},
		Response: []model.ParameterMetadata{
			{Name: ResultSuccess, Type: model.DataTypeBool},
		},
	}, guard(func(params map[string]any) error {
		raw, ok := toInt64(params[ParamNewStatus])
		if !ok {
			return fmt.Errorf("%w: %s must be an integer", ErrStatusOutOfRange, ParamNewStatus)
		}
		return c.ChangeStatus(raw)
	})))

	if kind.SupportsPredictiveMaintenance() {
		machining.AddCommand(model.NewCommand(&model.CommandMetadata{
			ID:          MachiningCmdPredictiveMaintenance,
			Name:        NamePredictiveMaintenance,
			Description: "Toggle AI predictive maintenance",
			Response: []model.ParameterMetadata{
				{Name: ResultSuccess, Type: model.DataTypeBool},
			},
		}, guard(func(params map[string]any) error {
			return c.RunPredictiveMaintenance()
		})))
	}

	spindle.AddCommand(model.NewCommand(&model.CommandMetadata{
		ID:          SpindleCmdChangeSpeed,
		Name:        NameChangeSpeed,
		Description: "Change the spindle speed level",
		Parameters: []model.ParameterMetadata{
			{Name: ParamNewSpeed, Type: model.DataTypeInt32, Required: true},
		},
		Response: []model.ParameterMetadata{
			{Name: ResultSuccess, Type: model.DataTypeBool},
		},
	}, guard(func(params map[string]any) error {
		raw, ok := toInt64(params[ParamNewSpeed])
		if !ok {
			return fmt.Errorf("%w: %s must be an integer", ErrSpeedOutOfRange, ParamNewSpeed)
		}
		return c.ChangeSpindleSpeed(raw)
	})))

	return c
}

// guard adapts an operation to the command handler signature and turns
// a handler panic into ErrInternal, leaving the state untouched.
func guard(op func(params map[string]any) error) model.CommandHandler {
	return func(ctx context.Context, params map[string]any) (result map[string]any, err error) {
		defer func() {
			if r := recover(); r != nil {
				result = nil
				err = fmt.Errorf("%w: %v", ErrInternal, r)
			}
		}()
		if err := op(params); err != nil {
			return nil, err
		}
		return map[string]any{ResultSuccess: true}, nil
	}
}

// Machine returns the underlying model instance.
func (c *CNC) Machine() *model.Machine {
	return c.machine
}

// Machining returns the machining feature wrapper.
func (c *CNC) Machining() *Machining {
	return c.machining
}

// Spindle returns the spindle feature wrapper.
func (c *CNC) Spindle() *Spindle {
	return c.spindle
}

// State returns a snapshot of the operational state.
func (c *CNC) State() State {
	c.machine.LockOps()
	defer c.machine.UnlockOps()
	return c.state()
}

func (c *CNC) state() State {
	return State{
		Status:   c.machining.Status(),
		Speed:    c.spindle.Speed(),
		Energy:   c.machining.Energy(),
		AIActive: c.machining.AIActive(),
	}
}

// ChangeStatus validates the requested status and applies it together
// with the matching energy draw. Fails with ErrStatusOutOfRange when
// the value is not in the status enumeration; the state is then left
// unchanged.
func (c *CNC) ChangeStatus(requested int64) error {
	c.machine.LockOps()
	defer c.machine.UnlockOps()

	next, err := ApplyStatusChange(c.state(), requested)
	if err != nil {
		return err
	}

	c.machining.setStatus(next.Status)
	c.machining.setEnergy(next.Energy)
	return nil
}

// ChangeSpindleSpeed validates the requested speed level and applies
// it together with the matching energy draw. Fails with
// ErrSpeedOutOfRange for a level outside 1..5 and with ErrMachineNotOn
// when the machine is not running; the state is then left unchanged.
func (c *CNC) ChangeSpindleSpeed(requested int64) error {
	c.machine.LockOps()
	defer c.machine.UnlockOps()

	next, err := ApplySpeedChange(c.state(), requested)
	if err != nil {
		return err
	}

	c.spindle.setSpeed(next.Speed)
	c.machining.setEnergy(next.Energy)
	return nil
}

// RunPredictiveMaintenance toggles the AI maintenance flag. Fails
// with ErrMaintenanceUnsupported on machine kinds without AI support.
func (c *CNC) RunPredictiveMaintenance() error {
	if !c.machine.Kind().SupportsPredictiveMaintenance() {
		return fmt.Errorf("%w: kind %s", ErrMaintenanceUnsupported, c.machine.Kind())
	}

	c.machine.LockOps()
	defer c.machine.UnlockOps()

	next, err := ApplyPredictiveMaintenance(c.state())
	if err != nil {
		return err
	}

	c.machining.setAIActive(next.AIActive)
	return nil
}

// ProduceParts increments the production counter by n. Parts are only
// produced while the machine is on.
func (c *CNC) ProduceParts(n uint32) {
	c.machine.LockOps()
	defer c.machine.UnlockOps()

	if c.machining.Status() != catalog.StatusOn {
		return
	}
	c.machining.setParts(c.machining.Parts() + n)
}
