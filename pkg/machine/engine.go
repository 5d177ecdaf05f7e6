package machine

import (
	"errors"
	"fmt"

	"github.com/officina-protocol/officina-go/pkg/catalog"
)

// Energy draw per status, in kW.
const (
	EnergyOff   = 0.0
	EnergyOn    = 150.5
	EnergyAlarm = 25.0

	// SpeedEnergyStep is the additional draw per speed level above
	// the minimum while the machine is on.
	SpeedEnergyStep = 10.0
)

var (
	// ErrStatusOutOfRange reports a requested status outside the
	// status enumeration.
	ErrStatusOutOfRange = errors.New("status value out of range")

	// ErrSpeedOutOfRange reports a requested spindle speed outside
	// the 1..5 range.
	ErrSpeedOutOfRange = errors.New("spindle speed out of range")

	// ErrMachineNotOn reports a spindle speed change attempted while
	// the machine is not running.
	ErrMachineNotOn = errors.New("machine is not on")

	// ErrMaintenanceUnsupported reports a predictive maintenance
	// request on a machine kind without AI support.
	ErrMaintenanceUnsupported = errors.New("predictive maintenance not supported")
)

// State is the operational state a transition acts on. Energy is
// derived from the other fields and recomputed on every transition.
type State struct {
	Status   catalog.MachineStatus
	Speed    catalog.SpindleSpeed
	Energy   float64
	AIActive bool
}

// EnergyForStatus returns the base energy draw for a status.
func EnergyForStatus(s catalog.MachineStatus) float64 {
	switch s {
	case catalog.StatusOn:
		return EnergyOn
	case catalog.StatusAlarm:
		return EnergyAlarm
	default:
		return EnergyOff
	}
}

// EnergyForSpeed returns the energy draw of a running machine at the
// given spindle speed.
func EnergyForSpeed(sp catalog.SpindleSpeed) float64 {
	return EnergyOn + float64(sp-catalog.SpeedMin)*SpeedEnergyStep
}

// ApplyStatusChange validates the requested status and returns the
// state after the change. The spindle speed is left untouched; the
// energy draw follows the new status alone.
func ApplyStatusChange(cur State, requested int64) (State, error) {
	status, ok := catalog.MachineStatusFromInt(requested)
	if !ok {
		return cur, fmt.Errorf("%w: %d", ErrStatusOutOfRange, requested)
	}

	next := cur
	next.Status = status
	next.Energy = EnergyForStatus(status)
	return next, nil
}

// ApplySpeedChange validates the requested spindle speed and returns
// the state after the change. The machine must be on; the energy draw
// is recomputed from the new speed.
func ApplySpeedChange(cur State, requested int64) (State, error) {
	speed, ok := catalog.SpindleSpeedFromInt(requested)
	if !ok {
		return cur, fmt.Errorf("%w: %d", ErrSpeedOutOfRange, requested)
	}
	if cur.Status != catalog.StatusOn {
		return cur, fmt.Errorf("%w: status is %s", ErrMachineNotOn, cur.Status)
	}

	next := cur
	next.Speed = speed
	next.Energy = EnergyForSpeed(speed)
	return next, nil
}

// ApplyPredictiveMaintenance toggles the AI maintenance flag. The
// rest of the state is untouched.
func ApplyPredictiveMaintenance(cur State) (State, error) {
	next := cur
	next.AIActive = !cur.AIActive
	return next, nil
}
