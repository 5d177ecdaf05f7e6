// Package catalog defines the closed enumeration sets of the officina
// information model: machine status and spindle speed levels, with their
// display labels.
//
// The sets are fixed at compile time. Values arriving from the wire are
// decoded with the FromX helpers, which report whether the raw value is a
// member of the set; display code uses LabelOf helpers that fall back to
// "Unknown" for anything outside it.
package catalog

// UnknownLabel is the display label used for values outside a closed set.
const UnknownLabel = "Unknown"

// MachineStatus is the operating status of a machine.
type MachineStatus uint8

const (
	// StatusOff indicates the machine is powered down.
	StatusOff MachineStatus = 0

	// StatusOn indicates the machine is running.
	StatusOn MachineStatus = 1

	// StatusAlarm indicates the machine stopped on an alarm condition.
	StatusAlarm MachineStatus = 2
)

// String returns the display label for the status.
func (s MachineStatus) String() string {
	switch s {
	case StatusOff:
		return "Off"
	case StatusOn:
		return "On"
	case StatusAlarm:
		return "Alarm"
	default:
		return UnknownLabel
	}
}

// IsValid returns true if the status is a member of the closed set.
func (s MachineStatus) IsValid() bool {
	return s <= StatusAlarm
}

// MachineStatusFromInt converts a raw integer to a MachineStatus.
// The second return value is false if the value is outside {0,1,2}.
func MachineStatusFromInt(v int64) (MachineStatus, bool) {
	if v < int64(StatusOff) || v > int64(StatusAlarm) {
		return 0, false
	}
	return MachineStatus(v), true
}

// StatusLabel returns the display label for a raw status value,
// falling back to UnknownLabel for out-of-set values.
func StatusLabel(v int64) string {
	s, ok := MachineStatusFromInt(v)
	if !ok {
		return UnknownLabel
	}
	return s.String()
}

// Spindle speed bounds.
const (
	// SpeedMin is the lowest spindle speed level.
	SpeedMin SpindleSpeed = 1

	// SpeedMax is the highest spindle speed level.
	SpeedMax SpindleSpeed = 5
)

// SpindleSpeed is a spindle speed level in the closed set {1..5}.
type SpindleSpeed uint8

// String returns the display label for the speed level.
func (s SpindleSpeed) String() string {
	switch s {
	case 1:
		return "Level 1"
	case 2:
		return "Level 2"
	case 3:
		return "Level 3"
	case 4:
		return "Level 4"
	case 5:
		return "Level 5"
	default:
		return UnknownLabel
	}
}

// IsValid returns true if the speed level is a member of the closed set.
func (s SpindleSpeed) IsValid() bool {
	return s >= SpeedMin && s <= SpeedMax
}

// SpindleSpeedFromInt converts a raw integer to a SpindleSpeed.
// The second return value is false if the value is outside {1..5}.
func SpindleSpeedFromInt(v int64) (SpindleSpeed, bool) {
	if v < int64(SpeedMin) || v > int64(SpeedMax) {
		return 0, false
	}
	return SpindleSpeed(v), true
}

// SpeedLabel returns the display label for a raw speed value,
// falling back to UnknownLabel for out-of-set values.
func SpeedLabel(v int64) string {
	s, ok := SpindleSpeedFromInt(v)
	if !ok {
		return UnknownLabel
	}
	return s.String()
}
