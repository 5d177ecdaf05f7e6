package wire

// Status represents a response status code.
type Status uint8

const (
	// StatusSuccess indicates the operation completed successfully.
	StatusSuccess Status = 0

	// StatusInvalidMachine indicates the machine doesn't exist.
	StatusInvalidMachine Status = 1

	// StatusInvalidFeature indicates the feature doesn't exist on the machine.
	StatusInvalidFeature Status = 2

	// StatusInvalidAttribute indicates the attribute doesn't exist.
	StatusInvalidAttribute Status = 3

	// StatusInvalidCommand indicates the command doesn't exist.
	StatusInvalidCommand Status = 4

	// StatusInvalidArgument indicates an input value outside its closed set.
	StatusInvalidArgument Status = 5

	// StatusInvalidState indicates an operation precondition on current
	// state is not met (e.g. spindle speed change while not On).
	StatusInvalidState Status = 6

	// StatusReadOnly indicates an attempt to write a read-only attribute.
	StatusReadOnly Status = 7

	// StatusUnsupported indicates the operation is not supported.
	StatusUnsupported Status = 8

	// StatusInternalError indicates an unexpected fault caught at the
	// operation boundary.
	StatusInternalError Status = 9

	// StatusTimeout indicates the operation timed out.
	StatusTimeout Status = 10
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusInvalidMachine:
		return "INVALID_MACHINE"
	case StatusInvalidFeature:
		return "INVALID_FEATURE"
	case StatusInvalidAttribute:
		return "INVALID_ATTRIBUTE"
	case StatusInvalidCommand:
		return "INVALID_COMMAND"
	case StatusInvalidArgument:
		return "INVALID_ARGUMENT"
	case StatusInvalidState:
		return "INVALID_STATE"
	case StatusReadOnly:
		return "READ_ONLY"
	case StatusUnsupported:
		return "UNSUPPORTED"
	case StatusInternalError:
		return "INTERNAL_ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// IsSuccess returns true if the status indicates success.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess
}

// IsError returns true if the status indicates an error.
func (s Status) IsError() bool {
	return s != StatusSuccess
}

// IsNotFound returns true if the status reports a missing machine,
// feature, attribute, or command.
func (s Status) IsNotFound() bool {
	return s >= StatusInvalidMachine && s <= StatusInvalidCommand
}
