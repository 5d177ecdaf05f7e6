package wire

// Operation represents an officina protocol operation.
type Operation uint8

const (
	// OpRead gets current attribute values.
	OpRead Operation = 1

	// OpWrite sets attribute values.
	OpWrite Operation = 2

	// OpSubscribe registers for change notifications.
	OpSubscribe Operation = 3

	// OpInvoke executes a command with parameters.
	OpInvoke Operation = 4

	// OpBrowse walks the addressable hierarchy and returns the machine
	// instances with their browse names, kinds, and features.
	OpBrowse Operation = 5
)

// String returns the operation name.
func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	case OpSubscribe:
		return "Subscribe"
	case OpInvoke:
		return "Invoke"
	case OpBrowse:
		return "Browse"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the operation is a valid protocol operation.
func (o Operation) IsValid() bool {
	return o >= OpRead && o <= OpBrowse
}
