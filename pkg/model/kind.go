package model

import "fmt"

// MachineKind is the closed, two-member machine type hierarchy.
// Pro has every Base attribute and operation plus the AI maintenance
// capability; there is no open extension beyond these two.
type MachineKind uint8

const (
	// KindBase is a standard CNC milling machine.
	KindBase MachineKind = 0

	// KindPro is a CNC machine with AI-assisted predictive maintenance.
	KindPro MachineKind = 1
)

// String returns the kind name.
func (k MachineKind) String() string {
	switch k {
	case KindBase:
		return "CNC"
	case KindPro:
		return "CNCPro"
	default:
		return "Unknown"
	}
}

// IsValid returns true if the kind is a member of the closed set.
func (k MachineKind) IsValid() bool {
	return k == KindBase || k == KindPro
}

// ParseMachineKind parses a kind name ("CNC" or "CNCPro").
func ParseMachineKind(s string) (MachineKind, error) {
	switch s {
	case "CNC":
		return KindBase, nil
	case "CNCPro":
		return KindPro, nil
	default:
		return 0, fmt.Errorf("unknown machine kind %q", s)
	}
}

// SupportsPredictiveMaintenance returns true if machines of this kind
// expose the ManutenzionePredittiva command and the StatusAI attribute.
func (k MachineKind) SupportsPredictiveMaintenance() bool {
	return k == KindPro
}

// BrowsePrefix returns the instance naming prefix for this kind
// ("CNC" for Base, "CNCPro" for Pro).
func (k MachineKind) BrowsePrefix() string {
	return k.String()
}
