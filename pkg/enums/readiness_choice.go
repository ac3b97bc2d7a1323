package enums

import "fmt"

// ReadinessChoice is the buyer's answer to the pre-checkout readiness gate.
type ReadinessChoice string

const (
	ReadinessReadyNow ReadinessChoice = "ready_now"
	ReadinessNotReady ReadinessChoice = "not_ready"
)

var validReadinessChoices = []ReadinessChoice{
	ReadinessReadyNow,
	ReadinessNotReady,
}

// String implements fmt.Stringer.
func (r ReadinessChoice) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReadinessChoice.
func (r ReadinessChoice) IsValid() bool {
	for _, candidate := range validReadinessChoices {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReadinessChoice converts raw input into a ReadinessChoice.
func ParseReadinessChoice(value string) (ReadinessChoice, error) {
	for _, candidate := range validReadinessChoices {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid readiness choice %q", value)
}
