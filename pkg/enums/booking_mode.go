package enums

import "fmt"

// BookingMode describes how the buyer's site will take appointments.
type BookingMode string

const (
	BookingModeNone         BookingMode = "none"
	BookingModeExternalLink BookingMode = "external_link"
	BookingModeIframeEmbed  BookingMode = "iframe_embed"
)

var validBookingModes = []BookingMode{
	BookingModeNone,
	BookingModeExternalLink,
	BookingModeIframeEmbed,
}

// String implements fmt.Stringer.
func (b BookingMode) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingMode.
func (b BookingMode) IsValid() bool {
	for _, candidate := range validBookingModes {
		if candidate == b {
			return true
		}
	}
	return false
}

// ParseBookingMode converts raw input into a BookingMode.
func ParseBookingMode(value string) (BookingMode, error) {
	for _, candidate := range validBookingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking mode %q", value)
}
