// Package units provides shared constants and validation for displacement units
package units

import "strings"

// Unit constants for the dx/dy displacement columns
const (
	MM     = "mm"
	CM     = "cm"
	M      = "m"
	Counts = "counts" // raw sensor counts, no physical scale
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, Counts}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// Label returns the axis label for a displacement unit
func Label(unit string) string {
	if !IsValid(unit) {
		return Counts
	}
	return unit
}

// SpeedLabel returns the axis label for a velocity in unit per second
func SpeedLabel(unit string) string {
	return Label(unit) + "/s"
}
