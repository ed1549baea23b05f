// Package units provides shared constants and validation for angle units
package units

import "math"

// Unit constants
const (
	Degrees = "deg"
	Radians = "rad"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Degrees, Radians}

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
	return "deg, rad"
}

// ConvertAngle converts an angle from degrees to the target units.
// The engine computes and stores all angles and angle-derived costs in degrees.
func ConvertAngle(angleDeg float64, targetUnits string) float64 {
	switch targetUnits {
	case Degrees:
		return angleDeg
	case Radians:
		return angleDeg * math.Pi / 180
	default:
		return angleDeg
	}
}
