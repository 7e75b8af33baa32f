package units

// Unit constants
const (
	UPS  = "ups" // arena units per second (native simulation unit)
	MPS  = "mps"
	KMPH = "kmph"
	KPH  = "kph"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{UPS, MPS, KMPH, KPH}

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
	return "ups, mps, kmph, kph"
}

// ConvertSpeed converts a speed from arena units per second to the target
// units. One arena unit is treated as one meter.
func ConvertSpeed(speedUPS float64, targetUnits string) float64 {
	switch targetUnits {
	case UPS, MPS:
		return speedUPS
	case KMPH, KPH:
		return speedUPS * 3.6
	default:
		return speedUPS
	}
}
