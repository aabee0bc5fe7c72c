package convert

// Type T thermocouple breakpoints in degC, one per segment boundary.
var (
	typeTPositive = []float32{
		0.0, 15.1417, 29.8016, 44.0289, 57.8675, 71.3563,
		84.5295, 97.4175, 110.047, 122.441, 134.62, 146.602,
		158.402, 170.034, 181.51, 192.841, 204.035, 215.101,
		226.046, 236.877, 247.6, 258.221, 268.745, 279.177,
		289.522, 299.784, 309.969, 320.079, 330.119, 340.092,
		350.001,
	}
	typeTNegative = []float32{
		0.0, -7.30137, -14.7101, -22.2655,
		-29.9855, -37.8791, -45.9548, -54.2258,
		-62.7115, -71.4378, -80.4368, -89.7453,
		-99.4048, -109.463, -119.978, -131.025,
		-142.707, -155.173, -168.641, -183.422,
		-199.964,
	}
)

const (
	// TypeTPositiveStep is the width in mV of each positive segment (0..17.819 mV over 30 segments).
	TypeTPositiveStep float32 = 0.59397
	// TypeTNegativeStep is the width in mV of each negative segment (0..-5.603 mV over 20 segments).
	TypeTNegativeStep float32 = -0.28015
)

// Thermocouple converts a thermocouple EMF in millivolts to degC using one
// table for positive EMF and another for negative EMF.
type Thermocouple struct {
	Positive Table
	Negative Table
}

// TypeT returns the type T thermocouple tables (-200..350 degC).
func TypeT() Thermocouple {
	return Thermocouple{
		Positive: Table{Start: 0, Step: TypeTPositiveStep, Values: typeTPositive},
		Negative: Table{Start: 0, Step: TypeTNegativeStep, Values: typeTNegative},
	}
}

// Temperature returns the hot junction temperature for mv, assuming the cold
// junction sits at 0 degC.
func (tc Thermocouple) Temperature(mv float32) float32 {
	if mv >= 0 {
		return tc.Positive.Lookup(mv)
	}
	return tc.Negative.Lookup(mv)
}

// Millivolts returns the EMF the thermocouple produces at temp degC.
func (tc Thermocouple) Millivolts(temp float32) float32 {
	if temp >= 0 {
		return tc.Positive.Inverse(temp)
	}
	return tc.Negative.Inverse(temp)
}

// Compensated returns the hot junction temperature for mv with the cold
// junction at coldJunction degC.
func (tc Thermocouple) Compensated(mv, coldJunction float32) float32 {
	return tc.Temperature(mv + tc.Millivolts(coldJunction))
}
