// Package convert turns raw converter codes into engineering units.
package convert

// Scale converts raw ADC codes to volts at the converter input.
type Scale struct {
	VoltsPerCode float32
	Gain         float32 // PGA gain in front of the converter
}

// NewScale builds a Scale for a converter with the given reference voltage and
// resolution. A bipolar input spans -reference..+reference, a unipolar input
// spans 0..reference.
func NewScale(reference float32, bits uint, bipolar bool, gain float32) Scale {
	span := reference
	if bipolar {
		span *= 2
	}
	return Scale{
		VoltsPerCode: span / float32(uint64(1)<<bits),
		Gain:         gain,
	}
}

// FixedScale builds a unity-gain Scale from an explicit volts-per-code factor.
func FixedScale(voltsPerCode float32) Scale {
	return Scale{VoltsPerCode: voltsPerCode, Gain: 1}
}

// Volts converts raw to volts.
func (s Scale) Volts(raw int32) float32 {
	gain := s.Gain
	if gain == 0 {
		gain = 1
	}
	return float32(raw) * s.VoltsPerCode / gain
}

// Millivolts converts raw to millivolts.
func (s Scale) Millivolts(raw int32) float32 {
	return s.Volts(raw) * 1000
}
