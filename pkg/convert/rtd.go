package convert

import "github.com/chewxy/math32"

// PT100 linearisation: 113.607 ohm at 35 degC.
const (
	pt100Nominal float32 = 100.0
	pt100Slope   float32 = 35.0 / 13.607
)

// RTD converts a ratiometric RTD reading into resistance and temperature.
type RTD struct {
	Reference float32 // reference resistor in ohms
	Gain      float32
	Bits      uint
}

// DefaultRTD matches a 5.6k reference resistor with gain 32 on a 24 bit converter.
func DefaultRTD() RTD {
	return RTD{Reference: 5600, Gain: 32, Bits: 24}
}

// Resistance returns the RTD resistance in ohms for a unipolar code.
func (r RTD) Resistance(code uint32) float32 {
	gain := r.Gain
	if gain == 0 {
		gain = 1
	}
	full := float32(uint64(1)<<r.Bits - 1)
	return float32(code) * (r.Reference / gain) / full
}

// Temperature returns the RTD temperature in degC for a unipolar code.
func (r RTD) Temperature(code uint32) float32 {
	return (r.Resistance(code) - pt100Nominal) * pt100Slope
}

// Code returns the unipolar code an RTD at temp degC produces, clamped to the
// converter range.
func (r RTD) Code(temp float32) uint32 {
	gain := r.Gain
	if gain == 0 {
		gain = 1
	}
	full := float32(uint64(1)<<r.Bits - 1)
	ohms := temp/pt100Slope + pt100Nominal
	code := math32.Round(ohms * gain / r.Reference * full)
	if code <= 0 {
		return 0
	}
	if code >= full {
		return uint32(uint64(1)<<r.Bits - 1)
	}
	return uint32(code)
}
