package format

import (
	"fmt"

	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/convert"
)

// ScaleFromConfig builds the code-to-volts scale described by the ADC section.
func ScaleFromConfig(cfg config.ADCConfig) convert.Scale {
	return convert.NewScale(float32(cfg.Reference), cfg.Bits, cfg.Bipolar, float32(cfg.Gain))
}

// New creates the formatter selected by cfg.Output.Format. cj is the measured
// cold junction used by the temperature format in rtd mode; other modes ignore it.
func New(cfg *config.Config, cj ColdJunction) (Formatter, error) {
	scale := ScaleFromConfig(cfg.ADC)

	switch cfg.Output.Format {
	case config.FormatVoltage:
		return Voltage{
			Scale:     scale,
			Decimals:  cfg.Output.Decimals,
			MaxRecord: cfg.Output.MaxRecord,
		}, nil
	case config.FormatHex:
		return Hex{
			Bits:      cfg.ADC.Bits,
			MaxRecord: cfg.Output.MaxRecord,
		}, nil
	case config.FormatTemperature:
		t := Temperature{
			Scale:        scale,
			Thermocouple: convert.TypeT(),
			Decimals:     cfg.Output.Decimals,
			MaxRecord:    cfg.Output.MaxRecord,
		}
		switch cfg.ColdJunction.Mode {
		case config.ColdJunctionFixed:
			t.ColdJunction = FixedColdJunction(cfg.ColdJunction.Temperature)
		case config.ColdJunctionRTD:
			if cj == nil {
				return nil, fmt.Errorf("cold junction mode %q needs a measured cold junction", cfg.ColdJunction.Mode)
			}
			t.ColdJunction = cj
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Output.Format)
	}
}
