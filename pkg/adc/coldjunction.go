package adc

import (
	"context"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/convert"
	"go.uber.org/zap"
)

type input struct {
	channel int
	gain    float64
}

// RTDColdJunction shares one converter between a thermocouple and the RTD
// measuring its cold junction. It starts on the RTD, then after every Every
// thermocouple conversions switches to the RTD for a single conversion and
// back. Only thermocouple conversions are forwarded; RTD conversions update
// Temperature.
type RTDColdJunction struct {
	src    Source
	sel    Selector
	rtd    convert.RTD
	every  int
	tc     input
	ref    input
	logger *zap.Logger

	temp  atomic.Uint32 // math.Float32bits of degC
	valid atomic.Bool
}

var _ Source = (*RTDColdJunction)(nil)

// NewRTDColdJunction wraps src, which must support channel selection. The
// thermocouple input comes from adc, the RTD input from cj. Wrap it in an
// Averager rather than the other way round so RTD readings are not mixed into
// thermocouple averages.
func NewRTDColdJunction(src Source, adc config.ADCConfig, cj config.ColdJunctionConfig, logger *zap.Logger) (*RTDColdJunction, error) {
	sel, ok := src.(Selector)
	if !ok {
		return nil, fmt.Errorf("cold junction RTD needs a converter with channel selection: %w", errNoSelect)
	}
	if err := sel.Select(adc.Channel, adc.Gain); err != nil {
		return nil, fmt.Errorf("cold junction RTD needs a converter with channel selection: %w", err)
	}
	every := cj.Every
	if every < 1 {
		every = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RTDColdJunction{
		src:    src,
		sel:    sel,
		rtd:    RTDFromConfig(adc, cj),
		every:  every,
		tc:     input{channel: adc.Channel, gain: adc.Gain},
		ref:    input{channel: cj.Channel, gain: cj.Gain},
		logger: logger,
	}, nil
}

// RTDFromConfig returns the RTD conversion for the cold junction settings.
func RTDFromConfig(adc config.ADCConfig, cj config.ColdJunctionConfig) convert.RTD {
	rtd := convert.DefaultRTD()
	if cj.Reference > 0 {
		rtd.Reference = float32(cj.Reference)
	}
	if cj.Gain > 0 {
		rtd.Gain = float32(cj.Gain)
	}
	if adc.Bits > 0 {
		rtd.Bits = adc.Bits
	}
	return rtd
}

// Run implements Source.
func (r *RTDColdJunction) Run(ctx context.Context, onConversion Handler) error {
	onRTD := r.selectInput(r.ref)
	count := 0
	return r.src.Run(ctx, func(raw int32) {
		if onRTD {
			if raw < 0 {
				raw = 0
			}
			r.store(r.rtd.Temperature(uint32(raw)))
			onRTD = false
			if !r.selectInput(r.tc) {
				r.logger.Warn("Could not switch back to the thermocouple")
			}
			return
		}

		onConversion(raw)
		count++
		if count >= r.every {
			count = 0
			onRTD = r.selectInput(r.ref)
		}
	})
}

// Temperature returns the last cold junction temperature in degC, or 0 before
// the first RTD reading.
func (r *RTDColdJunction) Temperature() float32 {
	return math.Float32frombits(r.temp.Load())
}

// Valid reports whether an RTD reading has been taken.
func (r *RTDColdJunction) Valid() bool {
	return r.valid.Load()
}

func (r *RTDColdJunction) store(t float32) {
	r.temp.Store(math.Float32bits(t))
	r.valid.Store(true)
}

func (r *RTDColdJunction) selectInput(in input) bool {
	if err := r.sel.Select(in.channel, in.gain); err != nil {
		r.logger.Warn("Channel switch failed", zap.Int("channel", in.channel), zap.Error(err))
		return false
	}
	return true
}
