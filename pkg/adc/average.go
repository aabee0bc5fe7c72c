package adc

import (
	"context"
	"math"
)

// Averager reports the mean of every N conversions of the wrapped source,
// rounded to the nearest code.
type Averager struct {
	src Source
	n   int
}

var _ Source = (*Averager)(nil)

// NewAverager wraps src. A window of 1 or less passes conversions through.
func NewAverager(src Source, n int) *Averager {
	if n < 1 {
		n = 1
	}
	return &Averager{src: src, n: n}
}

// Run runs the wrapped source and forwards one averaged code per window.
func (a *Averager) Run(ctx context.Context, onConversion Handler) error {
	if a.n == 1 {
		return a.src.Run(ctx, onConversion)
	}

	var sum int64
	count := 0
	return a.src.Run(ctx, func(raw int32) {
		sum += int64(raw)
		count++
		if count < a.n {
			return
		}
		avg := math.Round(float64(sum) / float64(a.n))
		sum, count = 0, 0
		onConversion(int32(avg))
	})
}

// Select forwards channel selection to the wrapped source when supported.
func (a *Averager) Select(channel int, gain float64) error {
	if s, ok := a.src.(Selector); ok {
		return s.Select(channel, gain)
	}
	return errNoSelect
}
