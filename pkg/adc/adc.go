// Package adc provides conversion sources: a simulated front end, a remote
// converter reporting codes over a serial link, and an averaging filter.
package adc

import (
	"context"
	"errors"
)

var errNoSelect = errors.New("source has no channel selection")

// Handler is called once per completed conversion with the raw code. It runs
// on the source's goroutine and must not block.
type Handler func(raw int32)

// Source produces conversion-complete events until ctx ends.
type Source interface {
	Run(ctx context.Context, onConversion Handler) error
}

// Selector is a source with a selectable input channel and gain.
type Selector interface {
	Select(channel int, gain float64) error
}

// codeRange returns the smallest and largest code of a converter.
func codeRange(bits uint, bipolar bool) (int64, int64) {
	if bits == 0 || bits > 32 {
		bits = 32
	}
	if bipolar {
		half := int64(1) << (bits - 1)
		return -half, half - 1
	}
	hi := int64(1)<<bits - 1
	if hi > 1<<31-1 {
		hi = 1<<31 - 1
	}
	return 0, hi
}

func clampCode(v float64, bits uint, bipolar bool) int32 {
	lo, hi := codeRange(bits, bipolar)
	switch {
	case v <= float64(lo):
		return int32(lo)
	case v >= float64(hi):
		return int32(hi)
	}
	return int32(v)
}
