package convert

import (
	"errors"

	"github.com/chewxy/math32"
)

var (
	// ErrTableTooShort is returned when a table has fewer than two breakpoints.
	ErrTableTooShort = errors.New("convert: table needs at least two breakpoints")
	// ErrZeroStep is returned for a table whose segments have no width.
	ErrZeroStep = errors.New("convert: zero segment width")
)

// Table is a breakpoint table with evenly spaced inputs. Breakpoint i sits at
// input Start + i*Step and maps to Values[i]. Step may be negative.
type Table struct {
	Start  float32
	Step   float32
	Values []float32
}

// NewTable validates and returns a Table.
func NewTable(start, step float32, values []float32) (Table, error) {
	if len(values) < 2 {
		return Table{}, ErrTableTooShort
	}
	if step == 0 {
		return Table{}, ErrZeroStep
	}
	return Table{Start: start, Step: step, Values: values}, nil
}

// Segments returns the number of segments in the table.
func (t Table) Segments() int {
	return len(t.Values) - 1
}

// End returns the input value of the last breakpoint.
func (t Table) End() float32 {
	return t.Start + t.Step*float32(t.Segments())
}

// Lookup interpolates the output for input x. Inputs beyond either end of the
// table continue along the slope of the nearest segment.
func (t Table) Lookup(x float32) float32 {
	j := int(math32.Floor((x - t.Start) / t.Step))
	if j > t.Segments()-1 {
		j = t.Segments() - 1
	}
	if j < 0 {
		j = 0
	}

	x0 := t.Start + t.Step*float32(j)
	return t.Values[j] + (x-x0)*(t.Values[j+1]-t.Values[j])/t.Step
}

// Inverse maps an output value back onto the input axis. Values must be
// monotonic. Outputs beyond the table use the nearest segment's slope.
func (t Table) Inverse(y float32) float32 {
	last := t.Segments() - 1
	j := last
	rising := t.Values[len(t.Values)-1] >= t.Values[0]
	for i := 0; i < last; i++ {
		if (rising && y < t.Values[i+1]) || (!rising && y > t.Values[i+1]) {
			j = i
			break
		}
	}

	dy := t.Values[j+1] - t.Values[j]
	x0 := t.Start + t.Step*float32(j)
	if math32.Abs(dy) < 1e-12 {
		return x0
	}
	return x0 + (y-t.Values[j])*t.Step/dy
}
