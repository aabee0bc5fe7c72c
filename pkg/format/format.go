// Package format renders raw samples as fixed-size text records.
package format

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/itohio/tcstream/pkg/convert"
)

// DefaultMaxRecord is the largest record a formatter emits by default. A
// record of this length plus a NUL fills a 64 byte C buffer on the device side.
const DefaultMaxRecord = 63

// Terminator ends every record.
const Terminator = "\r\n"

// ErrFormatOverflow is returned when a rendered record exceeds the record size.
var ErrFormatOverflow = errors.New("format: record exceeds maximum size")

// Formatter renders one raw sample as a text record appended to dst.
type Formatter interface {
	Format(dst []byte, raw int32) ([]byte, error)
}

// Func adapts a plain function to a Formatter.
type Func func(dst []byte, raw int32) ([]byte, error)

// Format calls f.
func (f Func) Format(dst []byte, raw int32) ([]byte, error) {
	return f(dst, raw)
}

// Voltage renders the scaled input voltage with an explicit sign, e.g. "+0.000123V\r\n".
type Voltage struct {
	Scale     convert.Scale
	Decimals  int
	MaxRecord int
}

// Format implements Formatter.
func (v Voltage) Format(dst []byte, raw int32) ([]byte, error) {
	start := len(dst)
	dst = appendSigned(dst, v.Scale.Volts(raw), v.Decimals)
	dst = append(dst, 'V')
	dst = append(dst, Terminator...)
	return bounded(dst, start, v.MaxRecord)
}

// Hex renders the raw code as zero-padded uppercase hexadecimal, e.g. "00A1F3\r\n".
// Negative codes are shown in two's complement within the code width.
type Hex struct {
	Bits      uint
	MaxRecord int
}

// Format implements Formatter.
func (h Hex) Format(dst []byte, raw int32) ([]byte, error) {
	bits := h.Bits
	if bits == 0 || bits > 32 {
		bits = 32
	}
	digits := int((bits + 3) / 4)
	code := uint64(uint32(raw)) & (uint64(1)<<bits - 1)

	start := len(dst)
	s := strconv.FormatUint(code, 16)
	for i := len(s); i < digits; i++ {
		dst = append(dst, '0')
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'f' {
			c -= 'a' - 'A'
		}
		dst = append(dst, c)
	}
	dst = append(dst, Terminator...)
	return bounded(dst, start, h.MaxRecord)
}

// ColdJunction reports the cold junction temperature in degC.
type ColdJunction interface {
	Temperature() float32
}

// FixedColdJunction is a cold junction held at a known temperature.
type FixedColdJunction float32

// Temperature implements ColdJunction.
func (f FixedColdJunction) Temperature() float32 {
	return float32(f)
}

// Temperature renders the thermocouple temperature, e.g. "+23.41C\r\n".
type Temperature struct {
	Scale        convert.Scale
	Thermocouple convert.Thermocouple
	ColdJunction ColdJunction // nil means 0 degC
	Decimals     int
	MaxRecord    int
}

// Format implements Formatter.
func (t Temperature) Format(dst []byte, raw int32) ([]byte, error) {
	mv := t.Scale.Millivolts(raw)
	var temp float32
	if t.ColdJunction != nil {
		temp = t.Thermocouple.Compensated(mv, t.ColdJunction.Temperature())
	} else {
		temp = t.Thermocouple.Temperature(mv)
	}

	start := len(dst)
	dst = appendSigned(dst, temp, t.Decimals)
	dst = append(dst, 'C')
	dst = append(dst, Terminator...)
	return bounded(dst, start, t.MaxRecord)
}

func appendSigned(dst []byte, v float32, decimals int) []byte {
	if v >= 0 {
		dst = append(dst, '+')
	}
	return strconv.AppendFloat(dst, float64(v), 'f', decimals, 32)
}

// bounded discards everything appended after start when it is longer than limit.
func bounded(dst []byte, start, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = DefaultMaxRecord
	}
	if n := len(dst) - start; n > limit {
		return dst[:start], fmt.Errorf("%w: %d > %d bytes", ErrFormatOverflow, n, limit)
	}
	return dst, nil
}
