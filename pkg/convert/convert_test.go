package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewScale(t *testing.T) {
	bi := NewScale(1.2, 24, true, 1)
	assert.Equal(t, float32(2.4/16777216), bi.VoltsPerCode)

	uni := NewScale(1.2, 24, false, 1)
	assert.Equal(t, float32(1.2/16777216), uni.VoltsPerCode)
}

func TestScale_Volts(t *testing.T) {
	tests := []struct {
		name  string
		scale Scale
		raw   int32
		want  float32
		delta float64
	}{
		{"zero", FixedScale(1.2 / 16777216), 0, 0, 0},
		{"full scale unipolar", FixedScale(1.2 / 16777216), 16777216 - 1, 1.2, 1e-6},
		{"half scale", FixedScale(1.2 / 16777216), 8388608, 0.6, 1e-7},
		{"negative bipolar", NewScale(1.2, 24, true, 1), -8388608, -1.2, 1e-6},
		{"gain 32", NewScale(1.2, 24, true, 32), 8388608, 1.2 / 32, 1e-7},
		{"zero gain means unity", Scale{VoltsPerCode: 0.5}, 4, 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.scale.Volts(tt.raw), tt.delta)
		})
	}
}

func TestScale_Millivolts(t *testing.T) {
	s := FixedScale(0.001)
	assert.InDelta(t, 5.0, s.Millivolts(5), 1e-6)
}

func TestNewTable(t *testing.T) {
	_, err := NewTable(0, 1, []float32{1})
	assert.ErrorIs(t, err, ErrTableTooShort)

	_, err = NewTable(0, 0, []float32{1, 2})
	assert.ErrorIs(t, err, ErrZeroStep)

	tbl, err := NewTable(1, 2, []float32{0, 10, 20})
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Segments())
	assert.Equal(t, float32(5), tbl.End())
}

func TestTable_Lookup(t *testing.T) {
	tbl := Table{Start: 0, Step: 1, Values: []float32{0, 10, 30, 60}}

	tests := []struct {
		name string
		x    float32
		want float32
	}{
		{"first breakpoint", 0, 0},
		{"inside first segment", 0.5, 5},
		{"exact breakpoint", 2, 30},
		{"inside last segment", 2.5, 45},
		{"last breakpoint", 3, 60},
		{"above range uses last slope", 4, 90},
		{"below range uses first slope", -1, -10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tbl.Lookup(tt.x), 1e-5)
		})
	}
}

func TestTable_Inverse(t *testing.T) {
	tbl := Table{Start: 0, Step: 1, Values: []float32{0, 10, 30, 60}}
	for _, x := range []float32{0, 0.25, 1, 1.5, 2, 2.75, 3, 3.5, -0.5} {
		assert.InDelta(t, x, tbl.Inverse(tbl.Lookup(x)), 1e-5, "x=%v", x)
	}

	falling := Table{Start: 0, Step: -1, Values: []float32{0, -5, -15}}
	assert.InDelta(t, -1.5, falling.Inverse(-10), 1e-5)
	assert.InDelta(t, -3, falling.Inverse(-25), 1e-5)
}

func TestThermocouple_BreakpointIsExact(t *testing.T) {
	tc := TypeT()
	assert.Equal(t, float32(15.1417), tc.Temperature(0.59397))
	assert.Equal(t, float32(-7.30137), tc.Temperature(-0.28015))
	assert.Equal(t, float32(0), tc.Temperature(0))
}

func TestThermocouple_Temperature(t *testing.T) {
	tc := TypeT()

	tests := []struct {
		name  string
		mv    float32
		want  float32
		delta float64
	}{
		{"midway first segment", 0.59397 / 2, 15.1417 / 2, 1e-3},
		{"top of table", 17.819, 350.001, 0.01},
		{"bottom of table", -5.603, -199.964, 0.01},
		{"over range extends last slope", 17.819 + 0.59397, 350.001 + (350.001 - 340.092), 0.05},
		{"under range extends last slope", -5.603 - 0.28015, -199.964 - (199.964 - 183.422), 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tc.Temperature(tt.mv), tt.delta)
		})
	}
}

func TestThermocouple_Millivolts(t *testing.T) {
	tc := TypeT()
	assert.InDelta(t, 0.59397, tc.Millivolts(15.1417), 1e-5)
	assert.InDelta(t, -0.28015, tc.Millivolts(-7.30137), 1e-5)
	assert.InDelta(t, 0, tc.Millivolts(0), 1e-6)
}

func TestThermocouple_Compensated(t *testing.T) {
	tc := TypeT()
	assert.InDelta(t, 15.1417, tc.Compensated(0, 15.1417), 1e-3)
	assert.InDelta(t, tc.Temperature(1.0), tc.Compensated(1.0, 0), 1e-6)

	// 0.59397 mV across the junctions with the cold end at 15.1417 degC puts
	// the hot end on the second breakpoint.
	assert.InDelta(t, 29.8016, tc.Compensated(0.59397, 15.1417), 1e-3)
}

func TestRTD(t *testing.T) {
	r := DefaultRTD()
	full := uint32(1<<24 - 1)

	// 100 ohm is code 100/(5600/32) of full scale.
	code := uint32(float64(full) * 100 / (5600.0 / 32))
	assert.InDelta(t, 100, r.Resistance(code), 0.01)
	assert.InDelta(t, 0, r.Temperature(code), 0.05)

	code = uint32(float64(full) * 113.607 / (5600.0 / 32))
	assert.InDelta(t, 35, r.Temperature(code), 0.05)

	assert.InDelta(t, 5600, RTD{Reference: 5600, Bits: 24}.Resistance(full), 0.01)
}

func TestRTD_Code(t *testing.T) {
	r := DefaultRTD()
	for _, temp := range []float32{-20, 0, 25, 35, 80} {
		assert.InDelta(t, temp, r.Temperature(r.Code(temp)), 0.01, "temperature %v", temp)
	}
	assert.Equal(t, uint32(0), r.Code(-1000))
	assert.Equal(t, uint32(1<<24-1), r.Code(1e6))
}
