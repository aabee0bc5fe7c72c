package adc

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/itohio/tcstream/pkg/calib"
	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/convert"
	"go.uber.org/zap"
)

// Mock simulates a thermocouple front end for testing and development.
// Channel 0 follows a slow sine drift around the configured EMF; other
// channels hold whatever value was last set with Simulate or SimulateRTD.
type Mock struct {
	cfg    config.ADCConfig
	logger *zap.Logger

	mu        sync.RWMutex
	channel   int
	gain      float64
	fixed     map[int]float64 // simulated mV per channel
	codes     map[int]int32   // ratiometric channels, pinned codes
	startTime time.Time
	running   bool

	calibMode  calib.Mode
	calibUntil time.Time
	offset     float64 // mV removed by zero calibration
}

var (
	_ Source       = (*Mock)(nil)
	_ Selector     = (*Mock)(nil)
	_ calib.Device = (*Mock)(nil)
)

// NewMock creates a new simulated source.
func NewMock(cfg config.ADCConfig, logger *zap.Logger) *Mock {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 250 * time.Millisecond
	}
	if cfg.Bits == 0 {
		cfg.Bits = 24
	}
	if cfg.Reference == 0 {
		cfg.Reference = 1.2
	}
	if cfg.Gain == 0 {
		cfg.Gain = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Mock{
		cfg:     cfg,
		logger:  logger,
		channel: cfg.Channel,
		gain:    cfg.Gain,
		fixed:   make(map[int]float64),
		codes:   make(map[int]int32),
	}
}

// Run emits one conversion per sample period until ctx ends.
func (m *Mock) Run(ctx context.Context, onConversion Handler) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return fmt.Errorf("already running")
	}
	m.running = true
	m.startTime = time.Now()
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	ticker := time.NewTicker(m.cfg.SampleRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if m.calibrating(now) {
				continue
			}
			onConversion(m.Code(now))
		}
	}
}

// IsRunning reports whether Run is active.
func (m *Mock) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Select switches the input channel and PGA gain.
func (m *Mock) Select(channel int, gain float64) error {
	if channel < 0 {
		return fmt.Errorf("invalid channel %d", channel)
	}
	if gain <= 0 {
		return fmt.Errorf("invalid gain %v", gain)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channel = channel
	m.gain = gain
	return nil
}

// Simulate pins channel to a constant input in millivolts.
func (m *Mock) Simulate(channel int, millivolts float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fixed[channel] = millivolts
}

// SimulateRTD pins channel to the reading of an RTD at degC. RTD readings are
// ratiometric, so the code does not depend on the voltage reference.
func (m *Mock) SimulateRTD(channel int, rtd convert.RTD, degC float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[channel] = int32(rtd.Code(float32(degC)))
}

// Millivolts returns the simulated input of the selected channel at t.
func (m *Mock) Millivolts(t time.Time) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.millivolts(t)
}

func (m *Mock) millivolts(t time.Time) float64 {
	if mv, ok := m.fixed[m.channel]; ok {
		return mv - m.offset
	}
	if m.channel != 0 {
		return 0
	}

	elapsed := t.Sub(m.startTime)
	mock := m.cfg.Mock
	mv := mock.Millivolts
	if mock.Period > 0 {
		mv += mock.Swing * math.Sin(2*math.Pi*elapsed.Seconds()/mock.Period.Seconds())
	}
	noise := (math.Sin(float64(elapsed.Nanoseconds())*0.001) +
		math.Cos(float64(elapsed.Nanoseconds())*0.0013)) *
		mock.NoiseLevel * 0.5
	return mv + noise - m.offset
}

// Code converts the simulated input at t into a clamped raw code.
func (m *Mock) Code(t time.Time) int32 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if code, ok := m.codes[m.channel]; ok {
		return code
	}

	span := m.cfg.Reference
	if m.cfg.Bipolar {
		span *= 2
	}
	voltsPerCode := span / math.Exp2(float64(m.cfg.Bits))
	volts := m.millivolts(t) / 1000 * m.gain
	return clampCode(math.Round(volts/voltsPerCode), m.cfg.Bits, m.cfg.Bipolar)
}

// StartCalibration begins a calibration. Conversions pause until it is done.
func (m *Mock) StartCalibration(mode calib.Mode) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if now.Before(m.calibUntil) {
		return fmt.Errorf("calibration %s in progress", m.calibMode)
	}
	m.calibMode = mode
	m.calibUntil = now.Add(m.cfg.Mock.CalibrationTime)

	if mode == calib.ZeroScale {
		// whatever is applied now reads as zero afterwards
		m.offset = 0
		m.offset = m.millivolts(now)
	}
	m.logger.Debug("Mock calibration started", zap.Stringer("mode", mode))
	return nil
}

// CalibrationDone reports whether the last calibration has finished.
func (m *Mock) CalibrationDone() bool {
	return !m.calibrating(time.Now())
}

func (m *Mock) calibrating(t time.Time) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return t.Before(m.calibUntil)
}
