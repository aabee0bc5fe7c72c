// Package calib runs the converter calibration handshake: prompt the operator,
// wait for a keypress on the serial link, issue the command and wait for the
// converter to report completion.
package calib

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/itohio/tcstream/pkg/logger"
	"go.uber.org/zap"
)

// Mode selects a calibration command.
type Mode int

// Calibration modes.
const (
	SelfOffset Mode = iota // internal zero, no operator action
	SelfGain               // internal full scale, no operator action
	ZeroScale              // system zero scale, operator applies zero input
	FullScale              // system full scale, operator applies full scale input
)

func (m Mode) String() string {
	switch m {
	case SelfOffset:
		return "self-offset"
	case SelfGain:
		return "self-gain"
	case ZeroScale:
		return "zero"
	case FullScale:
		return "full"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// Prompted reports whether the mode needs the operator to set an input first.
func (m Mode) Prompted() bool {
	return m == ZeroScale || m == FullScale
}

// ParseMode parses a mode name as used in configuration.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "self-offset", "self_offset":
		return SelfOffset, nil
	case "self-gain", "self_gain":
		return SelfGain, nil
	case "zero":
		return ZeroScale, nil
	case "full":
		return FullScale, nil
	}
	return 0, fmt.Errorf("unknown calibration step %q", s)
}

var (
	// ErrPromptTimeout is returned when nobody answers a prompt in time.
	ErrPromptTimeout = errors.New("calib: no operator response")
	// ErrCalibrationTimeout is returned when the converter never reports completion.
	ErrCalibrationTimeout = errors.New("calib: calibration did not complete")
)

// TimeoutError names the step that timed out.
type TimeoutError struct {
	Mode    Mode
	Timeout time.Duration
	Err     error // ErrPromptTimeout or ErrCalibrationTimeout
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%v (step %s, after %s)", e.Err, e.Mode, e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

// Device is a converter that can run calibration commands.
type Device interface {
	StartCalibration(mode Mode) error
	CalibrationDone() bool
}

// Console is the operator side of the serial link.
type Console interface {
	// ArmWait starts listening for a reply. Bytes received before it are ignored.
	ArmWait()
	// Enqueue queues text for transmission. It reports false when it did not fit.
	Enqueue(text []byte) bool
	// WaitForByte blocks until a byte is received, the timeout passes or ctx
	// ends. It arms the wait itself unless ArmWait was called.
	WaitForByte(ctx context.Context, timeout time.Duration) (byte, error)
}

// Calibrator runs calibration steps against a device.
type Calibrator struct {
	Device           Device
	Console          Console
	FullScaleVoltage float64
	PromptTimeout    time.Duration
	CompleteTimeout  time.Duration
	PollInterval     time.Duration
	Logger           *zap.Logger
}

// Prompt returns the operator prompt for a mode.
func (c *Calibrator) Prompt(mode Mode) string {
	switch mode {
	case ZeroScale:
		return "Set Zero Scale Voltage - Press return when ready \r\n"
	case FullScale:
		v := strconv.FormatFloat(c.FullScaleVoltage, 'f', -1, 64)
		return "Set Full Scale Voltage (" + v + ") - Press return when ready \r\n"
	}
	return ""
}

// Run executes steps in order and stops at the first failure.
func (c *Calibrator) Run(ctx context.Context, steps ...Mode) error {
	for _, mode := range steps {
		if err := c.Step(ctx, mode); err != nil {
			return err
		}
	}
	return nil
}

// Step executes a single calibration step.
func (c *Calibrator) Step(ctx context.Context, mode Mode) error {
	log := logger.OrNop(c.Logger).With(zap.Stringer("step", mode))

	if mode.Prompted() {
		// listen before prompting so a quick reply is not missed
		c.Console.ArmWait()
		if !c.Console.Enqueue([]byte(c.Prompt(mode))) {
			log.Warn("Calibration prompt dropped, output buffer full")
		}
		if _, err := c.Console.WaitForByte(ctx, c.PromptTimeout); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return &TimeoutError{Mode: mode, Timeout: c.PromptTimeout, Err: ErrPromptTimeout}
		}
	}

	log.Debug("Starting calibration")
	if err := c.Device.StartCalibration(mode); err != nil {
		return fmt.Errorf("failed to start %s calibration: %w", mode, err)
	}

	if err := c.waitDone(ctx); err != nil {
		if errors.Is(err, ErrCalibrationTimeout) {
			return &TimeoutError{Mode: mode, Timeout: c.CompleteTimeout, Err: err}
		}
		return err
	}

	log.Info("Calibration complete")
	return nil
}

func (c *Calibrator) waitDone(ctx context.Context) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if c.CompleteTimeout > 0 {
		timer := time.NewTimer(c.CompleteTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for !c.Device.CalibrationDone() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			if c.Device.CalibrationDone() {
				return nil
			}
			return ErrCalibrationTimeout
		case <-ticker.C:
		}
	}
	return nil
}
