package transport

import (
	"fmt"

	"github.com/itohio/tcstream/pkg/config"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

// DefaultBaudRate is the default output baud rate.
const DefaultBaudRate = 9600

// Mode returns the serial framing for cfg: 8 data bits, no parity, 1 or 2 stop bits.
func Mode(cfg config.SerialConfig) *serial.Mode {
	baud := cfg.BaudRate
	if baud == 0 {
		baud = DefaultBaudRate
	}
	stop := serial.OneStopBit
	if cfg.StopBits == 2 {
		stop = serial.TwoStopBits
	}
	return &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: stop,
	}
}

// OpenPort opens the serial port named in cfg as a Transport.
func OpenPort(cfg config.SerialConfig, logger *zap.Logger) (*Stream, error) {
	port, err := serial.Open(cfg.Port, Mode(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Port, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("port", cfg.Port))
	return NewStream(port, port, logger, port), nil
}
