package adc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/itohio/tcstream/pkg/config"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
	"go.uber.org/zap"
)

// DefaultBaudRate is the default baud rate of a remote converter link.
const DefaultBaudRate = 115200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, lerr := serial.GetPortsList()
		if lerr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", lerr)
		}
		result := make([]Port, 0, len(names))
		for _, name := range names {
			result = append(result, Port{Name: name, Description: name})
		}
		return result, nil
	}

	result := make([]Port, 0, len(details))
	for _, d := range details {
		desc := d.Name
		if d.IsUSB {
			desc = fmt.Sprintf("%s (USB %s:%s %s)", d.Name, d.VID, d.PID, d.Product)
		}
		result = append(result, Port{Name: d.Name, Description: desc})
	}
	return result, nil
}

// ParseError describes a line that does not carry a valid code.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid sample line %q: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Serial is a remote converter that prints one raw code per line, either as
// a signed decimal or as 0x-prefixed two's complement hex of the code width.
type Serial struct {
	port     string
	baudRate int
	bits     uint
	bipolar  bool
	logger   *zap.Logger

	open func() (io.ReadCloser, error)

	mu      sync.Mutex
	running bool
}

var _ Source = (*Serial)(nil)

// NewSerial creates a serial source for the port named in cfg.
func NewSerial(cfg config.ADCConfig, logger *zap.Logger) *Serial {
	s := newSerial(cfg, logger)
	s.open = func() (io.ReadCloser, error) {
		port, err := serial.Open(s.port, &serial.Mode{BaudRate: s.baudRate})
		if err != nil {
			return nil, fmt.Errorf("failed to open serial port %s: %w", s.port, err)
		}
		return port, nil
	}
	return s
}

// NewSerialReader creates a serial source reading from an already open stream.
func NewSerialReader(r io.ReadCloser, cfg config.ADCConfig, logger *zap.Logger) *Serial {
	s := newSerial(cfg, logger)
	s.open = func() (io.ReadCloser, error) { return r, nil }
	return s
}

func newSerial(cfg config.ADCConfig, logger *zap.Logger) *Serial {
	baudRate := cfg.BaudRate
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	bits := cfg.Bits
	if bits == 0 {
		bits = 24
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serial{
		port:     cfg.Port,
		baudRate: baudRate,
		bits:     bits,
		bipolar:  cfg.Bipolar,
		logger:   logger,
	}
}

// Run reads codes until ctx ends or the stream fails.
func (s *Serial) Run(ctx context.Context, onConversion Handler) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	conn, err := s.open()
	if err != nil {
		return err
	}

	// Closing the stream is the only way to unblock the scanner.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		if err := conn.Close(); err != nil {
			s.logger.Debug("Error closing serial port", zap.String("port", s.port), zap.Error(err))
		}
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		raw, err := ParseCode(line, s.bits, s.bipolar)
		if err != nil {
			s.logger.Warn("Failed to parse line", zap.String("port", s.port), zap.Error(err))
			continue
		}
		onConversion(raw)
	}

	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("error reading from serial port %s: %w", s.port, err)
	}
	return nil
}

// ParseCode parses one line into a raw code of the given width. Hex codes are
// sign-extended when bipolar is set. Decimal codes must fit the code range.
func ParseCode(line string, bits uint, bipolar bool) (int32, error) {
	if bits == 0 || bits > 32 {
		bits = 32
	}
	lo, hi := codeRange(bits, bipolar)

	if rest, ok := cutHexPrefix(line); ok {
		u, err := strconv.ParseUint(rest, 16, 32)
		if err != nil {
			return 0, &ParseError{Line: line, Err: err}
		}
		if bits < 32 && u >= uint64(1)<<bits {
			return 0, &ParseError{Line: line, Err: fmt.Errorf("code out of range: %#x (%d bits)", u, bits)}
		}
		v := int64(u)
		if bipolar && u&(uint64(1)<<(bits-1)) != 0 {
			v -= int64(1) << bits
		}
		if v < lo || v > hi {
			return 0, &ParseError{Line: line, Err: fmt.Errorf("code out of range: %#x", u)}
		}
		return int32(v), nil
	}

	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Err: err}
	}
	if v < lo || v > hi {
		return 0, &ParseError{Line: line, Err: fmt.Errorf("code out of range: %d (min %d, max %d)", v, lo, hi)}
	}
	return int32(v), nil
}

func cutHexPrefix(s string) (string, bool) {
	if rest, ok := strings.CutPrefix(s, "0x"); ok {
		return rest, true
	}
	return strings.CutPrefix(s, "0X")
}
