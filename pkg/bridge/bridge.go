// Package bridge couples a converter's conversion-complete events to a serial
// transmitter's transmit-ready events through a single-slot sample cell and a
// lock-free ring buffer.
//
// Three goroutines take part. The source goroutine calls OnConversionComplete.
// The acquisition goroutine (Run) formats the latest sample and writes the
// record into the ring; it is the only ring writer, so Enqueue, ArmWait and
// WaitForByte belong to it as well. The drain goroutine (Drain) reacts to the
// transport, moving one byte per transmit-ready notification.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/itohio/tcstream/pkg/config"
	"github.com/itohio/tcstream/pkg/format"
	"github.com/itohio/tcstream/pkg/ring"
	"github.com/itohio/tcstream/pkg/transport"
	"go.uber.org/zap"
)

// ErrWaitTimeout is returned by WaitForByte when no byte arrives in time.
var ErrWaitTimeout = errors.New("bridge: timed out waiting for input")

// sampleFlag marks an unread sample. The low 32 bits hold the raw code.
const sampleFlag = uint64(1) << 32

// Policy decides what happens to a record that does not fit the ring.
type Policy int

const (
	// DropRecord discards the whole record when the ring lacks room for it.
	DropRecord Policy = iota
	// Truncate writes as many bytes as fit and drops the rest.
	Truncate
)

func (p Policy) String() string {
	switch p {
	case DropRecord:
		return config.PolicyDropRecord
	case Truncate:
		return config.PolicyTruncate
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy maps a configured policy name to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case config.PolicyDropRecord, "":
		return DropRecord, nil
	case config.PolicyTruncate:
		return Truncate, nil
	}
	return DropRecord, fmt.Errorf("unknown output policy %q", s)
}

// Bridge is the producer/consumer pipeline state.
type Bridge struct {
	buf           *ring.Buffer
	formatter     format.Formatter
	tx            transport.Transport
	policy        Policy
	logger        *zap.Logger
	statsInterval time.Duration
	flushTimeout  time.Duration

	sample     atomic.Uint64
	sampleWake chan struct{}
	dataWake   chan struct{}

	awaiting atomic.Bool
	armed    bool // set by ArmWait, owned by the acquisition goroutine
	received chan byte

	record []byte

	conversions     atomic.Uint64
	records         atomic.Uint64
	overruns        atomic.Uint64
	droppedRecords  atomic.Uint64
	droppedBytes    atomic.Uint64
	truncated       atomic.Uint64
	formatOverflows atomic.Uint64
	formatErrors    atomic.Uint64
	transmitted     atomic.Uint64
	transmitErrors  atomic.Uint64
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithPolicy sets the ring overflow policy.
func WithPolicy(p Policy) Option {
	return func(b *Bridge) {
		b.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStatsInterval makes Serve log counters every d and warn when records
// are being lost. Zero disables it.
func WithStatsInterval(d time.Duration) Option {
	return func(b *Bridge) {
		b.statsInterval = d
	}
}

// WithFlushTimeout bounds how long Serve drains the ring at shutdown.
func WithFlushTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		b.flushTimeout = d
	}
}

// New creates a Bridge writing records rendered by f into buf and draining
// buf into tx.
func New(buf *ring.Buffer, f format.Formatter, tx transport.Transport, opts ...Option) *Bridge {
	b := &Bridge{
		buf:          buf,
		formatter:    f,
		tx:           tx,
		policy:       DropRecord,
		logger:       zap.NewNop(),
		flushTimeout: DefaultFlushTimeout,
		sampleWake:   make(chan struct{}, 1),
		dataWake:     make(chan struct{}, 1),
		received:     make(chan byte, 1),
		record:       make([]byte, 0, format.DefaultMaxRecord),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// OnConversionComplete latches raw as the latest sample. An unread sample is
// overwritten and counted as an overrun. It never blocks.
func (b *Bridge) OnConversionComplete(raw int32) {
	old := b.sample.Swap(sampleFlag | uint64(uint32(raw)))
	b.conversions.Add(1)
	if old&sampleFlag != 0 {
		b.overruns.Add(1)
	}
	signal(b.sampleWake)
}

// Latest returns the last latched sample and whether it is still unread.
func (b *Bridge) Latest() (int32, bool) {
	v := b.sample.Load()
	return int32(uint32(v)), v&sampleFlag != 0
}

// Poll consumes the pending sample, if any, and writes its record into the
// ring. It reports whether a sample was consumed.
func (b *Bridge) Poll() bool {
	old := b.sample.And(^sampleFlag)
	if old&sampleFlag == 0 {
		return false
	}
	b.consume(int32(uint32(old)))
	return true
}

func (b *Bridge) consume(raw int32) {
	rec, err := b.formatter.Format(b.record[:0], raw)
	if err != nil {
		if errors.Is(err, format.ErrFormatOverflow) {
			b.formatOverflows.Add(1)
		} else {
			b.formatErrors.Add(1)
		}
		b.logger.Debug("Record discarded", zap.Int32("raw", raw), zap.Error(err))
		return
	}
	b.record = rec[:0]
	b.push(rec)
}

func (b *Bridge) push(rec []byte) {
	if b.policy == Truncate {
		n := b.buf.Write(rec)
		if n > 0 {
			signal(b.dataWake)
		}
		if n < len(rec) {
			b.truncated.Add(1)
			b.droppedBytes.Add(uint64(len(rec) - n))
			b.logger.Debug("Record truncated", zap.Int("written", n), zap.Int("length", len(rec)))
			return
		}
		b.records.Add(1)
		return
	}

	if !b.buf.WriteAll(rec) {
		b.droppedRecords.Add(1)
		b.droppedBytes.Add(uint64(len(rec)))
		b.logger.Debug("Record dropped, output buffer full", zap.Int("length", len(rec)))
		return
	}
	b.records.Add(1)
	signal(b.dataWake)
}

// Enqueue writes text into the ring as a unit. It reports false, writing
// nothing, when text does not fit. Call it from the acquisition goroutine.
func (b *Bridge) Enqueue(text []byte) bool {
	if !b.buf.WriteAll(text) {
		return false
	}
	signal(b.dataWake)
	return true
}

// OnTransmitReady moves one byte from the ring to the transport. It reports
// false when the ring is empty or the transport rejected the byte.
func (b *Bridge) OnTransmitReady() bool {
	c, ok := b.buf.TryRead()
	if !ok {
		return false
	}
	if err := b.tx.TransmitByte(c); err != nil {
		b.transmitErrors.Add(1)
		b.logger.Debug("Transmit failed, byte lost", zap.Error(err))
		return false
	}
	b.transmitted.Add(1)
	return true
}

// OnByteReceived hands c to a pending WaitForByte. Bytes nobody waits for are
// ignored.
func (b *Bridge) OnByteReceived(c byte) {
	if b.awaiting.CompareAndSwap(true, false) {
		select {
		case b.received <- c:
		default:
		}
	}
}

// ArmWait starts listening for a received byte. Bytes received before it are
// ignored. Call it before sending a prompt so a fast reply is not lost, then
// collect the reply with WaitForByte.
func (b *Bridge) ArmWait() {
	select {
	case <-b.received:
	default:
	}
	b.awaiting.Store(true)
	b.armed = true
}

// WaitForByte blocks until a byte is received, ctx ends or timeout passes.
// Without a preceding ArmWait it only accepts bytes received after the call.
// A zero timeout waits for ctx only. The drain goroutine must be running to
// deliver received bytes.
func (b *Bridge) WaitForByte(ctx context.Context, timeout time.Duration) (byte, error) {
	if !b.armed {
		b.ArmWait()
	}
	b.armed = false
	defer b.awaiting.Store(false)

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case c := <-b.received:
		return c, nil
	case <-deadline:
		return 0, ErrWaitTimeout
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run is the acquisition loop. It consumes samples as they are latched until
// ctx ends.
func (b *Bridge) Run(ctx context.Context) error {
	for {
		for b.Poll() {
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.sampleWake:
		}
	}
}

// Drain is the transmit loop. Every transmit-ready notification moves one
// byte; once the ring runs dry the loop idles until new data is written.
// Received bytes are passed to OnByteReceived.
func (b *Bridge) Drain(ctx context.Context) error {
	ready := b.tx.TransmitReady()
	rx := b.tx.Received()
	idle := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ready:
			idle = !b.OnTransmitReady()
		case <-b.dataWake:
			if idle {
				idle = !b.OnTransmitReady()
			}
		case c, ok := <-rx:
			if !ok {
				rx = nil
				continue
			}
			b.OnByteReceived(c)
		}
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
