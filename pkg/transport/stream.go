package transport

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stream is a Transport over an io.Writer and an optional io.Reader.
// A writer goroutine performs each write and raises transmit-ready when it
// completes; a reader goroutine raises byte-received events.
type Stream struct {
	w       io.Writer
	r       io.Reader
	closers []io.Closer
	logger  *zap.Logger

	ready chan struct{}
	tx    chan byte
	rx    chan byte
	busy  atomic.Bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	writeErrors atomic.Uint64
	rxDropped   atomic.Uint64
}

var _ Transport = (*Stream)(nil)

// NewStream starts a Stream. r may be nil for a transmit-only link. closers
// are closed by Close.
func NewStream(w io.Writer, r io.Reader, logger *zap.Logger, closers ...io.Closer) *Stream {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Stream{
		w:       w,
		r:       r,
		closers: closers,
		logger:  logger,
		ready:   make(chan struct{}, 1),
		tx:      make(chan byte, 1),
		rx:      make(chan byte, rxBufferSize),
		done:    make(chan struct{}),
	}
	s.ready <- struct{}{}

	s.wg.Add(1)
	go s.writeLoop()
	if r != nil {
		go s.readLoop()
	}
	return s
}

// TransmitReady implements Transport.
func (s *Stream) TransmitReady() <-chan struct{} {
	return s.ready
}

// TransmitByte implements Transport.
func (s *Stream) TransmitByte(b byte) error {
	select {
	case <-s.done:
		return ErrClosed
	default:
	}
	if !s.busy.CompareAndSwap(false, true) {
		return ErrNotReady
	}
	s.tx <- b
	return nil
}

// Received implements Transport.
func (s *Stream) Received() <-chan byte {
	return s.rx
}

// WriteErrors returns how many bytes failed to write.
func (s *Stream) WriteErrors() uint64 {
	return s.writeErrors.Load()
}

// Close stops the writer and closes the underlying streams.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		for _, c := range s.closers {
			err = multierr.Append(err, c.Close())
		}
	})
	return err
}

func (s *Stream) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			// a byte accepted before Close still goes out
			select {
			case b := <-s.tx:
				s.write(b)
			default:
			}
			return
		case b := <-s.tx:
			s.write(b)
			s.busy.Store(false)
			select {
			case s.ready <- struct{}{}:
			default:
			}
		}
	}
}

func (s *Stream) write(b byte) {
	if _, err := s.w.Write([]byte{b}); err != nil {
		s.writeErrors.Add(1)
		s.logger.Debug("Write failed, byte lost", zap.Error(err))
	}
}

func (s *Stream) readLoop() {
	buf := make([]byte, rxBufferSize)
	for {
		n, err := s.r.Read(buf)
		for _, b := range buf[:n] {
			select {
			case s.rx <- b:
			case <-s.done:
				return
			default:
				s.rxDropped.Add(1)
			}
		}
		if err != nil {
			select {
			case <-s.done:
			default:
				if !errors.Is(err, io.EOF) {
					s.logger.Warn("Receive failed", zap.Error(err))
				}
			}
			return
		}
	}
}
