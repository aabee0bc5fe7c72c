package transport

import (
	"sync"
)

// Mock is an in-memory Transport. With Auto set, every transmitted byte
// completes immediately; otherwise the test completes it with Complete.
type Mock struct {
	Auto bool

	mu     sync.Mutex
	sent   []byte
	busy   bool
	closed bool
	fail   error

	ready chan struct{}
	rx    chan byte
}

var _ Transport = (*Mock)(nil)

// NewMock creates a Mock with one pending transmit-ready notification.
func NewMock(auto bool) *Mock {
	m := &Mock{
		Auto:  auto,
		ready: make(chan struct{}, 1),
		rx:    make(chan byte, rxBufferSize),
	}
	m.ready <- struct{}{}
	return m
}

// TransmitReady implements Transport.
func (m *Mock) TransmitReady() <-chan struct{} {
	return m.ready
}

// TransmitByte implements Transport.
func (m *Mock) TransmitByte(b byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case m.closed:
		return ErrClosed
	case m.fail != nil:
		return m.fail
	case m.busy:
		return ErrNotReady
	}
	m.sent = append(m.sent, b)
	if m.Auto {
		m.signal()
	} else {
		m.busy = true
	}
	return nil
}

// Complete finishes the byte in flight and raises transmit-ready.
func (m *Mock) Complete() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.busy = false
	m.signal()
}

// Fail makes every following TransmitByte return err. nil clears it.
func (m *Mock) Fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

// Receive injects a received byte.
func (m *Mock) Receive(b byte) {
	m.rx <- b
}

// Received implements Transport.
func (m *Mock) Received() <-chan byte {
	return m.rx
}

// Sent returns a copy of everything transmitted so far.
func (m *Mock) Sent() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.sent...)
}

// Close implements Transport.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *Mock) signal() {
	select {
	case m.ready <- struct{}{}:
	default:
	}
}
