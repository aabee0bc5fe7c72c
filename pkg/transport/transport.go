// Package transport provides byte-at-a-time serial transmitters with
// transmit-ready and byte-received notifications.
package transport

import "errors"

var (
	// ErrNotReady is returned by TransmitByte while a byte is still in flight.
	ErrNotReady = errors.New("transport: transmitter busy")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: closed")
)

// Transport is a serial transmitter/receiver.
//
// TransmitReady delivers one notification each time the transmitter becomes
// empty, including once at start. TransmitByte is valid only after such a
// notification and before the next byte is handed over. Received delivers
// incoming bytes.
type Transport interface {
	TransmitReady() <-chan struct{}
	TransmitByte(b byte) error
	Received() <-chan byte
	Close() error
}

const rxBufferSize = 64
