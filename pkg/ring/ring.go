package ring

import "sync/atomic"

// DefaultSize is the default capacity of a Buffer in bytes.
const DefaultSize = 512

// Buffer is a fixed-capacity circular byte queue for exactly one writer and
// exactly one reader. The writer owns the write index and the reader owns the
// read index, so no lock is needed.
//
// The buffer is full when (write+1) mod N == read, leaving N-1 usable slots.
type Buffer struct {
	data  []byte
	size  uint32
	write atomic.Uint32 // advanced by the writer only
	read  atomic.Uint32 // advanced by the reader only
}

// New creates a Buffer with the given capacity. Sizes below 2 are raised to 2.
func New(size int) *Buffer {
	if size < 2 {
		size = 2
	}
	return &Buffer{
		data: make([]byte, size),
		size: uint32(size),
	}
}

// Cap returns the capacity of the buffer including the reserved slot.
func (b *Buffer) Cap() int {
	return int(b.size)
}

// Len returns how many bytes are waiting to be read.
func (b *Buffer) Len() int {
	w := b.write.Load()
	r := b.read.Load()
	return int((w + b.size - r) % b.size)
}

// Free returns how many bytes can be written before the buffer is full.
func (b *Buffer) Free() int {
	return int(b.size) - 1 - b.Len()
}

// IsEmpty reports whether there is nothing to read.
func (b *Buffer) IsEmpty() bool {
	return b.write.Load() == b.read.Load()
}

// HasSpace reports whether at least one byte can be written.
func (b *Buffer) HasSpace() bool {
	return (b.write.Load()+1)%b.size != b.read.Load()
}

// TryWrite appends c. It returns false and leaves the buffer untouched when full.
// Writer side only.
func (b *Buffer) TryWrite(c byte) bool {
	w := b.write.Load()
	next := (w + 1) % b.size
	if next == b.read.Load() {
		return false
	}
	// Store the byte before publishing the slot.
	b.data[w] = c
	b.write.Store(next)
	return true
}

// TryRead removes and returns the oldest byte. The second result is false when
// the buffer is empty, in which case no index changes. Reader side only.
func (b *Buffer) TryRead() (byte, bool) {
	r := b.read.Load()
	if r == b.write.Load() {
		return 0, false
	}
	c := b.data[r]
	b.read.Store((r + 1) % b.size)
	return c, true
}

// Write enqueues p byte by byte and returns how many bytes were stored.
// Bytes that do not fit are dropped. Writer side only.
func (b *Buffer) Write(p []byte) int {
	for i, c := range p {
		if !b.TryWrite(c) {
			return i
		}
	}
	return len(p)
}

// WriteAll enqueues p only if all of it fits. Writer side only.
func (b *Buffer) WriteAll(p []byte) bool {
	if len(p) > b.Free() {
		return false
	}
	b.Write(p)
	return true
}
