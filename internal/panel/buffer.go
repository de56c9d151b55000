package panel

import (
	"sync"

	"github.com/anikdutta/voterpulse/internal/transcript"
)

// DefaultBufferCapacity is the number of recent lines a panel retains.
const DefaultBufferCapacity = 50

// Buffer is a bounded ring of the most recent transcript lines. When the
// capacity is reached the oldest line is evicted on every Add (FIFO) — the
// buffer never grows past its capacity regardless of how many lines arrive.
//
// All methods are safe for concurrent use.
type Buffer struct {
	mu       sync.RWMutex
	lines    []transcript.Line
	capacity int
}

// NewBuffer creates a buffer retaining at most capacity lines.
// Non-positive capacities fall back to [DefaultBufferCapacity].
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		lines:    make([]transcript.Line, 0, capacity),
		capacity: capacity,
	}
}

// Add appends line, evicting the oldest entry when the buffer is full.
// It reports whether an eviction occurred.
func (b *Buffer) Add(line transcript.Line) (evicted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.lines = append(b.lines, line)
	if len(b.lines) <= b.capacity {
		return false
	}

	// Copy survivors to a fresh backing array so evicted lines do not pin
	// memory for the lifetime of the session.
	fresh := make([]transcript.Line, b.capacity)
	copy(fresh, b.lines[len(b.lines)-b.capacity:])
	b.lines = fresh
	return true
}

// Lines returns a copy of the buffered lines in arrival order (oldest first).
func (b *Buffer) Lines() []transcript.Line {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]transcript.Line, len(b.lines))
	copy(out, b.lines)
	return out
}

// Len returns the current number of buffered lines.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines)
}

// Capacity returns the maximum number of retained lines.
func (b *Buffer) Capacity() int {
	return b.capacity
}

// Clear drops all buffered lines. Returns how many were dropped.
func (b *Buffer) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.lines)
	b.lines = make([]transcript.Line, 0, b.capacity)
	return n
}
