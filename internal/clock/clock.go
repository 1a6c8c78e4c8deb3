// Package clock provides millisecond clock sources for the indicator scheduler.
package clock

import (
	"sync/atomic"
	"time"
)

// Monotonic reports milliseconds elapsed since it was created.
// The reading wraps every 2^32 ms (about 49.7 days).
type Monotonic struct {
	epoch time.Time
}

// New creates a Monotonic clock starting at zero.
func New() *Monotonic {
	return &Monotonic{epoch: time.Now()}
}

// Millis returns elapsed milliseconds truncated to 32 bits.
func (m *Monotonic) Millis() uint32 {
	return uint32(time.Since(m.epoch).Milliseconds())
}

// Fake is a manually driven clock for tests.
// It may be advanced from one goroutine while another reads it.
type Fake struct {
	now atomic.Uint32
}

// NewFake creates a Fake clock reading start.
func NewFake(start uint32) *Fake {
	f := &Fake{}
	f.now.Store(start)
	return f
}

// Millis returns the current fake reading.
func (f *Fake) Millis() uint32 {
	return f.now.Load()
}

// Set jumps the clock to ms.
func (f *Fake) Set(ms uint32) {
	f.now.Store(ms)
}

// Advance moves the clock forward by d, wrapping like the real counter.
func (f *Fake) Advance(d time.Duration) {
	f.now.Add(uint32(d.Milliseconds()))
}
