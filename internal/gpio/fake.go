package gpio

import "sync"

// FakeOutput is a test double that records every value written.
// Safe for concurrent use, since SoftTone writes from its own goroutine.
type FakeOutput struct {
	mu     sync.Mutex
	values []int
	closed bool

	// SetError, if set, will be returned by SetValue.
	SetError error
}

// NewFakeOutput creates an empty FakeOutput.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// SetValue records v.
func (f *FakeOutput) SetValue(v int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SetError != nil {
		return f.SetError
	}
	f.values = append(f.values, v)
	return nil
}

// Close marks the output as closed.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Values returns a copy of all values written so far.
func (f *FakeOutput) Values() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.values...)
}

// Level returns the last value written, or 0 if none.
func (f *FakeOutput) Level() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.values) == 0 {
		return 0
	}
	return f.values[len(f.values)-1]
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Reset clears recorded values.
func (f *FakeOutput) Reset() {
	f.mu.Lock()
	f.values = nil
	f.closed = false
	f.mu.Unlock()
}
