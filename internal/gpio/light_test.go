package gpio

import (
	"errors"
	"testing"
)

func TestLightDrivesLine(t *testing.T) {
	out := NewFakeOutput()
	l := NewLight(out)

	l.Assert()
	if out.Level() != 1 {
		t.Errorf("after Assert: got %d, want 1", out.Level())
	}
	l.Deassert()
	if out.Level() != 0 {
		t.Errorf("after Deassert: got %d, want 0", out.Level())
	}
}

func TestLightSwallowsWriteErrors(t *testing.T) {
	out := NewFakeOutput()
	out.SetError = errors.New("line busy")
	l := NewLight(out)

	// Must not panic or block.
	l.Assert()
	l.Deassert()
}

func TestActiveToneIgnoresFrequency(t *testing.T) {
	out := NewFakeOutput()
	tone := NewActiveTone(out)

	tone.Start(440)
	if out.Level() != 1 {
		t.Errorf("after Start: got %d, want 1", out.Level())
	}
	tone.Stop()
	if out.Level() != 0 {
		t.Errorf("after Stop: got %d, want 0", out.Level())
	}
	if n := len(out.Values()); n != 2 {
		t.Errorf("writes: got %d, want 2", n)
	}
}
