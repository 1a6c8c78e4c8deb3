package clock

import (
	"testing"
	"time"
)

func TestMonotonicStartsNearZero(t *testing.T) {
	c := New()
	if ms := c.Millis(); ms > 1000 {
		t.Errorf("expected reading near zero, got %d", ms)
	}
}

func TestMonotonicNonDecreasing(t *testing.T) {
	c := New()
	prev := c.Millis()
	for i := 0; i < 100; i++ {
		now := c.Millis()
		if now < prev {
			t.Fatalf("clock went backwards: %d -> %d", prev, now)
		}
		prev = now
	}
}

func TestMonotonicAdvances(t *testing.T) {
	c := &Monotonic{epoch: time.Now().Add(-1500 * time.Millisecond)}
	if ms := c.Millis(); ms < 1500 {
		t.Errorf("expected at least 1500ms, got %d", ms)
	}
}

func TestFakeSetAndAdvance(t *testing.T) {
	f := NewFake(100)
	if f.Millis() != 100 {
		t.Errorf("start: got %d, want 100", f.Millis())
	}

	f.Advance(250 * time.Millisecond)
	if f.Millis() != 350 {
		t.Errorf("after advance: got %d, want 350", f.Millis())
	}

	f.Set(7)
	if f.Millis() != 7 {
		t.Errorf("after set: got %d, want 7", f.Millis())
	}
}

func TestFakeWraps(t *testing.T) {
	f := NewFake(0xFFFFFFF0)
	f.Advance(32 * time.Millisecond)
	if f.Millis() != 0x10 {
		t.Errorf("expected wrap to 0x10, got %#x", f.Millis())
	}
	// Unsigned difference stays correct across the wrap.
	if elapsed := f.Millis() - 0xFFFFFFF0; elapsed != 32 {
		t.Errorf("elapsed across wrap: got %d, want 32", elapsed)
	}
}
