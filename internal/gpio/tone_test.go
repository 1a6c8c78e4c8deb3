package gpio

import (
	"testing"
	"time"
)

func TestHalfPeriod(t *testing.T) {
	tests := []struct {
		hz   uint32
		want time.Duration
	}{
		{0, 0},
		{1, 500 * time.Millisecond},
		{1000, 500 * time.Microsecond},
		{4000, 125 * time.Microsecond},
		{4000000000, time.Microsecond},
	}
	for _, tt := range tests {
		if got := HalfPeriod(tt.hz); got != tt.want {
			t.Errorf("HalfPeriod(%d): got %v, want %v", tt.hz, got, tt.want)
		}
	}
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSoftToneToggles(t *testing.T) {
	out := NewFakeOutput()
	tone := NewSoftTone(out)
	defer tone.Close()

	tone.Start(500)

	// Square wave: both levels appear after the initial clear.
	waitFor(t, func() bool {
		highs, lows := 0, 0
		for _, v := range out.Values() {
			if v == 1 {
				highs++
			} else {
				lows++
			}
		}
		return highs >= 2 && lows >= 3
	})
}

func TestSoftToneStopLeavesLineLow(t *testing.T) {
	out := NewFakeOutput()
	tone := NewSoftTone(out)
	defer tone.Close()

	tone.Start(500)
	waitFor(t, func() bool { return out.Level() == 1 })

	tone.Stop()
	waitFor(t, func() bool { return out.Level() == 0 })
	time.Sleep(20 * time.Millisecond)

	n := len(out.Values())
	time.Sleep(20 * time.Millisecond)
	if got := len(out.Values()); got != n {
		t.Errorf("line kept toggling after Stop: %d -> %d writes", n, got)
	}
}

func TestSoftToneNeverBlocks(t *testing.T) {
	out := NewFakeOutput()
	tone := NewSoftTone(out)
	defer tone.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			tone.Start(uint32(100 + i))
			tone.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start/Stop blocked")
	}
}

func TestSoftToneCloseClearsLine(t *testing.T) {
	out := NewFakeOutput()
	tone := NewSoftTone(out)

	tone.Start(500)
	waitFor(t, func() bool { return out.Level() == 1 })

	if err := tone.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if out.Level() != 0 {
		t.Errorf("line should be low after Close, got %d", out.Level())
	}
	// Second close is a no-op.
	if err := tone.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}
