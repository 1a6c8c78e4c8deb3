package gpio

import (
	"sync"
	"time"

	"github.com/sweeney/blinky-buzzer/internal/logging"
)

// ActiveTone drives a buzzer with a built-in oscillator: the line is simply
// held high while sounding. The requested frequency is ignored.
type ActiveTone struct {
	out Output
}

// NewActiveTone wraps out as an active buzzer.
func NewActiveTone(out Output) *ActiveTone {
	return &ActiveTone{out: out}
}

// Start sounds the buzzer.
func (t *ActiveTone) Start(hz uint32) { t.set(1) }

// Stop silences the buzzer.
func (t *ActiveTone) Stop() { t.set(0) }

func (t *ActiveTone) set(v int) {
	if err := t.out.SetValue(v); err != nil {
		logging.Warnf("gpio: buzzer write %d: %v", v, err)
	}
}

// SoftTone drives a passive piezo with a software square wave.
// Start and Stop never block; the wave is generated by one goroutine.
// A frequency of zero silences the line.
type SoftTone struct {
	out  Output
	req  chan uint32
	done chan struct{}
	once sync.Once
}

// NewSoftTone starts the wave generator for out.
func NewSoftTone(out Output) *SoftTone {
	t := &SoftTone{
		out:  out,
		req:  make(chan uint32, 1),
		done: make(chan struct{}),
	}
	go t.run()
	return t
}

// Start begins a square wave at hz.
func (t *SoftTone) Start(hz uint32) { t.post(hz) }

// Stop silences the line.
func (t *SoftTone) Stop() { t.post(0) }

// Close stops the generator and waits for it to leave the line low.
// Start and Stop must not be called after Close.
func (t *SoftTone) Close() error {
	t.once.Do(func() { close(t.req) })
	<-t.done
	return nil
}

// post replaces any request the generator has not picked up yet.
// Only the control loop posts, so the retry cannot spin for long.
func (t *SoftTone) post(hz uint32) {
	for {
		select {
		case t.req <- hz:
			return
		default:
		}
		select {
		case <-t.req:
		default:
		}
	}
}

func (t *SoftTone) run() {
	defer close(t.done)

	var ticker *time.Ticker
	var tick <-chan time.Time
	level := 0

	stop := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		level = 0
		t.write(0)
	}

	for {
		select {
		case hz, ok := <-t.req:
			stop()
			if !ok {
				return
			}
			if hz > 0 {
				ticker = time.NewTicker(HalfPeriod(hz))
				tick = ticker.C
			}
		case <-tick:
			level ^= 1
			t.write(level)
		}
	}
}

func (t *SoftTone) write(v int) {
	if err := t.out.SetValue(v); err != nil {
		logging.Debugf("gpio: tone write %d: %v", v, err)
	}
}

// HalfPeriod returns the toggle interval for a square wave at hz, or zero for hz == 0.
func HalfPeriod(hz uint32) time.Duration {
	if hz == 0 {
		return 0
	}
	d := time.Second / time.Duration(2*uint64(hz))
	if d < time.Microsecond {
		d = time.Microsecond
	}
	return d
}
