package gpio

import "github.com/sweeney/blinky-buzzer/internal/logging"

// Light drives an LED on an Output.
type Light struct {
	out Output
}

// NewLight wraps out as a visual indicator.
func NewLight(out Output) *Light {
	return &Light{out: out}
}

// Assert turns the LED on.
func (l *Light) Assert() { l.set(1) }

// Deassert turns the LED off.
func (l *Light) Deassert() { l.set(0) }

// Write failures are logged; the scheduler keeps running on a flaky line.
func (l *Light) set(v int) {
	if err := l.out.SetValue(v); err != nil {
		logging.Warnf("gpio: light write %d: %v", v, err)
	}
}
