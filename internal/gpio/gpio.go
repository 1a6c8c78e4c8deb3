// Package gpio provides the GPIO output lines behind the LED and buzzer.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

// Output drives a single GPIO line.
type Output interface {
	// SetValue drives the line active (1) or inactive (0).
	SetValue(v int) error

	// Close releases the line.
	Close() error
}

// Defaults for a Raspberry Pi (BCM numbering).
const (
	DefaultChip      = "gpiochip0"
	DefaultPinLED    = 17
	DefaultPinBuzzer = 18
)

// Consumer is the label shown for our lines in gpioinfo.
const Consumer = "blinky-buzzer"
