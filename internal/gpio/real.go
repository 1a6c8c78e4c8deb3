//go:build linux

package gpio

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// RealOutput drives an actual GPIO line using Linux GPIO character device.
type RealOutput struct {
	line   *gpiocdev.Line
	offset int
}

// NewRealOutput requests offset on chip as an output, initially inactive.
func NewRealOutput(chip string, offset int) (*RealOutput, error) {
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer(Consumer))
	if err != nil {
		return nil, fmt.Errorf("request pin %d on %s: %w", offset, chip, err)
	}
	return &RealOutput{line: line, offset: offset}, nil
}

// SetValue drives the line.
func (o *RealOutput) SetValue(v int) error {
	if err := o.line.SetValue(v); err != nil {
		return fmt.Errorf("set pin %d: %w", o.offset, err)
	}
	return nil
}

// Close drives the line inactive and releases it.
// The line is reconfigured to input with pull-down (matching Pi boot defaults)
// so a buzzer is never left sounding after the process exits.
func (o *RealOutput) Close() error {
	var errs []error

	if err := o.line.SetValue(0); err != nil {
		errs = append(errs, fmt.Errorf("clear pin %d: %w", o.offset, err))
	}
	if err := o.line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
		errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", o.offset, err))
	}
	if err := o.line.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close pin %d: %w", o.offset, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
