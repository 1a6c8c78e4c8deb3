package main

import (
	"fmt"
	"io"

	"github.com/sweeney/blinky-buzzer/internal/clock"
	"github.com/sweeney/blinky-buzzer/internal/config"
	"github.com/sweeney/blinky-buzzer/internal/gpio"
	"github.com/sweeney/blinky-buzzer/internal/indicator"
	"github.com/sweeney/blinky-buzzer/internal/logging"
)

// hardware owns the output lines and the sinks built on them.
type hardware struct {
	light   *gpio.Light
	tone    indicator.Tone
	closers []io.Closer
}

func openHardware(cfg config.Config) (*hardware, error) {
	led, err := gpio.NewRealOutput(cfg.Chip, cfg.PinLED)
	if err != nil {
		return nil, fmt.Errorf("init led: %w", err)
	}
	buzzer, err := gpio.NewRealOutput(cfg.Chip, cfg.PinBuzzer)
	if err != nil {
		led.Close()
		return nil, fmt.Errorf("init buzzer: %w", err)
	}
	return newHardware(led, buzzer, cfg.Buzzer), nil
}

// newHardware wires sinks onto already opened lines. A passive buzzer gets
// a software square wave; an active one is simply switched.
func newHardware(led, buzzer gpio.Output, kind string) *hardware {
	h := &hardware{light: gpio.NewLight(led)}
	if kind == config.BuzzerPassive {
		soft := gpio.NewSoftTone(buzzer)
		h.tone = soft
		h.closers = append(h.closers, soft)
	} else {
		h.tone = gpio.NewActiveTone(buzzer)
	}
	h.closers = append(h.closers, buzzer, led)
	return h
}

// scheduler creates a scheduler on the real millisecond clock.
func (h *hardware) scheduler(cfg config.Config) *indicator.Scheduler {
	return indicator.New(cfg.Indicator(), h.light, h.tone, clock.New())
}

// Close releases the lines in reverse order of use, leaving them low.
func (h *hardware) Close() {
	for _, c := range h.closers {
		if err := c.Close(); err != nil {
			logging.Warnf("gpio close: %v", err)
		}
	}
}
