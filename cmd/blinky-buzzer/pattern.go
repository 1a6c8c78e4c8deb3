package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/indicator"
	"github.com/sweeney/blinky-buzzer/internal/logging"
)

// newPatternCmd builds the one-shot blink, beep and buzz commands.
// They drive the outputs directly and exit once the pattern completes.
func newPatternCmd(action, short string) *cobra.Command {
	var (
		duty time.Duration
		on   time.Duration
		off  time.Duration
		freq uint32
	)
	cmd := &cobra.Command{
		Use:   action + " [times]",
		Short: short,
		Long:  short + " times cycles (default 1). A negative count runs until interrupted.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			c, err := patternCommand(command.Action(action), args, cmd.Flags().Changed, duty, on, off, freq)
			if err != nil {
				return err
			}

			hw, err := openHardware(cfg)
			if err != nil {
				return err
			}
			defer hw.Close()

			sched := hw.scheduler(cfg)
			if err := c.Apply(sched); err != nil {
				return err
			}
			logging.Infof("%s", c)

			ticker := time.NewTicker(cfg.Poll)
			defer ticker.Stop()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			return runUntilIdle(sched, ticker.C, sigCh)
		},
	}
	cmd.Flags().DurationVar(&duty, "duty", 0, "on and off duration, e.g. 200ms")
	cmd.Flags().DurationVar(&on, "on", 0, "on duration")
	cmd.Flags().DurationVar(&off, "off", 0, "off duration")
	cmd.Flags().Uint32Var(&freq, "freq", 0, "tone frequency in Hz")
	return cmd
}

// patternCommand maps positional args and changed flags onto a command.
func patternCommand(action command.Action, args []string, changed func(string) bool, duty, on, off time.Duration, freq uint32) (command.Command, error) {
	c := command.Command{Action: action}

	times := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return command.Command{}, fmt.Errorf("times %q: %w", args[0], command.ErrInvalidNumber)
		}
		times = n
	}
	c.Times = &times

	ms := func(d time.Duration) *uint32 {
		return indicator.Millis(uint32(d.Milliseconds()))
	}
	if changed("duty") {
		c.DutyMs = ms(duty)
	}
	if changed("on") {
		c.OnMs = ms(on)
	}
	if changed("off") {
		c.OffMs = ms(off)
	}
	if changed("freq") {
		c.Frequency = &freq
	}
	return c, c.Validate()
}

// runUntilIdle polls the scheduler until it stops itself or a signal arrives.
func runUntilIdle(sched *indicator.Scheduler, tick <-chan time.Time, sig <-chan os.Signal) error {
	for {
		select {
		case s := <-sig:
			logging.Infof("received %v, stopping", s)
			sched.Stop()
			return nil
		case <-tick:
			for _, e := range sched.Update() {
				logEvent(e)
			}
			if !sched.IsRunning() {
				return nil
			}
		}
	}
}
