package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/config"
	"github.com/sweeney/blinky-buzzer/internal/indicator"
	"github.com/sweeney/blinky-buzzer/internal/logging"
	"github.com/sweeney/blinky-buzzer/internal/mqtt"
	"github.com/sweeney/blinky-buzzer/internal/status"
	"github.com/sweeney/blinky-buzzer/internal/web"
)

// commandQueueSize bounds commands waiting for the control loop.
const commandQueueSize = 16

func newRunCmd() *cobra.Command {
	var (
		name      string
		broker    string
		httpAddr  string
		poll      time.Duration
		heartbeat time.Duration
		pinLED    int
		pinBuzzer int
		buzzer    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the indicator daemon (GPIO, MQTT, HTTP)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("name") {
				cfg.Name = name
			}
			if flags.Changed("broker") {
				cfg.Broker = broker
			}
			if flags.Changed("http") {
				cfg.HTTPAddr = httpAddr
			}
			if flags.Changed("poll") {
				cfg.Poll = poll
			}
			if flags.Changed("heartbeat") {
				cfg.Heartbeat = heartbeat
			}
			if flags.Changed("pin-led") {
				cfg.PinLED = pinLED
			}
			if flags.Changed("pin-buzzer") {
				cfg.PinBuzzer = pinBuzzer
			}
			if flags.Changed("buzzer") {
				cfg.Buzzer = buzzer
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runDaemon(cfg)
		},
	}

	def := config.Default()
	cmd.Flags().StringVar(&name, "name", def.Name, "device name used in MQTT topics and client ID")
	cmd.Flags().StringVar(&broker, "broker", def.Broker, "MQTT broker address (empty to disable)")
	cmd.Flags().StringVar(&httpAddr, "http", def.HTTPAddr, "HTTP status address (empty to disable)")
	cmd.Flags().DurationVar(&poll, "poll", def.Poll, "scheduler polling interval")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", def.Heartbeat, "heartbeat interval (0 to disable)")
	cmd.Flags().IntVar(&pinLED, "pin-led", def.PinLED, "BCM pin number for the LED")
	cmd.Flags().IntVar(&pinBuzzer, "pin-buzzer", def.PinBuzzer, "BCM pin number for the buzzer")
	cmd.Flags().StringVar(&buzzer, "buzzer", def.Buzzer, "buzzer kind (active|passive)")
	return cmd
}

func runDaemon(cfg config.Config) error {
	hw, err := openHardware(cfg)
	if err != nil {
		return err
	}
	defer hw.Close()

	sched := hw.scheduler(cfg)
	cmds := make(chan command.Command, commandQueueSize)
	submit := func(c command.Command) bool {
		select {
		case cmds <- c:
			return true
		default:
			return false
		}
	}

	var publisher mqtt.Publisher = nopPublisher{}
	var mqttStatus mqtt.ConnectionStatus
	if cfg.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.Broker, cfg.Name, func(c command.Command) {
			if !submit(c) {
				logging.Warnf("mqtt: command queue full, dropped %s", c)
			}
		})
		if err != nil {
			return fmt.Errorf("init mqtt: %w", err)
		}
		defer p.Close()
		publisher, mqttStatus = p, p
	}

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(time.Now(), statusConfig(cfg))
	tracker.Update(sched.State())
	if mqttStatus != nil {
		tracker.SetMQTTConnected(mqttStatus.IsConnected())
	}

	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		logging.Warnf("failed to publish startup event: %v", err)
	} else {
		logging.Infof("published startup event")
	}

	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, submit)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.Errorf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
		logging.Infof("http status server listening on %s", cfg.HTTPAddr)
	}

	logging.Infof("started: name=%s poll=%v broker=%s led=%d buzzer=%d (%s)",
		cfg.Name, cfg.Poll, cfg.Broker, cfg.PinLED, cfg.PinBuzzer, cfg.Buzzer)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(sched, publisher, mqttStatus, tracker, cfg.Heartbeat, time.Now, ticker.C, cmds, sigCh)
}

// runLoop owns the scheduler. Commands, ticks and signals all arrive here,
// so the scheduler is only ever touched from this goroutine.
func runLoop(sched *indicator.Scheduler, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, heartbeat time.Duration, now func() time.Time, tick <-chan time.Time, cmds <-chan command.Command, sig <-chan os.Signal) error {
	lastHeartbeat := now()

	refresh := func() {
		if tracker == nil {
			return
		}
		tracker.Update(sched.State())
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
	}

	for {
		select {
		case s := <-sig:
			logging.Infof("received %v, shutting down", s)
			sched.Stop()

			reason := signalName(s)
			event := mqtt.SystemEvent{
				Timestamp: now(),
				Event:     "SHUTDOWN",
				Reason:    reason,
				Retained:  true,
			}
			if tracker != nil {
				refresh()
				event.RawPayload = status.FormatStatusEvent(tracker.Snapshot(), "SHUTDOWN", reason)
			}
			if err := publisher.PublishSystem(event); err != nil {
				logging.Warnf("failed to publish shutdown event: %v", err)
			} else {
				logging.Infof("published shutdown event")
			}
			return nil

		case c := <-cmds:
			if err := c.Apply(sched); err != nil {
				logging.Warnf("command %s: %v", c, err)
				continue
			}
			logging.Infof("command: %s", c)
			if tracker != nil {
				tracker.CommandApplied()
			}
			refresh()

		case <-tick:
			t := now()
			events := sched.Update()
			logging.Tracef("poll: %d events, running=%v", len(events), sched.IsRunning())

			for _, e := range events {
				logEvent(e)
				if err := publisher.Publish(mqtt.Event{Timestamp: t, Event: e}); err != nil {
					logging.Warnf("publish error: %v", err)
				}
			}
			if tracker != nil {
				tracker.Record(events)
			}
			refresh()

			if heartbeat > 0 && t.Sub(lastHeartbeat) >= heartbeat {
				lastHeartbeat = t
				hbEvent := mqtt.SystemEvent{
					Timestamp: t,
					Event:     "HEARTBEAT",
				}
				if tracker != nil {
					snap := tracker.Snapshot()
					logging.Infof("heartbeat: uptime=%v cycles=%d commands=%d",
						snap.Uptime().Truncate(time.Second), snap.Counts.Cycles, snap.Counts.Commands)
					hbEvent.RawPayload = status.FormatStatusEvent(snap, "HEARTBEAT", "")
				}
				if err := publisher.PublishSystem(hbEvent); err != nil {
					logging.Warnf("heartbeat publish error: %v", err)
				}
			}
		}
	}
}

func logEvent(e indicator.Event) {
	if e.Type == indicator.EventIdle {
		logging.Infof("event: %s at %dms", e.Type, e.Millis)
		return
	}
	logging.Debugf("event: %s at %dms (remaining=%d)", e.Type, e.Millis, e.Remaining)
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}

func statusConfig(cfg config.Config) status.Config {
	return status.Config{
		Name:      cfg.Name,
		PollMs:    cfg.Poll.Milliseconds(),
		Broker:    cfg.Broker,
		HTTPAddr:  cfg.HTTPAddr,
		Chip:      cfg.Chip,
		PinLED:    cfg.PinLED,
		PinBuzzer: cfg.PinBuzzer,
		Buzzer:    cfg.Buzzer,
	}
}

// nopPublisher stands in when no broker is configured.
type nopPublisher struct{}

func (nopPublisher) Publish(mqtt.Event) error             { return nil }
func (nopPublisher) PublishSystem(mqtt.SystemEvent) error { return nil }
func (nopPublisher) Close() error                         { return nil }
