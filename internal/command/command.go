// Package command defines the control commands accepted from the CLI shell,
// MQTT and HTTP, and maps them onto scheduler operations.
package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sweeney/blinky-buzzer/internal/indicator"
)

// Action names an operation.
type Action string

const (
	ActionBlink Action = "blink"
	ActionBeep  Action = "beep"
	ActionBuzz  Action = "buzz"
	ActionOnce  Action = "once"
	ActionStart Action = "start"
	ActionStop  Action = "stop"
	ActionSet   Action = "set"
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrUnknownChannel  = errors.New("unknown channel")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidNumber   = errors.New("invalid number")
	ErrUnknownField    = errors.New("unknown field")
)

// Command is a single control request. Optional fields are nil when absent.
type Command struct {
	Action      Action  `json:"action"`
	Channel     string  `json:"channel,omitempty"`
	Times       *int    `json:"times,omitempty"`
	DutyMs      *uint32 `json:"duty_ms,omitempty"`
	OnMs        *uint32 `json:"on_ms,omitempty"`
	OffMs       *uint32 `json:"off_ms,omitempty"`
	Frequency   *uint32 `json:"frequency,omitempty"`
	Repetitions *int    `json:"repetitions,omitempty"`
}

// Decode parses and validates a JSON command.
func Decode(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

// Validate checks that the action is known and its channel, if any, resolves.
func (c Command) Validate() error {
	switch c.Action {
	case ActionBlink, ActionBeep, ActionBuzz:
		return nil
	case ActionOnce, ActionStart:
		_, err := ParseChannel(c.Channel)
		return err
	case ActionStop:
		if c.Channel == "" || c.Channel == "all" {
			return nil
		}
		_, err := ParseChannel(c.Channel)
		return err
	case ActionSet:
		if c.DutyMs == nil && c.OnMs == nil && c.OffMs == nil && c.Frequency == nil && c.Repetitions == nil {
			return fmt.Errorf("set: %w: nothing to set", ErrMissingArgument)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, c.Action)
	}
}

// ParseChannel resolves a channel name.
func ParseChannel(name string) (indicator.Channel, error) {
	switch strings.ToLower(name) {
	case "light", "led":
		return indicator.ChannelLight, nil
	case "tone", "buzzer":
		return indicator.ChannelTone, nil
	case "both":
		return indicator.ChannelBoth, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownChannel, name)
	}
}

// Apply performs the command on s. The command must be valid.
func (c Command) Apply(s *indicator.Scheduler) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if c.Frequency != nil {
		s.SetFrequency(*c.Frequency)
	}
	if c.OffMs != nil {
		s.SetOffTime(*c.OffMs)
	}

	switch c.Action {
	case ActionBlink, ActionBeep, ActionBuzz:
		times := indicator.Forever
		if c.Times != nil {
			times = *c.Times
		}
		s.Start(indicator.Options{
			Channels:  actionChannel(c.Action),
			Times:     times,
			OnOffTime: c.DutyMs,
			OnTime:    c.OnMs,
		})

	case ActionOnce:
		ch, _ := ParseChannel(c.Channel)
		s.Start(indicator.Options{Channels: ch, Times: 1, OnTime: c.OnMs})

	case ActionStart:
		ch, _ := ParseChannel(c.Channel)
		s.Start(indicator.Options{
			Channels:  ch,
			Times:     indicator.Forever,
			OnOffTime: c.DutyMs,
			Join:      true,
		})

	case ActionStop:
		switch c.Channel {
		case "", "all":
			s.Stop()
		default:
			ch, _ := ParseChannel(c.Channel)
			if ch&indicator.ChannelLight != 0 {
				s.StopBlinking()
			}
			if ch&indicator.ChannelTone != 0 {
				s.StopBeeping()
			}
		}

	case ActionSet:
		if c.DutyMs != nil {
			s.SetOnOffTime(*c.DutyMs)
		}
		if c.OnMs != nil {
			s.SetOnTime(*c.OnMs)
		}
		if c.Repetitions != nil {
			s.SetRepetitions(*c.Repetitions)
		}
	}
	return nil
}

// String renders the command for logs.
func (c Command) String() string {
	var b strings.Builder
	b.WriteString(string(c.Action))
	if c.Channel != "" {
		b.WriteString(" channel=" + c.Channel)
	}
	writeInt := func(name string, v *int) {
		if v != nil {
			fmt.Fprintf(&b, " %s=%d", name, *v)
		}
	}
	writeUint := func(name string, v *uint32) {
		if v != nil {
			fmt.Fprintf(&b, " %s=%d", name, *v)
		}
	}
	writeInt("times", c.Times)
	writeUint("duty_ms", c.DutyMs)
	writeUint("on_ms", c.OnMs)
	writeUint("off_ms", c.OffMs)
	writeUint("frequency", c.Frequency)
	writeInt("repetitions", c.Repetitions)
	return b.String()
}

func actionChannel(a Action) indicator.Channel {
	switch a {
	case ActionBlink:
		return indicator.ChannelLight
	case ActionBeep:
		return indicator.ChannelTone
	default:
		return indicator.ChannelBoth
	}
}

// Parse builds a command from shell tokens:
//
//	blink|beep|buzz [times] [duty_ms]
//	once light|tone|both [on_ms]
//	start light|tone|both [duty_ms]
//	stop [light|tone|all]
//	set on|off|duty|freq|reps <n>
func Parse(tokens []string) (Command, error) {
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("%w: action", ErrMissingArgument)
	}
	c := Command{Action: Action(strings.ToLower(tokens[0]))}
	args := tokens[1:]

	var err error
	switch c.Action {
	case ActionBlink, ActionBeep, ActionBuzz:
		if len(args) > 0 {
			if c.Times, err = parseInt("times", args[0]); err != nil {
				return Command{}, err
			}
		}
		if len(args) > 1 {
			if c.DutyMs, err = parseUint("duty_ms", args[1]); err != nil {
				return Command{}, err
			}
		}

	case ActionOnce, ActionStart:
		if len(args) == 0 {
			return Command{}, fmt.Errorf("%s: %w: channel", c.Action, ErrMissingArgument)
		}
		c.Channel = strings.ToLower(args[0])
		if len(args) > 1 {
			name := "duty_ms"
			if c.Action == ActionOnce {
				name = "on_ms"
			}
			v, err := parseUint(name, args[1])
			if err != nil {
				return Command{}, err
			}
			if c.Action == ActionOnce {
				c.OnMs = v
			} else {
				c.DutyMs = v
			}
		}

	case ActionStop:
		if len(args) > 0 {
			c.Channel = strings.ToLower(args[0])
		}

	case ActionSet:
		if len(args) < 2 {
			return Command{}, fmt.Errorf("set: %w: usage set on|off|duty|freq|reps <n>", ErrMissingArgument)
		}
		if err := c.parseSet(strings.ToLower(args[0]), args[1]); err != nil {
			return Command{}, err
		}
	}

	if err := c.Validate(); err != nil {
		return Command{}, err
	}
	return c, nil
}

func (c *Command) parseSet(field, value string) error {
	var err error
	switch field {
	case "on":
		c.OnMs, err = parseUint("on_ms", value)
	case "off":
		c.OffMs, err = parseUint("off_ms", value)
	case "duty":
		c.DutyMs, err = parseUint("duty_ms", value)
	case "freq", "frequency":
		c.Frequency, err = parseUint("frequency", value)
	case "reps", "repetitions":
		c.Repetitions, err = parseInt("repetitions", value)
	default:
		return fmt.Errorf("set: %w: %q", ErrUnknownField, field)
	}
	return err
}

func parseInt(name, s string) (*int, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", name, s, ErrInvalidNumber)
	}
	return &v, nil
}

func parseUint(name, s string) (*uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", name, s, ErrInvalidNumber)
	}
	u := uint32(v)
	return &u, nil
}
