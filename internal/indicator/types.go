// Package indicator contains the duty-cycle scheduler that drives an LED and a buzzer.
// This package has NO external dependencies (no GPIO, MQTT, OS, or time.Sleep).
// Time is always injectable via the Clock interface.
package indicator

// Clock supplies elapsed milliseconds since an arbitrary fixed epoch.
// The counter may wrap; elapsed time is always computed with unsigned subtraction.
type Clock interface {
	Millis() uint32
}

// Light is the visual output sink.
type Light interface {
	Assert()
	Deassert()
}

// Tone is the audible output sink.
type Tone interface {
	// Start begins a continuous tone at hz.
	Start(hz uint32)
	// Stop silences the tone.
	Stop()
}

// Config holds the timing parameters. Durations are in clock milliseconds.
type Config struct {
	Frequency uint32
	OnTime    uint32
	OffTime   uint32
}

// Defaults used when no configuration is supplied.
const (
	DefaultFrequency = 1000
	DefaultOnTime    = 500
	DefaultOffTime   = 500
)

// DefaultConfig returns a 1 kHz tone with a symmetric 500 ms duty cycle.
func DefaultConfig() Config {
	return Config{
		Frequency: DefaultFrequency,
		OnTime:    DefaultOnTime,
		OffTime:   DefaultOffTime,
	}
}

// Channel is a set of output channels.
type Channel uint8

const (
	ChannelLight Channel = 1 << iota
	ChannelTone

	ChannelBoth = ChannelLight | ChannelTone
)

// String returns "light", "tone", "both" or "none".
func (c Channel) String() string {
	switch c {
	case ChannelLight:
		return "light"
	case ChannelTone:
		return "tone"
	case ChannelBoth:
		return "both"
	default:
		return "none"
	}
}

// Forever is the repetition count that never self-stops. Any negative value works.
const Forever = -1

// Options describes a start request.
type Options struct {
	// Channels to enable.
	Channels Channel
	// Times is the number of full cycles to run. Negative runs forever,
	// zero stops on the next Update.
	Times int
	// OnOffTime, when non-nil, replaces both durations before starting.
	OnOffTime *uint32
	// OnTime, when non-nil, replaces the on duration before starting.
	OnTime *uint32
	// Join adds Channels to a cycle already running on the other channel
	// without touching the repetition counter or the timer.
	Join bool
}

// Millis returns a pointer to ms, for the optional Options fields.
func Millis(ms uint32) *uint32 {
	return &ms
}

// EventType identifies a transition driven by Update.
type EventType string

const (
	EventLightOn  EventType = "LIGHT_ON"
	EventLightOff EventType = "LIGHT_OFF"
	EventToneOn   EventType = "TONE_ON"
	EventToneOff  EventType = "TONE_OFF"
	EventIdle     EventType = "IDLE"
)

// Event is a transition emitted by Update.
type Event struct {
	Type EventType
	// Millis is the clock reading at which the transition happened.
	Millis uint32
	// Remaining is the repetition counter after the transition.
	Remaining int
}

// State is a read-only view of the scheduler.
type State struct {
	Blinking    bool
	Beeping     bool
	LightOn     bool
	ToneOn      bool
	Repetitions int
	Config      Config
}

// Running reports whether either channel is enabled.
func (s State) Running() bool {
	return s.Blinking || s.Beeping
}
