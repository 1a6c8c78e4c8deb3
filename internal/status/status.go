// Package status provides a thread-safe status tracker for the blinky-buzzer daemon.
// The control loop writes it; HTTP handlers and MQTT lifecycle events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/blinky-buzzer/internal/indicator"
)

// Config contains daemon configuration for display.
type Config struct {
	Name      string
	PollMs    int64
	Broker    string
	HTTPAddr  string
	Chip      string
	PinLED    int
	PinBuzzer int
	Buzzer    string // "active" or "passive"
}

// EventCounts tracks the number of each transition since startup.
type EventCounts struct {
	LightOn  int
	LightOff int
	ToneOn   int
	ToneOff  int
	// Cycles counts completed ON->OFF edges, whichever channels took part.
	Cycles int
	// Commands counts commands applied from any source.
	Commands int
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	State         indicator.State
	Counts        EventCounts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
		now: time.Now,
	}
}

// Update stores the latest scheduler state. Called from the control loop on every tick.
func (t *Tracker) Update(state indicator.State) {
	t.mu.Lock()
	t.snap.State = state
	t.mu.Unlock()
}

// Record counts the transitions returned by one scheduler poll.
func (t *Tracker) Record(events []indicator.Event) {
	if len(events) == 0 {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	cycle := false
	for _, e := range events {
		switch e.Type {
		case indicator.EventLightOn:
			t.snap.Counts.LightOn++
		case indicator.EventLightOff:
			t.snap.Counts.LightOff++
			cycle = true
		case indicator.EventToneOn:
			t.snap.Counts.ToneOn++
		case indicator.EventToneOff:
			t.snap.Counts.ToneOff++
			cycle = true
		}
	}
	if cycle {
		t.snap.Counts.Cycles++
	}
}

// CommandApplied bumps the command counter.
func (t *Tracker) CommandApplied() {
	t.mu.Lock()
	t.snap.Counts.Commands++
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
