// Package mqtt publishes indicator transitions and receives control commands over MQTT.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/blinky-buzzer/internal/indicator"
)

// TopicPrefix is the root of every topic used by the daemon.
const TopicPrefix = "indicator"

// Topics holds the per-device topic names.
type Topics struct {
	Events  string
	System  string
	Command string
}

// TopicsFor returns the topics for a device name, e.g. indicator/porch/events.
func TopicsFor(name string) Topics {
	base := TopicPrefix + "/" + name
	return Topics{
		Events:  base + "/events",
		System:  base + "/system",
		Command: base + "/command",
	}
}

// Publisher publishes events to MQTT.
type Publisher interface {
	// Publish sends an indicator transition to the broker.
	// Returns error if publishing fails (should not crash the process).
	Publish(event Event) error

	// PublishSystem sends a system lifecycle event to the broker.
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// Event is an indicator transition stamped with wall-clock time for publishing.
type Event struct {
	Timestamp time.Time
	indicator.Event
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, offline).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "OFFLINE"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// Payload represents the MQTT message payload structure.
type Payload struct {
	Indicator IndicatorPayload `json:"indicator"`
}

// IndicatorPayload contains the transition details.
type IndicatorPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Millis    uint32 `json:"millis"`
	Remaining int    `json:"remaining"`
}

// FormatPayload creates the JSON payload for an indicator transition.
func FormatPayload(event Event) ([]byte, error) {
	payload := Payload{
		Indicator: IndicatorPayload{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     string(event.Type),
			Millis:    event.Millis,
			Remaining: event.Remaining,
		},
	}
	return json.Marshal(payload)
}

// SystemPayload represents the MQTT message payload for system events
// that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}
