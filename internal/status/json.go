package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string      `json:"event,omitempty"`
	Reason        string      `json:"reason,omitempty"`
	Running       bool        `json:"running"`
	Light         ChannelJSON `json:"light"`
	Tone          ChannelJSON `json:"tone"`
	Repetitions   int         `json:"repetitions"`
	Infinite      bool        `json:"infinite"`
	Timing        TimingJSON  `json:"timing"`
	UptimeSeconds int64       `json:"uptime_seconds"`
	StartTime     string      `json:"start_time"`
	Timestamp     string      `json:"timestamp"`
	MQTT          MQTTStatus  `json:"mqtt"`
	Counts        CountsJSON  `json:"event_counts"`
	Config        ConfigJSON  `json:"config"`
}

// ChannelJSON reports one output channel.
type ChannelJSON struct {
	Enabled bool   `json:"enabled"`
	State   string `json:"state"`
}

// TimingJSON reports the duty cycle configuration.
type TimingJSON struct {
	OnMs      uint32 `json:"on_ms"`
	OffMs     uint32 `json:"off_ms"`
	Frequency uint32 `json:"frequency_hz"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	LightOn  int `json:"light_on"`
	LightOff int `json:"light_off"`
	ToneOn   int `json:"tone_on"`
	ToneOff  int `json:"tone_off"`
	Cycles   int `json:"cycles"`
	Commands int `json:"commands"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Name      string `json:"name"`
	PollMs    int64  `json:"poll_ms"`
	Broker    string `json:"broker"`
	HTTPAddr  string `json:"http_addr"`
	Chip      string `json:"chip"`
	PinLED    int    `json:"pin_led"`
	PinBuzzer int    `json:"pin_buzzer"`
	Buzzer    string `json:"buzzer"`
}

// OnOff renders a driven level.
func OnOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func buildInner(snap Snapshot) StatusInner {
	st := snap.State
	return StatusInner{
		Running:       st.Running(),
		Light:         ChannelJSON{Enabled: st.Blinking, State: OnOff(st.LightOn)},
		Tone:          ChannelJSON{Enabled: st.Beeping, State: OnOff(st.ToneOn)},
		Repetitions:   st.Repetitions,
		Infinite:      st.Running() && st.Repetitions < 0,
		Timing:        TimingJSON{OnMs: st.Config.OnTime, OffMs: st.Config.OffTime, Frequency: st.Config.Frequency},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			LightOn:  snap.Counts.LightOn,
			LightOff: snap.Counts.LightOff,
			ToneOn:   snap.Counts.ToneOn,
			ToneOff:  snap.Counts.ToneOff,
			Cycles:   snap.Counts.Cycles,
			Commands: snap.Counts.Commands,
		},
		Config: ConfigJSON{
			Name:      snap.Config.Name,
			PollMs:    snap.Config.PollMs,
			Broker:    snap.Config.Broker,
			HTTPAddr:  snap.Config.HTTPAddr,
			Chip:      snap.Config.Chip,
			PinLED:    snap.Config.PinLED,
			PinBuzzer: snap.Config.PinBuzzer,
			Buzzer:    snap.Config.Buzzer,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
