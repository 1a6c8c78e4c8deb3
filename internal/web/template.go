package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/blinky-buzzer/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"onoff": status.OnOff,
	"reps": func(n int) string {
		if n < 0 {
			return "forever"
		}
		return fmt.Sprintf("%d", n)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="5">
<title>Blinky Buzzer{{if .Config.Name}} ({{.Config.Name}}){{end}}</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Blinky Buzzer{{if .Config.Name}} ({{.Config.Name}}){{end}}</h1>

<h2>State</h2>
<table>
<tr><th>Light</th><td class="{{if .State.LightOn}}on{{else}}off{{end}}">{{onoff .State.LightOn}}{{if .State.Blinking}} (blinking){{end}}</td></tr>
<tr><th>Tone</th><td class="{{if .State.ToneOn}}on{{else}}off{{end}}">{{onoff .State.ToneOn}}{{if .State.Beeping}} (beeping){{end}}</td></tr>
<tr><th>Repetitions</th><td>{{if .State.Running}}{{reps .State.Repetitions}}{{else}}idle{{end}}</td></tr>
<tr><th>On / Off</th><td>{{.State.Config.OnTime}}ms / {{.State.Config.OffTime}}ms</td></tr>
<tr><th>Frequency</th><td>{{.State.Config.Frequency}}Hz</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
</table>

<h2>Event Counts</h2>
<table>
<tr><th>Light ON</th><td>{{.Counts.LightOn}}</td></tr>
<tr><th>Light OFF</th><td>{{.Counts.LightOff}}</td></tr>
<tr><th>Tone ON</th><td>{{.Counts.ToneOn}}</td></tr>
<tr><th>Tone OFF</th><td>{{.Counts.ToneOff}}</td></tr>
<tr><th>Cycles</th><td>{{.Counts.Cycles}}</td></tr>
<tr><th>Commands</th><td>{{.Counts.Commands}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Poll</th><td>{{.Config.PollMs}}ms</td></tr>
<tr><th>GPIO</th><td>{{.Config.Chip}} led={{.Config.PinLED}} buzzer={{.Config.PinBuzzer}} ({{.Config.Buzzer}})</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) error {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	return indexTmpl.Execute(w, data)
}
