package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sweeney/blinky-buzzer/internal/clock"
	"github.com/sweeney/blinky-buzzer/internal/command"
	"github.com/sweeney/blinky-buzzer/internal/config"
	"github.com/sweeney/blinky-buzzer/internal/gpio"
	"github.com/sweeney/blinky-buzzer/internal/indicator"
	"github.com/sweeney/blinky-buzzer/internal/logging"
	"github.com/sweeney/blinky-buzzer/internal/mqtt"
	"github.com/sweeney/blinky-buzzer/internal/status"
)

// --- runLoop tests ---

type rig struct {
	clk    *clock.Fake
	led    *gpio.FakeOutput
	buzzer *gpio.FakeOutput
	sched  *indicator.Scheduler
}

func newRig(onOff uint32) *rig {
	r := &rig{
		clk:    clock.NewFake(0),
		led:    gpio.NewFakeOutput(),
		buzzer: gpio.NewFakeOutput(),
	}
	cfg := indicator.Config{Frequency: 1000, OnTime: onOff, OffTime: onOff}
	r.sched = indicator.New(cfg, gpio.NewLight(r.led), gpio.NewActiveTone(r.buzzer), r.clk)
	return r
}

// fakeNow returns a now function that moves both the wall clock and the
// scheduler clock forward by step on every call. runLoop calls it once at
// start, once per tick and once at shutdown, all on its own goroutine.
func fakeNow(clk *clock.Fake, start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		clk.Advance(step)
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

type loopInput struct {
	cmd  *command.Command
	tick bool
}

func send(c command.Command) loopInput {
	return loopInput{cmd: &c}
}

func ticks(n int) []loopInput {
	out := make([]loopInput, n)
	for i := range out {
		out[i].tick = true
	}
	return out
}

func script(parts ...[]loopInput) []loopInput {
	var out []loopInput
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// runRunLoop drives runLoop with the given inputs and signal, returning its error.
func runRunLoop(t *testing.T, r *rig, pub *mqtt.FakePublisher, tracker *status.Tracker, heartbeat, step time.Duration, inputs []loopInput, signal os.Signal) error {
	t.Helper()
	tickCh := make(chan time.Time)
	cmdCh := make(chan command.Command)
	sig := make(chan os.Signal, 1)
	now := fakeNow(r.clk, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(r.sched, pub, pub, tracker, heartbeat, now, tickCh, cmdCh, sig)
	}()

	for _, in := range inputs {
		if in.tick {
			tickCh <- time.Time{}
		} else {
			cmdCh <- *in.cmd
		}
	}
	sig <- signal

	return <-errCh
}

func intp(n int) *int { return &n }

func TestRunLoopTracesEachPoll(t *testing.T) {
	var buf bytes.Buffer
	prevOut, prevLevel := log.Writer(), logging.CurrentLevel()
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(prevOut)
		logging.SetLevel(prevLevel)
	})

	logging.SetLevel(logging.LevelDebug)
	if err := runRunLoop(t, newRig(100), mqtt.NewFakePublisher(), nil, 0, 100*time.Millisecond, ticks(3), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if strings.Contains(buf.String(), "[TRACE]") {
		t.Errorf("poll trace should be filtered at debug: %q", buf.String())
	}

	buf.Reset()
	logging.SetLevel(logging.LevelTrace)
	if err := runRunLoop(t, newRig(100), mqtt.NewFakePublisher(), nil, 0, 100*time.Millisecond, ticks(3), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if n := strings.Count(buf.String(), "[TRACE] poll: 0 events, running=false"); n != 3 {
		t.Errorf("got %d idle poll traces, want 3: %q", n, buf.String())
	}
}

func TestRunLoopCountedBlink(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	blink := command.Command{Action: command.ActionBlink, Times: intp(2)}
	err := runRunLoop(t, r, pub, tracker, 0, 100*time.Millisecond,
		script([]loopInput{send(blink)}, ticks(5)), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	want := []string{"LIGHT_ON", "LIGHT_OFF", "LIGHT_ON", "LIGHT_OFF", "IDLE"}
	got := pub.EventTypes()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events: got %v, want %v", got, want)
	}

	if last := pub.Events[len(pub.Events)-1]; last.Timestamp.IsZero() {
		t.Error("expected events stamped with wall time")
	}

	highs := 0
	for _, v := range r.led.Values() {
		if v == 1 {
			highs++
		}
	}
	if highs != 2 {
		t.Errorf("led asserted %d times, want 2", highs)
	}
	if len(r.buzzer.Values()) == 0 || r.buzzer.Level() != 0 {
		t.Errorf("buzzer should only have been driven low, got %v", r.buzzer.Values())
	}

	snap := tracker.Snapshot()
	if snap.Counts.LightOn != 2 || snap.Counts.LightOff != 2 || snap.Counts.Cycles != 2 {
		t.Errorf("counts: got %+v", snap.Counts)
	}
	if snap.Counts.Commands != 1 {
		t.Errorf("commands: got %d, want 1", snap.Counts.Commands)
	}
	if snap.State.Running() {
		t.Error("expected idle after counted blink")
	}
}

func TestRunLoopIdleWithoutCommands(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()

	err := runRunLoop(t, r, pub, nil, 0, 100*time.Millisecond, ticks(4), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected no events, got %v", pub.EventTypes())
	}

	// Should have exactly one system event: SHUTDOWN
	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	if pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Errorf("expected SHUTDOWN event, got %q", pub.SystemEvents[0].Event)
	}
}

func TestRunLoopShutdownStopsOutputs(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	buzz := command.Command{Action: command.ActionBuzz}
	err := runRunLoop(t, r, pub, tracker, 0, 100*time.Millisecond,
		script([]loopInput{send(buzz)}, ticks(1)), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if r.led.Level() != 0 || r.buzzer.Level() != 0 {
		t.Errorf("outputs left high: led=%d buzzer=%d", r.led.Level(), r.buzzer.Level())
	}
	if r.sched.IsRunning() {
		t.Error("scheduler still running after shutdown")
	}

	if len(pub.SystemEvents) != 1 {
		t.Fatalf("expected 1 system event, got %d", len(pub.SystemEvents))
	}
	se := pub.SystemEvents[0]
	if se.Event != "SHUTDOWN" || se.Reason != "SIGTERM" || !se.Retained {
		t.Errorf("shutdown event: got %+v", se)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(pub.SystemPayloads[0], &sj); err != nil {
		t.Fatalf("shutdown payload: %v", err)
	}
	if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != "SIGTERM" {
		t.Errorf("payload event/reason: %q/%q", sj.Status.Event, sj.Status.Reason)
	}
	if sj.Status.Running {
		t.Error("shutdown payload should report the scheduler stopped")
	}
}

func TestRunLoopShutdownSIGINT(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()

	if err := runRunLoop(t, r, pub, nil, 0, time.Millisecond, nil, syscall.SIGINT); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.SystemEvents) != 1 || pub.SystemEvents[0].Reason != "SIGINT" {
		t.Errorf("system events: got %+v", pub.SystemEvents)
	}
	// Without a tracker the plain system payload is used.
	if !strings.Contains(string(pub.SystemPayloads[0]), `"system"`) {
		t.Errorf("payload: got %s", pub.SystemPayloads[0])
	}
}

func TestRunLoopInvalidCommandIgnored(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	tracker := status.NewTracker(time.Now(), status.Config{})

	bad := command.Command{Action: "dance"}
	err := runRunLoop(t, r, pub, tracker, 0, 100*time.Millisecond,
		script([]loopInput{send(bad)}, ticks(3)), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if len(pub.Events) != 0 {
		t.Errorf("expected no events, got %v", pub.EventTypes())
	}
	if got := tracker.Snapshot().Counts.Commands; got != 0 {
		t.Errorf("commands: got %d, want 0", got)
	}
}

func TestRunLoopPublishError(t *testing.T) {
	// Transitions occur but Publish fails; the loop keeps going.
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	pub.PublishError = errors.New("broker down")
	tracker := status.NewTracker(time.Now(), status.Config{})

	blink := command.Command{Action: command.ActionBlink, Times: intp(1)}
	err := runRunLoop(t, r, pub, tracker, 0, 100*time.Millisecond,
		script([]loopInput{send(blink)}, ticks(3)), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	if c := tracker.Snapshot().Counts; c.LightOn != 1 || c.LightOff != 1 {
		t.Errorf("counts: got %+v", c)
	}
	if len(pub.SystemEvents) != 1 {
		t.Errorf("expected SHUTDOWN still published, got %d system events", len(pub.SystemEvents))
	}
}

func TestRunLoopJoinKeepsPhase(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()

	blink := command.Command{Action: command.ActionBlink}
	join := command.Command{Action: command.ActionStart, Channel: "tone"}
	err := runRunLoop(t, r, pub, nil, 0, 100*time.Millisecond,
		script([]loopInput{send(blink)}, ticks(1), []loopInput{send(join)}, ticks(2)), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	// The joined tone is switched off on the shared edge and first sounds
	// on the next OFF->ON edge.
	want := []string{"LIGHT_ON", "TONE_OFF", "LIGHT_OFF", "TONE_ON", "LIGHT_ON"}
	got := pub.EventTypes()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("events: got %v, want %v", got, want)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// now() is called at start and on every tick: t0, +5m, +10m, +15m.
	// The heartbeat fires on the third tick.
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(time.Now(), status.Config{})

	err := runRunLoop(t, r, pub, tracker, 15*time.Minute, 5*time.Minute, ticks(4), syscall.SIGTERM)
	if err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}

	var heartbeats, shutdowns int
	for i, se := range pub.SystemEvents {
		switch se.Event {
		case "HEARTBEAT":
			heartbeats++
			var sj status.StatusJSON
			if err := json.Unmarshal(pub.SystemPayloads[i], &sj); err != nil {
				t.Fatalf("heartbeat payload: %v", err)
			}
			if sj.Status.Event != "HEARTBEAT" || !sj.Status.MQTT.Connected {
				t.Errorf("heartbeat payload: %+v", sj.Status)
			}
		case "SHUTDOWN":
			shutdowns++
		}
	}
	if heartbeats != 1 {
		t.Errorf("expected 1 HEARTBEAT event, got %d", heartbeats)
	}
	if shutdowns != 1 {
		t.Errorf("expected 1 SHUTDOWN event, got %d", shutdowns)
	}
}

func TestRunLoopTracksMQTTStatus(t *testing.T) {
	r := newRig(100)
	pub := mqtt.NewFakePublisher()
	pub.Connected = true
	tracker := status.NewTracker(time.Now(), status.Config{})

	if err := runRunLoop(t, r, pub, tracker, 0, time.Millisecond, ticks(1), syscall.SIGTERM); err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
	if !tracker.Snapshot().MQTTConnected {
		t.Error("expected tracker to report MQTT connected")
	}
}

// --- one-shot tests ---

// stepClock advances by step after every reading.
type stepClock struct {
	ms, step uint32
}

func (c *stepClock) Millis() uint32 {
	v := c.ms
	c.ms += c.step
	return v
}

func TestRunUntilIdleReturnsAfterPattern(t *testing.T) {
	led := gpio.NewFakeOutput()
	sched := indicator.New(indicator.Config{OnTime: 100, OffTime: 100}, gpio.NewLight(led), gpio.NewActiveTone(gpio.NewFakeOutput()), &stepClock{step: 100})
	sched.Blink(1)

	tick := make(chan time.Time, 10)
	for i := 0; i < cap(tick); i++ {
		tick <- time.Time{}
	}

	if err := runUntilIdle(sched, tick, nil); err != nil {
		t.Fatalf("runUntilIdle: %v", err)
	}
	if sched.IsRunning() {
		t.Error("expected scheduler idle")
	}
	if used := cap(tick) - len(tick); used != 2 {
		t.Errorf("ticks consumed: got %d, want 2", used)
	}
	if led.Level() != 0 {
		t.Error("led left high")
	}
}

func TestRunUntilIdleStopsOnSignal(t *testing.T) {
	buzzer := gpio.NewFakeOutput()
	sched := indicator.New(indicator.DefaultConfig(), gpio.NewLight(gpio.NewFakeOutput()), gpio.NewActiveTone(buzzer), &stepClock{step: 1})
	sched.BuzzForever()

	sig := make(chan os.Signal, 1)
	sig <- syscall.SIGINT

	if err := runUntilIdle(sched, nil, sig); err != nil {
		t.Fatalf("runUntilIdle: %v", err)
	}
	if sched.IsRunning() {
		t.Error("expected scheduler stopped")
	}
}

func TestPatternCommandDefaults(t *testing.T) {
	none := func(string) bool { return false }
	c, err := patternCommand(command.ActionBeep, nil, none, 0, 0, 0, 0)
	if err != nil {
		t.Fatalf("patternCommand: %v", err)
	}
	if c.Action != command.ActionBeep || c.Times == nil || *c.Times != 1 {
		t.Errorf("got %s, want beep times=1", c)
	}
	if c.DutyMs != nil || c.OnMs != nil || c.OffMs != nil || c.Frequency != nil {
		t.Errorf("unexpected optional fields: %s", c)
	}
}

func TestPatternCommandFlags(t *testing.T) {
	changed := func(name string) bool { return name == "duty" || name == "freq" }
	c, err := patternCommand(command.ActionBuzz, []string{"-1"}, changed, 250*time.Millisecond, time.Second, 0, 880)
	if err != nil {
		t.Fatalf("patternCommand: %v", err)
	}
	if *c.Times != -1 {
		t.Errorf("times: got %d, want -1", *c.Times)
	}
	if c.DutyMs == nil || *c.DutyMs != 250 {
		t.Errorf("duty: got %v", c.DutyMs)
	}
	if c.OnMs != nil {
		t.Error("on should be unset when --on is not changed")
	}
	if c.Frequency == nil || *c.Frequency != 880 {
		t.Errorf("freq: got %v", c.Frequency)
	}
}

func TestPatternCommandBadTimes(t *testing.T) {
	none := func(string) bool { return false }
	_, err := patternCommand(command.ActionBlink, []string{"lots"}, none, 0, 0, 0, 0)
	if !errors.Is(err, command.ErrInvalidNumber) {
		t.Errorf("got %v, want ErrInvalidNumber", err)
	}
}

// --- shell tests ---

func newTestShell(queue int) (*shell, chan command.Command, *bytes.Buffer) {
	cmds := make(chan command.Command, queue)
	out := &bytes.Buffer{}
	tr := status.NewTracker(time.Now(), status.Config{Name: "test"})
	return &shell{cmds: cmds, tracker: tr, out: out}, cmds, out
}

func TestShellQueuesCommands(t *testing.T) {
	sh, cmds, _ := newTestShell(4)

	if sh.exec("blink 3 200") {
		t.Fatal("blink should not exit the shell")
	}
	sh.exec(`stop "light"`)

	if len(cmds) != 2 {
		t.Fatalf("queued: got %d, want 2", len(cmds))
	}
	c := <-cmds
	if c.Action != command.ActionBlink || *c.Times != 3 || *c.DutyMs != 200 {
		t.Errorf("first command: got %s", c)
	}
	c = <-cmds
	if c.Action != command.ActionStop || c.Channel != "light" {
		t.Errorf("second command: got %s", c)
	}
}

func TestShellErrors(t *testing.T) {
	sh, cmds, out := newTestShell(4)

	sh.exec("dance")
	if !strings.Contains(out.String(), `unknown command "dance"`) {
		t.Errorf("output: %q", out.String())
	}
	out.Reset()

	sh.exec("blink x")
	if !strings.Contains(out.String(), "command error") {
		t.Errorf("output: %q", out.String())
	}
	out.Reset()

	sh.exec(`blink "unterminated`)
	if !strings.Contains(out.String(), "parse error") {
		t.Errorf("output: %q", out.String())
	}

	if len(cmds) != 0 {
		t.Errorf("queued %d commands from bad input", len(cmds))
	}
}

func TestShellQueueFull(t *testing.T) {
	sh, _, out := newTestShell(0)
	sh.exec("buzz")
	if !strings.Contains(out.String(), "queue full") {
		t.Errorf("output: %q", out.String())
	}
}

func TestShellBuiltins(t *testing.T) {
	sh, _, out := newTestShell(1)

	if sh.exec("   ") {
		t.Error("blank line should not exit")
	}
	sh.exec("help")
	if !strings.Contains(out.String(), "once light|tone|both") {
		t.Errorf("help output: %q", out.String())
	}
	out.Reset()

	sh.exec("status")
	var sj status.StatusJSON
	if err := json.Unmarshal(out.Bytes(), &sj); err != nil {
		t.Fatalf("status output is not JSON: %v", err)
	}
	if sj.Status.Config.Name != "test" {
		t.Errorf("status name: got %q", sj.Status.Config.Name)
	}

	if !sh.exec("quit") || !sh.exec("exit") {
		t.Error("quit and exit should leave the shell")
	}
}

func TestShellLogLevel(t *testing.T) {
	prev := logging.CurrentLevel()
	t.Cleanup(func() { logging.SetLevel(prev) })

	sh, _, out := newTestShell(1)

	sh.exec("log --level debug")
	if logging.CurrentLevel() != logging.LevelDebug {
		t.Errorf("level: got %s, want debug", logging.CurrentLevel())
	}
	sh.exec("log -vv")
	if logging.CurrentLevel() != logging.LevelTrace {
		t.Errorf("level: got %s, want trace", logging.CurrentLevel())
	}
	out.Reset()
	sh.exec("log --show")
	if strings.TrimSpace(out.String()) != "log level: trace" {
		t.Errorf("show output: %q", out.String())
	}
	out.Reset()
	sh.exec("log --level chatty")
	if !strings.HasPrefix(out.String(), "log: ") {
		t.Errorf("bad level output: %q", out.String())
	}
}

// --- config and flags ---

func TestPrintConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()

	if err := printConfig(&buf, cfg, []string{"pin_led"}); err != nil {
		t.Fatalf("printConfig: %v", err)
	}
	if buf.String() != "17\n" {
		t.Errorf("single key: got %q", buf.String())
	}

	buf.Reset()
	if err := printConfig(&buf, cfg, nil); err != nil {
		t.Fatalf("printConfig: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(config.Keys()) {
		t.Errorf("got %d lines, want %d", len(lines), len(config.Keys()))
	}

	if err := printConfig(&buf, cfg, []string{"colour"}); !errors.Is(err, config.ErrUnknownKey) {
		t.Errorf("unknown key: got %v", err)
	}
}

func TestApplyLogLevelPrecedence(t *testing.T) {
	prev := logging.CurrentLevel()
	t.Cleanup(func() {
		logging.SetLevel(prev)
		verbosity, logLevel = 0, ""
	})

	verbosity, logLevel = 0, ""
	if err := applyLogLevel("warn"); err != nil {
		t.Fatal(err)
	}
	if logging.CurrentLevel() != logging.LevelWarn {
		t.Errorf("file level: got %s", logging.CurrentLevel())
	}

	logLevel = "error"
	applyLogLevel("warn")
	if logging.CurrentLevel() != logging.LevelError {
		t.Errorf("flag level: got %s", logging.CurrentLevel())
	}

	verbosity = 1
	applyLogLevel("warn")
	if logging.CurrentLevel() != logging.LevelDebug {
		t.Errorf("-v level: got %s", logging.CurrentLevel())
	}

	verbosity, logLevel = 0, "chatty"
	if err := applyLogLevel("info"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestSignalName(t *testing.T) {
	cases := map[os.Signal]string{
		syscall.SIGINT:  "SIGINT",
		syscall.SIGTERM: "SIGTERM",
		syscall.SIGHUP:  "UNKNOWN",
	}
	for s, want := range cases {
		if got := signalName(s); got != want {
			t.Errorf("signalName(%v): got %q, want %q", s, got, want)
		}
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"run", "blink", "beep", "buzz", "shell", "config"} {
		if c, _, err := root.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not found", name)
		}
	}
	if f := root.PersistentFlags().Lookup("verbose"); f == nil || f.Shorthand != "v" {
		t.Error("expected -v/--verbose persistent flag")
	}
}
