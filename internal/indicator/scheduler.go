package indicator

// Scheduler drives a Light and a Tone through a shared on/off duty cycle.
// It never blocks: the caller invokes Update on every iteration of its loop.
// Not safe for concurrent use.
type Scheduler struct {
	light Light
	tone  Tone
	clock Clock

	cfg Config

	blinking bool
	beeping  bool

	// Last driven sink levels. The shared phase is ON when either is high.
	lightOn bool
	toneOn  bool

	// Negative means forever.
	repetitions int

	lastChange uint32
	// rearm is set by Stop; the next start stamps lastChange with the clock.
	rearm bool
}

// New creates a Scheduler and forces both sinks inactive.
func New(cfg Config, light Light, tone Tone, clock Clock) *Scheduler {
	s := &Scheduler{
		light: light,
		tone:  tone,
		clock: clock,
		cfg:   cfg,
	}
	s.Stop()
	return s
}

// SetOnTime sets how long each ON phase lasts.
func (s *Scheduler) SetOnTime(ms uint32) { s.cfg.OnTime = ms }

// SetOffTime sets how long each OFF phase lasts.
func (s *Scheduler) SetOffTime(ms uint32) { s.cfg.OffTime = ms }

// SetOnOffTime sets both phase durations.
func (s *Scheduler) SetOnOffTime(ms uint32) {
	s.cfg.OnTime = ms
	s.cfg.OffTime = ms
}

// SetFrequency sets the tone frequency used on the next OFF->ON edge.
func (s *Scheduler) SetFrequency(hz uint32) { s.cfg.Frequency = hz }

// SetRepetitions overwrites the remaining cycle count.
func (s *Scheduler) SetRepetitions(times int) { s.repetitions = times }

// Start is the primitive behind every blink, beep and buzz variant.
func (s *Scheduler) Start(opts Options) {
	if opts.OnOffTime != nil {
		s.SetOnOffTime(*opts.OnOffTime)
	}
	if opts.OnTime != nil {
		s.SetOnTime(*opts.OnTime)
	}
	if opts.Channels == 0 {
		return
	}

	if opts.Join && s.enabled()&^opts.Channels != 0 {
		s.enable(opts.Channels)
		return
	}

	if s.rearm {
		s.lastChange = s.clock.Millis()
		s.rearm = false
	}
	s.enable(opts.Channels)
	s.SetRepetitions(opts.Times)
}

// Blink blinks the light times cycles.
func (s *Scheduler) Blink(times int) {
	s.Start(Options{Channels: ChannelLight, Times: times})
}

// BlinkFor blinks the light times cycles with a symmetric duty of onOff ms.
func (s *Scheduler) BlinkFor(times int, onOff uint32) {
	s.Start(Options{Channels: ChannelLight, Times: times, OnOffTime: Millis(onOff)})
}

// BlinkOnce blinks the light a single time.
func (s *Scheduler) BlinkOnce() { s.Blink(1) }

// BlinkOnceFor blinks the light a single time, lit for on ms.
func (s *Scheduler) BlinkOnceFor(on uint32) {
	s.Start(Options{Channels: ChannelLight, Times: 1, OnTime: Millis(on)})
}

// BlinkForever blinks until stopped.
func (s *Scheduler) BlinkForever() { s.Blink(Forever) }

// StartBlinking adds the light to a running beep, or blinks forever.
func (s *Scheduler) StartBlinking() {
	s.Start(Options{Channels: ChannelLight, Times: Forever, Join: true})
}

// StartBlinkingAt is StartBlinking with a new symmetric duty.
func (s *Scheduler) StartBlinkingAt(onOff uint32) {
	s.Start(Options{Channels: ChannelLight, Times: Forever, Join: true, OnOffTime: Millis(onOff)})
}

// StopBlinking turns the light off now. A running beep continues.
func (s *Scheduler) StopBlinking() {
	s.blinking = false
	s.light.Deassert()
	s.lightOn = false
}

// Beep beeps times cycles.
func (s *Scheduler) Beep(times int) {
	s.Start(Options{Channels: ChannelTone, Times: times})
}

// BeepFor beeps times cycles with a symmetric duty of onOff ms.
func (s *Scheduler) BeepFor(times int, onOff uint32) {
	s.Start(Options{Channels: ChannelTone, Times: times, OnOffTime: Millis(onOff)})
}

// BeepOnce beeps a single time.
func (s *Scheduler) BeepOnce() { s.Beep(1) }

// BeepOnceFor beeps a single time for on ms.
func (s *Scheduler) BeepOnceFor(on uint32) {
	s.Start(Options{Channels: ChannelTone, Times: 1, OnTime: Millis(on)})
}

// BeepForever beeps until stopped.
func (s *Scheduler) BeepForever() { s.Beep(Forever) }

// StartBeeping adds the tone to a running blink, or beeps forever.
func (s *Scheduler) StartBeeping() {
	s.Start(Options{Channels: ChannelTone, Times: Forever, Join: true})
}

// StartBeepingAt is StartBeeping with a new symmetric duty.
func (s *Scheduler) StartBeepingAt(onOff uint32) {
	s.Start(Options{Channels: ChannelTone, Times: Forever, Join: true, OnOffTime: Millis(onOff)})
}

// StopBeeping silences the tone now. A running blink continues.
func (s *Scheduler) StopBeeping() {
	s.beeping = false
	s.tone.Stop()
	s.toneOn = false
}

// Buzz blinks and beeps together times cycles.
func (s *Scheduler) Buzz(times int) {
	s.Start(Options{Channels: ChannelBoth, Times: times})
}

// BuzzFor buzzes times cycles with a symmetric duty of onOff ms.
func (s *Scheduler) BuzzFor(times int, onOff uint32) {
	s.Start(Options{Channels: ChannelBoth, Times: times, OnOffTime: Millis(onOff)})
}

// BuzzOnce buzzes a single time.
func (s *Scheduler) BuzzOnce() { s.Buzz(1) }

// BuzzOnceFor buzzes a single time for on ms.
func (s *Scheduler) BuzzOnceFor(on uint32) {
	s.Start(Options{Channels: ChannelBoth, Times: 1, OnTime: Millis(on)})
}

// BuzzForever buzzes until stopped.
func (s *Scheduler) BuzzForever() { s.Buzz(Forever) }

// StartBuzzing buzzes until stopped.
func (s *Scheduler) StartBuzzing() { s.BuzzForever() }

// StartBuzzingAt buzzes until stopped with a new symmetric duty.
func (s *Scheduler) StartBuzzingAt(onOff uint32) { s.BuzzFor(Forever, onOff) }

// Stop turns both channels off now and resets the transition timer.
func (s *Scheduler) Stop() {
	s.StopBlinking()
	s.StopBeeping()
	s.lastChange = 0
	s.rearm = true
}

// StopBuzzing is an alias for Stop.
func (s *Scheduler) StopBuzzing() { s.Stop() }

// IsBlinking reports whether the light channel is enabled.
func (s *Scheduler) IsBlinking() bool { return s.blinking }

// IsBeeping reports whether the tone channel is enabled.
func (s *Scheduler) IsBeeping() bool { return s.beeping }

// IsBuzzing reports whether both channels are enabled.
func (s *Scheduler) IsBuzzing() bool { return s.blinking && s.beeping }

// IsRunning reports whether either channel is enabled.
func (s *Scheduler) IsRunning() bool { return s.blinking || s.beeping }

// Repetitions returns the remaining cycle count; negative means forever.
func (s *Scheduler) Repetitions() int { return s.repetitions }

// State returns a copy of the current state.
func (s *Scheduler) State() State {
	return State{
		Blinking:    s.blinking,
		Beeping:     s.beeping,
		LightOn:     s.lightOn,
		ToneOn:      s.toneOn,
		Repetitions: s.repetitions,
		Config:      s.cfg,
	}
}

// Update advances the duty cycle and returns the transitions it drove.
// Call it once per loop iteration.
func (s *Scheduler) Update() []Event {
	if !s.blinking && !s.beeping {
		return nil
	}

	now := s.clock.Millis()
	high := s.lightOn || s.toneOn

	var events []Event

	if s.repetitions != 0 {
		// Both checks see the phase sampled above, so at most one fires.
		if high && now-s.lastChange >= s.cfg.OnTime {
			if s.repetitions > 0 {
				s.repetitions--
			}
			if s.beeping {
				s.tone.Stop()
				s.toneOn = false
				events = append(events, Event{Type: EventToneOff, Millis: now, Remaining: s.repetitions})
			}
			if s.blinking {
				s.light.Deassert()
				s.lightOn = false
				events = append(events, Event{Type: EventLightOff, Millis: now, Remaining: s.repetitions})
			}
			s.lastChange = now
		}

		if !high && now-s.lastChange >= s.cfg.OffTime {
			if s.beeping {
				s.tone.Start(s.cfg.Frequency)
				s.toneOn = true
				events = append(events, Event{Type: EventToneOn, Millis: now, Remaining: s.repetitions})
			}
			if s.blinking {
				s.light.Assert()
				s.lightOn = true
				events = append(events, Event{Type: EventLightOn, Millis: now, Remaining: s.repetitions})
			}
			s.lastChange = now
		}
	}

	if s.repetitions == 0 {
		s.Stop()
		events = append(events, Event{Type: EventIdle, Millis: now})
	}

	return events
}

func (s *Scheduler) enabled() Channel {
	var c Channel
	if s.blinking {
		c |= ChannelLight
	}
	if s.beeping {
		c |= ChannelTone
	}
	return c
}

func (s *Scheduler) enable(c Channel) {
	if c&ChannelLight != 0 {
		s.blinking = true
	}
	if c&ChannelTone != 0 {
		s.beeping = true
	}
}
