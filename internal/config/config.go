// Package config loads and saves the daemon configuration as YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/blinky-buzzer/internal/gpio"
	"github.com/sweeney/blinky-buzzer/internal/indicator"
	"github.com/sweeney/blinky-buzzer/internal/logging"
)

// DefaultPath is used when --config is not given.
const DefaultPath = "/etc/blinky-buzzer/config.yaml"

// Buzzer kinds.
const (
	BuzzerActive  = "active"
	BuzzerPassive = "passive"
)

var (
	ErrUnknownKey   = errors.New("unknown config key")
	ErrInvalidValue = errors.New("invalid config value")
)

// Config is the daemon configuration.
type Config struct {
	Name      string
	Chip      string
	PinLED    int
	PinBuzzer int
	Buzzer    string
	Frequency uint32
	OnTime    time.Duration
	OffTime   time.Duration
	Poll      time.Duration
	Broker    string
	HTTPAddr  string
	Heartbeat time.Duration
	LogLevel  string
}

// Pointer fields distinguish an explicit zero or empty value from an absent key.
// An explicit empty Broker or HTTPAddr disables that surface.
type yamlConfig struct {
	Name      string  `yaml:"name"`
	Chip      string  `yaml:"chip"`
	PinLED    *int    `yaml:"pin_led"`
	PinBuzzer *int    `yaml:"pin_buzzer"`
	Buzzer    string  `yaml:"buzzer"`
	Frequency *uint32 `yaml:"frequency"`
	OnTime    string  `yaml:"on"`
	OffTime   string  `yaml:"off"`
	Poll      string  `yaml:"poll"`
	Broker    *string `yaml:"broker"`
	HTTPAddr  *string `yaml:"http"`
	Heartbeat string  `yaml:"heartbeat"`
	LogLevel  string  `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Name:      "blinky-buzzer",
		Chip:      gpio.DefaultChip,
		PinLED:    gpio.DefaultPinLED,
		PinBuzzer: gpio.DefaultPinBuzzer,
		Buzzer:    BuzzerActive,
		Frequency: indicator.DefaultFrequency,
		OnTime:    indicator.DefaultOnTime * time.Millisecond,
		OffTime:   indicator.DefaultOffTime * time.Millisecond,
		Poll:      5 * time.Millisecond,
		Broker:    "tcp://192.168.1.200:1883",
		HTTPAddr:  ":8080",
		Heartbeat: 15 * time.Minute,
		LogLevel:  "info",
	}
}

// Load reads the configuration at path.
// If the file does not exist, the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Debugf("config: %s not found, using defaults", path)
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	var file yamlConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return cfg, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := apply(&cfg, file); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the directory if needed.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	pinLED, pinBuzzer := cfg.PinLED, cfg.PinBuzzer
	broker, httpAddr := cfg.Broker, cfg.HTTPAddr
	frequency := cfg.Frequency
	file := yamlConfig{
		Name:      cfg.Name,
		Chip:      cfg.Chip,
		PinLED:    &pinLED,
		PinBuzzer: &pinBuzzer,
		Buzzer:    cfg.Buzzer,
		Frequency: &frequency,
		OnTime:    cfg.OnTime.String(),
		OffTime:   cfg.OffTime.String(),
		Poll:      cfg.Poll.String(),
		Broker:    &broker,
		HTTPAddr:  &httpAddr,
		Heartbeat: cfg.Heartbeat.String(),
		LogLevel:  cfg.LogLevel,
	}

	serialized, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal config yaml: %w", err)
	}
	if err := os.WriteFile(path, serialized, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Indicator returns the scheduler timing carried by cfg.
func (c Config) Indicator() indicator.Config {
	return indicator.Config{
		Frequency: c.Frequency,
		OnTime:    uint32(c.OnTime.Milliseconds()),
		OffTime:   uint32(c.OffTime.Milliseconds()),
	}
}

// Validate checks values that YAML typing cannot.
func (c Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name: %w: empty", ErrInvalidValue)
	}
	if c.PinLED < 0 || c.PinBuzzer < 0 {
		return fmt.Errorf("pins: %w: negative offset", ErrInvalidValue)
	}
	if c.Buzzer != BuzzerActive && c.Buzzer != BuzzerPassive {
		return fmt.Errorf("buzzer: %w: %q (want active or passive)", ErrInvalidValue, c.Buzzer)
	}
	if c.Poll <= 0 {
		return fmt.Errorf("poll: %w: must be positive", ErrInvalidValue)
	}
	if c.OnTime < 0 || c.OffTime < 0 || c.Heartbeat < 0 {
		return fmt.Errorf("durations: %w: negative", ErrInvalidValue)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w: %v", ErrInvalidValue, err)
	}
	return nil
}

func apply(cfg *Config, file yamlConfig) error {
	if file.Name != "" {
		cfg.Name = file.Name
	}
	if file.Chip != "" {
		cfg.Chip = file.Chip
	}
	if file.PinLED != nil {
		cfg.PinLED = *file.PinLED
	}
	if file.PinBuzzer != nil {
		cfg.PinBuzzer = *file.PinBuzzer
	}
	if file.Buzzer != "" {
		cfg.Buzzer = file.Buzzer
	}
	if file.Frequency != nil {
		cfg.Frequency = *file.Frequency
	}
	if file.Broker != nil {
		cfg.Broker = *file.Broker
	}
	if file.HTTPAddr != nil {
		cfg.HTTPAddr = *file.HTTPAddr
	}
	if file.LogLevel != "" {
		cfg.LogLevel = file.LogLevel
	}

	for _, d := range []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"on", file.OnTime, &cfg.OnTime},
		{"off", file.OffTime, &cfg.OffTime},
		{"poll", file.Poll, &cfg.Poll},
		{"heartbeat", file.Heartbeat, &cfg.Heartbeat},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w: %v", d.key, ErrInvalidValue, err)
		}
		*d.dst = v
	}

	return cfg.Validate()
}

type field struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

var fields = map[string]field{
	"name":       stringField(func(c *Config) *string { return &c.Name }),
	"chip":       stringField(func(c *Config) *string { return &c.Chip }),
	"buzzer":     stringField(func(c *Config) *string { return &c.Buzzer }),
	"broker":     stringField(func(c *Config) *string { return &c.Broker }),
	"http":       stringField(func(c *Config) *string { return &c.HTTPAddr }),
	"log_level":  stringField(func(c *Config) *string { return &c.LogLevel }),
	"pin_led":    intField(func(c *Config) *int { return &c.PinLED }),
	"pin_buzzer": intField(func(c *Config) *int { return &c.PinBuzzer }),
	"on":         durationField(func(c *Config) *time.Duration { return &c.OnTime }),
	"off":        durationField(func(c *Config) *time.Duration { return &c.OffTime }),
	"poll":       durationField(func(c *Config) *time.Duration { return &c.Poll }),
	"heartbeat":  durationField(func(c *Config) *time.Duration { return &c.Heartbeat }),
	"frequency": {
		get: func(c *Config) string { return strconv.FormatUint(uint64(c.Frequency), 10) },
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return err
			}
			c.Frequency = uint32(n)
			return nil
		},
	},
}

func stringField(p func(*Config) *string) field {
	return field{
		get: func(c *Config) string { return *p(c) },
		set: func(c *Config, v string) error {
			*p(c) = v
			return nil
		},
	}
}

func intField(p func(*Config) *int) field {
	return field{
		get: func(c *Config) string { return strconv.Itoa(*p(c)) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return err
			}
			*p(c) = n
			return nil
		},
	}
}

func durationField(p func(*Config) *time.Duration) field {
	return field{
		get: func(c *Config) string { return p(c).String() },
		set: func(c *Config, v string) error {
			d, err := time.ParseDuration(v)
			if err != nil {
				return err
			}
			*p(c) = d
			return nil
		},
	}
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key as it would appear in YAML.
func (c Config) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	return f.get(&c), nil
}

// Set parses value into key and validates the result.
// On error c is left unchanged.
func (c *Config) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}
	next := *c
	if err := f.set(&next, value); err != nil {
		return fmt.Errorf("%s: %w: %v", key, ErrInvalidValue, err)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
