// Package config loads the dimmer's build-time hardware parameters from a
// YAML file, falling back to the reference-hardware defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dimmercode-go/services/dimmer/timing"
)

// Config represents the dimmer configuration.
type Config struct {
	Timing      TimingConfig      `yaml:"timing"`
	Calibration CalibrationConfig `yaml:"calibration"`
	Pins        PinConfig         `yaml:"pins"`
	Sampler     SamplerConfig     `yaml:"sampler"`
}

// TimingConfig contains the clock-derived timing parameters.
type TimingConfig struct {
	BaseClockHz uint32 `yaml:"base_clock_hz"`
	MainsHz     uint32 `yaml:"mains_hz"`
	PulseUs     uint32 `yaml:"pulse_us"`        // trigger pulse width
	CompUs      uint32 `yaml:"compensation_us"` // detect-pulse lead over the crossing
}

// CalibrationConfig contains the raw setpoint calibration.
type CalibrationConfig struct {
	Floor uint16 `yaml:"floor"` // below: force 0%
	Ceil  uint16 `yaml:"ceil"`  // above: force 100%
	Min   uint16 `yaml:"min"`   // expected reading at minimum pot position
	Max   uint16 `yaml:"max"`   // sampler full-scale reading
}

// PinConfig contains pin assignments.
type PinConfig struct {
	Drive     int `yaml:"drive"`      // optotriac output
	ZeroCross int `yaml:"zero_cross"` // mains detect input
}

// SamplerConfig selects the setpoint source. The ads1115 source reads
// against the chip's 4.096 V full scale, so it needs calibration values
// matched to that range (see setpoint.I2CAdaptor); the defaults above
// assume the regpair source's 5 V reference.
type SamplerConfig struct {
	Source  string `yaml:"source"` // "regpair" or "ads1115"
	I2CAddr uint16 `yaml:"i2c_addr,omitempty"`
	Channel uint8  `yaml:"channel,omitempty"`
}

// Default returns the configuration of the reference hardware.
func Default() *Config {
	t := timing.Default()
	return &Config{
		Timing: TimingConfig{
			BaseClockHz: t.BaseClockHz,
			MainsHz:     t.MainsHz,
			PulseUs:     t.PulseMicros,
			CompUs:      t.CompMicros,
		},
		Calibration: CalibrationConfig{
			Floor: t.RawFloor,
			Ceil:  t.RawCeil,
			Min:   t.RawMin,
			Max:   t.RawMax,
		},
		Pins: PinConfig{
			Drive:     0,
			ZeroCross: 1,
		},
		Sampler: SamplerConfig{
			Source:  "regpair",
			Channel: 3,
		},
	}
}

// Load reads configuration from path. A missing file yields Default().
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// TimingConfig converts to the timing package's Config.
func (c *Config) Timings() timing.Config {
	return timing.Config{
		BaseClockHz: c.Timing.BaseClockHz,
		MainsHz:     c.Timing.MainsHz,
		PulseMicros: c.Timing.PulseUs,
		CompMicros:  c.Timing.CompUs,
		RawFloor:    c.Calibration.Floor,
		RawCeil:     c.Calibration.Ceil,
		RawMin:      c.Calibration.Min,
		RawMax:      c.Calibration.Max,
	}
}
