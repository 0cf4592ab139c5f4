// Package config loads and validates the power-test configuration: channel
// wiring facts (addresses, shunts), sampling cadence, buffering limits and
// the harness dwell. Configuration is YAML; every field has a deploy-tested
// default so an empty document is valid.
package config

import (
	"powermon-go/drivers/ina228"
	"powermon-go/errcode"

	"gopkg.in/yaml.v3"
)

// Channel describes one INA228 monitoring channel.
type Channel struct {
	Name        string  `yaml:"name"`
	Address     uint16  `yaml:"address"`
	ShuntOhms   float64 `yaml:"shunt_ohms"`
	MaxCurrentA float64 `yaml:"max_current_a"`
}

// Sampling controls the acquisition cadence.
type Sampling struct {
	IntervalMs int64 `yaml:"interval_ms"`
}

// Storage controls buffering and the batch flush cadence.
type Storage struct {
	FileName      string `yaml:"file_name"`
	BufferEntries int    `yaml:"buffer_entries"`
	BatchPeriodMs int64  `yaml:"batch_period_ms"`
}

// Harness controls the state-machine walk.
type Harness struct {
	StateDwellMs int64 `yaml:"state_dwell_ms"`
}

type Config struct {
	Channels []Channel `yaml:"channels"`
	Sampling Sampling  `yaml:"sampling"`
	Storage  Storage   `yaml:"storage"`
	Harness  Harness   `yaml:"harness"`
}

// Default returns the configuration matching the deployed sense board:
// three channels at their strap addresses, 15 mΩ shunts, 5 A full scale,
// 1 Hz sampling, a 60-entry RAM buffer flushed every 30 s, and 60 s per
// harness state.
func Default() Config {
	return Config{
		Channels: []Channel{
			{Name: "Solar", Address: ina228.AddressSolar, ShuntOhms: 0.015, MaxCurrentA: 5.0},
			{Name: "Battery", Address: ina228.AddressBattery, ShuntOhms: 0.015, MaxCurrentA: 5.0},
			{Name: "Load", Address: ina228.AddressLoad, ShuntOhms: 0.015, MaxCurrentA: 5.0},
		},
		Sampling: Sampling{IntervalMs: 1000},
		Storage: Storage{
			FileName:      "test.csv",
			BufferEntries: 60,
			BatchPeriodMs: 30000,
		},
		Harness: Harness{StateDwellMs: 60000},
	}
}

// Load parses YAML over the defaults: absent fields keep their default
// values, a non-empty channels list replaces the default list wholesale.
func Load(raw []byte) (Config, error) {
	cfg := Default()
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, &errcode.E{C: errcode.InvalidParams, Op: "config.Load", Msg: "parse yaml", Err: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the cross-field facts the YAML schema cannot express.
func (c Config) Validate() error {
	if len(c.Channels) == 0 {
		return invalid("at least one channel required")
	}
	seenName := map[string]bool{}
	seenAddr := map[uint16]bool{}
	for _, ch := range c.Channels {
		if ch.Name == "" {
			return invalid("channel name required")
		}
		if seenName[ch.Name] {
			return invalid("duplicate channel name " + ch.Name)
		}
		seenName[ch.Name] = true
		if seenAddr[ch.Address] {
			return invalid("duplicate channel address for " + ch.Name)
		}
		seenAddr[ch.Address] = true
		if _, err := ina228.ComputeCalibration(ch.ShuntOhms, ch.MaxCurrentA); err != nil {
			return err
		}
	}
	if c.Sampling.IntervalMs <= 0 {
		return invalid("sampling interval must be positive")
	}
	if c.Storage.FileName == "" {
		return invalid("storage file name required")
	}
	if c.Storage.BufferEntries <= 0 {
		return invalid("storage buffer must hold at least one entry")
	}
	if c.Storage.BatchPeriodMs <= 0 {
		return invalid("batch period must be positive")
	}
	if c.Harness.StateDwellMs <= 0 {
		return invalid("state dwell must be positive")
	}
	return nil
}

func invalid(msg string) error {
	return &errcode.E{C: errcode.InvalidParams, Op: "config.Validate", Msg: msg}
}
