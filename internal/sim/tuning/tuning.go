package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reactorrad.ai/internal/sim/reactor"
	"reactorrad.ai/internal/sim/reactor/exposure"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	Radiation Radiation `yaml:"radiation"`
	Sandbox   Sandbox   `yaml:"sandbox"`
	Logging   Logging   `yaml:"logging"`
}

type Radiation struct {
	Model              string  `yaml:"model" json:"model"`
	DamageRate         float64 `yaml:"damage_rate" json:"damage_rate"`
	RadiationRange     float64 `yaml:"radiation_range" json:"radiation_range"`
	EffectiveRangeBase float64 `yaml:"effective_range_base" json:"effective_range_base"`
	RangePerPower      float64 `yaml:"range_per_power" json:"range_per_power"`
	DamageIntervalMs   int     `yaml:"damage_interval_ms" json:"damage_interval_ms"`
	ScanIntervalMs     int     `yaml:"scan_interval_ms" json:"scan_interval_ms"`
	ElapsedMode        string  `yaml:"elapsed_mode" json:"elapsed_mode"`
	ScanOnInit         bool    `yaml:"scan_on_init" json:"scan_on_init"`
}

type Sandbox struct {
	TickRateHz int  `yaml:"tick_rate_hz"`
	Respawn    bool `yaml:"respawn"`
}

type Logging struct {
	EventLog bool `yaml:"event_log"`
	IndexDB  bool `yaml:"index_db"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion: "1.0",
		Radiation:       FromSettings(reactor.DefaultSettings()),
		Sandbox:         Sandbox{TickRateHz: 20, Respawn: true},
		Logging:         Logging{EventLog: true, IndexDB: true},
	}
}

// Load reads path over Defaults, so keys missing from the file keep their
// default values. The legacy model defaults to an unthrottled damage pass.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if exposure.Model(t.Radiation.Model) == exposure.ModelLegacy {
		var keys struct {
			Radiation struct {
				DamageIntervalMs *int `yaml:"damage_interval_ms"`
			} `yaml:"radiation"`
		}
		if err := yaml.Unmarshal(raw, &keys); err != nil {
			return t, fmt.Errorf("tuning.yaml: %w", err)
		}
		if keys.Radiation.DamageIntervalMs == nil {
			t.Radiation.DamageIntervalMs = int(reactor.LegacySettings().DamageInterval.Milliseconds())
		}
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.Sandbox.TickRateHz <= 0 || t.Sandbox.TickRateHz > 1000 {
		return fmt.Errorf("sandbox.tick_rate_hz must be in 1..1000")
	}
	if err := t.Radiation.Settings().Validate(); err != nil {
		return fmt.Errorf("radiation: %w", err)
	}
	return nil
}

// Settings converts the file section to driver settings.
func (r Radiation) Settings() reactor.Settings {
	return reactor.Settings{
		Model:              exposure.Model(r.Model),
		DamageRate:         r.DamageRate,
		RadiationRange:     r.RadiationRange,
		EffectiveRangeBase: r.EffectiveRangeBase,
		RangePerPower:      r.RangePerPower,
		DamageInterval:     time.Duration(r.DamageIntervalMs) * time.Millisecond,
		ScanInterval:       time.Duration(r.ScanIntervalMs) * time.Millisecond,
		ElapsedMode:        reactor.ElapsedMode(r.ElapsedMode),
		ScanOnInit:         r.ScanOnInit,
	}
}

func FromSettings(s reactor.Settings) Radiation {
	return Radiation{
		Model:              string(s.Model),
		DamageRate:         s.DamageRate,
		RadiationRange:     s.RadiationRange,
		EffectiveRangeBase: s.EffectiveRangeBase,
		RangePerPower:      s.RangePerPower,
		DamageIntervalMs:   int(s.DamageInterval.Milliseconds()),
		ScanIntervalMs:     int(s.ScanInterval.Milliseconds()),
		ElapsedMode:        string(s.ElapsedMode),
		ScanOnInit:         s.ScanOnInit,
	}
}
