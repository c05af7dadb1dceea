package reactor

import (
	"errors"
	"fmt"
	"math"
	"time"

	"reactorrad.ai/internal/sim/reactor/exposure"
)

var ErrInvalidSettings = errors.New("invalid reactor settings")

type ElapsedMode string

const (
	// ElapsedTick feeds the damage pass the time since the previous tick.
	ElapsedTick ElapsedMode = "tick"
	// ElapsedPass feeds it the time since the previous damage pass.
	ElapsedPass ElapsedMode = "pass"
)

// Settings are the tunables of one driver. They are swapped as a whole; a
// tick always reads one consistent value.
type Settings struct {
	Model exposure.Model

	DamageRate         float64
	RadiationRange     float64
	EffectiveRangeBase float64
	RangePerPower      float64

	DamageInterval time.Duration
	ScanInterval   time.Duration
	ElapsedMode    ElapsedMode
	ScanOnInit     bool
}

func DefaultSettings() Settings {
	return Settings{
		Model:              exposure.ModelScaled,
		DamageRate:         1,
		RadiationRange:     5,
		EffectiveRangeBase: 5,
		RangePerPower:      0.2,
		DamageInterval:     1000 * time.Millisecond,
		ScanInterval:       30000 * time.Millisecond,
		ElapsedMode:        ElapsedTick,
	}
}

// LegacySettings reproduces the fixed-radius variant that damages every tick.
func LegacySettings() Settings {
	s := DefaultSettings()
	s.Model = exposure.ModelLegacy
	s.DamageInterval = 0
	return s
}

func (s Settings) Validate() error {
	if !s.Model.Valid() {
		return fmt.Errorf("%w: model %q", ErrInvalidSettings, s.Model)
	}
	if s.ElapsedMode != ElapsedTick && s.ElapsedMode != ElapsedPass {
		return fmt.Errorf("%w: elapsed_mode %q", ErrInvalidSettings, s.ElapsedMode)
	}
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"damage_rate", s.DamageRate},
		{"radiation_range", s.RadiationRange},
		{"effective_range_base", s.EffectiveRangeBase},
		{"range_per_power", s.RangePerPower},
	} {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSettings, f.name)
		}
	}
	if s.RadiationRange < 0 || s.EffectiveRangeBase < 0 {
		return fmt.Errorf("%w: ranges must be >= 0", ErrInvalidSettings)
	}
	if s.DamageInterval < 0 || s.ScanInterval < 0 {
		return fmt.Errorf("%w: intervals must be >= 0", ErrInvalidSettings)
	}
	return nil
}

func (s Settings) params() exposure.Params {
	return exposure.Params{
		Model:              s.Model,
		DamageRate:         s.DamageRate,
		RadiationRange:     s.RadiationRange,
		EffectiveRangeBase: s.EffectiveRangeBase,
		RangePerPower:      s.RangePerPower,
	}
}
