package sandbox

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"reactorrad.ai/internal/sim/mathx"
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

type Scenario struct {
	WorldID    string          `yaml:"world_id"`
	Seed       int64           `yaml:"seed"`
	Structures []StructureSpec `yaml:"structures"`
	Characters []CharacterSpec `yaml:"characters"`
	Events     []EventSpec     `yaml:"events,omitempty"`
}

type StructureSpec struct {
	Name        string        `yaml:"name"`
	Size        string        `yaml:"size"`
	Position    [3]float64    `yaml:"position"`
	YawDeg      float64       `yaml:"yaw_deg"`
	PitchDeg    float64       `yaml:"pitch_deg"`
	RollDeg     float64       `yaml:"roll_deg"`
	ArmorBlocks int           `yaml:"armor_blocks"`
	Reactors    []ReactorSpec `yaml:"reactors"`
}

type ReactorSpec struct {
	Name      string   `yaml:"name"`
	Min       [3]int   `yaml:"min"`
	Power     float64  `yaml:"power"`
	Integrity *float64 `yaml:"integrity"`
	Enabled   *bool    `yaml:"enabled"`
}

type CharacterSpec struct {
	Name     string     `yaml:"name"`
	Position [3]float64 `yaml:"position"`
	Health   float64    `yaml:"health"`
	Speed    float64    `yaml:"speed"`
	Leash    float64    `yaml:"leash"`
}

type EventSpec struct {
	AtTick uint64  `yaml:"at_tick"`
	Action string  `yaml:"action"`
	Target string  `yaml:"target"`
	Value  float64 `yaml:"value"`
}

func LoadScenario(path string) (Scenario, error) {
	var sc Scenario
	raw, err := os.ReadFile(path)
	if err != nil {
		return sc, err
	}
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return sc, fmt.Errorf("scenario.yaml: %w", err)
	}
	return sc, nil
}

func (sc Scenario) Validate() error {
	names := map[string]bool{}
	reactors := map[string]bool{}
	for i, s := range sc.Structures {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("structures[%d]: missing name", i)
		}
		if names[s.Name] {
			return fmt.Errorf("structures[%d]: duplicate name %q", i, s.Name)
		}
		names[s.Name] = true
		if _, err := parseSize(s.Size); err != nil {
			return fmt.Errorf("structures[%d]: %w", i, err)
		}
		for j, r := range s.Reactors {
			if strings.TrimSpace(r.Name) == "" {
				return fmt.Errorf("structures[%d].reactors[%d]: missing name", i, j)
			}
			path := s.Name + "/" + r.Name
			if reactors[path] {
				return fmt.Errorf("structures[%d].reactors[%d]: duplicate name %q", i, j, r.Name)
			}
			reactors[path] = true
		}
	}
	for i, c := range sc.Characters {
		if c.Health <= 0 {
			return fmt.Errorf("characters[%d]: health must be > 0", i)
		}
	}
	for i, ev := range sc.Events {
		switch Action(ev.Action) {
		case ActionDisposeStructure:
			if !names[ev.Target] {
				return fmt.Errorf("events[%d]: unknown structure %q", i, ev.Target)
			}
		case ActionDisposeReactor, ActionToggleReactor, ActionSetIntegrity, ActionSetPower:
			if !reactors[ev.Target] {
				return fmt.Errorf("events[%d]: unknown reactor %q", i, ev.Target)
			}
		default:
			return fmt.Errorf("events[%d]: unknown action %q", i, ev.Action)
		}
	}
	return nil
}

func parseSize(s string) (host.SizeClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "large":
		return host.SizeLarge, nil
	case "small":
		return host.SizeSmall, nil
	default:
		return 0, fmt.Errorf("bad size %q", s)
	}
}

// Build creates a world populated from sc. cfg.ID and cfg.Seed default to
// the scenario's values.
func Build(sc Scenario, cfg Config) (*World, error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	if cfg.ID == "" {
		cfg.ID = sc.WorldID
	}
	if cfg.Seed == 0 {
		cfg.Seed = sc.Seed
	}
	w := New(cfg)
	for _, ss := range sc.Structures {
		size, _ := parseSize(ss.Size)
		rot := spatial.RotationZ(mathx.DegToRad(ss.RollDeg)).
			Mul(spatial.RotationX(mathx.DegToRad(ss.PitchDeg))).
			Mul(spatial.RotationY(mathx.DegToRad(ss.YawDeg)))
		s := w.AddStructure(ss.Name, size, vec(ss.Position), rot)
		for _, rs := range ss.Reactors {
			enabled := true
			if rs.Enabled != nil {
				enabled = *rs.Enabled
			}
			integrity := 100.0
			if rs.Integrity != nil {
				integrity = *rs.Integrity
			}
			w.AddReactor(s, rs.Name, spatial.Vec3i{X: rs.Min[0], Y: rs.Min[1], Z: rs.Min[2]}, rs.Power, integrity, enabled)
		}
		for i := 0; i < ss.ArmorBlocks; i++ {
			w.AddArmor(s, spatial.Vec3i{X: i + 1})
		}
	}
	for _, cs := range sc.Characters {
		w.AddCharacter(cs.Name, vec(cs.Position), cs.Health, cs.Speed, cs.Leash)
	}
	for _, es := range sc.Events {
		w.Schedule(Event{AtTick: es.AtTick, Action: Action(es.Action), Target: es.Target, Value: es.Value})
	}
	return w, nil
}

func vec(v [3]float64) spatial.Vec3 { return spatial.Vec3{X: v[0], Y: v[1], Z: v[2]} }
