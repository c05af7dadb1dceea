package reactor

import (
	"time"

	"reactorrad.ai/internal/sim/reactor/exposure"
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/registry"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

// Engine applies radiation damage from tracked sources to actors.
type Engine struct {
	log Logger
}

func NewEngine(log Logger) *Engine {
	if log == nil {
		log = nopLogger{}
	}
	return &Engine{log: log}
}

// ApplySource damages every actor within range of src. A nil, disposed,
// disabled or destroyed source is a no-op. st is the structure the source
// was registered under; if nil the source's parent is used. A failing actor
// is logged and skipped.
func (e *Engine) ApplySource(s Settings, elapsed time.Duration, st host.Structure, src host.RadiationSource, actors []host.Actor) []Hit {
	var (
		in          exposure.Source
		pos         spatial.Vec3
		stID, srcID host.EntityID
		ready       bool
	)
	err := guard(func() {
		if src == nil || src.Disposed() || !src.Enabled() {
			return
		}
		if st == nil {
			st = src.Parent()
		}
		if st == nil || st.Disposed() {
			return
		}
		in = exposure.Source{Power: src.Power(), IntegrityPercent: src.IntegrityPercent()}
		if !exposure.Usable(in.IntegrityPercent) {
			return
		}
		pos = spatial.SourceWorldPosition(src.Min(), spatial.LargeBlockSize, st.Transform(), st.Position())
		stID, srcID = st.ID(), src.ID()
		ready = true
	})
	if err != nil {
		e.log.Printf("reactor: damage pass source: %v", err)
		return nil
	}
	if !ready {
		return nil
	}

	params := s.params()
	secs := elapsed.Seconds()
	var hits []Hit
	for _, a := range actors {
		if a == nil {
			continue
		}
		err := guard(func() {
			d := spatial.Distance(a.Position(), pos)
			r, ok := exposure.Evaluate(params, in, d, secs)
			if !ok {
				return
			}
			health := a.Health() - r.Damage
			a.SetHealth(health)
			hits = append(hits, Hit{
				StructureID: stID,
				SourceID:    srcID,
				ActorID:     a.ID(),
				Distance:    d,
				Range:       r.Range,
				Leak:        r.Leak,
				Damage:      r.Damage,
				HealthAfter: health,
			})
		})
		if err != nil {
			e.log.Printf("reactor: damage pass actor: %v", err)
		}
	}
	return hits
}

// Apply runs one damage pass over every registered source. The actor list
// is read once per pass.
func (e *Engine) Apply(s Settings, elapsed time.Duration, reg *registry.Registry, w host.World) DamagePass {
	pass := DamagePass{ElapsedMS: durationMS(elapsed)}
	actors, err := w.Actors()
	if err != nil {
		pass.Failed = true
		e.log.Printf("reactor: damage pass: list actors: %v", err)
		return pass
	}
	pass.Actors = len(actors)
	reg.ForEach(func(st host.Structure, src host.RadiationSource) bool {
		if !active(st, src) {
			pass.Skipped++
			return true
		}
		pass.Sources++
		pass.Hits = append(pass.Hits, e.ApplySource(s, elapsed, st, src, actors)...)
		return true
	})
	return pass
}

// active reports whether a registered pair should radiate this pass. Stale
// entries are skipped here and purged by the next cleanup.
func active(st host.Structure, src host.RadiationSource) (ok bool) {
	_ = guard(func() {
		ok = st != nil && !st.Disposed() &&
			src != nil && !src.Disposed() && src.Enabled() &&
			exposure.Usable(src.IntegrityPercent())
	})
	return ok
}

func durationMS(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
