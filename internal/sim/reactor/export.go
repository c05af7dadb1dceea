package reactor

import (
	"time"

	"reactorrad.ai/internal/persistence/snapshot"
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/registry"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

// ExportRegistry dumps the current index. Only the tick goroutine may call it.
func (d *Driver) ExportRegistry(worldID string) snapshot.RegistryV1 {
	s := d.Settings()
	out := snapshot.RegistryV1{
		Header: snapshot.Header{
			Version: snapshot.Version,
			WorldID: worldID,
			Tick:    d.tick,
			At:      d.clock.Now().UTC().Format(time.RFC3339Nano),
		},
		Settings: snapshot.SettingsV1{
			Model:              string(s.Model),
			DamageRate:         s.DamageRate,
			RadiationRange:     s.RadiationRange,
			EffectiveRangeBase: s.EffectiveRangeBase,
			RangePerPower:      s.RangePerPower,
			DamageIntervalMS:   s.DamageInterval.Milliseconds(),
			ScanIntervalMS:     s.ScanInterval.Milliseconds(),
			ElapsedMode:        string(s.ElapsedMode),
		},
	}
	d.reg.ForEachStructure(func(id host.EntityID, e *registry.Entry) bool {
		sv := snapshot.StructureV1{ID: uint64(id)}
		if err := guard(func() { exportStructure(&sv, e) }); err != nil {
			d.log.Printf("reactor: export structure %d: %v", id, err)
		}
		out.Structures = append(out.Structures, sv)
		return true
	})
	return out
}

func exportStructure(sv *snapshot.StructureV1, e *registry.Entry) {
	st := e.Structure
	sv.Disposed = st.Disposed()
	if sv.Disposed {
		return
	}
	sv.TotalPower = st.TotalPower()
	pos := st.Position()
	sv.Position = [3]float64{pos.X, pos.Y, pos.Z}
	for _, src := range e.Sources() {
		min := src.Min()
		wp := spatial.SourceWorldPosition(min, spatial.LargeBlockSize, st.Transform(), pos)
		sv.Sources = append(sv.Sources, snapshot.SourceV1{
			ID:        uint64(src.ID()),
			Min:       [3]int{min.X, min.Y, min.Z},
			WorldPos:  [3]float64{wp.X, wp.Y, wp.Z},
			Power:     src.Power(),
			Integrity: src.IntegrityPercent(),
			Enabled:   src.Enabled(),
			Disposed:  src.Disposed(),
		})
	}
}
