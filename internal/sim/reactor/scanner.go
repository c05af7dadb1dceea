package reactor

import (
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/registry"
)

// Scanner keeps a Registry in step with the world through periodic full
// rescans and cleanup passes. It never mutates entities.
type Scanner struct {
	world host.World
	reg   *registry.Registry
	log   Logger
}

func NewScanner(w host.World, reg *registry.Registry, log Logger) *Scanner {
	if log == nil {
		log = nopLogger{}
	}
	return &Scanner{world: w, reg: reg, log: log}
}

type pendingSource struct {
	structureID host.EntityID
	sourceID    host.EntityID
}

// CleanUp drops disposed structures and disposed sources. Removals are
// collected first and applied after the walk. A structure whose inspection
// panics is logged and left in place.
func (s *Scanner) CleanUp() CleanupResult {
	var (
		res           CleanupResult
		dropStructure []host.EntityID
		dropSource    []pendingSource
	)
	s.reg.ForEachStructure(func(id host.EntityID, e *registry.Entry) bool {
		var (
			gone    bool
			sources []pendingSource
		)
		err := guard(func() {
			if e.Structure == nil || e.Structure.Disposed() {
				gone = true
				return
			}
			for _, src := range e.Sources() {
				if src == nil || src.Disposed() {
					sources = append(sources, pendingSource{structureID: id, sourceID: sourceID(src)})
				}
			}
		})
		if err != nil {
			res.Failures++
			s.log.Printf("reactor: cleanup structure %d: %v", id, err)
			return true
		}
		if gone {
			dropStructure = append(dropStructure, id)
			return true
		}
		dropSource = append(dropSource, sources...)
		return true
	})

	for _, p := range dropSource {
		if s.reg.RemoveSource(p.structureID, p.sourceID) {
			res.SourcesRemoved++
		}
	}
	for _, id := range dropStructure {
		if e, ok := s.reg.Get(id); ok {
			res.SourcesRemoved += e.Len()
		}
		if s.reg.RemoveStructure(id) {
			res.StructuresRemoved++
		}
	}
	return res
}

// sourceID reads the ID of a source that may be a nil interface or hold a
// nil pointer; the zero ID is never issued by a host.
func sourceID(src host.RadiationSource) (id host.EntityID) {
	if src == nil {
		return 0
	}
	if err := guard(func() { id = src.ID() }); err != nil {
		return 0
	}
	return id
}

// FullScan enumerates every live structure and registers the radiation
// sources on each tracked one. Already-registered sources are left alone.
func (s *Scanner) FullScan() ScanResult {
	var res ScanResult
	structures, err := s.world.Structures()
	if err != nil {
		res.Failures++
		s.log.Printf("reactor: full scan: list structures: %v", err)
		return s.finish(res)
	}
	res.StructuresSeen = len(structures)
	for _, st := range structures {
		var skipped bool
		var added int
		err := guard(func() {
			if st == nil || st.Disposed() || st.SizeClass() != host.SizeLarge || st.TotalPower() <= 0 {
				skipped = true
				return
			}
			s.reg.UpsertStructure(st)
			for _, b := range st.Blocks() {
				src, ok := b.(host.RadiationSource)
				if !ok || src == nil || src.Disposed() {
					continue
				}
				if s.reg.AddSourceIfAbsent(st, src) {
					added++
				}
			}
		})
		res.SourcesAdded += added
		if err != nil {
			res.Failures++
			s.log.Printf("reactor: full scan structure: %v", err)
			continue
		}
		if skipped {
			res.Skipped++
		}
	}
	return s.finish(res)
}

func (s *Scanner) finish(res ScanResult) ScanResult {
	res.StructuresTracked = s.reg.Len()
	res.SourcesTracked = s.reg.SourceCount()
	return res
}
