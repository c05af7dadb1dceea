// Package registry indexes the radiation sources found on each tracked
// structure. It stores references only and never inspects entity state.
package registry

import "reactorrad.ai/internal/sim/reactor/host"

type Entry struct {
	Structure host.Structure

	sources []host.RadiationSource
	index   map[host.EntityID]struct{}
}

// Sources returns a copy of the entry's sources in insertion order.
func (e *Entry) Sources() []host.RadiationSource {
	out := make([]host.RadiationSource, len(e.sources))
	copy(out, e.sources)
	return out
}

func (e *Entry) Len() int { return len(e.sources) }

// Registry maps structure IDs to their sources. Iteration follows insertion
// order of structures, then of sources. Not safe for concurrent use; the
// tick goroutine owns it.
type Registry struct {
	order   []host.EntityID
	entries map[host.EntityID]*Entry
}

func New() *Registry {
	return &Registry{entries: map[host.EntityID]*Entry{}}
}

// UpsertStructure ensures st has an entry, possibly empty. An existing entry
// keeps its sources and takes the latest structure reference.
func (r *Registry) UpsertStructure(st host.Structure) *Entry {
	if st == nil {
		return nil
	}
	id := st.ID()
	if e, ok := r.entries[id]; ok {
		e.Structure = st
		return e
	}
	e := &Entry{Structure: st, index: map[host.EntityID]struct{}{}}
	r.entries[id] = e
	r.order = append(r.order, id)
	return e
}

// AddSourceIfAbsent adds src to st's entry unless a source with the same ID
// is already there. The entry is created if needed.
func (r *Registry) AddSourceIfAbsent(st host.Structure, src host.RadiationSource) bool {
	if st == nil || src == nil {
		return false
	}
	e := r.UpsertStructure(st)
	id := src.ID()
	if _, ok := e.index[id]; ok {
		return false
	}
	e.index[id] = struct{}{}
	e.sources = append(e.sources, src)
	return true
}

func (r *Registry) RemoveStructure(id host.EntityID) bool {
	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Registry) RemoveSource(structureID, sourceID host.EntityID) bool {
	e, ok := r.entries[structureID]
	if !ok {
		return false
	}
	if _, ok := e.index[sourceID]; !ok {
		return false
	}
	delete(e.index, sourceID)
	for i, s := range e.sources {
		if s.ID() == sourceID {
			e.sources = append(e.sources[:i], e.sources[i+1:]...)
			break
		}
	}
	return true
}

// ForEach visits every (structure, source) pair until fn returns false.
// fn must not mutate the registry.
func (r *Registry) ForEach(fn func(st host.Structure, src host.RadiationSource) bool) {
	for _, id := range r.order {
		e := r.entries[id]
		for _, src := range e.sources {
			if !fn(e.Structure, src) {
				return
			}
		}
	}
}

// ForEachStructure visits every entry until fn returns false. fn must not
// mutate the registry.
func (r *Registry) ForEachStructure(fn func(id host.EntityID, e *Entry) bool) {
	for _, id := range r.order {
		if !fn(id, r.entries[id]) {
			return
		}
	}
}

func (r *Registry) Get(id host.EntityID) (*Entry, bool) {
	e, ok := r.entries[id]
	return e, ok
}

func (r *Registry) Sources(id host.EntityID) []host.RadiationSource {
	e, ok := r.entries[id]
	if !ok {
		return nil
	}
	return e.Sources()
}

func (r *Registry) Has(id host.EntityID) bool {
	_, ok := r.entries[id]
	return ok
}

func (r *Registry) HasSource(structureID, sourceID host.EntityID) bool {
	e, ok := r.entries[structureID]
	if !ok {
		return false
	}
	_, ok = e.index[sourceID]
	return ok
}

// Len is the number of tracked structures.
func (r *Registry) Len() int { return len(r.order) }

func (r *Registry) SourceCount() int {
	n := 0
	for _, e := range r.entries {
		n += len(e.sources)
	}
	return n
}

// IDs returns the tracked structure IDs in iteration order.
func (r *Registry) IDs() []host.EntityID {
	out := make([]host.EntityID, len(r.order))
	copy(out, r.order)
	return out
}
