package registry

import (
	"testing"

	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

type fakeStructure struct{ id host.EntityID }

func (s *fakeStructure) ID() host.EntityID         { return s.id }
func (s *fakeStructure) Disposed() bool            { return false }
func (s *fakeStructure) SizeClass() host.SizeClass { return host.SizeLarge }
func (s *fakeStructure) TotalPower() float64       { return 1 }
func (s *fakeStructure) Blocks() []host.Block      { return nil }
func (s *fakeStructure) Position() spatial.Vec3    { return spatial.Vec3{} }
func (s *fakeStructure) Transform() spatial.Mat4   { return spatial.Identity() }

type fakeSource struct {
	id     host.EntityID
	parent host.Structure
}

func (s *fakeSource) ID() host.EntityID         { return s.id }
func (s *fakeSource) Disposed() bool            { return false }
func (s *fakeSource) Enabled() bool             { return true }
func (s *fakeSource) Min() spatial.Vec3i        { return spatial.Vec3i{} }
func (s *fakeSource) Power() float64            { return 1 }
func (s *fakeSource) IntegrityPercent() float64 { return 1 }
func (s *fakeSource) Parent() host.Structure    { return s.parent }

func TestRegistry_AddSourceIfAbsentIsIdempotent(t *testing.T) {
	r := New()
	st := &fakeStructure{id: 1}
	src := &fakeSource{id: 10, parent: st}

	if !r.AddSourceIfAbsent(st, src) {
		t.Fatalf("first add should insert")
	}
	if r.AddSourceIfAbsent(st, src) {
		t.Fatalf("second add should be a no-op")
	}
	// Same identity, different reference.
	if r.AddSourceIfAbsent(st, &fakeSource{id: 10, parent: st}) {
		t.Fatalf("uniqueness must be by id")
	}
	if r.Len() != 1 || r.SourceCount() != 1 {
		t.Fatalf("len=%d sources=%d want 1/1", r.Len(), r.SourceCount())
	}
}

func TestRegistry_RemovalsAreNoOpsOnAbsence(t *testing.T) {
	r := New()
	if r.RemoveStructure(42) {
		t.Fatalf("remove of unknown structure reported true")
	}
	if r.RemoveSource(42, 7) {
		t.Fatalf("remove of unknown source reported true")
	}
	st := &fakeStructure{id: 1}
	r.UpsertStructure(st)
	if r.RemoveSource(1, 7) {
		t.Fatalf("remove of unknown source on known structure reported true")
	}
	if !r.RemoveStructure(1) || r.Has(1) || r.Len() != 0 {
		t.Fatalf("structure not removed")
	}
}

func TestRegistry_ForEachOrder(t *testing.T) {
	r := New()
	a := &fakeStructure{id: 5}
	b := &fakeStructure{id: 2}
	r.AddSourceIfAbsent(a, &fakeSource{id: 51, parent: a})
	r.AddSourceIfAbsent(b, &fakeSource{id: 21, parent: b})
	r.AddSourceIfAbsent(a, &fakeSource{id: 52, parent: a})
	r.UpsertStructure(&fakeStructure{id: 9})

	var got []host.EntityID
	r.ForEach(func(st host.Structure, src host.RadiationSource) bool {
		got = append(got, src.ID())
		return true
	})
	want := []host.EntityID{51, 52, 21}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}

	if !r.RemoveSource(5, 51) || r.HasSource(5, 51) || !r.HasSource(5, 52) {
		t.Fatalf("source removal mismatch")
	}
	ids := r.IDs()
	if len(ids) != 3 || ids[0] != 5 || ids[1] != 2 || ids[2] != 9 {
		t.Fatalf("ids=%v want [5 2 9]", ids)
	}
}

func TestRegistry_UpsertKeepsSources(t *testing.T) {
	r := New()
	st := &fakeStructure{id: 1}
	r.AddSourceIfAbsent(st, &fakeSource{id: 2, parent: st})
	fresh := &fakeStructure{id: 1}
	e := r.UpsertStructure(fresh)
	if e.Len() != 1 {
		t.Fatalf("upsert dropped sources")
	}
	if e.Structure != host.Structure(fresh) {
		t.Fatalf("upsert should refresh the structure reference")
	}
}
