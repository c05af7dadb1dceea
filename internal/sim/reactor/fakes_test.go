package reactor

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
	"reactorrad.ai/internal/sim/sandbox"
)

var (
	t0      = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	errTest = errors.New("host offline")
)

type listWorld struct {
	structures []host.Structure
	actors     []host.Actor
	err        error
}

func (w *listWorld) Structures() ([]host.Structure, error) { return w.structures, w.err }
func (w *listWorld) Actors() ([]host.Actor, error)         { return w.actors, w.err }

// explodingStructure panics on every inspection after ID.
type explodingStructure struct{ id host.EntityID }

func (s *explodingStructure) ID() host.EntityID         { return s.id }
func (s *explodingStructure) Disposed() bool            { panic(errors.New("boom")) }
func (s *explodingStructure) SizeClass() host.SizeClass { panic("boom") }
func (s *explodingStructure) TotalPower() float64       { panic("boom") }
func (s *explodingStructure) Blocks() []host.Block      { panic("boom") }
func (s *explodingStructure) Position() spatial.Vec3    { panic("boom") }
func (s *explodingStructure) Transform() spatial.Mat4   { panic("boom") }

// explodingActor panics on every access after ID.
type explodingActor struct{ id host.EntityID }

func (a *explodingActor) ID() host.EntityID      { return a.id }
func (a *explodingActor) Position() spatial.Vec3 { panic("boom") }
func (a *explodingActor) Health() float64        { panic("boom") }
func (a *explodingActor) SetHealth(float64)      { panic("boom") }

type recordLogger struct{ lines []string }

func (l *recordLogger) Printf(format string, v ...any) {
	l.lines = append(l.lines, fmt.Sprintf(format, v...))
}

type recordTicks struct{ entries []TickLogEntry }

func (r *recordTicks) WriteTick(e TickLogEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

// station builds a one-reactor world matching the reference exposure case:
// reactor at grid origin, identity orientation, anchor at the origin.
func station(t *testing.T) (*sandbox.World, *sandbox.Structure, *sandbox.Reactor) {
	t.Helper()
	w := sandbox.New(sandbox.Config{})
	st := w.AddStructure("station", host.SizeLarge, spatial.Vec3{}, spatial.Identity())
	r := w.AddReactor(st, "main", spatial.Vec3i{}, 10, 100, true)
	w.AddArmor(st, spatial.Vec3i{X: 1})
	return w, st, r
}

func newDriver(t *testing.T, w host.World, s Settings) (*Driver, *ManualClock) {
	t.Helper()
	clock := NewManualClock(t0)
	d, err := New(w, Config{Settings: s, Clock: clock, Logger: &recordLogger{}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, clock
}
