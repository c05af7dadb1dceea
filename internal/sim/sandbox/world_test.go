package sandbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

type countingPlugin struct {
	inits, ticks, shutdowns int
}

func (p *countingPlugin) Init()     { p.inits++ }
func (p *countingPlugin) Tick()     { p.ticks++ }
func (p *countingPlugin) Shutdown() { p.shutdowns++ }

func TestLoadScenario_Configs(t *testing.T) {
	sc, err := LoadScenario("../../../configs/scenario.yaml")
	if err != nil {
		t.Fatalf("load scenario.yaml: %v", err)
	}
	w, err := Build(sc, Config{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if w.ID() != "sandbox" {
		t.Fatalf("id=%q want sandbox", w.ID())
	}
	st := w.StructureByName("station")
	if st == nil || st.SizeClass() != host.SizeLarge {
		t.Fatalf("station missing or not large")
	}
	if got := st.TotalPower(); got != 12 {
		t.Fatalf("station power=%v want 12", got)
	}
	if f := w.StructureByName("fighter"); f == nil || f.SizeClass() != host.SizeSmall {
		t.Fatalf("fighter should be small")
	}
	if len(w.Characters()) != 3 || w.CharacterCount() != 3 {
		t.Fatalf("characters=%d want 3", len(w.Characters()))
	}
}

func TestScenarioValidate_RejectsUnknownTargets(t *testing.T) {
	sc := Scenario{
		Structures: []StructureSpec{{Name: "a", Reactors: []ReactorSpec{{Name: "r"}}}},
		Events:     []EventSpec{{AtTick: 1, Action: "toggle_reactor", Target: "a/missing"}},
	}
	if err := sc.Validate(); err == nil {
		t.Fatalf("expected unknown reactor error")
	}
	sc.Events[0].Target = "a/r"
	if err := sc.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestDisposeStructure_MarksBlocksAndDropsFromList(t *testing.T) {
	w := New(Config{})
	s := w.AddStructure("s", host.SizeLarge, spatial.Vec3{}, spatial.Identity())
	r := w.AddReactor(s, "r", spatial.Vec3i{}, 5, 100, true)
	w.DisposeStructure(s)
	if !s.Disposed() || !r.Disposed() {
		t.Fatalf("dispose should flag structure and reactor")
	}
	list, _ := w.Structures()
	if len(list) != 0 {
		t.Fatalf("disposed structure still listed")
	}
}

func TestStep_EventsPluginAndRespawn(t *testing.T) {
	w := New(Config{Respawn: true, Seed: 3})
	s := w.AddStructure("s", host.SizeLarge, spatial.Vec3{}, spatial.Identity())
	w.AddReactor(s, "r", spatial.Vec3i{}, 5, 100, true)
	c := w.AddCharacter("c", spatial.Vec3{X: 1}, 10, 0, 0)
	w.Schedule(Event{AtTick: 2, Action: ActionToggleReactor, Target: "s/r"})
	p := &countingPlugin{}
	w.SetPlugin(p)

	w.Step(50 * time.Millisecond)
	if s.TotalPower() != 5 {
		t.Fatalf("event fired early")
	}
	c.SetHealth(-3)
	w.Step(50 * time.Millisecond)
	if s.TotalPower() != 0 {
		t.Fatalf("toggle event did not fire at tick 2")
	}
	if c.Health() != 10 || c.Deaths() != 1 || w.Deaths() != 1 {
		t.Fatalf("respawn: health=%v deaths=%d", c.Health(), c.Deaths())
	}
	if p.ticks != 2 || w.CurrentTick() != 2 {
		t.Fatalf("plugin ticks=%d world tick=%d want 2/2", p.ticks, w.CurrentTick())
	}
}

func TestMoveCharacters_StaysNearLeash(t *testing.T) {
	w := New(Config{Seed: 9})
	c := w.AddCharacter("c", spatial.Vec3{}, 100, 2, 3)
	for i := 0; i < 2000; i++ {
		w.Step(100 * time.Millisecond)
	}
	// One step of overshoot past the leash is allowed.
	if d := c.Position().Len(); d > 3+0.2+1e-9 {
		t.Fatalf("character wandered %v from spawn", d)
	}
}

func TestRun_LifecycleAndDo(t *testing.T) {
	w := New(Config{TickRateHz: 200})
	p := &countingPlugin{}
	w.SetPlugin(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	var seen uint64
	dctx, dcancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer dcancel()
	if err := w.Do(dctx, func() { seen = w.CurrentTick() + 1 }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if seen == 0 {
		t.Fatalf("Do fn did not run")
	}
	cancel()
	<-done
	if p.inits != 1 || p.shutdowns != 1 {
		t.Fatalf("inits=%d shutdowns=%d want 1/1", p.inits, p.shutdowns)
	}
}

func TestStop_Idempotent(t *testing.T) {
	w := New(Config{TickRateHz: 200})
	done := make(chan error, 1)
	go func() { done <- w.Run(context.Background()) }()

	w.Stop()
	w.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run=%v want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not return after Stop")
	}
	if err := w.Do(context.Background(), func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Do after Stop=%v want ErrStopped", err)
	}
}
