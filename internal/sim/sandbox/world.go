// Package sandbox is an in-memory host world for the reactor engine. It owns
// structures, blocks and characters, moves characters around, and calls a
// plugin's lifecycle hooks from its own tick loop.
package sandbox

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"reactorrad.ai/internal/sim/mathx"
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

// Plugin is the lifecycle a host offers to extensions.
type Plugin interface {
	Init()
	Tick()
	Shutdown()
}

type Config struct {
	ID         string
	Seed       int64
	TickRateHz int
	// Respawn resets characters whose health reached zero back to their
	// spawn point at full health.
	Respawn bool
}

type World struct {
	cfg Config

	nextID     uint64
	structures []*Structure
	characters []*Character
	events     []Event

	plugin Plugin

	do       chan doReq
	stop     chan struct{}
	stopOnce sync.Once

	tick   atomic.Uint64
	deaths atomic.Uint64
	count  atomic.Int64
}

type doReq struct {
	fn   func()
	done chan struct{}
}

var ErrStopped = errors.New("sandbox: world stopped")

func New(cfg Config) *World {
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = 20
	}
	if cfg.ID == "" {
		cfg.ID = "sandbox"
	}
	return &World{
		cfg:  cfg,
		do:   make(chan doReq, 16),
		stop: make(chan struct{}),
	}
}

func (w *World) ID() string          { return w.cfg.ID }
func (w *World) TickRateHz() int     { return w.cfg.TickRateHz }
func (w *World) CurrentTick() uint64 { return w.tick.Load() }
func (w *World) Deaths() uint64      { return w.deaths.Load() }

// CharacterCount is safe from any goroutine.
func (w *World) CharacterCount() int { return int(w.count.Load()) }

func (w *World) SetPlugin(p Plugin) { w.plugin = p }

func (w *World) newID() host.EntityID {
	w.nextID++
	return host.EntityID(w.nextID)
}

// AddStructure places an empty structure. rot is applied before the anchor.
func (w *World) AddStructure(name string, size host.SizeClass, pos spatial.Vec3, rot spatial.Mat4) *Structure {
	s := &Structure{
		id:        w.newID(),
		Name:      name,
		size:      size,
		pos:       pos,
		transform: rot.Orientation().Mul(spatial.Translation(pos)),
	}
	w.structures = append(w.structures, s)
	return s
}

func (w *World) AddReactor(s *Structure, name string, min spatial.Vec3i, power, integrity float64, enabled bool) *Reactor {
	r := &Reactor{
		id:        w.newID(),
		Name:      name,
		parent:    s,
		min:       min,
		power:     power,
		integrity: integrity,
		enabled:   enabled,
	}
	s.blocks = append(s.blocks, r)
	return r
}

func (w *World) AddArmor(s *Structure, min spatial.Vec3i) *ArmorBlock {
	b := &ArmorBlock{id: w.newID(), Min: min}
	s.blocks = append(s.blocks, b)
	return b
}

func (w *World) AddCharacter(name string, pos spatial.Vec3, health, speed, leash float64) *Character {
	c := &Character{
		id:        w.newID(),
		Name:      name,
		pos:       pos,
		health:    health,
		spawn:     pos,
		maxHealth: health,
		speed:     speed,
		leash:     leash,
	}
	w.characters = append(w.characters, c)
	w.count.Store(int64(len(w.characters)))
	return c
}

// DisposeStructure removes s from the world. Existing references see
// Disposed() == true, as do references to its blocks.
func (w *World) DisposeStructure(s *Structure) {
	if s == nil || s.disposed {
		return
	}
	s.disposed = true
	for _, r := range s.Reactors() {
		r.disposed = true
	}
	for i, v := range w.structures {
		if v == s {
			w.structures = append(w.structures[:i], w.structures[i+1:]...)
			break
		}
	}
}

func (w *World) DisposeReactor(r *Reactor) {
	if r == nil || r.disposed {
		return
	}
	r.disposed = true
	if r.parent != nil {
		r.parent.removeBlock(r.id)
	}
}

// Structures implements host.World.
func (w *World) Structures() ([]host.Structure, error) {
	out := make([]host.Structure, 0, len(w.structures))
	for _, s := range w.structures {
		out = append(out, s)
	}
	return out, nil
}

// Actors implements host.World.
func (w *World) Actors() ([]host.Actor, error) {
	out := make([]host.Actor, 0, len(w.characters))
	for _, c := range w.characters {
		out = append(out, c)
	}
	return out, nil
}

func (w *World) Characters() []*Character {
	out := make([]*Character, len(w.characters))
	copy(out, w.characters)
	return out
}

func (w *World) StructureByName(name string) *Structure {
	for _, s := range w.structures {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Schedule queues scenario events; they fire at the start of their tick.
func (w *World) Schedule(evs ...Event) {
	w.events = append(w.events, evs...)
	sort.SliceStable(w.events, func(i, j int) bool { return w.events[i].AtTick < w.events[j].AtTick })
}

// Step advances the world by dt: due events fire, characters wander, the
// plugin ticks, and dead characters respawn.
func (w *World) Step(dt time.Duration) {
	tick := w.tick.Load() + 1
	w.fireEvents(tick)
	w.moveCharacters(tick, dt.Seconds())
	if w.plugin != nil {
		w.plugin.Tick()
	}
	if w.cfg.Respawn {
		for _, c := range w.characters {
			if c.health > 0 {
				continue
			}
			c.deaths++
			w.deaths.Add(1)
			c.health = c.maxHealth
			c.pos = c.spawn
		}
	}
	w.tick.Store(tick)
}

func (w *World) moveCharacters(tick uint64, secs float64) {
	for _, c := range w.characters {
		if c.speed <= 0 {
			continue
		}
		step := c.speed * secs
		off := c.pos.Sub(c.spawn)
		var dir spatial.Vec3
		if c.leash > 0 && off.Len() > c.leash {
			dir = off.Scale(-1).Normalize()
		} else {
			a := mathx.Angle(mathx.Hash3(w.cfg.Seed, uint64(c.id), tick, 0))
			dir = spatial.Vec3{X: math.Cos(a), Z: math.Sin(a)}
		}
		c.pos = c.pos.Add(dir.Scale(step))
	}
}

// Run ticks the world until ctx is done or Stop is called. The plugin's
// Init runs before the first step and Shutdown after the last one.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if w.plugin != nil {
		w.plugin.Init()
		defer w.plugin.Shutdown()
	}

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.do:
			req.fn()
			close(req.done)
		case now := <-ticker.C:
			w.Step(now.Sub(last))
			last = now
		}
	}
}

// Stop ends Run. It is safe to call more than once.
func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

// Do runs fn on the tick goroutine between steps and waits for it.
func (w *World) Do(ctx context.Context, fn func()) error {
	select {
	case <-w.stop:
		return ErrStopped
	default:
	}
	req := doReq{fn: fn, done: make(chan struct{})}
	select {
	case w.do <- req:
	case <-w.stop:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
