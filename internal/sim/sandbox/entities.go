package sandbox

import (
	"reactorrad.ai/internal/sim/reactor/host"
	"reactorrad.ai/internal/sim/reactor/spatial"
)

type Structure struct {
	id        host.EntityID
	Name      string
	size      host.SizeClass
	pos       spatial.Vec3
	transform spatial.Mat4
	blocks    []host.Block
	disposed  bool
}

func (s *Structure) ID() host.EntityID         { return s.id }
func (s *Structure) Disposed() bool            { return s.disposed }
func (s *Structure) SizeClass() host.SizeClass { return s.size }
func (s *Structure) Position() spatial.Vec3    { return s.pos }
func (s *Structure) Transform() spatial.Mat4   { return s.transform }

func (s *Structure) Blocks() []host.Block {
	out := make([]host.Block, len(s.blocks))
	copy(out, s.blocks)
	return out
}

// TotalPower sums the output of enabled, intact reactors.
func (s *Structure) TotalPower() float64 {
	var sum float64
	for _, b := range s.blocks {
		r, ok := b.(*Reactor)
		if !ok || r.disposed || !r.enabled || r.integrity <= 0 {
			continue
		}
		sum += r.power
	}
	return sum
}

func (s *Structure) Reactors() []*Reactor {
	var out []*Reactor
	for _, b := range s.blocks {
		if r, ok := b.(*Reactor); ok {
			out = append(out, r)
		}
	}
	return out
}

func (s *Structure) removeBlock(id host.EntityID) {
	for i, b := range s.blocks {
		if b.ID() == id {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			return
		}
	}
}

// ArmorBlock is a plain block with no behaviour.
type ArmorBlock struct {
	id  host.EntityID
	Min spatial.Vec3i
}

func (b *ArmorBlock) ID() host.EntityID { return b.id }

// Reactor is a radiation source.
type Reactor struct {
	id        host.EntityID
	Name      string
	parent    *Structure
	min       spatial.Vec3i
	power     float64
	integrity float64
	enabled   bool
	disposed  bool
}

func (r *Reactor) ID() host.EntityID         { return r.id }
func (r *Reactor) Disposed() bool            { return r.disposed }
func (r *Reactor) Enabled() bool             { return r.enabled }
func (r *Reactor) Min() spatial.Vec3i        { return r.min }
func (r *Reactor) Power() float64            { return r.power }
func (r *Reactor) IntegrityPercent() float64 { return r.integrity }

func (r *Reactor) Parent() host.Structure {
	if r.parent == nil {
		return nil
	}
	return r.parent
}

func (r *Reactor) SetEnabled(v bool)      { r.enabled = v }
func (r *Reactor) SetPower(v float64)     { r.power = v }
func (r *Reactor) SetIntegrity(v float64) { r.integrity = v }

type Character struct {
	id     host.EntityID
	Name   string
	pos    spatial.Vec3
	health float64

	spawn     spatial.Vec3
	maxHealth float64
	speed     float64
	leash     float64
	deaths    int
}

func (c *Character) ID() host.EntityID      { return c.id }
func (c *Character) Position() spatial.Vec3 { return c.pos }
func (c *Character) Health() float64        { return c.health }
func (c *Character) SetHealth(v float64)    { c.health = v }
func (c *Character) Deaths() int            { return c.deaths }

func (c *Character) SetPosition(p spatial.Vec3) { c.pos = p }
