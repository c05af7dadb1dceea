// Package host declares what the reactor engine needs from the world that
// owns structures, blocks and characters. The engine holds these values as
// non-owning references and checks Disposed before every use.
package host

import "reactorrad.ai/internal/sim/reactor/spatial"

// EntityID identifies an entity for as long as it is alive.
type EntityID uint64

type SizeClass int

const (
	SizeSmall SizeClass = iota
	SizeLarge
)

func (s SizeClass) String() string {
	switch s {
	case SizeLarge:
		return "large"
	case SizeSmall:
		return "small"
	default:
		return "unknown"
	}
}

type Block interface {
	ID() EntityID
}

type Structure interface {
	ID() EntityID
	Disposed() bool
	SizeClass() SizeClass
	TotalPower() float64
	Blocks() []Block
	// Position is the world anchor of the grid origin.
	Position() spatial.Vec3
	// Transform is the world matrix; callers use only its rotation.
	Transform() spatial.Mat4
}

// RadiationSource is a block that leaks radiation while enabled.
type RadiationSource interface {
	Block
	Disposed() bool
	Enabled() bool
	Min() spatial.Vec3i
	Power() float64
	IntegrityPercent() float64
	Parent() Structure
}

type Actor interface {
	ID() EntityID
	Position() spatial.Vec3
	Health() float64
	SetHealth(float64)
}

// World lists the live entities of each type the engine consumes.
type World interface {
	Structures() ([]Structure, error)
	Actors() ([]Actor, error)
}
