// Package exposure holds the radiation decay math. It has no state and does
// not touch host entities.
package exposure

import "math"

type Model string

const (
	// ModelScaled scales exposure radius with reactor power and leakage with
	// block integrity.
	ModelScaled Model = "scaled"
	// ModelLegacy uses a fixed radius and no integrity factor.
	ModelLegacy Model = "legacy"
)

func (m Model) Valid() bool { return m == ModelScaled || m == ModelLegacy }

// MinDistance is the distance used for actors closer than it to a source,
// including actors standing exactly on it.
const MinDistance = 1e-3

type Params struct {
	Model Model

	DamageRate         float64
	RadiationRange     float64 // legacy fixed radius
	EffectiveRangeBase float64
	RangePerPower      float64
}

type Source struct {
	Power            float64
	IntegrityPercent float64
}

type Result struct {
	Range    float64
	Leak     float64
	Distance float64 // after flooring at MinDistance
	Damage   float64
}

// LeakingRadiation is evaluated as written: at integrity 100 it is negative,
// and it only tends to the 0.1 floor when integrity is expressed as 1.
func LeakingRadiation(integrityPercent float64) float64 {
	return 0.1 + (0.5*(1.0/integrityPercent) - 0.5)
}

func EffectiveRange(base, perPower, power float64) float64 {
	return base + perPower*power
}

// Usable reports whether a source with this integrity can be evaluated.
// Zero, negative and NaN integrity mean the block is destroyed.
func Usable(integrityPercent float64) bool {
	return integrityPercent > 0 && !math.IsNaN(integrityPercent)
}

// Evaluate computes the damage one source deals to one actor over
// elapsedSeconds. ok is false when the actor is out of range or the source
// is not usable; the boundary distance == range is in range.
func Evaluate(p Params, src Source, distance, elapsedSeconds float64) (Result, bool) {
	if math.IsNaN(distance) || !Usable(src.IntegrityPercent) {
		return Result{}, false
	}
	var r Result
	switch p.Model {
	case ModelLegacy:
		r.Range = p.RadiationRange
		r.Leak = 1
	default:
		r.Range = EffectiveRange(p.EffectiveRangeBase, p.RangePerPower, src.Power)
		r.Leak = LeakingRadiation(src.IntegrityPercent)
	}
	if distance > r.Range {
		return Result{}, false
	}
	r.Distance = math.Max(distance, MinDistance)
	r.Damage = p.DamageRate * elapsedSeconds * (r.Range / r.Distance) * r.Leak
	return r, true
}
