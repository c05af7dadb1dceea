package exposure

import (
	"math"
	"testing"
)

func scaledParams() Params {
	return Params{
		Model:              ModelScaled,
		DamageRate:         1,
		RadiationRange:     5,
		EffectiveRangeBase: 5,
		RangePerPower:      0.2,
	}
}

func TestEvaluate_FullIntegrityLeakIsNegative(t *testing.T) {
	integrity := 100.0
	power := 10.0
	distance := 3.5
	r, ok := Evaluate(scaledParams(), Source{Power: power, IntegrityPercent: integrity}, distance, 1)
	if !ok {
		t.Fatalf("expected hit at distance %v", distance)
	}
	if r.Range != 7 {
		t.Fatalf("range=%v want 7", r.Range)
	}
	wantLeak := 0.1 + (0.5*(1.0/integrity) - 0.5)
	if r.Leak != wantLeak {
		t.Fatalf("leak=%v want %v", r.Leak, wantLeak)
	}
	if math.Abs(r.Leak-(-0.395)) > 1e-12 {
		t.Fatalf("leak=%v want about -0.395", r.Leak)
	}
	wantDamage := 1.0 * 1.0 * (r.Range / distance) * wantLeak
	if r.Damage != wantDamage {
		t.Fatalf("damage=%v want %v", r.Damage, wantDamage)
	}
	if r.Damage >= 0 {
		t.Fatalf("full-integrity damage=%v; the leak formula is expected to heal here", r.Damage)
	}
}

func TestLeakingRadiation_UnitIntegrityHitsFloor(t *testing.T) {
	if got := LeakingRadiation(1); math.Abs(got-0.1) > 1e-12 {
		t.Fatalf("leak(1)=%v want 0.1", got)
	}
	if LeakingRadiation(0.25) <= LeakingRadiation(0.5) {
		t.Fatalf("leak should grow as integrity falls")
	}
}

func TestEvaluate_RangeBoundaryIsInclusive(t *testing.T) {
	src := Source{Power: 10, IntegrityPercent: 50}
	if _, ok := Evaluate(scaledParams(), src, 7, 1); !ok {
		t.Fatalf("distance == range should hit")
	}
	if _, ok := Evaluate(scaledParams(), src, math.Nextafter(7, math.Inf(1)), 1); ok {
		t.Fatalf("distance just past range should miss")
	}
}

func TestEvaluate_DamageLinearInElapsed(t *testing.T) {
	src := Source{Power: 3, IntegrityPercent: 40}
	for _, d := range []float64{0.5, 1, 2.75, 5.6} {
		a, ok1 := Evaluate(scaledParams(), src, d, 0.37)
		b, ok2 := Evaluate(scaledParams(), src, d, 0.74)
		if !ok1 || !ok2 {
			t.Fatalf("distance %v: expected hits", d)
		}
		if b.Damage != 2*a.Damage {
			t.Fatalf("distance %v: damage %v at 2x elapsed, want %v", d, b.Damage, 2*a.Damage)
		}
	}
}

func TestEvaluate_ZeroDistanceIsFloored(t *testing.T) {
	r, ok := Evaluate(scaledParams(), Source{Power: 0, IntegrityPercent: 0.5}, 0, 1)
	if !ok {
		t.Fatalf("expected hit")
	}
	if r.Distance != MinDistance {
		t.Fatalf("distance=%v want %v", r.Distance, MinDistance)
	}
	if math.IsInf(r.Damage, 0) || math.IsNaN(r.Damage) {
		t.Fatalf("damage=%v want finite", r.Damage)
	}
}

func TestEvaluate_UnusableIntegritySkipped(t *testing.T) {
	for _, in := range []float64{0, -5, math.NaN()} {
		if _, ok := Evaluate(scaledParams(), Source{Power: 10, IntegrityPercent: in}, 1, 1); ok {
			t.Fatalf("integrity %v should be skipped", in)
		}
	}
}

func TestEvaluate_LegacyFixedRadius(t *testing.T) {
	p := scaledParams()
	p.Model = ModelLegacy
	p.RadiationRange = 4
	// Power and integrity do not scale legacy damage.
	r, ok := Evaluate(p, Source{Power: 1000, IntegrityPercent: 3}, 2, 1.5)
	if !ok {
		t.Fatalf("expected hit inside legacy radius")
	}
	if r.Range != 4 || r.Leak != 1 {
		t.Fatalf("range=%v leak=%v want 4 and 1", r.Range, r.Leak)
	}
	if want := 1.0 * 1.5 * (4.0 / 2.0); r.Damage != want {
		t.Fatalf("damage=%v want %v", r.Damage, want)
	}
	if _, ok := Evaluate(p, Source{Power: 1000, IntegrityPercent: 3}, 4.01, 1); ok {
		t.Fatalf("legacy radius must not scale with power")
	}
}
