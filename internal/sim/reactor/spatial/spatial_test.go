package spatial

import (
	"math"
	"testing"
)

func near(a, b Vec3) bool {
	const eps = 1e-9
	return math.Abs(a.X-b.X) < eps && math.Abs(a.Y-b.Y) < eps && math.Abs(a.Z-b.Z) < eps
}

func TestSourceWorldPosition_IdentityScalesByBlockSize(t *testing.T) {
	got := SourceWorldPosition(Vec3i{X: 1, Y: 2, Z: -3}, LargeBlockSize, Identity(), Vec3{})
	want := Vec3{X: 2.5, Y: 5, Z: -7.5}
	if !near(got, want) {
		t.Fatalf("pos=%+v want %+v", got, want)
	}
}

func TestSourceWorldPosition_IgnoresMatrixTranslation(t *testing.T) {
	world := RotationY(math.Pi / 2).Mul(Translation(Vec3{X: 100, Y: 100, Z: 100}))
	anchor := Vec3{X: 10, Y: 0, Z: 0}
	got := SourceWorldPosition(Vec3i{X: 1}, LargeBlockSize, world, anchor)
	// +X rotated a quarter turn about Y lands on -Z.
	want := Vec3{X: 10, Y: 0, Z: -2.5}
	if !near(got, want) {
		t.Fatalf("pos=%+v want %+v", got, want)
	}
}

func TestRotations_AreOrthonormal(t *testing.T) {
	cases := []Mat4{RotationX(0.3), RotationY(-1.2), RotationZ(2.9), World(Vec3{}, Vec3{X: 1}, Vec3{Y: 1})}
	for i, m := range cases {
		v := Vec3{X: 1, Y: -2, Z: 0.5}
		if got := m.TransformVec(v).Len(); math.Abs(got-v.Len()) > 1e-9 {
			t.Fatalf("case %d: length %v want %v", i, got, v.Len())
		}
	}
}

func TestWorld_ForwardMapsToMinusZ(t *testing.T) {
	m := World(Vec3{X: 5}, Vec3{X: 1}, Vec3{Y: 1})
	got := m.Orientation().TransformVec(Vec3{Z: -1})
	if !near(got, Vec3{X: 1}) {
		t.Fatalf("forward=%+v want +X", got)
	}
	if p := m.TransformVec(Vec3{}); !near(p, Vec3{X: 5}) {
		t.Fatalf("origin=%+v want translation", p)
	}
}

func TestDistance(t *testing.T) {
	if d := Distance(Vec3{}, Vec3{X: 3, Y: 4}); d != 5 {
		t.Fatalf("distance=%v want 5", d)
	}
}
