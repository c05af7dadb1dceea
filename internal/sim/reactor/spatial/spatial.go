// Package spatial places grid-local block coordinates in world space.
//
// Matrices use the row-vector convention: a point transforms as v' = v·M and
// the translation lives in the fourth row.
package spatial

import "math"

// LargeBlockSize is the edge length of one grid cell on a large structure.
const LargeBlockSize = 2.5

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Vec3i struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func (v Vec3i) Float() Vec3 { return Vec3{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)} }

func (a Vec3) Add(b Vec3) Vec3      { return Vec3{a.X + b.X, a.Y + b.Y, a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3      { return Vec3{a.X - b.X, a.Y - b.Y, a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 { return Vec3{a.X * s, a.Y * s, a.Z * s} }
func (a Vec3) Dot(b Vec3) float64   { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }
func (a Vec3) Len() float64         { return math.Sqrt(a.Dot(a)) }
func Distance(a, b Vec3) float64    { return a.Sub(b).Len() }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// Mat4 is a row-major 4x4 matrix.
type Mat4 [4][4]float64

func Identity() Mat4 {
	return Mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func RotationX(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	m := Identity()
	m[1][1], m[1][2] = c, s
	m[2][1], m[2][2] = -s, c
	return m
}

func RotationY(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	m := Identity()
	m[0][0], m[0][2] = c, -s
	m[2][0], m[2][2] = s, c
	return m
}

func RotationZ(rad float64) Mat4 {
	c, s := math.Cos(rad), math.Sin(rad)
	m := Identity()
	m[0][0], m[0][1] = c, s
	m[1][0], m[1][1] = -s, c
	return m
}

func Translation(v Vec3) Mat4 {
	m := Identity()
	m[3][0], m[3][1], m[3][2] = v.X, v.Y, v.Z
	return m
}

// World builds a world matrix from a position and a forward/up basis.
// Forward maps to -Z, matching the host's right-handed convention.
func World(pos, forward, up Vec3) Mat4 {
	z := forward.Scale(-1).Normalize()
	x := up.Cross(z).Normalize()
	y := z.Cross(x)
	return Mat4{
		{x.X, x.Y, x.Z, 0},
		{y.X, y.Y, y.Z, 0},
		{z.X, z.Y, z.Z, 0},
		{pos.X, pos.Y, pos.Z, 1},
	}
}

func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[i][k] * n[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// Orientation returns the rotational part of m with the translation dropped.
func (m Mat4) Orientation() Mat4 {
	o := m
	o[3][0], o[3][1], o[3][2] = 0, 0, 0
	o[0][3], o[1][3], o[2][3] = 0, 0, 0
	o[3][3] = 1
	return o
}

// TransformVec applies m to the point v, translation included.
func (m Mat4) TransformVec(v Vec3) Vec3 {
	return Vec3{
		X: v.X*m[0][0] + v.Y*m[1][0] + v.Z*m[2][0] + m[3][0],
		Y: v.X*m[0][1] + v.Y*m[1][1] + v.Z*m[2][1] + m[3][1],
		Z: v.X*m[0][2] + v.Y*m[1][2] + v.Z*m[2][2] + m[3][2],
	}
}

// SourceWorldPosition locates a block in world space. The grid minimum is
// scaled to length units, rotated by the orientation of world only, and then
// offset by the structure anchor.
func SourceWorldPosition(min Vec3i, blockSize float64, world Mat4, anchor Vec3) Vec3 {
	local := min.Float().Scale(blockSize)
	return world.Orientation().TransformVec(local).Add(anchor)
}
