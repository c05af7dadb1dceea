package mathx

import "math"

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Hash3 mixes a seed with three integers into a well-distributed 64-bit value.
func Hash3(seed int64, a, b, c uint64) uint64 {
	v := uint64(seed) ^ (a * 0x9e3779b97f4a7c15) ^ (b * 0xc2b2ae3d27d4eb4f) ^ (c * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// Unit maps h to [0,1).
func Unit(h uint64) float64 {
	return float64(h>>11) / (1 << 53)
}

// Angle maps h to [0,2π).
func Angle(h uint64) float64 {
	return Unit(h) * 2 * math.Pi
}

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
