package mathx

import "testing"

func TestHash3_Deterministic(t *testing.T) {
	if Hash3(7, 1, 2, 3) != Hash3(7, 1, 2, 3) {
		t.Fatalf("hash not deterministic")
	}
	if Hash3(7, 1, 2, 3) == Hash3(8, 1, 2, 3) {
		t.Fatalf("seed should change the hash")
	}
}

func TestUnit_Range(t *testing.T) {
	for i := uint64(0); i < 1000; i++ {
		u := Unit(Hash3(1, i, 0, 0))
		if u < 0 || u >= 1 {
			t.Fatalf("Unit=%v out of [0,1)", u)
		}
	}
	if Unit(^uint64(0)) >= 1 {
		t.Fatalf("Unit(max) must stay below 1")
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ v, want float64 }{{-1, 0}, {0.5, 0.5}, {3, 1}}
	for _, c := range cases {
		if got := Clamp(c.v, 0, 1); got != c.want {
			t.Fatalf("Clamp(%v)=%v want %v", c.v, got, c.want)
		}
	}
}
