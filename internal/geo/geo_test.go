package geo

import (
	"math"
	"testing"
)

func TestParseBBoxValid(t *testing.T) {
	bb := ParseBBox("21.0,63.0,22.0,64.0")
	if bb == nil {
		t.Fatal("expected a filter")
	}
	if bb.MinLon != 21 || bb.MinLat != 63 || bb.MaxLon != 22 || bb.MaxLat != 64 {
		t.Fatalf("parsed = %+v", bb)
	}
	if !bb.Contains(63.5, 21.5) {
		t.Fatal("interior point must be contained")
	}
}

func TestParseBBoxInvalidMeansNoFilter(t *testing.T) {
	for _, s := range []string{"", "a,b,c", "x,63.0,22.0,64.0", "1,2,3,4,5"} {
		if bb := ParseBBox(s); bb != nil {
			t.Fatalf("ParseBBox(%q) = %+v, want nil (no filter)", s, bb)
		}
	}
}

func TestContainsIsInclusiveOnAllBounds(t *testing.T) {
	bb := ParseBBox("21.0,63.0,22.0,64.0")
	corners := [][2]float64{{63, 21}, {63, 22}, {64, 21}, {64, 22}}
	for _, c := range corners {
		if !bb.Contains(c[0], c[1]) {
			t.Fatalf("corner (%v, %v) must be contained", c[0], c[1])
		}
	}
	if bb.Contains(62.999, 21.5) || bb.Contains(63.5, 22.001) {
		t.Fatal("points outside the bounds must not be contained")
	}
}

func TestHaversineKm(t *testing.T) {
	// Trondheim to Oslo is roughly 392 km.
	d := HaversineKm(63.4305, 10.3951, 59.9139, 10.7522)
	if math.Abs(d-392) > 10 {
		t.Fatalf("distance = %.1f km, want ~392", d)
	}
	if HaversineKm(63, 10, 63, 10) != 0 {
		t.Fatal("zero distance expected for identical points")
	}
}
