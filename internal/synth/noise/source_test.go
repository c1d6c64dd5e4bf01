package noise

import (
	"math"
	"testing"
)

func TestSourcesDeterministic(t *testing.T) {
	for _, kind := range []Kind{KindPerlin, KindSimplex} {
		a, err := NewSource(kind, 12345)
		if err != nil {
			t.Fatalf("NewSource(%s): %v", kind, err)
		}
		b, _ := NewSource(kind, 12345)
		for i := 0; i < 100; i++ {
			x := float64(i)*0.1 - 3
			z := float64(i)*0.2 + 7
			if a.Noise2D(x, z) != b.Noise2D(x, z) {
				t.Fatalf("%s not deterministic at (%f, %f)", kind, x, z)
			}
		}
	}
}

func TestSourcesUnitRange(t *testing.T) {
	for _, kind := range []Kind{KindPerlin, KindSimplex} {
		src, _ := NewSource(kind, 42)
		for i := 0; i < 10000; i++ {
			x := float64(i)*0.37 - 500
			z := float64(i)*0.53 - 500
			v := src.Noise2D(x, z)
			if v < 0 || v > 1 {
				t.Fatalf("%s Noise2D(%f, %f) = %f, out of [0,1]", kind, x, z, v)
			}
		}
	}
}

func TestSourcesContinuous(t *testing.T) {
	for _, kind := range []Kind{KindPerlin, KindSimplex} {
		src, _ := NewSource(kind, 456)
		prev := src.Noise2D(0, 0.3)
		step := 0.001
		for i := 1; i < 2000; i++ {
			curr := src.Noise2D(float64(i)*step, 0.3)
			if diff := math.Abs(curr - prev); diff > 0.05 {
				t.Fatalf("%s changed too rapidly at step %d: diff=%f", kind, i, diff)
			}
			prev = curr
		}
	}
}

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{"": KindPerlin, "Perlin": KindPerlin, " simplex ": KindSimplex}
	for in, want := range cases {
		got, err := ParseKind(in)
		if err != nil || got != want {
			t.Fatalf("ParseKind(%q)=%q,%v want %q", in, got, err, want)
		}
	}
	if _, err := ParseKind("value"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
	if _, err := NewSource("value", 1); err == nil {
		t.Fatalf("expected error for unknown source kind")
	}
}
