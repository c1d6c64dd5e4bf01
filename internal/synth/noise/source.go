package noise

import (
	"fmt"
	"strings"

	perlin "github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"terrainsynth.ai/internal/synth/mathx"
)

// Source is a deterministic, continuous 2D noise primitive returning values in [0,1].
// Implementations must be safe for concurrent use.
type Source interface {
	Noise2D(x, z float64) float64
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(x, z float64) float64

func (f SourceFunc) Noise2D(x, z float64) float64 { return f(x, z) }

// Constant returns the same value everywhere.
type Constant float64

func (c Constant) Noise2D(_, _ float64) float64 { return float64(c) }

type Kind string

const (
	KindPerlin  Kind = "perlin"
	KindSimplex Kind = "simplex"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", KindPerlin:
		return KindPerlin, nil
	case KindSimplex:
		return KindSimplex, nil
	default:
		return "", fmt.Errorf("unknown noise source %q", s)
	}
}

func NewSource(kind Kind, seed int64) (Source, error) {
	switch kind {
	case KindPerlin, "":
		return NewPerlin(seed), nil
	case KindSimplex:
		return NewSimplex(seed), nil
	default:
		return nil, fmt.Errorf("unknown noise source %q", kind)
	}
}

// Perlin is single-octave gradient noise. Octaves are layered by GenerateLayered,
// not by the underlying generator.
type Perlin struct {
	p *perlin.Perlin
}

func NewPerlin(seed int64) *Perlin {
	return &Perlin{p: perlin.NewPerlin(2, 2, 1, seed)}
}

// Noise2D maps the raw [-1,1] gradient noise onto [0,1].
func (n *Perlin) Noise2D(x, z float64) float64 {
	return mathx.Clamp01((n.p.Noise2D(x, z) + 1) / 2)
}

type Simplex struct {
	n opensimplex.Noise
}

func NewSimplex(seed int64) *Simplex {
	return &Simplex{n: opensimplex.NewNormalized(seed)}
}

func (n *Simplex) Noise2D(x, z float64) float64 {
	return mathx.Clamp01(n.n.Eval2(x, z))
}
