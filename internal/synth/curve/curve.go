// Package curve evaluates user-authored response curves used to couple the
// height field into heat, moisture and vertex elevation.
package curve

import (
	"fmt"
	"math"
	"sort"

	"terrainsynth.ai/internal/synth/mathx"
)

type Curve interface {
	Evaluate(t float64) float64
}

// Func adapts a plain function to Curve.
type Func func(t float64) float64

func (f Func) Evaluate(t float64) float64 { return f(t) }

var (
	Identity Curve = Func(func(t float64) float64 { return t })
	Zero     Curve = Func(func(float64) float64 { return 0 })
)

// Key is one keyframe. Tangents are slopes (dv/dt) entering and leaving the key.
type Key struct {
	Time       float64 `json:"t" yaml:"t"`
	Value      float64 `json:"v" yaml:"v"`
	InTangent  float64 `json:"in,omitempty" yaml:"in,omitempty"`
	OutTangent float64 `json:"out,omitempty" yaml:"out,omitempty"`
}

// Keyframes is a piecewise cubic Hermite curve. Outside the key range the
// curve holds the first/last value.
type Keyframes struct {
	keys []Key
}

func New(keys []Key) (*Keyframes, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("curve needs at least one key")
	}
	ks := make([]Key, len(keys))
	copy(ks, keys)
	for i, k := range ks {
		if !mathx.Finite(k.Time) || !mathx.Finite(k.Value) || !mathx.Finite(k.InTangent) || !mathx.Finite(k.OutTangent) {
			return nil, fmt.Errorf("key %d is not finite", i)
		}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].Time < ks[j].Time })
	for i := 1; i < len(ks); i++ {
		if ks[i].Time == ks[i-1].Time {
			return nil, fmt.Errorf("duplicate key time %v", ks[i].Time)
		}
	}
	return &Keyframes{keys: ks}, nil
}

// Linear builds a curve through the given (time, value) points with straight segments.
func Linear(points ...[2]float64) (*Keyframes, error) {
	keys := make([]Key, len(points))
	for i, p := range points {
		keys[i] = Key{Time: p[0], Value: p[1]}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].Time < keys[j].Time })
	for i := 0; i+1 < len(keys); i++ {
		dt := keys[i+1].Time - keys[i].Time
		if dt == 0 {
			continue
		}
		slope := (keys[i+1].Value - keys[i].Value) / dt
		keys[i].OutTangent = slope
		keys[i+1].InTangent = slope
	}
	return New(keys)
}

func (c *Keyframes) Keys() []Key {
	out := make([]Key, len(c.keys))
	copy(out, c.keys)
	return out
}

// Evaluate returns NaN unchanged.
func (c *Keyframes) Evaluate(t float64) float64 {
	if math.IsNaN(t) {
		return t
	}
	ks := c.keys
	if t <= ks[0].Time {
		return ks[0].Value
	}
	last := len(ks) - 1
	if t >= ks[last].Time {
		return ks[last].Value
	}
	i := sort.Search(len(ks), func(i int) bool { return ks[i].Time > t }) - 1
	k0, k1 := ks[i], ks[i+1]

	dt := k1.Time - k0.Time
	s := (t - k0.Time) / dt
	s2 := s * s
	s3 := s2 * s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2
	return h00*k0.Value + h10*dt*k0.OutTangent + h01*k1.Value + h11*dt*k1.InTangent
}
