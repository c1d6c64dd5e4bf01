package noise

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidParams = errors.New("invalid noise parameters")

// Wave is one octave of noise.
type Wave struct {
	Amplitude float64 `json:"amplitude" yaml:"amplitude"`
	Frequency float64 `json:"frequency" yaml:"frequency"`
	Seed      float64 `json:"seed" yaml:"seed"`
}

func (w Wave) Validate() error {
	if !(w.Amplitude > 0) || math.IsInf(w.Amplitude, 0) {
		return fmt.Errorf("amplitude must be > 0, got %v", w.Amplitude)
	}
	if !(w.Frequency > 0) || math.IsInf(w.Frequency, 0) {
		return fmt.Errorf("frequency must be > 0, got %v", w.Frequency)
	}
	if math.IsNaN(w.Seed) || math.IsInf(w.Seed, 0) {
		return fmt.Errorf("seed must be finite, got %v", w.Seed)
	}
	return nil
}

// ScalarField is a dense Depth x Width grid stored row-major.
type ScalarField struct {
	Width  int
	Depth  int
	Values []float64 // len = Width*Depth
}

func NewScalarField(depth, width int) *ScalarField {
	return &ScalarField{
		Width:  width,
		Depth:  depth,
		Values: make([]float64, width*depth),
	}
}

func (f *ScalarField) index(z, x int) int {
	return x + z*f.Width
}

func (f *ScalarField) At(z, x int) float64 {
	return f.Values[f.index(z, x)]
}

func (f *ScalarField) Set(z, x int, v float64) {
	f.Values[f.index(z, x)] = v
}

// Column copies column x top to bottom.
func (f *ScalarField) Column(x int) []float64 {
	out := make([]float64, f.Depth)
	for z := 0; z < f.Depth; z++ {
		out[z] = f.At(z, x)
	}
	return out
}

// Row copies row z left to right.
func (f *ScalarField) Row(z int) []float64 {
	out := make([]float64, f.Width)
	copy(out, f.Values[f.index(z, 0):f.index(z, 0)+f.Width])
	return out
}

// GenerateLayered sums the waves of src over the grid, sampling cell (z, x) at
// ((x+offsetX)/scale, (z+offsetZ)/scale), and normalizes by the total amplitude.
func GenerateLayered(src Source, depth, width int, scale, offsetX, offsetZ float64, waves []Wave) (*ScalarField, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: nil source", ErrInvalidParams)
	}
	if depth <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidParams, depth, width)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return nil, fmt.Errorf("%w: scale must be > 0, got %v", ErrInvalidParams, scale)
	}
	if len(waves) == 0 {
		return nil, fmt.Errorf("%w: no waves", ErrInvalidParams)
	}
	var norm float64
	for i, w := range waves {
		if err := w.Validate(); err != nil {
			return nil, fmt.Errorf("%w: wave %d: %v", ErrInvalidParams, i, err)
		}
		norm += w.Amplitude
	}

	out := NewScalarField(depth, width)
	for z := 0; z < depth; z++ {
		sampleZ := (float64(z) + offsetZ) / scale
		for x := 0; x < width; x++ {
			sampleX := (float64(x) + offsetX) / scale

			var sum float64
			for _, w := range waves {
				sum += w.Amplitude * src.Noise2D(sampleX*w.Frequency+w.Seed, sampleZ*w.Frequency+w.Seed)
			}
			out.Set(z, x, sum/norm)
		}
	}
	return out, nil
}

// GenerateUniformGradient builds a latitude gradient: row z holds
// |z+offsetZ-centerZ| / maxDistanceZ and is written to row depth-z-1.
func GenerateUniformGradient(depth, width int, centerZ, maxDistanceZ, offsetZ float64) (*ScalarField, error) {
	if depth <= 0 || width <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d", ErrInvalidParams, depth, width)
	}
	if maxDistanceZ == 0 || math.IsNaN(maxDistanceZ) || math.IsInf(maxDistanceZ, 0) {
		return nil, fmt.Errorf("%w: max distance must be finite and non-zero, got %v", ErrInvalidParams, maxDistanceZ)
	}

	out := NewScalarField(depth, width)
	for z := 0; z < depth; z++ {
		v := math.Abs((float64(z)+offsetZ)-centerZ) / maxDistanceZ
		row := depth - z - 1
		for x := 0; x < width; x++ {
			out.Set(row, x, v)
		}
	}
	return out, nil
}
