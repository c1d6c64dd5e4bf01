package tile

import (
	"fmt"
	"image/color"

	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/noise"
)

// Placement is the tile's world-space position (its origin corner).
type Placement struct {
	X float64
	Z float64
}

// Generate computes the height, heat and moisture fields of one tile, classifies
// them and derives the biome colors. It is pure: the same inputs always produce
// the same Result, and cfg is only read.
func Generate(cfg *Config, at Placement, sampleWidth, sampleDepth int) (*Result, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if sampleWidth <= 0 || sampleDepth <= 0 {
		return nil, fmt.Errorf("%w: sample grid %dx%d", noise.ErrInvalidParams, sampleWidth, sampleDepth)
	}

	// Sampling at the negated world position keeps neighbouring tiles on one
	// continuous noise plane.
	offsetX := -at.X
	offsetZ := -at.Z

	heightMap, err := noise.GenerateLayered(cfg.source, sampleDepth, sampleWidth, cfg.scale, offsetX, offsetZ, cfg.heightWaves)
	if err != nil {
		return nil, fmt.Errorf("height: %w", err)
	}

	// The latitude gradient runs in vertex units, not world units.
	spacing := cfg.tileDepth / float64(sampleDepth)
	vertexOffsetZ := at.Z / spacing
	uniformHeat, err := noise.GenerateUniformGradient(sampleDepth, sampleWidth, cfg.latCenterZ, cfg.latMaxDistZ, vertexOffsetZ)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	noiseHeat, err := noise.GenerateLayered(cfg.source, sampleDepth, sampleWidth, cfg.scale, offsetX, offsetZ, cfg.heatWaves)
	if err != nil {
		return nil, fmt.Errorf("heat: %w", err)
	}
	moistureRaw, err := noise.GenerateLayered(cfg.source, sampleDepth, sampleWidth, cfg.scale, offsetX, offsetZ, cfg.moistureWaves)
	if err != nil {
		return nil, fmt.Errorf("moisture: %w", err)
	}

	heatMap := noise.NewScalarField(sampleDepth, sampleWidth)
	moistureMap := noise.NewScalarField(sampleDepth, sampleWidth)
	for i, h := range heightMap.Values {
		// Higher ground reads colder and drier.
		heatMap.Values[i] = uniformHeat.Values[i]*noiseHeat.Values[i] + cfg.heatCurve.Evaluate(h*h)
		moistureMap.Values[i] = moistureRaw.Values[i] - cfg.moistureCurve.Evaluate(h)*h
	}

	n := sampleWidth * sampleDepth
	r := &Result{
		Width:          sampleWidth,
		Depth:          sampleDepth,
		HeightMap:      heightMap,
		HeatMap:        heatMap,
		MoistureMap:    moistureMap,
		HeightRanks:    make([]int, n),
		HeatRanks:      make([]int, n),
		MoistureRanks:  make([]int, n),
		HeightColors:   make(ColorGrid, n),
		HeatColors:     make(ColorGrid, n),
		MoistureColors: make(ColorGrid, n),
		BiomeColors:    make(ColorGrid, n),
		Biomes:         make([]string, n),
	}
	classifyField(heightMap, cfg.heightTypes, r.HeightRanks, r.HeightColors)
	classifyField(heatMap, cfg.heatTypes, r.HeatRanks, r.HeatColors)
	classifyField(moistureMap, cfg.moistureTypes, r.MoistureRanks, r.MoistureColors)
	deriveBiomes(cfg, r)
	return r, nil
}

func classifyField(f *noise.ScalarField, cats classify.Categories, ranks []int, colors ColorGrid) {
	for i, v := range f.Values {
		c := classify.Classify(v, cats)
		ranks[i] = c.Rank
		colors[i] = c.Color
	}
}

func deriveBiomes(cfg *Config, r *Result) {
	for i := range r.BiomeColors {
		b, c := cfg.BiomeColor(cfg.heightTypes[r.HeightRanks[i]], cfg.heatTypes[r.HeatRanks[i]], cfg.moistureTypes[r.MoistureRanks[i]])
		r.BiomeColors[i] = c
		r.Biomes[i] = b.Name
	}
}

// BiomeColor resolves one cell from its classified categories. Water cells get
// the water color and no biome whatever their heat and moisture.
func (c *Config) BiomeColor(height, heat, moisture classify.Category) (classify.Biome, color.RGBA) {
	if c.waterRank >= 0 && height.Rank == c.waterRank {
		return classify.Biome{}, c.waterColor
	}
	b := c.biomes.At(moisture.Rank, heat.Rank)
	return b, b.Color
}
