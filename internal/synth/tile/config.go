package tile

import (
	"errors"
	"fmt"
	"image/color"
	"strings"

	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/curve"
	"terrainsynth.ai/internal/synth/mathx"
	"terrainsynth.ai/internal/synth/noise"
)

var ErrInvalidConfig = errors.New("invalid tile config")

// ConfigError names the offending setting.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("tile config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

func configErr(field, format string, args ...any) error {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Options is the mutable input to NewConfig.
type Options struct {
	Source noise.Source

	// Scale divides sample coordinates before noise lookup.
	Scale float64
	// HeightMultiplier scales the height curve for vertex displacement.
	HeightMultiplier float64

	// Physical tile size in world units.
	TileWidth float64
	TileDepth float64

	HeightWaves   []noise.Wave
	HeatWaves     []noise.Wave
	MoistureWaves []noise.Wave

	HeightTypes   []classify.Category
	HeatTypes     []classify.Category
	MoistureTypes []classify.Category

	// Biomes rows are moisture categories, columns heat categories, both in
	// ascending threshold order.
	Biomes [][]classify.Biome

	HeightCurve   curve.Curve
	HeatCurve     curve.Curve
	MoistureCurve curve.Curve

	LatitudeCenterZ      float64
	LatitudeMaxDistanceZ float64

	// WaterCategory names the height category rendered with WaterColor instead
	// of a biome. Empty disables water handling.
	WaterCategory string
	// WaterColor defaults to the water height category's own color.
	WaterColor *color.RGBA
}

// Config is the validated, read-only world configuration shared by all tiles.
type Config struct {
	source noise.Source

	scale            float64
	heightMultiplier float64
	tileWidth        float64
	tileDepth        float64

	heightWaves   []noise.Wave
	heatWaves     []noise.Wave
	moistureWaves []noise.Wave

	heightTypes   classify.Categories
	heatTypes     classify.Categories
	moistureTypes classify.Categories
	biomes        *classify.BiomeTable

	heightCurve   curve.Curve
	heatCurve     curve.Curve
	moistureCurve curve.Curve

	latCenterZ  float64
	latMaxDistZ float64

	waterRank  int // -1 when disabled
	waterColor color.RGBA
}

func NewConfig(o Options) (*Config, error) {
	if o.Source == nil {
		return nil, configErr("source", "must be set")
	}
	if !(o.Scale > 0) || !mathx.Finite(o.Scale) {
		return nil, configErr("scale", "must be > 0, got %v", o.Scale)
	}
	if o.HeightMultiplier < 0 || !mathx.Finite(o.HeightMultiplier) {
		return nil, configErr("height_multiplier", "must be >= 0, got %v", o.HeightMultiplier)
	}
	if !(o.TileWidth > 0) || !mathx.Finite(o.TileWidth) {
		return nil, configErr("tile_width", "must be > 0, got %v", o.TileWidth)
	}
	if !(o.TileDepth > 0) || !mathx.Finite(o.TileDepth) {
		return nil, configErr("tile_depth", "must be > 0, got %v", o.TileDepth)
	}
	if o.LatitudeMaxDistanceZ == 0 || !mathx.Finite(o.LatitudeMaxDistanceZ) {
		return nil, configErr("latitude_max_distance_z", "must be finite and non-zero, got %v", o.LatitudeMaxDistanceZ)
	}
	if !mathx.Finite(o.LatitudeCenterZ) {
		return nil, configErr("latitude_center_z", "must be finite")
	}

	c := &Config{
		source:           o.Source,
		scale:            o.Scale,
		heightMultiplier: o.HeightMultiplier,
		tileWidth:        o.TileWidth,
		tileDepth:        o.TileDepth,
		latCenterZ:       o.LatitudeCenterZ,
		latMaxDistZ:      o.LatitudeMaxDistanceZ,
		heightCurve:      o.HeightCurve,
		heatCurve:        o.HeatCurve,
		moistureCurve:    o.MoistureCurve,
		waterRank:        -1,
	}

	var err error
	if c.heightWaves, err = copyWaves("height_waves", o.HeightWaves); err != nil {
		return nil, err
	}
	if c.heatWaves, err = copyWaves("heat_waves", o.HeatWaves); err != nil {
		return nil, err
	}
	if c.moistureWaves, err = copyWaves("moisture_waves", o.MoistureWaves); err != nil {
		return nil, err
	}

	if c.heightTypes, err = classify.NewCategories(o.HeightTypes); err != nil {
		return nil, configErr("height_types", "%v", err)
	}
	if c.heatTypes, err = classify.NewCategories(o.HeatTypes); err != nil {
		return nil, configErr("heat_types", "%v", err)
	}
	if c.moistureTypes, err = classify.NewCategories(o.MoistureTypes); err != nil {
		return nil, configErr("moisture_types", "%v", err)
	}
	if c.biomes, err = classify.NewBiomeTable(o.Biomes, len(c.moistureTypes), len(c.heatTypes)); err != nil {
		return nil, configErr("biomes", "%v", err)
	}

	if c.heightCurve == nil {
		return nil, configErr("height_curve", "must be set")
	}
	if c.heatCurve == nil {
		return nil, configErr("heat_curve", "must be set")
	}
	if c.moistureCurve == nil {
		return nil, configErr("moisture_curve", "must be set")
	}

	if name := strings.TrimSpace(o.WaterCategory); name != "" {
		rank, ok := c.heightTypes.Index(name)
		if !ok {
			return nil, configErr("water_category", "no height category named %q", name)
		}
		c.waterRank = rank
		c.waterColor = c.heightTypes[rank].Color
		if o.WaterColor != nil {
			c.waterColor = *o.WaterColor
		}
	}
	return c, nil
}

func copyWaves(field string, ws []noise.Wave) ([]noise.Wave, error) {
	if len(ws) == 0 {
		return nil, configErr(field, "must not be empty")
	}
	for i, w := range ws {
		if err := w.Validate(); err != nil {
			return nil, configErr(field, "wave %d: %v", i, err)
		}
	}
	return append([]noise.Wave(nil), ws...), nil
}

func (c *Config) Source() noise.Source               { return c.source }
func (c *Config) Scale() float64                     { return c.scale }
func (c *Config) TileWidth() float64                 { return c.tileWidth }
func (c *Config) TileDepth() float64                 { return c.tileDepth }
func (c *Config) HeightTypes() classify.Categories   { return append(classify.Categories(nil), c.heightTypes...) }
func (c *Config) HeatTypes() classify.Categories     { return append(classify.Categories(nil), c.heatTypes...) }
func (c *Config) MoistureTypes() classify.Categories { return append(classify.Categories(nil), c.moistureTypes...) }
func (c *Config) Biomes() *classify.BiomeTable       { return c.biomes }
func (c *Config) LatitudeCenterZ() float64           { return c.latCenterZ }
func (c *Config) LatitudeMaxDistanceZ() float64      { return c.latMaxDistZ }
func (c *Config) HeightWaves() []noise.Wave          { return append([]noise.Wave(nil), c.heightWaves...) }
func (c *Config) HeatWaves() []noise.Wave            { return append([]noise.Wave(nil), c.heatWaves...) }
func (c *Config) MoistureWaves() []noise.Wave        { return append([]noise.Wave(nil), c.moistureWaves...) }

// WaterCategory returns the water height category, if configured.
func (c *Config) WaterCategory() (classify.Category, color.RGBA, bool) {
	if c.waterRank < 0 {
		return classify.Category{}, color.RGBA{}, false
	}
	return c.heightTypes[c.waterRank], c.waterColor, true
}

// Displace converts a height sample into a vertex elevation.
func (c *Config) Displace(h float64) float64 {
	return c.heightCurve.Evaluate(h) * c.heightMultiplier
}
