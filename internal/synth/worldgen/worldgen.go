// Package worldgen assembles the immutable generation inputs of a world from
// its tuning file and catalogs.
package worldgen

import (
	"fmt"

	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/noise"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/tuning"
)

// World is everything a host needs to generate tiles. It is read-only and
// safe to share between goroutines.
type World struct {
	Tuning   tuning.Tuning
	Catalogs *catalogs.Catalogs
	Config   *tile.Config
	Layout   tiler.Layout

	SampleWidth int
	SampleDepth int
}

func Build(tu tuning.Tuning, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("worldgen: nil catalogs")
	}
	if err := tu.Validate(); err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}
	kind, err := noise.ParseKind(tu.Source)
	if err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}
	src, err := noise.NewSource(kind, tu.Seed)
	if err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}
	heightCurve, heatCurve, moistureCurve, err := tu.BuildCurves()
	if err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}

	opts := tile.Options{
		Source:               src,
		Scale:                tu.LevelScale,
		HeightMultiplier:     tu.HeightMultiplier,
		TileWidth:            tu.Tile.Width,
		TileDepth:            tu.Tile.Depth,
		HeightWaves:          tu.Waves.Height,
		HeatWaves:            tu.Waves.Heat,
		MoistureWaves:        tu.Waves.Moisture,
		HeightTypes:          cats.HeightTypes.Categories,
		HeatTypes:            cats.HeatTypes.Categories,
		MoistureTypes:        cats.MoistureTypes.Categories,
		Biomes:               cats.Biomes.Rows,
		HeightCurve:          heightCurve,
		HeatCurve:            heatCurve,
		MoistureCurve:        moistureCurve,
		LatitudeCenterZ:      tu.Latitude.CenterZ,
		LatitudeMaxDistanceZ: tu.Latitude.MaxDistanceZ,
		WaterCategory:        tu.WaterCategory,
	}
	if tu.WaterColor != "" {
		c, err := classify.ParseColor(tu.WaterColor)
		if err != nil {
			return nil, fmt.Errorf("worldgen: water_color: %w", err)
		}
		opts.WaterColor = &c
	}
	cfg, err := tile.NewConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}

	layout := tiler.Layout{
		OriginX:      tu.World.OriginX,
		OriginZ:      tu.World.OriginZ,
		TileWidth:    tu.Tile.Width,
		TileDepth:    tu.Tile.Depth,
		WidthInTiles: tu.World.WidthTiles,
		DepthInTiles: tu.World.DepthTiles,
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("worldgen: %w", err)
	}
	return &World{
		Tuning:      tu,
		Catalogs:    cats,
		Config:      cfg,
		Layout:      layout,
		SampleWidth: tu.Tile.SampleWidth,
		SampleDepth: tu.Tile.SampleDepth,
	}, nil
}

// Job prepares a tiler job over coords (nil means the whole world).
func (w *World) Job(coords []tiler.Coord, workers int) tiler.Job {
	return tiler.Job{
		Config:      w.Config,
		Layout:      w.Layout,
		SampleWidth: w.SampleWidth,
		SampleDepth: w.SampleDepth,
		Workers:     workers,
		Coords:      coords,
	}
}

// Generate builds a single tile synchronously.
func (w *World) Generate(c tiler.Coord) (*tile.Result, error) {
	if !w.Layout.Contains(c) {
		return nil, fmt.Errorf("%w: %s", tiler.ErrOutOfBounds, c)
	}
	return tile.Generate(w.Config, w.Layout.Position(c), w.SampleWidth, w.SampleDepth)
}
