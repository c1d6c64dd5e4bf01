package worldgen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/tuning"
)

func defaultWorld(t *testing.T) *World {
	t.Helper()
	tu, err := tuning.Load("")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	tu.World.WidthTiles = 3
	tu.World.DepthTiles = 2
	w, err := Build(tu, catalogs.Defaults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return w
}

func TestBuild_Defaults(t *testing.T) {
	w := defaultWorld(t)
	if w.Layout.TileCount() != 6 {
		t.Fatalf("tiles=%d", w.Layout.TileCount())
	}
	water, col, ok := w.Config.WaterCategory()
	if !ok || water.Name != "water" || col != water.Color {
		t.Fatalf("water=%+v %v %v", water, col, ok)
	}
	r, err := w.Generate(tiler.Coord{X: 2, Z: 1})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if r.Width != 11 || r.Depth != 11 {
		t.Fatalf("grid %dx%d", r.Width, r.Depth)
	}
	if _, err := w.Generate(tiler.Coord{X: 3, Z: 0}); !errors.Is(err, tiler.ErrOutOfBounds) {
		t.Fatalf("err=%v", err)
	}
}

func TestBuild_WaterColorOverride(t *testing.T) {
	tu := tuning.Defaults()
	tu.Normalize()
	tu.WaterColor = "#102030"
	w, err := Build(tu, catalogs.Defaults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	_, col, _ := w.Config.WaterCategory()
	if col.R != 0x10 || col.G != 0x20 || col.B != 0x30 {
		t.Fatalf("water color=%v", col)
	}
}

func TestBuild_SurfacesConfigErrors(t *testing.T) {
	tu := tuning.Defaults()
	tu.Normalize()
	tu.WaterCategory = "lava"
	_, err := Build(tu, catalogs.Defaults())
	var ce *tile.ConfigError
	if !errors.As(err, &ce) || ce.Field != "water_category" {
		t.Fatalf("err=%v", err)
	}

	tu = tuning.Defaults()
	tu.Normalize()
	tu.Source = "value"
	if _, err := Build(tu, catalogs.Defaults()); err == nil || !strings.Contains(err.Error(), "noise source") {
		t.Fatalf("err=%v", err)
	}
	if _, err := Build(tuning.Defaults(), nil); err == nil {
		t.Fatalf("nil catalogs accepted")
	}
}

func TestWorld_JobCoversWorld(t *testing.T) {
	w := defaultWorld(t)
	n := 0
	err := tiler.Run(context.Background(), w.Job(nil, 2), func(tl tiler.Tile) error {
		n++
		direct, err := w.Generate(tl.Coord)
		if err != nil {
			return err
		}
		if direct.Digest() != tl.Result.Digest() {
			t.Fatalf("tile %s differs from direct generation", tl.Coord)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 6 {
		t.Fatalf("emitted %d tiles", n)
	}
}
