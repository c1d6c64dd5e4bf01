package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	persistlog "terrainsynth.ai/internal/persistence/log"
	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/tuning"
	"terrainsynth.ai/internal/synth/worldgen"
)

func smallWorld(t *testing.T) *worldgen.World {
	t.Helper()
	tu, err := tuning.Load("")
	if err != nil {
		t.Fatalf("tuning: %v", err)
	}
	tu.World.WidthTiles = 3
	tu.World.DepthTiles = 2
	w, err := worldgen.Build(tu, catalogs.Defaults())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return w
}

func generateAll(t *testing.T, w *worldgen.World) map[tiler.Coord]*tile.Result {
	t.Helper()
	out := map[tiler.Coord]*tile.Result{}
	err := tiler.Run(context.Background(), w.Job(nil, 3), func(tl tiler.Tile) error {
		out[tl.Coord] = tl.Result
		return nil
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return out
}

func TestVerify_CleanWorld(t *testing.T) {
	w := smallWorld(t)
	got := generateAll(t, w)
	if p := verifyDeterminism(w, got); len(p) != 0 {
		t.Fatalf("determinism problems: %v", p)
	}
	if !w.Tuning.Seamless() {
		t.Fatalf("default tuning should be seamless")
	}
	if p := verifySeams(w, got); len(p) != 0 {
		t.Fatalf("seam problems: %v", p)
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	w := smallWorld(t)
	got := generateAll(t, w)

	r := got[tiler.Coord{X: 1, Z: 1}]
	r.HeightMap.Set(0, 0, r.HeightMap.At(0, 0)+0.25)

	if p := verifyDeterminism(w, got); len(p) != 1 || !strings.Contains(p[0], "(1,1)") {
		t.Fatalf("determinism problems: %v", p)
	}
	// (1,1) column 0 is the seam with (2,1); row 0 is the seam with (1,2),
	// which lies outside a 2-deep world.
	p := verifySeams(w, got)
	if len(p) != 1 || !strings.HasPrefix(p[0], "height seam (2,1)|(1,1)") {
		t.Fatalf("seam problems: %v", p)
	}

	delete(got, tiler.Coord{X: 0, Z: 0})
	if p := verifyDeterminism(w, got); len(p) != 2 {
		t.Fatalf("expected missing tile to be reported: %v", p)
	}
}

func TestReplayLogs(t *testing.T) {
	w := smallWorld(t)
	dir := t.TempDir()
	l := persistlog.NewTileLogger(dir)
	for _, c := range []tiler.Coord{{X: 0, Z: 0}, {X: 2, Z: 1}} {
		r, err := w.Generate(c)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if err := l.WriteTile(persistlog.TileEntry{Time: time.Now(), RunID: "a", X: c.X, Z: c.Z, Digest: r.Digest()}); err != nil {
			t.Fatalf("WriteTile: %v", err)
		}
	}
	_ = l.WriteTile(persistlog.TileEntry{Time: time.Now(), RunID: "b", X: 1, Z: 0, Digest: "bogus"})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	events := filepath.Join(dir, "events")

	checked, problems, err := replayLogs(w, events, "a")
	if err != nil || checked != 2 || len(problems) != 0 {
		t.Fatalf("run a: checked=%d problems=%v err=%v", checked, problems, err)
	}
	checked, problems, err = replayLogs(w, events, "")
	if err != nil || checked != 3 || len(problems) != 1 || !strings.Contains(problems[0], "(1,0)") {
		t.Fatalf("all runs: checked=%d problems=%v err=%v", checked, problems, err)
	}
	if _, _, err := replayLogs(w, t.TempDir(), ""); err == nil {
		t.Fatalf("expected error for an empty events dir")
	}
}

func TestStitch(t *testing.T) {
	w := smallWorld(t)
	got := generateAll(t, w)
	img := stitch(w, got, tile.ModeBiome)
	if b := img.Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Fatalf("bounds=%v", b)
	}
	// Tile (0,0) sample (0,0) sits at the start of the bottom-right block.
	if img.RGBAAt(20, 10) != got[tiler.Coord{}].BiomeColors[0] {
		t.Fatalf("tile (0,0) misplaced")
	}
}

func TestPrintHistogram(t *testing.T) {
	var buf bytes.Buffer
	printHistogram(&buf, map[string]int{"": 25, "desert": 50, "taiga": 25})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "desert") || !strings.HasPrefix(lines[1], "(water)") {
		t.Fatalf("histogram:\n%s", buf.String())
	}
	if !strings.Contains(lines[0], "50.00%") {
		t.Fatalf("percent missing: %s", lines[0])
	}
}
