package main

import (
	"fmt"
	"math"
	"path/filepath"

	persistlog "terrainsynth.ai/internal/persistence/log"
	"terrainsynth.ai/internal/synth/noise"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/worldgen"
)

const seamTolerance = 1e-9

// verifyDeterminism regenerates every tile sequentially and compares digests
// with the parallel run.
func verifyDeterminism(w *worldgen.World, got map[tiler.Coord]*tile.Result) []string {
	var problems []string
	for _, c := range w.Layout.Coords() {
		r, ok := got[c]
		if !ok {
			problems = append(problems, fmt.Sprintf("tile %s missing", c))
			continue
		}
		again, err := w.Generate(c)
		if err != nil {
			problems = append(problems, fmt.Sprintf("tile %s: %v", c, err))
			continue
		}
		if a, b := r.Digest(), again.Digest(); a != b {
			problems = append(problems, fmt.Sprintf("tile %s digest %s != %s", c, short(a), short(b)))
		}
	}
	return problems
}

// verifySeams checks that each tile's trailing column (row) repeats the
// leading column (row) of its west (north) neighbour. Heat is skipped: its
// latitude band is mirrored inside every tile.
func verifySeams(w *worldgen.World, got map[tiler.Coord]*tile.Result) []string {
	var problems []string
	for _, c := range w.Layout.Coords() {
		r := got[c]
		if r == nil {
			continue
		}
		if west := got[tiler.Coord{X: c.X - 1, Z: c.Z}]; west != nil {
			for name, pair := range fieldPairs(r, west) {
				if z, ok := sameSlices(pair[0].Column(pair[0].Width-1), pair[1].Column(0)); !ok {
					problems = append(problems, fmt.Sprintf("%s seam %s|%s differs at row %d", name, c, tiler.Coord{X: c.X - 1, Z: c.Z}, z))
				}
			}
		}
		if north := got[tiler.Coord{X: c.X, Z: c.Z - 1}]; north != nil {
			for name, pair := range fieldPairs(r, north) {
				if x, ok := sameSlices(pair[0].Row(pair[0].Depth-1), pair[1].Row(0)); !ok {
					problems = append(problems, fmt.Sprintf("%s seam %s|%s differs at column %d", name, c, tiler.Coord{X: c.X, Z: c.Z - 1}, x))
				}
			}
		}
	}
	return problems
}

func fieldPairs(a, b *tile.Result) map[string][2]*noise.ScalarField {
	return map[string][2]*noise.ScalarField{
		"height":   {a.HeightMap, b.HeightMap},
		"moisture": {a.MoistureMap, b.MoistureMap},
	}
}

func sameSlices(a, b []float64) (int, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > seamTolerance {
			return i, false
		}
	}
	return 0, true
}

// replayLogs regenerates every tile recorded in the tile logs under eventsDir
// and compares digests. Entries from other runs are skipped when runID is set.
func replayLogs(w *worldgen.World, eventsDir, runID string) (checked int, problems []string, err error) {
	files, err := persistlog.ListFiles(eventsDir, "tiles")
	if err != nil {
		return 0, nil, err
	}
	if len(files) == 0 {
		return 0, nil, fmt.Errorf("no tile logs found in %s", eventsDir)
	}
	for _, path := range files {
		err := persistlog.ReadTiles(path, func(e persistlog.TileEntry) error {
			if runID != "" && e.RunID != runID {
				return nil
			}
			c := tiler.Coord{X: e.X, Z: e.Z}
			checked++
			if !w.Layout.Contains(c) {
				problems = append(problems, fmt.Sprintf("%s: tile %s outside the world", filepath.Base(path), c))
				return nil
			}
			r, err := w.Generate(c)
			if err != nil {
				return err
			}
			if d := r.Digest(); d != e.Digest {
				problems = append(problems, fmt.Sprintf("%s: tile %s digest %s != logged %s", filepath.Base(path), c, short(d), short(e.Digest)))
			}
			return nil
		})
		if err != nil {
			return checked, problems, err
		}
	}
	return checked, problems, nil
}

func short(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
