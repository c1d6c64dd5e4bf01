package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"terrainsynth.ai/internal/persistence/indexdb"
	persistlog "terrainsynth.ai/internal/persistence/log"
	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tile"
	"terrainsynth.ai/internal/synth/tiler"
	"terrainsynth.ai/internal/synth/tuning"
	"terrainsynth.ai/internal/synth/worldgen"
)

func main() {
	var (
		configDir  = flag.String("configs", "./configs", "config directory (catalog json files)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		seed       = flag.Int64("seed", 0, "override the tuning seed (0 keeps it)")
		workers    = flag.Int("workers", 0, "tile workers (0 = NumCPU)")
		runID      = flag.String("run", "", "run id (default: gen-<unix>)")
		disableDB  = flag.Bool("disable_db", false, "do not index the run")
		disableLog = flag.Bool("disable_tile_log", false, "do not write the tile log")
		verify     = flag.Bool("verify", false, "regenerate sequentially and check digests and seams")
		replayDir  = flag.String("replay", "", "events dir: regenerate logged tiles and check their digests, then exit")
		replayRun  = flag.String("replay_run", "", "only replay entries of this run id")
		pngPath    = flag.String("png", "", "write the stitched world image to this path")
		mode       = flag.String("mode", "BIOME", "image mode: HEIGHT, HEAT, MOISTURE or BIOME")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[gen] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := loadCatalogs(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}
	imgMode, err := tile.ParseMode(*mode)
	if err != nil {
		logger.Fatalf("-mode: %v", err)
	}

	w, err := worldgen.Build(tune, cats)
	if err != nil {
		logger.Fatalf("%v", err)
	}

	if *replayDir != "" {
		checked, problems, err := replayLogs(w, *replayDir, *replayRun)
		if err != nil {
			logger.Fatalf("replay: %v", err)
		}
		for _, p := range problems {
			fmt.Fprintln(os.Stderr, p)
		}
		if len(problems) > 0 {
			os.Exit(1)
		}
		fmt.Printf("replay ok: checked=%d tiles\n", checked)
		return
	}

	id := strings.TrimSpace(*runID)
	if id == "" {
		id = fmt.Sprintf("gen-%d", time.Now().UTC().Unix())
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "runs.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index: upsert catalogs: %v", err)
		}
		idx.RecordRun(indexdb.RunRow{
			RunID:        id,
			Kind:         "gen",
			Source:       tune.Source,
			Seed:         tune.Seed,
			TuningDigest: tune.Digest(),
			WidthTiles:   w.Layout.WidthInTiles,
			DepthTiles:   w.Layout.DepthInTiles,
		})
	}
	var tileLog *persistlog.TileLogger
	if !*disableLog {
		tileLog = persistlog.NewTileLogger(*dataDir)
		defer tileLog.Close()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	keep := *verify || *pngPath != ""
	results := map[tiler.Coord]*tile.Result{}
	hist := map[string]int{}
	start := time.Now()
	n := 0
	err = tiler.Run(ctx, w.Job(nil, *workers), func(t tiler.Tile) error {
		n++
		res := t.Result
		digest := res.Digest()
		counts := res.BiomeCounts()
		for b, c := range counts {
			hist[b] += c
		}
		delete(counts, "")
		if tileLog != nil {
			err := tileLog.WriteTile(persistlog.TileEntry{
				Time:        time.Now().UTC(),
				RunID:       id,
				X:           t.Coord.X,
				Z:           t.Coord.Z,
				Digest:      digest,
				ElapsedUS:   t.Elapsed.Microseconds(),
				WaterCells:  res.WaterCells(),
				BiomeCounts: counts,
			})
			if err != nil {
				return fmt.Errorf("tile log: %w", err)
			}
		}
		idx.RecordTile(indexdb.TileRow{
			RunID:       id,
			X:           t.Coord.X,
			Z:           t.Coord.Z,
			Digest:      digest,
			ElapsedUS:   t.Elapsed.Microseconds(),
			WaterCells:  res.WaterCells(),
			BiomeCounts: counts,
		})
		if keep {
			results[t.Coord] = res
		}
		return nil
	})
	idx.FinishRun(id, n, runStatus(err))
	exit := func() {
		// Flush logs and the index before exiting non-zero.
		if tileLog != nil {
			_ = tileLog.Close()
		}
		if idx != nil {
			_ = idx.Close()
		}
		os.Exit(1)
	}
	if err != nil {
		logger.Printf("run %s stopped after %d tiles: %v", id, n, err)
		exit()
	}
	logger.Printf("run %s: %d tiles in %s (seed=%d source=%s seamless=%v)", id, n, time.Since(start).Round(time.Millisecond), tune.Seed, tune.Source, tune.Seamless())
	printHistogram(os.Stdout, hist)

	failed := false
	if *verify {
		problems := verifyDeterminism(w, results)
		if tune.Seamless() {
			problems = append(problems, verifySeams(w, results)...)
		} else {
			logger.Printf("tile size does not match samples-1; seams not checked")
		}
		for _, p := range problems {
			fmt.Fprintln(os.Stderr, p)
		}
		if len(problems) > 0 {
			failed = true
		} else {
			fmt.Printf("verify ok: %d tiles deterministic\n", len(results))
		}
	}
	if *pngPath != "" {
		if err := writePNG(*pngPath, stitch(w, results, imgMode)); err != nil {
			logger.Printf("png: %v", err)
			failed = true
		} else {
			logger.Printf("wrote %s", *pngPath)
		}
	}
	if failed {
		exit()
	}
}

// runStatus is the status recorded in the index when a run ends.
func runStatus(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return "interrupted"
	default:
		return "failed"
	}
}

func printHistogram(out io.Writer, hist map[string]int) {
	type row struct {
		name  string
		cells int
	}
	rows := make([]row, 0, len(hist))
	total := 0
	for name, cells := range hist {
		if name == "" {
			name = "(water)"
		}
		rows = append(rows, row{name, cells})
		total += cells
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].cells != rows[j].cells {
			return rows[i].cells > rows[j].cells
		}
		return rows[i].name < rows[j].name
	})
	for _, r := range rows {
		fmt.Fprintf(out, "%-16s %8d %6.2f%%\n", r.name, r.cells, 100*float64(r.cells)/float64(total))
	}
}

// stitch lays the tiles out by noise coordinate. Tiles sample at minus their
// world position, so tile (0,0) lands in the bottom-right block and each
// tile's trailing seam column and row are left to its neighbour.
func stitch(w *worldgen.World, results map[tiler.Coord]*tile.Result, mode tile.Mode) *image.RGBA {
	stepX, stepZ := w.SampleWidth, w.SampleDepth
	if w.Tuning.Seamless() {
		stepX--
		stepZ--
	}
	l := w.Layout
	img := image.NewRGBA(image.Rect(0, 0, stepX*l.WidthInTiles, stepZ*l.DepthInTiles))
	for c, r := range results {
		colors := r.Colors(mode)
		bx := (l.WidthInTiles - 1 - c.X) * stepX
		bz := (l.DepthInTiles - 1 - c.Z) * stepZ
		for z := 0; z < stepZ; z++ {
			for x := 0; x < stepX; x++ {
				img.SetRGBA(bx+x, bz+z, colors[x+z*r.Width])
			}
		}
	}
	return img
}

func writePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func loadCatalogs(configDir string) (*catalogs.Catalogs, error) {
	if _, err := os.Stat(filepath.Join(configDir, catalogs.BiomesFile)); os.IsNotExist(err) {
		return catalogs.Defaults(), nil
	}
	return catalogs.Load(configDir)
}

func loadTuning(path string) (tuning.Tuning, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return tuning.Load("")
	}
	return tuning.Load(path)
}
