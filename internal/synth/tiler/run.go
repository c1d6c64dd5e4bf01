package tiler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"terrainsynth.ai/internal/synth/tile"
)

// Job describes one batch of tiles to generate.
type Job struct {
	Config      *tile.Config
	Layout      Layout
	SampleWidth int
	SampleDepth int

	// Workers defaults to runtime.NumCPU().
	Workers int
	// Coords defaults to the whole layout.
	Coords []Coord
}

// Tile is one generated tile as delivered to emit.
type Tile struct {
	Coord     Coord
	Placement tile.Placement
	Result    *tile.Result
	Elapsed   time.Duration
}

type outcome struct {
	tile Tile
	err  error
}

// Run generates every tile of job on a fixed worker pool. emit is called from
// the calling goroutine, one tile at a time, in completion order. The first
// generation or emit error stops the run and is returned; cancelling ctx stops
// scheduling and Run returns ctx.Err().
func Run(ctx context.Context, job Job, emit func(Tile) error) error {
	if job.Config == nil {
		return errors.New("tiler: nil config")
	}
	if job.SampleWidth <= 0 || job.SampleDepth <= 0 {
		return fmt.Errorf("tiler: sample grid must be positive, got %dx%d", job.SampleWidth, job.SampleDepth)
	}
	if err := job.Layout.Validate(); err != nil {
		return err
	}
	coords := job.Coords
	if coords == nil {
		coords = job.Layout.Coords()
	}
	for _, c := range coords {
		if !job.Layout.Contains(c) {
			return fmt.Errorf("%w: %s", ErrOutOfBounds, c)
		}
	}
	workers := job.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = max(min(workers, len(coords)), 1)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan Coord)
	results := make(chan outcome, workers)

	go func() {
		defer close(jobs)
		for _, c := range coords {
			select {
			case <-runCtx.Done():
				return
			case jobs <- c:
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for c := range jobs {
				if runCtx.Err() != nil {
					continue
				}
				start := time.Now()
				at := job.Layout.Position(c)
				res, err := tile.Generate(job.Config, at, job.SampleWidth, job.SampleDepth)
				if err != nil {
					err = fmt.Errorf("tile %s: %w", c, err)
				}
				results <- outcome{
					tile: Tile{Coord: c, Placement: at, Result: res, Elapsed: time.Since(start)},
					err:  err,
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for r := range results {
		if firstErr != nil || runCtx.Err() != nil {
			continue
		}
		if r.err != nil {
			firstErr = r.err
			cancel()
			continue
		}
		if err := emit(r.tile); err != nil {
			firstErr = err
			cancel()
		}
	}
	if firstErr != nil {
		return firstErr
	}
	return ctx.Err()
}
