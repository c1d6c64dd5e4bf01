package main

import (
	"log"
	"sync/atomic"
	"time"

	"terrainsynth.ai/internal/persistence/indexdb"
	persistlog "terrainsynth.ai/internal/persistence/log"
	"terrainsynth.ai/internal/synth/tiler"
)

type tileLogger interface {
	WriteTile(e persistlog.TileEntry) error
}

// tileRecorder fans streamed tiles out to the tile log and the run index.
// Either sink may be nil.
type tileRecorder struct {
	runID string
	log   tileLogger
	idx   runtimeIndex
	warn  *log.Logger

	tiles     atomic.Uint64
	logErrors atomic.Uint64
}

func (r *tileRecorder) ObserveTile(sessionID, reqID string, t tiler.Tile) {
	r.tiles.Add(1)
	res := t.Result
	digest := res.Digest()
	counts := res.BiomeCounts()
	delete(counts, "")

	if r.log != nil {
		err := r.log.WriteTile(persistlog.TileEntry{
			Time:        time.Now().UTC(),
			RunID:       r.runID,
			ReqID:       sessionID + "/" + reqID,
			X:           t.Coord.X,
			Z:           t.Coord.Z,
			Digest:      digest,
			ElapsedUS:   t.Elapsed.Microseconds(),
			WaterCells:  res.WaterCells(),
			BiomeCounts: counts,
		})
		// Only the first failure is logged; the count shows up in /metrics.
		if err != nil && r.logErrors.Add(1) == 1 && r.warn != nil {
			r.warn.Printf("tile log: %v", err)
		}
	}
	if r.idx != nil {
		r.idx.RecordTile(indexdb.TileRow{
			RunID:       r.runID,
			X:           t.Coord.X,
			Z:           t.Coord.Z,
			Digest:      digest,
			ElapsedUS:   t.Elapsed.Microseconds(),
			WaterCells:  res.WaterCells(),
			BiomeCounts: counts,
		})
	}
}
