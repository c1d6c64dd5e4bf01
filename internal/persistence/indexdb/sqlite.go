package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tuning"
)

// SQLiteIndex is a secondary, queryable index of generation runs. The tile
// logs stay the source of truth; writes are queued and dropped when the
// writer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropRun    atomic.Uint64
	dropTile   atomic.Uint64
	dropFinish atomic.Uint64
}

type reqKind int

const (
	reqRun reqKind = iota + 1
	reqTile
	reqFinish
)

type req struct {
	kind reqKind

	run    RunRow
	tile   TileRow
	finish finishRow
}

// RunRow describes one generation run (a CLI invocation or a server session).
type RunRow struct {
	RunID        string
	Kind         string
	StartedAt    time.Time
	Source       string
	Seed         int64
	TuningDigest string
	WidthTiles   int
	DepthTiles   int
}

type TileRow struct {
	RunID       string
	X           int
	Z           int
	Digest      string
	ElapsedUS   int64
	WaterCells  int
	BiomeCounts map[string]int
}

type finishRow struct {
	RunID      string
	Tiles      int
	FinishedAt time.Time
	Status     string
}

type Stats struct {
	QueueDepth      int
	QueueCapacity   int
	DropRunTotal    uint64
	DropTileTotal   uint64
	DropFinishTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			started_at TEXT NOT NULL,
			source TEXT NOT NULL,
			seed INTEGER NOT NULL,
			tuning_digest TEXT NOT NULL,
			width_tiles INTEGER NOT NULL,
			depth_tiles INTEGER NOT NULL,
			tiles INTEGER NOT NULL DEFAULT 0,
			finished_at TEXT,
			status TEXT NOT NULL DEFAULT 'running'
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
		`CREATE TABLE IF NOT EXISTS tiles (
			run_id TEXT NOT NULL,
			x INTEGER NOT NULL,
			z INTEGER NOT NULL,
			digest TEXT NOT NULL,
			elapsed_us INTEGER NOT NULL,
			water_cells INTEGER NOT NULL,
			biome_json TEXT NOT NULL,
			PRIMARY KEY (run_id, x, z)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tiles_pos ON tiles(x, z);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:      len(s.ch),
		QueueCapacity:   cap(s.ch),
		DropRunTotal:    s.dropRun.Load(),
		DropTileTotal:   s.dropTile.Load(),
		DropFinishTotal: s.dropFinish.Load(),
	}
}

func (s *SQLiteIndex) enqueue(r req, drops *atomic.Uint64) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- r:
	default:
		drops.Add(1)
	}
}

func (s *SQLiteIndex) RecordRun(r RunRow) {
	if s == nil || r.RunID == "" {
		return
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	s.enqueue(req{kind: reqRun, run: r}, &s.dropRun)
}

func (s *SQLiteIndex) RecordTile(t TileRow) {
	if s == nil || t.RunID == "" {
		return
	}
	s.enqueue(req{kind: reqTile, tile: t}, &s.dropTile)
}

// FinishRun stamps the run's tile count and final status ("ok", "failed", ...).
func (s *SQLiteIndex) FinishRun(runID string, tiles int, status string) {
	if s == nil || runID == "" {
		return
	}
	f := finishRow{RunID: runID, Tiles: tiles, FinishedAt: time.Now(), Status: status}
	s.enqueue(req{kind: reqFinish, finish: f}, &s.dropFinish)
}

// UpsertCatalogs stores the catalogs and tuning a run was generated from, keyed
// by file name, so digests in the tile index can be traced back to inputs.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	add := func(name, digest string, v any) {
		b, err := json.Marshal(v)
		if err != nil || len(b) == 0 {
			return
		}
		rows = append(rows, kv{name: name, digest: digest, json: b})
	}
	add(catalogs.HeightTypesFile, cats.HeightTypes.Digest, cats.HeightTypes.Defs)
	add(catalogs.HeatTypesFile, cats.HeatTypes.Digest, cats.HeatTypes.Defs)
	add(catalogs.MoistureTypesFile, cats.MoistureTypes.Digest, cats.MoistureTypes.Defs)
	{
		table := make([][]string, len(cats.Biomes.Rows))
		for i, row := range cats.Biomes.Rows {
			for _, b := range row {
				table[i] = append(table[i], b.Name)
			}
		}
		add(catalogs.BiomesFile, cats.Biomes.Digest, map[string]any{
			"biomes": cats.Biomes.Defs,
			"table":  table,
		})
	}
	add("tuning", tune.Digest(), tune)

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	// Prepared on db; executed within the current tx.
	insertRun, _ := s.db.Prepare(`INSERT OR REPLACE INTO runs(run_id,kind,started_at,source,seed,tuning_digest,width_tiles,depth_tiles) VALUES(?,?,?,?,?,?,?,?)`)
	insertTile, _ := s.db.Prepare(`INSERT OR REPLACE INTO tiles(run_id,x,z,digest,elapsed_us,water_cells,biome_json) VALUES(?,?,?,?,?,?,?)`)
	updateRun, _ := s.db.Prepare(`UPDATE runs SET tiles=?, finished_at=?, status=? WHERE run_id=?`)
	defer func() {
		for _, st := range []*sql.Stmt{insertRun, insertTile, updateRun} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil || tx == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqRun:
			ru := r.run
			exec(insertRun,
				ru.RunID,
				ru.Kind,
				ru.StartedAt.UTC().Format(time.RFC3339Nano),
				ru.Source,
				ru.Seed,
				ru.TuningDigest,
				ru.WidthTiles,
				ru.DepthTiles,
			)

		case reqTile:
			t := r.tile
			biomes, _ := json.Marshal(t.BiomeCounts)
			exec(insertTile, t.RunID, t.X, t.Z, t.Digest, t.ElapsedUS, t.WaterCells, string(biomes))

		case reqFinish:
			f := r.finish
			// Runs finish after all their tiles are queued; make them durable now.
			exec(updateRun, f.Tiles, f.FinishedAt.UTC().Format(time.RFC3339Nano), f.Status, f.RunID)
			commit()
			continue
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	commit()
}
