package main

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"terrainsynth.ai/internal/persistence/indexdb"
	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tuning"
)

func seededIndex(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.sqlite")
	idx, err := indexdb.OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	tu, _ := tuning.Load("")
	if err := idx.UpsertCatalogs(catalogs.Defaults(), tu); err != nil {
		t.Fatalf("UpsertCatalogs: %v", err)
	}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	idx.RecordRun(indexdb.RunRow{RunID: "gen-1", Kind: "gen", StartedAt: t0, Source: "perlin", Seed: 1, WidthTiles: 2, DepthTiles: 2})
	idx.RecordRun(indexdb.RunRow{RunID: "gen-2", Kind: "gen", StartedAt: t0.Add(time.Hour), Source: "simplex", Seed: 2, WidthTiles: 2, DepthTiles: 1})
	idx.RecordTile(indexdb.TileRow{RunID: "gen-2", X: 1, Z: 0, Digest: "b", BiomeCounts: map[string]int{"taiga": 4}})
	idx.RecordTile(indexdb.TileRow{RunID: "gen-2", X: 0, Z: 0, Digest: "a", WaterCells: 2})
	idx.FinishRun("gen-2", 2, "ok")
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestQueryRuns(t *testing.T) {
	db := seededIndex(t)
	runs, err := queryRuns(db, 0)
	if err != nil {
		t.Fatalf("queryRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].RunID != "gen-2" || runs[1].RunID != "gen-1" {
		t.Fatalf("runs=%+v", runs)
	}
	if runs[0].Status != "ok" || runs[0].Tiles != 2 || runs[0].FinishedAt == nil {
		t.Fatalf("finished run=%+v", runs[0])
	}
	if runs[1].Status != "running" || runs[1].FinishedAt != nil {
		t.Fatalf("open run=%+v", runs[1])
	}

	id, err := latestRunID(db)
	if err != nil || id != "gen-2" {
		t.Fatalf("latestRunID=%q err=%v", id, err)
	}
}

func TestQueryTiles(t *testing.T) {
	db := seededIndex(t)
	tiles, err := queryTiles(db, "gen-2", 10)
	if err != nil {
		t.Fatalf("queryTiles: %v", err)
	}
	if len(tiles) != 2 || tiles[0].X != 0 || tiles[1].X != 1 {
		t.Fatalf("tiles=%+v", tiles)
	}
	if tiles[0].WaterCells != 2 || tiles[1].BiomeCounts["taiga"] != 4 {
		t.Fatalf("tiles=%+v", tiles)
	}
	if tiles, err := queryTiles(db, "gen-1", 10); err != nil || len(tiles) != 0 {
		t.Fatalf("gen-1 tiles=%v err=%v", tiles, err)
	}
}

func TestQueryCatalogs(t *testing.T) {
	db := seededIndex(t)
	cats, err := queryCatalogs(db)
	if err != nil {
		t.Fatalf("queryCatalogs: %v", err)
	}
	if len(cats) != 5 || cats[0].Name != catalogs.BiomesFile || cats[4].Name != "tuning" {
		t.Fatalf("catalogs=%+v", cats)
	}
}

func TestGetAdmin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/state" {
			http.NotFound(rw, r)
			return
		}
		_, _ = rw.Write([]byte(`{"run_id":"server-1"}`))
	}))
	defer srv.Close()

	status, body, err := getAdmin(srv.URL+"/", "/admin/v1/state")
	if err != nil || status != 200 || string(body) != `{"run_id":"server-1"}` {
		t.Fatalf("status=%d body=%s err=%v", status, body, err)
	}
}
