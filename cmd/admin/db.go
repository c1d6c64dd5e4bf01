package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

type runRecord struct {
	RunID        string  `json:"run_id"`
	Kind         string  `json:"kind"`
	StartedAt    string  `json:"started_at"`
	FinishedAt   *string `json:"finished_at,omitempty"`
	Status       string  `json:"status"`
	Source       string  `json:"source"`
	Seed         int64   `json:"seed"`
	TuningDigest string  `json:"tuning_digest"`
	WidthTiles   int     `json:"width_tiles"`
	DepthTiles   int     `json:"depth_tiles"`
	Tiles        int     `json:"tiles"`
}

type tileRecord struct {
	RunID       string         `json:"run_id"`
	X           int            `json:"x"`
	Z           int            `json:"z"`
	Digest      string         `json:"digest"`
	ElapsedUS   int64          `json:"elapsed_us"`
	WaterCells  int            `json:"water_cells"`
	BiomeCounts map[string]int `json:"biome_counts,omitempty"`
}

type catalogRecord struct {
	Name      string `json:"name"`
	Digest    string `json:"digest"`
	UpdatedAt string `json:"updated_at"`
}

func dbCmd(q string, args []string) {
	fs := flag.NewFlagSet(q, flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (default: <data>/index/runs.sqlite)")
	runID := fs.String("run", "", "run id (tiles; defaults to the latest run)")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "runs.sqlite")
	}
	if _, err := os.Stat(path); err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	var out []any
	switch q {
	case "runs":
		runs, err := queryRuns(db, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, r := range runs {
			out = append(out, r)
		}

	case "tiles":
		id := strings.TrimSpace(*runID)
		if id == "" {
			if id, err = latestRunID(db); err != nil {
				fmt.Fprintln(os.Stderr, "latest run:", err)
				os.Exit(1)
			}
			if id == "" {
				fmt.Fprintln(os.Stderr, "no runs found")
				os.Exit(2)
			}
		}
		tiles, err := queryTiles(db, id, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, t := range tiles {
			out = append(out, t)
		}

	case "catalogs":
		cats, err := queryCatalogs(db)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		for _, c := range cats {
			out = append(out, c)
		}
	}
	for _, v := range out {
		printJSON(v)
	}
}

func queryRuns(db *sql.DB, limit int) ([]runRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT run_id,kind,started_at,finished_at,status,source,seed,tuning_digest,width_tiles,depth_tiles,tiles FROM runs ORDER BY started_at DESC, run_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []runRecord
	for rows.Next() {
		var (
			r        runRecord
			finished sql.NullString
		)
		if err := rows.Scan(&r.RunID, &r.Kind, &r.StartedAt, &finished, &r.Status, &r.Source, &r.Seed, &r.TuningDigest, &r.WidthTiles, &r.DepthTiles, &r.Tiles); err != nil {
			return nil, err
		}
		if finished.Valid {
			r.FinishedAt = &finished.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryTiles(db *sql.DB, runID string, limit int) ([]tileRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(`SELECT x,z,digest,elapsed_us,water_cells,biome_json FROM tiles WHERE run_id=? ORDER BY z, x LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []tileRecord
	for rows.Next() {
		r := tileRecord{RunID: runID}
		var biomes string
		if err := rows.Scan(&r.X, &r.Z, &r.Digest, &r.ElapsedUS, &r.WaterCells, &biomes); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(biomes), &r.BiomeCounts); err != nil {
			return nil, fmt.Errorf("tile (%d,%d) biome_json: %w", r.X, r.Z, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func queryCatalogs(db *sql.DB) ([]catalogRecord, error) {
	rows, err := db.Query(`SELECT name,digest,updated_at FROM catalogs ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []catalogRecord
	for rows.Next() {
		var r catalogRecord
		if err := rows.Scan(&r.Name, &r.Digest, &r.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func latestRunID(db *sql.DB) (string, error) {
	var id sql.NullString
	err := db.QueryRow(`SELECT run_id FROM runs ORDER BY started_at DESC, run_id DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return id.String, nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
