package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"terrainsynth.ai/internal/persistence/indexdb"
	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tuning"
)

type runtimeIndex interface {
	Close() error
	Stats() indexdb.Stats
	UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error
	RecordRun(r indexdb.RunRow)
	RecordTile(t indexdb.TileRow)
	FinishRun(runID string, tiles int, status string)
}

func openRuntimeIndex(dataDir string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}

	backend := strings.ToLower(strings.TrimSpace(os.Getenv("TS_INDEX_BACKEND")))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "runs.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported TS_INDEX_BACKEND: %s", backend)
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
