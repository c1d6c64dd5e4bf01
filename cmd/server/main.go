package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"terrainsynth.ai/internal/persistence/indexdb"
	persistlog "terrainsynth.ai/internal/persistence/log"
	"terrainsynth.ai/internal/synth/catalogs"
	"terrainsynth.ai/internal/synth/tuning"
	"terrainsynth.ai/internal/synth/worldgen"
	"terrainsynth.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		configDir  = flag.String("configs", "./configs", "config directory (catalog json files)")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		seed       = flag.Int64("seed", 0, "override the tuning seed (0 keeps it)")
		workers    = flag.Int("workers", 0, "tile workers per request (0 = NumCPU)")
		maxPending = flag.Int("max_pending", 4, "queued requests per connection")
		disableDB  = flag.Bool("disable_db", false, "disable the run index")
		disableLog = flag.Bool("disable_tile_log", false, "disable the compressed tile log")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cats, err := loadCatalogs(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := loadTuning(tp, logger)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	w, err := worldgen.Build(tune, cats)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	logger.Printf("world %dx%d tiles source=%s seed=%d seamless=%v tuning=%s",
		w.Layout.WidthInTiles, w.Layout.DepthInTiles, tune.Source, tune.Seed, tune.Seamless(), tune.Digest()[:12])

	// Optional read-model index; generation never depends on it.
	idx, err := openRuntimeIndex(*dataDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertCatalogs(cats, tune); err != nil {
			logger.Printf("index backend: upsert catalogs: %v", err)
		}
	}

	runID := fmt.Sprintf("server-%d", time.Now().UTC().Unix())
	rec := &tileRecorder{runID: runID, warn: logger}
	if !*disableLog {
		tileLog := persistlog.NewTileLogger(*dataDir)
		defer tileLog.Close()
		rec.log = tileLog
	}
	if idx != nil {
		rec.idx = idx
		idx.RecordRun(indexdb.RunRow{
			RunID:        runID,
			Kind:         "server",
			Source:       tune.Source,
			Seed:         tune.Seed,
			TuningDigest: tune.Digest(),
			WidthTiles:   w.Layout.WidthInTiles,
			DepthTiles:   w.Layout.DepthInTiles,
		})
		defer func() { idx.FinishRun(runID, int(rec.tiles.Load()), "stopped") }()
	}

	ctx, cancel := signalContext()
	defer cancel()

	tileSrv := ws.NewServer(w, logger, ws.Options{Workers: *workers, MaxPending: *maxPending, Observer: rec})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(rec, idx))
	mux.HandleFunc("/v1/world", tileSrv.BootstrapHandler())
	mux.HandleFunc("/v1/tiles", tileSrv.Handler())

	if envBool("TS_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			resp := struct {
				RunID   string            `json:"run_id"`
				Tiles   uint64            `json:"tiles"`
				Tuning  tuning.Tuning     `json:"tuning"`
				Digests map[string]string `json:"catalogs"`
				Index   *indexdb.Stats    `json:"index,omitempty"`
			}{
				RunID:   runID,
				Tiles:   rec.tiles.Load(),
				Tuning:  tune,
				Digests: cats.Digests(),
			}
			if idx != nil {
				st := idx.Stats()
				resp.Index = &st
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (TS_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("TS_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

// loadCatalogs reads configDir when it holds catalog files and falls back to
// the built-in set otherwise.
func loadCatalogs(configDir string) (*catalogs.Catalogs, error) {
	if _, err := os.Stat(filepath.Join(configDir, catalogs.BiomesFile)); err != nil {
		if os.IsNotExist(err) {
			return catalogs.Defaults(), nil
		}
		return nil, err
	}
	return catalogs.Load(configDir)
}

func loadTuning(path string, logger *log.Logger) (tuning.Tuning, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Printf("tuning not found (%s); using defaults", path)
		return tuning.Load("")
	}
	return tuning.Load(path)
}

func metricsHandler(rec *tileRecorder, idx runtimeIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		fmt.Fprintf(rw, "# HELP terrainsynth_tiles_total Tiles streamed since start.\n")
		fmt.Fprintf(rw, "# TYPE terrainsynth_tiles_total counter\n")
		fmt.Fprintf(rw, "terrainsynth_tiles_total %d\n", rec.tiles.Load())

		fmt.Fprintf(rw, "# HELP terrainsynth_tile_log_errors_total Failed tile log writes.\n")
		fmt.Fprintf(rw, "# TYPE terrainsynth_tile_log_errors_total counter\n")
		fmt.Fprintf(rw, "terrainsynth_tile_log_errors_total %d\n", rec.logErrors.Load())

		if idx == nil {
			return
		}
		s := idx.Stats()
		fmt.Fprintf(rw, "# HELP terrainsynth_index_queue_depth Index writer backlog.\n")
		fmt.Fprintf(rw, "# TYPE terrainsynth_index_queue_depth gauge\n")
		fmt.Fprintf(rw, "terrainsynth_index_queue_depth %d\n", s.QueueDepth)

		fmt.Fprintf(rw, "# HELP terrainsynth_index_queue_capacity Index writer queue capacity.\n")
		fmt.Fprintf(rw, "# TYPE terrainsynth_index_queue_capacity gauge\n")
		fmt.Fprintf(rw, "terrainsynth_index_queue_capacity %d\n", s.QueueCapacity)

		fmt.Fprintf(rw, "# HELP terrainsynth_index_dropped_total Index writes dropped on a full queue.\n")
		fmt.Fprintf(rw, "# TYPE terrainsynth_index_dropped_total counter\n")
		fmt.Fprintf(rw, "terrainsynth_index_dropped_total{kind=%q} %d\n", "run", s.DropRunTotal)
		fmt.Fprintf(rw, "terrainsynth_index_dropped_total{kind=%q} %d\n", "tile", s.DropTileTotal)
		fmt.Fprintf(rw, "terrainsynth_index_dropped_total{kind=%q} %d\n", "finish", s.DropFinishTotal)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
