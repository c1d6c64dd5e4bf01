package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	persistlog "terrainsynth.ai/internal/persistence/log"
)

const usage = "usage: admin runs|tiles|catalogs [-data ./data|-db PATH] [-run ID] [-limit N] | state [-url URL] | logs [-data ./data]"

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	switch os.Args[1] {
	case "runs", "tiles", "catalogs":
		dbCmd(os.Args[1], os.Args[2:])
	case "state":
		stateCmd(os.Args[2:])
	case "logs":
		logsCmd(os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, "unknown command:", os.Args[1])
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
}

// logsCmd lists the tile log files, oldest first.
func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	_ = fs.Parse(args)

	files, err := persistlog.ListFiles(filepath.Join(*dataDir, "events"), "tiles")
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, f := range files {
		st, err := os.Stat(f)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%d\n", filepath.Base(f), st.Size())
	}
}
