//go:build ignore
// +build ignore

// Reset Checkpoint
//
// This script rewinds the checkpoint of one or more jobs to the start
// position. The next run fetches from the beginning; records already stored
// are reported as already existing and are not rewritten.
//
// Usage:
//   go run scripts/utils/reset-checkpoint.go -config config.yaml -job aptos-main
//   go run scripts/utils/reset-checkpoint.go -config config.yaml -all -dry-run

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/db"
	"github.com/chainsafe/ledger-ingest/pkg/ingest"
	"github.com/chainsafe/ledger-ingest/pkg/pgutil"
)

var (
	configPath = flag.String("config", "config.yaml", "Path to config file")
	jobNames   = flag.String("job", "", "Comma separated job names to reset")
	all        = flag.Bool("all", false, "Reset every configured job")
	dryRun     = flag.Bool("dry-run", false, "Show what would be done without making changes")
)

func main() {
	flag.Parse()

	if *jobNames == "" && !*all {
		fatalf("one of -job or -all is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}

	var names []string
	if !*all {
		for _, n := range strings.Split(*jobNames, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	jobs, err := cfg.SelectJobs(names)
	if err != nil {
		fatalf("Failed to select jobs: %v", err)
	}

	logger, _ := zap.NewDevelopment()
	ctx := context.Background()

	fmt.Println(">>> Connecting to PostgreSQL...")
	database, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		fatalf("Failed to connect to database: %v", err)
	}
	store := db.NewStore(database, logger)
	defer store.Close()

	for _, job := range jobs {
		style := ingest.Style(job.PositionStyle)
		pos, err := store.Load(ctx, job.Address, style)
		if err != nil {
			fatalf("Failed to load checkpoint for %s: %v", job.Name, err)
		}
		fmt.Printf("    %-20s %-68s %s\n", job.Name, job.Address, pos)

		if *dryRun || pos.IsStart() {
			continue
		}
		if err := store.Save(ctx, job.Address, ingest.StartPosition(style)); err != nil {
			fatalf("Failed to reset checkpoint for %s: %v", job.Name, err)
		}
		fmt.Printf("    %-20s reset to start\n", job.Name)
	}

	if *dryRun {
		fmt.Println(">>> DRY RUN - no checkpoints changed")
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "ERROR: "+format+"\n", args...)
	os.Exit(1)
}
