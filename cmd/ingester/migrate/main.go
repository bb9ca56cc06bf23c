package main

import (
	"context"
	"flag"
	"log"

	"github.com/uptrace/bun/migrate"

	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/migrations/ingestdb"
	"github.com/chainsafe/ledger-ingest/pkg/pgutil"
	mghelper "github.com/chainsafe/ledger-ingest/pkg/pgutil/migrations"
)

func main() {
	cfgPath := flag.String("config", "config.example.yaml", "Path to configuration file")
	flag.Usage = mghelper.Usage
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("error reading configuration file: %s", err.Error())
	}

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %s", err.Error())
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	// Connect to database
	db, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to database %s: %s", cfg.Database.Database, err.Error())
	}
	defer db.Close()

	log.Printf("Running migrations for ingest database (%s)...\n", cfg.Database.Database)

	migrator := migrate.NewMigrator(db, ingestdb.Migrations)
	if err := mghelper.RunMigrations(ctx, migrator, logger, flag.Args()...); err != nil {
		mghelper.Exitf(err.Error())
	}
}
