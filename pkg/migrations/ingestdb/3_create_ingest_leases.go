package ingestdb

import (
	"context"
	"log"

	"github.com/chainsafe/ledger-ingest/pkg/db/dao"
	mghelper "github.com/chainsafe/ledger-ingest/pkg/pgutil/migrations"

	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(func(ctx context.Context, db *bun.DB) error {
		log.Println("creating ingest_leases table...")
		return mghelper.CreateSchema(ctx, db, &dao.IngestLeaseDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping ingest_leases table...")
		return mghelper.DropTables(ctx, db, &dao.IngestLeaseDao{})
	})
}
