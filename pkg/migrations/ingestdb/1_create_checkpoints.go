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
		log.Println("creating offset_checkpoints and cursor_checkpoints tables...")
		return mghelper.CreateSchema(ctx, db, &dao.OffsetCheckpointDao{}, &dao.CursorCheckpointDao{})
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping offset_checkpoints and cursor_checkpoints tables...")
		return mghelper.DropTables(ctx, db, &dao.OffsetCheckpointDao{}, &dao.CursorCheckpointDao{})
	})
}
