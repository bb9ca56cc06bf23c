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
		log.Println("creating transaction_records and event_records tables...")
		if err := mghelper.CreateSchema(ctx, db, &dao.TransactionRecordDao{}, &dao.EventRecordDao{}); err != nil {
			return err
		}
		if err := mghelper.CreateModelIndexes(ctx, db, &dao.TransactionRecordDao{}, "sender", "fetched_at"); err != nil {
			return err
		}
		return mghelper.CreateModelIndexes(ctx, db, &dao.EventRecordDao{}, "sender", "event_type", "fetched_at")
	}, func(ctx context.Context, db *bun.DB) error {
		log.Println("dropping transaction_records and event_records tables...")
		return mghelper.DropTables(ctx, db, &dao.TransactionRecordDao{}, &dao.EventRecordDao{})
	})
}
