package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// IngestLeaseDao is a data access object that maps directly to the 'ingest_leases' table in PostgreSQL.
type IngestLeaseDao struct {
	bun.BaseModel `bun:"table:ingest_leases,alias:il"`
	Address       string    `json:"address" bun:",pk,type:varchar(128)"`
	Owner         string    `json:"owner" bun:",notnull,type:varchar(64)"`
	AcquiredAt    time.Time `json:"acquired_at" bun:",notnull"`
	ExpiresAt     time.Time `json:"expires_at" bun:",notnull"`
}
