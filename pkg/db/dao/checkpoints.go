package dao

import (
	"time"

	"github.com/uptrace/bun"
)

// OffsetCheckpointDao is a data access object that maps directly to the 'offset_checkpoints' table in PostgreSQL.
type OffsetCheckpointDao struct {
	bun.BaseModel `bun:"table:offset_checkpoints,alias:oc"`
	Address       string    `json:"address" bun:",pk,type:varchar(128)"`
	Offset        int64     `json:"offset" bun:"offset,notnull,default:0"`
	UpdatedAt     time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}

// CursorCheckpointDao is a data access object that maps directly to the 'cursor_checkpoints' table in PostgreSQL.
// Cursor holds the JSON text of the source's continuation token; NULL means the start.
type CursorCheckpointDao struct {
	bun.BaseModel `bun:"table:cursor_checkpoints,alias:cc"`
	Address       string    `json:"address" bun:",pk,type:varchar(128)"`
	Cursor        *string   `json:"cursor,omitempty" bun:"cursor,type:text"`
	UpdatedAt     time.Time `json:"updated_at" bun:",notnull,nullzero,default:current_timestamp"`
}
