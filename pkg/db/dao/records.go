package dao

import (
	"encoding/json"
	"time"

	"github.com/uptrace/bun"
)

// TransactionRecordDao is a data access object that maps directly to the 'transaction_records' table in PostgreSQL.
type TransactionRecordDao struct {
	bun.BaseModel `bun:"table:transaction_records,alias:tr"`
	ID            string          `json:"id" bun:",pk,type:varchar(128)"`
	Network       string          `json:"network" bun:",notnull,type:varchar(32)"`
	FetchedAt     time.Time       `json:"fetched_at" bun:",notnull,nullzero,default:current_timestamp"`
	Sender        *string         `json:"sender,omitempty" bun:"sender,type:varchar(128)"`
	Amount        *string         `json:"amount,omitempty" bun:"amount,type:text"`
	Raw           json.RawMessage `json:"raw" bun:"raw,notnull,type:json"`
}

// EventRecordDao is a data access object that maps directly to the 'event_records' table in PostgreSQL.
type EventRecordDao struct {
	bun.BaseModel `bun:"table:event_records,alias:er"`
	ID            string          `json:"id" bun:",pk,type:varchar(160)"`
	Network       string          `json:"network" bun:",notnull,type:varchar(32)"`
	FetchedAt     time.Time       `json:"fetched_at" bun:",notnull,nullzero,default:current_timestamp"`
	Sender        *string         `json:"sender,omitempty" bun:"sender,type:varchar(128)"`
	Amount        *string         `json:"amount,omitempty" bun:"amount,type:text"`
	EventType     *string         `json:"event_type,omitempty" bun:"event_type,type:text"`
	Raw           json.RawMessage `json:"raw" bun:"raw,notnull,type:json"`
}
