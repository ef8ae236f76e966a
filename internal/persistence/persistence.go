// Package persistence records the history of built report documents so an
// operator can answer what was exported, when, and with how many warnings.
package persistence

import (
	"context"
	"time"
)

// ExportRecord is one finished report build.
type ExportRecord struct {
	ID           string    `json:"id"`
	Key          string    `json:"key"`
	QuantType    string    `json:"quant_type"`
	WarningCount int       `json:"warning_count"`
	SizeBytes    int64     `json:"size_bytes"`
	ETag         string    `json:"etag,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Archive is the append-only export history.
type Archive interface {
	Append(ctx context.Context, rec ExportRecord) error
	List(ctx context.Context) ([]ExportRecord, error)
	Find(ctx context.Context, id string) (ExportRecord, bool, error)
	Close() error
}
