// Package storage defines the contract between the version store and the
// durable storage engine underneath it.
//
// Implementations live in internal/infrastructure/storage; the engine only
// needs atomic multi-row transactions, a sortable index and these primitives.
package storage

import (
	"context"

	"github.com/Masterminds/squirrel"

	"lifeline/internal/core/tx"
	"lifeline/internal/metadata"
)

// Backend executes statements built by the engine, inside the transaction
// carried by ctx when there is one.
type Backend interface {
	tx.Manager

	// Dialect describes SQL differences the engine must account for.
	Dialect() Dialect

	// Exec runs a statement and returns the number of affected rows.
	Exec(ctx context.Context, query string, args ...any) (int64, error)

	// Select scans all rows into dst (pointer to slice).
	Select(ctx context.Context, dst any, query string, args ...any) error

	// Get scans exactly one row into dst. A missing row satisfies IsNoRows.
	Get(ctx context.Context, dst any, query string, args ...any) error

	// IsNoRows reports whether err means Get found nothing.
	IsNoRows(err error) bool

	// IsUniqueViolation reports whether err is a unique index violation.
	IsUniqueViolation(err error) bool
}

// Dialect captures per-engine SQL differences.
type Dialect struct {
	Name        string
	Placeholder squirrel.PlaceholderFormat

	// RowLocks enables SELECT ... FOR UPDATE on the open version during writes.
	RowLocks bool

	// RecordIDColumn is the full column definition of record_id.
	RecordIDColumn string

	// OwnerType and IntervalType are column types for owner_id and the bounds.
	OwnerType    string
	IntervalType string

	// BlobType holds opaque bytes (sync audit payloads).
	BlobType string

	// Types maps payload field types to column types.
	Types map[metadata.FieldType]string
}

// ColumnType returns the column type for a payload field.
func (d Dialect) ColumnType(ft metadata.FieldType) string {
	if t, ok := d.Types[ft]; ok {
		return t
	}
	return d.Types[metadata.TypeString]
}

// Builder returns a squirrel builder bound to the dialect's placeholders.
func (d Dialect) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(d.Placeholder)
}
