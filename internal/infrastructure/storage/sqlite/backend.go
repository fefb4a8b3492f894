package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/sqlscan"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"lifeline/internal/core/storage"
	"lifeline/internal/metadata"
)

// Dialect is the SQLite dialect. Money is NUMERIC so decimal strings compare
// as numbers; uuids are stored as text.
var Dialect = storage.Dialect{
	Name:           "sqlite",
	Placeholder:    squirrel.Question,
	RecordIDColumn: "INTEGER PRIMARY KEY AUTOINCREMENT",
	OwnerType:      "TEXT",
	IntervalType:   "INTEGER",
	BlobType:       "BLOB",
	Types: map[metadata.FieldType]string{
		metadata.TypeString:    "TEXT",
		metadata.TypeInteger:   "INTEGER",
		metadata.TypeNumber:    "REAL",
		metadata.TypeBoolean:   "INTEGER",
		metadata.TypeMoney:     "NUMERIC",
		metadata.TypeReference: "TEXT",
	},
}

var _ storage.Backend = (*Backend)(nil)

// Backend executes statements on the database or on the transaction in ctx.
type Backend struct {
	*TxManager
}

func NewBackend(db *sql.DB) *Backend {
	return &Backend{TxManager: NewTxManager(db)}
}

func (b *Backend) Dialect() storage.Dialect {
	return Dialect
}

func (b *Backend) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := b.GetQuerier(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (b *Backend) Select(ctx context.Context, dst any, query string, args ...any) error {
	return sqlscan.Select(ctx, b.GetQuerier(ctx), dst, query, args...)
}

func (b *Backend) Get(ctx context.Context, dst any, query string, args ...any) error {
	return sqlscan.Get(ctx, b.GetQuerier(ctx), dst, query, args...)
}

func (b *Backend) IsNoRows(err error) bool {
	return sqlscan.NotFound(err)
}

func (b *Backend) IsUniqueViolation(err error) bool {
	var sqlErr *sqlite.Error
	return errors.As(err, &sqlErr) && sqlErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}

// Ping checks database connectivity (readiness probe).
func (b *Backend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close closes the database.
func (b *Backend) Close() error {
	return b.db.Close()
}
