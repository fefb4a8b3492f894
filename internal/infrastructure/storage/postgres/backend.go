package postgres

import (
	"context"
	"errors"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"lifeline/internal/core/storage"
	"lifeline/internal/metadata"
)

// uniqueViolation is SQLSTATE unique_violation.
const uniqueViolation = "23505"

// Dialect is the PostgreSQL dialect.
var Dialect = storage.Dialect{
	Name:           "postgres",
	Placeholder:    squirrel.Dollar,
	RowLocks:       true,
	RecordIDColumn: "BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY",
	OwnerType:      "UUID",
	IntervalType:   "BIGINT",
	BlobType:       "BYTEA",
	Types: map[metadata.FieldType]string{
		metadata.TypeString:    "TEXT",
		metadata.TypeInteger:   "BIGINT",
		metadata.TypeNumber:    "DOUBLE PRECISION",
		metadata.TypeBoolean:   "BOOLEAN",
		metadata.TypeMoney:     "NUMERIC",
		metadata.TypeReference: "UUID",
	},
}

var _ storage.Backend = (*Backend)(nil)

// Backend executes statements on the pool or on the transaction in ctx.
type Backend struct {
	*TxManager
}

// NewBackend creates a Backend over pool.
func NewBackend(pool *Pool) *Backend {
	return &Backend{TxManager: NewTxManager(pool)}
}

func (b *Backend) Dialect() storage.Dialect {
	return Dialect
}

func (b *Backend) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	tag, err := b.GetQuerier(ctx).Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (b *Backend) Select(ctx context.Context, dst any, query string, args ...any) error {
	return pgxscan.Select(ctx, b.GetQuerier(ctx), dst, query, args...)
}

func (b *Backend) Get(ctx context.Context, dst any, query string, args ...any) error {
	return pgxscan.Get(ctx, b.GetQuerier(ctx), dst, query, args...)
}

func (b *Backend) IsNoRows(err error) bool {
	return pgxscan.NotFound(err)
}

func (b *Backend) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Ping checks database connectivity (readiness probe).
func (b *Backend) Ping(ctx context.Context) error {
	return b.pool.Ping(ctx)
}
