package versionstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/core/id"
	"lifeline/internal/core/storage"
	"lifeline/internal/domain/selector"
	"lifeline/internal/metadata"
)

type recordedStmt struct {
	sql  string
	args []any
}

// recordingBackend captures statements and returns empty results.
type recordingBackend struct {
	dialect storage.Dialect
	stmts   []recordedStmt
}

func (b *recordingBackend) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (b *recordingBackend) Dialect() storage.Dialect { return b.dialect }

func (b *recordingBackend) Exec(_ context.Context, q string, args ...any) (int64, error) {
	b.stmts = append(b.stmts, recordedStmt{q, args})
	return 0, nil
}

func (b *recordingBackend) Select(_ context.Context, _ any, q string, args ...any) error {
	b.stmts = append(b.stmts, recordedStmt{q, args})
	return nil
}

func (b *recordingBackend) Get(_ context.Context, _ any, q string, args ...any) error {
	b.stmts = append(b.stmts, recordedStmt{q, args})
	return sql.ErrNoRows
}

func (b *recordingBackend) IsNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func (b *recordingBackend) IsUniqueViolation(error) bool { return false }

func newRecordingStore(t *testing.T) (*Store[*mockEntry], *recordingBackend) {
	t.Helper()
	backend := &recordingBackend{dialect: testDialect}
	def := metadata.EntityDef{
		Name:           "journal",
		TableName:      "journal_entries",
		NaturalKey:     []string{"ref_id"},
		OrderBy:        "ref_id",
		AccessCategory: "wallet",
		Fields: []metadata.FieldDef{
			{Name: "ref_id", Type: metadata.TypeInteger},
			{Name: "amount", Type: metadata.TypeMoney},
		},
	}
	store, err := New(backend, def, func() *mockEntry { return &mockEntry{} })
	require.NoError(t, err)
	return store, backend
}

func TestPageSQL(t *testing.T) {
	ctx := context.Background()
	owner := id.New()

	tests := []struct {
		name     string
		run      func(s *Store[*mockEntry]) error
		wantSQL  string
		wantArgs []any
	}{
		{
			name: "forward from start",
			run: func(s *Store[*mockEntry]) error {
				_, err := s.GetAllForward(ctx, owner, 50, Start, 10)
				return err
			},
			wantSQL: "SELECT record_id, owner_id, valid_from, valid_until, ref_id, amount FROM journal_entries " +
				"WHERE owner_id = $1 AND (valid_from <= $2 AND valid_until > $3) " +
				"ORDER BY ref_id ASC, record_id ASC LIMIT 10",
			wantArgs: []any{owner.String(), int64(50), int64(50)},
		},
		{
			name: "backward scalar token",
			run: func(s *Store[*mockEntry]) error {
				_, err := s.GetAllBackward(ctx, owner, 50, After(int64(120)), 2)
				return err
			},
			wantSQL: "SELECT record_id, owner_id, valid_from, valid_until, ref_id, amount FROM journal_entries " +
				"WHERE owner_id = $1 AND (valid_from <= $2 AND valid_until > $3) AND ref_id < $4 " +
				"ORDER BY ref_id DESC, record_id DESC LIMIT 2",
			wantArgs: []any{owner.String(), int64(50), int64(50), int64(120)},
		},
		{
			name: "forward composite token, limit capped",
			run: func(s *Store[*mockEntry]) error {
				_, err := s.GetAllForward(ctx, owner, 50, Cursor{Key: int64(7), RecordID: 3}, 5000)
				return err
			},
			wantSQL: "SELECT record_id, owner_id, valid_from, valid_until, ref_id, amount FROM journal_entries " +
				"WHERE owner_id = $1 AND (valid_from <= $2 AND valid_until > $3) " +
				"AND (ref_id > $4 OR (ref_id = $5 AND record_id > $6)) " +
				"ORDER BY ref_id ASC, record_id ASC LIMIT 1000",
			wantArgs: []any{owner.String(), int64(50), int64(50), int64(7), int64(7), int64(3)},
		},
		{
			name: "predicate query orders by record id",
			run: func(s *Store[*mockEntry]) error {
				_, err := s.AccessQuery(ctx, owner, 50, Query{
					Predicate: selector.Predicate{
						{Field: "ref_id", Selector: selector.In("1", "2")},
						{Field: "amount", Selector: selector.Any()},
					},
					Cursor: Cursor{Key: int64(9), RecordID: 9},
					Limit:  3,
				})
				return err
			},
			wantSQL: "SELECT record_id, owner_id, valid_from, valid_until, ref_id, amount FROM journal_entries " +
				"WHERE owner_id = $1 AND (valid_from <= $2 AND valid_until > $3) " +
				"AND (ref_id IN ($4,$5)) AND record_id > $6 " +
				"ORDER BY record_id ASC LIMIT 3",
			wantArgs: []any{owner.String(), int64(50), int64(50), int64(1), int64(2), int64(9)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, backend := newRecordingStore(t)
			require.NoError(t, tt.run(store))
			require.Len(t, backend.stmts, 1)
			assert.Equal(t, tt.wantSQL, backend.stmts[0].sql)
			assert.Equal(t, tt.wantArgs, backend.stmts[0].args)
		})
	}
}

func TestEvolveSQL(t *testing.T) {
	store, backend := newRecordingStore(t)
	owner := id.New()
	e := &mockEntry{BaseVersion: entity.BaseVersion{RecordID: 4, OwnerID: owner, ValidFrom: 10, ValidUntil: entity.Forever}}

	_, err := store.Evolve(context.Background(), e, 20)
	assert.True(t, apperror.IsInvariantViolation(err), "no row matched")
	assert.Equal(t, entity.Forever, e.ValidUntil)

	require.Len(t, backend.stmts, 1)
	assert.Equal(t,
		"UPDATE journal_entries SET valid_until = $1 WHERE record_id = $2 AND owner_id = $3 AND valid_until = $4 AND valid_from < $5",
		backend.stmts[0].sql)
	assert.Equal(t, []any{int64(20), int64(4), owner.String(), entity.Forever, int64(20)}, backend.stmts[0].args)
}

func TestGet_NotFoundCarriesKey(t *testing.T) {
	store, _ := newRecordingStore(t)
	_, err := store.Get(context.Background(), id.New(), Key{"ref_id": 1}, 5)
	require.True(t, apperror.IsNotFound(err))
	appErr, _ := apperror.AsAppError(err)
	assert.Equal(t, int64(5), appErr.Details["at"])
}
