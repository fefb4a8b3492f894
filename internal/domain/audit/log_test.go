package audit_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/syncer"
	"lifeline/internal/infrastructure/storage/sqlite"
)

func newLog(t *testing.T) (*audit.Log, *sqlite.Backend) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backend := sqlite.NewBackend(db)
	require.NoError(t, audit.EnsureSchema(ctx, backend))
	require.NoError(t, audit.EnsureSchema(ctx, backend), "idempotent")

	log, err := audit.NewLog(backend)
	require.NoError(t, err)
	return log, backend
}

func TestLog_RecordAndList(t *testing.T) {
	log, _ := newLog(t)
	log.WithCompressThreshold(64)

	owner := id.New()
	ctx := appctx.WithPrincipal(context.Background(), &appctx.Principal{Subject: "poller-1", OwnerID: owner})
	ctx = appctx.WithTrace(ctx, &appctx.TraceContext{TraceID: "t", RequestID: "req-1"})

	small := []byte(`[{"itemId": 1}]`)
	large := []byte("[" + strings.Repeat(`{"itemId": 1, "locationFlag": "Hangar"},`, 50) + `{"itemId": 2}]`)

	first := &audit.Entry{OwnerID: owner, Entity: "assets", At: 100, Items: 1,
		Result: syncer.Result{Created: 1}, Payload: small}
	require.NoError(t, log.Record(ctx, first))
	assert.NotZero(t, first.ID)
	assert.Equal(t, audit.CompressionNone, first.Compression)
	assert.Equal(t, "poller-1", first.Subject)
	assert.Equal(t, "req-1", first.RequestID)

	second := &audit.Entry{OwnerID: owner, Entity: "assets", At: 200, Items: 51,
		Result: syncer.Result{Created: 1, Unchanged: 1}, Payload: large}
	require.NoError(t, log.Record(ctx, second))
	assert.Equal(t, audit.CompressionZstd, second.Compression)

	other := &audit.Entry{OwnerID: owner, Entity: "contacts", At: 300, Payload: small}
	require.NoError(t, log.Record(ctx, other))

	entries, err := log.List(ctx, owner, "assets", 10, true)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, second.ID, entries[0].ID, "newest first")
	assert.Equal(t, int64(200), entries[0].At)
	assert.Equal(t, 1, entries[0].Unchanged)
	assert.Equal(t, string(large), string(entries[0].Snapshot))
	assert.Nil(t, entries[0].Payload)
	assert.Equal(t, string(small), string(entries[1].Snapshot))
	assert.Equal(t, "poller-1", entries[1].Subject)

	t.Run("without payload", func(t *testing.T) {
		entries, err := log.List(ctx, owner, "assets", 1, false)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Nil(t, entries[0].Snapshot)
	})

	t.Run("other owner", func(t *testing.T) {
		entries, err := log.List(ctx, id.New(), "assets", 10, false)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("limit", func(t *testing.T) {
		_, err := log.List(ctx, owner, "assets", 0, false)
		assert.True(t, apperror.IsQueryError(err))
	})
}

func TestLog_RecordJoinsTransaction(t *testing.T) {
	log, backend := newLog(t)
	ctx := context.Background()
	owner := id.New()

	err := backend.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, log.Record(ctx, &audit.Entry{OwnerID: owner, Entity: "assets", Payload: []byte(`[]`)}))
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	entries, err := log.List(ctx, owner, "assets", 10, false)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateTableSQL(t *testing.T) {
	stmts := audit.CreateTableSQL(sqlite.Dialect)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "audit_id INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.Contains(t, stmts[0], "payload BLOB NOT NULL")
	assert.Equal(t, "CREATE INDEX IF NOT EXISTS sync_audit_owner_idx ON sync_audit (owner_id, entity, audit_id)", stmts[1])
}
