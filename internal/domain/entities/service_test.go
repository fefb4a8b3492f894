package entities_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
	"lifeline/internal/domain/assets"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/entities"
	"lifeline/internal/domain/selector"
	"lifeline/internal/infrastructure/storage/sqlite"
	"lifeline/internal/versionstore"
)

func newCatalog(t *testing.T) *entities.Catalog {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backend := sqlite.NewBackend(db)
	require.NoError(t, versionstore.EnsureSchema(ctx, backend, entities.Defs()...))
	require.NoError(t, audit.EnsureSchema(ctx, backend))

	log, err := audit.NewLog(backend)
	require.NoError(t, err)

	c, err := entities.Setup(backend, security.AllowAll{}, log)
	require.NoError(t, err)
	return c
}

const snapshot = `[
	{"itemId": 1, "locationId": 60003760, "locationFlag": "Hangar", "typeId": 34, "quantity": 100},
	{"itemId": 2, "locationId": 60003760, "locationFlag": "Hangar", "typeId": 35, "quantity": 7},
	{"itemId": 3, "locationId": 60008494, "locationFlag": "Cargo", "typeId": 34, "quantity": 1, "singleton": true}
]`

func TestServices_Names(t *testing.T) {
	c := newCatalog(t)

	assert.Equal(t, []string{"assets", "contacts", "journal"}, c.Services.Names())
	assert.Len(t, c.Registry.List(), 3)

	_, err := c.Services.Lookup("ships")
	assert.True(t, apperror.IsNotFound(err))
}

func TestService_SyncAndRead(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	owner := id.New()

	svc, err := c.Services.Lookup("assets")
	require.NoError(t, err)

	res, err := svc.Sync(ctx, owner, 100, json.RawMessage(snapshot))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Created)

	got, err := svc.Get(ctx, owner, versionstore.Key{"item_id": "2"}, 150)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.(*assets.Asset).Quantity)

	t.Run("unpaged list", func(t *testing.T) {
		page, err := svc.List(ctx, owner, 150, entities.ListOptions{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Count)
		assert.Nil(t, page.Next)
	})

	t.Run("paged list", func(t *testing.T) {
		page, err := svc.List(ctx, owner, 150, entities.ListOptions{Limit: 2})
		require.NoError(t, err)
		require.Equal(t, 2, page.Count)
		require.NotNil(t, page.Next)

		rest, err := svc.List(ctx, owner, 150, entities.ListOptions{Limit: 2, Cursor: *page.Next})
		require.NoError(t, err)
		items := rest.Items.([]*assets.Asset)
		require.Len(t, items, 1)
		assert.Equal(t, int64(3), items[0].ItemID)
		assert.Nil(t, rest.Next)
	})

	t.Run("by discriminator", func(t *testing.T) {
		page, err := svc.List(ctx, owner, 150, entities.ListOptions{By: "type_id", Value: "34"})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Count)
	})

	t.Run("query", func(t *testing.T) {
		page, err := svc.Query(ctx, owner, 150, versionstore.Query{
			Predicate: selector.Predicate{
				{Field: "location_flag", Selector: selector.In("Cargo")},
			},
			Limit: 10,
		})
		require.NoError(t, err)
		items := page.Items.([]*assets.Asset)
		require.Len(t, items, 1)
		assert.Equal(t, int64(3), items[0].ItemID)
	})

	t.Run("history", func(t *testing.T) {
		_, err := svc.Sync(ctx, owner, 200, json.RawMessage(`[
			{"itemId": 1, "locationId": 60003760, "locationFlag": "Hangar", "typeId": 34, "quantity": 90}
		]`))
		require.NoError(t, err)

		h, err := svc.History(ctx, owner, versionstore.Key{"item_id": 1})
		require.NoError(t, err)
		versions := h.([]*assets.Asset)
		require.Len(t, versions, 2)
		assert.Equal(t, int64(200), versions[0].ValidUntil)
		assert.Equal(t, int64(90), versions[1].Quantity)

		none, err := svc.History(ctx, owner, versionstore.Key{"item_id": 99})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("audit", func(t *testing.T) {
		entries, err := svc.Syncs(ctx, owner, 10, true)
		require.NoError(t, err)
		require.Len(t, entries, 2)

		latest := entries[0]
		assert.Equal(t, int64(200), latest.At)
		assert.Equal(t, 1, latest.Items)
		assert.Equal(t, 1, latest.Superseded)
		assert.Equal(t, 2, latest.Retired)
		assert.Contains(t, string(latest.Snapshot), `"quantity": 90`)

		assert.Equal(t, 3, entries[1].Created)
	})
}

func TestService_SyncRejectsBadPayload(t *testing.T) {
	ctx := context.Background()
	c := newCatalog(t)
	svc, err := c.Services.Lookup("contacts")
	require.NoError(t, err)

	_, err = svc.Sync(ctx, id.New(), 100, json.RawMessage(`{"not": "a list"}`))
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Sync(ctx, id.New(), 100, json.RawMessage(`[null]`))
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.Sync(ctx, id.New(), 100, json.RawMessage(`[{"listType": "enemies", "contactId": 1}]`))
	assert.True(t, apperror.IsValidation(err))

	entries, err := svc.Syncs(ctx, id.New(), 10, false)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected snapshots leave no audit entry")
}
