package syncer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
	"lifeline/internal/domain/assets"
	"lifeline/internal/domain/syncer"
	"lifeline/internal/infrastructure/storage/sqlite"
	"lifeline/internal/versionstore"
)

type fixture struct {
	store *versionstore.Store[*assets.Asset]
	masks *security.InMemoryMasks
	sync  *syncer.Synchronizer[*assets.Asset]
	owner id.ID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, sqlite.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	backend := sqlite.NewBackend(db)
	require.NoError(t, versionstore.EnsureSchema(ctx, backend, assets.Def()))

	store, err := versionstore.New(backend, assets.Def(), assets.New)
	require.NoError(t, err)

	masks := security.NewInMemoryMasks()
	owner := id.New()
	masks.Grant(owner, assets.Category)

	return fixture{
		store: store,
		masks: masks,
		sync:  syncer.New(store, masks).WithPageSize(2),
		owner: owner,
	}
}

func asset(itemID, location, quantity int64) *assets.Asset {
	return &assets.Asset{
		ItemID:       itemID,
		LocationID:   location,
		LocationFlag: "Hangar",
		TypeID:       34,
		Quantity:     quantity,
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.sync.Apply(ctx, f.owner, 100, []*assets.Asset{
		asset(1, 60003760, 10),
		asset(2, 60003760, 20),
		asset(3, 60008494, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, syncer.Result{Created: 3}, res)

	res, err = f.sync.Apply(ctx, f.owner, 200, []*assets.Asset{
		asset(1, 60003760, 10), // unchanged
		asset(2, 60003760, 25), // quantity changed
		asset(4, 60003760, 1),  // new
	})
	require.NoError(t, err)
	assert.Equal(t, syncer.Result{Created: 1, Superseded: 1, Unchanged: 1, Retired: 1}, res)

	at150, err := f.store.RetrieveAllForward(ctx, f.owner, 150, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 20, 30}, quantities(at150))

	at200, err := f.store.RetrieveAllForward(ctx, f.owner, 200, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 25, 1}, quantities(at200))

	history, err := f.store.History(ctx, f.owner, versionstore.Key{"item_id": int64(2)})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(200), history[0].ValidUntil)

	unchanged, err := f.store.History(ctx, f.owner, versionstore.Key{"item_id": int64(1)})
	require.NoError(t, err)
	assert.Len(t, unchanged, 1, "identical payload keeps the open version")
}

func TestApply_ReopensRetiredIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sync.Apply(ctx, f.owner, 100, []*assets.Asset{asset(1, 1, 5)})
	require.NoError(t, err)

	res, err := f.sync.Apply(ctx, f.owner, 200, nil)
	require.NoError(t, err)
	assert.Equal(t, syncer.Result{Retired: 1}, res)

	res, err = f.sync.Apply(ctx, f.owner, 300, []*assets.Asset{asset(1, 1, 5)})
	require.NoError(t, err)
	assert.Equal(t, syncer.Result{Created: 1}, res)

	_, err = f.store.Get(ctx, f.owner, versionstore.Key{"item_id": int64(1)}, 250)
	assert.True(t, apperror.IsNotFound(err))
}

func TestApply_RequiresAccessCategory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	stranger := id.New()

	_, err := f.sync.Apply(ctx, stranger, 100, []*assets.Asset{asset(1, 1, 1)})
	assert.True(t, apperror.IsForbidden(err))

	all, err := f.store.GetAll(ctx, stranger, 100)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestApply_RejectsInvalidSnapshot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sync.Apply(ctx, f.owner, 100, []*assets.Asset{asset(1, 1, 1), asset(1, 2, 1)})
	assert.Error(t, err, "duplicate natural key")

	_, err = f.sync.Apply(ctx, f.owner, 100, []*assets.Asset{asset(1, 1, -5)})
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeValidation, appErr.Code)
	assert.Equal(t, 0, appErr.Details["index"])
}

func TestApply_HookErrorRollsBackBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sync.Apply(ctx, f.owner, 100, []*assets.Asset{asset(1, 1, 1)})
	require.NoError(t, err)

	var seen []int64
	f.sync.Hooks().On(syncer.AfterCreate, func(ctx context.Context, a *assets.Asset) error {
		seen = append(seen, a.ItemID)
		return nil
	})
	f.sync.Hooks().On(syncer.AfterRetire, func(ctx context.Context, a *assets.Asset) error {
		return assert.AnError
	})

	_, err = f.sync.Apply(ctx, f.owner, 200, []*assets.Asset{asset(2, 1, 1)})
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []int64{2}, seen)

	live, err := f.store.GetAll(ctx, f.owner, 300)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, int64(1), live[0].ItemID, "neither the create nor the retire was kept")
}

func quantities(items []*assets.Asset) []int64 {
	out := make([]int64, len(items))
	for i, a := range items {
		out[i] = a.Quantity
	}
	return out
}
