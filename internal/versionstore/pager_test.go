package versionstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
)

// sliceFetch pages over a sorted slice with scalar cursors.
func sliceFetch(data []int, calls *int) PageFunc[int] {
	return func(_ context.Context, cur Cursor, _ int64) ([]int, error) {
		*calls++
		var page []int
		for _, v := range data {
			if cur.Key != nil && v <= cur.Key.(int) {
				continue
			}
			page = append(page, v)
			if len(page) == 2 {
				break
			}
		}
		return page, nil
	}
}

func TestRetrieveAll(t *testing.T) {
	next := func(v int) Cursor { return After(v) }

	tests := []struct {
		name      string
		data      []int
		wantCalls int
	}{
		{"empty", nil, 1},
		{"short first page", []int{1}, 1},
		{"exact multiple needs an empty page", []int{1, 2, 3, 4}, 3},
		{"odd length", []int{1, 2, 3, 4, 5}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			got, err := RetrieveAll(context.Background(), 0, 2, Start, sliceFetch(tt.data, &calls), next)
			require.NoError(t, err)
			assert.Equal(t, len(tt.data), len(got))
			assert.Equal(t, tt.wantCalls, calls)
			if len(tt.data) > 0 {
				assert.Equal(t, tt.data, got)
			}
		})
	}
}

func TestRetrieveAll_PropagatesError(t *testing.T) {
	fetch := func(context.Context, Cursor, int64) ([]int, error) {
		return nil, assert.AnError
	}
	_, err := RetrieveAll(context.Background(), 0, 2, Start, fetch, func(int) Cursor { return Start })
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRetrieveAll_PassesSnapshot(t *testing.T) {
	var seen []int64
	fetch := func(_ context.Context, _ Cursor, at int64) ([]int, error) {
		seen = append(seen, at)
		return nil, nil
	}
	_, err := RetrieveAll(context.Background(), 8888, 2, Start, fetch, func(int) Cursor { return Start })
	require.NoError(t, err)
	assert.Equal(t, []int64{8888}, seen)
}

func TestRetrieveAll_RejectsNonPositivePageSize(t *testing.T) {
	calls := 0
	for _, size := range []int{0, -1} {
		_, err := RetrieveAll(context.Background(), 0, size, Start, sliceFetch([]int{1, 2, 3}, &calls), func(v int) Cursor { return After(v) })
		assert.True(t, apperror.IsQueryError(err), "size %d", size)
	}
	assert.Zero(t, calls)
}
