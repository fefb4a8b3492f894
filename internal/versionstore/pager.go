package versionstore

import (
	"context"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
	"lifeline/internal/core/tx"
	"lifeline/internal/domain/selector"
)

// PageFunc fetches the page following cur at snapshot `at`.
type PageFunc[T any] func(ctx context.Context, cur Cursor, at int64) ([]T, error)

// RetrieveAll drives fetch until a page comes back empty or shorter than
// pageSize. Pages are concatenated as returned; next derives the cursor of
// the following page from the last element of the current one.
func RetrieveAll[T any](ctx context.Context, at int64, pageSize int, start Cursor, fetch PageFunc[T], next func(T) Cursor) ([]T, error) {
	if pageSize <= 0 {
		return nil, apperror.NewQueryError("page size must be positive").WithDetail("page_size", pageSize)
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var all []T
	cur := start
	for {
		page, err := fetch(ctx, cur, at)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) == 0 || len(page) < pageSize {
			return all, nil
		}
		cur = next(page[len(page)-1])
	}
}

// RetrieveAllForward returns the whole live set ascending by the ordering key.
func (s *Store[T]) RetrieveAllForward(ctx context.Context, owner id.ID, at int64, pageSize int) ([]T, error) {
	fetch := func(ctx context.Context, cur Cursor, at int64) ([]T, error) {
		return s.GetAllForward(ctx, owner, at, cur, pageSize)
	}
	return s.retrieve(ctx, at, pageSize, fetch, s.def.OrderBy)
}

// RetrieveAllBackward returns the whole live set descending by the ordering key.
func (s *Store[T]) RetrieveAllBackward(ctx context.Context, owner id.ID, at int64, pageSize int) ([]T, error) {
	fetch := func(ctx context.Context, cur Cursor, at int64) ([]T, error) {
		return s.GetAllBackward(ctx, owner, at, cur, pageSize)
	}
	return s.retrieve(ctx, at, pageSize, fetch, s.def.OrderBy)
}

// RetrieveAllMatching returns every live version matching p.
func (s *Store[T]) RetrieveAllMatching(ctx context.Context, owner id.ID, at int64, p selector.Predicate, pageSize int) ([]T, error) {
	fetch := func(ctx context.Context, cur Cursor, at int64) ([]T, error) {
		return s.AccessQuery(ctx, owner, at, Query{Predicate: p, Cursor: cur, Limit: pageSize})
	}
	return s.retrieve(ctx, at, pageSize, fetch, s.def.PredicateOrder())
}

// retrieve pages through fetch inside one read-only transaction when the
// backend offers them, so that every page reads the same state.
func (s *Store[T]) retrieve(ctx context.Context, at int64, pageSize int, fetch PageFunc[T], column string) ([]T, error) {
	ro, ok := s.backend.(tx.ReadOnlyManager)
	if !ok {
		return RetrieveAll(ctx, at, pageSize, Start, fetch, s.nextOn(column))
	}

	var all []T
	err := ro.ReadOnly(ctx, func(ctx context.Context) error {
		var err error
		all, err = RetrieveAll(ctx, at, pageSize, Start, fetch, s.nextOn(column))
		return err
	})
	return all, err
}

func (s *Store[T]) nextOn(column string) func(T) Cursor {
	return func(e T) Cursor {
		return s.CursorOf(e, column)
	}
}
