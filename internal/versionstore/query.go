package versionstore

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
	"lifeline/internal/domain/selector"
)

// MaxPageSize caps the limit of every paged read.
const MaxPageSize = 1000

// Cursor is a continuation token.
//
// A nil Key starts from the beginning (forward) or the end (backward).
// With RecordID == 0 the page holds rows whose ordering key is strictly past
// Key. With RecordID set, rows sharing Key are continued after RecordID, so
// pages stay complete when the ordering key repeats.
type Cursor struct {
	Key      any   `json:"key,omitempty"`
	RecordID int64 `json:"recordId,omitempty"`
}

// Start is the cursor of a fresh enumeration in either direction.
var Start = Cursor{}

// After is a scalar token: rows strictly past key.
func After(key any) Cursor {
	return Cursor{Key: key}
}

// Query is the input of AccessQuery.
type Query struct {
	Predicate selector.Predicate `json:"predicate"`
	Cursor    Cursor             `json:"cursor"`
	Limit     int                `json:"limit"`
	Reverse   bool               `json:"reverse"`
}

// Get returns the version of key that is live at `at`.
func (s *Store[T]) Get(ctx context.Context, owner id.ID, key Key, at int64) (T, error) {
	var zero T
	keyEq, err := s.keyWhere(key)
	if err != nil {
		return zero, err
	}

	found, err := s.getOne(ctx, s.liveSelect(owner, at).Where(keyEq))
	if err != nil {
		if s.backend.IsNoRows(err) {
			return zero, apperror.NewNotFound(s.def.Name, map[string]any(key)).
				WithDetail("at", at)
		}
		return zero, fmt.Errorf("get %s: %w", s.def.TableName, err)
	}
	return found, nil
}

// GetAll returns every version of owner live at `at`.
func (s *Store[T]) GetAll(ctx context.Context, owner id.ID, at int64) ([]T, error) {
	q := s.liveSelect(owner, at).OrderBy(orderClause(s.def.OrderBy, false)...)
	return s.selectAll(ctx, q, "get all")
}

// GetAllBy narrows GetAll by one discriminator column.
func (s *Store[T]) GetAllBy(ctx context.Context, owner id.ID, at int64, field string, value any) ([]T, error) {
	if !s.def.IsDiscriminator(field) {
		return nil, apperror.NewQueryError("field is not a discriminator").
			WithDetail("entity", s.def.Name).
			WithDetail("field", field)
	}
	f, _ := s.def.Field(field)
	v, err := f.Coerce(value)
	if err != nil {
		return nil, err
	}

	q := s.liveSelect(owner, at).
		Where(squirrel.Eq{field: v}).
		OrderBy(orderClause(s.def.OrderBy, false)...)
	return s.selectAll(ctx, q, "get all by "+field)
}

// GetAllForward pages ascending by the ordering key.
func (s *Store[T]) GetAllForward(ctx context.Context, owner id.ID, at int64, cur Cursor, limit int) ([]T, error) {
	return s.page(ctx, s.liveSelect(owner, at), s.def.OrderBy, cur, limit, false)
}

// GetAllBackward pages descending by the ordering key.
func (s *Store[T]) GetAllBackward(ctx context.Context, owner id.ID, at int64, cur Cursor, limit int) ([]T, error) {
	return s.page(ctx, s.liveSelect(owner, at), s.def.OrderBy, cur, limit, true)
}

// AccessQuery pages the live versions matching every selector of q.
// Fields must be declared columns; owner_id is fixed by the owner argument.
func (s *Store[T]) AccessQuery(ctx context.Context, owner id.ID, at int64, q Query) ([]T, error) {
	pred, err := s.bindPredicate(q.Predicate)
	if err != nil {
		return nil, err
	}

	sb := s.liveSelect(owner, at)
	if where := pred.Where(); len(where) > 0 {
		sb = sb.Where(where)
	}
	return s.page(ctx, sb, s.def.PredicateOrder(), q.Cursor, q.Limit, q.Reverse)
}

// History returns every version of key, oldest first, whatever its interval.
func (s *Store[T]) History(ctx context.Context, owner id.ID, key Key) ([]T, error) {
	keyEq, err := s.keyWhere(key)
	if err != nil {
		return nil, err
	}
	q := s.ownerSelect(owner).
		Where(keyEq).
		OrderBy("valid_from ASC", "record_id ASC")
	return s.selectAll(ctx, q, "history")
}

// CursorOf returns the composite cursor continuing after e on column.
func (s *Store[T]) CursorOf(e T, column string) Cursor {
	row := StructToMap(e)
	return Cursor{Key: row[column], RecordID: e.Base().RecordID}
}

// bindPredicate validates the selectors and coerces their literals to the
// column types, rejecting unknown fields before any SQL is built.
func (s *Store[T]) bindPredicate(p selector.Predicate) (selector.Predicate, error) {
	if err := p.CheckShape(); err != nil {
		return nil, err
	}

	bound := make(selector.Predicate, 0, len(p))
	for _, item := range p {
		if item.Field == "owner_id" {
			return nil, apperror.NewQueryError("owner_id cannot be selected").
				WithDetail("field", item.Field)
		}
		f, ok := s.def.Field(item.Field)
		if !ok {
			return nil, apperror.NewQueryError("unknown field").
				WithDetail("entity", s.def.Name).
				WithDetail("field", item.Field)
		}

		switch item.Kind {
		case selector.KindIn:
			values := make([]any, len(item.Values))
			for i, raw := range item.Values {
				v, err := f.Coerce(raw)
				if err != nil {
					return nil, err
				}
				values[i] = v
			}
			item.Selector = selector.In(values...)
		case selector.KindRange:
			if !f.Type.Ordered() {
				return nil, apperror.NewQueryError("range selector on unordered field").
					WithDetail("field", item.Field).
					WithDetail("type", string(f.Type))
			}
			low, err := f.Coerce(item.Low)
			if err != nil {
				return nil, err
			}
			high, err := f.Coerce(item.High)
			if err != nil {
				return nil, err
			}
			item.Selector = selector.Between(low, high)
			// Coercion can turn "10" and "9" into comparable numbers.
			if err := item.Validate(); err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					return nil, appErr.WithDetail("field", item.Field)
				}
				return nil, err
			}
		default:
			continue
		}
		bound = append(bound, item)
	}
	return bound, nil
}

// page applies the keyset cursor, ordering and limit to a live select.
func (s *Store[T]) page(ctx context.Context, sb squirrel.SelectBuilder, column string, cur Cursor, limit int, reverse bool) ([]T, error) {
	if limit <= 0 {
		return nil, apperror.NewQueryError("limit must be positive").WithDetail("limit", limit)
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	cond, err := s.cursorCond(column, cur, reverse)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		sb = sb.Where(cond)
	}

	sb = sb.OrderBy(orderClause(column, reverse)...).Limit(uint64(limit))
	return s.selectAll(ctx, sb, "page")
}

// cursorCond renders the continuation predicate; nil starts at the edge.
func (s *Store[T]) cursorCond(column string, cur Cursor, reverse bool) (squirrel.Sqlizer, error) {
	if cur.Key == nil {
		return nil, nil
	}

	f, ok := s.def.Field(column)
	if !ok {
		return nil, fmt.Errorf("%s: ordering column %q is not declared", s.def.Name, column)
	}
	key, err := f.Coerce(cur.Key)
	if err != nil {
		if appErr, ok := apperror.AsAppError(err); ok {
			return nil, appErr.WithDetail("cursor", true)
		}
		return nil, err
	}

	past := func(col string, v any) squirrel.Sqlizer {
		if reverse {
			return squirrel.Lt{col: v}
		}
		return squirrel.Gt{col: v}
	}

	if cur.RecordID == 0 || column == "record_id" {
		return past(column, key), nil
	}
	return squirrel.Or{
		past(column, key),
		squirrel.And{
			squirrel.Eq{column: key},
			past("record_id", cur.RecordID),
		},
	}, nil
}

func orderClause(column string, reverse bool) []string {
	dir := "ASC"
	if reverse {
		dir = "DESC"
	}
	if column == "record_id" {
		return []string{"record_id " + dir}
	}
	return []string{column + " " + dir, "record_id " + dir}
}
