// Package versionstore persists successive versions of externally sourced
// entities per owner and answers point-in-time and paged queries over them.
//
// Every version carries a half-open validity interval [valid_from, valid_until).
// For one (owner, natural key) the intervals never overlap and at most one is
// open (valid_until = entity.Forever).
package versionstore

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"go.opentelemetry.io/otel"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/core/id"
	"lifeline/internal/core/storage"
	"lifeline/internal/metadata"
	"lifeline/pkg/logger"
)

var tracer = otel.Tracer("lifeline/versionstore")

// Key holds natural key values by column name.
type Key map[string]any

// Store is the version store of one entity type.
// T is a pointer to a struct embedding entity.BaseVersion.
type Store[T entity.Versioned] struct {
	backend    storage.Backend
	def        metadata.EntityDef
	newFn      func() T
	selectCols []string
	insertCols []string
}

// New creates a store for def over backend.
// newFn must return a fresh, non-nil T.
func New[T entity.Versioned](backend storage.Backend, def metadata.EntityDef, newFn func() T) (*Store[T], error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	cols := ExtractDBColumns[T]()
	known := make(map[string]bool, len(cols))
	for _, col := range cols {
		known[col] = true
	}
	for _, col := range entity.BaseColumns {
		if !known[col] {
			return nil, fmt.Errorf("%s: entity does not embed entity.BaseVersion", def.Name)
		}
	}
	for _, f := range def.Fields {
		if !known[f.Name] {
			return nil, fmt.Errorf("%s: field %q has no db column", def.Name, f.Name)
		}
	}

	insertCols := make([]string, 0, len(cols))
	for _, col := range cols {
		if col != "record_id" {
			insertCols = append(insertCols, col)
		}
	}

	return &Store[T]{
		backend:    backend,
		def:        def,
		newFn:      newFn,
		selectCols: cols,
		insertCols: insertCols,
	}, nil
}

// InTransaction runs fn in one storage transaction; store calls made with
// the ctx passed to fn join it.
func (s *Store[T]) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return s.backend.RunInTransaction(ctx, fn)
}

// Def returns the entity descriptor.
func (s *Store[T]) Def() metadata.EntityDef {
	return s.def
}

func (s *Store[T]) builder() squirrel.StatementBuilderType {
	return s.backend.Dialect().Builder()
}

// ownerSelect selects every version of owner.
func (s *Store[T]) ownerSelect(owner id.ID) squirrel.SelectBuilder {
	return s.builder().
		Select(s.selectCols...).
		From(s.def.TableName).
		Where(squirrel.Eq{"owner_id": owner})
}

// liveSelect selects the versions of owner that are live at the snapshot.
// Every read path starts here so the time filter precedes all others.
func (s *Store[T]) liveSelect(owner id.ID, at int64) squirrel.SelectBuilder {
	return s.ownerSelect(owner).Where(liveAt(at))
}

// liveAt renders valid_from <= at < valid_until.
func liveAt(at int64) squirrel.And {
	return squirrel.And{
		squirrel.LtOrEq{"valid_from": at},
		squirrel.Gt{"valid_until": at},
	}
}

// keyWhere validates a natural key and renders its equality predicate.
func (s *Store[T]) keyWhere(key Key) (squirrel.Eq, error) {
	if len(key) != len(s.def.NaturalKey) {
		return nil, apperror.NewQueryError("natural key does not match entity definition").
			WithDetail("entity", s.def.Name).
			WithDetail("expected", s.def.NaturalKey)
	}
	eq := make(squirrel.Eq, len(key))
	for _, col := range s.def.NaturalKey {
		raw, ok := key[col]
		if !ok {
			return nil, apperror.NewQueryError("natural key column missing").
				WithDetail("entity", s.def.Name).
				WithDetail("field", col)
		}
		f, _ := s.def.Field(col)
		v, err := f.Coerce(raw)
		if err != nil {
			return nil, err
		}
		eq[col] = v
	}
	return eq, nil
}

// KeyOf extracts the natural key of e.
func (s *Store[T]) KeyOf(e T) Key {
	row := StructToMap(e)
	key := make(Key, len(s.def.NaturalKey))
	for _, col := range s.def.NaturalKey {
		key[col] = row[col]
	}
	return key
}

// ---------------------------------------------------------------------------
// Write path
// ---------------------------------------------------------------------------

// Create attaches e to owner as an open version starting at validFrom.
// Fails with an invariant violation when the identity already has an open
// version or any stored version overlaps [validFrom, +inf).
func (s *Store[T]) Create(ctx context.Context, owner id.ID, validFrom int64, e T) (T, error) {
	if validFrom == entity.Forever {
		var zero T
		return zero, apperror.NewInvariantViolation(s.def.Name, "version cannot start at the open sentinel")
	}
	b := e.Base()
	prev := *b
	b.Attach(owner, validFrom)
	if err := s.insert(ctx, e); err != nil {
		*b = prev
		var zero T
		return zero, err
	}
	return e, nil
}

// Evolve closes the open version e at validUntil and returns it.
// It never inserts a successor; see Supersede.
func (s *Store[T]) Evolve(ctx context.Context, e T, validUntil int64) (T, error) {
	var zero T
	b := e.Base()
	if b.RecordID == 0 {
		return zero, apperror.NewInvariantViolation(s.def.Name, "version was never persisted")
	}
	if err := b.CheckClose(validUntil); err != nil {
		return zero, err
	}

	q := s.builder().
		Update(s.def.TableName).
		Set("valid_until", validUntil).
		Where(squirrel.Eq{"record_id": b.RecordID}).
		Where(squirrel.Eq{"owner_id": b.OwnerID}).
		Where(squirrel.Eq{"valid_until": entity.Forever}).
		Where(squirrel.Lt{"valid_from": validUntil})

	sql, args, err := q.ToSql()
	if err != nil {
		return zero, fmt.Errorf("build close: %w", err)
	}

	n, err := s.backend.Exec(ctx, sql, args...)
	if err != nil {
		return zero, fmt.Errorf("close %s: %w", s.def.TableName, err)
	}
	if n == 0 {
		return zero, apperror.NewInvariantViolation(s.def.Name, "version is not open in storage").
			WithDetail("record_id", b.RecordID)
	}

	b.ValidUntil = validUntil
	logger.Debug(ctx, "version closed",
		"entity", s.def.Name,
		"record_id", b.RecordID,
		"valid_until", validUntil,
	)
	return e, nil
}

// Retire closes e without a successor: the identity disappeared upstream.
// A later Create for the same natural key reopens the identity.
func (s *Store[T]) Retire(ctx context.Context, e T, at int64) (T, error) {
	return s.Evolve(ctx, e, at)
}

// Supersede closes old at `at` and inserts next as the open successor, in one
// transaction. Readers observe either old or next as live, never neither.
func (s *Store[T]) Supersede(ctx context.Context, old T, at int64, next T) (closed T, created T, err error) {
	ctx, span := tracer.Start(ctx, "versionstore.supersede")
	defer span.End()

	oldBase := old.Base()
	prevUntil := oldBase.ValidUntil
	owner := oldBase.OwnerID

	err = s.backend.RunInTransaction(ctx, func(ctx context.Context) error {
		if !SameKey(s.KeyOf(old), s.KeyOf(next)) {
			return apperror.NewInvariantViolation(s.def.Name, "successor has a different natural key").
				WithDetail("record_id", oldBase.RecordID)
		}
		var txErr error
		if closed, txErr = s.Evolve(ctx, old, at); txErr != nil {
			return txErr
		}
		if created, txErr = s.Create(ctx, owner, at, next); txErr != nil {
			return txErr
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		oldBase.ValidUntil = prevUntil
		var zero T
		return zero, zero, err
	}
	return closed, created, nil
}

// Persist is an idempotent upsert of a fully formed version.
// Without a RecordID the version is inserted. With one, the stored row must
// carry the same payload; only closing an open interval is written.
func (s *Store[T]) Persist(ctx context.Context, e T) (T, error) {
	var zero T
	b := e.Base()
	if b.RecordID == 0 {
		if err := s.insert(ctx, e); err != nil {
			return zero, err
		}
		return e, nil
	}

	err := s.backend.RunInTransaction(ctx, func(ctx context.Context) error {
		stored, err := s.byRecordID(ctx, b.OwnerID, b.RecordID, true)
		if err != nil {
			return err
		}
		sb := stored.Base()
		if !SamePayload(stored, e) || sb.ValidFrom != b.ValidFrom {
			return apperror.NewInvariantViolation(s.def.Name, "stored version differs; payload and valid_from are immutable").
				WithDetail("record_id", b.RecordID)
		}
		if sb.ValidUntil == b.ValidUntil {
			return nil
		}
		if err := sb.CheckClose(b.ValidUntil); err != nil {
			return err
		}
		_, err = s.Evolve(ctx, stored, b.ValidUntil)
		return err
	})
	if err != nil {
		return zero, err
	}
	return e, nil
}

// insert writes a new version row after checking both interval invariants.
func (s *Store[T]) insert(ctx context.Context, e T) error {
	b := e.Base()
	if err := b.CheckInterval(); err != nil {
		return err
	}

	return s.backend.RunInTransaction(ctx, func(ctx context.Context) error {
		keyEq, err := s.keyWhere(s.KeyOf(e))
		if err != nil {
			return err
		}

		if b.IsOpen() {
			open, found, err := s.findOpen(ctx, b.OwnerID, keyEq)
			if err != nil {
				return err
			}
			if found {
				return apperror.NewInvariantViolation(s.def.Name, "an open version already exists").
					WithDetail("record_id", open.Base().RecordID).
					WithDetail("valid_from", open.Base().ValidFrom)
			}
		}

		overlaps, err := s.countOverlaps(ctx, b.OwnerID, keyEq, b.ValidFrom, b.ValidUntil)
		if err != nil {
			return err
		}
		if overlaps > 0 {
			return apperror.NewInvariantViolation(s.def.Name, "interval overlaps a stored version").
				WithDetail("valid_from", b.ValidFrom).
				WithDetail("valid_until", b.ValidUntil)
		}

		data := StructToMap(e)
		values := make(map[string]any, len(s.insertCols))
		for _, col := range s.insertCols {
			values[col] = data[col]
		}

		q := s.builder().
			Insert(s.def.TableName).
			SetMap(values).
			Suffix("RETURNING record_id")

		sql, args, err := q.ToSql()
		if err != nil {
			return fmt.Errorf("build insert: %w", err)
		}

		var recordID int64
		if err := s.backend.Get(ctx, &recordID, sql, args...); err != nil {
			if s.backend.IsUniqueViolation(err) {
				return apperror.NewInvariantViolation(s.def.Name, "an open version already exists").WithCause(err)
			}
			return fmt.Errorf("insert %s: %w", s.def.TableName, err)
		}
		b.RecordID = recordID

		logger.Debug(ctx, "version inserted",
			"entity", s.def.Name,
			"record_id", recordID,
			"valid_from", b.ValidFrom,
			"valid_until", b.ValidUntil,
		)
		return nil
	})
}

// findOpen returns the open version of a key; found is false when there is none.
func (s *Store[T]) findOpen(ctx context.Context, owner id.ID, keyEq squirrel.Eq) (open T, found bool, err error) {
	var zero T
	q := s.ownerSelect(owner).
		Where(keyEq).
		Where(squirrel.Eq{"valid_until": entity.Forever}).
		Limit(1)
	if s.backend.Dialect().RowLocks {
		q = q.Suffix("FOR UPDATE")
	}

	open, err = s.getOne(ctx, q)
	if err != nil {
		if s.backend.IsNoRows(err) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("find open %s: %w", s.def.TableName, err)
	}
	return open, true, nil
}

func (s *Store[T]) countOverlaps(ctx context.Context, owner id.ID, keyEq squirrel.Eq, from, until int64) (int64, error) {
	q := s.builder().
		Select("COUNT(*)").
		From(s.def.TableName).
		Where(squirrel.Eq{"owner_id": owner}).
		Where(keyEq).
		Where(squirrel.Lt{"valid_from": until}).
		Where(squirrel.Gt{"valid_until": from})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build overlap check: %w", err)
	}

	var n int64
	if err := s.backend.Get(ctx, &n, sql, args...); err != nil {
		return 0, fmt.Errorf("overlap check %s: %w", s.def.TableName, err)
	}
	return n, nil
}

func (s *Store[T]) byRecordID(ctx context.Context, owner id.ID, recordID int64, lock bool) (T, error) {
	var zero T
	q := s.ownerSelect(owner).Where(squirrel.Eq{"record_id": recordID})
	if lock && s.backend.Dialect().RowLocks {
		q = q.Suffix("FOR UPDATE")
	}

	found, err := s.getOne(ctx, q)
	if err != nil {
		if s.backend.IsNoRows(err) {
			return zero, apperror.NewNotFound(s.def.Name, recordID)
		}
		return zero, fmt.Errorf("get %s by record id: %w", s.def.TableName, err)
	}
	return found, nil
}

func (s *Store[T]) getOne(ctx context.Context, q squirrel.SelectBuilder) (T, error) {
	var zero T
	sql, args, err := q.ToSql()
	if err != nil {
		return zero, fmt.Errorf("build query: %w", err)
	}
	e := s.newFn()
	if err := s.backend.Get(ctx, e, sql, args...); err != nil {
		return zero, err
	}
	return e, nil
}

func (s *Store[T]) selectAll(ctx context.Context, q squirrel.SelectBuilder, op string) ([]T, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var items []T
	if err := s.backend.Select(ctx, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, s.def.TableName, err)
	}
	return items, nil
}

// SameKey compares two natural keys column by column.
func SameKey(a, b Key) bool {
	if len(a) != len(b) {
		return false
	}
	for col, va := range a {
		vb, ok := b[col]
		if !ok || !valuesEqual(va, vb) {
			return false
		}
	}
	return true
}
