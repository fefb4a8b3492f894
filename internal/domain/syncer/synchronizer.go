// Package syncer applies upstream snapshots to the version store.
//
// Each Apply receives the complete upstream state of one entity type for one
// owner at time T and turns the difference with the live set into creates,
// supersessions and retirements. Callers keep one writer per (owner, type).
package syncer

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
	"lifeline/internal/versionstore"
	"lifeline/pkg/logger"
)

var tracer = otel.Tracer("lifeline/syncer")

// DefaultPageSize is the page size used to load the live set.
const DefaultPageSize = 500

// Result counts what one Apply did.
type Result struct {
	Created    int `db:"created" json:"created"`
	Superseded int `db:"superseded" json:"superseded"`
	Unchanged  int `db:"unchanged" json:"unchanged"`
	Retired    int `db:"retired" json:"retired"`
}

// Synchronizer writes snapshots of one entity type.
type Synchronizer[T entity.Versioned] struct {
	store    *versionstore.Store[T]
	masks    security.MaskProvider
	pageSize int
	hooks    *HookRegistry[T]
}

// New creates a synchronizer over store, gated by masks.
func New[T entity.Versioned](store *versionstore.Store[T], masks security.MaskProvider) *Synchronizer[T] {
	return &Synchronizer[T]{
		store:    store,
		masks:    masks,
		pageSize: DefaultPageSize,
		hooks:    NewHookRegistry[T](),
	}
}

// WithPageSize overrides the page size used to load the live set.
func (s *Synchronizer[T]) WithPageSize(n int) *Synchronizer[T] {
	if n > 0 {
		s.pageSize = n
	}
	return s
}

// Hooks returns the hook registry for external registration.
func (s *Synchronizer[T]) Hooks() *HookRegistry[T] {
	return s.hooks
}

// Apply makes snapshot the live set of owner from `at` on.
//
// Identities absent from the live set are created, changed ones are
// superseded, identical ones are left alone and live identities missing from
// the snapshot are retired. The whole batch commits or rolls back as one.
func (s *Synchronizer[T]) Apply(ctx context.Context, owner id.ID, at int64, snapshot []T) (Result, error) {
	def := s.store.Def()
	ctx, span := tracer.Start(ctx, "syncer.apply",
		trace.WithAttributes(
			attribute.String("entity", def.Name),
			attribute.Int("snapshot.size", len(snapshot)),
		))
	defer span.End()

	var res Result
	if err := security.Require(ctx, s.masks, owner, def.AccessCategory); err != nil {
		return res, err
	}

	incoming, order, err := s.index(ctx, snapshot)
	if err != nil {
		return res, err
	}

	err = s.store.InTransaction(ctx, func(ctx context.Context) error {
		live, err := s.store.RetrieveAllForward(ctx, owner, at, s.pageSize)
		if err != nil {
			return fmt.Errorf("load live %s: %w", def.Name, err)
		}

		current := make(map[string]T, len(live))
		for _, v := range live {
			current[s.keyString(v)] = v
		}

		for _, k := range order {
			next := incoming[k]
			old, exists := current[k]
			delete(current, k)

			switch {
			case !exists:
				created, err := s.store.Create(ctx, owner, at, next)
				if err != nil {
					return err
				}
				res.Created++
				if err := s.hooks.Run(ctx, AfterCreate, created); err != nil {
					return err
				}
			case versionstore.SamePayload(old, next):
				res.Unchanged++
			default:
				_, created, err := s.store.Supersede(ctx, old, at, next)
				if err != nil {
					return err
				}
				res.Superseded++
				if err := s.hooks.Run(ctx, AfterSupersede, created); err != nil {
					return err
				}
			}
		}

		for _, old := range current {
			retired, err := s.store.Retire(ctx, old, at)
			if err != nil {
				return err
			}
			res.Retired++
			if err := s.hooks.Run(ctx, AfterRetire, retired); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}

	logger.Info(ctx, "snapshot applied",
		"entity", def.Name,
		"owner_id", owner.String(),
		"at", at,
		"created", res.Created,
		"superseded", res.Superseded,
		"unchanged", res.Unchanged,
		"retired", res.Retired,
	)
	return res, nil
}

// index validates the snapshot and keys it by natural key, keeping input order.
func (s *Synchronizer[T]) index(ctx context.Context, snapshot []T) (map[string]T, []string, error) {
	byKey := make(map[string]T, len(snapshot))
	order := make([]string, 0, len(snapshot))

	for i, v := range snapshot {
		if v, ok := any(v).(entity.Validatable); ok {
			if err := v.Validate(ctx); err != nil {
				if appErr, ok := apperror.AsAppError(err); ok {
					return nil, nil, appErr.WithDetail("index", i)
				}
				return nil, nil, err
			}
		}
		k := s.keyString(v)
		if _, dup := byKey[k]; dup {
			return nil, nil, apperror.NewValidation("snapshot repeats a natural key").
				WithDetail("index", i).
				WithDetail("key", map[string]any(s.store.KeyOf(v)))
		}
		byKey[k] = v
		order = append(order, k)
	}
	return byKey, order, nil
}

func (s *Synchronizer[T]) keyString(v T) string {
	key := s.store.KeyOf(v)
	parts := make([]string, 0, len(key))
	for _, col := range s.store.Def().NaturalKey {
		parts = append(parts, fmt.Sprint(key[col]))
	}
	return strings.Join(parts, "\x1f")
}
