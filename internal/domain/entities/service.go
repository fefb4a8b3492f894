// Package entities binds every tracked entity type to its store and
// synchronizer behind one type-erased Service, keyed by descriptor name.
package entities

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/core/id"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/syncer"
	"lifeline/internal/metadata"
	"lifeline/internal/versionstore"
)

// ListOptions selects one of the listing operations.
//
// With By set the live set is narrowed by that discriminator (unpaged).
// With neither Limit nor Cursor the whole live set is returned unpaged.
// Otherwise one keyset page is returned.
type ListOptions struct {
	By      string
	Value   string
	Cursor  versionstore.Cursor
	Limit   int
	Reverse bool
}

// Page is a listing result. Next is set when another page may follow.
type Page struct {
	Items any                  `json:"items"`
	Count int                  `json:"count"`
	Next  *versionstore.Cursor `json:"next,omitempty"`
}

// Service is the transport-facing view of one entity type.
type Service interface {
	Def() metadata.EntityDef
	Get(ctx context.Context, owner id.ID, key versionstore.Key, at int64) (any, error)
	List(ctx context.Context, owner id.ID, at int64, opts ListOptions) (Page, error)
	Query(ctx context.Context, owner id.ID, at int64, q versionstore.Query) (Page, error)
	History(ctx context.Context, owner id.ID, key versionstore.Key) (any, error)
	Sync(ctx context.Context, owner id.ID, at int64, items json.RawMessage) (syncer.Result, error)
	Syncs(ctx context.Context, owner id.ID, limit int, withPayload bool) ([]audit.Entry, error)
}

type binding[T entity.Versioned] struct {
	store *versionstore.Store[T]
	sync  *syncer.Synchronizer[T]
	audit *audit.Log
}

// Bind exposes store and sync as a Service. A nil log disables the audit.
func Bind[T entity.Versioned](store *versionstore.Store[T], sync *syncer.Synchronizer[T], log *audit.Log) Service {
	return &binding[T]{store: store, sync: sync, audit: log}
}

func (b *binding[T]) Def() metadata.EntityDef {
	return b.store.Def()
}

func (b *binding[T]) Get(ctx context.Context, owner id.ID, key versionstore.Key, at int64) (any, error) {
	return b.store.Get(ctx, owner, key, at)
}

func (b *binding[T]) List(ctx context.Context, owner id.ID, at int64, opts ListOptions) (Page, error) {
	def := b.store.Def()

	var (
		items []T
		err   error
	)
	switch {
	case opts.By != "":
		items, err = b.store.GetAllBy(ctx, owner, at, opts.By, opts.Value)
		return pageOf(items, nil), err
	case opts.Limit == 0 && opts.Cursor.Key == nil:
		items, err = b.store.GetAll(ctx, owner, at)
		return pageOf(items, nil), err
	case opts.Reverse:
		items, err = b.store.GetAllBackward(ctx, owner, at, opts.Cursor, opts.Limit)
	default:
		items, err = b.store.GetAllForward(ctx, owner, at, opts.Cursor, opts.Limit)
	}
	if err != nil {
		return Page{}, err
	}
	return pageOf(items, b.next(items, opts.Limit, def.OrderBy)), nil
}

func (b *binding[T]) Query(ctx context.Context, owner id.ID, at int64, q versionstore.Query) (Page, error) {
	items, err := b.store.AccessQuery(ctx, owner, at, q)
	if err != nil {
		return Page{}, err
	}
	return pageOf(items, b.next(items, q.Limit, b.store.Def().PredicateOrder())), nil
}

func (b *binding[T]) History(ctx context.Context, owner id.ID, key versionstore.Key) (any, error) {
	items, err := b.store.History(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (b *binding[T]) Sync(ctx context.Context, owner id.ID, at int64, raw json.RawMessage) (syncer.Result, error) {
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return syncer.Result{}, apperror.NewValidation("invalid snapshot items").
			WithDetail("entity", b.store.Def().Name).
			WithDetail("error", err.Error())
	}
	for i, item := range items {
		if v := reflect.ValueOf(item); !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil()) {
			return syncer.Result{}, apperror.NewValidation("snapshot item is null").WithDetail("index", i)
		}
	}

	var res syncer.Result
	err := b.store.InTransaction(ctx, func(ctx context.Context) error {
		var err error
		res, err = b.sync.Apply(ctx, owner, at, items)
		if err != nil || b.audit == nil {
			return err
		}
		return b.audit.Record(ctx, &audit.Entry{
			OwnerID: owner,
			Entity:  b.store.Def().Name,
			At:      at,
			Items:   len(items),
			Result:  res,
			Payload: raw,
		})
	})
	if err != nil {
		return syncer.Result{}, err
	}
	return res, nil
}

func (b *binding[T]) Syncs(ctx context.Context, owner id.ID, limit int, withPayload bool) ([]audit.Entry, error) {
	if b.audit == nil {
		return []audit.Entry{}, nil
	}
	return b.audit.List(ctx, owner, b.store.Def().Name, limit, withPayload)
}

// next returns the cursor of the following page when the page is full.
func (b *binding[T]) next(items []T, limit int, column string) *versionstore.Cursor {
	if len(items) == 0 || len(items) < min(limit, versionstore.MaxPageSize) {
		return nil
	}
	c := b.store.CursorOf(items[len(items)-1], column)
	return &c
}

func pageOf[T any](items []T, next *versionstore.Cursor) Page {
	if items == nil {
		items = []T{}
	}
	return Page{Items: items, Count: len(items), Next: next}
}

// Services maps descriptor names to services.
type Services struct {
	byName map[string]Service
}

func NewServices() *Services {
	return &Services{byName: make(map[string]Service)}
}

// Add registers svc under its descriptor name.
func (s *Services) Add(svc Service) error {
	name := svc.Def().Name
	if _, exists := s.byName[name]; exists {
		return fmt.Errorf("entity service %q already added", name)
	}
	s.byName[name] = svc
	return nil
}

// Lookup returns the service of name, or NotFound.
func (s *Services) Lookup(name string) (Service, error) {
	svc, ok := s.byName[name]
	if !ok {
		return nil, apperror.NewNotFound("entity type", name)
	}
	return svc, nil
}

// Names lists the registered names in order.
func (s *Services) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
