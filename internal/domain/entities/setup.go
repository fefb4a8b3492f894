package entities

import (
	"fmt"

	"lifeline/internal/core/entity"
	"lifeline/internal/core/security"
	"lifeline/internal/core/storage"
	"lifeline/internal/domain/assets"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/contacts"
	"lifeline/internal/domain/journal"
	"lifeline/internal/domain/syncer"
	"lifeline/internal/metadata"
	"lifeline/internal/versionstore"
)

// Catalog is the set of tracked entity types wired to one backend.
type Catalog struct {
	Registry *metadata.Registry
	Services *Services
}

// Defs returns the descriptors of every built-in entity type.
func Defs() []metadata.EntityDef {
	return []metadata.EntityDef{
		assets.Def(),
		journal.Def(),
		contacts.Def(),
	}
}

// Setup builds a store and synchronizer for every built-in entity type.
// Applied snapshots are recorded in log unless it is nil.
func Setup(backend storage.Backend, masks security.MaskProvider, log *audit.Log) (*Catalog, error) {
	c := &Catalog{
		Registry: metadata.NewRegistry(),
		Services: NewServices(),
	}

	if err := register(c, backend, masks, log, assets.Def(), assets.New); err != nil {
		return nil, err
	}
	if err := register(c, backend, masks, log, journal.Def(), journal.New); err != nil {
		return nil, err
	}
	if err := register(c, backend, masks, log, contacts.Def(), contacts.New); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T entity.Versioned](c *Catalog, backend storage.Backend, masks security.MaskProvider, log *audit.Log, def metadata.EntityDef, newFn func() T) error {
	if err := c.Registry.Register(def); err != nil {
		return err
	}
	store, err := versionstore.New(backend, def, newFn)
	if err != nil {
		return fmt.Errorf("store %s: %w", def.Name, err)
	}
	return c.Services.Add(Bind(store, syncer.New(store, masks), log))
}
