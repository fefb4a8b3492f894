// Package metadata describes tracked entity types: natural key, ordering key,
// filterable columns and the access category that gates synchronization.
package metadata

import (
	"fmt"
	"sort"
	"sync"
)

// AccessCategory names the access-mask bit an owner needs for an entity type.
// The store never enforces it; callers consult security.MaskProvider.
type AccessCategory string

// EntityDef describes a tracked entity type.
type EntityDef struct {
	Name      string `json:"name"`
	Label     string `json:"label,omitempty"`
	TableName string `json:"-"`

	// NaturalKey lists the columns identifying what a version is a version of.
	NaturalKey []string `json:"naturalKey"`

	// OrderBy is the keyset pagination column of getAllForward/getAllBackward.
	OrderBy string `json:"orderBy"`

	// QueryOrder is the pagination column of predicate queries (record_id when empty).
	QueryOrder string `json:"queryOrder,omitempty"`

	// Discriminators are the non-key columns accepted by GetAllBy.
	Discriminators []string `json:"discriminators,omitempty"`

	AccessCategory AccessCategory `json:"accessCategory"`

	Fields []FieldDef `json:"fields"`
}

// Field resolves a column name, including the version columns.
func (d EntityDef) Field(column string) (FieldDef, bool) {
	switch column {
	case "record_id", "valid_from", "valid_until":
		return FieldDef{Name: column, JSONName: column, Type: TypeInteger}, true
	case "owner_id":
		return FieldDef{Name: column, JSONName: column, Type: TypeReference}, true
	}
	for _, f := range d.Fields {
		if f.Name == column {
			return f, true
		}
	}
	return FieldDef{}, false
}

// PredicateOrder returns the pagination column for predicate queries.
func (d EntityDef) PredicateOrder() string {
	if d.QueryOrder == "" {
		return "record_id"
	}
	return d.QueryOrder
}

// IsDiscriminator reports whether column may be used with GetAllBy.
func (d EntityDef) IsDiscriminator(column string) bool {
	for _, c := range d.Discriminators {
		if c == column {
			return true
		}
	}
	return false
}

// Validate checks that every referenced column is declared.
func (d EntityDef) Validate() error {
	if d.Name == "" || d.TableName == "" {
		return fmt.Errorf("entity definition needs name and table")
	}
	if len(d.NaturalKey) == 0 {
		return fmt.Errorf("%s: natural key is empty", d.Name)
	}
	for _, col := range d.NaturalKey {
		if _, ok := d.Field(col); !ok {
			return fmt.Errorf("%s: natural key column %q is not a field", d.Name, col)
		}
	}
	orderCols := []string{d.OrderBy, d.PredicateOrder()}
	for _, col := range orderCols {
		f, ok := d.Field(col)
		if !ok {
			return fmt.Errorf("%s: ordering column %q is not a field", d.Name, col)
		}
		if !f.Type.Ordered() {
			return fmt.Errorf("%s: ordering column %q has unordered type %s", d.Name, col, f.Type)
		}
	}
	for _, col := range d.Discriminators {
		if _, ok := d.Field(col); !ok {
			return fmt.Errorf("%s: discriminator %q is not a field", d.Name, col)
		}
	}
	if d.AccessCategory == "" {
		return fmt.Errorf("%s: access category is required", d.Name)
	}
	return nil
}

// Registry stores entity definitions.
type Registry struct {
	mu       sync.RWMutex
	entities map[string]EntityDef
}

func NewRegistry() *Registry {
	return &Registry{
		entities: make(map[string]EntityDef),
	}
}

// Register validates and stores def. Names are unique.
func (r *Registry) Register(def EntityDef) error {
	if err := def.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entities[def.Name]; exists {
		return fmt.Errorf("entity %q already registered", def.Name)
	}
	r.entities[def.Name] = def
	return nil
}

// MustRegister is Register for static descriptor tables.
func (r *Registry) MustRegister(def EntityDef) {
	if err := r.Register(def); err != nil {
		panic(err)
	}
}

func (r *Registry) Get(name string) (EntityDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.entities[name]
	return d, ok
}

// List returns definitions sorted by name.
func (r *Registry) List() []EntityDef {
	r.mu.RLock()
	list := make([]EntityDef, 0, len(r.entities))
	for _, def := range r.entities {
		list = append(list, def)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
