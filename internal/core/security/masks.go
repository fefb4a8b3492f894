// Package security decides which entity categories an owner may synchronize
// and read.
package security

import (
	"context"
	"sync"

	"lifeline/internal/core/apperror"
	appctx "lifeline/internal/core/context"
	"lifeline/internal/core/id"
	"lifeline/internal/metadata"
)

// MaskProvider evaluates an owner's access mask.
// Abstraction allows different backends: in-memory, upstream token scopes, etc.
type MaskProvider interface {
	// Allows reports whether owner may access entities of category
	Allows(ctx context.Context, owner id.ID, category metadata.AccessCategory) bool
}

// Require returns Forbidden unless p allows category for owner.
func Require(ctx context.Context, p MaskProvider, owner id.ID, category metadata.AccessCategory) error {
	if p.Allows(ctx, owner, category) {
		return nil
	}
	return apperror.NewForbidden("access category not granted").
		WithDetail("owner_id", owner.String()).
		WithDetail("category", string(category))
}

// AllowAll grants every category (single-tenant deployments, tests).
type AllowAll struct{}

func (AllowAll) Allows(context.Context, id.ID, metadata.AccessCategory) bool { return true }

// InMemoryMasks keeps a set of granted categories per owner.
type InMemoryMasks struct {
	mu    sync.RWMutex
	masks map[id.ID]map[metadata.AccessCategory]bool
}

// NewInMemoryMasks creates an empty provider; every owner starts with no grants.
func NewInMemoryMasks() *InMemoryMasks {
	return &InMemoryMasks{
		masks: make(map[id.ID]map[metadata.AccessCategory]bool),
	}
}

func (m *InMemoryMasks) Allows(ctx context.Context, owner id.ID, category metadata.AccessCategory) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.masks[owner][category]
}

// Grant adds categories to owner's mask.
func (m *InMemoryMasks) Grant(owner id.ID, categories ...metadata.AccessCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mask, ok := m.masks[owner]
	if !ok {
		mask = make(map[metadata.AccessCategory]bool, len(categories))
		m.masks[owner] = mask
	}
	for _, c := range categories {
		mask[c] = true
	}
}

// Revoke removes categories from owner's mask.
func (m *InMemoryMasks) Revoke(owner id.ID, categories ...metadata.AccessCategory) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range categories {
		delete(m.masks[owner], c)
	}
}

// Categories returns the granted categories of owner.
func (m *InMemoryMasks) Categories(owner id.ID) []metadata.AccessCategory {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]metadata.AccessCategory, 0, len(m.masks[owner]))
	for c := range m.masks[owner] {
		out = append(out, c)
	}
	return out
}

// ScopeMasks grants the categories carried by the request principal.
// Used when the bearer token lists categories as scopes.
type ScopeMasks struct {
	Scopes func(ctx context.Context) []string
}

func (s ScopeMasks) Allows(ctx context.Context, _ id.ID, category metadata.AccessCategory) bool {
	for _, scope := range s.Scopes(ctx) {
		if scope == string(category) || scope == "*" {
			return true
		}
	}
	return false
}

// PrincipalScopes reads the scopes of the authenticated principal.
func PrincipalScopes(ctx context.Context) []string {
	if p := appctx.GetPrincipal(ctx); p != nil {
		return p.Scopes
	}
	return nil
}
