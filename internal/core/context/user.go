// Package context provides request-scoped values extraction.
package context

import (
	"context"

	"lifeline/internal/core/id"
)

// Principal is the authenticated caller. Every request acts on exactly one owner.
type Principal struct {
	Subject string
	OwnerID id.ID
	Scopes  []string
}

type principalKey struct{}

// WithPrincipal adds Principal to context.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// GetPrincipal returns Principal from context.
func GetPrincipal(ctx context.Context) *Principal {
	if v, ok := ctx.Value(principalKey{}).(*Principal); ok {
		return v
	}
	return nil
}

// GetOwnerID returns the owner of the request, or the nil id.
func GetOwnerID(ctx context.Context) id.ID {
	if p := GetPrincipal(ctx); p != nil {
		return p.OwnerID
	}
	return id.ID{}
}

// HasScope checks if the principal was granted scope.
func HasScope(ctx context.Context, scope string) bool {
	p := GetPrincipal(ctx)
	if p == nil {
		return false
	}
	for _, s := range p.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
