package main

import (
	"fmt"

	"lifeline/internal/config"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
	"lifeline/internal/metadata"
)

// buildMasks selects the access-mask provider for cfg.Mode.
func buildMasks(cfg config.AccessConfig) (security.MaskProvider, error) {
	switch cfg.Mode {
	case "open":
		return security.AllowAll{}, nil
	case "scopes":
		return security.ScopeMasks{Scopes: security.PrincipalScopes}, nil
	case "static":
		masks := security.NewInMemoryMasks()
		for rawOwner, categories := range cfg.Grants {
			owner, err := id.Parse(rawOwner)
			if err != nil {
				return nil, fmt.Errorf("access grant owner %q: %w", rawOwner, err)
			}
			for _, c := range categories {
				masks.Grant(owner, metadata.AccessCategory(c))
			}
		}
		return masks, nil
	}
	return nil, fmt.Errorf("unknown access mode %q", cfg.Mode)
}
