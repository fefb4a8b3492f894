package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/config"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
)

func TestBuildMasks(t *testing.T) {
	ctx := context.Background()
	owner := id.New()

	t.Run("open", func(t *testing.T) {
		masks, err := buildMasks(config.AccessConfig{Mode: "open"})
		require.NoError(t, err)
		assert.True(t, masks.Allows(ctx, owner, "wallet"))
	})

	t.Run("scopes", func(t *testing.T) {
		masks, err := buildMasks(config.AccessConfig{Mode: "scopes"})
		require.NoError(t, err)
		assert.IsType(t, security.ScopeMasks{}, masks)
		assert.False(t, masks.Allows(ctx, owner, "wallet"))
	})

	t.Run("static", func(t *testing.T) {
		masks, err := buildMasks(config.AccessConfig{
			Mode:   "static",
			Grants: map[string][]string{owner.String(): {"assets", "wallet"}},
		})
		require.NoError(t, err)
		assert.True(t, masks.Allows(ctx, owner, "wallet"))
		assert.False(t, masks.Allows(ctx, owner, "contacts"))
		assert.False(t, masks.Allows(ctx, id.New(), "assets"))
	})

	t.Run("bad owner", func(t *testing.T) {
		_, err := buildMasks(config.AccessConfig{
			Mode:   "static",
			Grants: map[string][]string{"nobody": {"assets"}},
		})
		assert.Error(t, err)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, err := buildMasks(config.AccessConfig{Mode: "everyone"})
		assert.Error(t, err)
	})
}
