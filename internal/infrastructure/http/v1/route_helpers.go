// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"lifeline/internal/infrastructure/http/v1/middleware"
)

// ScopeSync is the token scope required to push snapshots.
const ScopeSync = "sync"

// EntityRouteHandler defines the routes every entity type exposes.
type EntityRouteHandler interface {
	Live(c *gin.Context)
	List(c *gin.Context)
	Query(c *gin.Context)
	History(c *gin.Context)
	Sync(c *gin.Context)
	Syncs(c *gin.Context)
}

// RegisterEntityRoutes registers the read and sync routes under group.
// The group path carries the :type parameter.
//
// Usage:
//
//	handler := handlers.NewEntityHandler(catalog.Services)
//	RegisterEntityRoutes(protected.Group("/entities/:type"), handler)
func RegisterEntityRoutes(group *gin.RouterGroup, handler EntityRouteHandler) {
	group.GET("", handler.List)
	group.GET("/live", handler.Live)
	group.GET("/history", handler.History)
	group.GET("/syncs", handler.Syncs)
	group.POST("/query", handler.Query)
	group.POST("/sync", middleware.RequireScope(ScopeSync), middleware.Decompress(), handler.Sync)
}
