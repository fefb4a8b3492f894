// Package v1 provides HTTP API version 1.
package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzhttp"

	"lifeline/internal/domain/entities"
	"lifeline/internal/infrastructure/http/v1/handlers"
	"lifeline/internal/infrastructure/http/v1/middleware"
	"lifeline/pkg/logger"
)

// RouterConfig holds router configuration.
type RouterConfig struct {
	// Logger for request logging
	Logger *logger.Logger

	// JWTValidator for token validation
	JWTValidator middleware.JWTValidator

	// Catalog binds entity types to their stores
	Catalog *entities.Catalog

	// DB is pinged by the readiness probe
	DB handlers.Pinger

	// Backend names the storage dialect for /health/info
	Backend string
	Version string

	// Gzip compresses responses for clients that accept it
	Gzip bool
}

// NewRouter creates and configures the HTTP handler.
func NewRouter(cfg RouterConfig) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	if cfg.Logger == nil {
		cfg.Logger = logger.Nop()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Backend, cfg.Version)
	health := router.Group("/health")
	{
		health.GET("/live", healthHandler.Live)
		health.GET("/ready", healthHandler.Ready)
		health.GET("/info", healthHandler.Info)
	}

	v1 := router.Group("/api/v1")
	{
		protected := v1.Group("")
		protected.Use(middleware.Auth(cfg.JWTValidator))

		RegisterEntityRoutes(protected.Group("/entities/:type"), handlers.NewEntityHandler(cfg.Catalog.Services))
		registerMetaRoutes(protected, cfg)
	}

	if !cfg.Gzip {
		return router
	}
	return gzhttp.GzipHandler(router)
}

// registerMetaRoutes registers metadata/schema endpoints.
func registerMetaRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	handler := handlers.NewMetadataHandler(cfg.Catalog.Registry)
	meta := rg.Group("/meta")
	{
		meta.GET("", handler.ListEntities)
		meta.GET("/:name", handler.GetEntity)
	}
}
