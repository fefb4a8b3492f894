// Package main is the entry point for the Lifeline API server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lifeline/internal/config"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/auth"
	"lifeline/internal/domain/entities"
	v1 "lifeline/internal/infrastructure/http/v1"
	"lifeline/internal/infrastructure/storage"
	"lifeline/internal/versionstore"
	"lifeline/pkg/logger"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configDir := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development || cfg.IsDevelopment(),
		Encoding:    cfg.Log.Encoding,
		Fields:      map[string]any{"service": "lifeline", "version": version},
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting lifeline server", "version", version, "driver", cfg.Database.Driver)

	// --- Storage ---
	db, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer db.Close()
	log.Infow("storage ready", "backend", db.Backend.Dialect().Name)

	if cfg.Database.EnsureSchema {
		if err := versionstore.EnsureSchema(ctx, db.Backend, entities.Defs()...); err != nil {
			log.Fatalw("failed to ensure schema", "error", err)
		}
		if err := audit.EnsureSchema(ctx, db.Backend); err != nil {
			log.Fatalw("failed to ensure audit schema", "error", err)
		}
		log.Info("schema ensured")
	}

	// --- Entity types ---
	masks, err := buildMasks(cfg.Access)
	if err != nil {
		log.Fatalw("invalid access configuration", "error", err)
	}
	auditLog, err := audit.NewLog(db.Backend)
	if err != nil {
		log.Fatalw("failed to create audit log", "error", err)
	}
	catalog, err := entities.Setup(db.Backend, masks, auditLog)
	if err != nil {
		log.Fatalw("failed to set up entity types", "error", err)
	}
	log.Infow("entity types registered", "types", catalog.Services.Names(), "access_mode", cfg.Access.Mode)

	// --- JWT Service ---
	jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtConfig.Issuer = cfg.JWT.Issuer
	jwtService := auth.NewJWTService(jwtConfig)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log.WithComponent("http"),
		JWTValidator: jwtService,
		Catalog:      catalog,
		DB:           db,
		Backend:      db.Backend.Dialect().Name,
		Version:      version,
		Gzip:         cfg.HTTP.Gzip,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         ":" + cfg.HTTP.Port,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Infow("server starting", "port", cfg.HTTP.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}
	db.LogStats(ctx)

	log.Info("server stopped")
}
