// Package main provides the Lifeline admin CLI.
// Usage: lifelinectl owner
//        lifelinectl token --owner <uuid> --scopes sync,assets [--ttl 24h]
//        lifelinectl schema
//        lifelinectl apply --owner <uuid> --type assets --file snapshot.json [--at <unix ms>]
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"lifeline/internal/config"
	"lifeline/internal/core/id"
	"lifeline/internal/core/security"
	"lifeline/internal/domain/audit"
	"lifeline/internal/domain/auth"
	"lifeline/internal/domain/entities"
	"lifeline/internal/infrastructure/storage"
	"lifeline/internal/versionstore"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "owner":
		fmt.Println(id.New().String())
	case "token":
		issueToken()
	case "schema":
		ensureSchema(ctx)
	case "apply":
		applySnapshot(ctx)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Lifeline admin CLI

Usage:
  lifelinectl <command> [options]

Commands:
  owner     Generate a new owner id
  token     Issue a bearer token for an owner
  schema    Create missing tables
  apply     Apply a snapshot file for an owner (bypasses access masks)
  help      Show this help

Configuration is read from ./config.yaml and LIFELINE_* variables, e.g.
  LIFELINE_DATABASE_DRIVER   postgres | sqlite
  LIFELINE_DATABASE_DSN      PostgreSQL connection string
  LIFELINE_DATABASE_PATH     SQLite database file
  LIFELINE_JWT_SECRET        Token signing secret (required)

Examples:
  lifelinectl token --owner 0190f6d2-... --scopes sync,assets,wallet --ttl 720h
  lifelinectl apply --owner 0190f6d2-... --type assets --file assets.json --at 1718000000000`)
}

// flags parses "--name value" pairs after the command.
func flags() map[string]string {
	out := make(map[string]string)
	for i := 2; i < len(os.Args); i++ {
		name, ok := strings.CutPrefix(os.Args[i], "--")
		if !ok {
			continue
		}
		if i+1 < len(os.Args) {
			out[name] = os.Args[i+1]
			i++
		}
	}
	return out
}

func loadConfig() config.Config {
	cfg, err := config.Load(".")
	if err != nil {
		fail("load config: %v", err)
	}
	return cfg
}

func mustOwner(raw string) id.ID {
	if raw == "" {
		fail("--owner is required")
	}
	owner, err := id.Parse(raw)
	if err != nil {
		fail("invalid owner id: %v", err)
	}
	return owner
}

func issueToken() {
	f := flags()
	owner := mustOwner(f["owner"])

	cfg := loadConfig()
	jwtConfig := auth.DefaultJWTConfig(cfg.JWT.Secret)
	jwtConfig.Issuer = cfg.JWT.Issuer
	if raw := f["ttl"]; raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			fail("invalid --ttl: %v", err)
		}
		jwtConfig.AccessTokenTTL = ttl
	}

	var scopes []string
	if raw := f["scopes"]; raw != "" {
		scopes = strings.Split(raw, ",")
	}
	subject := f["subject"]
	if subject == "" {
		subject = "lifelinectl"
	}

	token, expiresAt, err := auth.NewJWTService(jwtConfig).GenerateAccessToken(subject, owner, scopes)
	if err != nil {
		fail("issue token: %v", err)
	}
	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires at %s\n", expiresAt.Format(time.RFC3339))
}

func openStorage(ctx context.Context) *storage.Handle {
	h, err := storage.Open(ctx, loadConfig().Database)
	if err != nil {
		fail("open storage: %v", err)
	}
	return h
}

func ensureSchema(ctx context.Context) {
	h := openStorage(ctx)
	defer h.Close()

	if err := versionstore.EnsureSchema(ctx, h.Backend, entities.Defs()...); err != nil {
		fail("%v", err)
	}
	if err := audit.EnsureSchema(ctx, h.Backend); err != nil {
		fail("%v", err)
	}
	fmt.Println("Schema is up to date")
}

func applySnapshot(ctx context.Context) {
	f := flags()
	owner := mustOwner(f["owner"])
	if f["type"] == "" || f["file"] == "" {
		fail("--type and --file are required")
	}

	at := time.Now().UnixMilli()
	if raw := f["at"]; raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &at); err != nil {
			fail("invalid --at: %v", err)
		}
	}

	raw, err := os.ReadFile(f["file"])
	if err != nil {
		fail("read snapshot: %v", err)
	}

	h := openStorage(ctx)
	defer h.Close()

	log, err := audit.NewLog(h.Backend)
	if err != nil {
		fail("%v", err)
	}
	catalog, err := entities.Setup(h.Backend, security.AllowAll{}, log)
	if err != nil {
		fail("%v", err)
	}
	svc, err := catalog.Services.Lookup(f["type"])
	if err != nil {
		fail("%v (known types: %s)", err, strings.Join(catalog.Services.Names(), ", "))
	}

	res, err := svc.Sync(ctx, owner, at, raw)
	if err != nil {
		fail("apply: %v", err)
	}
	fmt.Printf("Applied at %d: %d created, %d superseded, %d unchanged, %d retired\n",
		at, res.Created, res.Superseded, res.Unchanged, res.Retired)
}

func fail(format string, args ...any) {
	fmt.Printf("Error: "+format+"\n", args...)
	os.Exit(1)
}
