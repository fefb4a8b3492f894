package versionstore

import (
	"context"
	"fmt"
	"strings"

	"lifeline/internal/core/entity"
	"lifeline/internal/core/storage"
	"lifeline/internal/metadata"
	"lifeline/pkg/logger"
)

// CreateTableSQL returns the statements creating def's table and indexes.
// Every statement is idempotent; existing tables are never altered.
func CreateTableSQL(d storage.Dialect, def metadata.EntityDef) []string {
	cols := []string{
		"record_id " + d.RecordIDColumn,
		"owner_id " + d.OwnerType + " NOT NULL",
		"valid_from " + d.IntervalType + " NOT NULL",
		"valid_until " + d.IntervalType + " NOT NULL",
	}
	for _, f := range def.Fields {
		cols = append(cols, fmt.Sprintf("%s %s NOT NULL", f.Name, d.ColumnType(f.Type)))
	}

	keyCols := strings.Join(def.NaturalKey, ", ")
	t := def.TableName

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n\t%s,\n\tCHECK (valid_from < valid_until)\n)", t, strings.Join(cols, ",\n\t")),
		// at most one open version per identity
		fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_open_uq ON %s (owner_id, %s) WHERE valid_until = %d",
			t, t, keyCols, entity.Forever),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_key_idx ON %s (owner_id, %s, valid_from)", t, t, keyCols),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_order_idx ON %s (owner_id, %s, record_id)", t, t, def.OrderBy),
	}
	if q := def.PredicateOrder(); q != def.OrderBy && q != "record_id" {
		stmts = append(stmts,
			fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_query_idx ON %s (owner_id, %s, record_id)", t, t, q))
	}
	return stmts
}

// EnsureSchema creates the tables of defs that do not exist yet.
func EnsureSchema(ctx context.Context, backend storage.Backend, defs ...metadata.EntityDef) error {
	return backend.RunInTransaction(ctx, func(ctx context.Context) error {
		for _, def := range defs {
			for _, stmt := range CreateTableSQL(backend.Dialect(), def) {
				if _, err := backend.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("ensure schema %s: %w", def.TableName, err)
				}
			}
			logger.Debug(ctx, "schema ensured", "table", def.TableName)
		}
		return nil
	})
}
