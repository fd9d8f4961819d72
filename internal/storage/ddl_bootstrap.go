package storage

import (
	"context"
	"fmt"
	"sync"

	"goldrates/internal/ddl"
)

// DDLBootstrapper prepares the target table for a fresh load: backends drop
// any existing table and create it from td using their dialect.
type DDLBootstrapper func(ctx context.Context, repo Repository, td ddl.TableDef) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// ReplaceTable runs the bootstrapper registered for kind.
func ReplaceTable(ctx context.Context, kind string, repo Repository, td ddl.TableDef) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, td)
}

// ExecAll runs statements in order and stops at the first failure. Backend
// bootstrappers use it to apply DROP then CREATE.
func ExecAll(ctx context.Context, repo Repository, stmts ...string) error {
	for _, s := range stmts {
		if err := repo.Exec(ctx, s); err != nil {
			return err
		}
	}
	return nil
}
