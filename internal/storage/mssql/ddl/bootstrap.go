package ddl

import (
	"context"
	"fmt"

	gddl "goldrates/internal/ddl"
	"goldrates/internal/storage"
)

// ReplaceTable drops the table if it exists, then creates it from td.
func ReplaceTable(ctx context.Context, repo storage.Repository, td gddl.TableDef) error {
	drop, err := BuildDropTableSQL(td.FQN)
	if err != nil {
		return err
	}
	create, err := BuildCreateTableSQL(td)
	if err != nil {
		return err
	}
	if err := storage.ExecAll(ctx, repo, drop, create); err != nil {
		return fmt.Errorf("mssql: replace table %s: %w", td.FQN, err)
	}
	return nil
}
