package ddl

import (
	"context"
	"fmt"

	gddl "goldrates/internal/ddl"
	"goldrates/internal/storage"
)

// ReplaceTable drops td.FQN if it exists and creates it afresh.
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
		return fmt.Errorf("mysql: replace table %s: %w", td.FQN, err)
	}
	return nil
}
