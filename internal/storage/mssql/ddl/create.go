package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// Dialect renders SQL Server DDL with bracket-quoted identifiers.
var Dialect = gddl.Dialect{Name: "mssql", Quote: QuoteIdent, MapType: MapType}

// QuoteIdent quotes an identifier segment with brackets.
func QuoteIdent(id string) string { return `[` + strings.ReplaceAll(id, `]`, `]]`) + `]` }

func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.BuildCreateTableSQL(Dialect, t)
}

// BuildDropTableSQL uses DROP TABLE IF EXISTS (SQL Server 2016+).
func BuildDropTableSQL(fqn string) (string, error) {
	return gddl.BuildDropTableSQL(Dialect, fqn)
}
