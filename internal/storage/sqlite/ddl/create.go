package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// Dialect renders SQLite DDL with double-quoted identifiers. A dotted FQN
// such as "main.events" has each segment quoted.
var Dialect = gddl.Dialect{Name: "sqlite", Quote: QuoteIdent, MapType: MapType}

func QuoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// BuildCreateTableSQL returns a SQLite CREATE TABLE statement for t.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.BuildCreateTableSQL(Dialect, t)
}

func BuildDropTableSQL(fqn string) (string, error) {
	return gddl.BuildDropTableSQL(Dialect, fqn)
}
