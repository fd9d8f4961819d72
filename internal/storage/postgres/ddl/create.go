package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// Dialect renders Postgres DDL. Identifiers are always double-quoted so
// mixed-case column names survive and match the COPY column list.
var Dialect = gddl.Dialect{Name: "postgres", Quote: QuoteIdent, MapType: MapType}

// QuoteIdent safely quotes a single identifier segment.
func QuoteIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// BuildCreateTableSQL returns a Postgres CREATE TABLE statement for t.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.BuildCreateTableSQL(Dialect, t)
}

// BuildDropTableSQL returns DROP TABLE IF EXISTS for fqn.
func BuildDropTableSQL(fqn string) (string, error) {
	return gddl.BuildDropTableSQL(Dialect, fqn)
}
