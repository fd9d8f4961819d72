package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// Dialect renders MySQL DDL: backtick-quoted identifiers and MapType types.
var Dialect = gddl.Dialect{Name: "mysql", Quote: QuoteIdent, MapType: MapType}

// QuoteIdent quotes one identifier segment with backticks.
func QuoteIdent(id string) string {
	return "`" + strings.ReplaceAll(id, "`", "``") + "`"
}

// BuildCreateTableSQL returns a MySQL CREATE TABLE statement for t.
func BuildCreateTableSQL(t gddl.TableDef) (string, error) {
	return gddl.BuildCreateTableSQL(Dialect, t)
}

// BuildDropTableSQL returns DROP TABLE IF EXISTS for fqn.
func BuildDropTableSQL(fqn string) (string, error) {
	return gddl.BuildDropTableSQL(Dialect, fqn)
}
