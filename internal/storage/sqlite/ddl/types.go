// Package ddl contains SQLite-specific helpers for generating DDL.
//
// SQLite is dynamically typed, so the mapping picks canonical affinities.
package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// MapType maps a logical type string into a SQLite column type:
//   - float-ish types  -> REAL
//   - integer-ish types -> INTEGER
//   - boolean          -> INTEGER (0/1)
//   - others           -> TEXT
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeFloat, "double", "real":
		return "REAL"
	case "int", "integer", "bigint", "bool", "boolean":
		return "INTEGER"
	default:
		return "TEXT"
	}
}
