// Package ddl contains MySQL-specific helpers for generating DDL.
package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// MapType maps a logical type into a MySQL column type. Unknown kinds fall
// back to TEXT, which has no length limit that a rate or date cell could hit.
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeFloat, "double", "real":
		return "DOUBLE"
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "TINYINT(1)"
	default:
		return "TEXT"
	}
}
