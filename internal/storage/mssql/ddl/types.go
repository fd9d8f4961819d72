// Package ddl contains MSSQL-specific helpers for generating DDL.
//
// It maps logical types into SQL Server types. The mapping is conservative:
// text goes to NVARCHAR(MAX) so any source cell fits.
package ddl

import (
	"strings"

	gddl "goldrates/internal/ddl"
)

// MapType maps a logical type string into a SQL Server column type.
// Unknown or empty kinds fall back to NVARCHAR(MAX).
func MapType(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case gddl.TypeFloat, "double", "real":
		return "FLOAT"
	case "int", "integer", "bigint":
		return "BIGINT"
	case "bool", "boolean":
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}
