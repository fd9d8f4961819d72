package ddl

// Logical column types. Backends map them to dialect types through their
// MapType functions.
const (
	TypeText  = "text"
	TypeFloat = "float"
)

// ColumnDef describes a single column in a table definition.
//
// Fields:
//   - Name: column name (unquoted; quoting happens at render time)
//   - Type: logical type (TypeText, TypeFloat)
//   - SQLType: dialect type; when empty the dialect's MapType(Type) is used
//   - Nullable: whether NULL is allowed
//   - PrimaryKey: whether the column is part of the primary key
//   - Default: raw default expression
type ColumnDef struct {
	Name       string
	Type       string
	SQLType    string
	Nullable   bool
	PrimaryKey bool
	Default    string
}

// TableDef holds the table name and an ordered list of columns. The FQN may
// be dotted ("schema.table"); renderers quote each segment.
type TableDef struct {
	FQN     string
	Columns []ColumnDef
}

// FromColumns builds a nullable TableDef in column order. Columns listed in
// floatCols get TypeFloat, all others TypeText.
func FromColumns(fqn string, columns []string, floatCols []string) TableDef {
	isFloat := make(map[string]struct{}, len(floatCols))
	for _, c := range floatCols {
		isFloat[c] = struct{}{}
	}
	defs := make([]ColumnDef, 0, len(columns))
	for _, name := range columns {
		typ := TypeText
		if _, ok := isFloat[name]; ok {
			typ = TypeFloat
		}
		defs = append(defs, ColumnDef{Name: name, Type: typ, Nullable: true})
	}
	return TableDef{FQN: fqn, Columns: defs}
}
