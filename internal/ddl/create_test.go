package ddl

import (
	"strings"
	"testing"
)

var testDialect = Dialect{
	Name:  "test",
	Quote: func(s string) string { return `"` + strings.ReplaceAll(s, `"`, `""`) + `"` },
	MapType: func(kind string) string {
		if kind == TypeFloat {
			return "DOUBLE"
		}
		return "TEXT"
	},
}

func TestBuildCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := TableDef{
		FQN: "public.gold_rates",
		Columns: []ColumnDef{
			{Name: "date", Type: TypeText, Nullable: true},
			{Name: "buyRateUSDOz", Type: TypeFloat, Nullable: true},
			{Name: "id", SQLType: "BIGINT", PrimaryKey: true, Default: "0"},
		},
	}
	got, err := BuildCreateTableSQL(testDialect, def)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL() error = %v", err)
	}
	want := "CREATE TABLE \"public\".\"gold_rates\" (\n" +
		"  \"date\" TEXT,\n" +
		"  \"buyRateUSDOz\" DOUBLE,\n" +
		"  \"id\" BIGINT NOT NULL DEFAULT 0,\n" +
		"  PRIMARY KEY (\"id\")\n" +
		")"
	if got != want {
		t.Fatalf("BuildCreateTableSQL() =\n%s\nwant\n%s", got, want)
	}
}

func TestBuildCreateTableSQLErrors(t *testing.T) {
	t.Parallel()

	noMap := testDialect
	noMap.MapType = nil

	tests := []struct {
		name string
		d    Dialect
		def  TableDef
		want string
	}{
		{"empty FQN", testDialect, TableDef{FQN: " ", Columns: []ColumnDef{{Name: "a"}}}, "FQN must not be empty"},
		{"no columns", testDialect, TableDef{FQN: "t"}, "at least one column"},
		{"empty column name", testDialect, TableDef{FQN: "t", Columns: []ColumnDef{{Name: " "}}}, "empty name"},
		{"no type", noMap, TableDef{FQN: "t", Columns: []ColumnDef{{Name: "a"}}}, "missing SQLType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := BuildCreateTableSQL(tt.d, tt.def)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want substring %q", err, tt.want)
			}
			if !strings.HasPrefix(err.Error(), tt.d.Name+" ddl:") {
				t.Fatalf("error = %q, want dialect prefix", err)
			}
		})
	}
}

func TestBuildDropTableSQL(t *testing.T) {
	t.Parallel()

	got, err := BuildDropTableSQL(testDialect, "gold_rates")
	if err != nil {
		t.Fatalf("BuildDropTableSQL() error = %v", err)
	}
	if want := `DROP TABLE IF EXISTS "gold_rates"`; got != want {
		t.Fatalf("BuildDropTableSQL() = %q, want %q", got, want)
	}
	if _, err := BuildDropTableSQL(testDialect, " . "); err == nil {
		t.Fatalf("BuildDropTableSQL(empty) error = nil, want error")
	}
}

func TestQuoteFQN(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"users", `"users"`},
		{"public.users", `"public"."users"`},
		{".public..users.", `"public"."users"`},
		{`sch."t"`, `"sch"."""t"""`},
		{"", ""},
	}
	for _, tt := range tests {
		if got := testDialect.QuoteFQN(tt.in); got != tt.want {
			t.Fatalf("QuoteFQN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFromColumns(t *testing.T) {
	t.Parallel()

	td := FromColumns("gold_rates", []string{"date", "buyRateUSD", "buyRateUSDOz"}, []string{"buyRateUSDOz"})
	if td.FQN != "gold_rates" || len(td.Columns) != 3 {
		t.Fatalf("FromColumns() = %+v", td)
	}
	wantTypes := []string{TypeText, TypeText, TypeFloat}
	for i, c := range td.Columns {
		if c.Type != wantTypes[i] {
			t.Fatalf("column %s Type = %q, want %q", c.Name, c.Type, wantTypes[i])
		}
		if !c.Nullable {
			t.Fatalf("column %s not nullable", c.Name)
		}
	}
}
