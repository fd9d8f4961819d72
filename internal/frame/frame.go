// Package frame defines the Chunk, the unit of processing and the unit of
// write for every sink.
//
// A Chunk is row-major: Rows[i][j] is the value of Columns[j] in row i. Rows
// are positional []any slices so they can be handed to database bulk APIs
// (COPY, multi-row INSERT) without reshaping. Cell values are one of:
//
//   - nil      missing value (empty cell, or a failed numeric coercion)
//   - string   raw source cell
//   - float64  derived numeric value
package frame

import "fmt"

// Chunk is an ordered batch of rows sharing one column set.
type Chunk struct {
	// Columns lists column names in output order.
	Columns []string

	// Rows holds positional values aligned to Columns.
	Rows [][]any

	// Offset is the run-wide index of Rows[0] (0-based, header excluded).
	Offset int64
}

// Len returns the number of rows in the chunk. A nil chunk has zero rows.
func (c *Chunk) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Rows)
}

// ColumnIndex returns the position of name in Columns, or -1.
func (c *Chunk) ColumnIndex(name string) int {
	for i, col := range c.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the values of the named column, or an error when
// the column does not exist.
func (c *Chunk) Column(name string) ([]any, error) {
	ix := c.ColumnIndex(name)
	if ix < 0 {
		return nil, fmt.Errorf("frame: unknown column %q", name)
	}
	out := make([]any, len(c.Rows))
	for i, r := range c.Rows {
		if ix < len(r) {
			out[i] = r[ix]
		}
	}
	return out, nil
}

// SameColumns reports whether a and b have identical column names in the
// same order.
func SameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
