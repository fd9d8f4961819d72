package transformer

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"goldrates/internal/frame"
)

// GramsPerOunce is the troy ounce in grams.
var GramsPerOunce = decimal.RequireFromString("31.1035")

// OunceSuffix is appended to a rate column name to form its derived column.
const OunceSuffix = "Oz"

// RateColumns lists the per-gram rate columns in derived-column order.
var RateColumns = []string{
	"buyRateUSD", "sellRateUSD",
	"buyRateWithMarginUSD", "sellRateWithMarginUSD",
	"buyRateAED", "sellRateAED",
	"buyRateWithMarginAED", "sellRateWithMarginAED",
}

var (
	// ErrMissingRateColumn is returned by Check when the input lacks a rate
	// column and missing columns are not allowed.
	ErrMissingRateColumn = errors.New("missing rate column")

	// ErrDerivedColumnExists is returned by Check when the input already has
	// a column named like a derived column.
	ErrDerivedColumnExists = errors.New("derived column already present in input")
)

// DerivedName returns the per-ounce column name for a rate column.
func DerivedName(rateCol string) string { return rateCol + OunceSuffix }

// Converter appends <col>Oz = col * GramsPerOunce for each rate column.
//
// Values that do not parse as numbers produce a nil (missing) derived value.
// Converter never drops or reorders rows.
type Converter struct {
	// Columns are the rate columns to derive. Empty means RateColumns.
	Columns []string

	// Places rounds derived values to this many decimal places; negative
	// disables rounding.
	Places int32

	// AllowMissing turns a missing rate column into an all-missing derived
	// column instead of an error.
	AllowMissing bool
}

// NewConverter returns a Converter over RateColumns with no rounding.
func NewConverter() Converter {
	return Converter{Columns: RateColumns, Places: -1}
}

func (c Converter) columns() []string {
	if len(c.Columns) == 0 {
		return RateColumns
	}
	return c.Columns
}

// DerivedColumns returns the names of the columns Apply appends, in order.
func (c Converter) DerivedColumns() []string {
	cols := c.columns()
	out := make([]string, len(cols))
	for i, col := range cols {
		out[i] = DerivedName(col)
	}
	return out
}

// Check validates an input header against the converter. It is cheap and
// should run before any sink is written.
func (c Converter) Check(header []string) error {
	present := make(map[string]struct{}, len(header))
	for _, h := range header {
		present[h] = struct{}{}
	}
	var missing []string
	for _, col := range c.columns() {
		if _, ok := present[DerivedName(col)]; ok {
			return fmt.Errorf("%w: %s", ErrDerivedColumnExists, DerivedName(col))
		}
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 && !c.AllowMissing {
		return fmt.Errorf("%w: %v", ErrMissingRateColumn, missing)
	}
	return nil
}

// OutputColumns returns the enriched column list for a given input header.
func (c Converter) OutputColumns(header []string) []string {
	out := make([]string, 0, len(header)+len(c.columns()))
	out = append(out, header...)
	return append(out, c.DerivedColumns()...)
}

// Apply implements Transformer. The input chunk is left untouched.
func (c Converter) Apply(in *frame.Chunk) (*frame.Chunk, error) {
	if in == nil {
		return nil, fmt.Errorf("convert: nil chunk")
	}
	if err := c.Check(in.Columns); err != nil {
		return nil, fmt.Errorf("convert: %w", err)
	}

	cols := c.columns()
	srcIx := make([]int, len(cols))
	for i, col := range cols {
		srcIx[i] = in.ColumnIndex(col)
	}

	width := len(in.Columns)
	out := &frame.Chunk{
		Columns: c.OutputColumns(in.Columns),
		Rows:    make([][]any, len(in.Rows)),
		Offset:  in.Offset,
	}
	for r, row := range in.Rows {
		nr := make([]any, width+len(cols))
		copy(nr, row)
		for i, si := range srcIx {
			if si < 0 || si >= len(row) {
				continue
			}
			nr[width+i] = c.perOunce(row[si])
		}
		out.Rows[r] = nr
	}
	return out, nil
}

// perOunce converts one per-gram cell; nil means missing.
func (c Converter) perOunce(v any) any {
	d, ok := ParseDecimal(v)
	if !ok {
		return nil
	}
	d = d.Mul(GramsPerOunce)
	if c.Places >= 0 {
		d = d.Round(c.Places)
	}
	f, _ := d.Float64()
	return f
}
