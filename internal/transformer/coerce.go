package transformer

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseDecimal coerces a raw cell into a decimal. It accepts strings (leading
// and trailing space ignored), decimals and the native numeric kinds. Anything
// else, including empty strings, NaN and Inf spellings, reports ok=false.
func ParseDecimal(v any) (d decimal.Decimal, ok bool) {
	switch t := v.(type) {
	case nil:
		return decimal.Decimal{}, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Decimal{}, false
		}
		return d, true
	case decimal.Decimal:
		return t, true
	case float64:
		// NewFromFloat panics on NaN/Inf.
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int64:
		return decimal.NewFromInt(t), true
	default:
		return decimal.Decimal{}, false
	}
}
