package selector

import (
	"cmp"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Compare orders two scalar values of the same family.
// ok is false when the values cannot be compared.
func Compare(a, b any) (c int, ok bool) {
	a, b = fromNumber(a), fromNumber(b)
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case decimal.Decimal:
		y, ok := toDecimal(b)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	}

	if y, isDec := b.(decimal.Decimal); isDec {
		x, ok := toDecimal(a)
		if !ok {
			return 0, false
		}
		return x.Cmp(y), true
	}

	if xi, ok := toInt(a); ok {
		if yi, ok := toInt(b); ok {
			return cmp.Compare(xi, yi), true
		}
	}
	xf, okA := toFloat(a)
	yf, okB := toFloat(b)
	if !okA || !okB {
		return 0, false
	}
	return cmp.Compare(xf, yf), true
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if i, ok := toInt(v); ok {
		return float64(i), true
	}
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	if d, ok := v.(decimal.Decimal); ok {
		return d, true
	}
	if i, ok := toInt(v); ok {
		return decimal.NewFromInt(i), true
	}
	if f, ok := toFloat(v); ok {
		return decimal.NewFromFloat(f), true
	}
	return decimal.Decimal{}, false
}

// fromNumber turns a json.Number into int64 or decimal; other values pass.
func fromNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if d, err := decimal.NewFromString(n.String()); err == nil {
		return d
	}
	return v
}
