package metadata

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"lifeline/internal/core/apperror"
)

// FieldType defines the data type of a field.
type FieldType string

const (
	TypeString    FieldType = "string"
	TypeInteger   FieldType = "integer"
	TypeNumber    FieldType = "number" // float64
	TypeBoolean   FieldType = "boolean"
	TypeMoney     FieldType = "money" // decimal.Decimal
	TypeReference FieldType = "reference"
)

// Ordered reports whether range selectors and keyset pagination apply.
func (t FieldType) Ordered() bool {
	switch t {
	case TypeString, TypeInteger, TypeNumber, TypeMoney:
		return true
	}
	return false
}

// FieldDef describes a payload column.
type FieldDef struct {
	Name     string    `json:"column"`
	JSONName string    `json:"name"`
	Type     FieldType `json:"type"`
}

// Coerce converts a loosely typed value (query string, JSON number) into the
// Go type stored in the column.
func (f FieldDef) Coerce(v any) (any, error) {
	if v == nil {
		return nil, f.coerceError(v)
	}
	switch f.Type {
	case TypeInteger:
		return f.toInt(v)
	case TypeNumber:
		return f.toFloat(v)
	case TypeMoney:
		return f.toDecimal(v)
	case TypeBoolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			b, err := strconv.ParseBool(x)
			if err != nil {
				return nil, f.coerceError(v)
			}
			return b, nil
		}
	case TypeReference:
		switch x := v.(type) {
		case uuid.UUID:
			return x, nil
		case string:
			u, err := uuid.Parse(x)
			if err != nil {
				return nil, f.coerceError(v)
			}
			return u, nil
		}
	default:
		if s, ok := v.(string); ok {
			return s, nil
		}
	}
	return nil, f.coerceError(v)
}

func (f FieldDef) toInt(v any) (any, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint32:
		return int64(x), nil
	case float64:
		return f.floatToInt(x, v)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n, nil
		}
		fl, err := x.Float64()
		if err != nil {
			return nil, f.coerceError(v)
		}
		return f.floatToInt(fl, v)
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		if err != nil {
			return nil, f.coerceError(v)
		}
		return n, nil
	}
	return nil, f.coerceError(v)
}

// maxIntFloat is float64(math.MaxInt64), which rounds up to 2^63.
const maxIntFloat = float64(math.MaxInt64)

// floatToInt converts integral floats. 2^63 is the float image of
// math.MaxInt64 and maps back to it; anything beyond is rejected.
func (f FieldDef) floatToInt(x float64, orig any) (any, error) {
	switch {
	case x != math.Trunc(x), x > maxIntFloat, x < math.MinInt64:
		return nil, f.coerceError(orig)
	case x == maxIntFloat:
		return int64(math.MaxInt64), nil
	}
	return int64(x), nil
}

func (f FieldDef) toFloat(v any) (any, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return nil, f.coerceError(v)
		}
		return n, nil
	case string:
		n, err := strconv.ParseFloat(x, 64)
		if err != nil {
			return nil, f.coerceError(v)
		}
		return n, nil
	}
	return nil, f.coerceError(v)
}

func (f FieldDef) toDecimal(v any) (any, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case json.Number:
		d, err := decimal.NewFromString(x.String())
		if err != nil {
			return nil, f.coerceError(v)
		}
		return d, nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return nil, f.coerceError(v)
		}
		return d, nil
	}
	return nil, f.coerceError(v)
}

func (f FieldDef) coerceError(v any) error {
	return apperror.NewQueryError(fmt.Sprintf("value does not fit column %s", f.Name)).
		WithDetail("field", f.Name).
		WithDetail("type", string(f.Type)).
		WithDetail("value", fmt.Sprintf("%v", v))
}
