package versionstore

import (
	"reflect"
	"sync"

	"github.com/shopspring/decimal"

	"lifeline/internal/core/entity"
)

// column is one db-tagged field, addressed by its index path so that
// columns of embedded structs (entity.BaseVersion) resolve directly.
type column struct {
	name  string
	index []int
}

var layouts sync.Map // reflect.Type -> []column

// columnsOf returns the db columns of struct type t in declaration order,
// embedded structs flattened in place.
func columnsOf(t reflect.Type) []column {
	if cached, ok := layouts.Load(t); ok {
		return cached.([]column)
	}
	cols := appendColumns(nil, t, nil)
	layouts.Store(t, cols)
	return cols
}

func appendColumns(cols []column, t reflect.Type, prefix []int) []column {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), prefix...), i)
		if f.Anonymous && f.Type.Kind() == reflect.Struct {
			cols = appendColumns(cols, f.Type, index)
			continue
		}
		if tag := f.Tag.Get("db"); tag != "" && tag != "-" {
			cols = append(cols, column{name: tag, index: index})
		}
	}
	return cols
}

func structType(t reflect.Type) (reflect.Type, bool) {
	if t == nil {
		return nil, false
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t, t.Kind() == reflect.Struct
}

// ExtractDBColumns lists the db columns of T, BaseVersion columns included.
func ExtractDBColumns[T any]() []string {
	t, ok := structType(reflect.TypeFor[T]())
	if !ok {
		return nil
	}
	cols := columnsOf(t)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	return names
}

// StructToMap maps the db columns of v to their values; nil for a nil
// pointer or a non-struct.
func StructToMap(v any) map[string]any {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}

	cols := columnsOf(rv.Type())
	res := make(map[string]any, len(cols))
	for _, c := range cols {
		res[c.name] = rv.FieldByIndex(c.index).Interface()
	}
	return res
}

// Equal is full structural equality of two versions: owner, natural key,
// interval and payload. RecordID is ignored.
func Equal(a, b any) bool {
	return equalColumns(a, b, func(col string) bool { return col == "record_id" })
}

// SamePayload compares only payload and natural key columns.
func SamePayload(a, b any) bool {
	return equalColumns(a, b, entity.IsBaseColumn)
}

func equalColumns(a, b any, skip func(string) bool) bool {
	ma, mb := StructToMap(a), StructToMap(b)
	if ma == nil || mb == nil || len(ma) != len(mb) {
		return false
	}
	for col, va := range ma {
		if skip(col) {
			continue
		}
		vb, ok := mb[col]
		if !ok || !valuesEqual(va, vb) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	if da, ok := a.(decimal.Decimal); ok {
		db, ok := b.(decimal.Decimal)
		return ok && da.Equal(db)
	}
	return reflect.DeepEqual(a, b)
}
