package metadata

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	decimalType = reflect.TypeOf(decimal.Decimal{})
	uuidType    = reflect.TypeOf(uuid.UUID{})
)

// Inspect derives payload FieldDefs from the struct's db tags.
// Embedded structs are flattened; version columns are skipped.
// Called once per type while building the descriptor table.
func Inspect(entity any) []FieldDef {
	t := reflect.TypeOf(entity)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	fields := make([]FieldDef, 0, t.NumField())
	inspectStruct(t, &fields)
	return fields
}

func inspectStruct(t reflect.Type, fields *[]FieldDef) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Ptr {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				inspectStruct(ft, fields)
			}
			continue
		}
		if field.PkgPath != "" { // unexported
			continue
		}

		col := field.Tag.Get("db")
		if col == "" || col == "-" || isVersionColumn(col) {
			continue
		}

		*fields = append(*fields, FieldDef{
			Name:     col,
			JSONName: jsonName(field),
			Type:     mapFieldType(field.Type),
		})
	}
}

func isVersionColumn(col string) bool {
	switch col {
	case "record_id", "owner_id", "valid_from", "valid_until":
		return true
	}
	return false
}

func mapFieldType(t reflect.Type) FieldType {
	switch t {
	case decimalType:
		return TypeMoney
	case uuidType:
		return TypeReference
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return TypeInteger
	case reflect.Float32, reflect.Float64:
		return TypeNumber
	case reflect.Bool:
		return TypeBoolean
	default:
		return TypeString
	}
}

func jsonName(field reflect.StructField) string {
	if tag, ok := field.Tag.Lookup("json"); ok {
		parts := strings.Split(tag, ",")
		if parts[0] != "" && parts[0] != "-" {
			return parts[0]
		}
	}
	runes := []rune(field.Name)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}
