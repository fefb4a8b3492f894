package metadata

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
)

type sampleEntity struct {
	entity.BaseVersion
	ItemID   int64           `db:"item_id" json:"itemId"`
	Location string          `db:"location" json:"location"`
	Amount   decimal.Decimal `db:"amount" json:"amount"`
	Ratio    float64         `db:"ratio"`
	Flagged  bool            `db:"flagged" json:"flagged"`
	Ignored  string          `db:"-"`
	note     string
}

func sampleDef() EntityDef {
	return EntityDef{
		Name:           "sample",
		TableName:      "samples",
		NaturalKey:     []string{"item_id"},
		OrderBy:        "item_id",
		Discriminators: []string{"location"},
		AccessCategory: "samples",
		Fields:         Inspect(sampleEntity{}),
	}
}

func TestInspect(t *testing.T) {
	fields := Inspect(&sampleEntity{})

	want := []FieldDef{
		{Name: "item_id", JSONName: "itemId", Type: TypeInteger},
		{Name: "location", JSONName: "location", Type: TypeString},
		{Name: "amount", JSONName: "amount", Type: TypeMoney},
		{Name: "ratio", JSONName: "ratio", Type: TypeNumber},
		{Name: "flagged", JSONName: "flagged", Type: TypeBoolean},
	}
	assert.Equal(t, want, fields)
}

func TestEntityDef_Validate(t *testing.T) {
	require.NoError(t, sampleDef().Validate())

	tests := []struct {
		name   string
		mutate func(*EntityDef)
	}{
		{"empty natural key", func(d *EntityDef) { d.NaturalKey = nil }},
		{"unknown key column", func(d *EntityDef) { d.NaturalKey = []string{"nope"} }},
		{"unknown order column", func(d *EntityDef) { d.OrderBy = "nope" }},
		{"unordered order column", func(d *EntityDef) { d.OrderBy = "flagged" }},
		{"unknown discriminator", func(d *EntityDef) { d.Discriminators = []string{"nope"} }},
		{"missing access category", func(d *EntityDef) { d.AccessCategory = "" }},
		{"missing table", func(d *EntityDef) { d.TableName = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := sampleDef()
			tt.mutate(&def)
			assert.Error(t, def.Validate())
		})
	}
}

func TestEntityDef_PredicateOrderDefaultsToRecordID(t *testing.T) {
	def := sampleDef()
	assert.Equal(t, "record_id", def.PredicateOrder())

	def.QueryOrder = "item_id"
	assert.Equal(t, "item_id", def.PredicateOrder())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sampleDef()))
	assert.Error(t, reg.Register(sampleDef()), "duplicate names are rejected")

	other := sampleDef()
	other.Name = "another"
	other.TableName = "others"
	reg.MustRegister(other)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Name)
	assert.Equal(t, "sample", list[1].Name)

	def, ok := reg.Get("sample")
	require.True(t, ok)
	assert.True(t, def.IsDiscriminator("location"))
	assert.False(t, def.IsDiscriminator("item_id"))

	assert.Panics(t, func() { reg.MustRegister(EntityDef{Name: "broken"}) })
}

func TestFieldDef_Coerce(t *testing.T) {
	intField := FieldDef{Name: "item_id", Type: TypeInteger}
	moneyField := FieldDef{Name: "amount", Type: TypeMoney}
	strField := FieldDef{Name: "location", Type: TypeString}

	v, err := intField.Coerce(json.Number("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = intField.Coerce(float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)

	v, err = intField.Coerce("9")
	require.NoError(t, err)
	assert.Equal(t, int64(9), v)

	_, err = intField.Coerce(1.5)
	assert.True(t, apperror.IsQueryError(err))

	_, err = intField.Coerce("abc")
	assert.True(t, apperror.IsQueryError(err))

	v, err = moneyField.Coerce("10.25")
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("10.25").Equal(v.(decimal.Decimal)))

	_, err = strField.Coerce(12)
	assert.True(t, apperror.IsQueryError(err))

	_, err = strField.Coerce(nil)
	assert.True(t, apperror.IsQueryError(err))
}

func TestFieldDef_CoerceIntegerBounds(t *testing.T) {
	f := FieldDef{Name: "entry_date", Type: TypeInteger}

	// float64(math.MaxInt64) rounds up to 2^63 and must not wrap around
	v, err := f.Coerce(float64(math.MaxInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v)

	v, err = f.Coerce(json.Number("9.223372036854775807e18"))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), v)

	v, err = f.Coerce(float64(math.MinInt64))
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), v)

	for _, bad := range []any{1e19, -1e19, math.Inf(1), math.NaN(), json.Number("1e30")} {
		_, err := f.Coerce(bad)
		assert.True(t, apperror.IsQueryError(err), "%v", bad)
	}
}
