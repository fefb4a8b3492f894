package versionstore

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"lifeline/internal/core/entity"
	"lifeline/internal/core/id"
)

type mockEntry struct {
	entity.BaseVersion
	RefID  int64           `db:"ref_id"`
	Amount decimal.Decimal `db:"amount"`
	Note   string          `db:"-"`
}

func TestExtractDBColumns_FlattensBaseVersion(t *testing.T) {
	cols := ExtractDBColumns[*mockEntry]()
	assert.Equal(t, []string{"record_id", "owner_id", "valid_from", "valid_until", "ref_id", "amount"}, cols)
}

func TestStructToMap(t *testing.T) {
	owner := id.New()
	e := &mockEntry{
		BaseVersion: entity.BaseVersion{RecordID: 7, OwnerID: owner, ValidFrom: 1, ValidUntil: entity.Forever},
		RefID:       42,
		Amount:      decimal.NewFromInt(3),
		Note:        "skipped",
	}

	m := StructToMap(e)
	assert.Len(t, m, 6)
	assert.Equal(t, int64(7), m["record_id"])
	assert.Equal(t, owner, m["owner_id"])
	assert.Equal(t, int64(42), m["ref_id"])

	var nilEntry *mockEntry
	assert.Nil(t, StructToMap(nilEntry))
}

func TestEqual_IgnoresRecordID(t *testing.T) {
	owner := id.New()
	a := &mockEntry{BaseVersion: entity.BaseVersion{RecordID: 1, OwnerID: owner, ValidFrom: 1, ValidUntil: 5}, RefID: 1, Amount: decimal.RequireFromString("1.50")}
	b := &mockEntry{BaseVersion: entity.BaseVersion{RecordID: 2, OwnerID: owner, ValidFrom: 1, ValidUntil: 5}, RefID: 1, Amount: decimal.RequireFromString("1.5")}

	assert.True(t, Equal(a, b))

	b.ValidUntil = 6
	assert.False(t, Equal(a, b), "interval is part of equality")
	assert.True(t, SamePayload(a, b), "payload ignores the interval")

	b.Amount = decimal.NewFromInt(2)
	assert.False(t, SamePayload(a, b))
}

func TestSameKey(t *testing.T) {
	assert.True(t, SameKey(Key{"a": int64(1), "b": "x"}, Key{"b": "x", "a": int64(1)}))
	assert.False(t, SameKey(Key{"a": int64(1)}, Key{"a": int64(2)}))
	assert.False(t, SameKey(Key{"a": int64(1)}, Key{"b": int64(1)}))
	assert.False(t, SameKey(Key{"a": int64(1)}, Key{"a": int64(1), "b": "x"}))
}
