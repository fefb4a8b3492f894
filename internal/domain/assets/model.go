// Package assets tracks the items an owner holds, one identity per item.
package assets

import (
	"context"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/metadata"
)

// Category is the access category required to synchronize assets.
const Category metadata.AccessCategory = "assets"

// Asset is one version of a held item.
type Asset struct {
	entity.BaseVersion

	// ItemID identifies the item upstream; natural and ordering key
	ItemID int64 `db:"item_id" json:"itemId"`

	// LocationID is where the item sits (station, container, ...)
	LocationID int64 `db:"location_id" json:"locationId"`

	// LocationFlag qualifies the slot inside the location
	LocationFlag string `db:"location_flag" json:"locationFlag"`

	TypeID    int64 `db:"type_id" json:"typeId"`
	Quantity  int64 `db:"quantity" json:"quantity"`
	Singleton bool  `db:"singleton" json:"singleton"`
}

// New returns an empty Asset for scanning.
func New() *Asset {
	return &Asset{}
}

// Validate implements entity.Validatable interface.
func (a *Asset) Validate(ctx context.Context) error {
	if a.ItemID <= 0 {
		return apperror.NewValidation("item id must be positive").
			WithDetail("field", "item_id")
	}
	if a.Quantity < 0 {
		return apperror.NewValidation("quantity cannot be negative").
			WithDetail("field", "quantity").
			WithDetail("value", a.Quantity)
	}
	if a.Singleton && a.Quantity != 1 {
		return apperror.NewValidation("singleton item must have quantity 1").
			WithDetail("field", "quantity")
	}
	return nil
}

// Def describes the assets table.
func Def() metadata.EntityDef {
	return metadata.EntityDef{
		Name:           "assets",
		Label:          "Assets",
		TableName:      "assets",
		NaturalKey:     []string{"item_id"},
		OrderBy:        "item_id",
		Discriminators: []string{"location_id", "location_flag", "type_id"},
		AccessCategory: Category,
		Fields:         metadata.Inspect(Asset{}),
	}
}
