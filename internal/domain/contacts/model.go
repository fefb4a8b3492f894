// Package contacts tracks contact lists.
//
// The same contact may appear on several lists, so the natural key is
// (list_type, contact_id) while pages are ordered by contact_id alone.
package contacts

import (
	"context"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/metadata"
)

const Category metadata.AccessCategory = "contacts"

// ListType distinguishes personal, corporation and alliance lists.
type ListType string

const (
	ListPersonal    ListType = "personal"
	ListCorporation ListType = "corporation"
	ListAlliance    ListType = "alliance"
)

// Contact is one version of a contact list entry.
type Contact struct {
	entity.BaseVersion

	ListType  string  `db:"list_type" json:"listType"`
	ContactID int64   `db:"contact_id" json:"contactId"`
	Kind      string  `db:"contact_kind" json:"contactKind"`
	Standing  float64 `db:"standing" json:"standing"`
	Label     string  `db:"label" json:"label"`
	Watched   bool    `db:"watched" json:"watched"`
}

func New() *Contact {
	return &Contact{}
}

// Validate implements entity.Validatable interface.
func (c *Contact) Validate(ctx context.Context) error {
	switch ListType(c.ListType) {
	case ListPersonal, ListCorporation, ListAlliance:
	default:
		return apperror.NewValidation("invalid list type").
			WithDetail("field", "list_type").
			WithDetail("value", c.ListType)
	}
	if c.Standing < -10 || c.Standing > 10 {
		return apperror.NewValidation("standing out of range [-10, 10]").
			WithDetail("field", "standing").
			WithDetail("value", c.Standing)
	}
	return nil
}

// Def describes the contacts table.
func Def() metadata.EntityDef {
	return metadata.EntityDef{
		Name:           "contacts",
		Label:          "Contacts",
		TableName:      "contacts",
		NaturalKey:     []string{"list_type", "contact_id"},
		OrderBy:        "contact_id",
		Discriminators: []string{"list_type", "contact_kind", "watched"},
		AccessCategory: Category,
		Fields:         metadata.Inspect(Contact{}),
	}
}
