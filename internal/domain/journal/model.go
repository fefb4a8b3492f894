// Package journal tracks wallet journal entries.
//
// Entries are keyed by their upstream reference and paged by entry date,
// so the ordering key differs from the natural key.
package journal

import (
	"context"

	"github.com/shopspring/decimal"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/entity"
	"lifeline/internal/metadata"
)

const Category metadata.AccessCategory = "wallet"

// Entry is one version of a journal entry.
type Entry struct {
	entity.BaseVersion

	RefID     int64  `db:"ref_id" json:"refId"`
	EntryDate int64  `db:"entry_date" json:"entryDate"`
	RefType   string `db:"ref_type" json:"refType"`

	Amount  decimal.Decimal `db:"amount" json:"amount"`
	Balance decimal.Decimal `db:"balance" json:"balance"`

	// PartyID is the other side of the transfer, 0 when there is none
	PartyID int64  `db:"party_id" json:"partyId"`
	Reason  string `db:"reason" json:"reason"`
}

func New() *Entry {
	return &Entry{}
}

// Validate implements entity.Validatable interface.
func (e *Entry) Validate(ctx context.Context) error {
	if e.RefID <= 0 {
		return apperror.NewValidation("ref id must be positive").
			WithDetail("field", "ref_id")
	}
	if e.RefType == "" {
		return apperror.NewValidation("ref type is required").
			WithDetail("field", "ref_type")
	}
	return nil
}

// Def describes the journal table.
func Def() metadata.EntityDef {
	return metadata.EntityDef{
		Name:           "journal",
		Label:          "Wallet journal",
		TableName:      "journal_entries",
		NaturalKey:     []string{"ref_id"},
		OrderBy:        "entry_date",
		QueryOrder:     "entry_date",
		Discriminators: []string{"ref_type", "party_id"},
		AccessCategory: Category,
		Fields:         metadata.Inspect(Entry{}),
	}
}
