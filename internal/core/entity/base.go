package entity

import (
	"context"
	"math"

	"lifeline/internal/core/apperror"
	"lifeline/internal/core/id"
)

// Forever is the valid_until of a version that has not been superseded or retired.
const Forever int64 = math.MaxInt64

// Validatable is implemented by entities that support self-validation.
// Validation checks payload invariants (without database access).
type Validatable interface {
	Validate(ctx context.Context) error
}

// Versioned is implemented by every tracked entity through an embedded BaseVersion.
type Versioned interface {
	Base() *BaseVersion
}

/////////////////////
// Base Version    //
/////////////////////

// BaseVersion contains the columns shared by every version row.
// The half-open interval [ValidFrom, ValidUntil) is when this version is authoritative.
type BaseVersion struct {
	// RecordID is assigned by storage and differs between versions of one natural key
	RecordID int64 `db:"record_id" json:"recordId"`

	// OwnerID is the account partition; no query crosses it
	OwnerID id.ID `db:"owner_id" json:"ownerId"`

	ValidFrom  int64 `db:"valid_from" json:"validFrom"`
	ValidUntil int64 `db:"valid_until" json:"validUntil"`
}

// Base returns the version metadata (satisfies Versioned).
func (b *BaseVersion) Base() *BaseVersion {
	return b
}

// Attach binds a fresh version to owner, open from validFrom.
func (b *BaseVersion) Attach(owner id.ID, validFrom int64) {
	b.RecordID = 0
	b.OwnerID = owner
	b.ValidFrom = validFrom
	b.ValidUntil = Forever
}

// IsOpen reports whether the version has not been closed yet.
func (b *BaseVersion) IsOpen() bool {
	return b.ValidUntil == Forever
}

// LiveAt reports whether the version is authoritative at snapshot t.
func (b *BaseVersion) LiveAt(t int64) bool {
	return b.ValidFrom <= t && t < b.ValidUntil
}

// Overlaps reports whether [from, until) intersects the version's interval.
func (b *BaseVersion) Overlaps(from, until int64) bool {
	return b.ValidFrom < until && from < b.ValidUntil
}

// CheckClose validates closing the version at until.
func (b *BaseVersion) CheckClose(until int64) error {
	if !b.IsOpen() {
		return apperror.NewInvariantViolation("version", "version already closed").
			WithDetail("record_id", b.RecordID).
			WithDetail("valid_until", b.ValidUntil)
	}
	if until <= b.ValidFrom {
		return apperror.NewInvariantViolation("version", "close time must be after valid_from").
			WithDetail("record_id", b.RecordID).
			WithDetail("valid_from", b.ValidFrom).
			WithDetail("valid_until", until)
	}
	return nil
}

// CheckInterval validates a fully formed interval before it is persisted.
func (b *BaseVersion) CheckInterval() error {
	if id.IsNil(b.OwnerID) {
		return apperror.NewInvariantViolation("version", "version has no owner")
	}
	if b.ValidUntil <= b.ValidFrom {
		return apperror.NewInvariantViolation("version", "empty validity interval").
			WithDetail("valid_from", b.ValidFrom).
			WithDetail("valid_until", b.ValidUntil)
	}
	return nil
}

// BaseColumns lists the db columns owned by BaseVersion.
var BaseColumns = []string{"record_id", "owner_id", "valid_from", "valid_until"}

// IsBaseColumn reports whether col is one of BaseColumns.
func IsBaseColumn(col string) bool {
	switch col {
	case "record_id", "owner_id", "valid_from", "valid_until":
		return true
	}
	return false
}
