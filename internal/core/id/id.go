// Package id provides the identifiers of owning accounts.
// Owners are UUIDv7 so that rows of one account cluster in owner-leading indexes.
package id

import (
	"github.com/google/uuid"
)

// ID is a type alias for UUID, used as the owner partition key.
type ID = uuid.UUID

// New generates a new UUIDv7 (time-ordered UUID).
func New() ID {
	v, err := uuid.NewV7()
	if err != nil {
		return uuid.New()
	}
	return v
}

// Parse converts string to ID with validation.
// The nil UUID is rejected: it never names a real owner.
func Parse(s string) (ID, error) {
	v, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, err
	}
	if v == uuid.Nil {
		return uuid.Nil, ErrNilOwner
	}
	return v, nil
}

// MustParse converts string to ID, panics on error.
// Use only for constants and tests.
func MustParse(s string) ID {
	return uuid.MustParse(s)
}

// IsNil checks if ID is zero-value.
func IsNil(v ID) bool {
	return v == uuid.Nil
}
