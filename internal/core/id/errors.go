package id

import "errors"

// ErrNilOwner is returned when an owner id is the zero UUID.
var ErrNilOwner = errors.New("owner id must not be nil")
