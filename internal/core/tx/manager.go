// Package tx provides transaction management abstractions.
// The version store runs every multi-row write (close old + insert new)
// through a Manager so that readers never observe an identity with zero
// live versions.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
// Implementations live in infrastructure/storage/{postgres,sqlite}.
type Manager interface {
	// RunInTransaction executes fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn succeeds, the transaction is committed.
	//
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReadOnlyManager extends Manager with read-only transaction support.
type ReadOnlyManager interface {
	Manager

	// ReadOnly executes fn in a read-only transaction.
	ReadOnly(ctx context.Context, fn func(ctx context.Context) error) error
}
