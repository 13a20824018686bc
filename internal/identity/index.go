// Package identity maintains the network-wide national-ID index. Two
// concurrent registrations can both pass the conflict check before either
// writes; reserving the national ID here narrows that race to the store's
// own guarantees. The index is an optimization guard, not the source of
// truth: the repair pass remains the correctness backstop.
package identity

import (
	"context"

	id "bunkhouse/pkg/domain"
)

// Index maps national IDs to the worker that holds them.
type Index interface {
	// Reserve claims the national ID for the worker. Reserving an ID the
	// same worker already holds is a no-op; an ID held by another worker
	// returns sentinel.ErrConflict.
	Reserve(ctx context.Context, nationalID id.NationalID, workerID id.WorkerID) error

	// Release frees the national ID. Releasing an unknown ID is a no-op.
	Release(ctx context.Context, nationalID id.NationalID) error

	// Lookup returns the holder of the national ID, or sentinel.ErrNotFound.
	Lookup(ctx context.Context, nationalID id.NationalID) (id.WorkerID, error)
}
