// Package outbox persists pending mutations so writes made while offline
// survive a process restart, and replays them in FIFO order once
// connectivity returns.
package outbox

import "context"

// DurableStorage is the key-value persistence contract the queue runs on.
// Implementations must survive process restarts (file, Redis); the in-memory
// store exists for tests and ephemeral sessions.
type DurableStorage interface {
	// SetItem persists value under key, overwriting any previous value. The
	// write must be durable before SetItem returns.
	SetItem(ctx context.Context, key string, value []byte) error

	// GetItem returns the value for key, or apperrors.ErrNotFound.
	GetItem(ctx context.Context, key string) ([]byte, error)

	// RemoveItem deletes key. Removing an absent key is not an error.
	RemoveItem(ctx context.Context, key string) error

	// ListKeys returns all keys with the given prefix, in ascending
	// lexicographic order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}
