package store

import (
	"context"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
)

// Stores are interface-driven to keep the registry logic testable and to
// allow swapping the in-memory ledger state for Postgres without rewiring
// the service.

// BatchStore owns the batch records and the hash index. Implementations
// keep the two in step: the hash index is exactly the inverse of the hash
// field across all records after every call.
type BatchStore interface {
	// Insert allocates the next batch id, stores the record and indexes its
	// hash, all atomically. Returns sentinel.ErrCapacity at the ceiling and
	// sentinel.ErrConflict if the hash is already indexed.
	Insert(ctx context.Context, batch *models.Batch) (uint64, error)

	// Replace swaps a batch's hash, quantity and timestamp in place,
	// releasing the old hash-index entry and claiming the new one
	// atomically. All other fields are untouched. Returns
	// sentinel.ErrNotFound for unknown ids and sentinel.ErrConflict when
	// the new hash is indexed to a different batch.
	Replace(ctx context.Context, id uint64, hash []byte, quantity uint64, height uint64) (*models.Batch, error)

	// Get returns the batch or sentinel.ErrNotFound. Never mutates.
	Get(ctx context.Context, id uint64) (*models.Batch, error)

	// IDByHash resolves a content hash to the batch currently carrying it.
	IDByHash(ctx context.Context, hash []byte) (uint64, bool, error)

	// ExistsByHash reports whether any active batch carries the hash.
	ExistsByHash(ctx context.Context, hash []byte) (bool, error)

	// Count returns the number of batches ever created.
	Count(ctx context.Context) (uint64, error)

	// AtCapacity reports whether another registration would exceed the
	// batch ceiling.
	AtCapacity(ctx context.Context) (bool, error)
}

// UpdateLedger keeps the most recent update per batch. Record overwrites any
// prior slot; no history is retained.
type UpdateLedger interface {
	Record(ctx context.Context, update *models.BatchUpdate) error
	Latest(ctx context.Context, id uint64) (*models.BatchUpdate, error)
}

// AuthorityStore holds the write-once authority binding and the mutable
// registration fee.
type AuthorityStore interface {
	// BindAuthority sets the fee-receiving authority. Returns
	// sentinel.ErrAlreadySet once a binding exists.
	BindAuthority(ctx context.Context, principal domain.Principal) error

	// Authority returns the bound principal, or ok=false when unbound.
	Authority(ctx context.Context) (domain.Principal, bool, error)

	SetFee(ctx context.Context, fee uint64) error
	Fee(ctx context.Context) (uint64, error)
}

// Store is the full registry-wide state surface.
type Store interface {
	BatchStore
	UpdateLedger
	AuthorityStore
}
