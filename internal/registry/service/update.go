package service

import (
	"context"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/requestcontext"
)

// UpdateBatch replaces a batch's hash and quantity and records the update in
// the per-batch slot, both stamped with the current ledger height and the
// caller as updater.
//
// Preconditions, in order: the batch exists; the caller is its owner; the
// new hash is exactly 32 bytes; the new quantity is positive; the new hash
// is not indexed to a different batch. Updating a batch to its own current
// hash is allowed.
//
// Unlike registration, every failed precondition surfaces the same coarse
// code. The asymmetry is part of the registry's contract; the underlying
// reason is logged, never returned.
func (r *Registry) UpdateBatch(ctx context.Context, id uint64, updateHash []byte, updateQuantity int64) error {
	ctx, span := r.tracer.Start(ctx, "registry.UpdateBatch")
	defer span.End()

	caller := requestcontext.Caller(ctx)
	height := requestcontext.Height(ctx)

	batch, err := r.store.Get(ctx, id)
	if err != nil {
		return r.deny(ctx, id, "batch not found")
	}
	if batch.Owner != caller {
		return r.deny(ctx, id, "caller is not the batch owner")
	}
	if len(updateHash) != domain.HashSize {
		return r.deny(ctx, id, "update hash must be exactly 32 bytes")
	}
	if updateQuantity <= 0 {
		return r.deny(ctx, id, "update quantity must be positive")
	}
	holder, taken, err := r.store.IDByHash(ctx, updateHash)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash index lookup")
	}
	if taken && holder != id {
		return r.deny(ctx, id, "update hash already registered to another batch")
	}

	prevHash := append([]byte(nil), batch.Hash...)
	quantity := uint64(updateQuantity)

	if _, err := r.store.Replace(ctx, id, updateHash, quantity, height); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "replace batch record")
	}
	if err := r.store.Record(ctx, &models.BatchUpdate{
		BatchID:         id,
		UpdateHash:      updateHash,
		UpdateQuantity:  quantity,
		UpdateTimestamp: height,
		Updater:         caller,
	}); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record batch update")
	}

	if r.cache != nil {
		// The old hash is released and may be claimed by a future batch;
		// drop both entries so stale existence answers cannot linger.
		if err := r.cache.Invalidate(ctx, prevHash, updateHash); err != nil {
			r.logger.WarnContext(ctx, "existence cache invalidation failed", "error", err.Error())
		}
	}
	if r.metrics != nil {
		r.metrics.IncrementBatchUpdates()
	}
	r.emit(ctx, audit.EventBatchUpdated, batchSubject(id), func(e *audit.Event) {
		e.HashKey = domain.HashKey(updateHash)
	})
	r.logger.InfoContext(ctx, "batch updated",
		"batch_id", id,
		"updater", caller.String(),
	)
	return nil
}

// deny is the single failure path for updates. The caller-visible result
// never distinguishes which precondition failed.
func (r *Registry) deny(ctx context.Context, id uint64, reason string) error {
	if r.metrics != nil {
		r.metrics.IncrementBatchUpdatesDenied()
	}
	r.emit(ctx, audit.EventBatchUpdateDenied, batchSubject(id), nil)
	r.logger.DebugContext(ctx, "batch update denied",
		"batch_id", id,
		"reason", reason,
	)
	return dErrors.New(dErrors.CodeUpdateNotAllowed, "update not allowed")
}
