package service

import (
	"context"
	"errors"
	"strconv"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/sentinel"
	"provenance/pkg/requestcontext"
)

// feeReverter is implemented by treasuries that can undo their most recent
// settlement. The in-memory ledger supports it; an external settlement layer
// would compensate on its own terms.
type feeReverter interface {
	Revert(ctx context.Context, amount uint64, from, to domain.Principal)
}

// RegisterBatch runs the full ordered precondition chain and, only when
// every check passes, settles the registration fee and inserts the record.
// The returned id is 0-based and monotonic.
//
// The check order is fixed and load-bearing: on multi-violating input the
// caller sees the code of the first failing check. Order:
// capacity, hash length, origin, certificate id, product type, quantity,
// location, currency, expiry, owner, description, price, hash uniqueness,
// authority binding.
func (r *Registry) RegisterBatch(ctx context.Context, p models.RegisterParams) (uint64, error) {
	ctx, span := r.tracer.Start(ctx, "registry.RegisterBatch")
	defer span.End()

	caller := requestcontext.Caller(ctx)
	height := requestcontext.Height(ctx)

	full, err := r.store.AtCapacity(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read registry capacity")
	}
	if full {
		return 0, r.reject(dErrors.New(dErrors.CodeMaxBatchesExceeded, "registry at capacity"))
	}

	if err := p.Validate(height); err != nil {
		return 0, r.reject(err)
	}

	exists, err := r.store.ExistsByHash(ctx, p.Hash)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "hash index lookup")
	}
	if exists {
		return 0, r.reject(dErrors.New(dErrors.CodeBatchAlreadyExists, "a batch with this hash is already registered"))
	}

	authority, bound, err := r.store.Authority(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read authority binding")
	}
	if !bound {
		return 0, r.reject(dErrors.New(dErrors.CodeAuthorityNotBound, "no authority bound"))
	}

	fee, err := r.store.Fee(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read registration fee")
	}

	// All preconditions hold. Fee settlement and insert form one logical
	// transaction: under serialized execution the insert cannot fail after
	// validation, and if it ever does the settlement is reverted so neither
	// effect is observable alone.
	if err := r.treasury.Transfer(ctx, fee, caller, authority); err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "registration fee transfer")
	}

	id, err := r.store.Insert(ctx, models.NewBatch(p, height))
	if err != nil {
		if rev, ok := r.treasury.(feeReverter); ok {
			rev.Revert(ctx, fee, caller, authority)
		}
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			return 0, r.reject(dErrors.New(dErrors.CodeBatchAlreadyExists, "a batch with this hash is already registered"))
		case errors.Is(err, sentinel.ErrCapacity):
			return 0, r.reject(dErrors.New(dErrors.CodeMaxBatchesExceeded, "registry at capacity"))
		default:
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "insert batch")
		}
	}

	if r.cache != nil {
		if err := r.cache.Store(ctx, p.Hash, true); err != nil {
			r.logger.WarnContext(ctx, "existence cache store failed", "error", err.Error())
		}
	}
	if r.metrics != nil {
		r.metrics.IncrementBatchesRegistered()
		r.metrics.AddFeesCollected(fee)
	}
	r.emit(ctx, audit.EventBatchRegistered, batchSubject(id), func(e *audit.Event) {
		e.HashKey = domain.HashKey(p.Hash)
		e.Amount = fee
	})
	r.logger.InfoContext(ctx, "batch registered",
		"batch_id", id,
		"owner", p.Owner.String(),
		"fee", fee,
	)
	return id, nil
}

// reject counts a refused registration by its code before returning it.
func (r *Registry) reject(err error) error {
	if r.metrics != nil {
		r.metrics.IncrementRegistrationRejected(strconv.Itoa(int(dErrors.CodeOf(err))))
	}
	return err
}
