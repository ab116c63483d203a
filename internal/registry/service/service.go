// Package service implements the provenance registry's validation and
// mutation logic: the invariants enforced on every state transition and the
// small state machine each batch record follows (nonexistent -> active,
// then in-place updates).
//
// Every state-changing operation is applied in full isolation: validation is
// fully evaluated before any mutation or fee transfer begins, so no partial
// state is ever observable on failure. The execution environment supplies
// the caller principal and ledger height through the request context.
package service

import (
	"context"
	"log/slog"
	"strconv"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"provenance/internal/registry/metrics"
	"provenance/internal/registry/models"
	"provenance/internal/registry/store"
	"provenance/internal/registry/treasury"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	audit "provenance/pkg/platform/audit"
	"provenance/pkg/platform/audit/publisher"
	"provenance/pkg/requestcontext"
)

// ExistenceCache answers hash-existence lookups ahead of the store. Cache
// failures are never allowed to fail an operation; the service logs and
// falls through to the store.
type ExistenceCache interface {
	Lookup(ctx context.Context, hash []byte) (exists bool, found bool, err error)
	Store(ctx context.Context, hash []byte, exists bool) error
	Invalidate(ctx context.Context, hashes ...[]byte) error
}

// Registry orchestrates batch registration, updates and reads over the
// store, the treasury and the authority binding.
type Registry struct {
	store    store.Store
	treasury treasury.Treasury
	cache    ExistenceCache
	audit    *publisher.Publisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Registry)

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithAuditPublisher(p *publisher.Publisher) Option {
	return func(r *Registry) { r.audit = p }
}

func WithExistenceCache(c ExistenceCache) Option {
	return func(r *Registry) { r.cache = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

func New(st store.Store, tr treasury.Treasury, opts ...Option) *Registry {
	r := &Registry{
		store:    st,
		treasury: tr,
		logger:   slog.Default(),
		tracer:   otel.Tracer("provenance/registry"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetAuthorityContract binds the fee-receiving authority. The binding is
// write-once: it can never be overwritten and never be the burn principal.
func (r *Registry) SetAuthorityContract(ctx context.Context, principal domain.Principal) error {
	ctx, span := r.tracer.Start(ctx, "registry.SetAuthorityContract")
	defer span.End()

	if principal.IsZero() || principal.IsBurn() {
		return dErrors.New(dErrors.CodeInvalidInput, "authority cannot be the burn principal")
	}
	if err := r.store.BindAuthority(ctx, principal); err != nil {
		return dErrors.Wrap(err, dErrors.CodeConflict, "authority contract already set")
	}

	r.emit(ctx, audit.EventAuthorityBound, principal.String(), nil)
	return nil
}

// SetRegistrationFee overwrites the fee charged per registration.
//
// The gate is deliberately weak: it requires that an authority is bound,
// not that the caller is that authority. Callers depend on this exact
// check; do not tighten it here.
func (r *Registry) SetRegistrationFee(ctx context.Context, fee uint64) error {
	ctx, span := r.tracer.Start(ctx, "registry.SetRegistrationFee")
	defer span.End()

	_, bound, err := r.store.Authority(ctx)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "read authority binding")
	}
	if !bound {
		return dErrors.New(dErrors.CodeNotAuthorized, "no authority bound")
	}
	if err := r.store.SetFee(ctx, fee); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "store registration fee")
	}

	r.emit(ctx, audit.EventFeeChanged, "registry", func(e *audit.Event) {
		e.Amount = fee
	})
	return nil
}

// GetBatch returns the record for id.
func (r *Registry) GetBatch(ctx context.Context, id uint64) (*models.Batch, error) {
	batch, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBatchNotFound, "batch not found")
	}
	return batch, nil
}

// GetBatchUpdate returns the most recent update slot for id, if any.
func (r *Registry) GetBatchUpdate(ctx context.Context, id uint64) (*models.BatchUpdate, error) {
	update, err := r.store.Latest(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "no update recorded for batch")
	}
	return update, nil
}

// GetBatchCount returns the number of batches ever created. Ids are never
// reused and batches are never deleted, so this is also the active count.
func (r *Registry) GetBatchCount(ctx context.Context) (uint64, error) {
	count, err := r.store.Count(ctx)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "read batch count")
	}
	return count, nil
}

// CheckBatchExistence reports whether any active batch carries the hash.
// Served from the existence cache when one is configured.
func (r *Registry) CheckBatchExistence(ctx context.Context, hash []byte) (bool, error) {
	ctx, span := r.tracer.Start(ctx, "registry.CheckBatchExistence")
	defer span.End()

	if r.cache != nil {
		exists, found, err := r.cache.Lookup(ctx, hash)
		if err != nil {
			r.logger.WarnContext(ctx, "existence cache lookup failed", "error", err.Error())
		} else if found {
			return exists, nil
		}
	}

	exists, err := r.store.ExistsByHash(ctx, hash)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "hash index lookup")
	}
	if r.cache != nil {
		if err := r.cache.Store(ctx, hash, exists); err != nil {
			r.logger.WarnContext(ctx, "existence cache store failed", "error", err.Error())
		}
	}
	return exists, nil
}

// emit publishes an audit event enriched with request-scoped metadata.
func (r *Registry) emit(ctx context.Context, action audit.RegistryEvent, subject string, fill func(*audit.Event)) {
	if r.audit == nil {
		return
	}
	event := audit.Event{
		Action:    string(action),
		Actor:     requestcontext.Caller(ctx),
		Subject:   subject,
		Height:    requestcontext.Height(ctx),
		RequestID: requestcontext.RequestID(ctx),
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
	}
	if fill != nil {
		fill(&event)
	}
	if err := r.audit.Emit(ctx, event); err != nil {
		r.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"subject", event.Subject,
			"error", err.Error(),
		)
	}
}

func batchSubject(id uint64) string {
	return "batch/" + strconv.FormatUint(id, 10)
}
