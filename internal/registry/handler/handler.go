// Package handler is the thin HTTP layer over the registry service. It
// decodes requests, delegates, and renders the numeric error envelope;
// business rules live in the service.
package handler

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"provenance/internal/platform/chain"
	"provenance/internal/platform/middleware"
	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
	"provenance/pkg/requestcontext"
)

// Service defines the registry operations the HTTP layer exposes.
type Service interface {
	SetAuthorityContract(ctx context.Context, principal domain.Principal) error
	SetRegistrationFee(ctx context.Context, fee uint64) error
	RegisterBatch(ctx context.Context, p models.RegisterParams) (uint64, error)
	UpdateBatch(ctx context.Context, id uint64, updateHash []byte, updateQuantity int64) error
	GetBatch(ctx context.Context, id uint64) (*models.Batch, error)
	GetBatchUpdate(ctx context.Context, id uint64) (*models.BatchUpdate, error)
	GetBatchCount(ctx context.Context) (uint64, error)
	CheckBatchExistence(ctx context.Context, hash []byte) (bool, error)
}

// Handler handles registry endpoints.
type Handler struct {
	registry  Service
	logger    *slog.Logger
	clock     chain.Clock
	validator middleware.TokenValidator
}

// New creates a new registry Handler.
func New(registry Service, logger *slog.Logger, clock chain.Clock, validator middleware.TokenValidator) *Handler {
	return &Handler{
		registry:  registry,
		logger:    logger,
		clock:     clock,
		validator: validator,
	}
}

// Register registers the registry routes with the chi router. Reads are
// open; every state-changing route requires an authenticated caller.
func (h *Handler) Register(r chi.Router) {
	registryRouter := chi.NewRouter()
	registryRouter.Use(middleware.Recovery(h.logger))
	registryRouter.Use(middleware.RequestID)
	registryRouter.Use(middleware.RequestTime)
	registryRouter.Use(middleware.ClientMetadata)
	registryRouter.Use(middleware.LedgerHeight(h.clock))

	registryRouter.Group(func(g chi.Router) {
		g.Use(middleware.RequireAuth(h.validator, h.logger))
		g.Post("/registry/authority", h.handleSetAuthority)
		g.Post("/registry/fee", h.handleSetFee)
		g.Post("/registry/batches", h.handleRegisterBatch)
		g.Put("/registry/batches/{id}", h.handleUpdateBatch)
	})

	registryRouter.Get("/registry/batches/count", h.handleGetCount)
	registryRouter.Get("/registry/batches/exists/{hash}", h.handleCheckExistence)
	registryRouter.Get("/registry/batches/{id}", h.handleGetBatch)
	registryRouter.Get("/registry/batches/{id}/update", h.handleGetBatchUpdate)

	r.Mount("/", registryRouter)
}

func (h *Handler) handleSetAuthority(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SetAuthorityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	principal, err := domain.ParsePrincipal(req.Principal)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.registry.SetAuthorityContract(ctx, principal); err != nil {
		h.logWarn(ctx, "set authority failed", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSetFee(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SetFeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	if err := h.registry.SetRegistrationFee(ctx, req.Fee); err != nil {
		h.logWarn(ctx, "set registration fee failed", err)
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRegisterBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	// Decode hex only; length is a registration precondition the service
	// checks in order.
	hash, err := hex.DecodeString(req.Hash)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "hash must be hex encoded"))
		return
	}

	id, err := h.registry.RegisterBatch(ctx, models.RegisterParams{
		Hash:        hash,
		Origin:      domain.Principal(req.Origin),
		CertID:      req.CertID,
		ProductType: req.ProductType,
		Quantity:    req.Quantity,
		Location:    req.Location,
		Currency:    req.Currency,
		Expiry:      req.Expiry,
		Owner:       domain.Principal(req.Owner),
		Description: req.Description,
		Price:       req.Price,
	})
	if err != nil {
		h.logWarn(ctx, "batch registration refused", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterBatchResponse{BatchID: id})
}

func (h *Handler) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := batchID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req UpdateBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	hash, err := hex.DecodeString(req.UpdateHash)
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "update hash must be hex encoded"))
		return
	}

	if err := h.registry.UpdateBatch(ctx, id, hash, req.UpdateQuantity); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	id, err := batchID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	batch, err := h.registry.GetBatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(batch))
}

func (h *Handler) handleGetBatchUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := batchID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	update, err := h.registry.GetBatchUpdate(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBatchUpdateResponse(update))
}

func (h *Handler) handleGetCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.registry.GetBatchCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: count})
}

func (h *Handler) handleCheckExistence(w http.ResponseWriter, r *http.Request) {
	hash, err := domain.ParseHash(chi.URLParam(r, "hash"))
	if err != nil {
		writeError(w, err)
		return
	}
	exists, err := h.registry.CheckBatchExistence(r.Context(), hash)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Exists: exists})
}

func batchID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidBatchID, "invalid batch id")
	}
	return id, nil
}

func (h *Handler) logWarn(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err.Error(),
	)
}
