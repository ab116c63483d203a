package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"provenance/internal/registry/models"
	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// BatchResponse is the wire shape of a batch record.
type BatchResponse struct {
	ID          uint64 `json:"id"`
	Hash        string `json:"hash"`
	Origin      string `json:"origin"`
	Timestamp   uint64 `json:"timestamp"`
	CertID      uint64 `json:"cert_id"`
	Status      bool   `json:"status"`
	ProductType string `json:"product_type"`
	Quantity    uint64 `json:"quantity"`
	Location    string `json:"location"`
	Currency    string `json:"currency"`
	Expiry      uint64 `json:"expiry"`
	Owner       string `json:"owner"`
	Description string `json:"description"`
	Price       uint64 `json:"price"`
}

func toBatchResponse(b *models.Batch) BatchResponse {
	return BatchResponse{
		ID:          b.ID,
		Hash:        domain.HashKey(b.Hash),
		Origin:      b.Origin.String(),
		Timestamp:   b.Timestamp,
		CertID:      b.CertID,
		Status:      b.Status,
		ProductType: string(b.ProductType),
		Quantity:    b.Quantity,
		Location:    b.Location,
		Currency:    string(b.Currency),
		Expiry:      b.Expiry,
		Owner:       b.Owner.String(),
		Description: b.Description,
		Price:       b.Price,
	}
}

// BatchUpdateResponse is the wire shape of a batch's last update slot.
type BatchUpdateResponse struct {
	BatchID         uint64 `json:"batch_id"`
	UpdateHash      string `json:"update_hash"`
	UpdateQuantity  uint64 `json:"update_quantity"`
	UpdateTimestamp uint64 `json:"update_timestamp"`
	Updater         string `json:"updater"`
}

func toBatchUpdateResponse(u *models.BatchUpdate) BatchUpdateResponse {
	return BatchUpdateResponse{
		BatchID:         u.BatchID,
		UpdateHash:      domain.HashKey(u.UpdateHash),
		UpdateQuantity:  u.UpdateQuantity,
		UpdateTimestamp: u.UpdateTimestamp,
		Updater:         u.Updater.String(),
	}
}

// RegisterBatchResponse carries the id assigned to a new batch.
type RegisterBatchResponse struct {
	BatchID uint64 `json:"batch_id"`
}

// CountResponse carries the total number of batches registered.
type CountResponse struct {
	Count uint64 `json:"count"`
}

// ExistsResponse answers a hash existence probe.
type ExistsResponse struct {
	Exists bool `json:"exists"`
}

type errorResponse struct {
	Error       int    `json:"error"`
	Description string `json:"error_description"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError renders the numeric error envelope. Registry codes map onto
// HTTP statuses here and nowhere else; the code itself is the contract.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal server error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	writeJSON(w, statusFor(code), errorResponse{Error: int(code), Description: message})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotAuthorized, dErrors.CodeUpdateNotAllowed:
		return http.StatusForbidden
	case dErrors.CodeBatchNotFound, dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBatchAlreadyExists, dErrors.CodeAuthorityNotBound,
		dErrors.CodeMaxBatchesExceeded, dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeInternal:
		return http.StatusInternalServerError
	}
	// The remaining registry codes are all field validation failures.
	return http.StatusBadRequest
}
