package models

import (
	"provenance/pkg/domain"
)

// Batch is the aggregate root for one registered unit of product provenance
// data.
//
// Invariants:
//   - ID is assigned once by the store and never changes
//   - Hash is exactly 32 bytes and globally unique across active batches
//   - Origin and Owner are never the burn principal
//   - Expiry was strictly greater than the ledger height at creation time
//   - Only Hash, Quantity and Timestamp change after creation, and only
//     through a successful update by the recorded Owner
type Batch struct {
	ID          uint64
	Hash        []byte
	Origin      domain.Principal
	Timestamp   uint64
	CertID      uint64
	Status      bool
	ProductType ProductType
	Quantity    uint64
	Location    string
	Currency    Currency
	Expiry      uint64
	Owner       domain.Principal
	Description string
	Price       uint64
}

// BatchUpdate is the most recent update applied to a batch. One slot per
// batch id; each new update replaces the prior. This is last-write-wins,
// not a log.
type BatchUpdate struct {
	BatchID         uint64
	UpdateHash      []byte
	UpdateQuantity  uint64
	UpdateTimestamp uint64
	Updater         domain.Principal
}

// NewBatch builds an active batch from validated registration parameters,
// stamped with the ledger height at creation. Call Validate first; this
// constructor assumes every field is already in domain.
func NewBatch(p RegisterParams, height uint64) *Batch {
	return &Batch{
		Hash:        p.Hash,
		Origin:      p.Origin,
		Timestamp:   height,
		CertID:      uint64(p.CertID),
		Status:      true,
		ProductType: ProductType(p.ProductType),
		Quantity:    uint64(p.Quantity),
		Location:    p.Location,
		Currency:    Currency(p.Currency),
		Expiry:      p.Expiry,
		Owner:       p.Owner,
		Description: p.Description,
		Price:       uint64(p.Price),
	}
}
