package models

import (
	"unicode/utf8"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Field bounds. Lengths are counted in runes to match the registry's
// utf8-string semantics.
const (
	MaxLocationLen    = 100
	MaxDescriptionLen = 200
)

// RegisterParams carries the raw registration candidate. Numeric fields that
// must be positive arrive signed so out-of-domain values reach the validator
// instead of failing in decoding.
type RegisterParams struct {
	Hash        []byte
	Origin      domain.Principal
	CertID      int64
	ProductType string
	Quantity    int64
	Location    string
	Currency    string
	Expiry      uint64
	Owner       domain.Principal
	Description string
	Price       int64
}

// Validate runs the pure field-domain checks of registration in their fixed
// order and returns the first violation. The order is load-bearing: callers
// receive the code of the first failing check even when several fields are
// invalid. Capacity, hash uniqueness and the authority gate need registry
// state and are checked by the service around this call.
func (p RegisterParams) Validate(height uint64) error {
	if len(p.Hash) != domain.HashSize {
		return dErrors.New(dErrors.CodeInvalidHash, "hash must be exactly 32 bytes")
	}
	if p.Origin.IsBurn() {
		return dErrors.New(dErrors.CodeInvalidOrigin, "origin cannot be the burn principal")
	}
	if p.CertID <= 0 {
		return dErrors.New(dErrors.CodeInvalidCertID, "certificate id must be positive")
	}
	if !ProductType(p.ProductType).Valid() {
		return dErrors.New(dErrors.CodeInvalidProductType, "unknown product type")
	}
	if p.Quantity <= 0 {
		return dErrors.New(dErrors.CodeInvalidQuantity, "quantity must be positive")
	}
	if p.Location == "" || utf8.RuneCountInString(p.Location) > MaxLocationLen {
		return dErrors.New(dErrors.CodeInvalidLocation, "location must be 1-100 characters")
	}
	if !Currency(p.Currency).Valid() {
		return dErrors.New(dErrors.CodeInvalidCurrency, "unknown currency")
	}
	if p.Expiry <= height {
		return dErrors.New(dErrors.CodeInvalidExpiry, "expiry must be beyond the current ledger height")
	}
	if p.Owner.IsBurn() {
		return dErrors.New(dErrors.CodeInvalidOwner, "owner cannot be the burn principal")
	}
	if p.Description == "" || utf8.RuneCountInString(p.Description) > MaxDescriptionLen {
		return dErrors.New(dErrors.CodeInvalidDescription, "description must be 1-200 characters")
	}
	if p.Price < 0 {
		return dErrors.New(dErrors.CodeInvalidPrice, "price cannot be negative")
	}
	return nil
}
