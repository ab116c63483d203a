package audit

import (
	"time"

	"provenance/pkg/domain"
)

// Event is emitted from domain logic to capture registry mutations. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID        string
	Action    string
	Timestamp time.Time
	// Actor is the caller that performed the operation.
	Actor domain.Principal
	// Subject identifies what was acted on: a batch id for batch events,
	// the bound principal for authority events.
	Subject string
	// Height is the ledger height the mutation was stamped with.
	Height uint64
	// HashKey is the hex content hash involved, when the event concerns one.
	HashKey string
	// Amount carries the fee moved for registration events.
	Amount uint64
	// Correlation and client metadata from the request context.
	RequestID string
	ClientIP  string
	UserAgent string
}

// RegistryEvent names the actions the registry emits.
type RegistryEvent string

const (
	EventAuthorityBound    RegistryEvent = "authority.bound"
	EventFeeChanged        RegistryEvent = "fee.changed"
	EventBatchRegistered   RegistryEvent = "batch.registered"
	EventBatchUpdated      RegistryEvent = "batch.updated"
	EventBatchUpdateDenied RegistryEvent = "batch.update_denied"
)
