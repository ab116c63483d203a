package domain

import (
	"strings"

	dErrors "provenance/pkg/domain-errors"
)

// Principal is the on-ledger identity of an actor: a batch owner, an origin
// party, the fee-receiving authority, or the caller of an operation.
//
// Invariants:
//   - never empty where a real actor is required
//   - never the burn principal where a real actor is required
type Principal string

// BurnPrincipal is the reserved null identity. Fees can never be routed to it
// and it can never own or originate a batch.
const BurnPrincipal Principal = "SP000000000000000000002Q6VF78"

// IsBurn reports whether the principal is the reserved null identity.
func (p Principal) IsBurn() bool {
	return p == BurnPrincipal
}

// IsZero reports whether the principal is unset.
func (p Principal) IsZero() bool {
	return p == ""
}

func (p Principal) String() string {
	return string(p)
}

// ParsePrincipal validates an identity string at a trust boundary. The burn
// principal parses successfully; callers that require a real actor check
// IsBurn separately, because "present but reserved" maps to a different
// error code than "absent".
func ParsePrincipal(raw string) (Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "principal cannot be empty")
	}
	return Principal(raw), nil
}
