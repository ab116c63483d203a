package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so the service layer can translate them into the coded domain
// errors the registry's callers expect.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: record does not exist in the store
//   - ErrConflict: a uniqueness constraint (hash index) would be violated
//   - ErrAlreadySet: a write-once value (authority binding) is already bound
//   - ErrCapacity: the registry's batch ceiling has been reached
//   - ErrUnavailable: backing resource temporarily unreachable
//
// For validation errors (bad input, out-of-domain fields), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadySet  = errors.New("already set")
	ErrCapacity    = errors.New("capacity reached")
	ErrUnavailable = errors.New("unavailable")
)
