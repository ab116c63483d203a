package testutil

import (
	"context"

	"provenance/pkg/domain"
	"provenance/pkg/requestcontext"
)

// LedgerContext builds a context carrying the execution-environment inputs
// the registry core reads: caller principal and ledger height. Tests use it
// instead of running the HTTP middleware chain.
func LedgerContext(caller domain.Principal, height uint64) context.Context {
	ctx := context.Background()
	ctx = requestcontext.WithCaller(ctx, caller)
	ctx = requestcontext.WithHeight(ctx, height)
	return ctx
}
