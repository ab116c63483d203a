// Package treasury is the value-transfer boundary the registry assumes
// exists. The execution environment settles fees; the registry only emits
// transfer instructions and relies on their synchronous, atomic success.
package treasury

import (
	"context"
	"sync"

	"provenance/pkg/domain"
	dErrors "provenance/pkg/domain-errors"
)

// Treasury debits the caller and credits a recipient as one synchronous
// operation.
type Treasury interface {
	Transfer(ctx context.Context, amount uint64, from, to domain.Principal) error
}

// Transfer is one settled fee movement.
type Transfer struct {
	Amount uint64
	From   domain.Principal
	To     domain.Principal
}

// Ledger records transfers in memory. It is both the single-process
// implementation and the assertion point for tests: every successful
// registration must appear here exactly once.
type Ledger struct {
	mu        sync.Mutex
	transfers []Transfer
}

func NewLedger() *Ledger {
	return &Ledger{}
}

func (l *Ledger) Transfer(_ context.Context, amount uint64, from, to domain.Principal) error {
	if from.IsZero() || to.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "transfer requires both parties")
	}
	if to.IsBurn() {
		return dErrors.New(dErrors.CodeInvalidInput, "cannot transfer to the burn principal")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.transfers = append(l.transfers, Transfer{Amount: amount, From: from, To: to})
	return nil
}

// Transfers returns the settled transfers in order.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer{}, l.transfers...)
}

// Revert removes the most recent transfer if it matches the given movement.
// The service uses it to keep "fee and insert happen together or not at
// all" observable if an insert ever fails after settlement.
func (l *Ledger) Revert(_ context.Context, amount uint64, from, to domain.Principal) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.transfers)
	if n == 0 {
		return
	}
	last := l.transfers[n-1]
	if last.Amount == amount && last.From == from && last.To == to {
		l.transfers = l.transfers[:n-1]
	}
}
