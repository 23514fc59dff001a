// Package processor wraps the payment processor's API behind a narrow client
// interface. The reconciliation engine and importer depend only on this
// interface; the SDK never leaks past this package.
package processor

import (
	"context"
	"time"
)

// PayoutEvent is one settlement event as the processor reports it. Statuses
// use the processor's native vocabulary (pending, in_transit, paid, failed,
// canceled).
type PayoutEvent struct {
	Ref         string // processor payout reference, unique
	Amount      int64  // net amount transferred, minor units
	Currency    string
	Status      string
	Created     time.Time
	ArrivalDate time.Time
}

// BalanceEntry is one balance-affecting item composing a payout. ChargeRef is
// empty for processor-side adjustments that have no originating charge.
type BalanceEntry struct {
	ChargeRef string
	Gross     int64
	Fee       int64
	Net       int64
}

// Client defines the processor operations reconciliation consumes
type Client interface {
	// PayoutCount reports how many payout events exist for the account,
	// bounded by the client's page size. Read-only.
	PayoutCount(ctx context.Context, accountID string) (int, error)

	// ListPayouts returns up to limit payout events, most recent first.
	ListPayouts(ctx context.Context, accountID string, limit int) ([]PayoutEvent, error)

	// GetPayout fetches one payout event by its processor reference.
	// Returns nil when the account has no payout with that reference.
	GetPayout(ctx context.Context, accountID, payoutRef string) (*PayoutEvent, error)

	// BalanceEntries returns the balance-affecting entries composing the
	// given payout.
	BalanceEntries(ctx context.Context, accountID, payoutRef string) ([]BalanceEntry, error)
}

// UnavailableError indicates a transient processor failure. Operations that
// hit it are safely retryable: nothing partial has been written.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return "processor unavailable during " + e.Op + ": " + e.Err.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}
