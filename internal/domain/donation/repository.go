package donation

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the read/annotate surface reconciliation has on the
// donation ledger. The ledger is owned by the intake subsystem; attribution
// is the only write this package performs.
type Repository interface {
	// FindByProcessorRef looks up a transaction by its processor payment
	// reference. Returns nil, nil when no ledger row carries the reference.
	FindByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*Transaction, error)

	// AttributeToPayout sets the payout attribution with a compare-and-set
	// guard. Returns false when the transaction is already attributed to a
	// different payout; callers must treat that as a skip, not an error.
	// Attributing a transaction to the payout it already belongs to is a
	// no-op returning true.
	AttributeToPayout(ctx context.Context, transactionID, payoutID uuid.UUID) (bool, error)
}

// ErrTransactionNotFound indicates a missing ledger row
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "donation transaction not found: " + e.TransactionID.String()
}
