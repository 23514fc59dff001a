// Package reconrun records the audit trail of reconciliation runs. Each run
// document keeps what the settle write on the payout row cannot: the unmatched
// processor entries, the duplicate attributions, and the discrepancy detail an
// operator needs to investigate a flagged payout.
package reconrun

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies how a reconciliation run ended
type Outcome string

const (
	OutcomeReconciled Outcome = "RECONCILED"
	OutcomeFlagged    Outcome = "FLAGGED"
	OutcomeFailed     Outcome = "FAILED"
)

// UnmatchedEntry is a processor balance entry that had no ledger counterpart.
type UnmatchedEntry struct {
	ChargeRef string `json:"charge_ref,omitempty" bson:"charge_ref,omitempty"`
	Gross     int64  `json:"gross" bson:"gross"`
	Fee       int64  `json:"fee" bson:"fee"`
	Net       int64  `json:"net" bson:"net"`
}

// DuplicateAttribution records a transaction that was referenced by this
// payout but already belonged to another one.
type DuplicateAttribution struct {
	TransactionID uuid.UUID `json:"transaction_id" bson:"transaction_id"`
	ChargeRef     string    `json:"charge_ref" bson:"charge_ref"`
}

// Run is one reconciliation attempt for one payout.
type Run struct {
	RunID            uuid.UUID              `json:"run_id" bson:"run_id"`
	PayoutID         uuid.UUID              `json:"payout_id" bson:"payout_id"`
	ChurchID         uuid.UUID              `json:"church_id" bson:"church_id"`
	ProcessorRef     string                 `json:"processor_ref" bson:"processor_ref"`
	Outcome          Outcome                `json:"outcome" bson:"outcome"`
	TransactionCount int                    `json:"transaction_count" bson:"transaction_count"`
	GrossVolume      int64                  `json:"gross_volume" bson:"gross_volume"`
	TotalFees        int64                  `json:"total_fees" bson:"total_fees"`
	NetAmount        int64                  `json:"net_amount" bson:"net_amount"`
	ReportedAmount   int64                  `json:"reported_amount" bson:"reported_amount"`
	Discrepancy      int64                  `json:"discrepancy" bson:"discrepancy"`
	Unmatched        []UnmatchedEntry       `json:"unmatched,omitempty" bson:"unmatched,omitempty"`
	Duplicates       []DuplicateAttribution `json:"duplicates,omitempty" bson:"duplicates,omitempty"`
	Error            string                 `json:"error,omitempty" bson:"error,omitempty"`
	CompletedAt      time.Time              `json:"completed_at" bson:"completed_at"`
}

// Repository manages run archive persistence
type Repository interface {
	Record(ctx context.Context, run *Run) error
	GetByPayoutID(ctx context.Context, payoutID uuid.UUID, limit int) ([]*Run, error)
}
