// Package payout models a discrete transfer of funds from the payment
// processor to a church's bank account and the reconciliation outcome
// recorded against it.
package payout

import (
	"time"

	"github.com/google/uuid"
)

// Status defines payout states using the processor's native vocabulary
type Status string

const (
	StatusPending   Status = "pending"
	StatusInTransit Status = "in_transit"
	StatusPaid      Status = "paid"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// ValidStatus reports whether s is one of the processor's payout statuses.
func ValidStatus(s Status) bool {
	switch s {
	case StatusPending, StatusInTransit, StatusPaid, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// Aggregates holds the reconciliation result for a payout. Populated only
// when the payout settles; all monetary fields are integer minor units.
type Aggregates struct {
	TransactionCount int   `json:"transaction_count"`
	GrossVolume      int64 `json:"gross_volume"`
	TotalFees        int64 `json:"total_fees"`
	NetAmount        int64 `json:"net_amount"`
	// UnmatchedCount is the number of processor entries that had no local
	// ledger counterpart. They are excluded from the totals above.
	UnmatchedCount int `json:"unmatched_count"`
	// Discrepancy is NetAmount minus the amount the processor reported for
	// the payout. Retained for operator review when outside tolerance.
	Discrepancy      int64 `json:"discrepancy"`
	FlaggedForReview bool  `json:"flagged_for_review"`
}

// Payout is one settlement event reported by the processor.
type Payout struct {
	ID               uuid.UUID  `json:"id"`
	ChurchID         uuid.UUID  `json:"church_id"`
	ProcessorRef     string     `json:"processor_ref"` // unique per processor payout
	Amount           int64      `json:"amount"`        // net amount actually transferred
	Currency         string     `json:"currency"`
	Status           Status     `json:"status"`
	PayoutDate       time.Time  `json:"payout_date"`
	ArrivalDate      time.Time  `json:"arrival_date"`
	ReconciledAt     *time.Time `json:"reconciled_at,omitempty"` // set at most once
	TransactionCount *int       `json:"transaction_count,omitempty"`
	GrossVolume      *int64     `json:"gross_volume,omitempty"`
	TotalFees        *int64     `json:"total_fees,omitempty"`
	NetAmount        *int64     `json:"net_amount,omitempty"`
	UnmatchedCount   int        `json:"unmatched_count"`
	Discrepancy      int64      `json:"discrepancy"`
	FlaggedForReview bool       `json:"flagged_for_review"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// Reconciled reports whether the payout has reached its terminal
// reconciliation state.
func (p *Payout) Reconciled() bool {
	return p.ReconciledAt != nil
}

// StoredAggregates rebuilds the aggregate view from a reconciled row.
// Returns nil when the payout has not been reconciled yet.
func (p *Payout) StoredAggregates() *Aggregates {
	if !p.Reconciled() {
		return nil
	}
	agg := &Aggregates{
		UnmatchedCount:   p.UnmatchedCount,
		Discrepancy:      p.Discrepancy,
		FlaggedForReview: p.FlaggedForReview,
	}
	if p.TransactionCount != nil {
		agg.TransactionCount = *p.TransactionCount
	}
	if p.GrossVolume != nil {
		agg.GrossVolume = *p.GrossVolume
	}
	if p.TotalFees != nil {
		agg.TotalFees = *p.TotalFees
	}
	if p.NetAmount != nil {
		agg.NetAmount = *p.NetAmount
	}
	return agg
}

// StatusCounts is the dashboard rollup of payouts for one church.
type StatusCounts struct {
	Total      int64 `json:"total"`
	Reconciled int64 `json:"reconciled"`
	Pending    int64 `json:"pending"`
	Failed     int64 `json:"failed"`
}
