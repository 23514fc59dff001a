// Package donation holds the ledger side of reconciliation: the donation
// transactions written by the intake subsystem. Reconciliation never mutates
// the core fields of a transaction, it only sets the payout attribution.
package donation

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrNegativeAmount = errors.New("donation amount must not be negative")
	ErrNegativeFee    = errors.New("fee amounts must not be negative")
)

// Status defines donation transaction states as reported by the intake subsystem
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
)

// Transaction is the system-of-record row for one donor charge.
// All monetary fields are integer minor currency units.
type Transaction struct {
	ID                          uuid.UUID  `json:"id"`
	ChurchID                    uuid.UUID  `json:"church_id"`
	ProcessorPaymentRef         *string    `json:"processor_payment_ref,omitempty"` // nil for manual/cash entries
	Amount                      int64      `json:"amount"`
	ProcessingFeeCoveredByDonor int64      `json:"processing_fee_covered_by_donor"`
	PlatformFeeAmount           int64      `json:"platform_fee_amount"`
	Status                      Status     `json:"status"`
	TransactionDate             time.Time  `json:"transaction_date"`
	PayoutID                    *uuid.UUID `json:"payout_id,omitempty"` // set once by reconciliation
	CreatedAt                   time.Time  `json:"created_at"`
	UpdatedAt                   time.Time  `json:"updated_at"`
}

// Validate checks the monetary fields the way the intake subsystem is expected
// to have written them. A violation is fatal for this record only.
func (t *Transaction) Validate() error {
	if t.Amount < 0 {
		return ErrNegativeAmount
	}
	if t.ProcessingFeeCoveredByDonor < 0 || t.PlatformFeeAmount < 0 {
		return ErrNegativeFee
	}
	return nil
}

// GrossContribution returns the donor-facing value of this transaction.
// When the donor opted to cover fees, the gross includes both the processing
// fee they covered and the platform's cut; otherwise it is the bare amount.
// Every gross-revenue computation in the system must go through this method.
func (t *Transaction) GrossContribution() int64 {
	if t.ProcessingFeeCoveredByDonor > 0 {
		return t.Amount + t.ProcessingFeeCoveredByDonor + t.PlatformFeeAmount
	}
	return t.Amount
}

// AttributedTo reports whether the transaction is already attributed to the
// given payout.
func (t *Transaction) AttributedTo(payoutID uuid.UUID) bool {
	return t.PayoutID != nil && *t.PayoutID == payoutID
}
