package handler

import (
	"time"

	"github.com/churchpay-reconciliation/internal/domain/reconrun"
)

// dateLayout is the calendar-date format accepted by listing query filters
const dateLayout = "2006-01-02"

// ImportRequest bounds how much payout history one import call pulls
type ImportRequest struct {
	Limit int `json:"limit" binding:"required,gt=0,max=500"`
}

// ListQuery narrows dashboard payout listings. Dates are calendar dates,
// both bounds inclusive.
type ListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=pending in_transit paid failed canceled"`
	From   string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To     string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Limit  int    `form:"limit" binding:"omitempty,gt=0,max=200"`
}

// ReconcileByRefRequest addresses a payout by its processor reference
type ReconcileByRefRequest struct {
	ProcessorRef string `json:"processor_ref" binding:"required"`
}

// RunResponse represents one archived reconciliation run, including the
// unmatched and duplicate detail an operator needs to investigate a flagged
// payout.
type RunResponse struct {
	RunID            string                          `json:"run_id"`
	PayoutID         string                          `json:"payout_id"`
	ProcessorRef     string                          `json:"processor_ref"`
	Outcome          string                          `json:"outcome"`
	TransactionCount int                             `json:"transaction_count"`
	GrossVolume      int64                           `json:"gross_volume"`
	TotalFees        int64                           `json:"total_fees"`
	NetAmount        int64                           `json:"net_amount"`
	ReportedAmount   int64                           `json:"reported_amount"`
	Discrepancy      int64                           `json:"discrepancy"`
	Unmatched        []reconrun.UnmatchedEntry       `json:"unmatched,omitempty"`
	Duplicates       []reconrun.DuplicateAttribution `json:"duplicates,omitempty"`
	CompletedAt      time.Time                       `json:"completed_at"`
}

// RunsResponse wraps a payout's run history, newest first
type RunsResponse struct {
	Runs []RunResponse `json:"runs"`
}

// AggregatesResponse represents a reconciliation outcome in API responses.
// All monetary values are integer minor currency units.
type AggregatesResponse struct {
	PayoutID         string `json:"payout_id"`
	TransactionCount int    `json:"transaction_count"`
	GrossVolume      int64  `json:"gross_volume"`
	TotalFees        int64  `json:"total_fees"`
	NetAmount        int64  `json:"net_amount"`
	UnmatchedCount   int    `json:"unmatched_count"`
	Discrepancy      int64  `json:"discrepancy"`
	FlaggedForReview bool   `json:"flagged_for_review"`
}

// PayoutResponse represents one payout row in dashboard listings
type PayoutResponse struct {
	ID               string     `json:"id"`
	ProcessorRef     string     `json:"processor_ref"`
	Amount           int64      `json:"amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	PayoutDate       time.Time  `json:"payout_date"`
	ArrivalDate      time.Time  `json:"arrival_date"`
	ReconciledAt     *time.Time `json:"reconciled_at,omitempty"`
	UnmatchedCount   int        `json:"unmatched_count"`
	Discrepancy      int64      `json:"discrepancy"`
	FlaggedForReview bool       `json:"flagged_for_review"`
}

// ListPayoutsResponse wraps a dashboard payout listing
type ListPayoutsResponse struct {
	Payouts []PayoutResponse `json:"payouts"`
}

// StatsResponse represents dashboard payout counts
type StatsResponse struct {
	Total      int64 `json:"total"`
	Reconciled int64 `json:"reconciled"`
	Pending    int64 `json:"pending"`
	Failed     int64 `json:"failed"`
}

// CheckImportableResponse tells the dashboard whether an import would do anything
type CheckImportableResponse struct {
	HasAccount     bool `json:"has_account"`
	AvailableCount int  `json:"available_count"`
}

// ImportResponse reports one import run
type ImportResponse struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// BatchFailureResponse identifies one payout that failed in a bulk run
type BatchFailureResponse struct {
	PayoutID     string `json:"payout_id"`
	ProcessorRef string `json:"processor_ref"`
	Reason       string `json:"reason"`
}

// ReconcileAllResponse reports a bulk reconciliation run
type ReconcileAllResponse struct {
	Reconciled int                    `json:"reconciled"`
	Failed     int                    `json:"failed"`
	Failures   []BatchFailureResponse `json:"failures,omitempty"`
}
