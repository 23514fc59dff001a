package payout

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows dashboard payout listings. Zero-value fields apply no
// constraint. From is inclusive and To exclusive on payout_date.
type ListFilter struct {
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
}

// Repository defines payout persistence operations
type Repository interface {
	// Upsert inserts the payout keyed on its processor reference. Returns
	// true when a new row was created, false when the reference was already
	// known (an idempotent no-op counted as skipped by callers).
	Upsert(ctx context.Context, p *Payout) (bool, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Payout, error)
	GetByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*Payout, error)

	// ListUnreconciled returns payouts in the given status whose
	// reconciled_at is still null, oldest first.
	ListUnreconciled(ctx context.Context, churchID uuid.UUID, status Status, limit int) ([]*Payout, error)

	// List returns the church's payouts for the dashboard, newest first,
	// narrowed by the filter.
	List(ctx context.Context, churchID uuid.UUID, f ListFilter) ([]*Payout, error)

	// MarkReconciled writes the aggregates and reconciled_at in a single
	// conditional update guarded by reconciled_at IS NULL. Either every
	// aggregate field lands together with the timestamp or nothing does.
	// Returns ErrAlreadyReconciled when another run settled the payout first.
	MarkReconciled(ctx context.Context, id uuid.UUID, agg *Aggregates) error

	// CountByStatus partitions the church's payouts for the dashboard.
	CountByStatus(ctx context.Context, churchID uuid.UUID) (*StatusCounts, error)
}

// ErrPayoutNotFound indicates a missing payout row
type ErrPayoutNotFound struct {
	PayoutID uuid.UUID
}

func (e ErrPayoutNotFound) Error() string {
	return "payout not found: " + e.PayoutID.String()
}

// ErrAlreadyReconciled indicates the payout has already been settled.
// This is the store-level signal behind the idempotent short-circuit:
// callers re-read the row and return the stored aggregates.
type ErrAlreadyReconciled struct {
	PayoutID uuid.UUID
}

func (e ErrAlreadyReconciled) Error() string {
	return "payout already reconciled: " + e.PayoutID.String()
}
