package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/churchpay-reconciliation/internal/domain/donation"
	"github.com/churchpay-reconciliation/internal/platform/persistence"
)

// DonationRepository implements the donation.Repository interface for
// PostgreSQL. The donation ledger is owned by the intake subsystem; this
// repository reads it and writes exactly one field, the payout attribution.
type DonationRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewDonationRepository creates a new PostgreSQL donation ledger repository
func NewDonationRepository(logger *slog.Logger, db *persistence.PostgresDB) donation.Repository {
	return &DonationRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// FindByProcessorRef looks up a ledger row by its processor payment
// reference. Returns nil, nil when no row carries the reference (a
// processor-side entry with no local counterpart).
func (r *DonationRepository) FindByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*donation.Transaction, error) {
	query := `
		SELECT id, church_id, processor_payment_ref, amount, processing_fee_covered_by_donor,
			platform_fee_amount, status, transaction_date, payout_id, created_at, updated_at
		FROM donation_transactions
		WHERE church_id = $1 AND processor_payment_ref = $2
	`

	var t donation.Transaction
	err := r.querier.QueryRow(ctx, query, churchID, processorRef).Scan(
		&t.ID,
		&t.ChurchID,
		&t.ProcessorPaymentRef,
		&t.Amount,
		&t.ProcessingFeeCoveredByDonor,
		&t.PlatformFeeAmount,
		&t.Status,
		&t.TransactionDate,
		&t.PayoutID,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to find donation by processor ref", "processor_ref", processorRef, "error", err)
		return nil, fmt.Errorf("failed to find donation by processor ref: %w", err)
	}

	return &t, nil
}

// AttributeToPayout sets the payout attribution with a compare-and-set guard:
// the update only lands when the transaction is unattributed or already
// attributed to this same payout. Zero rows affected means another payout
// holds the attribution; the caller must skip the transaction, not fail.
func (r *DonationRepository) AttributeToPayout(ctx context.Context, transactionID, payoutID uuid.UUID) (bool, error) {
	query := `
		UPDATE donation_transactions
		SET payout_id = $1, updated_at = NOW()
		WHERE id = $2 AND (payout_id IS NULL OR payout_id = $1)
	`

	result, err := r.querier.Exec(ctx, query, payoutID, transactionID)
	if err != nil {
		r.logger.Error("Failed to attribute donation to payout",
			"transaction_id", transactionID.String(),
			"payout_id", payoutID.String(),
			"error", err,
		)
		return false, fmt.Errorf("failed to attribute donation to payout: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
