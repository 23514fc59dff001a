// Package postgres provides PostgreSQL implementations of the domain
// repositories. The payout store's writes are the serialization point for
// reconciliation: both the upsert and the settle write are single conditional
// statements so concurrent runs cannot half-apply.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/platform/persistence"
)

const payoutColumns = `id, church_id, processor_ref, amount, currency, status, payout_date, arrival_date,
		reconciled_at, transaction_count, gross_volume, total_fees, net_amount,
		unmatched_count, discrepancy, flagged_for_review, created_at, updated_at`

// PayoutRepository implements the payout.Repository interface for PostgreSQL
type PayoutRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewPayoutRepository creates a new PostgreSQL payout repository
func NewPayoutRepository(logger *slog.Logger, db *persistence.PostgresDB) payout.Repository {
	return &PayoutRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Upsert inserts the payout keyed on its processor reference. A conflict on
// the reference means the payout is already known; that is reported as
// created=false, never as an error.
func (r *PayoutRepository) Upsert(ctx context.Context, p *payout.Payout) (bool, error) {
	query := `
		INSERT INTO payouts (id, church_id, processor_ref, amount, currency, status, payout_date, arrival_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (processor_ref) DO NOTHING
	`

	result, err := r.querier.Exec(ctx, query,
		p.ID,
		p.ChurchID,
		p.ProcessorRef,
		p.Amount,
		p.Currency,
		p.Status,
		p.PayoutDate,
		p.ArrivalDate,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to upsert payout", "processor_ref", p.ProcessorRef, "error", err)
		return false, fmt.Errorf("failed to upsert payout: %w", err)
	}

	return result.RowsAffected() == 1, nil
}

// GetByID retrieves a payout by its ID
func (r *PayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE id = $1`, payoutColumns)

	p, err := r.scanPayout(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrPayoutNotFound{PayoutID: id}
		}
		r.logger.Error("Failed to get payout", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}

	return p, nil
}

// GetByProcessorRef retrieves a payout by its processor reference.
// Returns nil, nil when the reference is unknown.
func (r *PayoutRepository) GetByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*payout.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE church_id = $1 AND processor_ref = $2`, payoutColumns)

	p, err := r.scanPayout(r.querier.QueryRow(ctx, query, churchID, processorRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get payout by processor ref", "processor_ref", processorRef, "error", err)
		return nil, fmt.Errorf("failed to get payout by processor ref: %w", err)
	}

	return p, nil
}

// ListUnreconciled returns payouts in the given status with no reconciliation
// outcome yet, oldest first so long-overdue payouts settle first.
func (r *PayoutRepository) ListUnreconciled(ctx context.Context, churchID uuid.UUID, status payout.Status, limit int) ([]*payout.Payout, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM payouts
		WHERE church_id = $1 AND status = $2 AND reconciled_at IS NULL
		ORDER BY payout_date ASC
		LIMIT $3`, payoutColumns)

	rows, err := r.querier.Query(ctx, query, churchID, status, limit)
	if err != nil {
		r.logger.Error("Failed to list unreconciled payouts", "church_id", churchID.String(), "error", err)
		return nil, fmt.Errorf("failed to list unreconciled payouts: %w", err)
	}

	return r.collectPayouts(rows)
}

// List returns the church's payouts for the dashboard, newest first. Filter
// fields at their zero value apply no constraint; the From bound is inclusive
// and To exclusive on payout_date.
func (r *PayoutRepository) List(ctx context.Context, churchID uuid.UUID, f payout.ListFilter) ([]*payout.Payout, error) {
	query := fmt.Sprintf(`SELECT %s FROM payouts WHERE church_id = $1`, payoutColumns)
	args := []interface{}{churchID}

	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(" AND payout_date >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(" AND payout_date < $%d", len(args))
	}

	query += " ORDER BY payout_date DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list payouts", "church_id", churchID.String(), "error", err)
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}

	return r.collectPayouts(rows)
}

func (r *PayoutRepository) collectPayouts(rows pgx.Rows) ([]*payout.Payout, error) {
	defer rows.Close()

	var payouts []*payout.Payout
	for rows.Next() {
		p, err := r.scanPayout(rows)
		if err != nil {
			r.logger.Error("Failed to scan payout row", "error", err)
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		payouts = append(payouts, p)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over payout rows", "error", err)
		return nil, fmt.Errorf("error iterating over payout rows: %w", err)
	}

	return payouts, nil
}

// MarkReconciled writes the aggregates and the reconciliation timestamp in one
// conditional update. The reconciled_at IS NULL guard makes the settle write
// first-wins: a concurrent duplicate run affects zero rows and gets
// ErrAlreadyReconciled instead of overwriting.
func (r *PayoutRepository) MarkReconciled(ctx context.Context, id uuid.UUID, agg *payout.Aggregates) error {
	query := `
		UPDATE payouts
		SET reconciled_at = NOW(),
			transaction_count = $1,
			gross_volume = $2,
			total_fees = $3,
			net_amount = $4,
			unmatched_count = $5,
			discrepancy = $6,
			flagged_for_review = $7,
			updated_at = NOW()
		WHERE id = $8 AND reconciled_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query,
		agg.TransactionCount,
		agg.GrossVolume,
		agg.TotalFees,
		agg.NetAmount,
		agg.UnmatchedCount,
		agg.Discrepancy,
		agg.FlaggedForReview,
		id,
	)
	if err != nil {
		r.logger.Error("Failed to mark payout reconciled", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark payout reconciled: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Either the payout does not exist or another run settled it first.
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return payout.ErrAlreadyReconciled{PayoutID: id}
	}

	return nil
}

// CountByStatus partitions the church's payouts for the dashboard: reconciled
// means reconciled_at is set, failed covers failed and canceled payouts, and
// pending is everything else still awaiting reconciliation.
func (r *PayoutRepository) CountByStatus(ctx context.Context, churchID uuid.UUID) (*payout.StatusCounts, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE reconciled_at IS NOT NULL) AS reconciled,
			COUNT(*) FILTER (WHERE reconciled_at IS NULL AND status NOT IN ('failed', 'canceled')) AS pending,
			COUNT(*) FILTER (WHERE status IN ('failed', 'canceled')) AS failed
		FROM payouts
		WHERE church_id = $1
	`

	var counts payout.StatusCounts
	err := r.querier.QueryRow(ctx, query, churchID).Scan(
		&counts.Total,
		&counts.Reconciled,
		&counts.Pending,
		&counts.Failed,
	)
	if err != nil {
		r.logger.Error("Failed to count payouts by status", "church_id", churchID.String(), "error", err)
		return nil, fmt.Errorf("failed to count payouts by status: %w", err)
	}

	return &counts, nil
}

func (r *PayoutRepository) scanPayout(row pgx.Row) (*payout.Payout, error) {
	var p payout.Payout
	err := row.Scan(
		&p.ID,
		&p.ChurchID,
		&p.ProcessorRef,
		&p.Amount,
		&p.Currency,
		&p.Status,
		&p.PayoutDate,
		&p.ArrivalDate,
		&p.ReconciledAt,
		&p.TransactionCount,
		&p.GrossVolume,
		&p.TotalFees,
		&p.NetAmount,
		&p.UnmatchedCount,
		&p.Discrepancy,
		&p.FlaggedForReview,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
