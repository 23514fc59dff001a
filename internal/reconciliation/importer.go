package reconciliation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/platform/processor"
)

// CheckResult reports whether a church can import and roughly how much
type CheckResult struct {
	HasAccount     bool `json:"has_account"`
	AvailableCount int  `json:"available_count"`
}

// ImportResult reports the outcome of one import run. Skipped counts payouts
// the store already knew; re-running an import only adds the delta.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

// Importer mirrors payout events the processor knows about into the payout
// store. Inserts are keyed on the processor reference, so repeated imports
// are idempotent by construction.
type Importer struct {
	churches  church.Repository
	payouts   payout.Repository
	processor processor.Client
	logger    *slog.Logger
}

// NewImporter creates a new import service
func NewImporter(logger *slog.Logger, churches church.Repository, payouts payout.Repository, proc processor.Client) *Importer {
	return &Importer{
		churches:  churches,
		payouts:   payouts,
		processor: proc,
		logger:    logger,
	}
}

// CheckAvailable queries the processor for the size of the church's payout
// history without writing anything. A church with no connected account gets
// HasAccount=false, which is an answer, not an error.
func (s *Importer) CheckAvailable(ctx context.Context, churchID uuid.UUID) (*CheckResult, error) {
	ch, err := s.churches.GetByID(ctx, churchID)
	if err != nil {
		return nil, err
	}
	if !ch.Connected() {
		return &CheckResult{HasAccount: false}, nil
	}

	count, err := s.processor.PayoutCount(ctx, *ch.ProcessorAccountID)
	if err != nil {
		return nil, err
	}

	return &CheckResult{HasAccount: true, AvailableCount: count}, nil
}

// ImportHistorical lists up to limit payout events (most recent first) and
// inserts the ones not yet mirrored locally. Partial progress survives a
// mid-list processor failure: whatever was inserted stays, and the error is
// returned together with the counts so far.
func (s *Importer) ImportHistorical(ctx context.Context, churchID uuid.UUID, limit int) (*ImportResult, error) {
	ch, err := s.churches.GetByID(ctx, churchID)
	if err != nil {
		return nil, err
	}
	if !ch.Connected() {
		return nil, ErrNotConnected
	}

	events, listErr := s.processor.ListPayouts(ctx, *ch.ProcessorAccountID, limit)
	// A partial page still gets mirrored; listErr is dealt with afterwards.

	result := &ImportResult{}
	for _, ev := range events {
		if !payout.ValidStatus(payout.Status(ev.Status)) {
			// Fatal for this record only; the rest of the page still imports.
			s.logger.Error("Skipping payout event with unknown status",
				"processor_ref", ev.Ref,
				"status", ev.Status,
			)
			continue
		}

		now := time.Now()
		created, err := s.payouts.Upsert(ctx, &payout.Payout{
			ID:           uuid.New(),
			ChurchID:     churchID,
			ProcessorRef: ev.Ref,
			Amount:       ev.Amount,
			Currency:     ev.Currency,
			Status:       payout.Status(ev.Status),
			PayoutDate:   ev.Created,
			ArrivalDate:  ev.ArrivalDate,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			return result, fmt.Errorf("import aborted at %s: %w", ev.Ref, err)
		}
		if created {
			result.Imported++
		} else {
			result.Skipped++
		}
	}

	if listErr != nil {
		s.logger.Warn("Payout listing ended early, keeping partial import",
			"church_id", churchID.String(),
			"imported", result.Imported,
			"skipped", result.Skipped,
			"error", listErr,
		)
		return result, listErr
	}

	s.logger.Info("Imported payout history",
		"church_id", churchID.String(),
		"imported", result.Imported,
		"skipped", result.Skipped,
	)
	return result, nil
}
