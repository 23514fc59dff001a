package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/domain/donation"
	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/domain/reconrun"
	"github.com/churchpay-reconciliation/internal/platform/messaging/producers"
	"github.com/churchpay-reconciliation/internal/platform/processor"
)

// batchLimit caps how many payouts one ReconcileAll call picks up.
const batchLimit = 500

// BatchFailure identifies one payout that could not be reconciled in a bulk
// run, with enough detail to investigate it manually.
type BatchFailure struct {
	PayoutID     uuid.UUID `json:"payout_id"`
	ProcessorRef string    `json:"processor_ref"`
	Reason       string    `json:"reason"`
}

// BatchResult reports a bulk reconciliation outcome. One payout's failure
// never aborts the batch; it lands in Failures instead.
type BatchResult struct {
	Reconciled int            `json:"reconciled"`
	Failed     int            `json:"failed"`
	Failures   []BatchFailure `json:"failures,omitempty"`
}

// Outcome pairs a settled payout's aggregates with its identity, so callers
// know which payout was written and which church's dashboards to refresh.
type Outcome struct {
	PayoutID     uuid.UUID          `json:"payout_id"`
	ChurchID     uuid.UUID          `json:"church_id"`
	ProcessorRef string             `json:"processor_ref"`
	Aggregates   *payout.Aggregates `json:"aggregates"`
}

func newOutcome(p *payout.Payout, agg *payout.Aggregates) *Outcome {
	return &Outcome{
		PayoutID:     p.ID,
		ChurchID:     p.ChurchID,
		ProcessorRef: p.ProcessorRef,
		Aggregates:   agg,
	}
}

// Engine matches a payout's processor entries against the donation ledger and
// settles the result onto the payout row. A payout settles at most once: the
// conditional store write plus the short-circuit on a reconciled row make
// Reconcile idempotent under concurrency without any engine-side locking.
type Engine struct {
	churches  church.Repository
	payouts   payout.Repository
	donations donation.Repository
	processor processor.Client
	runs      reconrun.Repository        // best-effort audit trail, may be nil
	events    producers.MessagePublisher // best-effort notifications, may be nil
	logger    *slog.Logger
	tolerance int64
	pool      *ants.Pool
}

// NewEngine creates a reconciliation engine with a worker pool of poolSize
// for bulk runs. tolerance is the permitted absolute difference, in minor
// units, between computed net and the processor-reported payout amount.
func NewEngine(
	logger *slog.Logger,
	churches church.Repository,
	payouts payout.Repository,
	donations donation.Repository,
	proc processor.Client,
	runs reconrun.Repository,
	events producers.MessagePublisher,
	tolerance int64,
	poolSize int,
) (*Engine, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation worker pool: %w", err)
	}

	return &Engine{
		churches:  churches,
		payouts:   payouts,
		donations: donations,
		processor: proc,
		runs:      runs,
		events:    events,
		logger:    logger,
		tolerance: tolerance,
		pool:      pool,
	}, nil
}

// Shutdown releases the worker pool.
func (e *Engine) Shutdown() {
	e.logger.Info("Shutting down reconciliation worker pool", "running_workers", e.pool.Running())
	e.pool.Release()
}

// Reconcile settles one payout. Calling it on an already-reconciled payout
// returns the stored aggregates unchanged; calling it concurrently for the
// same payout lets exactly one run write, the other observing the winner's
// result.
func (e *Engine) Reconcile(ctx context.Context, payoutID uuid.UUID) (*Outcome, error) {
	p, err := e.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if p.Reconciled() {
		e.logger.Info("Payout already reconciled, returning stored aggregates",
			"payout_id", payoutID.String(),
			"processor_ref", p.ProcessorRef,
		)
		return newOutcome(p, p.StoredAggregates()), nil
	}

	ch, err := e.churches.GetByID(ctx, p.ChurchID)
	if err != nil {
		return nil, err
	}
	if !ch.Connected() {
		return nil, ErrNotConnected
	}

	// Outbound call happens before any write: a processor failure here
	// leaves the payout untouched and fully retryable.
	entries, err := e.processor.BalanceEntries(ctx, *ch.ProcessorAccountID, p.ProcessorRef)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch balance entries for %s: %w", p.ProcessorRef, err)
	}

	agg, run, err := e.matchAndAttribute(ctx, p, entries)
	if err != nil {
		return nil, err
	}

	agg.Discrepancy = agg.NetAmount - p.Amount
	if abs64(agg.Discrepancy) > e.tolerance {
		agg.FlaggedForReview = true
		e.logger.Warn("Payout net diverges from reported amount, flagging for review",
			"payout_id", p.ID.String(),
			"processor_ref", p.ProcessorRef,
			"computed_net", agg.NetAmount,
			"reported_amount", p.Amount,
			"discrepancy", agg.Discrepancy,
		)
	}

	if err := e.payouts.MarkReconciled(ctx, p.ID, agg); err != nil {
		var already payout.ErrAlreadyReconciled
		if errors.As(err, &already) {
			// A concurrent run settled the payout between our read and
			// write. Its aggregates are the truth; ours are discarded.
			settled, getErr := e.payouts.GetByID(ctx, p.ID)
			if getErr != nil {
				return nil, getErr
			}
			return newOutcome(settled, settled.StoredAggregates()), nil
		}
		return nil, err
	}

	e.finishRun(ctx, p, agg, run)

	e.logger.Info("Payout reconciled",
		"payout_id", p.ID.String(),
		"processor_ref", p.ProcessorRef,
		"transaction_count", agg.TransactionCount,
		"gross_volume", agg.GrossVolume,
		"total_fees", agg.TotalFees,
		"net_amount", agg.NetAmount,
		"flagged", agg.FlaggedForReview,
	)
	return newOutcome(p, agg), nil
}

// ReconcileByRef settles a payout addressed by its processor reference,
// lazily mirroring the local row first when no import has seen it yet.
func (e *Engine) ReconcileByRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*Outcome, error) {
	p, err := e.payouts.GetByProcessorRef(ctx, churchID, processorRef)
	if err != nil {
		return nil, err
	}
	if p == nil {
		p, err = e.mirrorPayout(ctx, churchID, processorRef)
		if err != nil {
			return nil, err
		}
	}
	return e.Reconcile(ctx, p.ID)
}

// mirrorPayout fetches a payout the store does not know yet from the
// processor and inserts it. Losing the insert race to a concurrent import is
// fine; the mirrored row is re-read either way.
func (e *Engine) mirrorPayout(ctx context.Context, churchID uuid.UUID, processorRef string) (*payout.Payout, error) {
	ch, err := e.churches.GetByID(ctx, churchID)
	if err != nil {
		return nil, err
	}
	if !ch.Connected() {
		return nil, ErrNotConnected
	}

	ev, err := e.processor.GetPayout(ctx, *ch.ProcessorAccountID, processorRef)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, ErrUnknownPayoutRef
	}
	if !payout.ValidStatus(payout.Status(ev.Status)) {
		return nil, ValidationError{Ref: ev.Ref, Reason: "unknown payout status " + ev.Status}
	}

	now := time.Now()
	p := &payout.Payout{
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
	}
	created, err := e.payouts.Upsert(ctx, p)
	if err != nil {
		return nil, err
	}
	if !created {
		p, err = e.payouts.GetByProcessorRef(ctx, churchID, processorRef)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, fmt.Errorf("payout %s exists but is not visible for church %s", processorRef, churchID)
		}
	}
	return p, nil
}

// matchAndAttribute walks the processor entries, matches each charge-bearing
// entry to a ledger row, and claims the attribution with a compare-and-set.
// Entries without a local counterpart are counted but excluded from the
// totals, as are transactions another payout already claimed.
func (e *Engine) matchAndAttribute(ctx context.Context, p *payout.Payout, entries []processor.BalanceEntry) (*payout.Aggregates, *reconrun.Run, error) {
	agg := &payout.Aggregates{}
	run := &reconrun.Run{
		RunID:          uuid.New(),
		PayoutID:       p.ID,
		ChurchID:       p.ChurchID,
		ProcessorRef:   p.ProcessorRef,
		ReportedAmount: p.Amount,
	}

	for _, entry := range entries {
		if entry.ChargeRef == "" {
			// Processor-side adjustment with no originating charge.
			e.noteUnmatched(agg, run, entry)
			continue
		}

		tx, err := e.donations.FindByProcessorRef(ctx, p.ChurchID, entry.ChargeRef)
		if err != nil {
			return nil, nil, err
		}
		if tx == nil {
			e.logger.Warn("Processor entry has no ledger counterpart",
				"payout_id", p.ID.String(),
				"charge_ref", entry.ChargeRef,
			)
			e.noteUnmatched(agg, run, entry)
			continue
		}

		if err := tx.Validate(); err != nil {
			// Fatal for this record only.
			e.logger.Error("Ledger row failed validation, excluding from aggregates",
				"payout_id", p.ID.String(),
				"transaction_id", tx.ID.String(),
				"error", ValidationError{Ref: entry.ChargeRef, Reason: err.Error()},
			)
			e.noteUnmatched(agg, run, entry)
			continue
		}

		// Claim the attribution at write time. The guard in the store is the
		// only thing standing between two payouts that both reference the
		// same charge, so a read-side check would not be enough.
		claimed, err := e.donations.AttributeToPayout(ctx, tx.ID, p.ID)
		if err != nil {
			return nil, nil, err
		}
		if !claimed {
			e.logger.Warn("Transaction already attributed to another payout, skipping",
				"payout_id", p.ID.String(),
				"transaction_id", tx.ID.String(),
				"charge_ref", entry.ChargeRef,
				"attributed_to", attributedTo(tx),
			)
			run.Duplicates = append(run.Duplicates, reconrun.DuplicateAttribution{
				TransactionID: tx.ID,
				ChargeRef:     entry.ChargeRef,
			})
			continue
		}

		agg.TransactionCount++
		agg.GrossVolume += tx.GrossContribution()
		agg.TotalFees += entry.Fee
	}

	agg.NetAmount = agg.GrossVolume - agg.TotalFees
	return agg, run, nil
}

// ReconcileAll settles every paid, unreconciled payout of the church through
// the worker pool. Failures are collected per payout and never abort the
// rest of the batch.
func (e *Engine) ReconcileAll(ctx context.Context, churchID uuid.UUID) (*BatchResult, error) {
	payouts, err := e.payouts.ListUnreconciled(ctx, churchID, payout.StatusPaid, batchLimit)
	if err != nil {
		return nil, err
	}

	result := &BatchResult{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, p := range payouts {
		p := p
		wg.Add(1)
		submitErr := e.pool.Submit(func() {
			defer wg.Done()
			_, err := e.Reconcile(ctx, p.ID)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Failures = append(result.Failures, BatchFailure{
					PayoutID:     p.ID,
					ProcessorRef: p.ProcessorRef,
					Reason:       err.Error(),
				})
				return
			}
			result.Reconciled++
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			result.Failed++
			result.Failures = append(result.Failures, BatchFailure{
				PayoutID:     p.ID,
				ProcessorRef: p.ProcessorRef,
				Reason:       submitErr.Error(),
			})
			mu.Unlock()
		}
	}

	wg.Wait()

	e.logger.Info("Bulk reconciliation finished",
		"church_id", churchID.String(),
		"eligible", len(payouts),
		"reconciled", result.Reconciled,
		"failed", result.Failed,
	)
	return result, nil
}

// finishRun archives the run document and publishes the reconciliation
// event. Both are best-effort: the payout is already settled, and neither a
// Mongo hiccup nor a Kafka outage may undo or fail that.
func (e *Engine) finishRun(ctx context.Context, p *payout.Payout, agg *payout.Aggregates, run *reconrun.Run) {
	run.Outcome = reconrun.OutcomeReconciled
	if agg.FlaggedForReview {
		run.Outcome = reconrun.OutcomeFlagged
	}
	run.TransactionCount = agg.TransactionCount
	run.GrossVolume = agg.GrossVolume
	run.TotalFees = agg.TotalFees
	run.NetAmount = agg.NetAmount
	run.Discrepancy = agg.Discrepancy
	run.CompletedAt = time.Now().UTC()

	if e.runs != nil {
		if err := e.runs.Record(ctx, run); err != nil {
			e.logger.Error("Failed to archive reconciliation run",
				"payout_id", p.ID.String(),
				"error", err,
			)
		}
	}

	if e.events != nil {
		eventType := EventTypeReconciled
		if agg.FlaggedForReview {
			eventType = EventTypeFlagged
		}
		event := Event{
			Type:         eventType,
			PayoutID:     p.ID,
			ChurchID:     p.ChurchID,
			ProcessorRef: p.ProcessorRef,
			Aggregates:   *agg,
			OccurredAt:   run.CompletedAt,
		}
		if err := e.events.Publish(ctx, p.ProcessorRef, event); err != nil {
			e.logger.Error("Failed to publish reconciliation event",
				"payout_id", p.ID.String(),
				"error", err,
			)
		}
	}
}

func (e *Engine) noteUnmatched(agg *payout.Aggregates, run *reconrun.Run, entry processor.BalanceEntry) {
	agg.UnmatchedCount++
	run.Unmatched = append(run.Unmatched, reconrun.UnmatchedEntry{
		ChargeRef: entry.ChargeRef,
		Gross:     entry.Gross,
		Fee:       entry.Fee,
		Net:       entry.Net,
	})
}

func attributedTo(tx *donation.Transaction) string {
	if tx.PayoutID == nil {
		return ""
	}
	return tx.PayoutID.String()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
