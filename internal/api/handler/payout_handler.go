package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/domain/reconrun"
	"github.com/churchpay-reconciliation/internal/platform/processor"
	"github.com/churchpay-reconciliation/internal/reconciliation"
)

// ReconcileService is the engine surface the handler depends on
type ReconcileService interface {
	Reconcile(ctx context.Context, payoutID uuid.UUID) (*reconciliation.Outcome, error)
	ReconcileByRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*reconciliation.Outcome, error)
	ReconcileAll(ctx context.Context, churchID uuid.UUID) (*reconciliation.BatchResult, error)
}

// ImportService is the importer surface the handler depends on
type ImportService interface {
	CheckAvailable(ctx context.Context, churchID uuid.UUID) (*reconciliation.CheckResult, error)
	ImportHistorical(ctx context.Context, churchID uuid.UUID, limit int) (*reconciliation.ImportResult, error)
}

// StatsProvider serves the dashboard read side: cached counts and payout
// listings
type StatsProvider interface {
	Stats(ctx context.Context, churchID uuid.UUID) (*payout.StatusCounts, error)
	List(ctx context.Context, churchID uuid.UUID, f payout.ListFilter) ([]*payout.Payout, error)
	Invalidate(churchID uuid.UUID)
}

// RunArchive serves the reconciliation audit trail: the per-run unmatched
// and duplicate detail that the settle write on the payout row does not keep
type RunArchive interface {
	GetByPayoutID(ctx context.Context, payoutID uuid.UUID, limit int) ([]*reconrun.Run, error)
}

// runHistoryLimit caps how many archived runs one request returns.
const runHistoryLimit = 20

// PayoutHandler handles HTTP requests for payout reconciliation operations
type PayoutHandler struct {
	engine   ReconcileService
	importer ImportService
	stats    StatsProvider
	runs     RunArchive
	logger   *slog.Logger
}

// NewPayoutHandler creates a new payout handler
func NewPayoutHandler(logger *slog.Logger, engine ReconcileService, importer ImportService, stats StatsProvider, runs RunArchive) *PayoutHandler {
	return &PayoutHandler{
		engine:   engine,
		importer: importer,
		stats:    stats,
		runs:     runs,
		logger:   logger,
	}
}

// Stats returns payout counts partitioned by reconciliation state
func (h *PayoutHandler) Stats(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	counts, err := h.stats.Stats(c.Request.Context(), churchID)
	if err != nil {
		h.respondError(c, err, "Failed to get payout stats")
		return
	}

	RespondOK(c, StatsResponse{
		Total:      counts.Total,
		Reconciled: counts.Reconciled,
		Pending:    counts.Pending,
		Failed:     counts.Failed,
	})
}

// List returns the church's payouts for the dashboard, newest first,
// optionally narrowed by status and payout date
func (h *PayoutHandler) List(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	var q ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.logger.Error("Invalid payout list query", "error", err)
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	f := payout.ListFilter{
		Status: payout.Status(q.Status),
		Limit:  q.Limit,
	}
	if q.From != "" {
		from, err := time.Parse(dateLayout, q.From)
		if err != nil {
			RespondBadRequest(c, "Invalid from date")
			return
		}
		f.From = from
	}
	if q.To != "" {
		to, err := time.Parse(dateLayout, q.To)
		if err != nil {
			RespondBadRequest(c, "Invalid to date")
			return
		}
		// The to date is inclusive for the caller; the store bound is
		// exclusive, so push it to the following midnight.
		f.To = to.AddDate(0, 0, 1)
	}

	payouts, err := h.stats.List(c.Request.Context(), churchID, f)
	if err != nil {
		h.respondError(c, err, "Failed to list payouts")
		return
	}

	resp := ListPayoutsResponse{Payouts: make([]PayoutResponse, 0, len(payouts))}
	for _, p := range payouts {
		resp.Payouts = append(resp.Payouts, PayoutResponse{
			ID:               p.ID.String(),
			ProcessorRef:     p.ProcessorRef,
			Amount:           p.Amount,
			Currency:         p.Currency,
			Status:           string(p.Status),
			PayoutDate:       p.PayoutDate,
			ArrivalDate:      p.ArrivalDate,
			ReconciledAt:     p.ReconciledAt,
			UnmatchedCount:   p.UnmatchedCount,
			Discrepancy:      p.Discrepancy,
			FlaggedForReview: p.FlaggedForReview,
		})
	}
	RespondOK(c, resp)
}

// CheckImportable reports whether the church can import payout history
func (h *PayoutHandler) CheckImportable(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	res, err := h.importer.CheckAvailable(c.Request.Context(), churchID)
	if err != nil {
		h.respondError(c, err, "Failed to check importable payouts")
		return
	}

	RespondOK(c, CheckImportableResponse{
		HasAccount:     res.HasAccount,
		AvailableCount: res.AvailableCount,
	})
}

// Import pulls payout history from the processor into the payout store
func (h *PayoutHandler) Import(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid import request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	res, err := h.importer.ImportHistorical(c.Request.Context(), churchID, req.Limit)
	if err != nil {
		// A partial import is still progress; the counts that landed travel
		// with the failure so the operator knows a retry imports the rest.
		if res != nil && (res.Imported > 0 || res.Skipped > 0) {
			h.logger.Warn("Import ended early", "church_id", churchID.String(), "imported", res.Imported, "skipped", res.Skipped, "error", err)
			h.stats.Invalidate(churchID)
			var unavailable *processor.UnavailableError
			if errors.As(err, &unavailable) {
				RespondUnavailableWithData(c,
					"The payment processor failed mid-import; the reported progress is kept, retry for the rest",
					ImportResponse{Imported: res.Imported, Skipped: res.Skipped})
				return
			}
		}
		h.respondError(c, err, "Failed to import payout history")
		return
	}

	h.stats.Invalidate(churchID)
	RespondOK(c, ImportResponse{Imported: res.Imported, Skipped: res.Skipped})
}

// Reconcile settles a single payout and returns its aggregates
func (h *PayoutHandler) Reconcile(c *gin.Context) {
	idParam := c.Param("id")
	payoutID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payout ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payout ID")
		return
	}

	out, err := h.engine.Reconcile(c.Request.Context(), payoutID)
	if err != nil {
		h.respondError(c, err, "Failed to reconcile payout")
		return
	}

	h.stats.Invalidate(out.ChurchID)
	RespondOK(c, aggregatesResponse(out))
}

// ReconcileByRef settles a payout addressed by its processor reference,
// creating the local row first when no import has mirrored it yet
func (h *PayoutHandler) ReconcileByRef(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	var req ReconcileByRefRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid reconcile request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	out, err := h.engine.ReconcileByRef(c.Request.Context(), churchID, req.ProcessorRef)
	if err != nil {
		h.respondError(c, err, "Failed to reconcile payout by reference")
		return
	}

	h.stats.Invalidate(churchID)
	RespondOK(c, aggregatesResponse(out))
}

// Runs returns the archived reconciliation runs for a payout, newest first.
// This is where the unmatched-entry and duplicate-attribution detail behind
// a flagged payout is read from.
func (h *PayoutHandler) Runs(c *gin.Context) {
	idParam := c.Param("id")
	payoutID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid payout ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid payout ID")
		return
	}

	runs, err := h.runs.GetByPayoutID(c.Request.Context(), payoutID, runHistoryLimit)
	if err != nil {
		h.respondError(c, err, "Failed to load reconciliation runs")
		return
	}

	resp := RunsResponse{Runs: make([]RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, RunResponse{
			RunID:            r.RunID.String(),
			PayoutID:         r.PayoutID.String(),
			ProcessorRef:     r.ProcessorRef,
			Outcome:          string(r.Outcome),
			TransactionCount: r.TransactionCount,
			GrossVolume:      r.GrossVolume,
			TotalFees:        r.TotalFees,
			NetAmount:        r.NetAmount,
			ReportedAmount:   r.ReportedAmount,
			Discrepancy:      r.Discrepancy,
			Unmatched:        r.Unmatched,
			Duplicates:       r.Duplicates,
			CompletedAt:      r.CompletedAt,
		})
	}
	RespondOK(c, resp)
}

func aggregatesResponse(out *reconciliation.Outcome) AggregatesResponse {
	agg := out.Aggregates
	return AggregatesResponse{
		PayoutID:         out.PayoutID.String(),
		TransactionCount: agg.TransactionCount,
		GrossVolume:      agg.GrossVolume,
		TotalFees:        agg.TotalFees,
		NetAmount:        agg.NetAmount,
		UnmatchedCount:   agg.UnmatchedCount,
		Discrepancy:      agg.Discrepancy,
		FlaggedForReview: agg.FlaggedForReview,
	}
}

// ReconcileAll settles every eligible payout of the church
func (h *PayoutHandler) ReconcileAll(c *gin.Context) {
	churchID, ok := h.churchIDParam(c)
	if !ok {
		return
	}

	result, err := h.engine.ReconcileAll(c.Request.Context(), churchID)
	if err != nil {
		h.respondError(c, err, "Failed to run bulk reconciliation")
		return
	}

	h.stats.Invalidate(churchID)

	resp := ReconcileAllResponse{
		Reconciled: result.Reconciled,
		Failed:     result.Failed,
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, BatchFailureResponse{
			PayoutID:     f.PayoutID.String(),
			ProcessorRef: f.ProcessorRef,
			Reason:       f.Reason,
		})
	}
	RespondOK(c, resp)
}

func (h *PayoutHandler) churchIDParam(c *gin.Context) (uuid.UUID, bool) {
	idParam := c.Param("churchId")
	churchID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid church ID", "church_id", idParam, "error", err)
		RespondBadRequest(c, "Invalid church ID")
		return uuid.Nil, false
	}
	return churchID, true
}

// respondError maps domain errors onto HTTP statuses: missing records are
// 404, an unlinked account is a user-actionable 422, a processor outage is a
// retryable 503, everything else is a 500.
func (h *PayoutHandler) respondError(c *gin.Context, err error, logMsg string) {
	var churchNotFound church.ErrChurchNotFound
	var payoutNotFound payout.ErrPayoutNotFound
	var validation reconciliation.ValidationError
	var unavailable *processor.UnavailableError

	switch {
	case errors.As(err, &churchNotFound):
		RespondNotFound(c, churchNotFound.Error())
	case errors.As(err, &payoutNotFound):
		RespondNotFound(c, payoutNotFound.Error())
	case errors.Is(err, reconciliation.ErrUnknownPayoutRef):
		RespondNotFound(c, err.Error())
	case errors.Is(err, reconciliation.ErrNotConnected):
		RespondUnprocessable(c, "NOT_CONNECTED", "Connect a payment processor account before importing or reconciling payouts")
	case errors.As(err, &validation):
		RespondUnprocessable(c, "INVALID_RECORD", validation.Error())
	case errors.As(err, &unavailable):
		RespondUnavailable(c, "The payment processor is temporarily unavailable, try again shortly")
	default:
		h.logger.Error(logMsg, "error", err)
		RespondInternalError(c)
	}
}
