package reconciliation

import (
	"time"

	"github.com/google/uuid"

	"github.com/churchpay-reconciliation/internal/domain/payout"
)

// Event types published after a payout settles
const (
	EventTypeReconciled = "payout.reconciled"
	EventTypeFlagged    = "payout.flagged"
)

// Event is the Kafka message emitted after a reconciliation completes.
// Keyed by processor payout reference so one payout's events stay ordered.
type Event struct {
	Type         string            `json:"type"`
	PayoutID     uuid.UUID         `json:"payout_id"`
	ChurchID     uuid.UUID         `json:"church_id"`
	ProcessorRef string            `json:"processor_ref"`
	Aggregates   payout.Aggregates `json:"aggregates"`
	OccurredAt   time.Time         `json:"occurred_at"`
}
