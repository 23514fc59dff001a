// Package church is the tenant registry: the mapping from a church to its
// payment-processor account. A church without a processor account id has not
// completed onboarding and cannot import or reconcile payouts.
package church

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Church is one tenant of the platform.
type Church struct {
	ID                 uuid.UUID `json:"id"`
	Name               string    `json:"name"`
	ProcessorAccountID *string   `json:"processor_account_id,omitempty"` // nil until onboarding completes
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Connected reports whether the church has a linked processor account.
func (c *Church) Connected() bool {
	return c.ProcessorAccountID != nil && *c.ProcessorAccountID != ""
}

// Repository defines tenant lookup operations
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Church, error)

	// ListConnected returns every church with a processor account, used by
	// the scheduled sync job.
	ListConnected(ctx context.Context) ([]*Church, error)
}

// ErrChurchNotFound indicates a missing tenant
type ErrChurchNotFound struct {
	ChurchID uuid.UUID
}

func (e ErrChurchNotFound) Error() string {
	return "church not found: " + e.ChurchID.String()
}
