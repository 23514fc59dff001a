package reconciliation

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/platform/cache"
)

// StatsService is the read-only rollup behind the operator dashboard. It is
// safe at high call rates: the counting query runs at most once per TTL per
// church, and a reconcile invalidates the entry so fresh counts show up
// immediately after.
type StatsService struct {
	payouts payout.Repository
	cache   *cache.TTLCache[*payout.StatusCounts]
	logger  *slog.Logger
}

// NewStatsService creates a stats service backed by the given cache.
func NewStatsService(logger *slog.Logger, payouts payout.Repository, c *cache.TTLCache[*payout.StatusCounts]) *StatsService {
	return &StatsService{
		payouts: payouts,
		cache:   c,
		logger:  logger,
	}
}

// Stats returns the church's payout counts partitioned by reconciliation
// state. No side effects.
func (s *StatsService) Stats(ctx context.Context, churchID uuid.UUID) (*payout.StatusCounts, error) {
	key := churchID.String()
	if counts, ok := s.cache.Get(key); ok {
		return counts, nil
	}

	counts, err := s.payouts.CountByStatus(ctx, churchID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(key, counts)
	return counts, nil
}

// defaultListLimit bounds dashboard listings when the caller passes none.
const defaultListLimit = 50

// List returns the church's payouts for the dashboard, newest first.
// Listings are not cached; rows change on every reconcile and the query is
// already bounded.
func (s *StatsService) List(ctx context.Context, churchID uuid.UUID, f payout.ListFilter) ([]*payout.Payout, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	return s.payouts.List(ctx, churchID, f)
}

// Invalidate drops the cached counts for a church. Called after reconcile and
// import operations so operators see updated numbers without waiting out the
// TTL.
func (s *StatsService) Invalidate(churchID uuid.UUID) {
	s.cache.Delete(churchID.String())
}
