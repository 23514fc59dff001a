package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/platform/cache"
)

func newTestStats() (*StatsService, *MockPayoutRepository) {
	payouts := new(MockPayoutRepository)
	svc := NewStatsService(newTestLogger(), payouts, cache.New[*payout.StatusCounts](8, 5*time.Second))
	return svc, payouts
}

func TestStatsService_Stats(t *testing.T) {
	ctx := context.Background()

	t.Run("CachesCounts", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()
		counts := &payout.StatusCounts{Total: 10, Reconciled: 6, Pending: 3, Failed: 1}

		payouts.On("CountByStatus", ctx, churchID).Return(counts, nil).Once()

		first, err := svc.Stats(ctx, churchID)
		require.NoError(t, err)
		second, err := svc.Stats(ctx, churchID)
		require.NoError(t, err)

		assert.Same(t, first, second)
		payouts.AssertNumberOfCalls(t, "CountByStatus", 1)
	})

	t.Run("InvalidateForcesRecount", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()

		payouts.On("CountByStatus", ctx, churchID).
			Return(&payout.StatusCounts{Total: 5, Pending: 5}, nil).Once()
		payouts.On("CountByStatus", ctx, churchID).
			Return(&payout.StatusCounts{Total: 5, Reconciled: 1, Pending: 4}, nil).Once()

		before, err := svc.Stats(ctx, churchID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), before.Reconciled)

		svc.Invalidate(churchID)

		after, err := svc.Stats(ctx, churchID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), after.Reconciled)
		payouts.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()
		dbErr := errors.New("db down")

		payouts.On("CountByStatus", ctx, churchID).Return(nil, dbErr).Once()

		counts, err := svc.Stats(ctx, churchID)
		assert.Nil(t, counts)
		assert.ErrorIs(t, err, dbErr)
	})
}

func TestStatsService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("DefaultsLimitWhenUnset", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()
		rows := []*payout.Payout{{ID: uuid.New(), ChurchID: churchID}}

		payouts.On("List", ctx, churchID, payout.ListFilter{Limit: defaultListLimit}).
			Return(rows, nil).Once()

		got, err := svc.List(ctx, churchID, payout.ListFilter{})
		require.NoError(t, err)
		assert.Equal(t, rows, got)
		payouts.AssertExpectations(t)
	})

	t.Run("PassesFilterThrough", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()
		f := payout.ListFilter{
			Status: payout.StatusPaid,
			From:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
			To:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			Limit:  20,
		}

		payouts.On("List", ctx, churchID, f).Return([]*payout.Payout{}, nil).Once()

		_, err := svc.List(ctx, churchID, f)
		require.NoError(t, err)
		payouts.AssertExpectations(t)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		svc, payouts := newTestStats()
		churchID := uuid.New()
		dbErr := errors.New("db down")

		payouts.On("List", ctx, churchID, payout.ListFilter{Limit: defaultListLimit}).
			Return(nil, dbErr).Once()

		rows, err := svc.List(ctx, churchID, payout.ListFilter{})
		assert.Nil(t, rows)
		assert.ErrorIs(t, err, dbErr)
	})
}
