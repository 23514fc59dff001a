package reconciliation

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/churchpay-reconciliation/internal/domain/church"
	"github.com/churchpay-reconciliation/internal/domain/donation"
	"github.com/churchpay-reconciliation/internal/domain/payout"
	"github.com/churchpay-reconciliation/internal/domain/reconrun"
	"github.com/churchpay-reconciliation/internal/platform/processor"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// MockChurchRepository mocks church.Repository
type MockChurchRepository struct {
	mock.Mock
}

func (m *MockChurchRepository) GetByID(ctx context.Context, id uuid.UUID) (*church.Church, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*church.Church); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockChurchRepository) ListConnected(ctx context.Context) ([]*church.Church, error) {
	args := m.Called(ctx)
	if cs, ok := args.Get(0).([]*church.Church); ok {
		return cs, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPayoutRepository mocks payout.Repository
type MockPayoutRepository struct {
	mock.Mock
}

func (m *MockPayoutRepository) Upsert(ctx context.Context, p *payout.Payout) (bool, error) {
	args := m.Called(ctx, p)
	return args.Bool(0), args.Error(1)
}

func (m *MockPayoutRepository) GetByID(ctx context.Context, id uuid.UUID) (*payout.Payout, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*payout.Payout); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayoutRepository) GetByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*payout.Payout, error) {
	args := m.Called(ctx, churchID, processorRef)
	if p, ok := args.Get(0).(*payout.Payout); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayoutRepository) ListUnreconciled(ctx context.Context, churchID uuid.UUID, status payout.Status, limit int) ([]*payout.Payout, error) {
	args := m.Called(ctx, churchID, status, limit)
	if ps, ok := args.Get(0).([]*payout.Payout); ok {
		return ps, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayoutRepository) List(ctx context.Context, churchID uuid.UUID, f payout.ListFilter) ([]*payout.Payout, error) {
	args := m.Called(ctx, churchID, f)
	if ps, ok := args.Get(0).([]*payout.Payout); ok {
		return ps, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockPayoutRepository) MarkReconciled(ctx context.Context, id uuid.UUID, agg *payout.Aggregates) error {
	args := m.Called(ctx, id, agg)
	return args.Error(0)
}

func (m *MockPayoutRepository) CountByStatus(ctx context.Context, churchID uuid.UUID) (*payout.StatusCounts, error) {
	args := m.Called(ctx, churchID)
	if c, ok := args.Get(0).(*payout.StatusCounts); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockDonationRepository mocks donation.Repository
type MockDonationRepository struct {
	mock.Mock
}

func (m *MockDonationRepository) FindByProcessorRef(ctx context.Context, churchID uuid.UUID, processorRef string) (*donation.Transaction, error) {
	args := m.Called(ctx, churchID, processorRef)
	if tx, ok := args.Get(0).(*donation.Transaction); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockDonationRepository) AttributeToPayout(ctx context.Context, transactionID, payoutID uuid.UUID) (bool, error) {
	args := m.Called(ctx, transactionID, payoutID)
	return args.Bool(0), args.Error(1)
}

// MockProcessorClient mocks processor.Client
type MockProcessorClient struct {
	mock.Mock
}

func (m *MockProcessorClient) PayoutCount(ctx context.Context, accountID string) (int, error) {
	args := m.Called(ctx, accountID)
	return args.Int(0), args.Error(1)
}

func (m *MockProcessorClient) ListPayouts(ctx context.Context, accountID string, limit int) ([]processor.PayoutEvent, error) {
	args := m.Called(ctx, accountID, limit)
	if evs, ok := args.Get(0).([]processor.PayoutEvent); ok {
		return evs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) GetPayout(ctx context.Context, accountID, payoutRef string) (*processor.PayoutEvent, error) {
	args := m.Called(ctx, accountID, payoutRef)
	if ev, ok := args.Get(0).(*processor.PayoutEvent); ok {
		return ev, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProcessorClient) BalanceEntries(ctx context.Context, accountID, payoutRef string) ([]processor.BalanceEntry, error) {
	args := m.Called(ctx, accountID, payoutRef)
	if entries, ok := args.Get(0).([]processor.BalanceEntry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockRunRepository mocks reconrun.Repository
type MockRunRepository struct {
	mock.Mock
}

func (m *MockRunRepository) Record(ctx context.Context, run *reconrun.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepository) GetByPayoutID(ctx context.Context, payoutID uuid.UUID, limit int) ([]*reconrun.Run, error) {
	args := m.Called(ctx, payoutID, limit)
	if runs, ok := args.Get(0).([]*reconrun.Run); ok {
		return runs, args.Error(1)
	}
	return nil, args.Error(1)
}

// MockPublisher mocks producers.MessagePublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}
