package processor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/churchpay-reconciliation/internal/config"
)

// StripeClient implements Client over the Stripe API. Tenant accounts are
// Stripe connected accounts; every call is scoped to one of them.
type StripeClient struct {
	api     *client.API
	logger  *slog.Logger
	timeout time.Duration
	maxPage int
}

// NewStripeClient creates a processor client authenticated with the platform
// API key from cfg.
func NewStripeClient(logger *slog.Logger, cfg *config.ProcessorConfig) *StripeClient {
	api := &client.API{}
	api.Init(cfg.APIKey, nil)

	return &StripeClient{
		api:     api,
		logger:  logger,
		timeout: cfg.RequestTimeout,
		maxPage: cfg.MaxListPage,
	}
}

// PayoutCount counts the account's payout events up to the configured page
// size. The dashboard only needs "nothing to import" vs. an indicative size,
// so one page is enough.
func (c *StripeClient) PayoutCount(ctx context.Context, accountID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PayoutListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(c.maxPage))
	params.SetStripeAccount(accountID)

	count := 0
	iter := c.api.Payouts.List(params)
	for iter.Next() {
		count++
	}
	if err := iter.Err(); err != nil {
		return 0, c.wrap("payout count", err)
	}

	return count, nil
}

// ListPayouts returns up to limit payout events, most recent first (the
// processor's list order).
func (c *StripeClient) ListPayouts(ctx context.Context, accountID string, limit int) ([]PayoutEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if limit <= 0 || limit > c.maxPage {
		limit = c.maxPage
	}

	params := &stripe.PayoutListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(limit))
	params.SetStripeAccount(accountID)

	var events []PayoutEvent
	iter := c.api.Payouts.List(params)
	for iter.Next() && len(events) < limit {
		p := iter.Payout()
		events = append(events, PayoutEvent{
			Ref:         p.ID,
			Amount:      p.Amount,
			Currency:    string(p.Currency),
			Status:      string(p.Status),
			Created:     time.Unix(p.Created, 0).UTC(),
			ArrivalDate: time.Unix(p.ArrivalDate, 0).UTC(),
		})
	}
	if err := iter.Err(); err != nil {
		// Partial pages are returned alongside the error so callers can keep
		// the progress they made.
		return events, c.wrap("list payouts", err)
	}

	return events, nil
}

// GetPayout fetches one payout event by reference. An unknown reference is
// an answer (nil), not an error.
func (c *StripeClient) GetPayout(ctx context.Context, accountID, payoutRef string) (*PayoutEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.PayoutParams{}
	params.Context = ctx
	params.SetStripeAccount(accountID)

	p, err := c.api.Payouts.Get(payoutRef, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, c.wrap("get payout", err)
	}

	return &PayoutEvent{
		Ref:         p.ID,
		Amount:      p.Amount,
		Currency:    string(p.Currency),
		Status:      string(p.Status),
		Created:     time.Unix(p.Created, 0).UTC(),
		ArrivalDate: time.Unix(p.ArrivalDate, 0).UTC(),
	}, nil
}

// BalanceEntries returns the balance transactions composing the payout.
// Entries whose source is not a charge come back with an empty ChargeRef.
func (c *StripeClient) BalanceEntries(ctx context.Context, accountID, payoutRef string) ([]BalanceEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := &stripe.BalanceTransactionListParams{
		Payout: stripe.String(payoutRef),
	}
	params.Context = ctx
	params.Limit = stripe.Int64(int64(c.maxPage))
	params.SetStripeAccount(accountID)

	var entries []BalanceEntry
	iter := c.api.BalanceTransactions.List(params)
	for iter.Next() {
		bt := iter.BalanceTransaction()
		// The payout's own balance transaction is part of the listing; it is
		// the transfer itself, not a contributing entry.
		if bt.Type == stripe.BalanceTransactionTypePayout {
			continue
		}
		entry := BalanceEntry{
			Gross: bt.Amount,
			Fee:   bt.Fee,
			Net:   bt.Net,
		}
		if bt.Source != nil && (bt.Type == stripe.BalanceTransactionTypeCharge || bt.Type == stripe.BalanceTransactionTypePayment) {
			entry.ChargeRef = bt.Source.ID
		}
		entries = append(entries, entry)
	}
	if err := iter.Err(); err != nil {
		return nil, c.wrap("balance entries", err)
	}

	return entries, nil
}

// wrap classifies SDK errors: rate limits, 5xx responses, and connection
// failures become UnavailableError so callers know a retry is safe.
func (c *StripeClient) wrap(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		transient := stripeErr.HTTPStatusCode == http.StatusTooManyRequests ||
			stripeErr.HTTPStatusCode >= http.StatusInternalServerError ||
			stripeErr.HTTPStatusCode == 0
		if !transient {
			c.logger.Error("Processor request rejected", "op", op, "code", stripeErr.Code, "status", stripeErr.HTTPStatusCode)
			return err
		}
	}
	c.logger.Warn("Processor unavailable", "op", op, "error", err)
	return &UnavailableError{Op: op, Err: err}
}

// Compile-time check
var _ Client = (*StripeClient)(nil)
