package reconciliation

import "errors"

// ErrNotConnected indicates the church has not linked a processor account.
// It is user-actionable (finish onboarding), not retryable, and not a system
// failure.
var ErrNotConnected = errors.New("church has no connected processor account")

// ErrUnknownPayoutRef indicates the processor has no payout with the given
// reference for this account.
var ErrUnknownPayoutRef = errors.New("processor has no payout with this reference")

// ValidationError marks a single malformed record. It is fatal for that
// record only; batch operations log it and move on.
type ValidationError struct {
	Ref    string // processor reference of the offending record
	Reason string
}

func (e ValidationError) Error() string {
	return "invalid record " + e.Ref + ": " + e.Reason
}
