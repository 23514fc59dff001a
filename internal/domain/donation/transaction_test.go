package donation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTransaction_GrossContribution(t *testing.T) {
	testCases := []struct {
		name          string
		amount        int64
		donorFee      int64
		platformFee   int64
		expectedGross int64
	}{
		{"NoFeeCoverage", 5000, 0, 50, 5000},
		{"FeeCoverage", 5000, 150, 50, 5200},
		{"FeeCoverageNoPlatformFee", 5000, 150, 0, 5150},
		{"ZeroAmountWithCoverage", 0, 30, 10, 40},
		{"ZeroEverything", 0, 0, 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tx := &Transaction{
				Amount:                      tc.amount,
				ProcessingFeeCoveredByDonor: tc.donorFee,
				PlatformFeeAmount:           tc.platformFee,
			}
			assert.Equal(t, tc.expectedGross, tx.GrossContribution())
		})
	}
}

func TestTransaction_Validate(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		tx := &Transaction{Amount: 1000, ProcessingFeeCoveredByDonor: 30, PlatformFeeAmount: 10}
		assert.NoError(t, tx.Validate())
	})

	t.Run("NegativeAmount", func(t *testing.T) {
		tx := &Transaction{Amount: -1}
		assert.ErrorIs(t, tx.Validate(), ErrNegativeAmount)
	})

	t.Run("NegativeDonorFee", func(t *testing.T) {
		tx := &Transaction{Amount: 100, ProcessingFeeCoveredByDonor: -5}
		assert.ErrorIs(t, tx.Validate(), ErrNegativeFee)
	})

	t.Run("NegativePlatformFee", func(t *testing.T) {
		tx := &Transaction{Amount: 100, PlatformFeeAmount: -5}
		assert.ErrorIs(t, tx.Validate(), ErrNegativeFee)
	})
}

func TestTransaction_AttributedTo(t *testing.T) {
	payoutID := uuid.New()
	otherID := uuid.New()

	tx := &Transaction{}
	assert.False(t, tx.AttributedTo(payoutID))

	tx.PayoutID = &payoutID
	assert.True(t, tx.AttributedTo(payoutID))
	assert.False(t, tx.AttributedTo(otherID))
}
