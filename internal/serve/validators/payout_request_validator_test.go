package validators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_PayoutRequestValidator_ValidatePayoutRequest(t *testing.T) {
	validRequest := PayoutRequest{
		UserID:          "user-1",
		PaymentMethodID: "pm-1",
		Amount:          decimal.NewFromFloat(100.50),
		Currency:        "GHS",
		Provider:        "mtn_momo",
	}

	t.Run("accepts a valid request", func(t *testing.T) {
		validator := NewPayoutRequestValidator()
		validator.ValidatePayoutRequest(validRequest)
		assert.False(t, validator.HasErrors())
	})

	testCases := []struct {
		name      string
		mutate    func(req *PayoutRequest)
		wantField string
		wantError string
	}{
		{
			name:      "missing user_id",
			mutate:    func(req *PayoutRequest) { req.UserID = "  " },
			wantField: "user_id",
			wantError: "user_id is required",
		},
		{
			name:      "missing payment_method_id",
			mutate:    func(req *PayoutRequest) { req.PaymentMethodID = "" },
			wantField: "payment_method_id",
			wantError: "payment_method_id is required",
		},
		{
			name:      "zero amount",
			mutate:    func(req *PayoutRequest) { req.Amount = decimal.Zero },
			wantField: "amount",
			wantError: "amount must be greater than zero",
		},
		{
			name:      "negative amount",
			mutate:    func(req *PayoutRequest) { req.Amount = decimal.NewFromInt(-10) },
			wantField: "amount",
			wantError: "amount must be greater than zero",
		},
		{
			name:      "amount with sub-minor precision",
			mutate:    func(req *PayoutRequest) { req.Amount = decimal.NewFromFloat(10.005) },
			wantField: "amount",
			wantError: "amount cannot have more than 2 decimal places",
		},
		{
			name:      "invalid currency",
			mutate:    func(req *PayoutRequest) { req.Currency = "CEDIS" },
			wantField: "currency",
			wantError: "currency must be a 3-letter ISO code",
		},
		{
			name:      "unknown provider",
			mutate:    func(req *PayoutRequest) { req.Provider = "western_union" },
			wantField: "provider",
			wantError: "invalid provider. valid values are: mtn_momo, vodafone_cash, airteltigo, paystack",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			validator := NewPayoutRequestValidator()

			req := validRequest
			tc.mutate(&req)
			validator.ValidatePayoutRequest(req)

			assert.True(t, validator.HasErrors())
			assert.Equal(t, tc.wantError, validator.Errors[tc.wantField])
		})
	}
}
