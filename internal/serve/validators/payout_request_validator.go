package validators

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// PayoutRequest is the request body accepted by the enqueue endpoint.
type PayoutRequest struct {
	UserID          string          `json:"user_id"`
	PaymentMethodID string          `json:"payment_method_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Provider        string          `json:"provider"`
	Nonce           string          `json:"nonce,omitempty"`
}

type PayoutRequestValidator struct {
	*Validator
}

func NewPayoutRequestValidator() *PayoutRequestValidator {
	return &PayoutRequestValidator{Validator: NewValidator()}
}

// ValidatePayoutRequest checks the request fields the handler can reject without touching downstream services.
func (pv *PayoutRequestValidator) ValidatePayoutRequest(req PayoutRequest) {
	pv.Check(strings.TrimSpace(req.UserID) != "", "user_id", "user_id is required")
	pv.Check(strings.TrimSpace(req.PaymentMethodID) != "", "payment_method_id", "payment_method_id is required")
	pv.Check(req.Amount.IsPositive(), "amount", "amount must be greater than zero")
	pv.Check(req.Amount.Shift(2).IsInteger(), "amount", "amount cannot have more than 2 decimal places")
	pv.Check(len(strings.TrimSpace(req.Currency)) == 3, "currency", "currency must be a 3-letter ISO code")

	if _, err := data.ToPayoutProvider(req.Provider); err != nil {
		pv.Check(false, "provider", "invalid provider. valid values are: mtn_momo, vodafone_cash, airteltigo, paystack")
	}
}
