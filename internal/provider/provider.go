// Package provider contains the clients for the external payment rails that actually move money. Each rail implements
// the Dispatcher capability set; retry policy lives with the queue engine, never here.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

// PaymentMethodDetails are the resolved rail details of a stored payment method. Which fields are set depends on the
// rail: mobile-money wallets carry a phone number, Paystack transfers carry a recipient code.
type PaymentMethodDetails struct {
	Provider      data.PayoutProvider `json:"provider"`
	AccountName   string              `json:"account_name,omitempty"`
	PhoneNumber   string              `json:"phone_number,omitempty"`
	AccountNumber string              `json:"account_number,omitempty"`
	BankCode      string              `json:"bank_code,omitempty"`
	Email         string              `json:"email,omitempty"`
	RecipientCode string              `json:"recipient_code,omitempty"`
}

// DispatchRequest carries everything a rail needs to send one disbursement.
type DispatchRequest struct {
	PayoutID string
	// Reference is the payout reference shared with the provider for reconciliation.
	Reference string
	// AmountMinor is the NET amount to disburse, in currency minor units.
	AmountMinor int64
	Currency    string
	Method      PaymentMethodDetails
}

// Dispatcher sends a single disbursement to one external payment rail. Implementations make exactly one outbound
// disbursement call per invocation and classify failures as transient or permanent via DispatchError.
type Dispatcher interface {
	// Dispatch returns the provider-side transaction reference on success.
	Dispatch(ctx context.Context, req DispatchRequest) (string, error)
	Provider() data.PayoutProvider
}

const DefaultTimeoutSeconds = 30

type HTTPClientInterface interface {
	Do(*http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns an HTTP client with the bounded per-call timeout every rail call must carry.
func DefaultHTTPClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeoutSeconds * time.Second}
}
