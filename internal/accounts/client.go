// Package accounts is the client for the external user service, which owns users, wallets and stored payment methods.
// The payout service only reads from it: payment-method references are opaque here and resolved on demand.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kelmah-platform/kelmah-payout-service/internal/provider"
)

var ErrPaymentMethodNotFound = errors.New("payment method not found")

type ClientInterface interface {
	ResolvePaymentMethod(ctx context.Context, userID, paymentMethodID string) (*provider.PaymentMethodDetails, error)
}

type Client struct {
	BaseURL    string
	APIKey     string
	httpClient provider.HTTPClientInterface
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		httpClient: provider.DefaultHTTPClient(),
	}
}

// ResolvePaymentMethod fetches the rail details of a user's stored payment method. A 404 from the user service means
// the reference is invalid and the payout can never succeed.
func (c *Client) ResolvePaymentMethod(ctx context.Context, userID, paymentMethodID string) (*provider.PaymentMethodDetails, error) {
	u, err := url.JoinPath(c.BaseURL, "/internal/users", userID, "payment-methods", paymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("building payment method path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating payment method request: %w", err)
	}
	httpReq.Header.Set("X-Internal-Api-Key", c.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling user service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrPaymentMethodNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("user service responded with status %d", resp.StatusCode)
	}

	var details provider.PaymentMethodDetails
	if err := json.NewDecoder(resp.Body).Decode(&details); err != nil {
		return nil, fmt.Errorf("decoding payment method response: %w", err)
	}
	return &details, nil
}

var _ ClientInterface = (*Client)(nil)
