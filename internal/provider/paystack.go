package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

const paystackTransferPath = "/transfer"

// PaystackConfig holds the Paystack API credentials.
type PaystackConfig struct {
	BaseURL   string
	SecretKey string
}

// PaystackClient disburses through Paystack's transfer API. The payment method must carry a transfer recipient code,
// created when the user registered the payment method.
type PaystackClient struct {
	config     PaystackConfig
	httpClient HTTPClientInterface
}

func NewPaystackClient(config PaystackConfig) *PaystackClient {
	return &PaystackClient{
		config:     config,
		httpClient: DefaultHTTPClient(),
	}
}

func (c *PaystackClient) Provider() data.PayoutProvider {
	return data.PayoutProviderPaystack
}

type paystackTransferRequest struct {
	Source    string `json:"source"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Recipient string `json:"recipient"`
	Reference string `json:"reference"`
	Reason    string `json:"reason,omitempty"`
}

type paystackTransferResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	} `json:"data"`
}

func (c *PaystackClient) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	if req.Method.RecipientCode == "" {
		return "", NewPermanentError("", "payment method has no Paystack recipient code")
	}

	transferReq := paystackTransferRequest{
		Source: "balance",
		// Paystack amounts are already in minor units (pesewas/kobo).
		Amount:    req.AmountMinor,
		Currency:  req.Currency,
		Recipient: req.Method.RecipientCode,
		Reference: req.Reference,
		Reason:    "Kelmah payout",
	}
	body, err := json.Marshal(transferReq)
	if err != nil {
		return "", fmt.Errorf("marshaling transfer request: %w", err)
	}

	u, err := url.JoinPath(c.config.BaseURL, paystackTransferPath)
	if err != nil {
		return "", fmt.Errorf("building transfer path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating transfer request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyHTTPFailure(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewTransientError("", fmt.Sprintf("reading transfer response: %s", err.Error()))
	}

	var transferResp paystackTransferResponse
	if unmarshalErr := json.Unmarshal(respBody, &transferResp); unmarshalErr != nil && resp.StatusCode < http.StatusBadRequest {
		return "", fmt.Errorf("decoding transfer response: %w", unmarshalErr)
	}

	if resp.StatusCode >= http.StatusBadRequest || !transferResp.Status {
		message := transferResp.Message
		if message == "" {
			message = fmt.Sprintf("Paystack transfer rejected with status %d", resp.StatusCode)
		}
		return "", classifyStatusCode(resp.StatusCode, "", message)
	}

	reference := transferResp.Data.TransferCode
	if reference == "" {
		reference = transferResp.Data.Reference
	}
	return reference, nil
}

var _ Dispatcher = (*PaystackClient)(nil)
