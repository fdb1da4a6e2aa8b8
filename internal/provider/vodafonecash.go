package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

const vodafoneCashoutPath = "/api/v1/cashout"

// VodafoneCashConfig holds the Vodafone Cash merchant API credentials.
type VodafoneCashConfig struct {
	BaseURL    string
	MerchantID string
	APIKey     string
}

// VodafoneCashClient disburses to Vodafone Cash wallets through the merchant cashout API.
type VodafoneCashClient struct {
	config     VodafoneCashConfig
	httpClient HTTPClientInterface
}

func NewVodafoneCashClient(config VodafoneCashConfig) *VodafoneCashClient {
	return &VodafoneCashClient{
		config:     config,
		httpClient: DefaultHTTPClient(),
	}
}

func (c *VodafoneCashClient) Provider() data.PayoutProvider {
	return data.PayoutProviderVodafoneCash
}

type vodafoneCashoutRequest struct {
	MerchantID    string `json:"merchant_id"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CustomerMSISD string `json:"customer_msisdn"`
	Reference     string `json:"reference"`
	Narration     string `json:"narration,omitempty"`
}

type vodafoneCashoutResponse struct {
	ResponseCode  string `json:"response_code"`
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
}

func (c *VodafoneCashClient) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	if req.Method.PhoneNumber == "" {
		return "", NewPermanentError("", "payment method has no phone number")
	}

	cashoutReq := vodafoneCashoutRequest{
		MerchantID:    c.config.MerchantID,
		Amount:        decimal.New(req.AmountMinor, -2).String(),
		Currency:      req.Currency,
		CustomerMSISD: req.Method.PhoneNumber,
		Reference:     req.Reference,
		Narration:     "Kelmah payout",
	}
	body, err := json.Marshal(cashoutReq)
	if err != nil {
		return "", fmt.Errorf("marshaling cashout request: %w", err)
	}

	u, err := url.JoinPath(c.config.BaseURL, vodafoneCashoutPath)
	if err != nil {
		return "", fmt.Errorf("building cashout path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating cashout request: %w", err)
	}
	httpReq.Header.Set("X-Api-Key", c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyHTTPFailure(err)
	}
	defer resp.Body.Close()

	var cashoutResp vodafoneCashoutResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&cashoutResp); decodeErr != nil && resp.StatusCode < http.StatusBadRequest {
		return "", fmt.Errorf("decoding cashout response: %w", decodeErr)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := cashoutResp.Message
		if message == "" {
			message = fmt.Sprintf("Vodafone Cash cashout rejected with status %d", resp.StatusCode)
		}
		return "", classifyStatusCode(resp.StatusCode, cashoutResp.ResponseCode, message)
	}

	// The merchant API reports business-level rejections with a 200 and a non-zero response code.
	if cashoutResp.ResponseCode != "" && cashoutResp.ResponseCode != "00" {
		return "", NewPermanentError(cashoutResp.ResponseCode, cashoutResp.Message)
	}

	return cashoutResp.TransactionID, nil
}

var _ Dispatcher = (*VodafoneCashClient)(nil)
