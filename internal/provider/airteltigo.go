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

const airtelTigoDisbursePath = "/standard/v1/disbursements"

// AirtelTigoConfig holds the AirtelTigo Money API credentials.
type AirtelTigoConfig struct {
	BaseURL  string
	ClientID string
	APIKey   string
}

// AirtelTigoClient disburses to AirtelTigo Money wallets.
type AirtelTigoClient struct {
	config     AirtelTigoConfig
	httpClient HTTPClientInterface
}

func NewAirtelTigoClient(config AirtelTigoConfig) *AirtelTigoClient {
	return &AirtelTigoClient{
		config:     config,
		httpClient: DefaultHTTPClient(),
	}
}

func (c *AirtelTigoClient) Provider() data.PayoutProvider {
	return data.PayoutProviderAirtelTigo
}

type airtelTigoDisburseRequest struct {
	Payee struct {
		MSISDN string `json:"msisdn"`
	} `json:"payee"`
	Reference   string `json:"reference"`
	Transaction struct {
		Amount   string `json:"amount"`
		Currency string `json:"currency"`
	} `json:"transaction"`
}

type airtelTigoDisburseResponse struct {
	Status struct {
		Code    string `json:"code"`
		Success bool   `json:"success"`
		Message string `json:"message"`
	} `json:"status"`
	Data struct {
		Transaction struct {
			ID string `json:"id"`
		} `json:"transaction"`
	} `json:"data"`
}

func (c *AirtelTigoClient) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	if req.Method.PhoneNumber == "" {
		return "", NewPermanentError("", "payment method has no phone number")
	}

	var disburseReq airtelTigoDisburseRequest
	disburseReq.Payee.MSISDN = req.Method.PhoneNumber
	disburseReq.Reference = req.Reference
	disburseReq.Transaction.Amount = decimal.New(req.AmountMinor, -2).String()
	disburseReq.Transaction.Currency = req.Currency

	body, err := json.Marshal(disburseReq)
	if err != nil {
		return "", fmt.Errorf("marshaling disbursement request: %w", err)
	}

	u, err := url.JoinPath(c.config.BaseURL, airtelTigoDisbursePath)
	if err != nil {
		return "", fmt.Errorf("building disbursement path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating disbursement request: %w", err)
	}
	httpReq.Header.Set("X-Client-Id", c.config.ClientID)
	httpReq.Header.Set("X-Api-Key", c.config.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyHTTPFailure(err)
	}
	defer resp.Body.Close()

	var disburseResp airtelTigoDisburseResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&disburseResp); decodeErr != nil && resp.StatusCode < http.StatusBadRequest {
		return "", fmt.Errorf("decoding disbursement response: %w", decodeErr)
	}

	if resp.StatusCode >= http.StatusBadRequest || !disburseResp.Status.Success {
		message := disburseResp.Status.Message
		if message == "" {
			message = fmt.Sprintf("AirtelTigo disbursement rejected with status %d", resp.StatusCode)
		}
		return "", classifyStatusCode(resp.StatusCode, disburseResp.Status.Code, message)
	}

	return disburseResp.Data.Transaction.ID, nil
}

var _ Dispatcher = (*AirtelTigoClient)(nil)
