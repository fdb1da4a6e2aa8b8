package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

const (
	mtnTokenPath    = "/disbursement/token/"
	mtnTransferPath = "/disbursement/v1_0/transfer"

	mtnTokenRetryAttempts = 3
)

// MTNMoMoConfig holds the MTN MoMo disbursement API credentials.
type MTNMoMoConfig struct {
	BaseURL         string
	SubscriptionKey string
	APIUserID       string
	APIKey          string
	// TargetEnvironment is "sandbox" or "mtnghana" for production.
	TargetEnvironment string
}

// MTNMoMoClient disburses to MTN Mobile Money wallets through the official MoMo disbursement API.
type MTNMoMoClient struct {
	config     MTNMoMoConfig
	httpClient HTTPClientInterface

	tokenMu          sync.Mutex
	accessToken      string
	accessTokenUntil time.Time
}

func NewMTNMoMoClient(config MTNMoMoConfig) *MTNMoMoClient {
	return &MTNMoMoClient{
		config:     config,
		httpClient: DefaultHTTPClient(),
	}
}

func (c *MTNMoMoClient) Provider() data.PayoutProvider {
	return data.PayoutProviderMTNMoMo
}

type mtnTransferRequest struct {
	Amount     string   `json:"amount"`
	Currency   string   `json:"currency"`
	ExternalID string   `json:"externalId"`
	Payee      mtnParty `json:"payee"`
	PayerMsg   string   `json:"payerMessage"`
	PayeeNote  string   `json:"payeeNote"`
}

type mtnParty struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// Dispatch sends a single transfer to the payee's MoMo wallet. The generated X-Reference-Id doubles as the
// provider-side transaction reference used for reconciliation.
func (c *MTNMoMoClient) Dispatch(ctx context.Context, req DispatchRequest) (string, error) {
	if req.Method.PhoneNumber == "" {
		return "", NewPermanentError("", "payment method has no phone number")
	}

	token, err := c.getAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("getting MTN MoMo access token: %w", err)
	}

	transferReq := mtnTransferRequest{
		Amount:     decimal.New(req.AmountMinor, -2).String(),
		Currency:   req.Currency,
		ExternalID: req.Reference,
		Payee: mtnParty{
			PartyIDType: "MSISDN",
			PartyID:     req.Method.PhoneNumber,
		},
		PayerMsg:  "Kelmah payout",
		PayeeNote: fmt.Sprintf("Payout %s", req.Reference),
	}
	body, err := json.Marshal(transferReq)
	if err != nil {
		return "", fmt.Errorf("marshaling transfer request: %w", err)
	}

	u, err := url.JoinPath(c.config.BaseURL, mtnTransferPath)
	if err != nil {
		return "", fmt.Errorf("building transfer path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating transfer request: %w", err)
	}
	referenceID := uuid.NewString()
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("X-Reference-Id", referenceID)
	httpReq.Header.Set("X-Target-Environment", c.config.TargetEnvironment)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.config.SubscriptionKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", classifyHTTPFailure(err)
	}
	defer resp.Body.Close()

	// The MoMo API acknowledges an accepted transfer with 202 and an empty body.
	if resp.StatusCode == http.StatusAccepted {
		return referenceID, nil
	}

	return "", classifyStatusCode(resp.StatusCode, "", parseMTNErrorMessage(resp))
}

type mtnAPIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parseMTNErrorMessage(resp *http.Response) string {
	body, err := io.ReadAll(resp.Body)
	if err != nil || len(body) == 0 {
		return fmt.Sprintf("MTN MoMo transfer rejected with status %d", resp.StatusCode)
	}

	var apiErr mtnAPIError
	if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Message == "" {
		return fmt.Sprintf("MTN MoMo transfer rejected with status %d", resp.StatusCode)
	}
	if apiErr.Code != "" {
		return fmt.Sprintf("%s: %s", apiErr.Code, apiErr.Message)
	}
	return apiErr.Message
}

// getAccessToken returns a cached disbursement token, fetching a new one when expired. Token acquisition is retried;
// the transfer call itself never is.
func (c *MTNMoMoClient) getAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.accessTokenUntil) {
		return c.accessToken, nil
	}

	tokenResp, err := retry.DoWithData(
		func() (mtnTokenResponse, error) {
			return c.fetchAccessToken(ctx)
		},
		retry.Context(ctx),
		retry.Attempts(mtnTokenRetryAttempts),
		retry.Delay(500*time.Millisecond),
	)
	if err != nil {
		return "", err
	}

	c.accessToken = tokenResp.AccessToken
	// Renew one minute before the provider-side expiry.
	c.accessTokenUntil = time.Now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - time.Minute)
	return c.accessToken, nil
}

type mtnTokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *MTNMoMoClient) fetchAccessToken(ctx context.Context) (mtnTokenResponse, error) {
	u, err := url.JoinPath(c.config.BaseURL, mtnTokenPath)
	if err != nil {
		return mtnTokenResponse{}, fmt.Errorf("building token path: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return mtnTokenResponse{}, fmt.Errorf("creating token request: %w", err)
	}
	httpReq.SetBasicAuth(c.config.APIUserID, c.config.APIKey)
	httpReq.Header.Set("Ocp-Apim-Subscription-Key", c.config.SubscriptionKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return mtnTokenResponse{}, classifyHTTPFailure(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return mtnTokenResponse{}, classifyStatusCode(resp.StatusCode, "", fmt.Sprintf("MTN MoMo token request failed with status %d", resp.StatusCode))
	}

	var tokenResp mtnTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return mtnTokenResponse{}, fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return mtnTokenResponse{}, fmt.Errorf("token response has no access token")
	}
	return tokenResp, nil
}

var _ Dispatcher = (*MTNMoMoClient)(nil)
