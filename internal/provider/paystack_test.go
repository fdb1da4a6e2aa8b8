package provider

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func jsonResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func Test_PaystackClient_Dispatch(t *testing.T) {
	ctx := context.Background()
	dispatchReq := DispatchRequest{
		PayoutID:    "payout-1",
		Reference:   "PO-1767225600000-042",
		AmountMinor: 9850,
		Currency:    "GHS",
		Method:      PaymentMethodDetails{RecipientCode: "RCP_abc123"},
	}

	t.Run("successful transfer returns the transfer code", func(t *testing.T) {
		httpClientMock := &MockHTTPClient{}
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})
		client.httpClient = httpClientMock

		httpClientMock.
			On("Do", mock.MatchedBy(func(req *http.Request) bool {
				return req.Method == http.MethodPost &&
					strings.HasSuffix(req.URL.Path, "/transfer") &&
					req.Header.Get("Authorization") == "Bearer sk_test"
			})).
			Return(jsonResponse(http.StatusOK, `{"status": true, "message": "Transfer queued", "data": {"transfer_code": "TRF_xyz", "status": "pending"}}`), nil).
			Once()

		reference, err := client.Dispatch(ctx, dispatchReq)
		require.NoError(t, err)
		assert.Equal(t, "TRF_xyz", reference)
		httpClientMock.AssertExpectations(t)
	})

	t.Run("missing recipient code is a permanent error", func(t *testing.T) {
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})

		req := dispatchReq
		req.Method = PaymentMethodDetails{}
		_, err := client.Dispatch(ctx, req)

		var dispatchErr *DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.False(t, dispatchErr.Retryable)
		assert.Contains(t, dispatchErr.Message, "no Paystack recipient code")
	})

	t.Run("4xx rejection is a permanent error", func(t *testing.T) {
		httpClientMock := &MockHTTPClient{}
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})
		client.httpClient = httpClientMock

		httpClientMock.
			On("Do", mock.Anything).
			Return(jsonResponse(http.StatusBadRequest, `{"status": false, "message": "Recipient not found"}`), nil).
			Once()

		_, err := client.Dispatch(ctx, dispatchReq)

		var dispatchErr *DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.False(t, dispatchErr.Retryable)
		assert.Contains(t, dispatchErr.Message, "Recipient not found")
	})

	t.Run("5xx rejection is a transient error", func(t *testing.T) {
		httpClientMock := &MockHTTPClient{}
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})
		client.httpClient = httpClientMock

		httpClientMock.
			On("Do", mock.Anything).
			Return(jsonResponse(http.StatusBadGateway, `upstream error`), nil).
			Once()

		_, err := client.Dispatch(ctx, dispatchReq)

		var dispatchErr *DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.True(t, dispatchErr.Retryable)
	})

	t.Run("business-level rejection on a 200 is a permanent error", func(t *testing.T) {
		httpClientMock := &MockHTTPClient{}
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})
		client.httpClient = httpClientMock

		httpClientMock.
			On("Do", mock.Anything).
			Return(jsonResponse(http.StatusOK, `{"status": false, "message": "Insufficient balance"}`), nil).
			Once()

		_, err := client.Dispatch(ctx, dispatchReq)

		var dispatchErr *DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.False(t, dispatchErr.Retryable)
		assert.Contains(t, dispatchErr.Message, "Insufficient balance")
	})

	t.Run("connection failure is a transient error", func(t *testing.T) {
		httpClientMock := &MockHTTPClient{}
		client := NewPaystackClient(PaystackConfig{BaseURL: "https://api.paystack.co", SecretKey: "sk_test"})
		client.httpClient = httpClientMock

		httpClientMock.
			On("Do", mock.Anything).
			Return(nil, errors.New("connection refused")).
			Once()

		_, err := client.Dispatch(ctx, dispatchReq)

		var dispatchErr *DispatchError
		require.ErrorAs(t, err, &dispatchErr)
		assert.True(t, dispatchErr.Retryable)
		assert.Contains(t, dispatchErr.Message, "provider unreachable")
	})
}
