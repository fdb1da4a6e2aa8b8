package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_DispatchError_Error(t *testing.T) {
	assert.Equal(t, "transient provider error: gateway timeout", NewTransientError("", "gateway timeout").Error())
	assert.Equal(t, "permanent provider error [PAYEE_NOT_FOUND]: payee not registered", NewPermanentError("PAYEE_NOT_FOUND", "payee not registered").Error())
}

func Test_IsRetryable(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{name: "transient dispatch error", err: NewTransientError("", "timeout"), wantRetryable: true},
		{name: "permanent dispatch error", err: NewPermanentError("", "rejected"), wantRetryable: false},
		{name: "wrapped permanent dispatch error", err: fmt.Errorf("dispatching: %w", NewPermanentError("", "rejected")), wantRetryable: false},
		{name: "unclassified error defaults to retryable", err: errors.New("boom"), wantRetryable: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantRetryable, IsRetryable(tc.err))
		})
	}
}

func Test_classifyHTTPFailure(t *testing.T) {
	assert.True(t, classifyHTTPFailure(context.DeadlineExceeded).Retryable)
	assert.True(t, classifyHTTPFailure(errors.New("connection refused")).Retryable)
}

func Test_classifyStatusCode(t *testing.T) {
	testCases := []struct {
		statusCode    int
		wantRetryable bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusConflict, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
	}

	for _, tc := range testCases {
		t.Run(fmt.Sprintf("status %d", tc.statusCode), func(t *testing.T) {
			dispatchErr := classifyStatusCode(tc.statusCode, "", "message")
			assert.Equal(t, tc.wantRetryable, dispatchErr.Retryable)
		})
	}
}
