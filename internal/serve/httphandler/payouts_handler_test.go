package httphandler

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
)

func newMockModels(t *testing.T) (*data.Models, db.DBConnectionPool, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mockDB, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mockDB.ExpectationsWereMet())
		sqlDB.Close()
	})
	pool := db.NewDBConnectionPoolFromSqlDB(sqlDB, "postgres")
	models, err := data.NewModels(pool)
	require.NoError(t, err)
	return models, pool, mockDB
}

func payoutFixture() *data.Payout {
	now := time.Now().UTC()
	return &data.Payout{
		ID:                 "2c394338-6a48-493e-a553-d9229e88d076",
		PayoutReference:    "PO-1767225600000-042",
		UserID:             "user-1",
		PaymentMethodID:    "pm-1",
		AmountMinor:        10000,
		ProcessingFeeMinor: 150,
		NetAmountMinor:     9850,
		Currency:           "GHS",
		Provider:           data.PayoutProviderMTNMoMo,
		Status:             data.QueuedPayoutStatus,
		IdempotencyKey:     "a2b5c8d1e4f7a2b5c8d1e4f7a2b5c8d1e4f7a2b5c8d1e4f7a2b5c8d1e4f7a2b5",
		NextEligibleAt:     now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func payoutDBColumns() []string {
	return []string{
		"id", "payout_reference", "user_id", "payment_method_id",
		"amount_minor", "processing_fee_minor", "net_amount_minor", "currency",
		"provider", "status", "status_history", "attempts", "last_error",
		"provider_reference", "idempotency_key", "retry_of_id",
		"next_eligible_at", "claimed_at", "completed_at", "created_at", "updated_at",
	}
}

func payoutDBRow(p *data.Payout) []driver.Value {
	return []driver.Value{
		p.ID, p.PayoutReference, p.UserID, p.PaymentMethodID,
		p.AmountMinor, p.ProcessingFeeMinor, p.NetAmountMinor, p.Currency,
		string(p.Provider), string(p.Status), []byte(`[]`), p.Attempts, nil,
		p.ProviderReference, p.IdempotencyKey, p.RetryOfID,
		p.NextEligibleAt, p.ClaimedAt, p.CompletedAt, p.CreatedAt, p.UpdatedAt,
	}
}

func Test_PayoutsHandler_PostPayout(t *testing.T) {
	validBody := `{
		"user_id": "user-1",
		"payment_method_id": "pm-1",
		"amount": "100.00",
		"currency": "GHS",
		"provider": "mtn_momo"
	}`

	t.Run("returns 201 for a newly enqueued payout", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}
		fixture := payoutFixture()

		engineMock.
			On("Enqueue", mock.Anything, mock.MatchedBy(func(req engine.EnqueueRequest) bool {
				return req.UserID == "user-1" &&
					req.PaymentMethodID == "pm-1" &&
					req.Amount.Equal(decimal.NewFromInt(100)) &&
					req.Provider == "mtn_momo"
			})).
			Return(fixture, true, nil).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(validBody))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		resp := rr.Result()
		respBody, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Contains(t, string(respBody), fixture.ID)
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 200 with the existing payout for a duplicate request", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}
		fixture := payoutFixture()

		engineMock.
			On("Enqueue", mock.Anything, mock.Anything).
			Return(fixture, false, nil).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(validBody))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 400 for a malformed body", func(t *testing.T) {
		handler := PayoutsHandler{PayoutEngine: &MockPayoutEngine{}}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{invalid`))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error": "invalid request body"}`, rr.Body.String())
	})

	t.Run("returns 400 with field errors for an invalid request", func(t *testing.T) {
		handler := PayoutsHandler{PayoutEngine: &MockPayoutEngine{}}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(`{
			"user_id": "user-1",
			"payment_method_id": "pm-1",
			"amount": "-5",
			"currency": "GHS",
			"provider": "western_union"
		}`))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "request invalid",
			"extras": {
				"amount": "amount must be greater than zero",
				"provider": "invalid provider. valid values are: mtn_momo, vodafone_cash, airteltigo, paystack"
			}
		}`, rr.Body.String())
	})

	t.Run("returns 400 when the engine rejects the request", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("Enqueue", mock.Anything, mock.Anything).
			Return(nil, false, &engine.ValidationError{Field: "payment_method_id", Message: "payment method not found"}).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(validBody))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "request invalid",
			"extras": {"payment_method_id": "payment method not found"}
		}`, rr.Body.String())
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 500 on unexpected engine failures", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("Enqueue", mock.Anything, mock.Anything).
			Return(nil, false, errors.New("db down")).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts", strings.NewReader(validBody))
		http.HandlerFunc(handler.PostPayout).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		engineMock.AssertExpectations(t)
	})
}

func Test_PayoutsHandler_GetPayout(t *testing.T) {
	t.Run("returns the payout", func(t *testing.T) {
		models, pool, mockDB := newMockModels(t)
		handler := PayoutsHandler{Models: models, DBConnectionPool: pool}
		fixture := payoutFixture()

		mockDB.ExpectQuery("SELECT (.+) FROM(.+)payouts").
			WithArgs(fixture.ID).
			WillReturnRows(sqlmock.NewRows(payoutDBColumns()).AddRow(payoutDBRow(fixture)...))

		router := chi.NewRouter()
		router.Get("/payouts/{id}", handler.GetPayout)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payouts/"+fixture.ID, nil)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var payload map[string]interface{}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
		assert.Equal(t, fixture.ID, payload["id"])
		assert.Equal(t, "100", payload["amount"])
	})

	t.Run("returns 404 for an unknown payout", func(t *testing.T) {
		models, pool, mockDB := newMockModels(t)
		handler := PayoutsHandler{Models: models, DBConnectionPool: pool}

		mockDB.ExpectQuery("SELECT (.+) FROM(.+)payouts").
			WillReturnRows(sqlmock.NewRows(payoutDBColumns()))

		router := chi.NewRouter()
		router.Get("/payouts/{id}", handler.GetPayout)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payouts/missing-id", nil)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error": "Cannot retrieve payout with ID: missing-id"}`, rr.Body.String())
	})
}

func Test_PayoutsHandler_GetPayouts(t *testing.T) {
	t.Run("returns a paginated list", func(t *testing.T) {
		models, pool, mockDB := newMockModels(t)
		handler := PayoutsHandler{Models: models, DBConnectionPool: pool}
		fixture := payoutFixture()

		mockDB.ExpectQuery("SELECT COUNT(.+) FROM payouts").
			WithArgs(string(data.QueuedPayoutStatus)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		mockDB.ExpectQuery("SELECT (.+) FROM payouts").
			WithArgs(string(data.QueuedPayoutStatus), 20, 0).
			WillReturnRows(sqlmock.NewRows(payoutDBColumns()).AddRow(payoutDBRow(fixture)...))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payouts?status=QUEUED", nil)
		http.HandlerFunc(handler.GetPayouts).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var payload struct {
			Pagination struct {
				Pages int `json:"pages"`
				Total int `json:"total"`
			} `json:"pagination"`
			Data []data.Payout `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
		assert.Equal(t, 1, payload.Pagination.Total)
		assert.Equal(t, 1, payload.Pagination.Pages)
		require.Len(t, payload.Data, 1)
		assert.Equal(t, fixture.ID, payload.Data[0].ID)
	})

	t.Run("returns an empty response when nothing matches", func(t *testing.T) {
		models, pool, mockDB := newMockModels(t)
		handler := PayoutsHandler{Models: models, DBConnectionPool: pool}

		mockDB.ExpectQuery("SELECT COUNT(.+) FROM payouts").
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payouts", nil)
		http.HandlerFunc(handler.GetPayouts).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{
			"pagination": {"pages": 0, "total": 0},
			"data": []
		}`, rr.Body.String())
	})

	t.Run("returns 400 for an invalid status filter", func(t *testing.T) {
		handler := PayoutsHandler{}

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/payouts?status=SHIPPED", nil)
		http.HandlerFunc(handler.GetPayouts).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid parameter. valid values are: queued, processing, completed, failed")
	})
}

func Test_PayoutsHandler_ProcessBatch(t *testing.T) {
	t.Run("processes a batch with the default limit", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("ProcessBatch", mock.Anything, 0).
			Return(engine.BatchResult{Processed: 3, Succeeded: 2, Failed: 1}, nil).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/process-batch", nil)
		http.HandlerFunc(handler.ProcessBatch).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"processed": 3, "succeeded": 2, "failed": 1, "requeued": 0}`, rr.Body.String())
		engineMock.AssertExpectations(t)
	})

	t.Run("passes an explicit limit through", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("ProcessBatch", mock.Anything, 10).
			Return(engine.BatchResult{}, nil).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/process-batch", strings.NewReader(`{"limit": 10}`))
		http.HandlerFunc(handler.ProcessBatch).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 400 when the limit is rejected", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("ProcessBatch", mock.Anything, 500).
			Return(engine.BatchResult{}, &engine.ValidationError{Field: "limit", Message: "limit cannot exceed 100"}).
			Once()

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/process-batch", strings.NewReader(`{"limit": 500}`))
		http.HandlerFunc(handler.ProcessBatch).ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{
			"error": "request invalid",
			"extras": {"limit": "limit cannot exceed 100"}
		}`, rr.Body.String())
		engineMock.AssertExpectations(t)
	})
}

func Test_PayoutsHandler_RetryPayout(t *testing.T) {
	t.Run("returns 201 with the new payout", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}
		fixture := payoutFixture()
		retryOfID := "failed-payout-1"
		fixture.RetryOfID = &retryOfID

		engineMock.
			On("RetryFailed", mock.Anything, "failed-payout-1").
			Return(fixture, nil).
			Once()

		router := chi.NewRouter()
		router.Post("/payouts/{id}/retry", handler.RetryPayout)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/failed-payout-1/retry", nil)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 400 for a non-terminal payout", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("RetryFailed", mock.Anything, "payout-1").
			Return(nil, fmt.Errorf("retrying payout: %w", engine.ErrPayoutNotRetryable)).
			Once()

		router := chi.NewRouter()
		router.Post("/payouts/{id}/retry", handler.RetryPayout)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/payout-1/retry", nil)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error": "only failed payouts can be retried"}`, rr.Body.String())
		engineMock.AssertExpectations(t)
	})

	t.Run("returns 404 for an unknown payout", func(t *testing.T) {
		engineMock := &MockPayoutEngine{}
		handler := PayoutsHandler{PayoutEngine: engineMock}

		engineMock.
			On("RetryFailed", mock.Anything, "missing-id").
			Return(nil, data.ErrRecordNotFound).
			Once()

		router := chi.NewRouter()
		router.Post("/payouts/{id}/retry", handler.RetryPayout)

		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/payouts/missing-id/retry", nil)
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		engineMock.AssertExpectations(t)
	})
}

func Test_PayoutsHandler_GetProviders(t *testing.T) {
	handler := PayoutsHandler{Providers: []data.PayoutProvider{data.PayoutProviderMTNMoMo, data.PayoutProviderPaystack}}

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/providers", nil)
	http.HandlerFunc(handler.GetProviders).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"provider": "mtn_momo", "fee_rate": "0.015"},
		{"provider": "paystack", "fee_rate": "0.01"}
	]`, rr.Body.String())
}
