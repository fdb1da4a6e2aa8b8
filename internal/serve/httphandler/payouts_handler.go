package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kelmah-platform/kelmah-payout-service/db"
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
	"github.com/kelmah-platform/kelmah-payout-service/internal/engine"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httperror"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httpjson"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/httpresponse"
	"github.com/kelmah-platform/kelmah-payout-service/internal/serve/validators"
)

// PayoutEngineInterface is the engine surface the payout handlers depend on.
type PayoutEngineInterface interface {
	Enqueue(ctx context.Context, req engine.EnqueueRequest) (*data.Payout, bool, error)
	ProcessBatch(ctx context.Context, limit int) (engine.BatchResult, error)
	RetryFailed(ctx context.Context, payoutID string) (*data.Payout, error)
}

var _ PayoutEngineInterface = (*engine.Engine)(nil)

type PayoutsHandler struct {
	Models           *data.Models
	DBConnectionPool db.DBConnectionPool
	PayoutEngine     PayoutEngineInterface
	Providers        []data.PayoutProvider
}

// PostPayout enqueues a new payout. Duplicate requests return the already-queued payout instead of creating a
// second one.
func (h PayoutsHandler) PostPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validators.PayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httperror.BadRequest("invalid request body", err, nil).Render(w)
		return
	}

	validator := validators.NewPayoutRequestValidator()
	validator.ValidatePayoutRequest(req)
	if validator.HasErrors() {
		httperror.BadRequest("request invalid", nil, validator.Errors).Render(w)
		return
	}

	payout, created, err := h.PayoutEngine.Enqueue(ctx, engine.EnqueueRequest{
		UserID:          req.UserID,
		PaymentMethodID: req.PaymentMethodID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		Provider:        req.Provider,
		Nonce:           req.Nonce,
	})
	if err != nil {
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			httperror.BadRequest("request invalid", err, map[string]interface{}{vErr.Field: vErr.Message}).Render(w)
			return
		}
		httperror.InternalError(ctx, "Cannot enqueue payout", err, nil).Render(w)
		return
	}

	statusCode := http.StatusOK
	if created {
		statusCode = http.StatusCreated
	}
	httpjson.RenderStatus(w, statusCode, payout)
}

// GetPayout returns a single payout by ID.
func (h PayoutsHandler) GetPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	payout, err := h.Models.Payouts.Get(ctx, h.DBConnectionPool, payoutID)
	if err != nil {
		if errors.Is(err, data.ErrRecordNotFound) {
			httperror.NotFound(fmt.Sprintf("Cannot retrieve payout with ID: %s", payoutID), err, nil).Render(w)
			return
		}
		httperror.InternalError(ctx, fmt.Sprintf("Cannot retrieve payout with ID: %s", payoutID), err, nil).Render(w)
		return
	}
	httpjson.Render(w, payout)
}

// GetPayouts returns a paginated list of payouts matching the query filters.
func (h PayoutsHandler) GetPayouts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	validator := validators.NewPayoutQueryValidator()
	queryParams := validator.ParseParametersFromRequest(r)
	queryParams.Filters = validator.ValidateAndGetPayoutFilters(queryParams.Filters)
	if validator.HasErrors() {
		httperror.BadRequest("request invalid", nil, validator.Errors).Render(w)
		return
	}

	totalPayouts, err := h.Models.Payouts.Count(ctx, h.DBConnectionPool, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payouts", err, nil).Render(w)
		return
	}

	if totalPayouts == 0 {
		httpjson.Render(w, httpresponse.NewEmptyPaginatedResponse())
		return
	}

	payouts, err := h.Models.Payouts.GetAll(ctx, h.DBConnectionPool, queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve payouts", err, nil).Render(w)
		return
	}

	response, err := httpresponse.NewPaginatedResponse(r, payouts, queryParams.Page, queryParams.PageLimit, totalPayouts)
	if err != nil {
		httperror.InternalError(ctx, "Cannot create paginated payload for payouts", err, nil).Render(w)
		return
	}
	httpjson.Render(w, response)
}

type ProcessBatchRequest struct {
	Limit int `json:"limit"`
}

// ProcessBatch triggers one claim-and-dispatch cycle. It is safe to call concurrently with the scheduled job, the
// two can never claim the same payout.
func (h PayoutsHandler) ProcessBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ProcessBatchRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httperror.BadRequest("invalid request body", err, nil).Render(w)
			return
		}
	}

	result, err := h.PayoutEngine.ProcessBatch(ctx, req.Limit)
	if err != nil {
		var vErr *engine.ValidationError
		if errors.As(err, &vErr) {
			httperror.BadRequest("request invalid", err, map[string]interface{}{vErr.Field: vErr.Message}).Render(w)
			return
		}
		httperror.InternalError(ctx, "Cannot process payout batch", err, nil).Render(w)
		return
	}
	httpjson.Render(w, result)
}

// RetryPayout queues a new payout re-driving a terminally failed one.
func (h PayoutsHandler) RetryPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	payoutID := chi.URLParam(r, "id")

	retry, err := h.PayoutEngine.RetryFailed(ctx, payoutID)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrRecordNotFound):
			httperror.NotFound(fmt.Sprintf("Cannot retrieve payout with ID: %s", payoutID), err, nil).Render(w)
		case errors.Is(err, engine.ErrPayoutNotRetryable):
			httperror.BadRequest("only failed payouts can be retried", err, nil).Render(w)
		default:
			httperror.InternalError(ctx, fmt.Sprintf("Cannot retry payout with ID: %s", payoutID), err, nil).Render(w)
		}
		return
	}
	httpjson.RenderStatus(w, http.StatusCreated, retry)
}

type ProviderInfo struct {
	Provider data.PayoutProvider `json:"provider"`
	// FeeRate is the processing fee rate applied to gross payout amounts.
	FeeRate string `json:"fee_rate"`
}

// GetProviders lists the configured payout rails and their fee rates.
func (h PayoutsHandler) GetProviders(w http.ResponseWriter, r *http.Request) {
	providers := make([]ProviderInfo, 0, len(h.Providers))
	for _, p := range h.Providers {
		providers = append(providers, ProviderInfo{Provider: p, FeeRate: engine.FeeRate(p).String()})
	}
	httpjson.Render(w, providers)
}
