package validators

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

func Test_PayoutQueryValidator_ParseParametersFromRequest(t *testing.T) {
	t.Run("returns the default query parameters", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		req := httptest.NewRequest("GET", "/payouts", nil)

		params := validator.ParseParametersFromRequest(req)

		assert.False(t, validator.HasErrors())
		assert.Equal(t, 1, params.Page)
		assert.Equal(t, 20, params.PageLimit)
		assert.Equal(t, data.DefaultPayoutSortField, params.SortBy)
		assert.Equal(t, data.DefaultPayoutSortOrder, params.SortOrder)
		assert.Empty(t, params.Filters)
	})

	t.Run("parses pagination, sorting and filters", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		req := httptest.NewRequest("GET", "/payouts?page=2&page_limit=50&sort=created_at&direction=asc&status=queued&user_id=user-1", nil)

		params := validator.ParseParametersFromRequest(req)

		assert.False(t, validator.HasErrors())
		assert.Equal(t, 2, params.Page)
		assert.Equal(t, 50, params.PageLimit)
		assert.Equal(t, data.SortFieldCreatedAt, params.SortBy)
		assert.Equal(t, data.SortOrderASC, params.SortOrder)
		assert.Equal(t, "queued", params.Filters[data.FilterKeyStatus])
		assert.Equal(t, "user-1", params.Filters[data.FilterKeyUserID])
	})

	t.Run("rejects an invalid sort field", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		req := httptest.NewRequest("GET", "/payouts?sort=priority", nil)

		validator.ParseParametersFromRequest(req)

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"sort": "invalid sort field name"}, validator.Errors)
	})

	t.Run("rejects an invalid sort order", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		req := httptest.NewRequest("GET", "/payouts?direction=sideways", nil)

		validator.ParseParametersFromRequest(req)

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"direction": "invalid sort order. valid values are 'asc' and 'desc'"}, validator.Errors)
	})

	t.Run("rejects a non-integer page", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		req := httptest.NewRequest("GET", "/payouts?page=two", nil)

		validator.ParseParametersFromRequest(req)

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"page": "parameter must be an integer"}, validator.Errors)
	})
}

func Test_PayoutQueryValidator_ValidateAndGetPayoutFilters(t *testing.T) {
	t.Run("converts valid status and provider filters", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		filters := map[data.FilterKey]interface{}{
			data.FilterKeyStatus:   "queued",
			data.FilterKeyProvider: "mtn_momo",
			data.FilterKeyUserID:   "user-1",
		}

		validFilters := validator.ValidateAndGetPayoutFilters(filters)

		assert.False(t, validator.HasErrors())
		assert.Equal(t, data.QueuedPayoutStatus, validFilters[data.FilterKeyStatus])
		assert.Equal(t, data.PayoutProviderMTNMoMo, validFilters[data.FilterKeyProvider])
		assert.Equal(t, "user-1", validFilters[data.FilterKeyUserID])
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		validator := NewPayoutQueryValidator()

		validator.ValidateAndGetPayoutFilters(map[data.FilterKey]interface{}{data.FilterKeyStatus: "SHIPPED"})

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"status": "invalid parameter. valid values are: queued, processing, completed, failed"}, validator.Errors)
	})

	t.Run("rejects an unknown provider", func(t *testing.T) {
		validator := NewPayoutQueryValidator()

		validator.ValidateAndGetPayoutFilters(map[data.FilterKey]interface{}{data.FilterKeyProvider: "western_union"})

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"provider": "invalid parameter. valid values are: mtn_momo, vodafone_cash, airteltigo, paystack"}, validator.Errors)
	})

	t.Run("parses created_at range filters", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		filters := map[data.FilterKey]interface{}{
			data.FilterKeyCreatedAtAfter:  "2026-01-01",
			data.FilterKeyCreatedAtBefore: "2026-01-31",
		}

		validFilters := validator.ValidateAndGetPayoutFilters(filters)

		assert.False(t, validator.HasErrors())
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), validFilters[data.FilterKeyCreatedAtAfter])
		assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), validFilters[data.FilterKeyCreatedAtBefore])
	})

	t.Run("rejects an inverted created_at range", func(t *testing.T) {
		validator := NewPayoutQueryValidator()
		filters := map[data.FilterKey]interface{}{
			data.FilterKeyCreatedAtAfter:  "2026-01-31",
			data.FilterKeyCreatedAtBefore: "2026-01-01",
		}

		validator.ValidateAndGetPayoutFilters(filters)

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"created_at_after": "created_at_after must be before created_at_before"}, validator.Errors)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		validator := NewPayoutQueryValidator()

		validator.ValidateAndGetPayoutFilters(map[data.FilterKey]interface{}{data.FilterKeyCreatedAtAfter: "31/01/2026"})

		assert.True(t, validator.HasErrors())
		assert.Equal(t, map[string]interface{}{"created_at_after": "invalid date format. valid format is 'YYYY-MM-DD'"}, validator.Errors)
	})
}
