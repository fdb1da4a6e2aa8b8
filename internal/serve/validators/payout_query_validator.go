package validators

import (
	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

type PayoutQueryValidator struct {
	QueryValidator
}

// NewPayoutQueryValidator creates a new PayoutQueryValidator with the provided configuration.
func NewPayoutQueryValidator() *PayoutQueryValidator {
	return &PayoutQueryValidator{
		QueryValidator: QueryValidator{
			DefaultSortField:  data.DefaultPayoutSortField,
			DefaultSortOrder:  data.DefaultPayoutSortOrder,
			AllowedSortFields: data.AllowedPayoutSorts,
			AllowedFilters:    data.AllowedPayoutFilters,
			Validator:         NewValidator(),
		},
	}
}

// ValidateAndGetPayoutFilters validates the filters and returns a map of valid filters.
func (qv *PayoutQueryValidator) ValidateAndGetPayoutFilters(filters map[data.FilterKey]interface{}) map[data.FilterKey]interface{} {
	validFilters := make(map[data.FilterKey]interface{})
	if filters[data.FilterKeyStatus] != nil {
		validFilters[data.FilterKeyStatus] = qv.validateAndGetPayoutStatus(filters[data.FilterKeyStatus].(string))
	}
	if filters[data.FilterKeyProvider] != nil {
		validFilters[data.FilterKeyProvider] = qv.validateAndGetPayoutProvider(filters[data.FilterKeyProvider].(string))
	}
	if filters[data.FilterKeyUserID] != nil {
		validFilters[data.FilterKeyUserID] = filters[data.FilterKeyUserID]
	}
	if filters[data.FilterKeyPayoutReference] != nil {
		validFilters[data.FilterKeyPayoutReference] = filters[data.FilterKeyPayoutReference]
	}

	createdAtAfter := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtAfter), filters[data.FilterKeyCreatedAtAfter])
	createdAtBefore := qv.ValidateAndGetTimeParams(string(data.FilterKeyCreatedAtBefore), filters[data.FilterKeyCreatedAtBefore])

	if qv.HasErrors() {
		return validFilters
	}

	if !createdAtAfter.IsZero() && !createdAtBefore.IsZero() {
		qv.Check(createdAtAfter.Before(createdAtBefore), string(data.FilterKeyCreatedAtAfter), "created_at_after must be before created_at_before")
	}

	if !createdAtAfter.IsZero() {
		validFilters[data.FilterKeyCreatedAtAfter] = createdAtAfter
	}
	if !createdAtBefore.IsZero() {
		validFilters[data.FilterKeyCreatedAtBefore] = createdAtBefore
	}
	return validFilters
}

// validateAndGetPayoutStatus validates the status parameter and returns the corresponding PayoutStatus.
func (qv *PayoutQueryValidator) validateAndGetPayoutStatus(status string) data.PayoutStatus {
	s, err := data.ToPayoutStatus(status)
	if err != nil {
		qv.Check(false, string(data.FilterKeyStatus), "invalid parameter. valid values are: queued, processing, completed, failed")
		return ""
	}
	return s
}

// validateAndGetPayoutProvider validates the provider parameter and returns the corresponding PayoutProvider.
func (qv *PayoutQueryValidator) validateAndGetPayoutProvider(providerStr string) data.PayoutProvider {
	p, err := data.ToPayoutProvider(providerStr)
	if err != nil {
		qv.Check(false, string(data.FilterKeyProvider), "invalid parameter. valid values are: mtn_momo, vodafone_cash, airteltigo, paystack")
		return ""
	}
	return p
}
