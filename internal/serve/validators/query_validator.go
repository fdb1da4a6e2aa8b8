package validators

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelmah-platform/kelmah-payout-service/internal/data"
)

const filterDateLayout = "2006-01-02"

// QueryValidator parses and validates the pagination, sorting and filter query parameters shared by all listing
// endpoints. Embedding validators configure the allowed sort fields and filter keys for their resource.
type QueryValidator struct {
	*Validator
	DefaultSortField  data.SortField
	DefaultSortOrder  data.SortOrder
	AllowedSortFields []data.SortField
	AllowedFilters    []data.FilterKey
}

// ParseParametersFromRequest reads the query string into a QueryParams. Validation failures are collected on the
// embedded Validator; when any occur an empty QueryParams is returned.
func (qv *QueryValidator) ParseParametersFromRequest(r *http.Request) *data.QueryParams {
	query := r.URL.Query()

	page := qv.parseIntParam(query.Get("page"), "page", 1)
	pageLimit := qv.parseIntParam(query.Get("page_limit"), "page_limit", 20)

	sortBy := qv.DefaultSortField
	if sortParam := query.Get("sort"); sortParam != "" {
		sortBy = data.SortField(sortParam)
		if !slices.Contains(qv.AllowedSortFields, sortBy) {
			qv.AddError("sort", "invalid sort field name")
		}
	}

	sortOrder := qv.DefaultSortOrder
	if directionParam := query.Get("direction"); directionParam != "" {
		sortOrder = data.SortOrder(strings.ToUpper(directionParam))
		if sortOrder != data.SortOrderASC && sortOrder != data.SortOrderDESC {
			qv.AddError("direction", "invalid sort order. valid values are 'asc' and 'desc'")
		}
	}

	filters := make(map[data.FilterKey]interface{})
	for _, filterKey := range qv.AllowedFilters {
		if value := strings.TrimSpace(query.Get(string(filterKey))); value != "" {
			filters[filterKey] = value
		}
	}

	if qv.HasErrors() {
		return &data.QueryParams{}
	}

	return &data.QueryParams{
		Query:     strings.TrimSpace(query.Get("q")),
		Page:      page,
		PageLimit: pageLimit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
		Filters:   filters,
	}
}

func (qv *QueryValidator) parseIntParam(value, param string, defaultValue int) int {
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		qv.CheckError(err, param, "parameter must be an integer")
		return defaultValue
	}
	return intValue
}

// ValidateAndGetTimeParams parses a YYYY-MM-DD filter value. A nil value yields the zero time.
func (qv *QueryValidator) ValidateAndGetTimeParams(param string, value interface{}) time.Time {
	if value == nil {
		return time.Time{}
	}

	dateStr, ok := value.(string)
	if !ok {
		qv.AddError(param, "invalid date format. valid format is 'YYYY-MM-DD'")
		return time.Time{}
	}

	date, err := time.Parse(filterDateLayout, dateStr)
	if err != nil {
		qv.AddError(param, "invalid date format. valid format is 'YYYY-MM-DD'")
		return time.Time{}
	}
	return date
}
