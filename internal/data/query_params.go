package data

import "fmt"

type QueryParams struct {
	Query     string
	Page      int
	PageLimit int
	SortBy    SortField
	SortOrder SortOrder
	Filters   map[FilterKey]interface{}
}

type SortOrder string

const (
	SortOrderASC  SortOrder = "ASC"
	SortOrderDESC SortOrder = "DESC"
)

type SortField string

const (
	SortFieldCreatedAt SortField = "created_at"
	SortFieldUpdatedAt SortField = "updated_at"
	SortFieldAmount    SortField = "amount_minor"
)

type FilterKey string

const (
	FilterKeyStatus          FilterKey = "status"
	FilterKeyUserID          FilterKey = "user_id"
	FilterKeyProvider        FilterKey = "provider"
	FilterKeyPayoutReference FilterKey = "payout_reference"
	FilterKeyCreatedAtAfter  FilterKey = "created_at_after"
	FilterKeyCreatedAtBefore FilterKey = "created_at_before"
)

func (fk FilterKey) Equals() string {
	return fmt.Sprintf("%s = ?", fk)
}

var (
	DefaultPayoutSortField = SortFieldCreatedAt
	DefaultPayoutSortOrder = SortOrderDESC
	AllowedPayoutSorts     = []SortField{SortFieldCreatedAt, SortFieldUpdatedAt, SortFieldAmount}
	AllowedPayoutFilters   = []FilterKey{FilterKeyStatus, FilterKeyUserID, FilterKeyProvider, FilterKeyPayoutReference, FilterKeyCreatedAtAfter, FilterKeyCreatedAtBefore}
)
