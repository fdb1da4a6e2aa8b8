package httpresponse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// PaginatedResponse wraps a list payload with pagination metadata.
type PaginatedResponse struct {
	Pagination PaginationInfo  `json:"pagination"`
	Data       json.RawMessage `json:"data"`
}

// PaginationInfo carries page links and totals for a paginated listing. Next and Prev are full request URLs
// pointing at the adjacent pages, omitted at the edges.
type PaginationInfo struct {
	Next  string `json:"next,omitempty"`
	Prev  string `json:"prev,omitempty"`
	Pages int    `json:"pages"`
	Total int    `json:"total"`
}

// NewEmptyPaginatedResponse returns a response with an empty data list and zero pages.
func NewEmptyPaginatedResponse() PaginatedResponse {
	return PaginatedResponse{
		Pagination: PaginationInfo{},
		Data:       json.RawMessage("[]"),
	}
}

// NewPaginatedResponse builds a PaginatedResponse for one page of data, deriving the next/prev links from the
// request URL so all other query parameters are preserved.
func NewPaginatedResponse(r *http.Request, data interface{}, currentPage, pageLimit, totalItems int) (PaginatedResponse, error) {
	totalPages := (totalItems + pageLimit - 1) / pageLimit
	pagination := PaginationInfo{Pages: totalPages, Total: totalItems}

	pageURL := *r.URL
	query := pageURL.Query()
	query.Del("page")

	if currentPage < totalPages {
		query.Set("page", fmt.Sprintf("%d", currentPage+1))
		pageURL.RawQuery = query.Encode()
		pagination.Next = pageURL.String()
	}
	if currentPage > 1 {
		query.Set("page", fmt.Sprintf("%d", currentPage-1))
		pageURL.RawQuery = query.Encode()
		pagination.Prev = pageURL.String()
	}

	dataBytes, err := json.Marshal(data)
	if err != nil {
		return PaginatedResponse{}, fmt.Errorf("marshaling paginated data: %w", err)
	}

	return PaginatedResponse{
		Pagination: pagination,
		Data:       dataBytes,
	}, nil
}
