package api

import (
	"math"
	"net/http"
	"strconv"
)

const (
	// DefaultPageLimit is the page size when the request gives none
	DefaultPageLimit = 50
	// MaxPageLimit caps the limit query parameter
	MaxPageLimit = 500

	maxPage = 1000000
)

// PaginationParams holds pagination query parameters
type PaginationParams struct {
	Page  int `json:"page"`  // 1-based
	Limit int `json:"limit"`
}

// PaginationResponse wraps one page of a listing
type PaginationResponse struct {
	Items      interface{} `json:"items"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// ParsePaginationParams reads page and limit from the query string.
// Missing or non-positive values fall back to defaults; limit is capped at maxLimit.
func ParsePaginationParams(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	params := PaginationParams{Page: 1, Limit: defaultLimit}
	query := r.URL.Query()

	if p, err := strconv.Atoi(query.Get("page")); err == nil && p > 0 {
		params.Page = min(p, maxPage)
	}
	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 {
		params.Limit = min(l, maxLimit)
	}
	return params
}

// Offset converts page and limit to a skip count
func (p PaginationParams) Offset() int64 {
	pageMinusOne := int64(p.Page - 1)
	if pageMinusOne <= 0 || p.Limit <= 0 {
		return 0
	}
	if pageMinusOne > math.MaxInt64/int64(p.Limit) {
		return math.MaxInt64
	}
	return pageMinusOne * int64(p.Limit)
}

// NewPaginationResponse creates a paginated response; there is always at least one page
func NewPaginationResponse(items interface{}, total int64, params PaginationParams) PaginationResponse {
	totalPages := 1
	if params.Limit > 0 && total > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(params.Limit)))
	}
	return PaginationResponse{
		Items:      items,
		Total:      total,
		Page:       params.Page,
		Limit:      params.Limit,
		TotalPages: totalPages,
	}
}
