package api

import (
	"math"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePaginationParams(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected PaginationParams
	}{
		{"defaults", "", PaginationParams{Page: 1, Limit: DefaultPageLimit}},
		{"explicit", "?page=3&limit=20", PaginationParams{Page: 3, Limit: 20}},
		{"limit capped", "?limit=10000", PaginationParams{Page: 1, Limit: MaxPageLimit}},
		{"zero page", "?page=0", PaginationParams{Page: 1, Limit: DefaultPageLimit}},
		{"negative limit", "?limit=-5", PaginationParams{Page: 1, Limit: DefaultPageLimit}},
		{"non-numeric", "?page=abc&limit=xyz", PaginationParams{Page: 1, Limit: DefaultPageLimit}},
		{"page capped", "?page=99999999", PaginationParams{Page: maxPage, Limit: DefaultPageLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/"+tt.query, nil)
			assert.Equal(t, tt.expected, ParsePaginationParams(req, DefaultPageLimit, MaxPageLimit))
		})
	}
}

func TestPaginationParams_Offset(t *testing.T) {
	tests := []struct {
		params   PaginationParams
		expected int64
	}{
		{PaginationParams{Page: 1, Limit: 10}, 0},
		{PaginationParams{Page: 2, Limit: 10}, 10},
		{PaginationParams{Page: 3, Limit: 50}, 100},
		{PaginationParams{Page: 0, Limit: 10}, 0},
		{PaginationParams{Page: math.MaxInt, Limit: math.MaxInt}, math.MaxInt64},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, tt.params.Offset(), "%+v", tt.params)
	}
}

func TestNewPaginationResponse(t *testing.T) {
	items := []string{"a", "b"}

	resp := NewPaginationResponse(items, 101, PaginationParams{Page: 2, Limit: 50})

	assert.Equal(t, int64(101), resp.Total)
	assert.Equal(t, 2, resp.Page)
	assert.Equal(t, 50, resp.Limit)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, items, resp.Items)
}

func TestNewPaginationResponse_Empty(t *testing.T) {
	resp := NewPaginationResponse([]string{}, 0, PaginationParams{Page: 1, Limit: 50})
	assert.Equal(t, 1, resp.TotalPages)
}
