package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func paginationContext(query string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts"+query, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestParsePagination(t *testing.T) {
	limit, offset := parsePagination(paginationContext(""))
	assert.Equal(t, 100, limit)
	assert.Equal(t, 0, offset)

	limit, offset = parsePagination(paginationContext("?limit=25&offset=50"))
	assert.Equal(t, 25, limit)
	assert.Equal(t, 50, offset)

	// Limit is capped; junk values fall back to the defaults.
	limit, _ = parsePagination(paginationContext("?limit=5000"))
	assert.Equal(t, 1000, limit)

	limit, offset = parsePagination(paginationContext("?limit=abc&offset=-3"))
	assert.Equal(t, 100, limit)
	assert.Equal(t, 0, offset)
}

func TestPaginateSlice(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, paginateSlice(items, 100, 0))
	assert.Equal(t, []string{"c", "d"}, paginateSlice(items, 2, 2))
	assert.Equal(t, []string{"e"}, paginateSlice(items, 10, 4))
	assert.Empty(t, paginateSlice(items, 10, 10))
	assert.Empty(t, paginateSlice([]string{}, 10, 0))
}
