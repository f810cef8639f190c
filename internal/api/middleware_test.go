package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runMiddleware(mw echo.MiddlewareFunc, req *http.Request, params map[string]string) (*httptest.ResponseRecorder, error) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	for name, value := range params {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}

	handler := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return rec, handler(c)
}

func TestValidateContentType(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/hosts", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	_, err := runMiddleware(ValidateContentType, req, nil)
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/hosts", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	_, err = runMiddleware(ValidateContentType, req, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, err.(*APIError).Code)

	// GET requests carry no body and are never checked.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/hosts", nil)
	_, err = runMiddleware(ValidateContentType, req, nil)
	assert.NoError(t, err)
}

func TestValidateAcceptHeader(t *testing.T) {
	for _, accept := range []string{"", "application/json", "*/*", "application/*", "text/html, */*"} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts", nil)
		if accept != "" {
			req.Header.Set("Accept", accept)
		}
		_, err := runMiddleware(ValidateAcceptHeader, req, nil)
		assert.NoError(t, err, "accept %q", accept)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts", nil)
	req.Header.Set("Accept", "text/html")
	_, err := runMiddleware(ValidateAcceptHeader, req, nil)
	require.Error(t, err)
}

func TestValidateIDFormat(t *testing.T) {
	valid := map[string]string{"id": "host-prod-01"}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/host-prod-01", nil)
	_, err := runMiddleware(ValidateIDFormat, req, valid)
	assert.NoError(t, err)

	for name, id := range map[string]string{
		"spaces":    "host prod",
		"too short": "ab",
		"too long":  strings.Repeat("x", 257),
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/x", nil)
		_, err := runMiddleware(ValidateIDFormat, req, map[string]string{"id": id})
		assert.Error(t, err, name)
	}
}

func TestValidateQueryParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts?transport=ssh", nil)
	_, err := runMiddleware(ValidateQueryParams, req, nil)
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/hosts?transport=telnet", nil)
	_, err = runMiddleware(ValidateQueryParams, req, nil)
	assert.Error(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stacks?state=unknown", nil)
	_, err = runMiddleware(ValidateQueryParams, req, nil)
	assert.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/stacks?state=paused", nil)
	_, err = runMiddleware(ValidateQueryParams, req, nil)
	assert.Error(t, err)
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts", nil)
	rec, err := runMiddleware(SecurityHeaders, req, nil)
	require.NoError(t, err)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
