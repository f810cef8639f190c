package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalgo.org/dockhand/models"
)

func TestStatusForKind(t *testing.T) {
	cases := map[models.ErrorKind]int{
		models.KindNotFound:          http.StatusNotFound,
		models.KindConflict:          http.StatusConflict,
		models.KindInvalidDefinition: http.StatusUnprocessableEntity,
		models.KindHostUnreachable:   http.StatusBadGateway,
		models.KindRemoteCommand:     http.StatusBadGateway,
		models.KindTimeout:           http.StatusGatewayTimeout,
		models.KindCancelled:         http.StatusRequestTimeout,
	}

	for kind, want := range cases {
		assert.Equal(t, want, statusForKind(kind), string(kind))
	}
}

func TestOperationErrorTyped(t *testing.T) {
	err := models.NewError(models.KindConflict, "project shop already registered on host h1")

	apiErr := operationError(err)
	assert.Equal(t, http.StatusConflict, apiErr.Code)
	assert.Equal(t, "conflict", apiErr.Kind)
	assert.Equal(t, "project shop already registered on host h1", apiErr.Details)
}

func TestOperationErrorCarriesRemoteDetail(t *testing.T) {
	err := models.RemoteCommandError(125, "no such image: nginx:9.99", "compose up failed")

	apiErr := operationError(err)
	assert.Equal(t, http.StatusBadGateway, apiErr.Code)
	require.NotNil(t, apiErr.Context)
	assert.Equal(t, 125, apiErr.Context["exit_code"])
	assert.Equal(t, "no such image: nginx:9.99", apiErr.Context["stderr"])
}

func TestOperationErrorUntypedBecomesInternal(t *testing.T) {
	apiErr := operationError(errors.New("couchdb: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
}

func errorResponse(t *testing.T, err error, debug bool) (int, *APIError) {
	t.Helper()

	e := echo.New()
	e.Debug = debug
	req := httptest.NewRequest(http.MethodGet, "/api/v1/hosts/h1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	HTTPErrorHandler(err, c)

	var body APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, &body
}

func TestHTTPErrorHandlerEchoError(t *testing.T) {
	code, body := errorResponse(t, echo.NewHTTPError(http.StatusNotFound, "no route"), false)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Resource not found", body.Message)
	assert.Equal(t, "no route", body.Details)
}

func TestHTTPErrorHandlerAPIError(t *testing.T) {
	code, body := errorResponse(t, NotFoundError("Host", "host-prod-01"), false)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Host not found", body.Message)
}

func TestHTTPErrorHandlerTypedOperationError(t *testing.T) {
	err := models.NewError(models.KindTimeout, "stack_up timed out on host h1")
	code, body := errorResponse(t, err, false)
	assert.Equal(t, http.StatusGatewayTimeout, code)
	assert.Equal(t, "timeout", body.Kind)
}

func TestHTTPErrorHandlerHidesInternalDetails(t *testing.T) {
	code, body := errorResponse(t, errors.New("dsn=admin:hunter2@couchdb"), false)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.NotContains(t, body.Details, "hunter2")
}

func TestHTTPErrorHandlerDebugKeepsDetails(t *testing.T) {
	_, body := errorResponse(t, errors.New("something broke internally"), true)
	assert.Contains(t, body.Details, "something broke internally")
}

func TestAPIErrorError(t *testing.T) {
	assert.Equal(t, "Bad request: missing project", BadRequestError("Bad request", "missing project").Error())
	assert.Equal(t, "Bad request", BadRequestError("Bad request", "").Error())
}
