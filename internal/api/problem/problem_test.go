package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, res *httptest.ResponseRecorder) ProblemDetails {
	t.Helper()
	var body ProblemDetails
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	return body
}

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "Server error", errors.New("boom"), "development")

	require.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))
	body := decode(t, res)
	require.Equal(t, "boom", body.Detail)
	require.Equal(t, "/api/v1/events", body.Instance)
	require.Equal(t, http.StatusInternalServerError, body.Status)
}

func TestWrite_ProdHidesServerErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "Server error", errors.New("pq: connection refused"), "production")

	body := decode(t, res)
	require.Equal(t, http.StatusText(http.StatusInternalServerError), body.Detail)
}

func TestWrite_ProdKeepsClientErrorDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/events/x/registration", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusConflict, TypeEventFull, "Event full", errors.New("event is full"), "production")

	require.Equal(t, http.StatusConflict, res.Code)
	body := decode(t, res)
	require.Equal(t, "event is full", body.Detail)
	require.Equal(t, TypeEventFull, body.Type)
}

func TestWrite_FieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/events", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", nil, "production",
		WithDetail("capacity must be at least 1"),
		WithFieldError("capacity", "must be at least 1"))

	body := decode(t, res)
	require.Equal(t, "capacity must be at least 1", body.Detail)
	require.Equal(t, map[string]string{"capacity": "must be at least 1"}, body.Errors)
}
