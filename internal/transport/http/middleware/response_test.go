package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONError_CarriesRequestID(t *testing.T) {
	h := chimiddleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSONError(w, r, http.StatusForbidden, "forbidden")
	}))
	req := httptest.NewRequest(http.MethodGet, "/v1/accounts", nil)
	req.Header.Set(chimiddleware.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	var body errorBody
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, errorBody{Error: "forbidden", RequestID: "req-42"}, body)
}

func TestWriteJSONError_OmitsMissingRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONError(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusUnauthorized, "unauthorized")
	assert.JSONEq(t, `{"error":"unauthorized"}`, rr.Body.String())
}
