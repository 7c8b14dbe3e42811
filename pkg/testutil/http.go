// Package testutil holds helpers for handler tests that drive the gateway
// through httptest without a running server.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// JSONRequest encodes body and returns a request ready for a handler.
func JSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// Serve runs h against req and returns the recorded response.
func Serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

// ErrorBody decodes the {"error", "error_description"} envelope.
func ErrorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), "body: %s", rr.Body.String())
	return body
}

// AssertError checks the status and the error code in one go.
func AssertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rr.Code, "body: %s", rr.Body.String())
	assert.Equal(t, code, ErrorBody(t, rr)["error"])
}
