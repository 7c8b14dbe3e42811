package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

type staticValidator map[string]domain.Address

func (v staticValidator) ValidateToken(token string) (*Caller, error) {
	addr, ok := v[token]
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &Caller{Address: addr, TokenID: "jti-" + token}, nil
}

func TestRequireCaller(t *testing.T) {
	alice := domain.MustParseAddress("0xa11ce")
	var seen domain.Address
	handler := RequireCaller(staticValidator{"good": alice}, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestcontext.Caller(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid token", "Bearer good", http.StatusNoContent},
		{"unknown token", "Bearer bad", http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic good", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), `"error":"unauthorized"`)
			}
		})
	}
	assert.Equal(t, alice, seen)
}

func TestOptionalCaller(t *testing.T) {
	alice := domain.MustParseAddress("0xa11ce")
	handler := OptionalCaller(staticValidator{"good": alice}, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if caller, ok := requestcontext.Caller(r.Context()); ok {
			w.Header().Set("X-Caller", caller.String())
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		status     int
		wantCaller bool
	}{
		{"anonymous passes through", "", http.StatusNoContent, false},
		{"valid token records caller", "Bearer good", http.StatusNoContent, true},
		{"invalid token is refused", "Bearer bad", http.StatusUnauthorized, false},
		{"malformed header is refused", "Basic good", http.StatusUnauthorized, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.wantCaller, rec.Header().Get("X-Caller") != "")
		})
	}
}
