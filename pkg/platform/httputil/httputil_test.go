package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
)

type sweepRequest struct {
	MaxEntries int `json:"max_entries"`
}

func (r *sweepRequest) Validate() error {
	if r.MaxEntries < 0 {
		return dErrors.New(dErrors.CodeValidation, "max_entries must not be negative")
	}
	return nil
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	tests := map[string]struct {
		err        error
		wantStatus int
		wantCode   string
		wantDesc   string
	}{
		"coded error keeps its description": {
			err:        dErrors.New(dErrors.CodePreconditionFailed, "session key is not signed"),
			wantStatus: http.StatusPreconditionFailed, wantCode: "precondition_failed", wantDesc: "session key is not signed",
		},
		"wrapped coded error": {
			err:        fmt.Errorf("decrypt m-1: %w", dErrors.New(dErrors.CodeAccessDenied, "2 of 3 key servers refused")),
			wantStatus: http.StatusForbidden, wantCode: "access_denied", wantDesc: "2 of 3 key servers refused",
		},
		"internal error hides its description": {
			err:        dErrors.New(dErrors.CodeInternal, "redis: connection pool exhausted"),
			wantStatus: http.StatusInternalServerError, wantCode: "internal_error",
		},
		"uncoded error is internal": {
			err:        fmt.Errorf("unexpected"),
			wantStatus: http.StatusInternalServerError, wantCode: "internal_error",
		},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			body := errorBody(t, rr)
			assert.Equal(t, tt.wantCode, body["error"])
			desc, present := body["error_description"]
			assert.Equal(t, tt.wantDesc != "", present)
			assert.Equal(t, tt.wantDesc, desc)
		})
	}
}

func TestDecodeAndPrepare(t *testing.T) {
	decode := func(body string) (*sweepRequest, *httptest.ResponseRecorder) {
		req := httptest.NewRequest(http.MethodPost, "/v1/admin/sessions/sweep", strings.NewReader(body))
		rr := httptest.NewRecorder()
		out, _ := DecodeAndPrepare[sweepRequest](rr, req, nil, context.Background(), "req-1")
		return out, rr
	}

	t.Run("valid body", func(t *testing.T) {
		out, rr := decode(`{"max_entries": 10}`)
		require.NotNil(t, out)
		assert.Equal(t, 10, out.MaxEntries)
		assert.Equal(t, http.StatusOK, rr.Code, "nothing written on success")
	})

	t.Run("unknown field", func(t *testing.T) {
		out, rr := decode(`{"max_entries": 10, "force": true}`)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "bad_request", errorBody(t, rr)["error"])
	})

	t.Run("not json", func(t *testing.T) {
		out, rr := decode(`max_entries=10`)
		assert.Nil(t, out)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("fails validation", func(t *testing.T) {
		out, rr := decode(`{"max_entries": -1}`)
		assert.Nil(t, out)
		body := errorBody(t, rr)
		assert.Equal(t, "validation_error", body["error"])
		assert.Equal(t, "max_entries must not be negative", body["error_description"])
	})
}
