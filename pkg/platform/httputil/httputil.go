// Package httputil holds the JSON request/response helpers shared by the
// gateway and key-server handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; ciphertexts travel by blob id, not inline,
// except for small objects.
const maxBodyBytes = 4 << 20

// Validatable is implemented by request DTOs that normalize and check themselves.
type Validatable interface {
	Validate() error
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates coded errors into a JSON envelope. Internal errors do
// not leak their description.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := map[string]string{"error": string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) && de.Message != "" {
			body["error_description"] = de.Message
		}
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// DecodeAndPrepare decodes a JSON body into T and validates it. On failure it
// writes the error response and returns ok=false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Validatable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "failed to decode request body",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid JSON body"))
		return nil, false
	}
	if err := PT(&req).Validate(); err != nil {
		if logger != nil {
			logger.WarnContext(ctx, "request validation failed",
				"request_id", requestID,
				"error", err,
			)
		}
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
