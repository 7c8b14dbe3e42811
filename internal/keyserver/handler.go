package keyserver

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

// KeyService is what the handler serves.
type KeyService interface {
	Info() ServiceInfo
	FetchKey(ctx context.Context, req threshold.KeyRequest) (*threshold.KeyResponse, error)
}

// Handler exposes a key server over HTTP.
type Handler struct {
	service KeyService
	logger  *slog.Logger
}

func NewHandler(service KeyService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the key server endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/v1/service", h.HandleService)
	r.Post("/v1/fetch_key", h.HandleFetchKey)
}

// FetchKeyRequest is the POST /v1/fetch_key body.
type FetchKeyRequest struct {
	threshold.KeyRequest
}

func (r *FetchKeyRequest) Validate() error {
	switch {
	case len(r.ApprovalTx) == 0:
		return dErrors.New(dErrors.CodeValidation, "approval_tx is required")
	case len(r.Identity) == 0:
		return dErrors.New(dErrors.CodeValidation, "identity is required")
	case len(r.EncKey) == 0:
		return dErrors.New(dErrors.CodeValidation, "enc_key is required")
	case len(r.RequestSignature) == 0:
		return dErrors.New(dErrors.CodeValidation, "request_signature is required")
	}
	return nil
}

// ErrorResponse carries a key server refusal.
type ErrorResponse struct {
	Error   threshold.ServerErrorCode `json:"error"`
	Message string                    `json:"message"`
}

// HandleService handles GET /v1/service.
func (h *Handler) HandleService(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.service.Info())
}

// HandleFetchKey handles POST /v1/fetch_key.
func (h *Handler) HandleFetchKey(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[FetchKeyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	resp, err := h.service.FetchKey(ctx, req.KeyRequest)
	if err != nil {
		var se *threshold.ServerError
		if !errors.As(err, &se) {
			h.logger.ErrorContext(ctx, "fetch key failed", "request_id", requestID, "error", err)
			se = &threshold.ServerError{Code: threshold.CodeInternal, Message: "internal error"}
		}
		httputil.WriteJSON(w, statusFor(se.Code), ErrorResponse{Error: se.Code, Message: se.Message})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func statusFor(code threshold.ServerErrorCode) int {
	switch code {
	case threshold.CodeNoAccess:
		return http.StatusForbidden
	case threshold.CodeInvalidSignature, threshold.CodeExpired:
		return http.StatusUnauthorized
	case threshold.CodeInvalidTransaction, threshold.CodeInvalidRequest:
		return http.StatusBadRequest
	case threshold.CodeUnavailable:
		return http.StatusServiceUnavailable
	case threshold.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
