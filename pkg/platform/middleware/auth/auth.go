package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

// TokenValidator turns a bearer token into the wallet it was issued to.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Caller, error)
}

// Caller is the authenticated wallet behind a request.
type Caller struct {
	Address domain.Address
	TokenID string
}

// RequireCaller rejects requests without a valid bearer token and records the
// caller address in the request context.
func RequireCaller(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, true)
}

// OptionalCaller records the caller when a bearer token is sent. A request
// without one passes through anonymously; an invalid token is still refused.
func OptionalCaller(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return authenticate(validator, logger, false)
}

func authenticate(validator TokenValidator, logger *slog.Logger, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			header := r.Header.Get("Authorization")
			if header == "" && !required {
				next.ServeHTTP(w, r)
				return
			}
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			caller, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			ctx = requestcontext.WithCaller(ctx, caller.Address)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
