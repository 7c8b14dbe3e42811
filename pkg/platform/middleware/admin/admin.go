// Package admin guards operator endpoints such as the session sweep.
package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain-errors"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

// Header carries the operator token.
const Header = "X-Admin-Token"

// RequireAdminToken compares the Header value against expected in constant
// time. With no expected token configured the guarded routes answer 404, as if
// they were not mounted.
func RequireAdminToken(expected string, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	want := []byte(expected)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(want) == 0 {
				httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "not found"))
				return
			}
			got := r.Header.Get(Header)
			if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "rejected operator request",
					"path", r.URL.Path,
					"token_present", got != "",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "operator token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
