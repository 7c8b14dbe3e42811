package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/middleware/admin"
	authmw "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/middleware/auth"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/middleware/request"
)

// RouterConfig collects what the gateway router mounts besides the handler.
type RouterConfig struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// Validator requires caller tokens on decryption and encryption when set.
	Validator  authmw.TokenValidator
	AdminToken string
	// Health reports dependency health for /health; nil always reports ok.
	Health         func(ctx context.Context) error
	RequestTimeout time.Duration
}

// NewRouter wires the gateway endpoints.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(request.AccessLog(logger))
	r.Use(cfg.Metrics.Instrument)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimw.Timeout(timeout))
		r.With(optionalCaller(cfg.Validator, logger)).Post("/sessions", h.HandleCreateSession)
		r.Post("/sessions/signature", h.HandleSubmitSignature)
		r.Get("/stats", h.HandleStats)

		r.Group(func(r chi.Router) {
			if cfg.Validator != nil {
				r.Use(authmw.RequireCaller(cfg.Validator, logger))
			}
			r.Post("/decrypt", h.HandleDecrypt)
			r.Post("/decrypt/batch", h.HandleDecryptBatch)
			r.Post("/encrypt", h.HandleEncrypt)
		})

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdminToken(cfg.AdminToken, logger))
			r.Post("/admin/sessions/sweep", h.HandleSweepSessions)
		})
	})
	return r
}

func optionalCaller(v authmw.TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	if v == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return authmw.OptionalCaller(v, logger)
}
