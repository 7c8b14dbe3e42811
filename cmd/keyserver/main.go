// Command pdw-keyserver runs one key server of the threshold set against a
// Sui full node.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain/rpc"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver"
	ksmetrics "github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver/metrics"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/config"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/httpserver"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/platform/logger"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/publisher"
	auditmemory "github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/audit/store/memory"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/httputil"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/middleware/request"
)

var errNoPrivateKey = errors.New("key_server.private_key is required; generate one with pdwctl keygen")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath, envFile string
	cmd := &cobra.Command{
		Use:          "pdw-keyserver",
		Short:        "Serve one threshold key server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath, envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the process environment")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.New(logger.Config{Format: cfg.Logging.Format, Level: cfg.Logging.Level, Service: "pdw-keyserver"}).
		With("server_id", cfg.KeyServer.ID)

	if cfg.Chain.RPCURL == "" {
		return errors.New("chain.rpc_url is required for a standalone key server")
	}
	keys, err := loadKeys(cfg.KeyServer.PrivateKey)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	auditor := publisher.NewPublisher(auditmemory.NewInMemoryStore(), publisher.WithAsyncBuffer(cfg.Audit.Buffer), publisher.WithLogger(log))
	defer auditor.Close()

	node := rpc.New(cfg.Chain.RPCURL)
	srv := keyserver.New(cfg.KeyServer.ID, keys, node,
		keyserver.WithLogger(log),
		keyserver.WithMetrics(ksmetrics.New(reg)),
		keyserver.WithAuditor(auditor),
	)

	log.InfoContext(ctx, "starting key server",
		"addr", cfg.KeyServer.Addr,
		"public_key", hex.EncodeToString(keys.Public),
		"rpc_url", cfg.Chain.RPCURL,
	)
	httpSrv := httpserver.New(cfg.KeyServer.Addr, cfg.Server, newRouter(srv, node, reg, log))
	return httpserver.Run(ctx, httpSrv, cfg.Server.ShutdownTimeout, log)
}

func newRouter(srv *keyserver.Server, node *rpc.Client, gatherer prometheus.Gatherer, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(request.AccessLog(log))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if _, err := node.Now(r.Context()); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	keyserver.NewHandler(srv, log).Register(r)
	return r
}

func loadKeys(private string) (sealbox.KeyPair, error) {
	if private == "" {
		return sealbox.KeyPair{}, errNoPrivateKey
	}
	b, err := hex.DecodeString(strings.TrimPrefix(private, "0x"))
	if err != nil {
		return sealbox.KeyPair{}, fmt.Errorf("key_server.private_key: %w", err)
	}
	return sealbox.KeyPairFromPrivate(b)
}
