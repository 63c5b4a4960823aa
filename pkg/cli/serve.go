package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/getmockd/schemagate/pkg/config"
	"github.com/getmockd/schemagate/pkg/httputil"
	"github.com/getmockd/schemagate/pkg/metrics"
	"github.com/getmockd/schemagate/pkg/proxy"
	"github.com/getmockd/schemagate/pkg/schema"
	"github.com/getmockd/schemagate/pkg/validation"
)

const shutdownTimeout = 10 * time.Second

type serveFlags struct {
	listen   string
	upstream string
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the validating reverse proxy",
		Long: `Start an HTTP server that validates every request against the schema,
forwards valid requests to the upstream and validates the upstream response
before returning it.

Examples:
  schemagate serve --schema openapi.yaml --upstream http://localhost:3000
  schemagate serve --config gateway.yaml --listen :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				cfg.Listen = f.listen
				cfg.Sources["listen"] = config.SourceFlag
			}
			if cmd.Flags().Changed("upstream") {
				cfg.Upstream = f.upstream
				cfg.Sources["upstream"] = config.SourceFlag
			}
			if cfg.Upstream == "" {
				return fmt.Errorf("%w: upstream", config.ErrMissingField)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := newLogger(cfg, cmd.ErrOrStderr())
			handler, err := newGateway(cfg, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, newServer(cfg, handler), log)
		},
	}
	cmd.Flags().StringVarP(&f.listen, "listen", "l", "", "Address to listen on (default :8080)")
	cmd.Flags().StringVarP(&f.upstream, "upstream", "u", "", "Base URL of the service behind the gateway")
	return cmd
}

// buildGate loads the schema document, indexes it and compiles the gate.
func buildGate(cfg *config.Config, log *slog.Logger, opts ...validation.Option) (*validation.Gate, *schema.Index, error) {
	var loadOpts []schema.LoadOption
	if cfg.StrictSchema {
		loadOpts = append(loadOpts, schema.WithStrictValidation())
	}
	doc, err := schema.LoadFile(cfg.Schema, loadOpts...)
	if err != nil {
		return nil, nil, err
	}
	idx, err := schema.Build(doc)
	if err != nil {
		return nil, nil, err
	}
	opts = append([]validation.Option{validation.WithLogger(log)}, opts...)
	gate, err := validation.New(idx, cfg.Validation, opts...)
	if err != nil {
		return nil, nil, err
	}
	return gate, idx, nil
}

// newGateway assembles the router: health and metrics endpoints, then the
// gate in front of the upstream proxy for everything else.
func newGateway(cfg *config.Config, log *slog.Logger) (http.Handler, error) {
	var (
		collector *metrics.Collector
		gateOpts  []validation.Option
	)
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector("", nil)
		gateOpts = append(gateOpts, validation.WithMetrics(collector))
	}

	gate, idx, err := buildGate(cfg, log, gateOpts...)
	if err != nil {
		return nil, err
	}
	if collector != nil {
		collector.SetRoutes(len(idx.Entries()))
	}

	upstream, err := proxy.New(proxy.Options{Upstream: cfg.Upstream, Logger: log})
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"status": "ok",
			"routes": len(idx.Entries()),
		})
	})
	if collector != nil {
		r.Handle(cfg.Metrics.Path, collector.Handler())
	}
	r.NotFound(gate.Middleware(upstream).ServeHTTP)
	r.MethodNotAllowed(gate.Middleware(upstream).ServeHTTP)

	log.Info("gateway ready",
		"schema", cfg.Schema,
		"version", idx.Document().Version(),
		"routes", len(idx.Entries()),
		"upstream", upstream.Target().String(),
	)
	return r, nil
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Listen,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, log *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
