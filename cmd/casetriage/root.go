package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/ahrav/go-triage/infrastructure/middleware"
	"github.com/ahrav/go-triage/internal/logging"
	"github.com/ahrav/go-triage/internal/ports"
)

// globalOptions are the persistent flags shared by every subcommand.
type globalOptions struct {
	configPath  string
	catalogPath string
	logLevel    string
	logFormat   string
	metricsAddr string

	provider   string
	model      string
	apiKeyEnv  string
	baseURL    string
	rateLimit  float64
	embedLimit time.Duration
}

// session is the per-invocation state built by the root command.
type session struct {
	opts     globalOptions
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  ports.MetricsCollector
	server   *http.Server
}

func newRootCmd() *cobra.Command {
	s := &session{}

	root := &cobra.Command{
		Use:   "casetriage",
		Short: "Weak-signal triage of support cases",
		Long: `casetriage runs independent detectors over a support case, votes on
whether the root cause is a code defect, and ranks the catalog entities
most likely responsible.

Results are printed as JSON. Logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return s.start(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return s.stop(cmd.Context())
		},
	}
	root.Version = version

	f := root.PersistentFlags()
	f.StringVar(&s.opts.configPath, "config", "", "Engine config YAML (default: built-in)")
	f.StringVar(&s.opts.catalogPath, "catalog", "", "Known-entity catalog YAML")
	f.StringVar(&s.opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	f.StringVar(&s.opts.logFormat, "log-format", logging.FormatText, "Log format: text or json")
	f.StringVar(&s.opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while the command runs (e.g. :9090)")
	f.StringVar(&s.opts.provider, "embedding-provider", "", "Embedding provider for semantic lookup: openai or google (default: none)")
	f.StringVar(&s.opts.model, "embedding-model", "", "Embedding model (default: provider default)")
	f.StringVar(&s.opts.apiKeyEnv, "api-key-env", "", "Environment variable holding the provider API key (default: OPENAI_API_KEY or GEMINI_API_KEY)")
	f.StringVar(&s.opts.baseURL, "embedding-base-url", "", "Override the provider endpoint")
	f.Float64Var(&s.opts.rateLimit, "embedding-rps", 5, "Embedding requests per second")
	f.DurationVar(&s.opts.embedLimit, "embedding-timeout", 10*time.Second, "Timeout per embedding request")

	root.AddCommand(newEvaluateCmd(s))
	root.AddCommand(newBatchCmd(s))
	root.AddCommand(newBenchmarkCmd(s))
	root.AddCommand(newSearchCmd(s))

	return root
}

func (s *session) start(cmd *cobra.Command) error {
	level, err := logging.ParseLevel(s.opts.logLevel)
	if err != nil {
		return err
	}
	logging.Init(level, s.opts.logFormat, cmd.ErrOrStderr())
	s.logger = logging.New("cli")

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = middleware.NewPrometheusMetrics(s.registry)

	if s.opts.metricsAddr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", s.opts.metricsAddr)
	if err != nil {
		return fmt.Errorf("listen on metrics address: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()
	s.logger.Info("serving metrics", slog.String("addr", ln.Addr().String()))
	return nil
}

func (s *session) stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
