package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/zjrosen/linearmcp/internal/log"
	"github.com/zjrosen/linearmcp/internal/mcp"
	"github.com/zjrosen/linearmcp/internal/metrics"
	"github.com/zjrosen/linearmcp/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the Linear tools over MCP on stdio",
	Long: `Serve the Linear tools over the Model Context Protocol, reading
JSON-RPC requests from stdin and writing responses to stdout.

Logs go to log.path or stderr; stdout carries only protocol frames.

Example MCP client entry:
  {"command": "linearmcp", "args": ["serve"]}

Expose Prometheus metrics while serving:
  linearmcp serve --metrics-addr 127.0.0.1:9464`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("metrics-addr", "", "address for the Prometheus /metrics endpoint (overrides metrics_addr)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, cleanup, err := loadSettings()
	defer cleanup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	provider, err := tracing.NewProvider(s.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			log.ErrorErr(log.CatConfig, "flushing traces", err)
		}
	}()

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promReg)

	registry, err := newRegistry(s, provider.Tracer(), m)
	if err != nil {
		return fmt.Errorf("creating workspace registry: %w", err)
	}
	defer func() {
		if err := registry.CloseAll(); err != nil {
			log.ErrorErr(log.CatRegistry, "closing workspace clients", err)
		}
	}()

	if s.MetricsAddr != "" {
		stopMetrics, err := serveMetrics(s.MetricsAddr, m)
		if err != nil {
			return err
		}
		defer stopMetrics()
	}

	server := mcp.NewServer("linearmcp", version,
		mcp.WithInstructions(mcp.Instructions),
		mcp.WithTracer(provider.Tracer()),
		mcp.WithMetrics(m),
	)
	mcp.NewHandlers(registry).Register(server)

	log.Info(log.CatMCP, "serving on stdio",
		"workspaces", len(registry.WorkspaceNames()),
		"tracing", provider.Enabled())

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}()

	select {
	case <-ctx.Done():
		log.Info(log.CatMCP, "shutting down", "reason", ctx.Err())
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("serving MCP: %w", err)
		}
		log.Info(log.CatMCP, "input closed, shutting down")
		return nil
	}
}

// serveMetrics starts the /metrics endpoint and returns a stop function.
func serveMetrics(addr string, m *metrics.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening for metrics on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.ErrorErr(log.CatConfig, "metrics server stopped", err)
		}
	}()
	log.Info(log.CatConfig, "metrics endpoint listening", "addr", ln.Addr().String())

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
