package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jonwraymond/tooldebug/server"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = server.DefaultVersion

func newServeCmd(a func() *app) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the debug tools over MCP stdio",
		Long: `Serves the debug tools to an MCP client over stdin/stdout.

Logs go to stderr. With --metrics-addr, Prometheus metrics are served over
HTTP at /metrics on that address.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps := a()
			ctx := cmd.Context()

			addr := metricsAddr
			if addr == "" {
				addr = deps.cfg.Metrics.Addr
			}
			if addr != "" {
				_, stop, err := serveMetrics(ctx, deps, addr)
				if err != nil {
					return err
				}
				defer stop()
			}

			srv, err := server.New(deps.exec, server.Options{Version: version, Logger: deps.log.Named("server")})
			if err != nil {
				return err
			}
			return srv.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9102")
	return cmd
}

// serveMetrics starts the metrics endpoint and returns its bound address
// and a shutdown func.
func serveMetrics(ctx context.Context, deps *app, addr string) (net.Addr, func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(deps.registry, promhttp.HandlerOpts{}))
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			deps.log.Error("metrics server failed", "error", err)
		}
	}()
	deps.log.Info("serving metrics", "addr", ln.Addr().String())

	return ln.Addr(), func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(shutdownCtx)
	}, nil
}
