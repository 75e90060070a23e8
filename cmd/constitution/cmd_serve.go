package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"constitution/internal/logging"
	mcpserver "constitution/internal/mcp"
	"constitution/internal/metrics"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

func newServeCmd(a *app) *cobra.Command {
	var fl struct {
		graph       string
		metricsAddr string
	}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Long: `Starts an MCP server over stdin/stdout exposing evaluate_option,
validate_proposals, validate_graph, episode_status and get_events.

With --metrics-addr (or metrics.addr in the config file) Prometheus
counters are served on /metrics. The server exits when its parent process
goes away.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.cfg.Metrics.Addr
			if fl.metricsAddr != "" {
				addr = fl.metricsAddr
			}
			return runServe(cmd.Context(), a, fl.graph, addr)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&fl.graph, "graph", "g", "", "decision graph document to preload")
	f.StringVar(&fl.metricsAddr, "metrics-addr", "", "host:port for the /metrics endpoint")
	return cmd
}

func runServe(parent context.Context, a *app, graph, metricsAddr string) error {
	log := logging.New("serve")
	st, _, closeStore, err := a.openStore(graph)
	if err != nil {
		return err
	}
	defer closeStore()

	mcpserver.Version = version
	k := metrics.New()
	srv := mcpserver.NewServer(st, mcpserver.WithMetrics(k))

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if metricsAddr != "" {
		hs, err := serveMetrics(metricsAddr, k)
		if err != nil {
			return err
		}
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			_ = hs.Shutdown(sctx)
		}()
		log.Info("metrics endpoint listening", slog.String("addr", metricsAddr))
	}

	mcpserver.WatchParent(ctx, cancel)

	log.Info("starting constitution MCP server over stdio (parent watchdog active)",
		slog.String("store", a.cfg.Store.Driver))
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

// serveMetrics binds addr before returning so a bad address fails the command.
func serveMetrics(addr string, k *metrics.Kernel) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", k.Handler())
	hs := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.New("serve").Error("metrics endpoint stopped", slog.Any("error", err))
		}
	}()
	return hs, nil
}
