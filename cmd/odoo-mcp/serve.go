package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/odoo-mcp/internal/clientpool"
	"github.com/tombee/odoo-mcp/internal/config"
	"github.com/tombee/odoo-mcp/internal/configapi"
	"github.com/tombee/odoo-mcp/internal/configwatcher"
	"github.com/tombee/odoo-mcp/internal/dispatcher"
	"github.com/tombee/odoo-mcp/internal/mcpsession"
	"github.com/tombee/odoo-mcp/internal/metadatacache"
	"github.com/tombee/odoo-mcp/internal/metrics"
	"github.com/tombee/odoo-mcp/internal/observability"
	"github.com/tombee/odoo-mcp/internal/registry"
	"github.com/tombee/odoo-mcp/internal/transport"
)

// storeInstanceLister adapts *config.Store to transport.InstanceLister
// for /health's per-instance listing (configured names only; no
// reachability probe).
type storeInstanceLister struct {
	store *config.Store
}

func (l storeInstanceLister) InstanceNames() []string {
	doc, err := l.store.LoadInstances()
	if err != nil {
		return nil
	}
	names := make([]string, len(doc.Instances))
	for i, inst := range doc.Instances {
		names[i] = inst.Name
	}
	return names
}

func newServeCommand(logger *slog.Logger) *cobra.Command {
	var (
		stdio      bool
		mcpAddr    string
		configAddr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway, serving MCP over stdio and/or HTTP/SSE/WebSocket plus the config REST API",
		Long: `serve starts the ERP MCP gateway.

With --stdio (the default when no --mcp-addr is given), the gateway
speaks one MCP session over stdin/stdout, suitable for a locally
spawned MCP client (Claude Desktop, Claude Code, Cursor).

With --mcp-addr, the gateway additionally serves the streamable-HTTP,
SSE+POST, and WebSocket MCP framings on one HTTP listener, each
accepting its own independent sessions.

The configuration REST API (instances/tools/prompts/server documents,
bearer-auth toggles, connected-session listing) always listens on
--config-addr.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdio && mcpAddr == "" {
				stdio = true
			}
			return runServe(cmd.Context(), logger, serveOptions{
				stdio:      stdio,
				mcpAddr:    mcpAddr,
				configAddr: configAddr,
			})
		},
	}

	cmd.Flags().BoolVar(&stdio, "stdio", false, "Serve one MCP session over stdin/stdout")
	cmd.Flags().StringVar(&mcpAddr, "mcp-addr", "", "Address to serve HTTP/SSE/WebSocket MCP framings on, e.g. :8090")
	cmd.Flags().StringVar(&configAddr, "config-addr", "", "Address to serve the config REST API on (default from ODOO_CONFIG_SERVER_PORT, or :8091)")

	return cmd
}

type serveOptions struct {
	stdio      bool
	mcpAddr    string
	configAddr string
}

func runServe(ctx context.Context, logger *slog.Logger, opts serveOptions) error {
	dir := config.ConfigDir()
	useKeyring := os.Getenv("ODOO_CONFIG_USE_KEYRING") == "true" || os.Getenv("ODOO_CONFIG_USE_KEYRING") == "1"

	store, err := config.NewStore(dir, logger, useKeyring)
	if err != nil {
		return fmt.Errorf("create config store: %w", err)
	}

	reg, err := registry.New(store, logger)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	watcher, err := configwatcher.New(configwatcher.Config{
		Dir:      dir,
		Reloader: reg,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("start config watcher: %w", err)
	}
	defer watcher.Close()

	shutdownTracing, err := observability.NewProvider("odoo-mcp")
	if err != nil {
		return fmt.Errorf("start tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing.Shutdown(shutdownCtx)
	}()
	tracer := observability.NewTracer("odoo-mcp")

	m := metrics.New()

	pool := clientpool.New(store, tracer, m, 0)
	cache := metadatacache.New(config.MetadataCacheTTL(), m)
	opDispatcher := dispatcher.New(pool, cache, m, 0, 0).WithTracer(tracer)

	newSession := func() *mcpsession.Session {
		return mcpsession.New(mcpsession.Config{
			Registry:   reg,
			Dispatcher: opDispatcher,
			Pool:       pool,
			Cache:      cache,
			Instances:  store,
			Logger:     logger,
			Metrics:    m,
		})
	}

	manager := transport.NewManager()

	authState, err := configapi.LoadAuthState(dir)
	if err != nil {
		return fmt.Errorf("load auth state: %w", err)
	}

	group, groupCtx := newSignalGroup(ctx)

	if opts.stdio {
		stdioServer := transport.NewStdioServer(newSession(), manager, logger)
		group.spawn(func() error {
			return stdioServer.Serve(groupCtx, os.Stdin, os.Stdout)
		})
	}

	if opts.mcpAddr != "" {
		mux := http.NewServeMux()
		httpServer := transport.NewHTTPServer(newSession, manager, storeInstanceLister{store}, authState, logger)
		sseServer := transport.NewSSEServer(newSession, manager, logger)
		wsServer := transport.NewWebSocketServer(newSession, manager, authState, logger)
		httpServer.RegisterRoutes(mux)
		sseServer.RegisterRoutes(mux)
		wsServer.RegisterRoutes(mux)

		srv := &http.Server{Addr: opts.mcpAddr, Handler: mux}
		group.spawn(func() error { return serveHTTP(groupCtx, srv) })
	}

	configAddr := opts.configAddr
	if configAddr == "" {
		configAddr = ":" + configServerPort()
	}
	configMux := http.NewServeMux()
	configapi.New(store, authState, manager, logger).RegisterRoutes(configMux)
	configSrv := &http.Server{Addr: configAddr, Handler: configMux}
	group.spawn(func() error { return serveHTTP(groupCtx, configSrv) })

	logger.Info("odoo-mcp gateway started", "stdio", opts.stdio, "mcp_addr", opts.mcpAddr, "config_addr", configAddr)
	return group.wait()
}

func configServerPort() string {
	if port := os.Getenv("ODOO_CONFIG_SERVER_PORT"); port != "" {
		if _, err := strconv.Atoi(port); err == nil {
			return port
		}
	}
	return "8091"
}

func serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// signalGroup runs a set of goroutines, cancelling all of them as soon
// as one returns an error or the process receives SIGINT/SIGTERM.
type signalGroup struct {
	cancel  context.CancelFunc
	errCh   chan error
	pending int
}

func newSignalGroup(parent context.Context) (*signalGroup, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	return &signalGroup{cancel: cancel, errCh: make(chan error, 8)}, ctx
}

func (g *signalGroup) spawn(fn func() error) {
	g.pending++
	go func() {
		err := fn()
		g.errCh <- err
	}()
}

func (g *signalGroup) wait() error {
	var firstErr error
	for i := 0; i < g.pending; i++ {
		if err := <-g.errCh; err != nil && firstErr == nil {
			firstErr = err
			g.cancel()
		}
	}
	return firstErr
}
