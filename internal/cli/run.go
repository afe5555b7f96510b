package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/fleet-tracker/internal/config"
	"github.com/rickgao/fleet-tracker/internal/connection"
	"github.com/rickgao/fleet-tracker/internal/mapview"
	"github.com/rickgao/fleet-tracker/internal/marker"
	"github.com/rickgao/fleet-tracker/internal/store"
	"github.com/rickgao/fleet-tracker/internal/version"
)

const shutdownTimeout = 10 * time.Second

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the feed and serve the live map",
		Long: `Connect to the realtime server, subscribe to the configured vehicles and
serve the map API until interrupted. SIGINT or SIGTERM releases the session.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			logger.Info("starting tracker",
				"version", version.Version,
				"commit", version.Commit,
				"url", cfg.Transport.URL,
				"subscriptions", len(cfg.Subscriptions),
			)

			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}

			p := newPipeline(cfg, logger)
			defer p.close()

			err = p.serve(cmd.Context(), ln)
			logger.Info("tracker stopped")
			return err
		},
	}

	return cmd
}

// pipeline is the assembled tracker: transport, manager, store, reconciliation
// engine and presentation surface.
type pipeline struct {
	logger  *slog.Logger
	store   *store.Store
	view    *mapview.View
	engine  *marker.Engine
	mgr     connection.Manager
	handler *mapview.Handler
}

func newPipeline(cfg *config.TrackerConfig, logger *slog.Logger) *pipeline {
	st := store.New(cfg.StoreOptions(), logger.With("component", "store"))

	view := mapview.NewView()
	engine := marker.NewEngine(view, st, logger.With("component", "marker"))
	engine.Attach(st)

	socket := connection.NewSocket(cfg.SocketConfig(), logger.With("component", "transport"))
	mgr := connection.NewManager(cfg.ManagerConfig(), socket, st, logger.With("component", "connection"))

	return &pipeline{
		logger:  logger,
		store:   st,
		view:    view,
		engine:  engine,
		mgr:     mgr,
		handler: mapview.NewHandler(st, view, mgr, logger.With("component", "http")),
	}
}

// serve runs the HTTP server, the websocket push loop and the realtime session
// until ctx is done or one of them fails.
func (p *pipeline) serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           p.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return p.handler.Run(gctx)
	})

	g.Go(func() error {
		p.logger.Info("serving map api", "addr", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return connection.WithSession(gctx, p.mgr, func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		})
	})

	return g.Wait()
}

func (p *pipeline) close() {
	p.engine.Close()
}
