package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/leadforge/leadforge/pkg/catalog"
	"github.com/leadforge/leadforge/pkg/httpapi"
)

func newServeCommand(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and drip scheduler",
		Long: `Start the LeadForge service: the HTTP API, the drip scheduler loop,
and, when configured, the campaign template watcher.

The scheduler evaluates all memberships of active campaigns on every tick
interval and fires due steps. The server shuts down gracefully on SIGINT
or SIGTERM.`,
		Example: `  # Run with defaults (config from flags or LEADFORGE_* env)
  leadforge serve

  # Run with an explicit config file
  leadforge serve --config /etc/leadforge/config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), version)
		},
	}
	return cmd
}

func runServe(ctx context.Context, version string) error {
	a, err := setupApp(ctx, version)
	if err != nil {
		return err
	}
	defer a.shutdown()

	log := a.logger.NewComponentLogger("serve")

	router := httpapi.NewRouter(httpapi.Deps{
		Logger:    a.logger,
		Metrics:   a.metrics,
		Campaigns: a.campaigns,
		Tracker:   a.tracker,
		Pipeline:  a.pipeline,
		Scheduler: a.scheduler,
		Store:     a.store,
	})

	server := &http.Server{
		Addr:         a.cfg.Server.ListenAddress,
		Handler:      router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		log.WithField("address", server.Addr).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server failed: %w", err)
		}
	}()

	go func() {
		log.WithField("interval", a.cfg.Scheduler.TickInterval.String()).Info("drip scheduler running")
		if err := a.scheduler.Run(serveCtx, a.cfg.Scheduler.TickInterval); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- fmt.Errorf("scheduler failed: %w", err)
		}
	}()

	if a.cfg.Catalog.Watch && len(a.cfg.Catalog.Paths) > 0 {
		loader := catalog.NewLoader(a.logger.NewComponentLogger("catalog").Zerolog())
		err := loader.Watch(serveCtx, a.cfg.Catalog.Paths, func(templates []catalog.Template) error {
			created, err := applyTemplates(serveCtx, a.campaigns, templates)
			if err != nil {
				return err
			}
			log.WithField("count", len(templates)).
				WithField("created", created).
				Info("campaign templates reloaded")
			return nil
		})
		if err != nil {
			log.WithError(err).Warn("failed to start template watcher")
		}
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		cancel()
		_ = shutdownServer(server, a.cfg.Server.ShutdownTimeout)
		return err
	}

	cancel()
	if err := shutdownServer(server, a.cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func shutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return server.Shutdown(ctx)
}
