package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/leadforge/leadforge/pkg/config"
	"github.com/leadforge/leadforge/pkg/engine"
	"github.com/leadforge/leadforge/pkg/senders"
	"github.com/leadforge/leadforge/pkg/stores"
	"github.com/leadforge/leadforge/pkg/telemetry"
)

// app holds the assembled service: config, telemetry, store, and the engine
// components. All commands wire through here so serve and tick agree on
// semantics.
type app struct {
	cfg      *config.Config
	logger   *telemetry.Logger
	metrics  *telemetry.Metrics
	tracer   *telemetry.Tracer
	activity *telemetry.ActivityPublisher
	store    *stores.SQLiteStore

	campaigns *engine.CampaignManager
	tracker   *engine.Tracker
	pipeline  *engine.Pipeline
	scheduler *engine.DripScheduler
}

// setupApp loads configuration and assembles the full component graph.
func setupApp(ctx context.Context, version string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	telCfg := cfg.TelemetryConfig(version)

	logger, err := telemetry.NewLogger(telCfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	metrics, err := telemetry.NewMetrics(telCfg.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	tracer, err := telemetry.NewTracer(telCfg.Tracing, telCfg.ServiceName, telCfg.ServiceVersion, telCfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	store, err := stores.NewSQLiteStore(stores.Config{Path: cfg.Storage.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	activity, err := telemetry.NewActivityPublisher(telCfg.Activity, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create activity publisher: %w", err)
	}
	activity.Subscribe(telemetry.LoggingSubscriber(logger.NewComponentLogger("activity")), nil)
	activity.Subscribe(func(a engine.Activity) {
		if err := store.AppendActivity(context.Background(), &a); err != nil {
			logger.WithError(err).Warn("failed to persist activity entry")
		}
	}, nil)

	clock := engine.SystemClock()
	campaigns := engine.NewCampaignManager(store, clock, activity)
	tracker := engine.NewTracker(store, store, clock, activity)
	pipeline := engine.NewPipeline(store, clock, activity)
	scheduler := engine.NewDripScheduler(store, store, tracker,
		senders.NewLogSender(logger), clock, activity,
		engine.SchedulerOptions{
			MaxParallel:     cfg.Scheduler.MaxParallelSends,
			MaxSendAttempts: cfg.Scheduler.MaxSendAttempts,
			Metrics:         metrics,
			Tracer:          tracer,
		})

	return &app{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		activity:  activity,
		store:     store,
		campaigns: campaigns,
		tracker:   tracker,
		pipeline:  pipeline,
		scheduler: scheduler,
	}, nil
}

// shutdown flushes telemetry and closes the store. The main context is
// usually already cancelled by the time this runs, so it uses its own
// deadline.
func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.activity.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("activity publisher shutdown failed")
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.WithError(err).Warn("tracer shutdown failed")
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("store close failed")
	}
}
