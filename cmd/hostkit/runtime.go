package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/aponysus/hostkit/chain"
	"github.com/aponysus/hostkit/dbinit"
	"github.com/aponysus/hostkit/host"
	"github.com/aponysus/hostkit/internal/catalog"
	"github.com/aponysus/hostkit/internal/config"
	promobserve "github.com/aponysus/hostkit/observe/prometheus"
)

// runtime is the wiring shared by migrate and serve.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	app      *host.App
	tracker  *dbinit.Tracker
	registry *prometheus.Registry
	metrics  *promobserve.Observer
}

func newRuntime(cmd *cobra.Command) (*runtime, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := promobserve.New(registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	services := host.NewServices()
	catalog.Register(services, cfg.Storage())
	app := host.New(
		host.WithEnvironment(cfg.Env()),
		host.WithServices(services),
		host.WithLogger(logger),
	)

	return &runtime{
		cfg:      cfg,
		logger:   logger,
		app:      app,
		tracker:  dbinit.NewTracker(),
		registry: registry,
		metrics:  metrics,
	}, nil
}

// migrate initializes the catalog, seeding it only in Development when
// seeding is enabled.
func (rt *runtime) migrate(ctx context.Context) (dbinit.Outcome, error) {
	target := catalog.Target(rt.logger)
	opts := []dbinit.Option{
		dbinit.WithLogger(rt.logger),
		dbinit.WithPolicy(rt.cfg.Migration.PolicyOptions()...),
		dbinit.WithObserver(rt.metrics),
		dbinit.WithRecorder(rt.tracker),
	}

	var out dbinit.Outcome
	initialize := func(seeder dbinit.Seeder[*catalog.Store]) chain.Action[*host.App] {
		return func(ctx context.Context, app *host.App) (*host.App, error) {
			_, out = dbinit.Initialize(ctx, app, target, seeder, opts...)
			return app, nil
		}
	}
	seedEnabled := chain.When(func(*host.App) bool { return rt.cfg.Migration.Seed })

	_, err := chain.ExecuteIf(ctx, rt.app, chain.Production[*host.App](), initialize(nil)).
		ElseIf(ctx, both(chain.Development[*host.App](), seedEnabled), initialize(catalog.Seed)).
		Else(ctx, initialize(nil))
	return out, err
}

// both holds when a and b hold, evaluating b only if a does.
func both[H any](a, b chain.Predicate[H]) chain.Predicate[H] {
	return func(ctx context.Context, h H) (bool, error) {
		ok, err := a(ctx, h)
		if err != nil || !ok {
			return false, err
		}
		return b(ctx, h)
	}
}

func (rt *runtime) close() {
	if err := rt.app.Close(); err != nil {
		rt.logger.Warn("close services", "err", err)
	}
}
