package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/swingsim/config"
	"github.com/rustyeddy/swingsim/internal/logger"
	"github.com/rustyeddy/swingsim/journal"
	"github.com/rustyeddy/swingsim/market"
	"github.com/rustyeddy/swingsim/metrics"
	"github.com/rustyeddy/swingsim/sim"
)

// app holds what every command that touches sessions needs.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	reg     *prometheus.Registry
	metrics *metrics.Recorder
	store   *journal.SQLite
	closers []io.Closer
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadFromFile(cfgFile)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	log, closer, err := logger.New(cfg.Log.Logger())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	store, err := journal.NewSQLite(cfg.Journal.DBPath, log)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	return &app{
		cfg:     cfg,
		log:     log,
		reg:     reg,
		metrics: metrics.New(reg),
		store:   store,
		closers: []io.Closer{store, closer},
	}, nil
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

func (a *app) catalog() market.Catalog {
	if a.cfg.Data.Format == "parquet" {
		return market.NewParquetProvider(a.cfg.Data.Dir)
	}
	return market.NewCSVProvider(a.cfg.Data.Dir)
}

func (a *app) syncer() *journal.Syncer {
	opts := a.cfg.Journal.SyncOptions()
	opts.Logger = a.log
	opts.Metrics = a.metrics
	return journal.NewSyncer(a.store, opts)
}

func (a *app) engineOptions(s sim.Syncer) sim.Options {
	opts := a.cfg.EngineOptions()
	opts.Logger = a.log
	opts.Metrics = a.metrics
	opts.Syncer = s
	return opts
}

// serveMetrics exposes the registry on the configured address when metrics
// are enabled. The returned func shuts the listener down.
func (a *app) serveMetrics() func() {
	if !a.cfg.Metrics.Enabled {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Str("addr", srv.Addr).Msg("metrics server")
		}
	}()
	a.log.Info().Str("addr", srv.Addr).Msg("serving metrics")

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
