package main

import (
	"context"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rotisserie/eris"
	overpass "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/confidence"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/infra"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/market"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/pipeline"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/provider"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/satellite"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/score"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/store"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// env bundles the wired subsystems a command needs.
type env struct {
	Static   *config.StaticConfig
	Cache    *cache.Cache
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

// Close releases held resources. Safe to call on a partially built env.
func (e *env) Close() {
	if e.Cache != nil {
		if err := e.Cache.Close(); err != nil {
			zap.L().Warn("close cache", zap.Error(err))
		}
	}
	if e.Store != nil {
		if err := e.Store.Close(); err != nil {
			zap.L().Warn("close store", zap.Error(err))
		}
	}
}

// initStore opens the configured run store and migrates it.
func initStore(ctx context.Context) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "postgres":
		st, err = store.NewPostgres(ctx, cfg.Store.DatabaseURL)
	default:
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// initEnv wires the full scoring pipeline.
func initEnv(ctx context.Context) (*env, error) {
	static, err := config.LoadStatic(cfg.Regions.File)
	if err != nil {
		return nil, err
	}

	c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}

	st, err := initStore(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	clock := clockwork.NewRealClock()

	opClient := overpass.NewWithSettings(cfg.Overpass.Endpoint, 2, &http.Client{Timeout: cfg.Overpass.Timeout})
	liveFeatures := provider.NewOverpassProvider(&opClient, static, cfg.Overpass)

	// No configured price endpoint means offline mode: the price cascade
	// runs without its live tier.
	var livePrices waterfall.Provider[model.PricePoint]
	if cfg.Price.BaseURL != "" {
		livePrices = provider.NewPriceProvider(cfg.Price)
	}

	infraSvc := infra.NewService(c.Features(), liveFeatures, static, cfg.Cache.TTL, clock)
	marketSvc := market.NewService(c.Prices(), livePrices, static, cfg.Cache.TTL, clock)

	pipe := pipeline.New(
		static,
		satellite.NewClassifier(cfg.Satellite),
		provider.NewSnapshotProvider(cfg.Snapshot),
		infraSvc,
		marketSvc,
		confidence.NewAggregator(cfg.Confidence),
		score.NewComposer(cfg.Score),
		st,
		cfg.Batch.MaxConcurrentRegions,
	)

	return &env{Static: static, Cache: c, Store: st, Pipeline: pipe}, nil
}
