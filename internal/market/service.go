package market

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// Confidence assigned when even the benchmark tier cannot serve a region.
const defaultPriceConfidence = 0.30

// Service resolves a region's market price through the cascade
// (live, cache, benchmark) and evaluates the market multiplier. Prices are
// live-first: a fresh observation always beats a cached one, with the cache
// serving only when the live tier is absent or failing.
type Service struct {
	engine *Engine
	orch   *waterfall.Orchestrator[model.PricePoint]
}

// NewService wires the price cascade. live may be nil in offline mode.
func NewService(
	pc *cache.PriceCache,
	live waterfall.Provider[model.PricePoint],
	static *config.StaticConfig,
	ttl time.Duration,
	clock clockwork.Clock,
) *Service {
	engine := NewEngine(static)

	var providers []waterfall.Provider[model.PricePoint]
	if live != nil {
		providers = append(providers, live)
	}
	providers = append(providers,
		&priceCacheProvider{pc: pc, ttl: ttl, clock: clock},
		&benchmarkProvider{classifier: engine.Classifier()},
	)

	writeBack := func(ctx context.Context, regionID string, price model.PricePoint) error {
		return pc.Put(ctx, regionID, price)
	}

	return &Service{
		engine: engine,
		orch:   waterfall.New(providers, writeBack),
	}
}

// Engine exposes the underlying valuation engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Evaluate resolves the region's price and computes the market multiplier.
//
// A benchmark-sourced price is the tier baseline, not a market observation,
// so RVI is not computed from it: the trend-only fallback applies instead,
// exactly as it would for a missing price. A region missing from the
// registry exhausts the cascade and lands on the trend-only default too;
// unknown regions are caught earlier, at batch assembly.
func (s *Service) Evaluate(ctx context.Context, region config.RegionConfig, infraScore, momentumFraction float64) (model.MarketResult, error) {
	res, err := s.orch.Resolve(ctx, region.ID)
	if err != nil {
		if ctx.Err() != nil {
			return model.MarketResult{}, ctx.Err()
		}
		if errors.Is(err, waterfall.ErrDataUnavailable) {
			zap.L().Warn("market: all price sources failed, trend-only multiplier",
				zap.String("region", region.ID),
			)
			return model.MarketResult{
				TrendOnly:   true,
				Multiplier:  s.engine.Multiplier(nil, 0),
				PriceSource: "default",
				Confidence:  defaultPriceConfidence,
			}, nil
		}
		return model.MarketResult{}, err
	}

	price := res.Value

	if res.Source == waterfall.KindBenchmark {
		return model.MarketResult{
			TrendPct:    price.TrendPct,
			TrendOnly:   true,
			Multiplier:  s.engine.Multiplier(nil, price.TrendPct),
			PriceSource: string(res.Source),
			Confidence:  res.Confidence,
		}, nil
	}

	_, catalystActive := s.engine.CatalystActive(region)
	valuation, err := s.engine.RelativeValue(region.ID, price.PricePerM2, infraScore, momentumFraction, catalystActive)
	if err != nil {
		return model.MarketResult{}, err
	}

	rvi := valuation.RVI
	return model.MarketResult{
		Valuation:   &valuation,
		TrendPct:    price.TrendPct,
		Multiplier:  s.engine.Multiplier(&rvi, price.TrendPct),
		PriceSource: string(res.Source),
		Confidence:  res.Confidence,
	}, nil
}

// priceCacheProvider serves cached prices with age-decayed confidence.
type priceCacheProvider struct {
	pc    *cache.PriceCache
	ttl   time.Duration
	clock clockwork.Clock
}

func (p *priceCacheProvider) Name() string         { return "price-cache" }
func (p *priceCacheProvider) Kind() waterfall.Kind { return waterfall.KindCache }

func (p *priceCacheProvider) Fetch(ctx context.Context, regionID string) (model.PricePoint, float64, error) {
	price, createdAt, ok := p.pc.Get(ctx, regionID)
	if !ok {
		return model.PricePoint{}, 0, waterfall.ErrMiss
	}
	age := p.clock.Now().Sub(createdAt)
	return price, waterfall.CacheConfidence(age, p.ttl), nil
}

// benchmarkProvider serves the static tier baseline as the price of last
// resort. Zero trend: the baseline carries no momentum signal.
type benchmarkProvider struct {
	classifier *Classifier
}

func (p *benchmarkProvider) Name() string         { return "tier-benchmark" }
func (p *benchmarkProvider) Kind() waterfall.Kind { return waterfall.KindBenchmark }

func (p *benchmarkProvider) Fetch(_ context.Context, regionID string) (model.PricePoint, float64, error) {
	bm, err := p.classifier.Benchmark(regionID)
	if err != nil {
		return model.PricePoint{}, 0, err
	}
	return model.PricePoint{
		RegionID:   regionID,
		PricePerM2: bm.BasePriceM2,
		Source:     string(waterfall.KindBenchmark),
	}, waterfall.Ceiling(waterfall.KindBenchmark), nil
}
