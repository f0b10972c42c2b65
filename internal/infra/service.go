package infra

import (
	"context"
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// Fallback values used when every feature source fails. The region still
// gets scored, just with a neutral-poor score the low confidence flags.
const (
	defaultScore      = 30.0
	defaultConfidence = 0.30
	SourceDefault     = "default"
)

// Service resolves a region's infrastructure features through the cascade
// (cache, live, pattern) and scores them. Feature resolution is cache-first:
// a valid cache entry short-circuits the live fetch entirely.
type Service struct {
	orch   *waterfall.Orchestrator[[]model.InfrastructureFeature]
	static *config.StaticConfig
}

// NewService wires the feature cascade. live is the retried Overpass
// provider; it may be nil in offline mode, dropping that tier.
func NewService(
	fc *cache.FeatureCache,
	live waterfall.Provider[[]model.InfrastructureFeature],
	static *config.StaticConfig,
	ttl time.Duration,
	clock clockwork.Clock,
) *Service {
	providers := []waterfall.Provider[[]model.InfrastructureFeature]{
		&cacheProvider{fc: fc, ttl: ttl, clock: clock},
	}
	if live != nil {
		providers = append(providers, live)
	}
	providers = append(providers, &patternProvider{static: static})

	writeBack := func(ctx context.Context, regionID string, features []model.InfrastructureFeature) error {
		return fc.Put(ctx, regionID, features)
	}

	return &Service{
		orch:   waterfall.New(providers, writeBack),
		static: static,
	}
}

// ScoreRegion resolves features for the region and scores them against its
// centroid. Exhausting every source is not an error: the region falls back
// to the default score with bottom-tier confidence. Only context
// cancellation propagates.
func (s *Service) ScoreRegion(ctx context.Context, region config.RegionConfig) (model.InfraResult, error) {
	res, err := s.orch.Resolve(ctx, region.ID)
	if err != nil {
		if ctx.Err() != nil {
			return model.InfraResult{}, ctx.Err()
		}
		if errors.Is(err, waterfall.ErrDataUnavailable) {
			zap.L().Warn("infra: all feature sources failed, using default score",
				zap.String("region", region.ID),
			)
			return model.InfraResult{
				Score:      defaultScore,
				Multiplier: Multiplier(defaultScore),
				Source:     SourceDefault,
				Confidence: defaultConfidence,
			}, nil
		}
		return model.InfraResult{}, err
	}

	b := Score(res.Value, region.Centroid)
	return model.InfraResult{
		Breakdown:    b,
		Score:        b.Total,
		Multiplier:   Multiplier(b.Total),
		Source:       string(res.Source),
		Confidence:   res.Confidence,
		FeatureCount: len(res.Value),
	}, nil
}

// cacheProvider serves cached feature sets with age-decayed confidence.
type cacheProvider struct {
	fc    *cache.FeatureCache
	ttl   time.Duration
	clock clockwork.Clock
}

func (p *cacheProvider) Name() string         { return "feature-cache" }
func (p *cacheProvider) Kind() waterfall.Kind { return waterfall.KindCache }

func (p *cacheProvider) Fetch(ctx context.Context, regionID string) ([]model.InfrastructureFeature, float64, error) {
	features, createdAt, ok := p.fc.Get(ctx, regionID)
	if !ok {
		return nil, 0, waterfall.ErrMiss
	}
	age := p.clock.Now().Sub(createdAt)
	return features, waterfall.CacheConfidence(age, p.ttl), nil
}

// patternProvider synthesizes features from the region's static pattern:
// each pattern entry becomes features placed at its nominal distance from
// the centroid, so the same scoring math runs on every path.
type patternProvider struct {
	static *config.StaticConfig
}

func (p *patternProvider) Name() string         { return "static-pattern" }
func (p *patternProvider) Kind() waterfall.Kind { return waterfall.KindPattern }

func (p *patternProvider) Fetch(_ context.Context, regionID string) ([]model.InfrastructureFeature, float64, error) {
	region, ok := p.static.Region(regionID)
	if !ok || len(region.Pattern) == 0 {
		return nil, 0, waterfall.ErrMiss
	}

	var features []model.InfrastructureFeature
	var id int64
	for _, pf := range region.Pattern {
		count := pf.Count
		if count <= 0 {
			count = 1
		}
		loc := geo.DestinationNorth(region.Centroid, pf.DistanceKm)
		for i := 0; i < count; i++ {
			id++
			features = append(features, model.InfrastructureFeature{
				ID:       -id, // negative so synthetic features never collide with OSM ids
				Category: pf.Category,
				Subtype:  pf.Subtype,
				Location: loc,
			})
		}
	}
	return features, waterfall.Ceiling(waterfall.KindPattern), nil
}
