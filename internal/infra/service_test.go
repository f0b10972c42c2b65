package infra

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/cache"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 7*24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func testStatic() *config.StaticConfig {
	sc := config.DefaultStatic()
	return sc
}

func TestScoreRegion_PatternFallback(t *testing.T) {
	c := newTestCache(t)
	static := testStatic()
	svc := NewService(c.Features(), nil, static, 7*24*time.Hour, clockwork.NewFakeClock())

	region, ok := static.Region("canggu")
	require.True(t, ok)
	require.NotEmpty(t, region.Pattern)

	res, err := svc.ScoreRegion(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, string(waterfall.KindPattern), res.Source)
	assert.Greater(t, res.Score, 0.0)
	assert.LessOrEqual(t, res.Confidence, 0.60)
	assert.Greater(t, res.FeatureCount, 0)
}

func TestScoreRegion_DefaultWhenAllSourcesFail(t *testing.T) {
	c := newTestCache(t)
	static := testStatic()
	svc := NewService(c.Features(), nil, static, 7*24*time.Hour, clockwork.NewFakeClock())

	// uluwatu has no static pattern, so with no cache and no live tier the
	// cascade exhausts.
	region, ok := static.Region("uluwatu")
	require.True(t, ok)
	require.Empty(t, region.Pattern)

	res, err := svc.ScoreRegion(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, SourceDefault, res.Source)
	assert.Equal(t, 30.0, res.Score)
	assert.Equal(t, 0.30, res.Confidence)
	// Multiplier for the default score: 1 + (30-50)/100*0.5 = 0.90.
	assert.InDelta(t, 0.90, res.Multiplier, 1e-9)
}

func TestScoreRegion_CacheHitShortCircuits(t *testing.T) {
	c := newTestCache(t)
	static := testStatic()
	region, ok := static.Region("uluwatu")
	require.True(t, ok)

	features := []model.InfrastructureFeature{
		{ID: 1, Category: model.CategoryRoad, Subtype: "motorway", Location: geo.DestinationNorth(region.Centroid, 5)},
	}
	require.NoError(t, c.Features().Put(context.Background(), region.ID, features))

	svc := NewService(c.Features(), nil, static, 7*24*time.Hour, clockwork.NewRealClock())
	res, err := svc.ScoreRegion(context.Background(), region)
	require.NoError(t, err)
	assert.Equal(t, string(waterfall.KindCache), res.Source)
	assert.Equal(t, 1, res.FeatureCount)
	// Fresh entry: confidence at the cache ceiling.
	assert.InDelta(t, 0.85, res.Confidence, 0.01)
	assert.InDelta(t, 35.0, res.Score, 0.5)
}

// stubLiveFeatures plays the live tier of the feature cascade.
type stubLiveFeatures struct {
	features []model.InfrastructureFeature
	calls    int
}

func (p *stubLiveFeatures) Name() string         { return "stub-live" }
func (p *stubLiveFeatures) Kind() waterfall.Kind { return waterfall.KindLive }

func (p *stubLiveFeatures) Fetch(_ context.Context, _ string) ([]model.InfrastructureFeature, float64, error) {
	p.calls++
	return p.features, waterfall.Ceiling(waterfall.KindLive), nil
}

func TestScoreRegion_RepeatWithinTTLIsIdentical(t *testing.T) {
	c := newTestCache(t)
	static := testStatic()
	region, ok := static.Region("uluwatu")
	require.True(t, ok)

	live := &stubLiveFeatures{features: []model.InfrastructureFeature{
		{ID: 1, Category: model.CategoryRoad, Subtype: "motorway", Location: geo.DestinationNorth(region.Centroid, 5)},
		{ID: 2, Category: model.CategoryRailway, Subtype: "station", Location: geo.DestinationNorth(region.Centroid, 8)},
	}}
	svc := NewService(c.Features(), live, static, 7*24*time.Hour, clockwork.NewRealClock())

	// First call misses the cache, fetches live and writes through; the
	// second is served from the cache without touching the live tier.
	first, err := svc.ScoreRegion(context.Background(), region)
	require.NoError(t, err)
	second, err := svc.ScoreRegion(context.Background(), region)
	require.NoError(t, err)

	assert.Equal(t, 1, live.calls)
	assert.Equal(t, string(waterfall.KindLive), first.Source)
	assert.Equal(t, string(waterfall.KindCache), second.Source)

	// Same features, same scoring function: bit-identical breakdown.
	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Multiplier, second.Multiplier)
	assert.Equal(t, first.FeatureCount, second.FeatureCount)
}

func TestScoreRegion_CancelledContext(t *testing.T) {
	c := newTestCache(t)
	static := testStatic()
	svc := NewService(c.Features(), nil, static, 7*24*time.Hour, clockwork.NewFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	region, _ := static.Region("canggu")
	_, err := svc.ScoreRegion(ctx, region)
	assert.ErrorIs(t, err, context.Canceled)
}
