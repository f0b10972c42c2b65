package market

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
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

func newPriceCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

// stubLivePrices plays the live tier of the price cascade.
type stubLivePrices struct {
	price model.PricePoint
	calls int
}

func (p *stubLivePrices) Name() string         { return "stub-live" }
func (p *stubLivePrices) Kind() waterfall.Kind { return waterfall.KindLive }

func (p *stubLivePrices) Fetch(_ context.Context, _ string) (model.PricePoint, float64, error) {
	p.calls++
	return p.price, waterfall.Ceiling(waterfall.KindLive), nil
}

func TestEvaluate_LivePriceBeatsFreshCache(t *testing.T) {
	c := newPriceCache(t)
	static := config.DefaultStatic()
	ctx := context.Background()

	// A fresh cache entry must not shadow a live observation.
	stale := model.PricePoint{RegionID: "ubud", PricePerM2: 4_000_000}
	require.NoError(t, c.Prices().Put(ctx, "ubud", stale))

	live := &stubLivePrices{price: model.PricePoint{RegionID: "ubud", PricePerM2: 5_000_000}}
	svc := NewService(c.Prices(), live, static, 24*time.Hour, clockwork.NewRealClock())

	region, _ := static.Region("ubud")
	res, err := svc.Evaluate(ctx, region, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, live.calls)
	assert.Equal(t, string(waterfall.KindLive), res.PriceSource)
	assert.Equal(t, 0.85, res.Confidence)
	require.NotNil(t, res.Valuation)
	// The live price equals the expected price exactly: RVI 1.0.
	assert.InDelta(t, 1.0, res.Valuation.RVI, 1e-9)

	// Live success writes through, replacing the stale entry.
	got, _, ok := c.Prices().Get(ctx, "ubud")
	require.True(t, ok)
	assert.Equal(t, 5_000_000.0, got.PricePerM2)
}

func TestEvaluate_BenchmarkFallbackIsTrendOnly(t *testing.T) {
	c := newPriceCache(t)
	static := config.DefaultStatic()
	svc := NewService(c.Prices(), nil, static, 24*time.Hour, clockwork.NewRealClock())

	region, ok := static.Region("ubud")
	require.True(t, ok)

	// Empty cache and no live provider: the tier baseline serves the price,
	// and a baseline price never produces an RVI.
	res, err := svc.Evaluate(context.Background(), region, 50, 0)
	require.NoError(t, err)
	assert.True(t, res.TrendOnly)
	assert.Nil(t, res.Valuation)
	assert.Equal(t, string(waterfall.KindBenchmark), res.PriceSource)
	assert.Equal(t, 0.50, res.Confidence)
	// Zero trend maps to 0.95.
	assert.Equal(t, 0.95, res.Multiplier)
}

func TestEvaluate_CachedPriceProducesRVI(t *testing.T) {
	c := newPriceCache(t)
	static := config.DefaultStatic()

	price := model.PricePoint{RegionID: "ubud", PricePerM2: 5_000_000, TrendPct: 0}
	require.NoError(t, c.Prices().Put(context.Background(), "ubud", price))

	svc := NewService(c.Prices(), nil, static, 24*time.Hour, clockwork.NewRealClock())
	region, _ := static.Region("ubud")

	res, err := svc.Evaluate(context.Background(), region, 50, 0)
	require.NoError(t, err)
	assert.False(t, res.TrendOnly)
	require.NotNil(t, res.Valuation)
	assert.Equal(t, string(waterfall.KindCache), res.PriceSource)
	// Price equals the expected price exactly: RVI 1.0, neutral band.
	assert.InDelta(t, 1.0, res.Valuation.RVI, 1e-9)
	assert.InDelta(t, 1.0, res.Multiplier, 1e-9)
	// Fresh entry sits at the cache ceiling.
	assert.InDelta(t, 0.85, res.Confidence, 0.01)
}

func TestEvaluate_UnknownRegionGetsDefault(t *testing.T) {
	c := newPriceCache(t)
	static := config.DefaultStatic()
	svc := NewService(c.Prices(), nil, static, 24*time.Hour, clockwork.NewRealClock())

	// A region outside the registry exhausts every tier, benchmark included.
	res, err := svc.Evaluate(context.Background(), config.RegionConfig{ID: "atlantis"}, 50, 0)
	require.NoError(t, err)
	assert.True(t, res.TrendOnly)
	assert.Equal(t, "default", res.PriceSource)
	assert.Equal(t, 0.30, res.Confidence)
	assert.Equal(t, 0.95, res.Multiplier)
}

func TestEvaluate_BenchmarkMatchesMissingDataNumbers(t *testing.T) {
	c := newPriceCache(t)
	static := config.DefaultStatic()
	svc := NewService(c.Prices(), nil, static, 24*time.Hour, clockwork.NewRealClock())

	region, _ := static.Region("sanur")
	benchRes, err := svc.Evaluate(context.Background(), region, 70, 0.5)
	require.NoError(t, err)

	missRes, err := svc.Evaluate(context.Background(), config.RegionConfig{ID: "atlantis"}, 70, 0.5)
	require.NoError(t, err)

	// Same multiplier either way: the trend-only path is shared.
	assert.Equal(t, missRes.Multiplier, benchRes.Multiplier)
}
