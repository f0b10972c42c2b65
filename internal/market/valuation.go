package market

import (
	"math"
	"time"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// Premium and multiplier constants. The premiums shape the expected price;
// the multiplier bounds are the outer clamp on the market multiplier.
const (
	infraPremiumSwing    = 0.3  // ±30% across the 0-100 infra scale
	momentumPremiumSwing = 0.2  // up to +20% for maximum momentum
	catalystPremium      = 1.25 // fixed uplift for a qualifying catalyst
	catalystWindowYears  = 5

	multiplierFloor = 0.85
	multiplierCap   = 1.40

	trendAdjustFactor = 0.1 // price trend contributes a tenth of its percent
)

// Engine computes expected prices, the relative value index (RVI) and the
// market multiplier.
type Engine struct {
	classifier *Classifier
	static     *config.StaticConfig
	now        func() time.Time
}

// NewEngine creates a valuation engine over the region registry.
func NewEngine(static *config.StaticConfig) *Engine {
	return &Engine{
		classifier: NewClassifier(static),
		static:     static,
		now:        time.Now,
	}
}

// WithNow fixes the engine's clock. Test hook.
func (e *Engine) WithNow(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Classifier exposes the engine's tier classifier.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// CatalystActive reports whether a qualifying infrastructure catalyst
// applies to the region: opened within the last five years and the region
// centroid inside the catalyst radius. Returns the first match.
func (e *Engine) CatalystActive(region config.RegionConfig) (config.Catalyst, bool) {
	now := e.now()
	cutoff := now.AddDate(-catalystWindowYears, 0, 0)
	for _, c := range e.static.Catalysts {
		if c.Opened.Before(cutoff) || c.Opened.After(now) {
			continue
		}
		if geo.HaversineKm(region.Centroid, c.Location) <= c.RadiusKm {
			return c, true
		}
	}
	return config.Catalyst{}, false
}

// RelativeValue derives the expected price for a region and the RVI of the
// actual price against it.
//
// expected = tierBase x infraPremium x momentumPremium x catalystPremium.
// RVI above 1 reads overvalued, below 1 undervalued. momentumFraction is
// the satellite development activity on [0,1]; price trend is deliberately
// not an input here, it only adjusts the multiplier afterwards.
func (e *Engine) RelativeValue(regionID string, actualPrice, infraScore, momentumFraction float64, catalystActive bool) (model.ValuationBreakdown, error) {
	bm, err := e.classifier.Benchmark(regionID)
	if err != nil {
		return model.ValuationBreakdown{}, err
	}

	infraPremium := 1 + ((infraScore-50)/100)*infraPremiumSwing
	momentumPremium := 1 + momentumFraction*momentumPremiumSwing

	catPremium := 1.0
	var catName string
	if catalystActive {
		catPremium = catalystPremium
		if region, ok := e.static.Region(regionID); ok {
			if c, active := e.CatalystActive(region); active {
				catName = c.Name
			}
		}
	}

	expected := bm.BasePriceM2 * infraPremium * momentumPremium * catPremium
	rvi := actualPrice / expected

	return model.ValuationBreakdown{
		TierLabel:       bm.Label,
		TierBasePrice:   bm.BasePriceM2,
		OverrideApplied: bm.Override,
		InfraPremium:    infraPremium,
		MomentumPremium: momentumPremium,
		CatalystPremium: catPremium,
		CatalystName:    catName,
		ExpectedPrice:   expected,
		ActualPrice:     actualPrice,
		RVI:             rvi,
		OutOfBand:       math.Abs(rvi-1) > bm.ToleranceBand,
	}, nil
}

// Multiplier maps RVI onto the market multiplier. rvi == nil means RVI
// could not be computed; the trend-only fallback then applies, and it is
// the same code path whether data was missing or the caller omitted it.
func (e *Engine) Multiplier(rvi *float64, trendPct float64) float64 {
	if rvi == nil {
		return TrendOnlyMultiplier(trendPct)
	}

	m := rviBandMultiplier(*rvi)
	m *= 1 + (trendPct/100)*trendAdjustFactor

	return clampMultiplier(m)
}

// rviBandMultiplier is the five-band RVI mapping: deep undervaluation gets
// the strongest boost, clear overvaluation a discount.
func rviBandMultiplier(rvi float64) float64 {
	switch {
	case rvi < 0.7:
		return 1.40
	case rvi < 0.9:
		return 1.25
	case rvi < 1.1:
		return 1.00
	case rvi < 1.3:
		return 0.90
	default:
		return 0.85
	}
}

// TrendOnlyMultiplier maps the price trend alone onto the multiplier when
// no RVI is available.
func TrendOnlyMultiplier(trendPct float64) float64 {
	switch {
	case trendPct >= 15:
		return 1.40
	case trendPct >= 8:
		return 1.20
	case trendPct >= 2:
		return 1.00
	case trendPct >= 0:
		return 0.95
	default:
		return 0.85
	}
}

func clampMultiplier(m float64) float64 {
	if m < multiplierFloor {
		return multiplierFloor
	}
	if m > multiplierCap {
		return multiplierCap
	}
	return m
}
