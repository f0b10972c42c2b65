// Package confidence aggregates per-source confidence into one overall
// value and maps it onto a non-linear score multiplier.
package confidence

import (
	"math"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// Overall confidence clamp after aggregation.
const (
	overallMin = 0.50
	overallMax = 0.95
)

// Aggregator combines satellite, infrastructure and market confidence.
type Aggregator struct {
	cfg config.ConfidenceConfig
}

// NewAggregator creates a confidence aggregator with the given tuning.
func NewAggregator(cfg config.ConfidenceConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// AdjustInfra applies the component-level quality bump: a live fetch that
// returned a rich feature set earns extra confidence. Adjustments happen
// here, before aggregation, never on the weighted average.
func (a *Aggregator) AdjustInfra(infra model.InfraResult) float64 {
	conf := infra.Confidence
	if infra.Source == string(waterfall.KindLive) && infra.FeatureCount >= a.cfg.LiveFeatureCount {
		conf += a.cfg.LiveFeatureBump
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// Aggregate combines the three per-source confidences into the overall
// confidence and its multiplier. Inputs are expected to be quality-adjusted
// already.
func (a *Aggregator) Aggregate(satellite, infra, market float64) model.ConfidenceBreakdown {
	b := model.ConfidenceBreakdown{
		Satellite:      satellite,
		Infrastructure: infra,
		Market:         market,
	}

	b.Weighted = a.cfg.SatelliteWeight*satellite +
		a.cfg.InfraWeight*infra +
		a.cfg.MarketWeight*market

	overall := b.Weighted
	if overall < a.cfg.LowThreshold {
		overall *= 1 - a.cfg.LowPenalty
		b.PenaltyApplied = true
	}

	if overall < overallMin {
		overall = overallMin
	}
	if overall > overallMax {
		overall = overallMax
	}
	b.Overall = overall
	b.Multiplier = a.Multiplier(overall)

	return b
}

// Multiplier maps overall confidence onto [0.70, 1.00]. Above the
// breakpoint the curve is near-linear; below it a power curve punishes low
// confidence harder than it rewards high. The two branches meet at the
// breakpoint, and the mapping is monotonically non-decreasing.
func (a *Aggregator) Multiplier(conf float64) float64 {
	if conf < overallMin {
		conf = overallMin
	}
	if conf > overallMax {
		conf = overallMax
	}

	bp := a.cfg.CurveBreakpoint
	if conf >= bp {
		return 0.97 + (conf-bp)*0.30
	}
	frac := (conf - overallMin) / (bp - overallMin)
	return 0.70 + 0.27*math.Pow(frac, a.cfg.CurveExponent)
}
