package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

func testCfg() config.ConfidenceConfig {
	return config.ConfidenceConfig{
		SatelliteWeight:  0.50,
		InfraWeight:      0.30,
		MarketWeight:     0.20,
		LowThreshold:     0.60,
		LowPenalty:       0.10,
		CurveBreakpoint:  0.85,
		CurveExponent:    1.2,
		LiveFeatureBump:  0.05,
		LiveFeatureCount: 20,
	}
}

func TestAggregate_WeightedAverage(t *testing.T) {
	a := NewAggregator(testCfg())

	b := a.Aggregate(0.85, 0.80, 0.50)
	// 0.50*0.85 + 0.30*0.80 + 0.20*0.50 = 0.425 + 0.24 + 0.10 = 0.765
	assert.InDelta(t, 0.765, b.Weighted, 1e-9)
	assert.False(t, b.PenaltyApplied)
	assert.InDelta(t, 0.765, b.Overall, 1e-9)
}

func TestAggregate_LowConfidencePenalty(t *testing.T) {
	a := NewAggregator(testCfg())

	b := a.Aggregate(0.55, 0.55, 0.55)
	// Weighted 0.55 < 0.60: penalized to 0.55*0.90 = 0.495, clamped to 0.50.
	assert.True(t, b.PenaltyApplied)
	assert.Equal(t, 0.50, b.Overall)
}

func TestAggregate_Clamp(t *testing.T) {
	a := NewAggregator(testCfg())

	assert.Equal(t, 0.50, a.Aggregate(0.1, 0.1, 0.1).Overall)
	assert.Equal(t, 0.95, a.Aggregate(1.0, 1.0, 1.0).Overall)
}

func TestAdjustInfra_LiveFeatureBump(t *testing.T) {
	a := NewAggregator(testCfg())

	// Live source with a rich feature set gets the bump.
	got := a.AdjustInfra(model.InfraResult{Source: "live", FeatureCount: 25, Confidence: 0.85})
	assert.InDelta(t, 0.90, got, 1e-9)

	// Below the feature threshold: no bump.
	got = a.AdjustInfra(model.InfraResult{Source: "live", FeatureCount: 19, Confidence: 0.85})
	assert.InDelta(t, 0.85, got, 1e-9)

	// Rich cache data does not qualify; the bump rewards live fetches only.
	got = a.AdjustInfra(model.InfraResult{Source: "cache", FeatureCount: 100, Confidence: 0.85})
	assert.InDelta(t, 0.85, got, 1e-9)

	// Capped at 1.
	got = a.AdjustInfra(model.InfraResult{Source: "live", FeatureCount: 50, Confidence: 0.98})
	assert.Equal(t, 1.0, got)
}

func TestMultiplier_Anchors(t *testing.T) {
	a := NewAggregator(testCfg())

	// Floor of the domain maps to the floor of the range.
	assert.InDelta(t, 0.70, a.Multiplier(0.50), 1e-9)
	// At the breakpoint both branches give 0.97.
	assert.InDelta(t, 0.97, a.Multiplier(0.85), 1e-9)
	// Top of the domain: 0.97 + 0.10*0.30 = 1.00.
	assert.InDelta(t, 1.00, a.Multiplier(0.95), 1e-9)
}

func TestMultiplier_ContinuousAtBreakpoint(t *testing.T) {
	a := NewAggregator(testCfg())

	below := a.Multiplier(0.85 - 1e-6)
	above := a.Multiplier(0.85 + 1e-6)
	assert.InDelta(t, above, below, 0.01)
}

func TestMultiplier_Monotonic(t *testing.T) {
	a := NewAggregator(testCfg())

	prev := a.Multiplier(0.50)
	for conf := 0.51; conf <= 0.95; conf += 0.01 {
		cur := a.Multiplier(conf)
		assert.GreaterOrEqual(t, cur, prev, "conf=%v", conf)
		prev = cur
	}
}

func TestMultiplier_ClampsOutOfRangeInput(t *testing.T) {
	a := NewAggregator(testCfg())

	assert.Equal(t, a.Multiplier(0.50), a.Multiplier(0.20))
	assert.Equal(t, a.Multiplier(0.95), a.Multiplier(1.10))
}
