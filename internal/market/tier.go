// Package market values a region against its tier benchmark and maps the
// relative value index onto a score multiplier.
package market

import (
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// ErrUnknownRegion means the region is not in the static registry. This is
// a configuration error: it fails the region, not the batch.
var ErrUnknownRegion = eris.New("market: unknown region")

// Classifier assigns regions to market tiers from the static registry.
type Classifier struct {
	static *config.StaticConfig
}

// NewClassifier creates a tier classifier over the region registry.
func NewClassifier(static *config.StaticConfig) *Classifier {
	return &Classifier{static: static}
}

// Classify returns the market tier (1-4) for a region.
func (c *Classifier) Classify(regionID string) (int, error) {
	region, ok := c.static.Region(regionID)
	if !ok {
		return 0, eris.Wrapf(ErrUnknownRegion, "%s", regionID)
	}
	return region.Tier, nil
}

// Benchmark resolves the tier baseline for a region. The ultra-premium
// override applies to tier-1 regions on the allow-list only: their base
// price is lifted by the configured fraction and the label becomes "1+".
// Every other tier and region is untouched by the allow-list.
func (c *Classifier) Benchmark(regionID string) (model.TierBenchmark, error) {
	region, ok := c.static.Region(regionID)
	if !ok {
		return model.TierBenchmark{}, eris.Wrapf(ErrUnknownRegion, "%s", regionID)
	}

	tc, ok := c.static.Tiers[region.Tier]
	if !ok {
		return model.TierBenchmark{}, eris.Wrapf(ErrUnknownRegion, "%s: no benchmark for tier %d", regionID, region.Tier)
	}

	bm := model.TierBenchmark{
		Tier:          region.Tier,
		Label:         strconv.Itoa(region.Tier),
		BasePriceM2:   tc.BasePriceM2,
		ToleranceBand: tc.ToleranceBand,
		Description:   tc.Description,
	}

	if region.Tier == 1 && c.static.IsUltraPremium(regionID) {
		bm.BasePriceM2 = tc.BasePriceM2 * (1 + c.static.OverridePct)
		bm.Label = "1+"
		bm.Override = true
	}

	return bm, nil
}
