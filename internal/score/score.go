// Package score composes the final investment score and recommendation.
package score

import (
	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// Composer turns the component outputs into a final score.
type Composer struct {
	cfg config.ScoreConfig
}

// NewComposer creates a score composer with the given thresholds.
func NewComposer(cfg config.ScoreConfig) *Composer {
	return &Composer{cfg: cfg}
}

// Compose multiplies the base score by the three multipliers and clamps to
// [0, 100]. For fixed multipliers the result is non-decreasing in the base
// score.
func (c *Composer) Compose(baseScore, infraMult, marketMult, confMult float64) (float64, model.Recommendation) {
	final := baseScore * infraMult * marketMult * confMult
	if final < 0 {
		final = 0
	}
	if final > 100 {
		final = 100
	}
	return final, c.Recommend(final)
}

// Recommend maps a final score onto the recommendation enum.
func (c *Composer) Recommend(final float64) model.Recommendation {
	switch {
	case final >= c.cfg.BuyThreshold:
		return model.RecommendBuy
	case final >= c.cfg.WatchThreshold:
		return model.RecommendWatch
	default:
		return model.RecommendPass
	}
}
