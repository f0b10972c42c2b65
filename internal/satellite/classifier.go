package satellite

import (
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// ErrDegenerateInput marks spectral input whose index math yields NaN or
// infinity. The affected region is left unscored; the batch continues.
var ErrDegenerateInput = eris.New("satellite: degenerate spectral input")

// baseScoreCap is the ceiling of the development-activity base score.
const baseScoreCap = 40.0

// Bonus thresholds on the change-type mix.
const (
	urbanFractionThreshold    = 0.30
	clearingFractionThreshold = 0.20
	mixBonus                  = 5.0
)

// Classifier derives the base score from two time-windowed snapshots.
// It is a pure function of its inputs; fetching snapshots is the
// caller's concern.
type Classifier struct {
	cfg config.SatelliteConfig
}

// NewClassifier creates a change classifier with the given thresholds.
func NewClassifier(cfg config.SatelliteConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

// Score compares the prior and current snapshots cell by cell, classifies
// changes, and derives the 0-40 base score. historicalAvg is the rolling
// average change count used for the velocity bonus; zero means no history.
func (c *Classifier) Score(prior, current *model.SpectralSnapshot, historicalAvg float64) (model.ChangeSummary, error) {
	var summary model.ChangeSummary

	if prior == nil || current == nil {
		return summary, eris.Wrap(ErrDegenerateInput, "missing snapshot")
	}
	if len(prior.Cells) == 0 || len(prior.Cells) != len(current.Cells) {
		return summary, eris.Wrapf(ErrDegenerateInput,
			"cell grids differ: prior %d, current %d", len(prior.Cells), len(current.Cells))
	}

	for i := range current.Cells {
		dVeg := current.Cells[i].Vegetation - prior.Cells[i].Vegetation
		dBuilt := current.Cells[i].BuiltUp - prior.Cells[i].BuiltUp
		dSoil := current.Cells[i].BareSoil - prior.Cells[i].BareSoil

		if isDegenerate(dVeg) || isDegenerate(dBuilt) || isDegenerate(dSoil) {
			return model.ChangeSummary{}, eris.Wrapf(ErrDegenerateInput, "cell %d", i)
		}

		// Urban development takes precedence over clearing, clearing over
		// road construction, when a cell satisfies more than one rule.
		switch {
		case dVeg < c.cfg.VegetationLossThreshold && dBuilt > c.cfg.BuiltUpGainThreshold:
			summary.UrbanDevelopment++
		case dSoil > c.cfg.BareSoilGainThreshold:
			summary.VegetationClearing++
		case dBuilt > c.cfg.RoadBuiltUpThreshold && dVeg < c.cfg.RoadVegetationThreshold:
			summary.RoadConstruction++
		}
	}

	summary.TotalChanged = summary.UrbanDevelopment + summary.VegetationClearing + summary.RoadConstruction
	summary.MagnitudeScore = magnitudeScore(summary.TotalChanged)

	if summary.TotalChanged > 0 {
		urbanFrac := float64(summary.UrbanDevelopment) / float64(summary.TotalChanged)
		clearFrac := float64(summary.VegetationClearing) / float64(summary.TotalChanged)
		if urbanFrac > urbanFractionThreshold {
			summary.UrbanBonus = mixBonus
		}
		if clearFrac > clearingFractionThreshold {
			summary.ClearingBonus = mixBonus
		}
	}

	if historicalAvg > 0 {
		summary.Velocity = float64(summary.TotalChanged) / historicalAvg
		if summary.Velocity > c.cfg.VelocityBonusRatio {
			summary.VelocityBonus = mixBonus
		}
	}

	summary.BaseScore = summary.MagnitudeScore + summary.UrbanBonus + summary.ClearingBonus + summary.VelocityBonus
	if summary.BaseScore > baseScoreCap {
		summary.BaseScore = baseScoreCap
	}

	zap.L().Debug("satellite: classified changes",
		zap.String("region", current.RegionID),
		zap.Int("urban", summary.UrbanDevelopment),
		zap.Int("clearing", summary.VegetationClearing),
		zap.Int("roads", summary.RoadConstruction),
		zap.Float64("base_score", summary.BaseScore),
	)

	return summary, nil
}

// magnitudeScore maps the affected-unit count onto the raw 0-40 scale via
// fixed breakpoints.
func magnitudeScore(changed int) float64 {
	switch {
	case changed == 0:
		return 0
	case changed > 50_000:
		return 40
	case changed > 20_000:
		return 35
	case changed > 10_000:
		return 30
	case changed > 5_000:
		return 25
	case changed > 2_500:
		return 20
	case changed > 1_000:
		return 15
	default:
		return 10
	}
}

func isDegenerate(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
