package infra

import (
	"math"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// Composer multiplier bounds. A score of 50 is neutral.
const (
	multiplierMin  = 0.75
	multiplierMax  = 1.25
	multiplierSpan = 0.5
)

// Score computes the 0-100 infrastructure score for a target point from a
// feature set. Scoring is deterministic: same features, same score.
//
// Each feature contributes weight x exp(-distance/halfLife) x scale points
// to its category. Category sums are capped after summation, so one more
// nearby motorway never pushes roads past their allocation. The uncapped
// road total additionally feeds the accessibility adjustment.
func Score(features []model.InfrastructureFeature, target model.Point) model.InfraBreakdown {
	raw := make(map[model.FeatureCategory]float64, len(categoryParams))

	for _, f := range features {
		params, ok := categoryParams[f.Category]
		if !ok {
			continue
		}
		dist := geo.HaversineKm(target, f.Location)
		if dist > params.MaxDistanceKm {
			continue
		}
		w := SubtypeWeight(f.Category, f.Subtype)
		raw[f.Category] += w * math.Exp(-dist/params.HalfLifeKm) * params.PerFeatureScale
	}

	var b model.InfraBreakdown
	b.RawRoadTotal = raw[model.CategoryRoad]
	b.Roads = capPoints(raw[model.CategoryRoad], model.CategoryRoad)
	b.Railways = capPoints(raw[model.CategoryRailway], model.CategoryRailway)
	b.Aviation = capPoints(raw[model.CategoryAviation], model.CategoryAviation)
	b.Ports = capPoints(raw[model.CategoryPort], model.CategoryPort)
	b.Construction = capPoints(raw[model.CategoryConstruction], model.CategoryConstruction)
	b.Planning = capPoints(raw[model.CategoryPlanning], model.CategoryPlanning)
	b.AccessibilityAdj = accessibilityAdjustment(b.RawRoadTotal)

	total := b.Roads + b.Railways + b.Aviation + b.Ports +
		b.Construction + b.Planning + b.AccessibilityAdj
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	b.Total = total

	return b
}

func capPoints(raw float64, cat model.FeatureCategory) float64 {
	max := categoryParams[cat].MaxPoints
	if raw > max {
		return max
	}
	return raw
}

// Multiplier maps the 0-100 infrastructure score onto a score multiplier
// centred at 1.0 for a score of 50, clamped to [0.75, 1.25].
func Multiplier(score float64) float64 {
	m := 1 + ((score-50)/100)*multiplierSpan
	if m < multiplierMin {
		return multiplierMin
	}
	if m > multiplierMax {
		return multiplierMax
	}
	return m
}
