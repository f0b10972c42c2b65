// Package infra scores a region's infrastructure access with exponential
// distance decay and per-category point caps.
package infra

import "github.com/MIFUNEKINSKi/cloudclearing/internal/model"

// CategoryParams defines the scoring envelope for one feature category.
type CategoryParams struct {
	MaxPoints       float64
	MaxDistanceKm   float64
	HalfLifeKm      float64
	PerFeatureScale float64
}

// categoryParams holds the point allocations. Roads dominate because road
// access drives land value in every tier; planning signals barely move it.
var categoryParams = map[model.FeatureCategory]CategoryParams{
	model.CategoryRoad:         {MaxPoints: 35, MaxDistanceKm: 50, HalfLifeKm: 15, PerFeatureScale: 0.5},
	model.CategoryRailway:      {MaxPoints: 20, MaxDistanceKm: 40, HalfLifeKm: 12, PerFeatureScale: 0.5},
	model.CategoryAviation:     {MaxPoints: 20, MaxDistanceKm: 100, HalfLifeKm: 25, PerFeatureScale: 0.4},
	model.CategoryPort:         {MaxPoints: 15, MaxDistanceKm: 80, HalfLifeKm: 20, PerFeatureScale: 0.4},
	model.CategoryConstruction: {MaxPoints: 10, MaxDistanceKm: 25, HalfLifeKm: 8, PerFeatureScale: 0.5},
	model.CategoryPlanning:     {MaxPoints: 5, MaxDistanceKm: 25, HalfLifeKm: 10, PerFeatureScale: 0.3},
}

// Params returns the scoring envelope for a category.
func Params(cat model.FeatureCategory) (CategoryParams, bool) {
	p, ok := categoryParams[cat]
	return p, ok
}

// subtypeWeights maps a feature subtype to its importance weight within
// its category. Unknown subtypes get a conservative default.
var subtypeWeights = map[model.FeatureCategory]map[string]float64{
	model.CategoryRoad: {
		"motorway":  100,
		"trunk":     80,
		"primary":   60,
		"secondary": 40,
		"tertiary":  25,
	},
	model.CategoryRailway: {
		"station": 100,
		"halt":    60,
		"line":    40,
	},
	model.CategoryAviation: {
		"international_airport": 100,
		"domestic_airport":      70,
		"airstrip":              30,
	},
	model.CategoryPort: {
		"international_port": 100,
		"ferry_terminal":     60,
		"marina":             30,
	},
	model.CategoryConstruction: {
		"major": 100,
		"minor": 50,
	},
	model.CategoryPlanning: {
		"approved": 100,
		"proposed": 50,
	},
}

const defaultSubtypeWeight = 20

// SubtypeWeight returns the importance weight for a feature subtype.
func SubtypeWeight(cat model.FeatureCategory, subtype string) float64 {
	if weights, ok := subtypeWeights[cat]; ok {
		if w, ok := weights[subtype]; ok {
			return w
		}
	}
	return defaultSubtypeWeight
}

// Accessibility tiers on the uncapped road total. Dense road networks earn
// a bonus beyond the road cap; sparse ones earn nothing.
func accessibilityAdjustment(rawRoadTotal float64) float64 {
	switch {
	case rawRoadTotal > 300:
		return 10
	case rawRoadTotal > 200:
		return 7
	case rawRoadTotal > 100:
		return 4
	case rawRoadTotal > 50:
		return 2
	default:
		return 0
	}
}
