// Package model defines the core domain types for the land scoring pipeline.
package model

import "time"

// Recommendation is the final call for a region.
type Recommendation string

const (
	RecommendBuy   Recommendation = "BUY"
	RecommendWatch Recommendation = "WATCH"
	RecommendPass  Recommendation = "PASS"
)

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// BBox is a geographic bounding box.
type BBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MinLng float64 `json:"min_lng" yaml:"min_lng"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MaxLng float64 `json:"max_lng" yaml:"max_lng"`
}

// FeatureCategory classifies an infrastructure feature.
type FeatureCategory string

const (
	CategoryRoad         FeatureCategory = "road"
	CategoryRailway      FeatureCategory = "railway"
	CategoryAviation     FeatureCategory = "aviation"
	CategoryPort         FeatureCategory = "port"
	CategoryConstruction FeatureCategory = "construction"
	CategoryPlanning     FeatureCategory = "planning"
)

// AllCategories lists every feature category in scoring order.
var AllCategories = []FeatureCategory{
	CategoryRoad, CategoryRailway, CategoryAviation,
	CategoryPort, CategoryConstruction, CategoryPlanning,
}

// InfrastructureFeature is a geo-tagged feature from an external source.
type InfrastructureFeature struct {
	ID       int64           `json:"id"`
	Category FeatureCategory `json:"category"`
	Subtype  string          `json:"subtype"`
	Name     string          `json:"name,omitempty"`
	Location Point           `json:"location"`
}

// SpectralCell holds the three spectral indices for one unit area.
type SpectralCell struct {
	Vegetation float64 `json:"vegetation"` // NDVI
	BuiltUp    float64 `json:"built_up"`   // NDBI
	BareSoil   float64 `json:"bare_soil"`  // BSI
}

// SpectralSnapshot aggregates per-cell index values for a region over a
// time window. Snapshots are transient and recomputed each run.
type SpectralSnapshot struct {
	RegionID    string         `json:"region_id"`
	WindowStart time.Time      `json:"window_start"`
	WindowEnd   time.Time      `json:"window_end"`
	CellAreaKm2 float64        `json:"cell_area_km2"`
	Cells       []SpectralCell `json:"cells"`
}

// ChangeType classifies a detected land change.
type ChangeType string

const (
	ChangeUrbanDevelopment   ChangeType = "urban_development"
	ChangeVegetationClearing ChangeType = "vegetation_clearing"
	ChangeRoadConstruction   ChangeType = "road_construction"
)

// ChangeSummary is the ChangeClassifier output: base score plus the
// per-type counts and bonuses that produced it.
type ChangeSummary struct {
	UrbanDevelopment   int     `json:"urban_development"`
	VegetationClearing int     `json:"vegetation_clearing"`
	RoadConstruction   int     `json:"road_construction"`
	TotalChanged       int     `json:"total_changed"`
	MagnitudeScore     float64 `json:"magnitude_score"`
	UrbanBonus         float64 `json:"urban_bonus"`
	ClearingBonus      float64 `json:"clearing_bonus"`
	VelocityBonus      float64 `json:"velocity_bonus"`
	Velocity           float64 `json:"velocity"`
	BaseScore          float64 `json:"base_score"`
}

// MomentumFraction maps development activity onto [0,1] for the valuation
// momentum premium. Defined as base score over its 40-point ceiling.
func (c ChangeSummary) MomentumFraction() float64 {
	f := c.BaseScore / 40.0
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// InfraBreakdown is the InfrastructureScorer output. One field per
// category so renames are caught at compile time.
type InfraBreakdown struct {
	Roads            float64 `json:"roads"`
	Railways         float64 `json:"railways"`
	Aviation         float64 `json:"aviation"`
	Ports            float64 `json:"ports"`
	Construction     float64 `json:"construction"`
	Planning         float64 `json:"planning"`
	RawRoadTotal     float64 `json:"raw_road_total"`
	AccessibilityAdj float64 `json:"accessibility_adj"`
	Total            float64 `json:"total"`
}

// CategoryPoints returns the capped points for a category.
func (b InfraBreakdown) CategoryPoints(cat FeatureCategory) float64 {
	switch cat {
	case CategoryRoad:
		return b.Roads
	case CategoryRailway:
		return b.Railways
	case CategoryAviation:
		return b.Aviation
	case CategoryPort:
		return b.Ports
	case CategoryConstruction:
		return b.Construction
	case CategoryPlanning:
		return b.Planning
	}
	return 0
}

// InfraResult couples the infrastructure score with its provenance.
type InfraResult struct {
	Breakdown    InfraBreakdown `json:"breakdown"`
	Score        float64        `json:"score"`
	Multiplier   float64        `json:"multiplier"`
	Source       string         `json:"source"` // live | cache | pattern | default
	Confidence   float64        `json:"confidence"`
	FeatureCount int            `json:"feature_count"`
}

// PricePoint is an actual price-per-m2 observation with provenance.
type PricePoint struct {
	RegionID   string    `json:"region_id"`
	PricePerM2 float64   `json:"price_per_m2"`
	TrendPct   float64   `json:"trend_pct"`
	Source     string    `json:"source"` // live | cache | benchmark
	Confidence float64   `json:"confidence"`
	AsOf       time.Time `json:"as_of,omitempty"`
}

// TierBenchmark holds the static per-tier market baseline.
type TierBenchmark struct {
	Tier          int     `json:"tier"`
	Label         string  `json:"label"` // "1".."4", "1+" when overridden
	BasePriceM2   float64 `json:"base_price_m2"`
	ToleranceBand float64 `json:"tolerance_band"` // fraction, e.g. 0.15
	Description   string  `json:"description,omitempty"`
	Override      bool    `json:"override"`
}

// ValuationBreakdown explains how the expected price and RVI were derived.
type ValuationBreakdown struct {
	TierLabel       string  `json:"tier_label"`
	TierBasePrice   float64 `json:"tier_base_price"`
	OverrideApplied bool    `json:"override_applied"`
	InfraPremium    float64 `json:"infra_premium"`
	MomentumPremium float64 `json:"momentum_premium"`
	CatalystPremium float64 `json:"catalyst_premium"`
	CatalystName    string  `json:"catalyst_name,omitempty"`
	ExpectedPrice   float64 `json:"expected_price"`
	ActualPrice     float64 `json:"actual_price"`
	RVI             float64 `json:"rvi"`
	OutOfBand       bool    `json:"out_of_band"`
}

// MarketResult couples the market multiplier with its inputs.
type MarketResult struct {
	Valuation   *ValuationBreakdown `json:"valuation,omitempty"`
	TrendPct    float64             `json:"trend_pct"`
	Multiplier  float64             `json:"multiplier"`
	TrendOnly   bool                `json:"trend_only"`
	PriceSource string              `json:"price_source"`
	Confidence  float64             `json:"confidence"`
}

// ConfidenceBreakdown explains the overall confidence and its multiplier.
type ConfidenceBreakdown struct {
	Satellite      float64 `json:"satellite"`
	Infrastructure float64 `json:"infrastructure"`
	Market         float64 `json:"market"`
	Weighted       float64 `json:"weighted"`
	PenaltyApplied bool    `json:"penalty_applied"`
	Overall        float64 `json:"overall"`
	Multiplier     float64 `json:"multiplier"`
}

// ScoringResult is the per-region output aggregate. Immutable once built.
type ScoringResult struct {
	RegionID       string              `json:"region_id"`
	RegionName     string              `json:"region_name"`
	Tier           int                 `json:"tier"`
	GeneratedAt    time.Time           `json:"generated_at"`
	Change         ChangeSummary       `json:"change"`
	Infra          InfraResult         `json:"infra"`
	Market         MarketResult        `json:"market"`
	Confidence     ConfidenceBreakdown `json:"confidence"`
	BaseScore      float64             `json:"base_score"`
	FinalScore     float64             `json:"final_score"`
	Recommendation Recommendation      `json:"recommendation"`
}

// SkippedRegion records a region that could not be scored and why.
// Skipped regions are always reported, never silently omitted.
type SkippedRegion struct {
	RegionID string `json:"region_id"`
	Reason   string `json:"reason"`
}
