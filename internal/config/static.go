package config

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// StaticConfig is the immutable region registry loaded once at startup and
// passed explicitly into the components that need it. Never ambient state.
type StaticConfig struct {
	Regions      []RegionConfig     `yaml:"regions"`
	Tiers        map[int]TierConfig `yaml:"tiers"`
	UltraPremium []string           `yaml:"ultra_premium"`
	OverridePct  float64            `yaml:"override_pct"`
	Catalysts    []Catalyst         `yaml:"catalysts"`
}

// RegionConfig defines one scorable region.
type RegionConfig struct {
	ID       string           `yaml:"id"`
	Name     string           `yaml:"name"`
	Tier     int              `yaml:"tier"`
	Centroid model.Point      `yaml:"centroid"`
	BBox     model.BBox       `yaml:"bbox"`
	AreaKm2  float64          `yaml:"area_km2"`
	Pattern  []PatternFeature `yaml:"pattern,omitempty"`
}

// PatternFeature describes one synthetic feature of a region's static
// infrastructure pattern, used when both live fetch and cache fail.
type PatternFeature struct {
	Category   model.FeatureCategory `yaml:"category"`
	Subtype    string                `yaml:"subtype"`
	DistanceKm float64               `yaml:"distance_km"`
	Count      int                   `yaml:"count,omitempty"`
}

// TierConfig is the static per-tier market baseline.
type TierConfig struct {
	BasePriceM2   float64 `yaml:"base_price_m2"`
	ToleranceBand float64 `yaml:"tolerance_band"`
	Description   string  `yaml:"description,omitempty"`
}

// Catalyst is a recent infrastructure event that lifts expected prices for
// regions within its radius.
type Catalyst struct {
	Name     string      `yaml:"name"`
	Type     string      `yaml:"type"`
	Location model.Point `yaml:"location"`
	RadiusKm float64     `yaml:"radius_km"`
	Opened   time.Time   `yaml:"opened"`
}

// LoadStatic reads the region registry from a YAML file, falling back to
// the built-in defaults when the file does not exist.
func LoadStatic(path string) (*StaticConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultStatic(), nil
		}
		return nil, eris.Wrapf(err, "config: read regions file %s", path)
	}

	var sc StaticConfig
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, eris.Wrap(err, "config: parse regions file")
	}

	if sc.OverridePct == 0 {
		sc.OverridePct = DefaultStatic().OverridePct
	}
	if len(sc.Tiers) == 0 {
		sc.Tiers = DefaultStatic().Tiers
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks internal consistency of the registry.
func (s *StaticConfig) Validate() error {
	for tier := 1; tier <= 4; tier++ {
		tc, ok := s.Tiers[tier]
		if !ok {
			return eris.Errorf("config: missing benchmark for tier %d", tier)
		}
		if tc.BasePriceM2 <= 0 {
			return eris.Errorf("config: tier %d base price must be > 0", tier)
		}
		if tc.ToleranceBand <= 0 || tc.ToleranceBand >= 1 {
			return eris.Errorf("config: tier %d tolerance band must be in (0,1)", tier)
		}
	}
	seen := make(map[string]bool, len(s.Regions))
	for _, r := range s.Regions {
		if r.ID == "" {
			return eris.New("config: region with empty id")
		}
		if seen[r.ID] {
			return eris.Errorf("config: duplicate region id %s", r.ID)
		}
		seen[r.ID] = true
		if _, ok := s.Tiers[r.Tier]; !ok {
			return eris.Errorf("config: region %s references unknown tier %d", r.ID, r.Tier)
		}
	}
	return nil
}

// Region looks up a region by identifier.
func (s *StaticConfig) Region(id string) (RegionConfig, bool) {
	for _, r := range s.Regions {
		if r.ID == id {
			return r, true
		}
	}
	return RegionConfig{}, false
}

// IsUltraPremium reports whether a region is on the tier-1+ allow-list.
func (s *StaticConfig) IsUltraPremium(id string) bool {
	for _, u := range s.UltraPremium {
		if u == id {
			return true
		}
	}
	return false
}

// DefaultStatic returns the built-in Indonesian region registry.
func DefaultStatic() *StaticConfig {
	return &StaticConfig{
		Tiers: map[int]TierConfig{
			1: {BasePriceM2: 8_000_000, ToleranceBand: 0.15, Description: "metro core / prime resort"},
			2: {BasePriceM2: 5_000_000, ToleranceBand: 0.20, Description: "established secondary market"},
			3: {BasePriceM2: 3_000_000, ToleranceBand: 0.25, Description: "emerging corridor"},
			4: {BasePriceM2: 1_500_000, ToleranceBand: 0.30, Description: "frontier"},
		},
		UltraPremium: []string{"canggu", "seminyak", "uluwatu"},
		OverridePct:  0.1875,
		Catalysts: []Catalyst{
			{
				Name:     "Yogyakarta International Airport",
				Type:     "airport",
				Location: model.Point{Lat: -7.9054, Lng: 110.0572},
				RadiusKm: 30,
				Opened:   time.Date(2019, 5, 6, 0, 0, 0, 0, time.UTC),
			},
			{
				Name:     "Dhoho Kediri Airport",
				Type:     "airport",
				Location: model.Point{Lat: -7.7477, Lng: 111.9893},
				RadiusKm: 25,
				Opened:   time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC),
			},
		},
		Regions: []RegionConfig{
			{
				ID: "canggu", Name: "Canggu", Tier: 1,
				Centroid: model.Point{Lat: -8.6478, Lng: 115.1385},
				BBox:     model.BBox{MinLat: -8.68, MinLng: 115.11, MaxLat: -8.61, MaxLng: 115.17},
				AreaKm2:  28,
				Pattern: []PatternFeature{
					{Category: model.CategoryRoad, Subtype: "primary", DistanceKm: 2, Count: 3},
					{Category: model.CategoryRoad, Subtype: "secondary", DistanceKm: 1, Count: 6},
					{Category: model.CategoryAviation, Subtype: "international_airport", DistanceKm: 18},
				},
			},
			{
				ID: "seminyak", Name: "Seminyak", Tier: 1,
				Centroid: model.Point{Lat: -8.6913, Lng: 115.1571},
				BBox:     model.BBox{MinLat: -8.71, MinLng: 115.14, MaxLat: -8.67, MaxLng: 115.18},
				AreaKm2:  12,
				Pattern: []PatternFeature{
					{Category: model.CategoryRoad, Subtype: "primary", DistanceKm: 1, Count: 4},
					{Category: model.CategoryAviation, Subtype: "international_airport", DistanceKm: 12},
				},
			},
			{
				ID: "uluwatu", Name: "Uluwatu", Tier: 1,
				Centroid: model.Point{Lat: -8.8291, Lng: 115.0849},
				BBox:     model.BBox{MinLat: -8.85, MinLng: 115.06, MaxLat: -8.80, MaxLng: 115.12},
				AreaKm2:  20,
			},
			{
				ID: "ubud", Name: "Ubud", Tier: 2,
				Centroid: model.Point{Lat: -8.5069, Lng: 115.2625},
				BBox:     model.BBox{MinLat: -8.54, MinLng: 115.23, MaxLat: -8.48, MaxLng: 115.30},
				AreaKm2:  42,
				Pattern: []PatternFeature{
					{Category: model.CategoryRoad, Subtype: "secondary", DistanceKm: 2, Count: 4},
				},
			},
			{
				ID: "sanur", Name: "Sanur", Tier: 2,
				Centroid: model.Point{Lat: -8.6878, Lng: 115.2623},
				BBox:     model.BBox{MinLat: -8.71, MinLng: 115.24, MaxLat: -8.66, MaxLng: 115.28},
				AreaKm2:  15,
			},
			{
				ID: "sleman", Name: "Sleman (Yogyakarta)", Tier: 2,
				Centroid: model.Point{Lat: -7.7326, Lng: 110.3558},
				BBox:     model.BBox{MinLat: -7.80, MinLng: 110.28, MaxLat: -7.66, MaxLng: 110.44},
				AreaKm2:  575,
			},
			{
				ID: "kulon_progo", Name: "Kulon Progo", Tier: 3,
				Centroid: model.Point{Lat: -7.8554, Lng: 110.1642},
				BBox:     model.BBox{MinLat: -7.96, MinLng: 110.02, MaxLat: -7.75, MaxLng: 110.31},
				AreaKm2:  586,
				Pattern: []PatternFeature{
					{Category: model.CategoryRoad, Subtype: "primary", DistanceKm: 5, Count: 2},
					{Category: model.CategoryAviation, Subtype: "international_airport", DistanceKm: 10},
				},
			},
			{
				ID: "lombok_kuta", Name: "Kuta Lombok", Tier: 3,
				Centroid: model.Point{Lat: -8.8928, Lng: 116.2816},
				BBox:     model.BBox{MinLat: -8.93, MinLng: 116.24, MaxLat: -8.86, MaxLng: 116.33},
				AreaKm2:  35,
			},
			{
				ID: "sumba_west", Name: "West Sumba", Tier: 4,
				Centroid: model.Point{Lat: -9.5623, Lng: 119.0894},
				BBox:     model.BBox{MinLat: -9.70, MinLng: 118.95, MaxLat: -9.43, MaxLng: 119.25},
				AreaKm2:  740,
			},
		},
	}
}
