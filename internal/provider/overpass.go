// Package provider implements the live-fetch tiers of the data cascades:
// OSM features via Overpass, market prices and spectral snapshots via HTTP.
package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	overpass "github.com/serjvanilla/go-overpass"
	"go.uber.org/zap"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/config"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/geo"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/resilience"
	"github.com/MIFUNEKINSKi/cloudclearing/internal/waterfall"
)

// overpassClient is the slice of the Overpass client the provider needs.
// The real client is an HTTP wrapper; tests substitute a fake.
type overpassClient interface {
	Query(query string) (overpass.Result, error)
}

// OverpassProvider is the live feature source. It queries road, rail,
// aviation, port, construction and planning features inside the region's
// bounding box and maps OSM tags onto feature categories.
type OverpassProvider struct {
	client overpassClient
	static *config.StaticConfig
	retry  resilience.RetryConfig
}

// NewOverpassProvider creates the live Overpass feature provider. client
// is typically a *overpass.Client from NewWithSettings.
func NewOverpassProvider(client overpassClient, static *config.StaticConfig, cfg config.OverpassConfig) *OverpassProvider {
	retry := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	retry.OnRetry = resilience.RetryLogger("overpass", "features")
	return &OverpassProvider{client: client, static: static, retry: retry}
}

func (p *OverpassProvider) Name() string         { return "overpass" }
func (p *OverpassProvider) Kind() waterfall.Kind { return waterfall.KindLive }

// Fetch queries Overpass for the region's bounding box with retries and
// converts the result into infrastructure features.
func (p *OverpassProvider) Fetch(ctx context.Context, regionID string) ([]model.InfrastructureFeature, float64, error) {
	region, ok := p.static.Region(regionID)
	if !ok {
		return nil, 0, eris.Errorf("overpass: unknown region %s", regionID)
	}

	query := featureQuery(region.BBox)
	result, err := resilience.DoVal(ctx, p.retry, func(ctx context.Context) (overpass.Result, error) {
		return p.client.Query(query)
	})
	if err != nil {
		return nil, 0, eris.Wrapf(err, "overpass: query region %s", regionID)
	}

	features := convertResult(&result)
	zap.L().Debug("overpass: fetched features",
		zap.String("region", regionID),
		zap.Int("count", len(features)),
	)
	return features, waterfall.Ceiling(waterfall.KindLive), nil
}

// featureQuery builds the Overpass QL query for one bounding box.
func featureQuery(bbox model.BBox) string {
	b := geo.OverpassBBox(bbox)
	var sb strings.Builder
	sb.WriteString("[out:json];(")
	for _, clause := range []string{
		`way["highway"~"motorway|trunk|primary|secondary|tertiary"]`,
		`node["railway"~"station|halt"]`,
		`way["railway"="rail"]`,
		`way["aeroway"="aerodrome"]`,
		`node["aeroway"="aerodrome"]`,
		`way["aeroway"="airstrip"]`,
		`node["amenity"="ferry_terminal"]`,
		`way["leisure"="marina"]`,
		`way["industrial"="port"]`,
		`way["highway"="construction"]`,
		`way["landuse"="construction"]`,
		`way["highway"="proposed"]`,
		`way["railway"="proposed"]`,
	} {
		sb.WriteString(clause)
		sb.WriteString("(" + b + ");")
	}
	// The ">;" recursion is required: without it the ways' member nodes are
	// never emitted and their coordinates stay zero.
	sb.WriteString(");out body;>;out skel qt;")
	return sb.String()
}

// convertResult maps Overpass nodes and ways onto features. Ways use the
// vertex mean of their member nodes (resolved by the query's recursion)
// as their representative point.
func convertResult(result *overpass.Result) []model.InfrastructureFeature {
	var features []model.InfrastructureFeature

	for _, node := range result.Nodes {
		cat, subtype, ok := classifyTags(node.Tags)
		if !ok {
			continue
		}
		features = append(features, model.InfrastructureFeature{
			ID:       node.ID,
			Category: cat,
			Subtype:  subtype,
			Name:     node.Tags["name"],
			Location: model.Point{Lat: node.Lat, Lng: node.Lon},
		})
	}

	for _, way := range result.Ways {
		cat, subtype, ok := classifyTags(way.Tags)
		if !ok {
			continue
		}
		var lat, lng float64
		if n := len(way.Nodes); n > 0 {
			for _, node := range way.Nodes {
				lat += node.Lat
				lng += node.Lon
			}
			lat /= float64(n)
			lng /= float64(n)
		}
		features = append(features, model.InfrastructureFeature{
			ID:       way.ID,
			Category: cat,
			Subtype:  subtype,
			Name:     way.Tags["name"],
			Location: model.Point{Lat: lat, Lng: lng},
		})
	}

	return features
}

// majorConstruction marks construction of high-impact road classes.
var majorConstruction = map[string]bool{
	"motorway": true,
	"trunk":    true,
	"primary":  true,
}

// roadSubtypes are the highway classes that score as roads.
var roadSubtypes = map[string]bool{
	"motorway":  true,
	"trunk":     true,
	"primary":   true,
	"secondary": true,
	"tertiary":  true,
}

// classifyTags maps an OSM tag set onto a feature category and subtype.
// Untagged or irrelevant elements (way geometry nodes, mostly) are skipped.
func classifyTags(tags map[string]string) (model.FeatureCategory, string, bool) {
	if hw := tags["highway"]; hw != "" {
		switch {
		case roadSubtypes[hw]:
			return model.CategoryRoad, hw, true
		case hw == "construction":
			if majorConstruction[tags["construction"]] {
				return model.CategoryConstruction, "major", true
			}
			return model.CategoryConstruction, "minor", true
		case hw == "proposed":
			return model.CategoryPlanning, planningSubtype(tags), true
		}
	}

	switch tags["railway"] {
	case "station":
		return model.CategoryRailway, "station", true
	case "halt":
		return model.CategoryRailway, "halt", true
	case "rail":
		return model.CategoryRailway, "line", true
	case "proposed":
		return model.CategoryPlanning, planningSubtype(tags), true
	}

	switch tags["aeroway"] {
	case "aerodrome":
		if tags["aerodrome:type"] == "international" ||
			strings.Contains(strings.ToLower(tags["name"]), "international") {
			return model.CategoryAviation, "international_airport", true
		}
		return model.CategoryAviation, "domestic_airport", true
	case "airstrip":
		return model.CategoryAviation, "airstrip", true
	}

	if tags["amenity"] == "ferry_terminal" {
		return model.CategoryPort, "ferry_terminal", true
	}
	if tags["leisure"] == "marina" {
		return model.CategoryPort, "marina", true
	}
	if tags["industrial"] == "port" {
		return model.CategoryPort, "international_port", true
	}
	if tags["landuse"] == "construction" {
		return model.CategoryConstruction, "minor", true
	}

	return "", "", false
}

func planningSubtype(tags map[string]string) string {
	if tags["status"] == "approved" {
		return "approved"
	}
	return "proposed"
}
