// Package geo provides the spatial primitives used by the scoring pipeline.
package geo

import (
	"math"
	"strconv"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

const earthRadiusKm = 6371.0

// kmPerDegreeLat is the approximate north-south span of one degree of latitude.
const kmPerDegreeLat = 110.574

// HaversineKm returns the great-circle distance in kilometers between two points.
func HaversineKm(a, b model.Point) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// DestinationNorth returns a point the given number of kilometers due north
// of the origin. Used to synthesize features at a known distance.
func DestinationNorth(origin model.Point, km float64) model.Point {
	return model.Point{Lat: origin.Lat + km/kmPerDegreeLat, Lng: origin.Lng}
}

// Contains reports whether the point lies inside the bounding box.
func Contains(b model.BBox, p model.Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// Center returns the midpoint of a bounding box.
func Center(b model.BBox) model.Point {
	return model.Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lng: (b.MinLng + b.MaxLng) / 2,
	}
}

// OverpassBBox formats a bounding box in Overpass QL order (south,west,north,east).
func OverpassBBox(b model.BBox) string {
	// Six decimal places is ~0.1m precision, plenty for bbox queries.
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	return f(b.MinLat) + "," + f(b.MinLng) + "," + f(b.MaxLat) + "," + f(b.MaxLng)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
