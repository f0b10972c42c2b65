package geo

import (
	"fmt"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// Boundary is a named region polygon imported from a shapefile.
type Boundary struct {
	Name     string
	Polygon  *geom.Polygon
	BBox     model.BBox
	Centroid model.Point
}

// LoadShapefile reads region boundary polygons from a shapefile. The name is
// taken from the attribute column named nameField (case-insensitive); if the
// column is missing the record index is used.
func LoadShapefile(path, nameField string) ([]Boundary, error) {
	r, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer r.Close()

	nameIdx := -1
	for i, f := range r.Fields() {
		if strings.EqualFold(strings.TrimRight(string(f.Name[:]), "\x00"), nameField) {
			nameIdx = i
			break
		}
	}

	var boundaries []Boundary
	row := 0
	for r.Next() {
		_, shape := r.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok {
			row++
			continue
		}

		coords := make([]geom.Coord, 0, len(poly.Points)+1)
		for _, p := range poly.Points {
			coords = append(coords, geom.Coord{p.X, p.Y})
		}
		if len(coords) < 3 {
			row++
			continue
		}
		// Shapefile rings are implicitly closed; go-geom wants it explicit.
		if coords[0][0] != coords[len(coords)-1][0] || coords[0][1] != coords[len(coords)-1][1] {
			coords = append(coords, coords[0])
		}

		g := geom.NewPolygon(geom.XY)
		if _, err := g.SetCoords([][]geom.Coord{coords}); err != nil {
			return nil, eris.Wrapf(err, "geo: polygon coords row %d", row)
		}

		name := ""
		if nameIdx >= 0 {
			name = strings.TrimSpace(r.ReadAttribute(row, nameIdx))
		}
		if name == "" {
			name = fmt.Sprintf("region_%d", row)
		}

		bounds := g.Bounds()
		bbox := model.BBox{
			MinLng: bounds.Min(0), MinLat: bounds.Min(1),
			MaxLng: bounds.Max(0), MaxLat: bounds.Max(1),
		}

		boundaries = append(boundaries, Boundary{
			Name:     name,
			Polygon:  g,
			BBox:     bbox,
			Centroid: polygonCentroid(coords),
		})
		row++
	}

	if err := r.Err(); err != nil {
		return nil, eris.Wrap(err, "geo: read shapefile")
	}
	return boundaries, nil
}

// polygonCentroid computes the area-weighted centroid of a closed ring
// using the shoelace formula. Falls back to the vertex mean for degenerate
// (zero-area) rings.
func polygonCentroid(ring []geom.Coord) model.Point {
	var area, cx, cy float64
	for i := 0; i < len(ring)-1; i++ {
		cross := ring[i][0]*ring[i+1][1] - ring[i+1][0]*ring[i][1]
		area += cross
		cx += (ring[i][0] + ring[i+1][0]) * cross
		cy += (ring[i][1] + ring[i+1][1]) * cross
	}
	area /= 2
	if area == 0 {
		var sx, sy float64
		for _, c := range ring {
			sx += c[0]
			sy += c[1]
		}
		n := float64(len(ring))
		return model.Point{Lng: sx / n, Lat: sy / n}
	}
	return model.Point{Lng: cx / (6 * area), Lat: cy / (6 * area)}
}
