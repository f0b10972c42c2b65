// Package satellite converts two spectral snapshots of a region into a
// development-activity base score.
package satellite

import (
	"math"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// BandCell holds per-band surface reflectance for one unit area.
type BandCell struct {
	Blue float64 `json:"blue"`
	Red  float64 `json:"red"`
	NIR  float64 `json:"nir"`
	SWIR float64 `json:"swir"`
}

// Indices computes the three spectral indices for a cell.
// NDVI = (NIR−Red)/(NIR+Red), NDBI = (SWIR−NIR)/(SWIR+NIR),
// BSI = ((SWIR+Red)−(NIR+Blue))/((SWIR+Red)+(NIR+Blue)).
func Indices(b BandCell) model.SpectralCell {
	return model.SpectralCell{
		Vegetation: safeRatio(b.NIR-b.Red, b.NIR+b.Red),
		BuiltUp:    safeRatio(b.SWIR-b.NIR, b.SWIR+b.NIR),
		BareSoil:   safeRatio((b.SWIR+b.Red)-(b.NIR+b.Blue), (b.SWIR+b.Red)+(b.NIR+b.Blue)),
	}
}

// safeRatio returns NaN for a zero denominator so degenerate input is
// detected downstream instead of silently scoring as zero change.
func safeRatio(num, den float64) float64 {
	if den == 0 {
		return math.NaN()
	}
	return num / den
}
