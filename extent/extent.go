package extent

import (
	"fmt"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"math"
)

// Extent is a rectangular geographic region bounded by min/max longitude and latitude. All containment checks are
// inclusive, i.e. a point on the border belongs to the extent. This matters for the superset reasoning of the cache:
// an extent must contain itself.
type Extent struct {
	MinLon float64 `json:"minLon"`
	MinLat float64 `json:"minLat"`
	MaxLon float64 `json:"maxLon"`
	MaxLat float64 `json:"maxLat"`
}

func New(minLon float64, minLat float64, maxLon float64, maxLat float64) Extent {
	return Extent{
		MinLon: minLon,
		MinLat: minLat,
		MaxLon: maxLon,
		MaxLat: maxLat,
	}
}

func FromBound(bound orb.Bound) Extent {
	return New(bound.Min.Lon(), bound.Min.Lat(), bound.Max.Lon(), bound.Max.Lat())
}

func (e Extent) ToBound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{e.MinLon, e.MinLat},
		Max: orb.Point{e.MaxLon, e.MaxLat},
	}
}

func (e Extent) ContainsPoint(point orb.Point) bool {
	return point.Lon() >= e.MinLon && point.Lon() <= e.MaxLon &&
		point.Lat() >= e.MinLat && point.Lat() <= e.MaxLat
}

// Contains returns true when the other extent lies completely within this extent. Shared borders count as contained.
func (e Extent) Contains(other Extent) bool {
	return other.MinLon >= e.MinLon && other.MaxLon <= e.MaxLon &&
		other.MinLat >= e.MinLat && other.MaxLat <= e.MaxLat
}

// Intersects returns true when the given bound overlaps this extent in any way, shared edges included.
func (e Extent) Intersects(bound orb.Bound) bool {
	return bound.Min.Lon() <= e.MaxLon && bound.Max.Lon() >= e.MinLon &&
		bound.Min.Lat() <= e.MaxLat && bound.Max.Lat() >= e.MinLat
}

// WidthMeters returns the approximate east-west size of the extent, measured along its mid-latitude.
func (e Extent) WidthMeters() float64 {
	midLat := (e.MinLat + e.MaxLat) / 2
	return geo.Distance(orb.Point{e.MinLon, midLat}, orb.Point{e.MaxLon, midLat})
}

// HeightMeters returns the approximate north-south size of the extent.
func (e Extent) HeightMeters() float64 {
	midLon := (e.MinLon + e.MaxLon) / 2
	return geo.Distance(orb.Point{midLon, e.MinLat}, orb.Point{midLon, e.MaxLat})
}

// SplitIntoTiles divides the extent into a row-major grid of child extents of approximately tileSizeMeters per side.
// The grid steps from the min corner, so repeated requests with the same boundaries produce the same tiles and
// therefore the same cache keys. The trailing row and column may be smaller. An extent that fits into a single tile
// is returned as a one-element list. The children exactly cover the extent and only overlap on shared edges.
func (e Extent) SplitIntoTiles(tileSizeMeters float64) []Extent {
	width := e.WidthMeters()
	height := e.HeightMeters()

	if width <= tileSizeMeters && height <= tileSizeMeters {
		return []Extent{e}
	}

	cols := int(math.Ceil(width / tileSizeMeters))
	rows := int(math.Ceil(height / tileSizeMeters))
	if cols < 1 {
		cols = 1
	}
	if rows < 1 {
		rows = 1
	}

	lonStep := e.MaxLon - e.MinLon
	if width > 0 {
		lonStep = (e.MaxLon - e.MinLon) * tileSizeMeters / width
	}
	latStep := e.MaxLat - e.MinLat
	if height > 0 {
		latStep = (e.MaxLat - e.MinLat) * tileSizeMeters / height
	}

	tiles := make([]Extent, 0, rows*cols)
	for row := 0; row < rows; row++ {
		// Each border is derived from a single expression, so adjoining tiles end up with bit-identical border
		// values and therefore identical cache keys for shared edges.
		minLat := e.MinLat + float64(row)*latStep
		maxLat := e.MinLat + float64(row+1)*latStep
		if row == rows-1 {
			maxLat = e.MaxLat
		}

		for col := 0; col < cols; col++ {
			minLon := e.MinLon + float64(col)*lonStep
			maxLon := e.MinLon + float64(col+1)*lonStep
			if col == cols-1 {
				maxLon = e.MaxLon
			}

			tiles = append(tiles, New(minLon, minLat, maxLon, maxLat))
		}
	}

	return tiles
}

func (e Extent) String() string {
	return fmt.Sprintf("(%.5f,%.5f,%.5f,%.5f)", e.MinLon, e.MinLat, e.MaxLon, e.MaxLat)
}
