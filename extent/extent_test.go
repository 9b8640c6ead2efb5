package extent

import (
	"github.com/paulmach/orb"
	"oqc/util"
	"testing"
)

// tenKmDegrees is roughly 10 km expressed in degrees of latitude (and in degrees of longitude at the equator).
const tenKmDegrees = 0.0898315

func TestContainsPoint_inclusiveBorders(t *testing.T) {
	e := New(9.0, 53.0, 10.0, 54.0)

	util.AssertTrue(t, e.ContainsPoint(orb.Point{9.5, 53.5}))
	util.AssertTrue(t, e.ContainsPoint(orb.Point{9.0, 53.0}))
	util.AssertTrue(t, e.ContainsPoint(orb.Point{10.0, 54.0}))
	util.AssertFalse(t, e.ContainsPoint(orb.Point{10.1, 53.5}))
	util.AssertFalse(t, e.ContainsPoint(orb.Point{9.5, 52.9}))
}

func TestContains_extent(t *testing.T) {
	outer := New(9.0, 53.0, 10.0, 54.0)

	util.AssertTrue(t, outer.Contains(New(9.2, 53.2, 9.8, 53.8)))
	util.AssertTrue(t, outer.Contains(outer))
	util.AssertTrue(t, outer.Contains(New(9.0, 53.0, 9.5, 53.5)))
	util.AssertFalse(t, outer.Contains(New(8.9, 53.2, 9.8, 53.8)))
	util.AssertFalse(t, outer.Contains(New(9.2, 53.2, 9.8, 54.1)))
}

func TestIntersects_sharedEdge(t *testing.T) {
	e := New(9.0, 53.0, 10.0, 54.0)

	util.AssertTrue(t, e.Intersects(New(10.0, 54.0, 11.0, 55.0).ToBound()))
	util.AssertTrue(t, e.Intersects(New(9.5, 53.5, 10.5, 54.5).ToBound()))
	util.AssertFalse(t, e.Intersects(New(10.1, 53.0, 11.0, 54.0).ToBound()))
}

func TestWidthHeightMeters(t *testing.T) {
	e := New(9.0, 0.0, 9.0+tenKmDegrees, tenKmDegrees)

	util.AssertApprox(t, 10000.0, e.WidthMeters(), 20.0)
	util.AssertApprox(t, 10000.0, e.HeightMeters(), 20.0)
}

func TestSplitIntoTiles_singleTileForSmallExtent(t *testing.T) {
	e := New(9.0, 0.0, 9.0+tenKmDegrees/10, tenKmDegrees/10)

	tiles := e.SplitIntoTiles(4096)

	util.AssertEqual(t, 1, len(tiles))
	util.AssertEqual(t, e, tiles[0])
}

func TestSplitIntoTiles_tenKmWithFourKmTiles(t *testing.T) {
	// Arrange: a 10km x 10km extent with 4096m tiles must split into a 3x3 grid with a smaller trailing row and
	// column.
	e := New(9.0, 0.0, 9.0+tenKmDegrees, tenKmDegrees)

	// Act
	tiles := e.SplitIntoTiles(4096)

	// Assert
	util.AssertEqual(t, 9, len(tiles))

	// Row-major order: first tile starts at the min corner, last tile ends at the max corner.
	util.AssertEqual(t, e.MinLon, tiles[0].MinLon)
	util.AssertEqual(t, e.MinLat, tiles[0].MinLat)
	util.AssertEqual(t, e.MaxLon, tiles[8].MaxLon)
	util.AssertEqual(t, e.MaxLat, tiles[8].MaxLat)

	for _, tile := range tiles {
		util.AssertTrue(t, e.Contains(tile))
		util.AssertTrue(t, tile.WidthMeters() <= 4096+1)
		util.AssertTrue(t, tile.HeightMeters() <= 4096+1)
	}

	// The trailing row and column are smaller than the inner tiles.
	util.AssertTrue(t, tiles[2].WidthMeters() < tiles[0].WidthMeters())
	util.AssertTrue(t, tiles[6].HeightMeters() < tiles[0].HeightMeters())
}

func TestSplitIntoTiles_exactCoverageWithoutGaps(t *testing.T) {
	e := New(9.0, 0.0, 9.0+tenKmDegrees, tenKmDegrees)

	tiles := e.SplitIntoTiles(4096)

	// Tiles within a row share their lat range, adjacent columns share their lon border.
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			tile := tiles[row*3+col]
			if col > 0 {
				util.AssertEqual(t, tiles[row*3+col-1].MaxLon, tile.MinLon)
			}
			if row > 0 {
				util.AssertEqual(t, tiles[(row-1)*3+col].MaxLat, tile.MinLat)
			}
		}
	}
}

func TestSplitIntoTiles_identicalTilesForRepeatedRequests(t *testing.T) {
	e := New(9.0, 0.0, 9.0+tenKmDegrees, tenKmDegrees)

	first := e.SplitIntoTiles(4096)
	second := e.SplitIntoTiles(4096)

	util.AssertEqual(t, first, second)
}

func TestFromBound_roundTrip(t *testing.T) {
	e := New(9.0, 53.0, 10.0, 54.0)

	util.AssertEqual(t, e, FromBound(e.ToBound()))
}
