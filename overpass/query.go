package overpass

import (
	"fmt"
	"oqc/extent"
	"oqc/feature"
)

const queryTimeoutSeconds = 25

// BuildQuery returns the Overpass QL string requesting geometry-inclusive results of the given kind within the given
// extent. Overpass bounding boxes are ordered (south, west, north, east).
func BuildQuery(kind feature.Kind, e extent.Extent) string {
	bbox := fmt.Sprintf("%f,%f,%f,%f", e.MinLat, e.MinLon, e.MaxLat, e.MaxLon)

	switch kind {
	case feature.KindStructures:
		return fmt.Sprintf(
			"[out:json][timeout:%d];(way[\"highway\"][\"bridge\"](%s);way[\"highway\"][\"tunnel\"](%s););out geom;",
			queryTimeoutSeconds, bbox, bbox)
	default:
		// Roads and junctions share the same query: junctions are derived client-side from the node lists of the
		// returned ways, since the query language cannot express "nodes shared by at least two ways".
		return fmt.Sprintf(
			"[out:json][timeout:%d];way[\"highway\"](%s);out geom;",
			queryTimeoutSeconds, bbox)
	}
}
