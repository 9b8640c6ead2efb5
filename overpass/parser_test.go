package overpass

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"oqc/extent"
	"oqc/feature"
	"oqc/util"
	"strings"
	"testing"
)

// Two highway ways sharing node 101, so node 101 is a junction.
const sampleResponse = `{
  "elements": [
    {
      "type": "way",
      "id": 1,
      "tags": {"highway": "residential", "name": "Lange Reihe"},
      "nodes": [100, 101],
      "geometry": [{"lat": 53.0, "lon": 9.0}, {"lat": 53.001, "lon": 9.001}]
    },
    {
      "type": "way",
      "id": 2,
      "tags": {"highway": "secondary", "bridge": "yes"},
      "nodes": [101, 102],
      "geometry": [{"lat": 53.001, "lon": 9.001}, {"lat": 53.002, "lon": 9.002}]
    }
  ]
}`

func TestParseRoads(t *testing.T) {
	roads, err := ParseRoads([]byte(sampleResponse))

	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(roads))
	util.AssertEqual(t, osm.WayID(1), roads[0].ID)
	util.AssertEqual(t, "Lange Reihe", roads[0].Tags["name"])
	util.AssertEqual(t, orb.LineString{{9.0, 53.0}, {9.001, 53.001}}, roads[0].Geometry)
	util.AssertEqual(t, osm.WayID(2), roads[1].ID)
}

func TestParseJunctions_sharedNode(t *testing.T) {
	junctions, err := ParseJunctions([]byte(sampleResponse))

	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(junctions))
	util.AssertEqual(t, osm.NodeID(101), junctions[0].ID)
	util.AssertEqual(t, 2, junctions[0].WayCount)
	util.AssertEqual(t, orb.Point{9.001, 53.001}, junctions[0].Position)
}

func TestParseJunctions_closedWayIsNoJunction(t *testing.T) {
	// A roundabout-like closed way repeats its closure node. That node belongs to a single way, so it is no junction.
	response := `{"elements":[{"type":"way","id":1,"nodes":[1,2,3,1],"geometry":[{"lat":1,"lon":1},{"lat":2,"lon":2},{"lat":3,"lon":3},{"lat":1,"lon":1}]}]}`

	junctions, err := ParseJunctions([]byte(response))

	util.AssertNil(t, err)
	util.AssertEqual(t, 0, len(junctions))
}

func TestParseJunctions_closedWayMeetingAnotherWay(t *testing.T) {
	// The closure node is shared with a second way, so it is a junction of exactly two ways.
	response := `{"elements":[
	  {"type":"way","id":1,"nodes":[1,2,3,1],"geometry":[{"lat":1,"lon":1},{"lat":2,"lon":2},{"lat":3,"lon":3},{"lat":1,"lon":1}]},
	  {"type":"way","id":2,"nodes":[1,4],"geometry":[{"lat":1,"lon":1},{"lat":4,"lon":4}]}
	]}`

	junctions, err := ParseJunctions([]byte(response))

	util.AssertNil(t, err)
	util.AssertEqual(t, 1, len(junctions))
	util.AssertEqual(t, osm.NodeID(1), junctions[0].ID)
	util.AssertEqual(t, 2, junctions[0].WayCount)
}

func TestParseJunctions_noSharedNodes(t *testing.T) {
	response := `{"elements":[{"type":"way","id":1,"nodes":[1,2],"geometry":[{"lat":1,"lon":1},{"lat":2,"lon":2}]}]}`

	junctions, err := ParseJunctions([]byte(response))

	util.AssertNil(t, err)
	util.AssertEqual(t, 0, len(junctions))
}

func TestParseStructures(t *testing.T) {
	response := `{
	  "elements": [
	    {"type": "way", "id": 10, "tags": {"highway": "primary", "bridge": "yes"}, "geometry": [{"lat": 53.0, "lon": 9.0}]},
	    {"type": "way", "id": 11, "tags": {"highway": "primary", "tunnel": "yes"}, "geometry": [{"lat": 53.1, "lon": 9.1}]}
	  ]
	}`

	structures, err := ParseStructures([]byte(response))

	util.AssertNil(t, err)
	util.AssertEqual(t, 2, len(structures))
	util.AssertEqual(t, feature.StructureBridge, structures[0].Type)
	util.AssertEqual(t, feature.StructureTunnel, structures[1].Type)
}

func TestParse_invalidJsonFails(t *testing.T) {
	_, err := ParseRoads([]byte(`{"elements": [{`))

	util.AssertNotNil(t, err)
}

func TestParse_ignoresNonWayElements(t *testing.T) {
	response := `{"elements":[{"type":"node","id":5,"lat":53.0,"lon":9.0}]}`

	roads, err := ParseRoads([]byte(response))

	util.AssertNil(t, err)
	util.AssertEqual(t, 0, len(roads))
}

func TestBuildQuery_bboxOrderAndGeometry(t *testing.T) {
	e := extent.New(9.0, 53.0, 10.0, 54.0)

	query := BuildQuery(feature.KindRoads, e)

	// Overpass wants (south, west, north, east).
	util.AssertTrue(t, strings.Contains(query, "(53.000000,9.000000,54.000000,10.000000)"))
	util.AssertTrue(t, strings.Contains(query, "[out:json]"))
	util.AssertTrue(t, strings.Contains(query, `way["highway"]`))
	util.AssertTrue(t, strings.Contains(query, "out geom;"))
}

func TestBuildQuery_structures(t *testing.T) {
	e := extent.New(9.0, 53.0, 10.0, 54.0)

	query := BuildQuery(feature.KindStructures, e)

	util.AssertTrue(t, strings.Contains(query, `["bridge"]`))
	util.AssertTrue(t, strings.Contains(query, `["tunnel"]`))
}
