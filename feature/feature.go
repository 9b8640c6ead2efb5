package feature

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Item is one geographic feature returned by a query. Implementations must be immutable value types that survive a
// JSON round-trip, since cached results are persisted as JSON snapshots.
type Item interface {
	// ElementID returns the stable OSM identifier of the item. It drives the deduplication of items appearing in
	// multiple adjoining tiles.
	ElementID() osm.ElementID

	GetGeometry() orb.Geometry
	GetTags() map[string]string
}

// Road is a routable way, e.g. a street or path.
type Road struct {
	ID       osm.WayID         `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry orb.LineString    `json:"geometry"`
}

func (r Road) ElementID() osm.ElementID {
	return r.ID.ElementID(0)
}

func (r Road) GetGeometry() orb.Geometry {
	return r.Geometry
}

func (r Road) GetTags() map[string]string {
	return r.Tags
}

// Junction is a node where two or more roads meet.
type Junction struct {
	ID       osm.NodeID        `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Position orb.Point         `json:"position"`

	// WayCount is the number of ways this node is part of. Junctions always have a count of at least 2.
	WayCount int `json:"wayCount"`
}

func (j Junction) ElementID() osm.ElementID {
	return j.ID.ElementID(0)
}

func (j Junction) GetGeometry() orb.Geometry {
	return j.Position
}

func (j Junction) GetTags() map[string]string {
	return j.Tags
}

// StructureType distinguishes the two kinds of engineered structures a road can pass through.
type StructureType string

const (
	StructureBridge StructureType = "bridge"
	StructureTunnel StructureType = "tunnel"
)

// Structure is a bridge or tunnel segment of a road.
type Structure struct {
	ID       osm.WayID         `json:"id"`
	Tags     map[string]string `json:"tags,omitempty"`
	Geometry orb.LineString    `json:"geometry"`
	Type     StructureType     `json:"structureType"`
}

func (s Structure) ElementID() osm.ElementID {
	return s.ID.ElementID(0)
}

func (s Structure) GetGeometry() orb.Geometry {
	return s.Geometry
}

func (s Structure) GetTags() map[string]string {
	return s.Tags
}
