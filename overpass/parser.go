package overpass

import (
	"encoding/json"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/pkg/errors"
	"oqc/feature"
)

// The wire format is a JSON object with an "elements" array of tagged records, ways optionally carrying their node
// IDs and an ordered list of {lat, lon} geometry points.
type overpassResponse struct {
	Elements []overpassElement `json:"elements"`
}

type overpassElement struct {
	Type     string            `json:"type"`
	ID       int64             `json:"id"`
	Lat      float64           `json:"lat"`
	Lon      float64           `json:"lon"`
	Tags     map[string]string `json:"tags"`
	Nodes    []int64           `json:"nodes"`
	Geometry []overpassPoint   `json:"geometry"`
}

type overpassPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func decode(raw []byte) (*overpassResponse, error) {
	var response overpassResponse
	err := json.Unmarshal(raw, &response)
	if err != nil {
		// Parsing is never retried: the endpoints already delivered this payload successfully, a retry would just
		// reproduce it.
		return nil, errors.Wrap(err, "Unable to parse query service response")
	}
	return &response, nil
}

func (element overpassElement) lineString() orb.LineString {
	line := make(orb.LineString, 0, len(element.Geometry))
	for _, point := range element.Geometry {
		line = append(line, orb.Point{point.Lon, point.Lat})
	}
	return line
}

// ParseRoads maps a raw response onto road items, one per returned way.
func ParseRoads(raw []byte) ([]feature.Road, error) {
	response, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var roads []feature.Road
	for _, element := range response.Elements {
		if element.Type != "way" {
			continue
		}
		roads = append(roads, feature.Road{
			ID:       osm.WayID(element.ID),
			Tags:     element.Tags,
			Geometry: element.lineString(),
		})
	}
	return roads, nil
}

// ParseJunctions derives junction nodes from the ways of a raw response: every node that is part of at least two
// ways is a junction. Its position is taken from the way geometry at the node's index.
func ParseJunctions(raw []byte) ([]feature.Junction, error) {
	response, err := decode(raw)
	if err != nil {
		return nil, err
	}

	wayCounts := map[int64]int{}
	positions := map[int64]orb.Point{}

	for _, element := range response.Elements {
		if element.Type != "way" || len(element.Nodes) != len(element.Geometry) {
			continue
		}
		// Count distinct ways per node. A closed way (e.g. a roundabout) repeats its closure node, that repetition
		// must not count as a second way.
		seenInWay := map[int64]struct{}{}
		for i, nodeId := range element.Nodes {
			positions[nodeId] = orb.Point{element.Geometry[i].Lon, element.Geometry[i].Lat}
			if _, ok := seenInWay[nodeId]; ok {
				continue
			}
			seenInWay[nodeId] = struct{}{}
			wayCounts[nodeId]++
		}
	}

	var junctions []feature.Junction
	for _, element := range response.Elements {
		if element.Type != "way" {
			continue
		}
		// Iterate the ways again instead of the count map to keep the item order deterministic.
		for _, nodeId := range element.Nodes {
			count := wayCounts[nodeId]
			if count < 2 {
				continue
			}
			junctions = append(junctions, feature.Junction{
				ID:       osm.NodeID(nodeId),
				Position: positions[nodeId],
				WayCount: count,
			})
			// Emit each junction only once.
			wayCounts[nodeId] = 0
		}
	}
	return junctions, nil
}

// ParseStructures maps a raw response onto bridge and tunnel items.
func ParseStructures(raw []byte) ([]feature.Structure, error) {
	response, err := decode(raw)
	if err != nil {
		return nil, err
	}

	var structures []feature.Structure
	for _, element := range response.Elements {
		if element.Type != "way" {
			continue
		}

		structureType := feature.StructureBridge
		if value, ok := element.Tags["tunnel"]; ok && value != "no" {
			structureType = feature.StructureTunnel
		}

		structures = append(structures, feature.Structure{
			ID:       osm.WayID(element.ID),
			Tags:     element.Tags,
			Geometry: element.lineString(),
			Type:     structureType,
		})
	}
	return structures, nil
}
