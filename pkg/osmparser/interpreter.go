// Package osmparser turns an OSM object stream into a routable graph with restrictions.
package osmparser

import (
	"strings"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/paulmach/osm"
)

// VehicleRestriction is a restricted node sequence. Vehicle is empty for restrictions that apply
// to every vehicle.
type VehicleRestriction struct {
	Vehicle string
	Nodes   []osm.NodeID
}

// WayLookup resolves ways referenced by restriction relations.
type WayLookup func(id osm.WayID) (*osm.Way, bool)

// Interpreter decides which OSM objects make up the road network.
type Interpreter interface {
	IsRoutable(tags osm.Tags) bool
	// IsRelevantTagKey reports whether a way tag is kept on the edges built from the way.
	IsRelevantTagKey(key string) bool
	// IsRestriction is a cheap check run before the referenced objects are known.
	IsRestriction(t osm.Type, tags osm.Tags) bool
	// NodeRestriction returns the vehicles that cannot pass node, an empty name meaning all.
	NodeRestriction(node *osm.Node) []string
	RelationRestriction(rel *osm.Relation, ways WayLookup) []VehicleRestriction
}

var (
	acceptedBarrierType = map[string]struct{}{
		"bollard":        {},
		"swing_gate":     {},
		"jersey_barrier": {},
		"lift_gate":      {},
		"block":          {},
		"gate":           {},
	}

	relevantTagKeys = map[string]struct{}{
		"highway":                {},
		"junction":               {},
		"oneway":                 {},
		"maxspeed":               {},
		"access":                 {},
		"motor_vehicle":          {},
		"vehicle:forward":        {},
		"vehicle:backward":       {},
		"motor_vehicle:forward":  {},
		"motor_vehicle:backward": {},
		"name":                   {},
		"ref":                    {},
		"lanes":                  {},
	}

	// restriction:<key> -> vehicle profile name
	restrictionVehicles = map[string]string{
		"motorcar":      "car",
		"motor_vehicle": "car",
	}
)

// DefaultInterpreter accepts the highway classes of pkg.GetHighwayType, barriers closed with
// access=no and prohibitory turn restrictions through a via node.
type DefaultInterpreter struct{}

var _ Interpreter = DefaultInterpreter{}

func (DefaultInterpreter) IsRoutable(tags osm.Tags) bool {
	if tags.Find("area") == "yes" {
		return false
	}
	highway := tags.Find("highway")
	if highway != "" {
		return pkg.GetHighwayType(highway) != pkg.UNKNOWN
	}
	return tags.Find("junction") != ""
}

func (DefaultInterpreter) IsRelevantTagKey(key string) bool {
	_, ok := relevantTagKeys[key]
	return ok
}

func (DefaultInterpreter) IsRestriction(t osm.Type, tags osm.Tags) bool {
	switch t {
	case osm.TypeNode:
		return tags.Find("barrier") != ""
	case osm.TypeRelation:
		return tags.Find("type") == "restriction"
	}
	return false
}

func (DefaultInterpreter) NodeRestriction(node *osm.Node) []string {
	if _, ok := acceptedBarrierType[node.Tags.Find("barrier")]; !ok {
		return nil
	}
	if node.Tags.Find("access") != "no" {
		return nil
	}
	return []string{""}
}

// restrictionKinds returns the vehicles a restriction relation applies to.
func restrictionKinds(tags osm.Tags) []string {
	var vehicles []string
	for _, t := range tags {
		if !strings.HasPrefix(t.Value, "no_") {
			continue
		}
		if t.Key == "restriction" {
			vehicles = append(vehicles, "")
			continue
		}
		name, ok := strings.CutPrefix(t.Key, "restriction:")
		if !ok {
			continue
		}
		if vehicle, ok := restrictionVehicles[name]; ok {
			vehicles = append(vehicles, vehicle)
		}
	}
	return vehicles
}

// RelationRestriction maps from-way, via-node, to-way relations onto the three node sequence
// leaving the from way, crossing via and entering the to way. Via ways are not supported.
func (DefaultInterpreter) RelationRestriction(rel *osm.Relation, ways WayLookup) []VehicleRestriction {
	vehicles := restrictionKinds(rel.Tags)
	if len(vehicles) == 0 {
		return nil
	}

	var from, to *osm.Way
	via := osm.NodeID(0)
	for _, m := range rel.Members {
		switch {
		case m.Role == "from" && m.Type == osm.TypeWay:
			from, _ = ways(osm.WayID(m.Ref))
		case m.Role == "to" && m.Type == osm.TypeWay:
			to, _ = ways(osm.WayID(m.Ref))
		case m.Role == "via" && m.Type == osm.TypeNode:
			via = osm.NodeID(m.Ref)
		case m.Role == "via":
			return nil
		}
	}
	if from == nil || to == nil || via == 0 {
		return nil
	}
	before, ok := neighbourOf(from, via)
	if !ok {
		return nil
	}
	after, ok := neighbourOf(to, via)
	if !ok {
		return nil
	}

	out := make([]VehicleRestriction, 0, len(vehicles))
	for _, vehicle := range vehicles {
		out = append(out, VehicleRestriction{
			Vehicle: vehicle,
			Nodes:   []osm.NodeID{before, via, after},
		})
	}
	return out
}

// neighbourOf returns the node next to via on way, via has to be one of its ends.
func neighbourOf(way *osm.Way, via osm.NodeID) (osm.NodeID, bool) {
	n := len(way.Nodes)
	if n < 2 {
		return 0, false
	}
	switch via {
	case way.Nodes[0].ID:
		return way.Nodes[1].ID, true
	case way.Nodes[n-1].ID:
		return way.Nodes[n-2].ID, true
	}
	return 0, false
}
