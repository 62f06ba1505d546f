// Package routing implements turn cost aware shortest path search and closest point snapping over
// the graphs of package datastructure and package contracted.
package routing

import (
	"strconv"
	"strings"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/paulmach/osm"
)

// Vehicle is a routing profile: which roads a vehicle may use and what they cost.
// Weight returns +Inf for impassable roads.
type Vehicle interface {
	UniqueName() string
	CanTraverse(tags osm.Tags) bool
	Weight(tags osm.Tags, distance float64) float64
}

// OneWayVehicle is implemented by profiles that respect oneway roads. reverse reports that the
// allowed direction is against the way's node order.
type OneWayVehicle interface {
	Vehicle
	IsOneWay(tags osm.Tags) (oneway, reverse bool)
}

var routableHighways = map[string]struct{}{
	"motorway":       {},
	"motorway_link":  {},
	"trunk":          {},
	"trunk_link":     {},
	"primary":        {},
	"primary_link":   {},
	"secondary":      {},
	"secondary_link": {},
	"tertiary":       {},
	"tertiary_link":  {},
	"residential":    {},
	"service":        {},
	"road":           {},
	"track":          {},
	"unclassified":   {},
	"living_street":  {},
	"motorroad":      {},
}

// HighwayCar weighs roads by travel time in seconds using the highway class speed table, or the
// maxspeed tag when UseMaxSpeed is set and the tag parses.
type HighwayCar struct {
	UseMaxSpeed bool
}

func (HighwayCar) UniqueName() string {
	return "car"
}

func isRestricted(value string) bool {
	return value == "no" || value == "private"
}

func (HighwayCar) CanTraverse(tags osm.Tags) bool {
	highway := tags.Find("highway")
	if _, ok := routableHighways[highway]; !ok && tags.Find("junction") == "" {
		return false
	}
	if isRestricted(tags.Find("motor_vehicle")) {
		return false
	}
	return !isRestricted(tags.Find("access")) || tags.Find("motor_vehicle") == "yes"
}

// parseMaxSpeed returns the maxspeed tag in km/h.
func parseMaxSpeed(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	factor := 1.0
	switch {
	case strings.HasSuffix(value, "mph"):
		value, factor = strings.TrimSuffix(value, "mph"), 1.60934
	case strings.HasSuffix(value, "knots"):
		value, factor = strings.TrimSuffix(value, "knots"), 1.852
	case strings.HasSuffix(value, "km/h"):
		value = strings.TrimSuffix(value, "km/h")
	}
	speed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || speed <= 0 {
		return 0, false
	}
	return speed * factor, true
}

// Speed returns the speed in km/h the profile assumes on a road.
func (c HighwayCar) Speed(tags osm.Tags) float64 {
	if c.UseMaxSpeed {
		if speed, ok := parseMaxSpeed(tags.Find("maxspeed")); ok {
			return speed
		}
	}
	return pkg.GetHighwayType(tags.Find("highway")).MaxSpeed()
}

func (c HighwayCar) Weight(tags osm.Tags, distance float64) float64 {
	if !c.CanTraverse(tags) {
		return pkg.INF_WEIGHT
	}
	return distance / (c.Speed(tags) / 3.6)
}

func (HighwayCar) IsOneWay(tags osm.Tags) (bool, bool) {
	forwardClosed := isRestricted(tags.Find("vehicle:forward")) || isRestricted(tags.Find("motor_vehicle:forward"))
	backwardClosed := isRestricted(tags.Find("vehicle:backward")) || isRestricted(tags.Find("motor_vehicle:backward"))
	switch oneway := tags.Find("oneway"); {
	case oneway == "-1" || forwardClosed:
		return true, true
	case oneway == "yes" || oneway == "true" || oneway == "1" || backwardClosed:
		return true, false
	case oneway == "no":
		return false, false
	}
	if tags.Find("junction") == "roundabout" || tags.Find("highway") == "motorway" {
		return true, false
	}
	return false, false
}
