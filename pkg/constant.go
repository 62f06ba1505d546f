package pkg

import "math"

var (
	// INF_WEIGHT marks an impassable edge or a prohibited turn.
	INF_WEIGHT = math.Inf(1)
)

const (
	// snap to an existing vertex when the query point is closer than this (meters)
	VERTEX_SNAP_EPSILON_METER = 0.1

	DEFAULT_REGION_ZOOM       = 18
	DEFAULT_BLOCK_VERTEX_SIZE = 2
	DEFAULT_SEARCH_RADIUS_DEG = 0.01
	DEFAULT_STREAM_BUFFER     = 100

	CONTRACTED_FORMAT_VERSION = "CHEdgeData.v3"
)

type OsmHighwayType uint8

// enum buat osm highway buat routing: https://wiki.openstreetmap.org/wiki/OSM_tags_for_routing/Telenav
const (
	MOTORWAY       OsmHighwayType = 0
	TRUNK          OsmHighwayType = 1
	PRIMARY        OsmHighwayType = 2
	SECONDARY      OsmHighwayType = 3
	TERTIARY       OsmHighwayType = 4
	RESIDENTIAL    OsmHighwayType = 5
	SERVICE        OsmHighwayType = 6
	UNCLASSIFIED   OsmHighwayType = 7
	MOTORWAY_LINK  OsmHighwayType = 8
	TRUNK_LINK     OsmHighwayType = 9
	PRIMARY_LINK   OsmHighwayType = 10
	SECONDARY_LINK OsmHighwayType = 11
	TERTIARY_LINK  OsmHighwayType = 12
	LIVING_STREET  OsmHighwayType = 13
	ROAD           OsmHighwayType = 14
	TRACK          OsmHighwayType = 15
	MOTORROAD      OsmHighwayType = 16
	UNKNOWN        OsmHighwayType = 17
)

func GetHighwayType(roadType string) OsmHighwayType {
	switch roadType {
	case "motorway":
		return MOTORWAY
	case "trunk":
		return TRUNK
	case "primary":
		return PRIMARY
	case "secondary":
		return SECONDARY
	case "tertiary":
		return TERTIARY
	case "unclassified":
		return UNCLASSIFIED
	case "residential":
		return RESIDENTIAL
	case "service":
		return SERVICE
	case "motorway_link":
		return MOTORWAY_LINK
	case "trunk_link":
		return TRUNK_LINK
	case "primary_link":
		return PRIMARY_LINK
	case "secondary_link":
		return SECONDARY_LINK
	case "tertiary_link":
		return TERTIARY_LINK
	case "living_street":
		return LIVING_STREET
	case "road":
		return ROAD
	case "track":
		return TRACK
	case "motorroad":
		return MOTORROAD
	default:
		return UNKNOWN
	}
}

// MaxSpeed returns the default speed in km/h used when a way has no usable maxspeed tag.
func (h OsmHighwayType) MaxSpeed() float64 {
	switch h {
	case MOTORWAY:
		return 100
	case TRUNK, MOTORWAY_LINK:
		return 70
	case PRIMARY, TRUNK_LINK:
		return 65
	case SECONDARY, PRIMARY_LINK:
		return 60
	case TERTIARY, SECONDARY_LINK:
		return 50
	case UNCLASSIFIED, TERTIARY_LINK:
		return 40
	case RESIDENTIAL:
		return 30
	case SERVICE, ROAD:
		return 20
	case TRACK:
		return 15
	case LIVING_STREET:
		return 5
	case MOTORROAD:
		return 90
	default:
		return 30
	}
}
