package geo

import (
	"github.com/golang/geo/s2"
)

func toS2(c Coordinate) s2.Point {
	return s2.PointFromLatLng(s2.LatLngFromDegrees(c.Lat, c.Lon))
}

func ProjectPointToLineCoord(pointA Coordinate, pointB Coordinate,
	snap Coordinate) Coordinate {
	projection := s2.Project(toS2(snap), toS2(pointA), toS2(pointB))
	projectLatLng := s2.LatLngFromPoint(projection)
	return NewCoordinate(projectLatLng.Lat.Degrees(), projectLatLng.Lng.Degrees())
}

// SegmentProjection is the closest point of a segment to a query point.
type SegmentProjection struct {
	Point Coordinate
	// Distance from the query point to Point in meters.
	Distance float64
	// Along is the distance from the segment start to Point in meters.
	Along float64
	// Interior is false when the closest point is one of the segment ends.
	Interior bool
}

// ProjectOntoSegment projects snap onto segment a-b on the sphere.
func ProjectOntoSegment(a, b, snap Coordinate) SegmentProjection {
	p := ProjectPointToLineCoord(a, b, snap)
	along := DistanceMeters(a, p)
	length := DistanceMeters(a, b)
	const endEps = 1e-6
	return SegmentProjection{
		Point:    p,
		Distance: DistanceMeters(snap, p),
		Along:    along,
		Interior: along > endEps && along < length-endEps,
	}
}
