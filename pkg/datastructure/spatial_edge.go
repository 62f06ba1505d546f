package datastructure

// SpatialEdge is an edge found by a bounding box query, with everything needed to snap a point onto it.
// Shape holds the intermediate points in From→To order. ReverseID is zero when the edge cannot be
// addressed in the To→From direction.
type SpatialEdge struct {
	ID        EdgeID
	ReverseID EdgeID
	From      Index
	To        Index
	FromCoord Coordinate
	ToCoord   Coordinate
	Shape     []Coordinate
	Tags      uint32
	HasTags   bool
}

// Points returns the full polyline of the edge, endpoints included.
func (e SpatialEdge) Points() []Coordinate {
	points := make([]Coordinate, 0, len(e.Shape)+2)
	points = append(points, e.FromCoord)
	points = append(points, e.Shape...)
	return append(points, e.ToCoord)
}
