package routing

import (
	"fmt"
	"math"

	"github.com/lintang-b-s/roadgraph/pkg"
	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/spatialindex"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

// SearchSource enumerates the edges near a point.
type SearchSource interface {
	EdgesInBox(b orb.Bound) ([]da.SpatialEdge, error)
	TagsIndex() tags.Index
}

// EdgeMatcher decides whether a point with pointTags may snap onto an edge with edgeTags.
type EdgeMatcher interface {
	MatchWithEdge(vehicle Vehicle, pointTags, edgeTags osm.Tags) bool
}

// SearchClosestResult is a point snapped onto the graph. Without Vertex2 the point snapped onto
// Vertex1 itself; otherwise it lies on EdgeID (Vertex1 -> Vertex2) at Position, the fraction of the
// edge length from Vertex1.
type SearchClosestResult struct {
	// Distance from the query point in meters, math.MaxFloat64 when nothing was found.
	Distance   float64
	Vertex1    da.Index
	Vertex2    da.Index
	HasVertex2 bool
	Position   float64
	// IntermediateIndex is the shape point the result lies on, -1 if none.
	IntermediateIndex int
	EdgeID            da.EdgeID
	ReverseEdgeID     da.EdgeID
	Coordinate        geo.Coordinate
}

func (r SearchClosestResult) Found() bool {
	return r.Distance < math.MaxFloat64
}

func notFound() SearchClosestResult {
	return SearchClosestResult{Distance: math.MaxFloat64, IntermediateIndex: -1}
}

func toGeo(c da.Coordinate) geo.Coordinate {
	return geo.NewCoordinate(float64(c.Lat), float64(c.Lon))
}

// SearchClosest snaps c onto the closest edge vehicle can traverse within radius degrees. When a
// matcher is given, the closest edge it accepts wins over closer edges it rejects. With verticesOnly
// only vertices and shape points are candidates.
func SearchClosest(source SearchSource, vehicle Vehicle, c geo.Coordinate, radius float64,
	matcher EdgeMatcher, pointTags osm.Tags, verticesOnly bool) (SearchClosestResult, error) {
	edges, err := source.EdgesInBox(geo.BoxAround(c, radius))
	if err != nil {
		return notFound(), fmt.Errorf("searching edges around %v: %w", c, err)
	}

	best, bestMatched := notFound(), notFound()
	index := source.TagsIndex()
	for _, e := range edges {
		if !e.HasTags {
			continue
		}
		edgeTags, ok := index.Get(e.Tags)
		if !ok || !vehicle.CanTraverse(edgeTags) {
			continue
		}
		matched := matcher != nil && matcher.MatchWithEdge(vehicle, pointTags, edgeTags)
		for _, candidate := range snapCandidates(e, c, verticesOnly) {
			if candidate.Distance < best.Distance {
				best = candidate
			}
			if matched && candidate.Distance < bestMatched.Distance {
				bestMatched = candidate
			}
		}
	}
	if bestMatched.Found() {
		return bestMatched, nil
	}
	return best, nil
}

// snapCandidates returns the closest points of e to c: its vertices, shape points and, unless
// verticesOnly, the projections onto each segment.
func snapCandidates(e da.SpatialEdge, c geo.Coordinate, verticesOnly bool) []SearchClosestResult {
	points := make([]geo.Coordinate, 0, len(e.Shape)+2)
	for _, p := range e.Points() {
		points = append(points, toGeo(p))
	}
	along := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		along[i] = along[i-1] + geo.DistanceMeters(points[i-1], points[i])
	}
	total := along[len(along)-1]
	last := len(points) - 1

	atVertex := func(v da.Index, p geo.Coordinate, distance float64) SearchClosestResult {
		return SearchClosestResult{Distance: distance, Vertex1: v, IntermediateIndex: -1, EdgeID: e.ID,
			ReverseEdgeID: e.ReverseID, Coordinate: p}
	}
	onEdge := func(p geo.Coordinate, distance, offset float64, intermediate int) SearchClosestResult {
		if geo.DistanceMeters(p, points[0]) < pkg.VERTEX_SNAP_EPSILON_METER {
			return atVertex(e.From, points[0], distance)
		}
		if geo.DistanceMeters(p, points[last]) < pkg.VERTEX_SNAP_EPSILON_METER {
			return atVertex(e.To, points[last], distance)
		}
		position := 0.0
		if total > 0 {
			position = offset / total
		}
		return SearchClosestResult{Distance: distance, Vertex1: e.From, Vertex2: e.To, HasVertex2: true,
			Position: position, IntermediateIndex: intermediate, EdgeID: e.ID, ReverseEdgeID: e.ReverseID,
			Coordinate: p}
	}

	candidates := []SearchClosestResult{
		atVertex(e.From, points[0], geo.DistanceMeters(c, points[0])),
		atVertex(e.To, points[last], geo.DistanceMeters(c, points[last])),
	}
	for i := 1; i < last; i++ {
		candidates = append(candidates, onEdge(points[i], geo.DistanceMeters(c, points[i]), along[i], i-1))
	}
	if verticesOnly {
		return candidates
	}
	for i := 0; i < last; i++ {
		p := geo.ProjectOntoSegment(points[i], points[i+1], c)
		if !p.Interior {
			continue
		}
		candidates = append(candidates, onEdge(p.Point, p.Distance, along[i]+p.Along, -1))
	}
	return candidates
}

// GraphSearchSource answers box queries on an in-memory geometric graph through an R-tree.
type GraphSearchSource[T any] struct {
	graph  *da.GeometricGraph[T]
	rtree  *spatialindex.Rtree
	tags   tags.Index
	tagsOf func(T) (uint32, bool)
}

// NewGraphSearchSource indexes every edge of src. tagsOf extracts the tag collection of an edge.
func NewGraphSearchSource[T any](src *da.RouterDataSource[T], tagsOf func(T) (uint32, bool),
	log *zap.Logger) *GraphSearchSource[T] {
	return &GraphSearchSource[T]{
		graph:  src.Graph(),
		rtree:  spatialindex.Build(src.Graph(), log),
		tags:   src.TagsIndex(),
		tagsOf: tagsOf,
	}
}

func LiveEdgeTags(e da.LiveEdge) (uint32, bool) {
	return e.Tags, true
}

func CHEdgeTags(e da.CHEdgeData) (uint32, bool) {
	if e.IsShortcut() {
		return 0, false
	}
	return e.Tags, true
}

func (s *GraphSearchSource[T]) TagsIndex() tags.Index {
	return s.tags
}

func (s *GraphSearchSource[T]) EdgesInBox(b orb.Bound) ([]da.SpatialEdge, error) {
	refs := s.rtree.Search(b)
	out := make([]da.SpatialEdge, 0, len(refs))
	for _, ref := range refs {
		_, _, data, err := s.graph.GetEdge(ref.ID)
		if err != nil {
			return nil, err
		}
		shape, err := s.graph.GetEdgeShape(ref.ID)
		if err != nil {
			return nil, err
		}
		fromLat, fromLon, _ := s.graph.GetVertex(ref.From)
		toLat, toLon, _ := s.graph.GetVertex(ref.To)
		tagsID, ok := s.tagsOf(data)
		out = append(out, da.SpatialEdge{
			ID:        ref.ID,
			ReverseID: ref.ID.Reverse(),
			From:      ref.From,
			To:        ref.To,
			FromCoord: da.Coordinate{Lat: fromLat, Lon: fromLon},
			ToCoord:   da.Coordinate{Lat: toLat, Lon: toLon},
			Shape:     shape,
			Tags:      tagsID,
			HasTags:   ok,
		})
	}
	return out, nil
}
