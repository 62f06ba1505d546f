package routing

import (
	"context"
	"math"
	"testing"

	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// lineSource builds vertices 100 m apart eastwards along the equator, joined by residential roads.
func lineSource(t *testing.T, vertices int) (*da.RouterDataSource[da.LiveEdge], []geo.Coordinate) {
	t.Helper()
	g := da.NewGeometricGraph[da.LiveEdge](da.LiveEdgeCodec{})
	idx := tags.NewMemoryIndex()
	road := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}})

	coords := make([]geo.Coordinate, vertices)
	for i := range coords {
		lat, lon := geo.GetDestinationPoint(0, 0, 90, 0.1*float64(i))
		coords[i] = geo.NewCoordinate(lat, lon)
		_, err := g.AddVertex(float32(lat), float32(lon))
		require.NoError(t, err)
	}
	for i := 1; i < vertices; i++ {
		_, err := g.AddEdge(da.Index(i-1), da.Index(i), da.LiveEdge{Tags: road, Forward: true, Distance: 100}, nil)
		require.NoError(t, err)
	}
	return da.NewRouterDataSource(g, idx), coords
}

func TestSearchClosestAtVertex(t *testing.T) {
	src, coords := lineSource(t, 3)
	source := NewGraphSearchSource(src, LiveEdgeTags, zap.NewNop())

	r, err := SearchClosest(source, HighwayCar{}, coords[1], 0.01, nil, nil, false)
	require.NoError(t, err)
	require.True(t, r.Found())
	assert.InDelta(t, 0, r.Distance, 0.1)
	assert.False(t, r.HasVertex2)
	assert.Equal(t, da.Index(1), r.Vertex1)
}

func TestSearchClosestOnEdge(t *testing.T) {
	src, coords := lineSource(t, 2)
	source := NewGraphSearchSource(src, LiveEdgeTags, zap.NewNop())

	midLat, midLon := geo.GetDestinationPoint(coords[0].Lat, coords[0].Lon, 90, 0.05)
	lat, lon := geo.GetDestinationPoint(midLat, midLon, 0, 0.05)

	r, err := SearchClosest(source, HighwayCar{}, geo.NewCoordinate(lat, lon), 0.01, nil, nil, false)
	require.NoError(t, err)
	require.True(t, r.Found())
	assert.True(t, r.HasVertex2)
	assert.InDelta(t, 0.5, r.Position, 0.01)
	assert.InDelta(t, 50, r.Distance, 0.5)
	assert.Equal(t, -1, r.IntermediateIndex)
	assert.Equal(t, r.EdgeID.Reverse(), r.ReverseEdgeID)

	vertices, err := SearchClosest(source, HighwayCar{}, geo.NewCoordinate(lat, lon), 0.01, nil, nil, true)
	require.NoError(t, err)
	assert.False(t, vertices.HasVertex2)
	assert.InDelta(t, math.Hypot(50, 50), vertices.Distance, 1)
}

func TestSearchClosestNothingInRange(t *testing.T) {
	src, _ := lineSource(t, 2)
	source := NewGraphSearchSource(src, LiveEdgeTags, zap.NewNop())

	r, err := SearchClosest(source, HighwayCar{}, geo.NewCoordinate(10, 10), 0.01, nil, nil, false)
	require.NoError(t, err)
	assert.False(t, r.Found())
	assert.Equal(t, math.MaxFloat64, r.Distance)
}

type nameMatcher struct{}

func (nameMatcher) MatchWithEdge(_ Vehicle, pointTags, edgeTags osm.Tags) bool {
	return pointTags.Find("name") == edgeTags.Find("name")
}

func TestSearchClosestPrefersMatchedEdge(t *testing.T) {
	g := da.NewGeometricGraph[da.LiveEdge](da.LiveEdgeCodec{})
	idx := tags.NewMemoryIndex()
	near := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}, {Key: "name", Value: "Jalan Kaliurang"}})
	far := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}, {Key: "name", Value: "Jalan Magelang"}})
	footway := idx.Add(osm.Tags{{Key: "highway", Value: "footway"}})

	addRoad := func(northKm float64, tagsID uint32) {
		lat, _ := geo.GetDestinationPoint(0, 0, 0, northKm)
		_, lon := geo.GetDestinationPoint(0, 0, 90, 0.1)
		a, err := g.AddVertex(float32(lat), 0)
		require.NoError(t, err)
		b, err := g.AddVertex(float32(lat), float32(lon))
		require.NoError(t, err)
		_, err = g.AddEdge(a, b, da.LiveEdge{Tags: tagsID, Forward: true, Distance: 100}, nil)
		require.NoError(t, err)
	}
	addRoad(0.01, footway)
	addRoad(0.02, near)
	addRoad(0.04, far)
	source := NewGraphSearchSource(da.NewRouterDataSource(g, idx), LiveEdgeTags, zap.NewNop())

	_, lon := geo.GetDestinationPoint(0, 0, 90, 0.05)
	query := geo.NewCoordinate(0, lon)

	r, err := SearchClosest(source, HighwayCar{}, query, 0.01, nil, nil, false)
	require.NoError(t, err)
	assert.InDelta(t, 20, r.Distance, 0.5)

	point := osm.Tags{{Key: "name", Value: "Jalan Magelang"}}
	r, err = SearchClosest(source, HighwayCar{}, query, 0.01, nameMatcher{}, point, false)
	require.NoError(t, err)
	assert.InDelta(t, 40, r.Distance, 0.5)

	point = osm.Tags{{Key: "name", Value: "Jalan Solo"}}
	r, err = SearchClosest(source, HighwayCar{}, query, 0.01, nameMatcher{}, point, false)
	require.NoError(t, err)
	assert.InDelta(t, 20, r.Distance, 0.5)
}

func TestRouteBetweenSnappedPoints(t *testing.T) {
	src, coords := lineSource(t, 3)
	source := NewGraphSearchSource(src, LiveEdgeTags, zap.NewNop())
	car := HighwayCar{}

	snap := func(from geo.Coordinate) SearchClosestResult {
		lat, lon := geo.GetDestinationPoint(from.Lat, from.Lon, 90, 0.05)
		lat, lon = geo.GetDestinationPoint(lat, lon, 0, 0.01)
		r, err := SearchClosest(source, car, geo.NewCoordinate(lat, lon), 0.01, nil, nil, false)
		require.NoError(t, err)
		require.True(t, r.HasVertex2)
		return r
	}
	origin, destination := snap(coords[0]), snap(coords[1])

	d := NewDykstra[da.LiveEdge](src.Graph(), nil, NewLiveEdgeWeightCalculator(src.TagsIndex(), car))
	sources, err := d.SourceVisits(origin)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	targets, err := d.TargetVisits(destination)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	route, err := d.Calculate(context.Background(), sources, targets)
	require.NoError(t, err)
	// 100 m at 30 km/h
	assert.InDelta(t, 12, route.Weight, 0.2)
	assert.Equal(t, []da.Index{1}, route.Vertices)

	_, err = d.SourceVisits(notFound())
	assert.ErrorIs(t, err, ErrNotSnapped)
}

func TestVertexVisits(t *testing.T) {
	src, _ := lineSource(t, 3)
	d := NewDykstra[da.LiveEdge](src.Graph(), nil, NewLiveEdgeWeightCalculator(src.TagsIndex(), HighwayCar{}))
	at := SearchClosestResult{Vertex1: 1, IntermediateIndex: -1}

	sources, err := d.SourceVisits(at)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	for _, v := range sources {
		assert.Equal(t, da.Index(1), v.From)
		assert.InDelta(t, 12, v.Weight, 1e-3)
	}

	targets, err := d.TargetVisits(at)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	for _, v := range targets {
		assert.Equal(t, da.Index(1), v.To)
		assert.Zero(t, v.Weight)
	}

	route, err := d.Calculate(context.Background(), []EdgeVisit{sources[0]}, targets)
	require.NoError(t, err)
	assert.InDelta(t, 24, route.Weight, 1e-3)
}
