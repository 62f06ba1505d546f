package contracted

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const both = datastructure.MetaForward | datastructure.MetaBackward

func buildSource(t *testing.T) *datastructure.RouterDataSource[datastructure.CHEdgeData] {
	t.Helper()
	g := datastructure.NewGeometricGraph[datastructure.CHEdgeData](datastructure.CHEdgeDataCodec{})
	coords := []datastructure.Coordinate{
		{Lat: -7.76, Lon: 110.37}, {Lat: -7.76, Lon: 110.38}, {Lat: -7.77, Lon: 110.38},
		{Lat: -7.77, Lon: 110.37}, {Lat: -7.78, Lon: 110.37},
	}
	for _, c := range coords {
		_, err := g.AddVertex(c.Lat, c.Lon)
		require.NoError(t, err)
	}

	idx := tags.NewMemoryIndex()
	residential := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}})
	primary := idx.Add(osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "yes"}})

	edge := func(w float32, tagsID uint32, meta uint8) datastructure.CHEdgeData {
		return datastructure.CHEdgeData{ForwardWeight: w, BackwardWeight: w, Tags: tagsID, Meta: meta}
	}
	add := func(from, to datastructure.Index, data datastructure.CHEdgeData, shape []datastructure.Coordinate) {
		_, err := g.AddEdge(from, to, data, shape)
		require.NoError(t, err)
	}
	add(0, 1, edge(10, residential, both|datastructure.MetaNeighbour), []datastructure.Coordinate{{Lat: -7.76, Lon: 110.375}})
	add(1, 2, edge(20, primary, datastructure.MetaForward|datastructure.MetaNeighbour), nil)
	add(2, 3, edge(30, residential, both|datastructure.MetaNeighbour),
		[]datastructure.Coordinate{{Lat: -7.771, Lon: 110.379}, {Lat: -7.771, Lon: 110.371}})
	add(3, 4, edge(40, residential, both|datastructure.MetaNeighbour), nil)
	add(0, 2, datastructure.CHEdgeData{ForwardWeight: 30, ForwardContractedID: 1, BackwardWeight: 30,
		BackwardContractedID: 1, Meta: both | datastructure.MetaShortcut}, nil)

	src := datastructure.NewRouterDataSource(g, idx)
	src.AddSupportedProfile("car")
	return src
}

func newSerializer() *Serializer {
	return NewSerializer(zap.NewNop())
}

func serialize(t *testing.T, s *Serializer) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, s.Serialize(context.Background(), &buf, buildSource(t)))
	return buf.Bytes()
}

func deserialize(t *testing.T, s *Serializer, raw []byte) *DataSource {
	t.Helper()
	ds, err := s.Deserialize(bytes.NewReader(raw), int64(len(raw)), []string{"car"})
	require.NoError(t, err)
	return ds
}

func edgesByNeighbour(t *testing.T, ds *DataSource, v datastructure.Index) map[datastructure.Index]Edge {
	t.Helper()
	edges, err := ds.GetEdges(v)
	require.NoError(t, err)
	out := make(map[datastructure.Index]Edge, len(edges))
	for _, e := range edges {
		out[e.Neighbour] = e
	}
	return out
}

func TestBlockID(t *testing.T) {
	tests := []struct {
		v, size, want uint32
	}{
		{1, 2, 1},
		{2, 2, 1},
		{3, 2, 3},
		{4, 2, 3},
		{5, 2, 5},
		{1, 1, 1},
		{7, 1, 7},
		{7, 3, 7},
		{9, 3, 7},
		{10, 3, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, BlockID(tt.v, tt.size), "v=%d size=%d", tt.v, tt.size)
	}
}

func TestRoundTrip(t *testing.T) {
	s := newSerializer()
	ds := deserialize(t, s, serialize(t, s))

	assert.Equal(t, uint32(5), ds.VertexCount())
	assert.Equal(t, uint32(2), ds.BlockVertexSize())
	assert.True(t, ds.SupportsProfile("car"))
	assert.False(t, ds.SupportsProfile("bicycle"))
	assert.Equal(t, 2, ds.TagsIndex().Len())

	lat, lon, err := ds.GetVertex(3)
	require.NoError(t, err)
	assert.Equal(t, float32(-7.77), lat)
	assert.Equal(t, float32(110.38), lon)

	_, _, err = ds.GetVertex(0)
	assert.ErrorIs(t, err, ErrUnknownVertex)
	_, _, err = ds.GetVertex(6)
	assert.ErrorIs(t, err, ErrUnknownVertex)

	edges := edgesByNeighbour(t, ds, 3)
	require.Len(t, edges, 3)

	back := edges[2].Data
	assert.Equal(t, float32(20), back.Weight)
	assert.False(t, back.CanMoveForward())
	assert.True(t, back.CanMoveBackward())
	tagsID, ok := back.Tags()
	require.True(t, ok)
	primary, _ := ds.TagsIndex().Get(tagsID)
	assert.Equal(t, "primary", primary.Find("highway"))

	assert.Equal(t, float32(30), edges[4].Data.Weight)
	assert.True(t, edges[4].Data.CanMoveForward())

	shortcut := edges[1].Data
	assert.True(t, shortcut.IsShortcut())
	assert.Equal(t, uint32(1), shortcut.Value)
	_, ok = shortcut.Tags()
	assert.False(t, ok)

	target, data, err := ds.GetEdge(edges[4].ID)
	require.NoError(t, err)
	assert.Equal(t, datastructure.Index(4), target)
	assert.Equal(t, edges[4].Data, data)
	_, _, err = ds.GetEdge(EdgeIDOf(3, 7))
	assert.ErrorIs(t, err, datastructure.ErrInvalidEdgeID)
}

func TestRoundTripShapes(t *testing.T) {
	s := newSerializer()
	ds := deserialize(t, s, serialize(t, s))

	forward := edgesByNeighbour(t, ds, 3)[4]
	shape, err := ds.GetEdgeShape(forward.ID)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Coordinate{{Lat: -7.771, Lon: 110.379}, {Lat: -7.771, Lon: 110.371}}, shape)

	backward := edgesByNeighbour(t, ds, 4)[3]
	shape, err = ds.GetEdgeShape(backward.ID)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Coordinate{{Lat: -7.771, Lon: 110.371}, {Lat: -7.771, Lon: 110.379}}, shape)

	shape, err = ds.GetEdgeShape(edgesByNeighbour(t, ds, 2)[3].ID)
	require.NoError(t, err)
	assert.Empty(t, shape)
}

func TestReverseNeighbours(t *testing.T) {
	s := newSerializer()
	ds := deserialize(t, s, serialize(t, s))

	tests := []struct {
		v    datastructure.Index
		want []datastructure.Index
	}{
		{1, []datastructure.Index{2}},
		{2, []datastructure.Index{1, 3}},
		{3, []datastructure.Index{2, 4}},
		{4, []datastructure.Index{3, 5}},
		{5, []datastructure.Index{4}},
	}
	for _, tt := range tests {
		got, err := ds.GetReverseNeighbours(tt.v)
		require.NoError(t, err)
		assert.ElementsMatch(t, tt.want, got, "vertex %d", tt.v)
	}
}

func TestBlockSizeDoesNotChangeContent(t *testing.T) {
	for _, size := range []uint32{1, 2, 3, 5, 8} {
		s := newSerializer()
		s.BlockVertexSize = size
		ds := deserialize(t, s, serialize(t, s))
		require.Equal(t, uint32(5), ds.VertexCount(), "block size %d", size)

		for v := datastructure.Index(1); v <= 5; v++ {
			edges, err := ds.GetEdges(v)
			require.NoError(t, err)
			it := ds.GetEdgeIterator()
			require.NoError(t, it.MoveTo(v))
			n := 0
			for it.MoveNext() {
				assert.Equal(t, edges[n].ID, it.EdgeID())
				assert.Equal(t, edges[n].Neighbour, it.Neighbour())
				assert.Equal(t, edges[n].Data, it.Data())
				n++
			}
			assert.Equal(t, len(edges), n)
		}
	}
}

func TestIncompatibleVersion(t *testing.T) {
	s := newSerializer()
	raw := serialize(t, s)
	require.Equal(t, byte(len("CHEdgeData.v3")), raw[0])
	raw[len("CHEdgeData.v3")] = '2'

	_, err := s.Deserialize(bytes.NewReader(raw), int64(len(raw)), nil)
	assert.ErrorIs(t, err, ErrIncompatibleFormat)
}

func TestTruncatedFile(t *testing.T) {
	s := newSerializer()
	raw := serialize(t, s)
	raw = raw[:40]
	_, err := s.Deserialize(bytes.NewReader(raw), int64(len(raw)), nil)
	assert.ErrorIs(t, err, ErrCorruptData)
}

func TestLazyLoading(t *testing.T) {
	s := newSerializer()
	ds := deserialize(t, s, serialize(t, s))

	// first and last block are read to learn the layout
	assert.Equal(t, 2, ds.blockCache.Len())
	assert.Equal(t, 0, ds.shapeCache.Len())
	assert.Equal(t, 0, ds.reverseCache.Len())
	assert.Equal(t, 0, ds.regionCache.Len())

	_, _, err := ds.GetVertex(3)
	require.NoError(t, err)
	assert.Equal(t, 3, ds.blockCache.Len())

	_, err = ds.GetEdgeShape(EdgeIDOf(3, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, ds.shapeCache.Len())

	require.NoError(t, ds.Close())
	assert.Equal(t, 0, ds.blockCache.Len())
}

func TestVerticesAndEdgesInBox(t *testing.T) {
	s := newSerializer()
	ds := deserialize(t, s, serialize(t, s))

	box := orb.Bound{Min: orb.Point{110.369, -7.761}, Max: orb.Point{110.381, -7.759}}
	vertices, err := ds.VerticesInBox(box)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Index{1, 2}, vertices)

	edges, err := ds.EdgesInBox(box)
	require.NoError(t, err)
	require.Len(t, edges, 2)

	byFrom := map[datastructure.Index]datastructure.SpatialEdge{}
	for _, e := range edges {
		byFrom[e.From] = e
	}
	first := byFrom[1]
	assert.Equal(t, datastructure.Index(2), first.To)
	assert.Equal(t, []datastructure.Coordinate{{Lat: -7.76, Lon: 110.375}}, first.Shape)
	assert.NotZero(t, first.ReverseID)
	assert.True(t, first.HasTags)
	assert.Len(t, first.Points(), 3)

	second := byFrom[2]
	assert.Equal(t, datastructure.Index(3), second.To)
	assert.NotZero(t, second.ReverseID)

	empty, err := ds.VerticesInBox(orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{0.001, 0.001}})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

// longEdgeSource holds a 1 km edge along the equator and a short edge 0.01 degrees north of it.
func longEdgeSource(t *testing.T) *datastructure.RouterDataSource[datastructure.CHEdgeData] {
	t.Helper()
	g := datastructure.NewGeometricGraph[datastructure.CHEdgeData](datastructure.CHEdgeDataCodec{})
	for _, c := range []datastructure.Coordinate{
		{Lat: 0, Lon: 110}, {Lat: 0, Lon: 110.009}, {Lat: 0.01, Lon: 110}, {Lat: 0.01, Lon: 110.001},
	} {
		_, err := g.AddVertex(c.Lat, c.Lon)
		require.NoError(t, err)
	}
	idx := tags.NewMemoryIndex()
	road := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}})
	data := datastructure.CHEdgeData{ForwardWeight: 100, BackwardWeight: 100, Tags: road, Meta: both | datastructure.MetaNeighbour}
	_, err := g.AddEdge(0, 1, data, nil)
	require.NoError(t, err)
	_, err = g.AddEdge(2, 3, data, nil)
	require.NoError(t, err)

	src := datastructure.NewRouterDataSource(g, idx)
	src.AddSupportedProfile("car")
	return src
}

func TestEdgesInBoxFindsCrossingEdge(t *testing.T) {
	s := newSerializer()
	var buf bytes.Buffer
	require.NoError(t, s.Serialize(context.Background(), &buf, longEdgeSource(t)))
	ds := deserialize(t, s, buf.Bytes())
	assert.InDelta(t, 0.009, ds.regions.MaxEdgeExtent, 1e-5)

	// 50 m north of the middle of the long edge, no vertex inside
	box := orb.Bound{Min: orb.Point{110.0035, -0.00055}, Max: orb.Point{110.0055, 0.00145}}
	vertices, err := ds.VerticesInBox(box)
	require.NoError(t, err)
	assert.Empty(t, vertices)

	edges, err := ds.EdgesInBox(box)
	require.NoError(t, err)
	require.Len(t, edges, 1)
	assert.Equal(t, datastructure.Index(1), edges[0].From)
	assert.Equal(t, datastructure.Index(2), edges[0].To)
	assert.NotZero(t, edges[0].ReverseID)
}

func TestRegionZoomIsRecorded(t *testing.T) {
	writer := newSerializer()
	writer.RegionZoom = 16
	ds := deserialize(t, newSerializer(), serialize(t, writer))
	assert.Equal(t, uint32(16), ds.regionZoom)
	assert.True(t, ds.regions.HasZoom)

	box := orb.Bound{Min: orb.Point{110.369, -7.761}, Max: orb.Point{110.381, -7.759}}
	vertices, err := ds.VerticesInBox(box)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Index{1, 2}, vertices)
}

func TestRegionZoomMismatch(t *testing.T) {
	writer := newSerializer()
	writer.RegionZoom = 16
	ds := deserialize(t, newSerializer(), serialize(t, writer))
	require.NoError(t, ds.checkRegionZoom())

	ds.regionZoom = 18
	assert.ErrorIs(t, ds.checkRegionZoom(), ErrIncompatibleFormat)
}

func TestRegionIndexOptionalFields(t *testing.T) {
	plain := RegionIndex{RegionIDs: []uint64{7, 9}, LocationIndex: []int32{3, 6}}
	var got RegionIndex
	require.NoError(t, got.Unmarshal(plain.Marshal()))
	assert.False(t, got.HasZoom)
	assert.Zero(t, got.MaxEdgeExtent)
	assert.Equal(t, plain.RegionIDs, got.RegionIDs)

	full := RegionIndex{RegionIDs: []uint64{7}, LocationIndex: []int32{3}, Zoom: 0, HasZoom: true, MaxEdgeExtent: 0.25}
	got = RegionIndex{}
	require.NoError(t, got.Unmarshal(full.Marshal()))
	assert.True(t, got.HasZoom)
	assert.Equal(t, uint32(0), got.Zoom)
	assert.Equal(t, float32(0.25), got.MaxEdgeExtent)
}

func TestOpenFile(t *testing.T) {
	s := newSerializer()
	path := filepath.Join(t.TempDir(), "graph.routing")
	require.NoError(t, os.WriteFile(path, serialize(t, s), 0o644))

	ds, err := s.Open(path, []string{"car"})
	require.NoError(t, err)
	assert.Equal(t, uint32(5), ds.VertexCount())

	view, err := ds.CappedView(1, 13)
	require.NoError(t, err)
	version := make([]byte, 13)
	_, err = view.ReadAt(version, 0)
	require.NoError(t, err)
	assert.Equal(t, "CHEdgeData.v3", string(version))

	_, err = ds.CappedView(0, 1<<40)
	assert.Error(t, err)

	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close())
}

type testVehicle struct{}

func (testVehicle) UniqueName() string { return "car" }

func (testVehicle) CanTraverse(t osm.Tags) bool { return t.Find("highway") != "footway" }

func (testVehicle) Weight(t osm.Tags, distance float64) float64 {
	if t.Find("access") == "no" {
		return math.Inf(1)
	}
	return distance / 10
}

func (testVehicle) IsOneWay(t osm.Tags) (bool, bool) {
	switch t.Find("oneway") {
	case "yes":
		return true, false
	case "-1":
		return true, true
	}
	return false, false
}

func TestBuildUncontracted(t *testing.T) {
	g := datastructure.NewGeometricGraph[datastructure.LiveEdge](datastructure.LiveEdgeCodec{})
	for i := 0; i < 5; i++ {
		_, err := g.AddVertex(-7.76, 110.37+float32(i)*0.01)
		require.NoError(t, err)
	}
	idx := tags.NewMemoryIndex()
	road := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}})
	oneway := idx.Add(osm.Tags{{Key: "highway", Value: "primary"}, {Key: "oneway", Value: "yes"}})
	footway := idx.Add(osm.Tags{{Key: "highway", Value: "footway"}})
	closed := idx.Add(osm.Tags{{Key: "highway", Value: "residential"}, {Key: "access", Value: "no"}})

	shape := []datastructure.Coordinate{{Lat: -7.761, Lon: 110.375}}
	_, err := g.AddEdge(0, 1, datastructure.LiveEdge{Tags: road, Forward: true, Distance: 100}, shape)
	require.NoError(t, err)
	_, err = g.AddEdge(1, 2, datastructure.LiveEdge{Tags: oneway, Forward: false, Distance: 200}, nil)
	require.NoError(t, err)
	_, err = g.AddEdge(2, 3, datastructure.LiveEdge{Tags: footway, Forward: true, Distance: 50}, nil)
	require.NoError(t, err)
	_, err = g.AddEdge(3, 4, datastructure.LiveEdge{Tags: closed, Forward: true, Distance: 50}, nil)
	require.NoError(t, err)

	src := datastructure.NewRouterDataSource(g, idx)
	src.AddRestriction([]datastructure.Index{0, 1, 2})
	src.AddVehicleRestriction("car", []datastructure.Index{2})

	out, err := BuildUncontracted(src, testVehicle{})
	require.NoError(t, err)
	ch := out.Graph()
	assert.Equal(t, uint32(5), ch.VertexCount())
	assert.Equal(t, int64(2), ch.EdgeCount())
	assert.True(t, out.SupportsProfile("car"))
	assert.Len(t, out.Restrictions().Global(), 1)
	assert.Len(t, out.Restrictions().VehicleRestrictions("car"), 1)

	id, err := ch.GetEdgeBetween(0, 1)
	require.NoError(t, err)
	_, _, data, err := ch.GetEdge(id)
	require.NoError(t, err)
	assert.Equal(t, float32(10), data.ForwardWeight)
	assert.True(t, data.CanMoveForward())
	assert.True(t, data.CanMoveBackward())
	assert.True(t, data.RepresentsNeighbourRelations())
	got, err := ch.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Equal(t, shape, got)

	// stored against the way direction, so only 2 -> 1 follows the oneway
	id, err = ch.GetEdgeBetween(1, 2)
	require.NoError(t, err)
	_, _, data, err = ch.GetEdge(id)
	require.NoError(t, err)
	assert.False(t, data.CanMoveForward())
	assert.True(t, data.CanMoveBackward())
	assert.Equal(t, float32(20), data.BackwardWeight)

	_, err = ch.GetEdgeBetween(2, 3)
	assert.ErrorIs(t, err, datastructure.ErrEdgeNotFound)
}
