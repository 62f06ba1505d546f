package datastructure

import (
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSquare(t *testing.T, g *GeometricGraph[LiveEdge]) {
	t.Helper()
	coords := []Coordinate{{-7.76, 110.37}, {-7.76, 110.38}, {-7.77, 110.38}, {-7.77, 110.37}}
	for _, c := range coords {
		_, err := g.AddVertex(c.Lat, c.Lon)
		require.NoError(t, err)
	}
	_, err := g.AddEdge(0, 1, LiveEdge{Tags: 1, Forward: true, Distance: 1100},
		[]Coordinate{{-7.759, 110.373}, {-7.759, 110.376}})
	require.NoError(t, err)
	_, err = g.AddEdge(1, 2, LiveEdge{Tags: 2, Forward: true, Distance: 1100}, nil)
	require.NoError(t, err)
	_, err = g.AddEdge(2, 3, LiveEdge{Tags: 1, Forward: false, Distance: 1100},
		[]Coordinate{{-7.771, 110.375}})
	require.NoError(t, err)
	_, err = g.AddEdge(3, 0, LiveEdge{Tags: 3, Forward: true, Distance: 1100}, nil)
	require.NoError(t, err)
}

func TestGeometricGraphVerticesAndShapes(t *testing.T) {
	g := NewGeometricGraph[LiveEdge](LiveEdgeCodec{})
	buildSquare(t, g)

	lat, lon, ok := g.GetVertex(2)
	require.True(t, ok)
	assert.Equal(t, float32(-7.77), lat)
	assert.Equal(t, float32(110.38), lon)
	_, _, ok = g.GetVertex(4)
	assert.False(t, ok)

	require.NoError(t, g.SetVertex(2, -7.775, 110.385))
	lat, _, _ = g.GetVertex(2)
	assert.Equal(t, float32(-7.775), lat)

	id, err := g.GetEdgeBetween(0, 1)
	require.NoError(t, err)
	shape, err := g.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Equal(t, []Coordinate{{-7.759, 110.373}, {-7.759, 110.376}}, shape)

	reversed, err := g.GetEdgeShape(-id)
	require.NoError(t, err)
	assert.Equal(t, []Coordinate{{-7.759, 110.376}, {-7.759, 110.373}}, reversed)

	id, err = g.GetEdgeBetween(1, 2)
	require.NoError(t, err)
	shape, err = g.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Empty(t, shape)
}

func TestGeometricGraphCompressKeepsShapes(t *testing.T) {
	g := NewGeometricGraph[LiveEdge](LiveEdgeCodec{})
	buildSquare(t, g)

	_, err := g.RemoveEdge(0, 1)
	require.NoError(t, err)
	require.NoError(t, g.Compress())
	require.NoError(t, g.Trim())

	id, err := g.GetEdgeBetween(3, 2)
	require.NoError(t, err)
	shape, err := g.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Equal(t, []Coordinate{{-7.771, 110.375}}, shape)

	_, _, data, err := g.GetEdge(id)
	require.NoError(t, err)
	assert.True(t, data.Forward, "reading 2->3 backwards flips the direction flag")
}

func TestGeometricGraphMemoryMapped(t *testing.T) {
	g, err := NewMemoryMappedGeometricGraph[LiveEdge](hugearray.HeapFactory{}, LiveEdgeCodec{}, "square",
		hugearray.WithFileElementSize(64), hugearray.WithCacheBlockSize(8))
	require.NoError(t, err)
	defer g.Close()
	buildSquare(t, g)

	id, err := g.GetEdgeBetween(2, 3)
	require.NoError(t, err)
	_, _, data, err := g.GetEdge(id)
	require.NoError(t, err)
	assert.Equal(t, LiveEdge{Tags: 1, Forward: false, Distance: 1100}, data)
	shape, err := g.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Equal(t, []Coordinate{{-7.771, 110.375}}, shape)
}

func TestGraphSnapshotRoundTrip(t *testing.T) {
	g := NewGeometricGraph[LiveEdge](LiveEdgeCodec{})
	buildSquare(t, g)
	path := filepath.Join(t.TempDir(), "square.graph")
	require.NoError(t, WriteGraph(path, g))

	loaded, err := ReadGraph[LiveEdge](path, LiveEdgeCodec{})
	require.NoError(t, err)
	require.Equal(t, g.VertexCount(), loaded.VertexCount())
	require.Equal(t, g.EdgeCount(), loaded.EdgeCount())

	for v := Index(0); v < Index(g.VertexCount()); v++ {
		lat, lon, _ := g.GetVertex(v)
		llat, llon, ok := loaded.GetVertex(v)
		require.True(t, ok)
		assert.Equal(t, lat, llat)
		assert.Equal(t, lon, llon)
	}
	g.ForEachEdge(func(id EdgeID, v1, v2 Index, data LiveEdge) {
		lv1, lv2, ldata, err := loaded.GetEdge(id)
		require.NoError(t, err)
		assert.Equal(t, v1, lv1)
		assert.Equal(t, v2, lv2)
		assert.Equal(t, data, ldata)
		want, _ := g.GetEdgeShape(id)
		got, _ := loaded.GetEdgeShape(id)
		assert.Equal(t, want, got)
	})

	_, err = ReadGraph[CHEdgeData](path, CHEdgeDataCodec{})
	assert.ErrorIs(t, err, ErrBadSnapshot)
}
