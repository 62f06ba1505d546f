package spatialindex

import (
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildAndSearch(t *testing.T) {
	g := datastructure.NewGeometricGraph[datastructure.LiveEdge](datastructure.LiveEdgeCodec{})
	a, _ := g.AddVertex(0, 0)
	b, _ := g.AddVertex(0, 0.01)
	c, _ := g.AddVertex(0.05, 0.05)
	d, _ := g.AddVertex(0.05, 0.06)

	// the shape bulges north, the box must include it
	ab, err := g.AddEdge(a, b, datastructure.LiveEdge{Forward: true, Distance: 1}, []datastructure.Coordinate{{Lat: 0.004, Lon: 0.005}})
	require.NoError(t, err)
	_, err = g.AddEdge(c, d, datastructure.LiveEdge{Forward: true, Distance: 1}, nil)
	require.NoError(t, err)

	rt := Build(g, zap.NewNop())
	assert.Equal(t, 2, rt.Len())

	found := rt.Search(geo.BoxAround(geo.NewCoordinate(0.0035, 0.005), 0.0006))
	require.Len(t, found, 1)
	assert.Equal(t, EdgeRef{ID: ab, From: a, To: b}, found[0])

	assert.Empty(t, rt.Search(geo.BoxAround(geo.NewCoordinate(-0.5, -0.5), 0.01)))
	assert.Len(t, rt.SearchWithinRadius(0.025, 0.03, 10, 1), 1)
	assert.Len(t, rt.SearchWithinRadius(0.025, 0.03, 10, 0), 2)
}
