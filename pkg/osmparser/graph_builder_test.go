package osmparser

import (
	"context"
	"strings"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func xmlSource(doc string) func(ctx context.Context) (osm.Scanner, error) {
	return func(ctx context.Context) (osm.Scanner, error) {
		return osmxml.New(ctx, strings.NewReader(doc)), nil
	}
}

func build(t *testing.T, doc string) *datastructure.RouterDataSource[datastructure.LiveEdge] {
	t.Helper()
	b := NewGraphBuilder(DefaultInterpreter{}, zap.NewNop())
	b.BufferSize = 4
	data, err := b.Build(context.Background(), xmlSource(doc))
	require.NoError(t, err)
	return data
}

func vertexAt(t *testing.T, g *datastructure.GeometricGraph[datastructure.LiveEdge], lat, lon float32) datastructure.Index {
	t.Helper()
	for v := datastructure.Index(0); uint32(v) < g.VertexCount(); v++ {
		vLat, vLon, _ := g.GetVertex(v)
		if vLat == lat && vLon == lon {
			return v
		}
	}
	require.FailNow(t, "no vertex", "%f,%f", lat, lon)
	return 0
}

const network = `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <node id="4" lat="0" lon="0.003"/>
  <node id="5" lat="0" lon="0.004"/>
  <node id="6" lat="0.001" lon="0.003"/>
  <node id="7" lat="0.002" lon="0.003"/>
  <way id="10">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/><tag k="name" v="Jalan Kaliurang"/><tag k="source" v="survey"/>
  </way>
  <way id="11">
    <nd ref="3"/><nd ref="4"/><nd ref="5"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="12">
    <nd ref="4"/><nd ref="6"/>
    <tag k="highway" v="primary"/><tag k="oneway" v="yes"/>
  </way>
  <way id="13">
    <nd ref="6"/><nd ref="7"/>
    <tag k="highway" v="footway"/>
  </way>
</osm>`

func TestBuildFoldsIntermediateNodes(t *testing.T) {
	data := build(t, network)
	g := data.Graph()

	assert.Equal(t, uint32(5), g.VertexCount())
	assert.Equal(t, int64(4), g.EdgeCount())

	v1 := vertexAt(t, g, 0, 0)
	v3 := vertexAt(t, g, 0, 0.002)
	v4 := vertexAt(t, g, 0, 0.003)
	v6 := vertexAt(t, g, 0.001, 0.003)

	id, err := g.GetEdgeBetween(v1, v3)
	require.NoError(t, err)
	_, _, edge, err := g.GetEdge(id)
	require.NoError(t, err)
	shape, err := g.GetEdgeShape(id)
	require.NoError(t, err)
	assert.Equal(t, []datastructure.Coordinate{{Lat: 0, Lon: 0.001}}, shape)
	assert.True(t, edge.Forward)
	expected := geo.CalculateHaversineDistance(0, 0, 0, 0.002) * 1000
	assert.InDelta(t, expected, float64(edge.Distance), 0.01)

	edgeTags, ok := data.TagsIndex().Get(edge.Tags)
	require.True(t, ok)
	assert.Equal(t, "Jalan Kaliurang", edgeTags.Find("name"))
	assert.Equal(t, "", edgeTags.Find("source"))

	id, err = g.GetEdgeBetween(v4, v6)
	require.NoError(t, err)
	_, _, edge, err = g.GetEdge(id)
	require.NoError(t, err)
	edgeTags, _ = data.TagsIndex().Get(edge.Tags)
	assert.Equal(t, "yes", edgeTags.Find("oneway"))

	_, err = g.GetEdgeBetween(v3, v6)
	assert.ErrorIs(t, err, datastructure.ErrEdgeNotFound)
}

func TestBuildKeepIntermediates(t *testing.T) {
	b := NewGraphBuilder(DefaultInterpreter{}, nil)
	b.KeepIntermediates = true
	data, err := b.Build(context.Background(), xmlSource(network))
	require.NoError(t, err)
	assert.Equal(t, uint32(6), data.Graph().VertexCount())
	assert.Equal(t, int64(5), data.Graph().EdgeCount())
}

func TestBuildSplitsLoops(t *testing.T) {
	data := build(t, `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0.001" lon="0.001"/>
  <way id="20">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/><nd ref="1"/>
    <tag k="highway" v="service"/>
  </way>
</osm>`)
	g := data.Graph()
	assert.Equal(t, uint32(3), g.VertexCount())
	assert.Equal(t, int64(3), g.EdgeCount())

	v1 := vertexAt(t, g, 0, 0)
	v2 := vertexAt(t, g, 0, 0.001)
	v3 := vertexAt(t, g, 0.001, 0.001)
	edges, err := g.GetEdges(v1)
	require.NoError(t, err)
	neighbours := make([]datastructure.Index, 0, len(edges))
	for _, e := range edges {
		neighbours = append(neighbours, e.Neighbour)
	}
	assert.ElementsMatch(t, []datastructure.Index{v2, v3}, neighbours)
}

func TestBuildSplitsParallelWayWithShape(t *testing.T) {
	data := build(t, `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <node id="4" lat="0.001" lon="0.001"/>
  <way id="60">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="61">
    <nd ref="1"/><nd ref="4"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
</osm>`)
	assert.Equal(t, uint32(3), data.Graph().VertexCount())
	assert.Equal(t, int64(3), data.Graph().EdgeCount())
}

func TestBuildParallelWayKeepsStoredDirection(t *testing.T) {
	data := build(t, `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <way id="30">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="31">
    <nd ref="3"/><nd ref="1"/>
    <tag k="highway" v="tertiary"/>
  </way>
</osm>`)
	g := data.Graph()
	require.Equal(t, int64(1), g.EdgeCount())

	v1 := vertexAt(t, g, 0, 0)
	v3 := vertexAt(t, g, 0, 0.002)
	id, err := g.GetEdgeBetween(v1, v3)
	require.NoError(t, err)
	assert.True(t, id.IsForward())

	_, _, edge, err := g.GetEdge(id)
	require.NoError(t, err)
	assert.False(t, edge.Forward)
	edgeTags, _ := data.TagsIndex().Get(edge.Tags)
	assert.Equal(t, "tertiary", edgeTags.Find("highway"))
}

func TestBuildRemapsRestrictions(t *testing.T) {
	data := build(t, `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <node id="4" lat="0.001" lon="0.002"/>
  <node id="5" lat="-0.001" lon="0.002"/>
  <node id="6" lat="0" lon="0.003">
    <tag k="barrier" v="gate"/><tag k="access" v="no"/>
  </node>
  <node id="7" lat="0" lon="0.004"/>
  <way id="40">
    <nd ref="1"/><nd ref="2"/><nd ref="3"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="41">
    <nd ref="3"/><nd ref="4"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="42">
    <nd ref="3"/><nd ref="5"/>
    <tag k="highway" v="residential"/>
  </way>
  <way id="43">
    <nd ref="3"/><nd ref="6"/><nd ref="7"/>
    <tag k="highway" v="residential"/>
  </way>
  <relation id="50">
    <member type="way" ref="40" role="from"/>
    <member type="node" ref="3" role="via"/>
    <member type="way" ref="41" role="to"/>
    <tag k="type" v="restriction"/><tag k="restriction" v="no_left_turn"/>
  </relation>
  <relation id="51">
    <member type="way" ref="40" role="from"/>
    <member type="node" ref="3" role="via"/>
    <member type="way" ref="42" role="to"/>
    <tag k="type" v="restriction"/><tag k="restriction:motorcar" v="no_right_turn"/>
  </relation>
  <relation id="52">
    <member type="way" ref="40" role="from"/>
    <member type="node" ref="3" role="via"/>
    <member type="way" ref="43" role="to"/>
    <tag k="type" v="restriction"/><tag k="restriction" v="only_straight_on"/>
  </relation>
</osm>`)
	g := data.Graph()
	v1 := vertexAt(t, g, 0, 0)
	v3 := vertexAt(t, g, 0, 0.002)
	v4 := vertexAt(t, g, 0.001, 0.002)
	v5 := vertexAt(t, g, -0.001, 0.002)
	v6 := vertexAt(t, g, 0, 0.003)

	store := data.Restrictions()
	assert.ElementsMatch(t, []datastructure.Restriction{{v6}, {v1, v3, v4}}, store.Global())
	assert.Equal(t, []datastructure.Restriction{{v1, v3, v5}}, store.VehicleRestrictions("car"))
	assert.Equal(t, 3, store.Len())
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewGraphBuilder(DefaultInterpreter{}, nil).Build(ctx, xmlSource(network))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultInterpreter(t *testing.T) {
	in := DefaultInterpreter{}
	tests := []struct {
		name string
		tags osm.Tags
		want bool
	}{
		{"residential", osm.Tags{{Key: "highway", Value: "residential"}}, true},
		{"footway", osm.Tags{{Key: "highway", Value: "footway"}}, false},
		{"roundabout", osm.Tags{{Key: "junction", Value: "roundabout"}}, true},
		{"area", osm.Tags{{Key: "highway", Value: "service"}, {Key: "area", Value: "yes"}}, false},
		{"building", osm.Tags{{Key: "building", Value: "yes"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, in.IsRoutable(tt.tags))
		})
	}

	gate := &osm.Node{Tags: osm.Tags{{Key: "barrier", Value: "gate"}, {Key: "access", Value: "no"}}}
	assert.Equal(t, []string{""}, in.NodeRestriction(gate))
	open := &osm.Node{Tags: osm.Tags{{Key: "barrier", Value: "gate"}}}
	assert.Nil(t, in.NodeRestriction(open))
}
