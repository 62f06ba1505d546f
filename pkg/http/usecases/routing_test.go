package usecases

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/contracted"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/osmparser"
	"github.com/lintang-b-s/roadgraph/pkg/routing"
	"github.com/lintang-b-s/roadgraph/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmxml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const roads = `<osm>
  <node id="1" lat="0" lon="0"/>
  <node id="2" lat="0" lon="0.001"/>
  <node id="3" lat="0" lon="0.002"/>
  <node id="4" lat="0.001" lon="0.002"/>
  <node id="5" lat="0.01" lon="0.01"/>
  <node id="6" lat="0.01" lon="0.011"/>
  <way id="1"><nd ref="1"/><nd ref="2"/><tag k="highway" v="residential"/></way>
  <way id="2"><nd ref="2"/><nd ref="3"/><tag k="highway" v="residential"/></way>
  <way id="3"><nd ref="3"/><nd ref="4"/><tag k="highway" v="primary"/><tag k="oneway" v="yes"/></way>
  <way id="4"><nd ref="5"/><nd ref="6"/><tag k="highway" v="residential"/></way>
</osm>`

func newService(t *testing.T) *RoutingService {
	t.Helper()
	ctx := context.Background()
	open := func(ctx context.Context) (osm.Scanner, error) {
		return osmxml.New(ctx, strings.NewReader(roads)), nil
	}
	live, err := osmparser.NewGraphBuilder(osmparser.DefaultInterpreter{}, nil).Build(ctx, open)
	require.NoError(t, err)

	car := routing.HighwayCar{}
	ch, err := contracted.BuildUncontracted(live, car)
	require.NoError(t, err)

	s := contracted.NewSerializer(zap.NewNop())
	var buf bytes.Buffer
	require.NoError(t, s.Serialize(ctx, &buf, ch))
	ds, err := s.Deserialize(bytes.NewReader(buf.Bytes()), int64(buf.Len()), []string{car.UniqueName()})
	require.NoError(t, err)
	t.Cleanup(func() { ds.Close() })

	return NewRoutingService(zap.NewNop(), ds, car, 0.001)
}

func errorCode(t *testing.T, err error) error {
	t.Helper()
	var uErr *util.Error
	require.ErrorAs(t, err, &uErr)
	return uErr.Code()
}

func TestShortestPath(t *testing.T) {
	rs := newService(t)

	route, err := rs.ShortestPath(context.Background(), 0, 0.0002, 0, 0.0018)
	require.NoError(t, err)

	expected := geo.CalculateHaversineDistance(0, 0.0002, 0, 0.0018) * 1000
	assert.Equal(t, 1, route.NumVertices)
	assert.InDelta(t, expected, route.Distance, 0.5)
	assert.InDelta(t, expected/(30/3.6), route.Weight, 0.1)
	require.Len(t, route.Coordinates, 3)
	assert.InDelta(t, 0.001, route.Coordinates[1].Lon, 1e-6)
	assert.InDelta(t, 0.0018, route.Coordinates[2].Lon, 1e-6)
}

func TestShortestPathFollowsOneway(t *testing.T) {
	rs := newService(t)
	ctx := context.Background()

	route, err := rs.ShortestPath(ctx, 0, 0.0015, 0.0008, 0.002)
	require.NoError(t, err)
	assert.Equal(t, 1, route.NumVertices)

	_, err = rs.ShortestPath(ctx, 0.0008, 0.002, 0, 0.0015)
	assert.ErrorIs(t, err, ErrPathNotFound)
	assert.Equal(t, util.ErrNotFound, errorCode(t, err))
}

func TestShortestPathErrors(t *testing.T) {
	rs := newService(t)

	tests := []struct {
		name     string
		from, to geo.Coordinate
		want     error
		code     error
	}{
		{"disconnected", geo.NewCoordinate(0, 0.0005), geo.NewCoordinate(0.01, 0.0105), ErrPathNotFound, util.ErrNotFound},
		{"origin off road", geo.NewCoordinate(5, 5), geo.NewCoordinate(0, 0.0005), ErrPointNotSnapped, util.ErrNotFound},
		{"destination off road", geo.NewCoordinate(0, 0.0005), geo.NewCoordinate(-5, 5), ErrPointNotSnapped, util.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rs.ShortestPath(context.Background(), tt.from.Lat, tt.from.Lon, tt.to.Lat, tt.to.Lon)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, tt.code, errorCode(t, err))
		})
	}
}

func TestShortestPathSamePoint(t *testing.T) {
	rs := newService(t)
	route, err := rs.ShortestPath(context.Background(), 0, 0.0005, 0, 0.0005)
	require.NoError(t, err)
	assert.Zero(t, route.Weight)
	assert.Zero(t, route.NumVertices)
}

func TestShortestPathCancelled(t *testing.T) {
	rs := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := rs.ShortestPath(ctx, 0, 0.0002, 0, 0.0018)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, util.ErrTimeout, errorCode(t, err))
}

func TestClosest(t *testing.T) {
	rs := newService(t)
	c, dist, err := rs.Closest(context.Background(), 0.0001, 0.0005)
	require.NoError(t, err)
	assert.InDelta(t, 0, c.Lat, 1e-7)
	assert.InDelta(t, 0.0005, c.Lon, 1e-7)
	assert.InDelta(t, geo.CalculateHaversineDistance(0, 0, 0.0001, 0)*1000, dist, 0.1)

	_, _, err = rs.Closest(context.Background(), 3, 3)
	assert.ErrorIs(t, err, ErrPointNotSnapped)
}
