package usecases

import (
	"context"
	"errors"
	"fmt"

	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/routing"
	"github.com/lintang-b-s/roadgraph/pkg/util"
	"go.uber.org/zap"
)

var (
	ErrPointNotSnapped = errors.New("no road found near the point")
	ErrPathNotFound    = errors.New("path not found")
)

type Route struct {
	// Weight in the unit of the vehicle profile, seconds for routing.HighwayCar.
	Weight      float64
	Distance    float64
	Coordinates []geo.Coordinate
	NumVertices int
}

type RoutingService struct {
	log          *zap.Logger
	data         RoutingData
	vehicle      routing.Vehicle
	searchRadius float64
}

func NewRoutingService(log *zap.Logger, data RoutingData, vehicle routing.Vehicle, searchRadius float64) *RoutingService {
	return &RoutingService{
		log:          log,
		data:         data,
		vehicle:      vehicle,
		searchRadius: searchRadius,
	}
}

func (rs *RoutingService) snap(lat, lon float64) (routing.SearchClosestResult, error) {
	res, err := routing.SearchClosest(rs.data, rs.vehicle, geo.NewCoordinate(lat, lon), rs.searchRadius, nil, nil, false)
	if err != nil {
		return res, util.WrapErrorf(err, util.ErrInternalServerError, "snapping %f,%f", lat, lon)
	}
	if !res.Found() {
		return res, util.WrapErrorf(ErrPointNotSnapped, util.ErrNotFound, "no road within %f degrees of %f,%f",
			rs.searchRadius, lat, lon)
	}
	return res, nil
}

// Closest snaps a point onto the road the vehicle can use, returning the snapped coordinate and
// its distance in meters.
func (rs *RoutingService) Closest(ctx context.Context, lat, lon float64) (geo.Coordinate, float64, error) {
	if err := ctx.Err(); err != nil {
		return geo.Coordinate{}, 0, util.WrapErrorf(err, util.ErrTimeout, "closest point query")
	}
	res, err := rs.snap(lat, lon)
	if err != nil {
		return geo.Coordinate{}, 0, err
	}
	return res.Coordinate, res.Distance, nil
}

func sameSnap(a, b routing.SearchClosestResult) bool {
	if a.HasVertex2 || b.HasVertex2 {
		return a.HasVertex2 == b.HasVertex2 && a.EdgeID == b.EdgeID && a.Position == b.Position
	}
	return a.Vertex1 == b.Vertex1
}

func (rs *RoutingService) ShortestPath(ctx context.Context, origLat, origLon, dstLat, dstLon float64) (Route, error) {
	source, err := rs.snap(origLat, origLon)
	if err != nil {
		return Route{}, err
	}
	target, err := rs.snap(dstLat, dstLon)
	if err != nil {
		return Route{}, err
	}
	if sameSnap(source, target) {
		return Route{Coordinates: []geo.Coordinate{source.Coordinate, target.Coordinate}}, nil
	}

	search := routing.NewDykstra[da.ContractedEdge](rs.data, nil, routing.ContractedEdgeWeightCalculator{})
	sources, err := search.SourceVisits(source)
	if err != nil {
		return Route{}, util.WrapErrorf(err, util.ErrInternalServerError, "source visits")
	}
	targets, err := search.TargetVisits(target)
	if err != nil {
		return Route{}, util.WrapErrorf(err, util.ErrInternalServerError, "target visits")
	}

	route, err := search.Calculate(ctx, sources, targets)
	switch {
	case errors.Is(err, routing.ErrNoRoute):
		return Route{}, util.WrapErrorf(ErrPathNotFound, util.ErrNotFound, "no path found from %f,%f to %f,%f",
			origLat, origLon, dstLat, dstLon)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return Route{}, util.WrapErrorf(err, util.ErrTimeout, "route query after %d settled edges",
			search.NumSettledEdges())
	case err != nil:
		return Route{}, util.WrapErrorf(err, util.ErrInternalServerError, "route query")
	}
	rs.log.Debug("route found", zap.Float64("weight", route.Weight), zap.Int("settledEdges", search.NumSettledEdges()))

	coords, err := rs.routeCoordinates(source, target, route)
	if err != nil {
		return Route{}, util.WrapErrorf(err, util.ErrInternalServerError, "route geometry")
	}
	return Route{
		Weight:      route.Weight,
		Distance:    geo.PolylineLengthMeters(coords),
		Coordinates: coords,
		NumVertices: len(route.Vertices),
	}, nil
}

// routeCoordinates lists the snapped source, the shapes of the edges fully traversed with the
// vertices between them and the snapped target.
func (rs *RoutingService) routeCoordinates(source, target routing.SearchClosestResult, route *routing.Route) ([]geo.Coordinate, error) {
	coords := []geo.Coordinate{source.Coordinate}
	for i, v := range route.Vertices {
		if i > 0 {
			shape, err := rs.data.GetEdgeShape(route.Edges[i])
			if err != nil {
				return nil, fmt.Errorf("shape of edge %d: %w", route.Edges[i], err)
			}
			for _, c := range shape {
				coords = append(coords, geo.NewCoordinate(float64(c.Lat), float64(c.Lon)))
			}
		}
		lat, lon, err := rs.data.GetVertex(v)
		if err != nil {
			return nil, err
		}
		coords = append(coords, geo.NewCoordinate(float64(lat), float64(lon)))
	}
	return append(coords, target.Coordinate), nil
}
