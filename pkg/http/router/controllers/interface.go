package controllers

import (
	"context"

	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/http/usecases"
)

type RoutingService interface {
	ShortestPath(ctx context.Context, origLat, origLon, dstLat, dstLon float64) (usecases.Route, error)
	Closest(ctx context.Context, lat, lon float64) (geo.Coordinate, float64, error)
}
