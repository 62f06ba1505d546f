package controllers

import (
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/http/usecases"
)

type shortestPathRequest struct {
	OriginLat      float64 `json:"origin_lat" validate:"min=-90,max=90"`
	OriginLon      float64 `json:"origin_lon" validate:"min=-180,max=180"`
	DestinationLat float64 `json:"destination_lat" validate:"min=-90,max=90"`
	DestinationLon float64 `json:"destination_lon" validate:"min=-180,max=180"`
}

type shortestPathResponse struct {
	Weight      float64 `json:"weight"`
	Path        string  `json:"path"`
	Dist        float64 `json:"distance"`
	NumVertices int     `json:"num_vertices"`
}

func NewShortestPathResponse(route usecases.Route) shortestPathResponse {
	return shortestPathResponse{
		Weight:      route.Weight,
		Path:        geo.PolylineFromCoords(route.Coordinates),
		Dist:        route.Distance,
		NumVertices: route.NumVertices,
	}
}

type closestRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lon float64 `json:"lon" validate:"min=-180,max=180"`
}

type closestResponse struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Distance float64 `json:"distance"`
}

func NewClosestResponse(c geo.Coordinate, dist float64) closestResponse {
	return closestResponse{Lat: c.Lat, Lon: c.Lon, Distance: dist}
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
