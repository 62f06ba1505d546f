package routing

import (
	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
)

// EdgeWeightCalculator returns the cost of traversing an edge in the direction its data is oriented,
// +Inf when it cannot be traversed.
type EdgeWeightCalculator[T any] interface {
	Calculate(data T) float64
}

// LiveEdgeWeightCalculator weighs plain road segments through the vehicle profile.
type LiveEdgeWeightCalculator struct {
	tags    tags.Index
	vehicle Vehicle
	oneWay  OneWayVehicle
}

func NewLiveEdgeWeightCalculator(index tags.Index, vehicle Vehicle) *LiveEdgeWeightCalculator {
	c := &LiveEdgeWeightCalculator{tags: index, vehicle: vehicle}
	if ow, ok := vehicle.(OneWayVehicle); ok {
		c.oneWay = ow
	}
	return c
}

func (c *LiveEdgeWeightCalculator) Calculate(data datastructure.LiveEdge) float64 {
	t, ok := c.tags.Get(data.Tags)
	if !ok || !c.vehicle.CanTraverse(t) {
		return pkg.INF_WEIGHT
	}
	if c.oneWay != nil {
		if oneway, reverse := c.oneWay.IsOneWay(t); oneway && reverse == data.Forward {
			return pkg.INF_WEIGHT
		}
	}
	return c.vehicle.Weight(t, float64(data.Distance))
}

// ContractedEdgeWeightCalculator uses the weights stored in a contracted graph file.
type ContractedEdgeWeightCalculator struct{}

func (ContractedEdgeWeightCalculator) Calculate(data datastructure.ContractedEdge) float64 {
	if !data.CanMoveForward() {
		return pkg.INF_WEIGHT
	}
	return float64(data.Weight)
}

// CHEdgeWeightCalculator uses the forward weight of in-memory contracted edges.
type CHEdgeWeightCalculator struct{}

func (CHEdgeWeightCalculator) Calculate(data datastructure.CHEdgeData) float64 {
	if !data.CanMoveForward() {
		return pkg.INF_WEIGHT
	}
	return float64(data.ForwardWeight)
}
