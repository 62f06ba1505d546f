package datastructure

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompileTurnCosts(t *testing.T) {
	g := NewFlatGraph(1)
	addVertices(t, g, 4)
	// 0 - 1 - 2 with a spur 1 - 3
	e01, _ := g.AddEdge(0, 1, []uint32{0})
	e12, _ := g.AddEdge(1, 2, []uint32{0})
	e13, _ := g.AddEdge(1, 3, []uint32{0})

	store := NewRestrictionStore()
	store.AddRestriction([]Index{0, 1, 2})
	store.AddVehicleRestriction("car", []Index{3})
	store.AddVehicleRestriction("bicycle", []Index{2, 1, 3})
	store.AddRestriction([]Index{0, 2, 3}) // no edge 0-2

	costs, skipped, err := CompileTurnCosts(g, store, "car")
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.True(t, costs.IsForVehicle("car"))
	assert.False(t, costs.IsForVehicle("bicycle"))

	assert.True(t, math.IsInf(costs.GetTurnCost(1, e01, e12).Weight, 1))
	assert.Equal(t, 0.0, costs.GetTurnCost(1, e01, e13).Weight)
	assert.Equal(t, 0.0, costs.GetTurnCost(1, -e12, e13).Weight, "bicycle restriction does not apply")
	assert.True(t, math.IsInf(costs.GetTurnCost(3, -e13, e13).Weight, 1))

	table := costs.GetTurnCosts(1)
	require.Len(t, table.Costs, 1)
	assert.Equal(t, e01, table.Costs[0].EdgeIDFrom)
	assert.Equal(t, e12, table.Costs[0].EdgeIDTo)
}

func TestNoTurnCosts(t *testing.T) {
	var costs TurnCosts = NoTurnCosts{}
	assert.Equal(t, 0.0, costs.GetTurnCost(3, 1, -1).Weight)
	assert.True(t, costs.IsForVehicle("anything"))
}
