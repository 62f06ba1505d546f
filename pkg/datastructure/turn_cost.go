package datastructure

import (
	"math"

	"github.com/lintang-b-s/roadgraph/pkg"
)

type TurnCost struct {
	EdgeIDFrom EdgeID
	EdgeIDTo   EdgeID
	Weight     float64
}

// TurnCostTable holds the turn costs of one vertex. A blocked vertex prohibits every turn.
type TurnCostTable struct {
	Vertex  Index
	Costs   []TurnCost
	Blocked bool
}

func (t *TurnCostTable) Get(from, to EdgeID) TurnCost {
	if t.Blocked {
		return TurnCost{EdgeIDFrom: from, EdgeIDTo: to, Weight: pkg.INF_WEIGHT}
	}
	for _, c := range t.Costs {
		if c.EdgeIDFrom == from && c.EdgeIDTo == to {
			return c
		}
	}
	return TurnCost{EdgeIDFrom: from, EdgeIDTo: to}
}

func (t *TurnCostTable) set(from, to EdgeID, weight float64) {
	for i := range t.Costs {
		if t.Costs[i].EdgeIDFrom == from && t.Costs[i].EdgeIDTo == to {
			t.Costs[i].Weight = math.Max(t.Costs[i].Weight, weight)
			return
		}
	}
	t.Costs = append(t.Costs, TurnCost{EdgeIDFrom: from, EdgeIDTo: to, Weight: weight})
}

type TurnCosts interface {
	IsForVehicle(vehicle string) bool
	GetTurnCosts(v Index) TurnCostTable
	GetTurnCost(v Index, from, to EdgeID) TurnCost
}

// NoTurnCosts makes every turn free.
type NoTurnCosts struct{}

func (NoTurnCosts) IsForVehicle(string) bool { return true }

func (NoTurnCosts) GetTurnCosts(v Index) TurnCostTable { return TurnCostTable{Vertex: v} }

func (NoTurnCosts) GetTurnCost(_ Index, from, to EdgeID) TurnCost {
	return TurnCost{EdgeIDFrom: from, EdgeIDTo: to}
}

// MemoryTurnCosts keeps sparse per vertex tables; vertices without a table have free turns.
type MemoryTurnCosts struct {
	vehicles map[string]struct{}
	tables   map[Index]*TurnCostTable
}

// NewMemoryTurnCosts creates turn costs valid for the given vehicles, or for every vehicle when
// none is given.
func NewMemoryTurnCosts(vehicles ...string) *MemoryTurnCosts {
	vs := make(map[string]struct{}, len(vehicles))
	for _, v := range vehicles {
		vs[v] = struct{}{}
	}
	return &MemoryTurnCosts{vehicles: vs, tables: make(map[Index]*TurnCostTable)}
}

func (m *MemoryTurnCosts) IsForVehicle(vehicle string) bool {
	if len(m.vehicles) == 0 {
		return true
	}
	_, ok := m.vehicles[vehicle]
	return ok
}

func (m *MemoryTurnCosts) table(v Index) *TurnCostTable {
	t, ok := m.tables[v]
	if !ok {
		t = &TurnCostTable{Vertex: v}
		m.tables[v] = t
	}
	return t
}

// SetTurnCost sets the cost of turning from -> to at v. Setting the same turn twice keeps the
// larger weight.
func (m *MemoryTurnCosts) SetTurnCost(v Index, from, to EdgeID, weight float64) {
	m.table(v).set(from, to, weight)
}

// Prohibit makes the turn from -> to at v impassable.
func (m *MemoryTurnCosts) Prohibit(v Index, from, to EdgeID) {
	m.SetTurnCost(v, from, to, pkg.INF_WEIGHT)
}

func (m *MemoryTurnCosts) BlockVertex(v Index) {
	m.table(v).Blocked = true
}

func (m *MemoryTurnCosts) GetTurnCosts(v Index) TurnCostTable {
	t, ok := m.tables[v]
	if !ok {
		return TurnCostTable{Vertex: v}
	}
	costs := make([]TurnCost, len(t.Costs))
	copy(costs, t.Costs)
	return TurnCostTable{Vertex: v, Costs: costs, Blocked: t.Blocked}
}

func (m *MemoryTurnCosts) GetTurnCost(v Index, from, to EdgeID) TurnCost {
	t, ok := m.tables[v]
	if !ok {
		return TurnCost{EdgeIDFrom: from, EdgeIDTo: to}
	}
	return t.Get(from, to)
}

func (m *MemoryTurnCosts) Len() int {
	return len(m.tables)
}
