package routing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/lintang-b-s/roadgraph/pkg"
	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
)

var ErrNoRoute = errors.New("no route between source and target")

// EdgeVisit is a search state: EdgeID traversed From -> To. For sources Weight is the cost spent
// reaching To; for targets it is the cost of the part of the edge beyond the target point.
type EdgeVisit struct {
	EdgeID da.EdgeID
	From   da.Index
	To     da.Index
	Weight float64
}

type Route struct {
	Weight float64
	// Vertices are the vertices passed between the source point and the target point.
	Vertices []da.Index
	// Edges lists every traversed edge, the source and target edges included.
	Edges []da.EdgeID
}

type visitLabel struct {
	visit   EdgeVisit
	parent  *visitLabel
	node    *da.PriorityQueueNode[da.EdgeID]
	settled bool
}

// Dykstra is an edge based Dijkstra search, so turn costs between consecutive edges are honoured.
// It is not safe for concurrent use, create one per goroutine.
type Dykstra[T any] struct {
	graph     da.AdjacencyGraph[T]
	turnCosts da.TurnCosts
	weights   EdgeWeightCalculator[T]

	pq      *da.MinHeap[da.EdgeID]
	labels  map[da.EdgeID]*visitLabel
	pending map[da.EdgeID][]EdgeVisit

	numSettledEdges int
}

func NewDykstra[T any](graph da.AdjacencyGraph[T], turnCosts da.TurnCosts, weights EdgeWeightCalculator[T]) *Dykstra[T] {
	if turnCosts == nil {
		turnCosts = da.NoTurnCosts{}
	}
	return &Dykstra[T]{
		graph:     graph,
		turnCosts: turnCosts,
		weights:   weights,
		pq:        da.NewFourAryHeap[da.EdgeID](),
		labels:    make(map[da.EdgeID]*visitLabel),
		pending:   make(map[da.EdgeID][]EdgeVisit),
	}
}

func (d *Dykstra[T]) NumSettledEdges() int {
	return d.numSettledEdges
}

func (d *Dykstra[T]) reset() {
	d.pq.Clear()
	clear(d.labels)
	clear(d.pending)
	d.numSettledEdges = 0
}

// push labels visit unless a cheaper label for the same edge exists. A settled edge is only
// entered again while it still holds a target that lay behind the point it was first entered at.
func (d *Dykstra[T]) push(visit EdgeVisit, parent *visitLabel) error {
	l, ok := d.labels[visit.EdgeID]
	if ok && l.settled {
		if _, target := d.pending[visit.EdgeID]; !target || !da.Gt(visit.Weight, l.visit.Weight) {
			return nil
		}
		ok = false
	}
	if ok {
		if !da.Lt(visit.Weight, l.visit.Weight) {
			return nil
		}
		// an unsettled label is still queued
		if err := d.pq.DecreaseKey(l.node, visit.Weight); err != nil {
			return fmt.Errorf("relabelling edge %d: %w", visit.EdgeID, err)
		}
		l.visit = visit
		l.parent = parent
		return nil
	}
	l = &visitLabel{visit: visit, parent: parent, node: da.NewPriorityQueueNode(visit.Weight, visit.EdgeID)}
	d.labels[visit.EdgeID] = l
	d.pq.Insert(l.node)
	return nil
}

func maxPending(targets map[da.EdgeID][]EdgeVisit) float64 {
	m := 0.0
	for _, ts := range targets {
		for _, t := range ts {
			m = math.Max(m, t.Weight)
		}
	}
	return m
}

// Calculate returns the cheapest route from any source visit to any target visit.
func (d *Dykstra[T]) Calculate(ctx context.Context, sources, targets []EdgeVisit) (*Route, error) {
	d.reset()
	if len(sources) == 0 || len(targets) == 0 {
		return nil, ErrNoRoute
	}

	pending := d.pending
	for _, t := range targets {
		pending[t.EdgeID] = append(pending[t.EdgeID], t)
	}
	beyond := maxPending(pending)

	for _, s := range sources {
		if math.IsInf(s.Weight, 1) {
			continue
		}
		if err := d.push(s, nil); err != nil {
			return nil, err
		}
	}

	best := pkg.INF_WEIGHT
	var bestLabel *visitLabel
	it := d.graph.GetEdgeIterator()

	for !d.pq.IsEmpty() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("search aborted after %d edges: %w", d.numSettledEdges, err)
		}
		node, err := d.pq.ExtractMin()
		if err != nil {
			return nil, err
		}
		current := d.labels[node.GetItem()]
		current.settled = true
		d.numSettledEdges++

		// no pending target can be completed cheaper than best from here on
		if da.Ge(current.visit.Weight-beyond, best) {
			break
		}

		if ts, ok := pending[current.visit.EdgeID]; ok {
			var behind []EdgeVisit
			for _, t := range ts {
				total := current.visit.Weight - t.Weight
				if da.Lt(total, 0) {
					// the target point lies behind the point this edge was entered at
					behind = append(behind, t)
					continue
				}
				total = math.Max(total, 0)
				if total < best {
					best = total
					bestLabel = current
				}
			}
			if len(behind) > 0 {
				pending[current.visit.EdgeID] = behind
			} else {
				delete(pending, current.visit.EdgeID)
			}
			if len(pending) == 0 {
				break
			}
			beyond = maxPending(pending)
		}

		if err := it.MoveTo(current.visit.To); err != nil {
			return nil, err
		}
		for it.MoveNext() {
			edgeID := it.EdgeID()
			turn := d.turnCosts.GetTurnCost(current.visit.To, current.visit.EdgeID, edgeID)
			if math.IsInf(turn.Weight, 1) {
				continue
			}
			weight := d.weights.Calculate(it.Data())
			if math.IsInf(weight, 1) {
				continue
			}
			next := current.visit.Weight + turn.Weight + weight
			if da.Ge(next-beyond, best) {
				continue
			}
			if err := d.push(EdgeVisit{EdgeID: edgeID, From: current.visit.To, To: it.Neighbour(), Weight: next}, current); err != nil {
				return nil, err
			}
		}
	}

	if bestLabel == nil {
		return nil, ErrNoRoute
	}
	return buildRoute(bestLabel, best), nil
}

// buildRoute walks the predecessors of the edge where the target was met back to a source.
func buildRoute(target *visitLabel, weight float64) *Route {
	var trail []*visitLabel
	for l := target; l != nil; l = l.parent {
		trail = append(trail, l)
	}
	slices.Reverse(trail)

	route := &Route{Weight: weight, Edges: make([]da.EdgeID, 0, len(trail))}
	for i, l := range trail {
		route.Edges = append(route.Edges, l.visit.EdgeID)
		if i < len(trail)-1 {
			route.Vertices = append(route.Vertices, l.visit.To)
		}
	}
	return route
}
