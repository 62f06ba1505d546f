package routing

import (
	"errors"
	"fmt"
	"math"

	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
)

var ErrNotSnapped = errors.New("point was not snapped onto the graph")

// edgeWeight weighs edge id leaving from.
func (d *Dykstra[T]) edgeWeight(from da.Index, id da.EdgeID) (float64, error) {
	it := d.graph.GetEdgeIterator()
	if err := it.MoveTo(from); err != nil {
		return 0, err
	}
	for it.MoveNext() {
		if it.EdgeID() == id {
			return d.weights.Calculate(it.Data()), nil
		}
	}
	return 0, fmt.Errorf("%w: %d does not leave vertex %d", da.ErrInvalidEdgeID, id, from)
}

// edgeVisits returns the visits of a point on an edge: towards Vertex2 weighted by the part of the
// edge after the point and towards Vertex1 by the part before it.
func (d *Dykstra[T]) edgeVisits(r SearchClosestResult) ([]EdgeVisit, error) {
	var visits []EdgeVisit
	w, err := d.edgeWeight(r.Vertex1, r.EdgeID)
	if err != nil {
		return nil, err
	}
	if !math.IsInf(w, 1) {
		visits = append(visits, EdgeVisit{EdgeID: r.EdgeID, From: r.Vertex1, To: r.Vertex2, Weight: (1 - r.Position) * w})
	}
	if r.ReverseEdgeID == 0 {
		return visits, nil
	}
	w, err = d.edgeWeight(r.Vertex2, r.ReverseEdgeID)
	if err != nil {
		return nil, err
	}
	if !math.IsInf(w, 1) {
		visits = append(visits, EdgeVisit{EdgeID: r.ReverseEdgeID, From: r.Vertex2, To: r.Vertex1, Weight: r.Position * w})
	}
	return visits, nil
}

// SourceVisits turns a snap result into the visits a search starts from. A point on a vertex
// starts on every edge leaving it.
func (d *Dykstra[T]) SourceVisits(r SearchClosestResult) ([]EdgeVisit, error) {
	if !r.Found() {
		return nil, ErrNotSnapped
	}
	if r.HasVertex2 {
		return d.edgeVisits(r)
	}

	var visits []EdgeVisit
	it := d.graph.GetEdgeIterator()
	if err := it.MoveTo(r.Vertex1); err != nil {
		return nil, err
	}
	for it.MoveNext() {
		w := d.weights.Calculate(it.Data())
		if math.IsInf(w, 1) {
			continue
		}
		visits = append(visits, EdgeVisit{EdgeID: it.EdgeID(), From: r.Vertex1, To: it.Neighbour(), Weight: w})
	}
	return visits, nil
}

// TargetVisits turns a snap result into the visits a search has to reach. A point on a vertex is
// reached through every edge arriving at it.
func (d *Dykstra[T]) TargetVisits(r SearchClosestResult) ([]EdgeVisit, error) {
	if !r.Found() {
		return nil, ErrNotSnapped
	}
	if r.HasVertex2 {
		return d.edgeVisits(r)
	}

	it := d.graph.GetEdgeIterator()
	if err := it.MoveTo(r.Vertex1); err != nil {
		return nil, err
	}
	var neighbours []da.Index
	for it.MoveNext() {
		neighbours = append(neighbours, it.Neighbour())
	}

	var visits []EdgeVisit
	seen := make(map[da.EdgeID]struct{})
	for _, n := range neighbours {
		if err := it.MoveTo(n); err != nil {
			return nil, err
		}
		for it.MoveNext() {
			if it.Neighbour() != r.Vertex1 {
				continue
			}
			if _, ok := seen[it.EdgeID()]; ok {
				continue
			}
			seen[it.EdgeID()] = struct{}{}
			if math.IsInf(d.weights.Calculate(it.Data()), 1) {
				continue
			}
			visits = append(visits, EdgeVisit{EdgeID: it.EdgeID(), From: n, To: r.Vertex1})
		}
	}
	return visits, nil
}
