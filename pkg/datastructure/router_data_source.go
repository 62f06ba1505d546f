package datastructure

import (
	"sort"

	"github.com/lintang-b-s/roadgraph/pkg/tags"
)

// RouterDataSource bundles what routing over a built graph needs: the geometric graph, the tag
// collections its edges reference, restrictions and the vehicle profiles the data was built for.
type RouterDataSource[T any] struct {
	graph        *GeometricGraph[T]
	tagsIndex    tags.Index
	restrictions *RestrictionStore
	vehicles     map[string]struct{}
}

func NewRouterDataSource[T any](graph *GeometricGraph[T], tagsIndex tags.Index) *RouterDataSource[T] {
	return &RouterDataSource[T]{
		graph:        graph,
		tagsIndex:    tagsIndex,
		restrictions: NewRestrictionStore(),
		vehicles:     make(map[string]struct{}),
	}
}

func (r *RouterDataSource[T]) Graph() *GeometricGraph[T] {
	return r.graph
}

func (r *RouterDataSource[T]) TagsIndex() tags.Index {
	return r.tagsIndex
}

func (r *RouterDataSource[T]) Restrictions() *RestrictionStore {
	return r.restrictions
}

func (r *RouterDataSource[T]) AddRestriction(seq []Index) {
	r.restrictions.AddRestriction(seq)
}

func (r *RouterDataSource[T]) AddVehicleRestriction(vehicle string, seq []Index) {
	r.restrictions.AddVehicleRestriction(vehicle, seq)
}

func (r *RouterDataSource[T]) AddSupportedProfile(vehicle string) {
	r.vehicles[vehicle] = struct{}{}
}

func (r *RouterDataSource[T]) SupportsProfile(vehicle string) bool {
	_, ok := r.vehicles[vehicle]
	return ok
}

func (r *RouterDataSource[T]) SupportedProfiles() []string {
	out := make([]string, 0, len(r.vehicles))
	for v := range r.vehicles {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// TurnCostsFor compiles the restrictions of vehicle into turn costs, see CompileTurnCosts.
func (r *RouterDataSource[T]) TurnCostsFor(vehicle string) (*MemoryTurnCosts, int, error) {
	return CompileTurnCosts(r.graph.FlatGraph, r.restrictions, vehicle)
}
