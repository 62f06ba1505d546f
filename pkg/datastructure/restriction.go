package datastructure

import (
	"errors"
	"sort"
)

// Restriction is a prohibited sequence of vertices. A single vertex restriction blocks passing
// through that vertex.
type Restriction []Index

type RestrictionStore struct {
	global    []Restriction
	byVehicle map[string][]Restriction
}

func NewRestrictionStore() *RestrictionStore {
	return &RestrictionStore{byVehicle: make(map[string][]Restriction)}
}

func (s *RestrictionStore) AddRestriction(seq []Index) {
	if len(seq) == 0 {
		return
	}
	s.global = append(s.global, append(Restriction(nil), seq...))
}

func (s *RestrictionStore) AddVehicleRestriction(vehicle string, seq []Index) {
	if len(seq) == 0 {
		return
	}
	s.byVehicle[vehicle] = append(s.byVehicle[vehicle], append(Restriction(nil), seq...))
}

// Restrictions returns the restrictions that apply to vehicle: the global ones followed by the
// vehicle specific ones.
func (s *RestrictionStore) Restrictions(vehicle string) []Restriction {
	out := make([]Restriction, 0, len(s.global)+len(s.byVehicle[vehicle]))
	out = append(out, s.global...)
	return append(out, s.byVehicle[vehicle]...)
}

func (s *RestrictionStore) Global() []Restriction {
	return s.global
}

// VehicleRestrictions returns only the restrictions added for vehicle.
func (s *RestrictionStore) VehicleRestrictions(vehicle string) []Restriction {
	return s.byVehicle[vehicle]
}

func (s *RestrictionStore) Vehicles() []string {
	out := make([]string, 0, len(s.byVehicle))
	for v := range s.byVehicle {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s *RestrictionStore) Len() int {
	n := len(s.global)
	for _, r := range s.byVehicle {
		n += len(r)
	}
	return n
}

// CompileTurnCosts turns the restrictions of vehicle into turn costs on g: for [.., x, via, y] the
// turn edge(x,via) -> edge(via,y) at via is prohibited. Restrictions referring to missing or
// ambiguous edges are skipped and counted.
func CompileTurnCosts(g *FlatGraph, store *RestrictionStore, vehicle string) (*MemoryTurnCosts, int, error) {
	costs := NewMemoryTurnCosts(vehicle)
	skipped := 0
	for _, r := range store.Restrictions(vehicle) {
		if len(r) == 1 {
			if !g.HasVertex(r[0]) {
				skipped++
				continue
			}
			costs.BlockVertex(r[0])
			continue
		}
		if len(r) < 3 {
			skipped++
			continue
		}
		n := len(r)
		from, via, to := r[n-3], r[n-2], r[n-1]
		in, err := g.GetEdgeBetween(from, via)
		if err != nil {
			if isSkippable(err) {
				skipped++
				continue
			}
			return nil, 0, err
		}
		out, err := g.GetEdgeBetween(via, to)
		if err != nil {
			if isSkippable(err) {
				skipped++
				continue
			}
			return nil, 0, err
		}
		costs.Prohibit(via, in, out)
	}
	return costs, skipped, nil
}

func isSkippable(err error) bool {
	return errors.Is(err, ErrEdgeNotFound) || errors.Is(err, ErrDuplicateEdges) || errors.Is(err, ErrUnknownVertex)
}
