package contracted

import (
	"fmt"
	"math"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/paulmach/osm"
)

// Vehicle is the part of a routing profile the builder needs.
type Vehicle interface {
	UniqueName() string
	CanTraverse(tags osm.Tags) bool
	Weight(tags osm.Tags, distance float64) float64
}

type oneWayVehicle interface {
	IsOneWay(tags osm.Tags) (oneway, reverse bool)
}

// BuildUncontracted weighs every road segment of src for vehicle and stores the result as
// CHEdgeData without shortcuts. Vertex ids, shapes, tags and restrictions are kept. Segments the
// vehicle cannot use are left out.
func BuildUncontracted(src *datastructure.RouterDataSource[datastructure.LiveEdge],
	vehicle Vehicle) (*datastructure.RouterDataSource[datastructure.CHEdgeData], error) {
	in := src.Graph()
	out := datastructure.NewGeometricGraph[datastructure.CHEdgeData](datastructure.CHEdgeDataCodec{})
	if err := out.Resize(int64(in.VertexCount()), in.EdgeCount()); err != nil {
		return nil, err
	}
	for v := uint32(0); v < in.VertexCount(); v++ {
		lat, lon, _ := in.GetVertex(datastructure.Index(v))
		if _, err := out.AddVertex(lat, lon); err != nil {
			return nil, err
		}
	}

	oneWay, hasOneWay := vehicle.(oneWayVehicle)
	index := src.TagsIndex()
	var buildErr error
	in.ForEachEdge(func(id datastructure.EdgeID, v1, v2 datastructure.Index, e datastructure.LiveEdge) {
		if buildErr != nil {
			return
		}
		t, ok := index.Get(e.Tags)
		if !ok {
			buildErr = fmt.Errorf("edge %d references unknown tags %d", id, e.Tags)
			return
		}
		if !vehicle.CanTraverse(t) {
			return
		}
		w := vehicle.Weight(t, float64(e.Distance))
		if math.IsInf(w, 1) {
			return
		}

		meta := datastructure.MetaForward | datastructure.MetaBackward | datastructure.MetaNeighbour
		if hasOneWay {
			if oneway, reverse := oneWay.IsOneWay(t); oneway {
				// reverse is relative to the way, e.Forward tells how the edge is stored
				if reverse == e.Forward {
					meta &^= datastructure.MetaForward
				} else {
					meta &^= datastructure.MetaBackward
				}
			}
		}
		shape, err := in.GetEdgeShape(id)
		if err != nil {
			buildErr = err
			return
		}
		data := datastructure.CHEdgeData{
			ForwardWeight:  float32(w),
			BackwardWeight: float32(w),
			Tags:           e.Tags,
			Meta:           meta,
		}
		if _, err := out.AddEdge(v1, v2, data, shape); err != nil {
			buildErr = fmt.Errorf("adding edge %d-%d: %w", v1, v2, err)
		}
	})
	if buildErr != nil {
		return nil, buildErr
	}

	dst := datastructure.NewRouterDataSource(out, index)
	store := src.Restrictions()
	for _, r := range store.Global() {
		dst.AddRestriction(r)
	}
	for _, name := range store.Vehicles() {
		for _, r := range store.VehicleRestrictions(name) {
			dst.AddVehicleRestriction(name, r)
		}
	}
	for _, p := range src.SupportedProfiles() {
		dst.AddSupportedProfile(p)
	}
	dst.AddSupportedProfile(vehicle.UniqueName())
	return dst, nil
}
