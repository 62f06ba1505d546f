package spatialindex

import (
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/paulmach/orb"
	"github.com/tidwall/rtree"
	"go.uber.org/zap"
)

// EdgeRef identifies an indexed edge by its forward id and endpoints.
type EdgeRef struct {
	ID   datastructure.EdgeID
	From datastructure.Index
	To   datastructure.Index
}

// Rtree indexes the bounding boxes of graph edges, endpoints and shape points included.
type Rtree struct {
	tr *rtree.RTreeG[EdgeRef]
}

func NewRtree() *Rtree {
	var tr rtree.RTreeG[EdgeRef]
	return &Rtree{
		tr: &tr,
	}
}

func (rt *Rtree) Insert(b orb.Bound, ref EdgeRef) {
	rt.tr.Insert([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]}, ref)
}

func (rt *Rtree) Len() int {
	return rt.tr.Len()
}

// Build indexes every edge of graph.
func Build[T any](graph *datastructure.GeometricGraph[T], log *zap.Logger) *Rtree {
	rt := NewRtree()
	total := graph.EdgeCount()
	log.Info("Building R-tree spatial index...", zap.Int64("edges", total))

	step := total / 10
	if step == 0 {
		step = 1
	}
	done := int64(0)
	graph.ForEachEdge(func(id datastructure.EdgeID, from, to datastructure.Index, _ T) {
		fromLat, fromLon, _ := graph.GetVertex(from)
		toLat, toLon, _ := graph.GetVertex(to)
		points := []geo.Coordinate{
			geo.NewCoordinate(float64(fromLat), float64(fromLon)),
			geo.NewCoordinate(float64(toLat), float64(toLon)),
		}
		shape, _ := graph.GetEdgeShape(id)
		for _, c := range shape {
			points = append(points, geo.NewCoordinate(float64(c.Lat), float64(c.Lon)))
		}
		rt.Insert(geo.BoundOf(points...), EdgeRef{ID: id, From: from, To: to})

		done++
		if done%step == 0 {
			log.Debug("Building R-tree spatial index...", zap.Float64("progress", float64(done)*100/float64(total)))
		}
	})

	log.Info("R-tree spatial index built.", zap.Int("entries", rt.Len()))
	return rt
}

// Search returns every edge whose bounding box intersects b.
func (rt *Rtree) Search(b orb.Bound) []EdgeRef {
	results := make([]EdgeRef, 0, 16)
	rt.tr.Search([2]float64{b.Min[0], b.Min[1]}, [2]float64{b.Max[0], b.Max[1]},
		func(min, max [2]float64, data EdgeRef) bool {
			results = append(results, data)
			return true
		})
	return results
}

// SearchWithinRadius search for at most limit edges within radius (in km) from the query point (qLat, qLon)
func (rt *Rtree) SearchWithinRadius(qLat, qLon, radius float64, limit int) []EdgeRef {
	lowerLat, lowerLon := geo.GetDestinationPoint(qLat, qLon, 225, radius)
	upperLat, upperLon := geo.GetDestinationPoint(qLat, qLon, 45, radius)

	results := make([]EdgeRef, 0, 10)
	rt.tr.Search([2]float64{lowerLon, lowerLat}, [2]float64{upperLon, upperLat},
		func(min, max [2]float64, data EdgeRef) bool {
			results = append(results, data)
			return limit <= 0 || len(results) < limit
		})
	return results
}
