package usecases

import (
	da "github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/routing"
)

// RoutingData is the read side of a contracted routing file, see contracted.DataSource.
type RoutingData interface {
	routing.SearchSource
	da.AdjacencyGraph[da.ContractedEdge]
	GetVertex(v da.Index) (float32, float32, error)
	GetEdgeShape(id da.EdgeID) ([]da.Coordinate, error)
}
