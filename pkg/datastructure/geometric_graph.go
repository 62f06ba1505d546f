package datastructure

import (
	"errors"
	"fmt"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
)

// GeometricGraph is a TypedGraph with a coordinate per vertex and an optional shape per edge.
type GeometricGraph[T any] struct {
	*TypedGraph[T]
	coordinates hugearray.HugeArray[Coordinate]
	shapes      *ShapeIndex
}

func NewGeometricGraph[T any](codec EdgeDataCodec[T]) *GeometricGraph[T] {
	return &GeometricGraph[T]{
		TypedGraph:  NewTypedGraph(codec),
		coordinates: hugearray.NewArray[Coordinate](defaultVertexEstimate),
		shapes: NewShapeIndex(hugearray.NewArray[uint64](defaultEdgeEstimate),
			hugearray.NewArray[Coordinate](defaultEdgeEstimate)),
	}
}

// NewMemoryMappedGeometricGraph keeps every array of the graph in regions created by factory.
func NewMemoryMappedGeometricGraph[T any](factory hugearray.FileFactory, codec EdgeDataCodec[T],
	name string, opts ...hugearray.Option) (*GeometricGraph[T], error) {
	var arrays []interface{ Close() error }
	fail := func(err error) (*GeometricGraph[T], error) {
		for _, a := range arrays {
			err = errors.Join(err, a.Close())
		}
		return nil, err
	}

	vertices, err := hugearray.NewMemoryMapped[uint32](factory, hugearray.Uint32Codec{}, name+"-vertices",
		defaultVertexEstimate, opts...)
	if err != nil {
		return fail(err)
	}
	arrays = append(arrays, vertices)
	edges, err := hugearray.NewMemoryMapped[uint32](factory, hugearray.Uint32Codec{}, name+"-edges",
		defaultEdgeEstimate*int64(edgeHeaderSize+codec.Size()), opts...)
	if err != nil {
		return fail(err)
	}
	arrays = append(arrays, edges)
	coordinates, err := hugearray.NewMemoryMapped[Coordinate](factory, CoordinateCodec{}, name+"-coordinates",
		defaultVertexEstimate, opts...)
	if err != nil {
		return fail(err)
	}
	arrays = append(arrays, coordinates)
	pointers, err := hugearray.NewMemoryMapped[uint64](factory, hugearray.Uint64Codec{}, name+"-shape-index",
		defaultEdgeEstimate, opts...)
	if err != nil {
		return fail(err)
	}
	arrays = append(arrays, pointers)
	pool, err := hugearray.NewMemoryMapped[Coordinate](factory, CoordinateCodec{}, name+"-shapes",
		defaultEdgeEstimate, opts...)
	if err != nil {
		return fail(err)
	}

	flat, err := NewFlatGraphWithArrays(codec.Size(), vertices, edges, false)
	if err != nil {
		arrays = append(arrays, pool)
		return fail(err)
	}
	typed, err := NewTypedGraphWith(flat, codec)
	if err != nil {
		arrays = append(arrays, pool)
		return fail(err)
	}
	return &GeometricGraph[T]{
		TypedGraph:  typed,
		coordinates: coordinates,
		shapes:      NewShapeIndex(pointers, pool),
	}, nil
}

func (g *GeometricGraph[T]) AddVertex(lat, lon float32) (Index, error) {
	v, err := g.TypedGraph.AddVertex()
	if err != nil {
		return 0, err
	}
	if int64(v) >= g.coordinates.Length() {
		if err := g.coordinates.Resize(grow(g.coordinates.Length(), int64(v)+1)); err != nil {
			return 0, err
		}
	}
	g.coordinates.Set(int64(v), Coordinate{Lat: lat, Lon: lon})
	return v, nil
}

func (g *GeometricGraph[T]) SetVertex(v Index, lat, lon float32) error {
	if err := g.checkVertex(v); err != nil {
		return err
	}
	g.coordinates.Set(int64(v), Coordinate{Lat: lat, Lon: lon})
	return nil
}

// GetVertex returns the coordinate of v, ok is false when v does not exist.
func (g *GeometricGraph[T]) GetVertex(v Index) (float32, float32, bool) {
	if !g.HasVertex(v) {
		return 0, 0, false
	}
	c := g.coordinates.Get(int64(v))
	return c.Lat, c.Lon, true
}

// AddEdge adds (or overwrites, see FlatGraph.AddEdge) an edge with its intermediate coordinates
// listed in the from->to direction.
func (g *GeometricGraph[T]) AddEdge(from, to Index, data T, shape []Coordinate) (EdgeID, error) {
	id, err := g.TypedGraph.AddEdge(from, to, data)
	if err != nil {
		return 0, err
	}
	if err := g.shapes.Set(id.record(), shape); err != nil {
		return 0, fmt.Errorf("storing shape of edge %d: %w", id, err)
	}
	return id, nil
}

// GetEdgeShape returns the intermediate coordinates in traversal order of id.
func (g *GeometricGraph[T]) GetEdgeShape(id EdgeID) ([]Coordinate, error) {
	record, err := g.checkEdgeID(id)
	if err != nil {
		return nil, err
	}
	shape := g.shapes.Get(record)
	if !id.IsForward() {
		shape = reverseCoordinates(shape)
	}
	return shape, nil
}

// Compress closes holes left by removed edges and keeps shapes attached to their edges.
func (g *GeometricGraph[T]) Compress() error {
	var moveErr error
	err := g.FlatGraph.Compress(func(from, to EdgeID) {
		if moveErr == nil {
			moveErr = g.shapes.Move(from.record(), to.record())
		}
	})
	if err != nil {
		return err
	}
	if moveErr != nil {
		return moveErr
	}
	return g.shapes.Compact(g.nextRecord)
}

func (g *GeometricGraph[T]) Resize(vertexEstimate, edgeEstimate int64) error {
	if err := g.FlatGraph.Resize(vertexEstimate, edgeEstimate); err != nil {
		return err
	}
	if vertexEstimate < int64(g.vertexCount) {
		vertexEstimate = int64(g.vertexCount)
	}
	return g.coordinates.Resize(vertexEstimate)
}

// Trim shrinks every array to the space in use.
func (g *GeometricGraph[T]) Trim() error {
	if err := g.FlatGraph.Trim(); err != nil {
		return err
	}
	if err := g.coordinates.Resize(int64(g.vertexCount)); err != nil {
		return err
	}
	return g.shapes.Compact(g.nextRecord)
}

func (g *GeometricGraph[T]) Close() error {
	return errors.Join(g.FlatGraph.Close(), g.coordinates.Close(), g.shapes.Close())
}
