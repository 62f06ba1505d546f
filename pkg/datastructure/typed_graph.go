package datastructure

// EdgeIterator walks the edges incident to one vertex, exposing payloads oriented in the
// direction of traversal.
type EdgeIterator[T any] interface {
	MoveTo(v Index) error
	MoveNext() bool
	EdgeID() EdgeID
	Neighbour() Index
	Data() T
}

// AdjacencyGraph is the read side the search algorithms need.
type AdjacencyGraph[T any] interface {
	VertexCount() uint32
	GetEdgeIterator() EdgeIterator[T]
}

// TypedGraph couples a FlatGraph with the codec of its edge payload.
type TypedGraph[T any] struct {
	*FlatGraph
	codec EdgeDataCodec[T]
	buf   []uint32
}

func NewTypedGraph[T any](codec EdgeDataCodec[T]) *TypedGraph[T] {
	return &TypedGraph[T]{FlatGraph: NewFlatGraph(codec.Size()), codec: codec, buf: make([]uint32, codec.Size())}
}

// NewTypedGraphWith wraps an existing flat graph whose payload size matches the codec.
func NewTypedGraphWith[T any](g *FlatGraph, codec EdgeDataCodec[T]) (*TypedGraph[T], error) {
	if g.EdgeDataSize() != codec.Size() {
		return nil, ErrInvalidEdgeData
	}
	return &TypedGraph[T]{FlatGraph: g, codec: codec, buf: make([]uint32, codec.Size())}, nil
}

func (g *TypedGraph[T]) Codec() EdgeDataCodec[T] {
	return g.codec
}

func (g *TypedGraph[T]) AddEdge(v1, v2 Index, data T) (EdgeID, error) {
	g.codec.Encode(data, g.buf)
	return g.FlatGraph.AddEdge(v1, v2, g.buf)
}

// GetEdge returns the vertices of id in traversal order and the payload oriented the same way.
func (g *TypedGraph[T]) GetEdge(id EdgeID) (Index, Index, T, error) {
	v1, v2, words, err := g.FlatGraph.GetEdge(id)
	if err != nil {
		var zero T
		return 0, 0, zero, err
	}
	data := g.codec.Decode(words)
	if !id.IsForward() {
		data = g.codec.Reverse(data)
	}
	return v1, v2, data, nil
}

func (g *TypedGraph[T]) ForEachEdge(fn func(id EdgeID, v1, v2 Index, data T)) {
	g.FlatGraph.ForEachEdge(func(id EdgeID, v1, v2 Index, words []uint32) {
		fn(id, v1, v2, g.codec.Decode(words))
	})
}

func (g *TypedGraph[T]) GetEdgeIterator() EdgeIterator[T] {
	return g.GetTypedEnumerator()
}

func (g *TypedGraph[T]) GetTypedEnumerator() *TypedEdgeEnumerator[T] {
	return &TypedEdgeEnumerator[T]{
		EdgeEnumerator: g.FlatGraph.GetEdgeEnumerator(),
		codec:          g.codec,
		buf:            make([]uint32, g.codec.Size()),
	}
}

type TypedEdgeEnumerator[T any] struct {
	*EdgeEnumerator
	codec EdgeDataCodec[T]
	buf   []uint32
}

func (e *TypedEdgeEnumerator[T]) Data() T {
	e.CopyData(e.buf)
	data := e.codec.Decode(e.buf)
	if !e.EdgeID().IsForward() {
		data = e.codec.Reverse(data)
	}
	return data
}
