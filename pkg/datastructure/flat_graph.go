package datastructure

import (
	"errors"
	"fmt"
	"math"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
)

type Index uint32

// EdgeID is a signed edge handle: |id|-1 is the stored record, a negative id traverses the
// record from its second vertex to its first.
type EdgeID int64

func (e EdgeID) Reverse() EdgeID {
	return -e
}

func (e EdgeID) IsForward() bool {
	return e > 0
}

func (e EdgeID) record() uint32 {
	if e < 0 {
		return uint32(-e - 1)
	}
	return uint32(e - 1)
}

func edgeIDOf(record uint32, forward bool) EdgeID {
	id := EdgeID(record) + 1
	if !forward {
		return -id
	}
	return id
}

const (
	EMPTY uint32 = math.MaxUint32

	edgeHeaderSize = 4
	nodeA          = 0
	nodeB          = 1
	nextA          = 2
	nextB          = 3

	defaultVertexEstimate = 1024
	defaultEdgeEstimate   = 2048
)

var (
	ErrUnknownVertex     = errors.New("unknown vertex")
	ErrSelfLoop          = errors.New("edge connects a vertex to itself")
	ErrReverseEdgeExists = errors.New("an edge in the opposite direction already exists")
	ErrDuplicateEdges    = errors.New("more than one edge connects the vertices")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrInvalidEdgeID     = errors.New("invalid edge id")
	ErrInvalidEdgeData   = errors.New("edge data has the wrong size")
)

type UnknownVertexError struct {
	Vertex      Index
	VertexCount uint32
}

func (e *UnknownVertexError) Error() string {
	return fmt.Sprintf("unknown vertex %d, graph has %d vertices", e.Vertex, e.VertexCount)
}

func (e *UnknownVertexError) Unwrap() error {
	return ErrUnknownVertex
}

// FlatGraph stores an undirected adjacency structure in two flat uint32 arrays.
// Every edge record is [vertexA, vertexB, nextForA, nextForB, data...]; the vertex array holds
// the first record of each vertex's adjacency list.
type FlatGraph struct {
	vertices hugearray.HugeArray[uint32]
	edges    hugearray.HugeArray[uint32]

	edgeDataSize int
	edgeSize     int64

	vertexCount uint32
	nextRecord  uint32
	edgeCount   int64
	duplicates  bool
}

// NewFlatGraph creates an in-memory graph whose edges carry edgeDataSize payload words.
func NewFlatGraph(edgeDataSize int) *FlatGraph {
	g, _ := NewFlatGraphWithArrays(edgeDataSize, hugearray.NewArray[uint32](defaultVertexEstimate),
		hugearray.NewArray[uint32](defaultEdgeEstimate*int64(edgeHeaderSize+edgeDataSize)), false)
	return g
}

// NewFlatGraphWithDuplicates is NewFlatGraph allowing several edges between one vertex pair.
func NewFlatGraphWithDuplicates(edgeDataSize int) *FlatGraph {
	g, _ := NewFlatGraphWithArrays(edgeDataSize, hugearray.NewArray[uint32](defaultVertexEstimate),
		hugearray.NewArray[uint32](defaultEdgeEstimate*int64(edgeHeaderSize+edgeDataSize)), true)
	return g
}

// NewFlatGraphWithArrays builds an empty graph on top of caller supplied storage, e.g. memory
// mapped arrays.
func NewFlatGraphWithArrays(edgeDataSize int, vertices, edges hugearray.HugeArray[uint32],
	duplicates bool) (*FlatGraph, error) {
	if edgeDataSize < 0 {
		return nil, ErrInvalidEdgeData
	}
	return &FlatGraph{
		vertices:     vertices,
		edges:        edges,
		edgeDataSize: edgeDataSize,
		edgeSize:     int64(edgeHeaderSize + edgeDataSize),
		duplicates:   duplicates,
	}, nil
}

func (g *FlatGraph) EdgeDataSize() int {
	return g.edgeDataSize
}

func (g *FlatGraph) VertexCount() uint32 {
	return g.vertexCount
}

// EdgeCount is the number of live edges.
func (g *FlatGraph) EdgeCount() int64 {
	return g.edgeCount
}

func (g *FlatGraph) AllowsDuplicates() bool {
	return g.duplicates
}

func (g *FlatGraph) HasVertex(v Index) bool {
	return uint32(v) < g.vertexCount
}

func (g *FlatGraph) checkVertex(v Index) error {
	if !g.HasVertex(v) {
		return &UnknownVertexError{Vertex: v, VertexCount: g.vertexCount}
	}
	return nil
}

func (g *FlatGraph) word(record uint32, field int64) uint32 {
	return g.edges.Get(int64(record)*g.edgeSize + field)
}

func (g *FlatGraph) setWord(record uint32, field int64, value uint32) {
	g.edges.Set(int64(record)*g.edgeSize+field, value)
}

func (g *FlatGraph) isRemoved(record uint32) bool {
	return g.word(record, nodeA) == EMPTY
}

func (g *FlatGraph) readData(record uint32, dst []uint32) {
	base := int64(record)*g.edgeSize + edgeHeaderSize
	for i := range dst {
		dst[i] = g.edges.Get(base + int64(i))
	}
}

func (g *FlatGraph) writeData(record uint32, data []uint32) {
	base := int64(record)*g.edgeSize + edgeHeaderSize
	for i, w := range data {
		g.edges.Set(base+int64(i), w)
	}
}

// AddVertex appends a vertex without edges and returns its id.
func (g *FlatGraph) AddVertex() (Index, error) {
	if g.vertexCount == EMPTY {
		return 0, fmt.Errorf("vertex id space exhausted: %w", ErrUnknownVertex)
	}
	if int64(g.vertexCount) >= g.vertices.Length() {
		if err := g.vertices.Resize(grow(g.vertices.Length(), int64(g.vertexCount)+1)); err != nil {
			return 0, err
		}
	}
	v := Index(g.vertexCount)
	g.vertices.Set(int64(v), EMPTY)
	g.vertexCount++
	return v, nil
}

func grow(current, needed int64) int64 {
	n := current * 2
	if n < defaultVertexEstimate {
		n = defaultVertexEstimate
	}
	if n < needed {
		n = needed
	}
	return n
}

// AddEdge connects v1 and v2. In a graph without duplicates an existing v1->v2 edge gets its data
// overwritten and an existing v2->v1 edge makes the call fail with ErrReverseEdgeExists.
func (g *FlatGraph) AddEdge(v1, v2 Index, data []uint32) (EdgeID, error) {
	if v1 == v2 {
		return 0, ErrSelfLoop
	}
	if err := g.checkVertex(v1); err != nil {
		return 0, err
	}
	if err := g.checkVertex(v2); err != nil {
		return 0, err
	}
	if len(data) != g.edgeDataSize {
		return 0, ErrInvalidEdgeData
	}

	if !g.duplicates {
		it := g.GetEdgeEnumerator()
		it.moveTo(v1)
		for it.MoveNext() {
			if it.Neighbour() != v2 {
				continue
			}
			if !it.EdgeID().IsForward() {
				return 0, ErrReverseEdgeExists
			}
			g.writeData(it.current, data)
			return it.EdgeID(), nil
		}
	}

	if g.nextRecord == EMPTY {
		return 0, fmt.Errorf("edge record space exhausted: %w", ErrInvalidEdgeID)
	}
	record := g.nextRecord
	if needed := int64(record+1) * g.edgeSize; needed > g.edges.Length() {
		if err := g.edges.Resize(grow(g.edges.Length(), needed)); err != nil {
			return 0, err
		}
	}
	g.setWord(record, nodeA, uint32(v1))
	g.setWord(record, nodeB, uint32(v2))
	g.setWord(record, nextA, g.vertices.Get(int64(v1)))
	g.setWord(record, nextB, g.vertices.Get(int64(v2)))
	g.writeData(record, data)
	g.vertices.Set(int64(v1), record)
	g.vertices.Set(int64(v2), record)

	g.nextRecord++
	g.edgeCount++
	return edgeIDOf(record, true), nil
}

func (g *FlatGraph) checkEdgeID(id EdgeID) (uint32, error) {
	if id == 0 {
		return 0, ErrInvalidEdgeID
	}
	record := id.record()
	if record >= g.nextRecord || g.isRemoved(record) {
		return 0, fmt.Errorf("%w: %d", ErrInvalidEdgeID, id)
	}
	return record, nil
}

// GetEdge returns the vertices of edge id in traversal order together with a copy of its data.
func (g *FlatGraph) GetEdge(id EdgeID) (Index, Index, []uint32, error) {
	record, err := g.checkEdgeID(id)
	if err != nil {
		return 0, 0, nil, err
	}
	v1, v2 := Index(g.word(record, nodeA)), Index(g.word(record, nodeB))
	data := make([]uint32, g.edgeDataSize)
	g.readData(record, data)
	if !id.IsForward() {
		v1, v2 = v2, v1
	}
	return v1, v2, data, nil
}

// GetEdgeBetween returns the signed id traversing v1->v2.
func (g *FlatGraph) GetEdgeBetween(v1, v2 Index) (EdgeID, error) {
	if err := g.checkVertex(v1); err != nil {
		return 0, err
	}
	if err := g.checkVertex(v2); err != nil {
		return 0, err
	}
	found := EdgeID(0)
	it := g.GetEdgeEnumerator()
	it.moveTo(v1)
	for it.MoveNext() {
		if it.Neighbour() != v2 {
			continue
		}
		if found != 0 {
			return 0, ErrDuplicateEdges
		}
		found = it.EdgeID()
		if !g.duplicates {
			break
		}
	}
	if found == 0 {
		return 0, ErrEdgeNotFound
	}
	return found, nil
}

// Edge is one adjacency entry as seen from the vertex it was listed for.
type Edge struct {
	ID        EdgeID
	Neighbour Index
	Data      []uint32
}

// GetEdges lists every edge incident to v, edges stored v2->v come back with negative ids.
func (g *FlatGraph) GetEdges(v Index) ([]Edge, error) {
	it := g.GetEdgeEnumerator()
	if err := it.MoveTo(v); err != nil {
		return nil, err
	}
	var out []Edge
	for it.MoveNext() {
		data := make([]uint32, g.edgeDataSize)
		it.CopyData(data)
		out = append(out, Edge{ID: it.EdgeID(), Neighbour: it.Neighbour(), Data: data})
	}
	return out, nil
}

// unlink removes record from the adjacency list of v.
func (g *FlatGraph) unlink(v Index, record uint32) {
	prev := EMPTY
	cur := g.vertices.Get(int64(v))
	for cur != EMPTY {
		nextField := int64(nextA)
		if Index(g.word(cur, nodeA)) != v {
			nextField = nextB
		}
		next := g.word(cur, nextField)
		if cur == record {
			if prev == EMPTY {
				g.vertices.Set(int64(v), next)
			} else {
				prevField := int64(nextA)
				if Index(g.word(prev, nodeA)) != v {
					prevField = nextB
				}
				g.setWord(prev, prevField, next)
			}
			return
		}
		prev = cur
		cur = next
	}
}

func (g *FlatGraph) removeRecord(record uint32) {
	a, b := Index(g.word(record, nodeA)), Index(g.word(record, nodeB))
	g.unlink(a, record)
	g.unlink(b, record)
	for f := int64(0); f < edgeHeaderSize; f++ {
		g.setWord(record, f, EMPTY)
	}
	g.edgeCount--
}

// RemoveEdge removes every edge between v1 and v2 regardless of direction and reports how many
// edges were removed.
func (g *FlatGraph) RemoveEdge(v1, v2 Index) (int, error) {
	if err := g.checkVertex(v1); err != nil {
		return 0, err
	}
	if err := g.checkVertex(v2); err != nil {
		return 0, err
	}
	var records []uint32
	it := g.GetEdgeEnumerator()
	it.moveTo(v1)
	for it.MoveNext() {
		if it.Neighbour() == v2 {
			records = append(records, it.current)
		}
	}
	for _, r := range records {
		g.removeRecord(r)
	}
	return len(records), nil
}

func (g *FlatGraph) RemoveEdgeByID(id EdgeID) error {
	record, err := g.checkEdgeID(id)
	if err != nil {
		return err
	}
	g.removeRecord(record)
	return nil
}

// RemoveVertex drops every edge incident to v. The vertex id stays allocated.
func (g *FlatGraph) RemoveVertex(v Index) error {
	if err := g.checkVertex(v); err != nil {
		return err
	}
	for {
		head := g.vertices.Get(int64(v))
		if head == EMPTY {
			return nil
		}
		g.removeRecord(head)
	}
}

// Resize sets the capacity of the underlying arrays, never below what is in use.
func (g *FlatGraph) Resize(vertexEstimate, edgeEstimate int64) error {
	if vertexEstimate < int64(g.vertexCount) {
		vertexEstimate = int64(g.vertexCount)
	}
	if edgeEstimate < int64(g.nextRecord) {
		edgeEstimate = int64(g.nextRecord)
	}
	if err := g.vertices.Resize(vertexEstimate); err != nil {
		return err
	}
	return g.edges.Resize(edgeEstimate * g.edgeSize)
}

// Trim shrinks the arrays to the space in use.
func (g *FlatGraph) Trim() error {
	return g.Resize(int64(g.vertexCount), int64(g.nextRecord))
}

// repoint replaces the reference to record from in the adjacency list of v with to.
func (g *FlatGraph) repoint(v Index, from, to uint32) {
	if g.vertices.Get(int64(v)) == from {
		g.vertices.Set(int64(v), to)
		return
	}
	cur := g.vertices.Get(int64(v))
	for cur != EMPTY {
		field := int64(nextA)
		if Index(g.word(cur, nodeA)) != v {
			field = nextB
		}
		next := g.word(cur, field)
		if next == from {
			g.setWord(cur, field, to)
			return
		}
		cur = next
	}
}

// Compress moves live records over the holes left by removals. onMove is called for every record
// that changes position so callers can keep parallel per-edge arrays aligned; edge ids of moved
// edges change accordingly.
func (g *FlatGraph) Compress(onMove func(from, to EdgeID)) error {
	write := uint32(0)
	for read := uint32(0); read < g.nextRecord; read++ {
		if g.isRemoved(read) {
			continue
		}
		if read != write {
			a, b := Index(g.word(read, nodeA)), Index(g.word(read, nodeB))
			g.repoint(a, read, write)
			g.repoint(b, read, write)
			for f := int64(0); f < g.edgeSize; f++ {
				g.setWord(write, f, g.word(read, f))
			}
			if onMove != nil {
				onMove(edgeIDOf(read, true), edgeIDOf(write, true))
			}
		}
		write++
	}
	g.nextRecord = write
	return nil
}

// ForEachEdge visits every live record once in storage order with its forward id.
func (g *FlatGraph) ForEachEdge(fn func(id EdgeID, v1, v2 Index, data []uint32)) {
	data := make([]uint32, g.edgeDataSize)
	for r := uint32(0); r < g.nextRecord; r++ {
		if g.isRemoved(r) {
			continue
		}
		g.readData(r, data)
		fn(edgeIDOf(r, true), Index(g.word(r, nodeA)), Index(g.word(r, nodeB)), data)
	}
}

func (g *FlatGraph) Close() error {
	return errors.Join(g.vertices.Close(), g.edges.Close())
}

// EdgeEnumerator walks the adjacency list of one vertex. It can be reused with MoveTo.
type EdgeEnumerator struct {
	g         *FlatGraph
	vertex    Index
	next      uint32
	current   uint32
	id        EdgeID
	neighbour Index
}

func (g *FlatGraph) GetEdgeEnumerator() *EdgeEnumerator {
	return &EdgeEnumerator{g: g, next: EMPTY, current: EMPTY}
}

func (e *EdgeEnumerator) MoveTo(v Index) error {
	if err := e.g.checkVertex(v); err != nil {
		return err
	}
	e.moveTo(v)
	return nil
}

func (e *EdgeEnumerator) moveTo(v Index) {
	e.vertex = v
	e.current = EMPTY
	e.next = e.g.vertices.Get(int64(v))
}

func (e *EdgeEnumerator) MoveNext() bool {
	if e.next == EMPTY {
		return false
	}
	e.current = e.next
	a := Index(e.g.word(e.current, nodeA))
	if a == e.vertex {
		e.neighbour = Index(e.g.word(e.current, nodeB))
		e.id = edgeIDOf(e.current, true)
		e.next = e.g.word(e.current, nextA)
	} else {
		e.neighbour = a
		e.id = edgeIDOf(e.current, false)
		e.next = e.g.word(e.current, nextB)
	}
	return true
}

func (e *EdgeEnumerator) Vertex() Index {
	return e.vertex
}

func (e *EdgeEnumerator) EdgeID() EdgeID {
	return e.id
}

func (e *EdgeEnumerator) Neighbour() Index {
	return e.neighbour
}

// CopyData copies the stored (unoriented) payload of the current edge into dst.
func (e *EdgeEnumerator) CopyData(dst []uint32) {
	e.g.readData(e.current, dst)
}
