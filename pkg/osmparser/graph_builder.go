package osmparser

import (
	"context"
	"errors"
	"fmt"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/osmstream"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/osm"
	"go.uber.org/zap"
)

const progressEvery = 100000

// collapsed remembers the vertices around a node folded into an edge shape.
type collapsed struct {
	from, to datastructure.Index
}

// GraphBuilder reads the stream twice. The first pass finds the nodes that become vertices: way
// ends, nodes shared by ways, restriction via nodes and closed barriers. The second pass builds
// the graph, nodes used by a single way become shape points.
type GraphBuilder struct {
	interpreter Interpreter
	log         *zap.Logger

	// BufferSize is the read ahead of the object stream.
	BufferSize int
	// KeepIntermediates turns every way node into a vertex.
	KeepIntermediates bool
	// Graph receives the vertices and edges, an in memory graph when nil.
	Graph *datastructure.GeometricGraph[datastructure.LiveEdge]

	used           map[osm.NodeID]struct{}
	relevant       map[osm.NodeID]struct{}
	barriers       map[osm.NodeID]struct{}
	restrictedWays map[osm.WayID]struct{}
	cachedWays     map[osm.WayID]*osm.Way
	coordinates    map[osm.NodeID]datastructure.Coordinate
	vertices       map[osm.NodeID]datastructure.Index
	collapsed      map[osm.NodeID]collapsed

	data *datastructure.RouterDataSource[datastructure.LiveEdge]
}

func NewGraphBuilder(interpreter Interpreter, log *zap.Logger) *GraphBuilder {
	if log == nil {
		log = zap.NewNop()
	}
	return &GraphBuilder{interpreter: interpreter, log: log}
}

func (b *GraphBuilder) reset() {
	b.used = make(map[osm.NodeID]struct{})
	b.relevant = make(map[osm.NodeID]struct{})
	b.barriers = make(map[osm.NodeID]struct{})
	b.restrictedWays = make(map[osm.WayID]struct{})
	b.cachedWays = make(map[osm.WayID]*osm.Way)
	b.coordinates = make(map[osm.NodeID]datastructure.Coordinate)
	b.vertices = make(map[osm.NodeID]datastructure.Index)
	b.collapsed = make(map[osm.NodeID]collapsed)

	graph := b.Graph
	if graph == nil {
		graph = datastructure.NewGeometricGraph[datastructure.LiveEdge](datastructure.LiveEdgeCodec{})
	}
	b.data = datastructure.NewRouterDataSource(graph, tags.NewMemoryIndex())
}

func (b *GraphBuilder) release() {
	b.used, b.relevant, b.barriers = nil, nil, nil
	b.restrictedWays, b.cachedWays = nil, nil
	b.coordinates, b.vertices, b.collapsed = nil, nil, nil
	b.data = nil
}

// Build runs both passes over the objects of open and returns the uncontracted routing data.
func (b *GraphBuilder) Build(ctx context.Context, open osmstream.OpenFunc) (*datastructure.RouterDataSource[datastructure.LiveEdge], error) {
	b.reset()
	defer b.release()
	stream, err := osmstream.New(open, b.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("opening osm stream: %w", err)
	}
	defer stream.Close()

	if err := b.pass(ctx, stream, b.index); err != nil {
		return nil, fmt.Errorf("indexing osm ways: %w", err)
	}
	for n := range b.barriers {
		if _, ok := b.used[n]; ok {
			b.relevant[n] = struct{}{}
		}
	}
	b.barriers = nil
	b.log.Info("indexed openstreetmap ways",
		zap.Int("usedNodes", len(b.used)), zap.Int("relevantNodes", len(b.relevant)))

	estimate := int64(len(b.relevant)) + int64(len(b.relevant))/10
	if err := b.data.Graph().Resize(estimate, estimate*2); err != nil {
		return nil, err
	}

	if err := stream.Reset(); err != nil {
		return nil, fmt.Errorf("resetting osm stream: %w", err)
	}
	if err := b.pass(ctx, stream, b.load); err != nil {
		return nil, fmt.Errorf("building graph: %w", err)
	}
	if err := b.data.Graph().Trim(); err != nil {
		return nil, err
	}

	data := b.data
	b.log.Info("built road graph",
		zap.Uint32("vertices", data.Graph().VertexCount()),
		zap.Int64("edges", data.Graph().EdgeCount()),
		zap.Int("restrictions", data.Restrictions().Len()))
	return data, nil
}

func (b *GraphBuilder) pass(ctx context.Context, stream osm.Scanner, fn func(osm.Object) error) error {
	count := 0
	for stream.Scan() {
		count++
		if count%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
			b.log.Sugar().Debugf("scanned openstreetmap objects: %d...", count)
		}
		if err := fn(stream.Object()); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// index is the first pass.
func (b *GraphBuilder) index(o osm.Object) error {
	switch obj := o.(type) {
	case *osm.Node:
		if b.interpreter.IsRestriction(osm.TypeNode, obj.Tags) && len(b.interpreter.NodeRestriction(obj)) > 0 {
			b.barriers[obj.ID] = struct{}{}
		}
	case *osm.Way:
		if !b.interpreter.IsRoutable(obj.Tags) || len(obj.Nodes) == 0 {
			return nil
		}
		for _, n := range obj.Nodes {
			if _, ok := b.used[n.ID]; ok || b.KeepIntermediates {
				b.relevant[n.ID] = struct{}{}
			}
			b.used[n.ID] = struct{}{}
		}
		b.relevant[obj.Nodes[0].ID] = struct{}{}
		b.relevant[obj.Nodes[len(obj.Nodes)-1].ID] = struct{}{}
	case *osm.Relation:
		if !b.interpreter.IsRestriction(osm.TypeRelation, obj.Tags) {
			return nil
		}
		for _, m := range obj.Members {
			switch m.Type {
			case osm.TypeNode:
				b.relevant[osm.NodeID(m.Ref)] = struct{}{}
			case osm.TypeWay:
				b.restrictedWays[osm.WayID(m.Ref)] = struct{}{}
			}
		}
	}
	return nil
}

// load is the second pass.
func (b *GraphBuilder) load(o osm.Object) error {
	switch obj := o.(type) {
	case *osm.Node:
		return b.addNode(obj)
	case *osm.Way:
		if _, ok := b.restrictedWays[obj.ID]; ok {
			b.cachedWays[obj.ID] = obj
		}
		return b.addWay(obj)
	case *osm.Relation:
		return b.addRelation(obj)
	}
	return nil
}

func (b *GraphBuilder) addNode(node *osm.Node) error {
	if _, ok := b.used[node.ID]; !ok {
		return nil
	}
	b.coordinates[node.ID] = datastructure.NewCoordinate(node.Lat, node.Lon)

	if !b.interpreter.IsRestriction(osm.TypeNode, node.Tags) {
		return nil
	}
	vehicles := b.interpreter.NodeRestriction(node)
	if len(vehicles) == 0 {
		return nil
	}
	v, ok, err := b.addRoadNode(node.ID)
	if err != nil || !ok {
		return err
	}
	b.addRestriction(vehicles, []datastructure.Index{v})
	return nil
}

func (b *GraphBuilder) addRestriction(vehicles []string, seq []datastructure.Index) {
	for _, vehicle := range vehicles {
		if vehicle == "" {
			b.data.AddRestriction(seq)
			return
		}
	}
	for _, vehicle := range vehicles {
		b.data.AddVehicleRestriction(vehicle, seq)
	}
}

// addRoadNode returns the vertex of an OSM node, creating it from the stored coordinate. Only
// relevant nodes are remembered, ok is false when the coordinate is unknown.
func (b *GraphBuilder) addRoadNode(id osm.NodeID) (datastructure.Index, bool, error) {
	if v, ok := b.vertices[id]; ok {
		return v, true, nil
	}
	c, ok := b.coordinates[id]
	if !ok {
		return 0, false, nil
	}
	v, err := b.data.Graph().AddVertex(c.Lat, c.Lon)
	if err != nil {
		return 0, false, err
	}
	delete(b.coordinates, id)
	if _, ok := b.relevant[id]; ok {
		b.vertices[id] = v
	}
	return v, true, nil
}

func (b *GraphBuilder) edgeTags(way *osm.Way) uint32 {
	kept := make(osm.Tags, 0, len(way.Tags))
	for _, t := range way.Tags {
		if b.interpreter.IsRelevantTagKey(t.Key) {
			kept = append(kept, t)
		}
	}
	return b.data.TagsIndex().Add(kept)
}

func (b *GraphBuilder) addWay(way *osm.Way) error {
	if len(way.Nodes) < 2 || !b.interpreter.IsRoutable(way.Tags) {
		return nil
	}
	tagsID := b.edgeTags(way)
	_, restricted := b.restrictedWays[way.ID]

	from, fromOK, err := b.addRoadNode(way.Nodes[0].ID)
	if err != nil {
		return err
	}
	var intermediates []osm.NodeID
	last := len(way.Nodes) - 1
	for i := 1; i <= last; i++ {
		current := way.Nodes[i].ID
		if _, ok := b.relevant[current]; !ok && i != last {
			intermediates = append(intermediates, current)
			continue
		}

		to, toOK, err := b.addRoadNode(current)
		if err != nil {
			return err
		}
		if fromOK && toOK {
			// split loops and parallel ways at their shape points so no edge is overwritten
			for len(intermediates) > 0 && (from == to || b.hasEdge(from, to)) {
				split, ok, err := b.addRoadNode(intermediates[0])
				if err != nil {
					return err
				}
				intermediates = intermediates[1:]
				if ok && split != from {
					if err := b.addRoadEdge(from, split, tagsID, nil); err != nil {
						return err
					}
					from = split
				}
			}

			shape := make([]datastructure.Coordinate, 0, len(intermediates))
			for _, n := range intermediates {
				c, ok := b.coordinates[n]
				if !ok {
					break
				}
				shape = append(shape, c)
			}
			if len(shape) == len(intermediates) && from != to {
				if err := b.addRoadEdge(from, to, tagsID, shape); err != nil {
					return err
				}
			}

			if restricted {
				for _, n := range intermediates {
					b.collapsed[n] = collapsed{from: from, to: to}
				}
			}
		}

		from, fromOK = to, toOK
		intermediates = intermediates[:0]
	}
	return nil
}

func (b *GraphBuilder) hasEdge(from, to datastructure.Index) bool {
	_, err := b.data.Graph().GetEdgeBetween(from, to)
	return err == nil
}

// addRoadEdge stores the edge in the direction of an existing edge between the same vertices so a
// parallel way overwrites it instead of being rejected.
func (b *GraphBuilder) addRoadEdge(from, to datastructure.Index, tagsID uint32, shape []datastructure.Coordinate) error {
	g := b.data.Graph()
	fromLat, fromLon, ok := g.GetVertex(from)
	if !ok {
		return nil
	}
	toLat, toLon, ok := g.GetVertex(to)
	if !ok {
		return nil
	}

	forward := true
	existing, err := g.GetEdgeBetween(from, to)
	switch {
	case err == nil:
		forward = existing.IsForward()
	case !errors.Is(err, datastructure.ErrEdgeNotFound):
		return err
	}

	points := make([]geo.Coordinate, 0, len(shape)+2)
	points = append(points, geo.NewCoordinate(float64(fromLat), float64(fromLon)))
	for _, c := range shape {
		points = append(points, geo.NewCoordinate(float64(c.Lat), float64(c.Lon)))
	}
	points = append(points, geo.NewCoordinate(float64(toLat), float64(toLon)))

	edge := datastructure.LiveEdge{
		Tags:     tagsID,
		Forward:  forward,
		Distance: float32(geo.PolylineLengthMeters(points)),
	}
	if forward {
		_, err = g.AddEdge(from, to, edge, shape)
		return err
	}
	reversed := make([]datastructure.Coordinate, len(shape))
	for i, c := range shape {
		reversed[len(shape)-1-i] = c
	}
	_, err = g.AddEdge(to, from, edge, reversed)
	return err
}

func (b *GraphBuilder) addRelation(rel *osm.Relation) error {
	if !b.interpreter.IsRestriction(osm.TypeRelation, rel.Tags) {
		return nil
	}
	lookup := func(id osm.WayID) (*osm.Way, bool) {
		w, ok := b.cachedWays[id]
		return w, ok
	}
	for _, r := range b.interpreter.RelationRestriction(rel, lookup) {
		seq, ok := b.remap(r.Nodes)
		if !ok {
			b.log.Debug("skipping unresolvable restriction", zap.Int64("relation", int64(rel.ID)))
			continue
		}
		b.addRestriction([]string{r.Vehicle}, seq)
	}
	return nil
}

// remap translates a node sequence into vertices. A node folded into an edge is replaced by the
// edge end that is not its neighbour in the sequence.
func (b *GraphBuilder) remap(nodes []osm.NodeID) ([]datastructure.Index, bool) {
	seq := make([]datastructure.Index, 0, len(nodes))
	var pending *collapsed
	hasPrevious := false
	previous := datastructure.Index(0)

	for _, n := range nodes {
		if v, ok := b.vertices[n]; ok {
			if pending != nil {
				switch v {
				case pending.from:
					seq = append(seq, pending.to)
				case pending.to:
					seq = append(seq, pending.from)
				default:
					return nil, false
				}
				pending = nil
			}
			if !hasPrevious || previous != v {
				hasPrevious = true
				previous = v
				seq = append(seq, v)
			}
			continue
		}

		c, ok := b.collapsed[n]
		if !ok {
			return nil, false
		}
		if !hasPrevious {
			pending = &c
			continue
		}
		switch previous {
		case c.from:
			seq = append(seq, c.to)
		case c.to:
			seq = append(seq, c.from)
		default:
			return nil, false
		}
	}
	return seq, true
}
