package contracted

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sort"

	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/lintang-b-s/roadgraph/pkg/concurrent"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Serializer writes and opens contracted graph files. Written files record their RegionZoom; when
// opening a file that does not, RegionZoom must match the zoom it was written with.
type Serializer struct {
	RegionZoom      uint32
	BlockVertexSize uint32
	TagsCodec       tags.BlockCodec
	// CacheSize is the number of decoded blocks kept per section by an opened DataSource.
	CacheSize int
	Logger    *zap.Logger
}

func NewSerializer(log *zap.Logger) *Serializer {
	return &Serializer{
		RegionZoom:      pkg.DEFAULT_REGION_ZOOM,
		BlockVertexSize: pkg.DEFAULT_BLOCK_VERTEX_SIZE,
		TagsCodec:       tags.ProtoBlockCodec{},
		CacheSize:       1000,
		Logger:          log,
	}
}

func (s *Serializer) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// section is the encoded form of one block structured section.
type section struct {
	index  []byte
	blocks [][]byte
}

func (s section) size() int {
	n := 4 + len(s.index)
	for _, b := range s.blocks {
		n += len(b)
	}
	return n
}

func (s section) writeTo(w io.Writer) error {
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(len(s.index)))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	if _, err := w.Write(s.index); err != nil {
		return err
	}
	for _, b := range s.blocks {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

// compressSection gzips every raw block on a worker pool and builds the block index.
func compressSection(ctx context.Context, raws [][]byte) (section, error) {
	blocks, err := concurrent.Map(ctx, runtime.GOMAXPROCS(0), raws, func(_ context.Context, raw []byte) ([]byte, error) {
		return compress(raw)
	})
	if err != nil {
		return section{}, fmt.Errorf("compressing blocks: %w", err)
	}

	index := BlockIndex{LocationIndex: make([]int32, len(blocks))}
	end := 0
	for i, b := range blocks {
		end += len(b)
		if end > math.MaxInt32 {
			return section{}, fmt.Errorf("section exceeds %d bytes", math.MaxInt32)
		}
		index.LocationIndex[i] = int32(end)
	}
	return section{index: index.Marshal(), blocks: blocks}, nil
}

// Serialize writes src. In-memory vertex v is stored as vertex v+1.
func (s *Serializer) Serialize(ctx context.Context, w io.Writer,
	src *datastructure.RouterDataSource[datastructure.CHEdgeData]) error {
	g := src.Graph()
	n := g.VertexCount()
	bs := s.BlockVertexSize
	if bs == 0 {
		bs = pkg.DEFAULT_BLOCK_VERTEX_SIZE
	}
	s.logger().Info("serializing contracted graph", zap.Uint32("vertices", n), zap.Int64("edges", g.EdgeCount()),
		zap.Uint32("blockVertexSize", bs), zap.Uint32("regionZoom", s.RegionZoom))

	reverse := make([][]uint32, n+1)
	it := g.GetTypedEnumerator()
	for v := uint32(0); v < n; v++ {
		if err := it.MoveTo(datastructure.Index(v)); err != nil {
			return err
		}
		for it.MoveNext() {
			data := it.Data()
			if data.RepresentsNeighbourRelations() {
				target := uint32(it.Neighbour()) + 1
				reverse[target] = append(reverse[target], v+1)
			}
		}
	}

	var rawBlocks, rawShapes, rawReverses [][]byte
	var extent float64
	for start := uint32(1); start <= n; start += bs {
		if err := ctx.Err(); err != nil {
			return err
		}
		var block Block
		var shapes ShapeBlock
		var reverses ReverseBlock
		for id := start; id < start+bs && id <= n; id++ {
			v := datastructure.Index(id - 1)
			lat, lon, _ := g.GetVertex(v)
			if len(block.Edges) > math.MaxUint16 {
				return fmt.Errorf("block %d has more than %d edges", start, math.MaxUint16)
			}
			vertex := BlockVertex{EdgeIndex: uint16(len(block.Edges)), Latitude: lat, Longitude: lon}

			if err := it.MoveTo(v); err != nil {
				return err
			}
			count := 0
			for it.MoveNext() {
				e := it.Data().Contracted()
				block.Edges = append(block.Edges, BlockEdge{
					TargetID: uint32(it.Neighbour()) + 1,
					Weight:   e.Weight,
					Value:    e.Value,
					Meta:     e.Meta,
				})
				shape, err := g.GetEdgeShape(it.EdgeID())
				if err != nil {
					return err
				}
				shapes.Edges = append(shapes.Edges, shape)
				if !it.Data().IsShortcut() {
					toLat, toLon, _ := g.GetVertex(it.Neighbour())
					extent = max(extent, edgeExtent(lat, lon, toLat, toLon, shape))
				}
				count++
			}
			if count > math.MaxUint16 {
				return fmt.Errorf("vertex %d has more than %d edges", id, math.MaxUint16)
			}
			vertex.EdgeCount = uint16(count)
			block.Vertices = append(block.Vertices, vertex)
			reverses.Vertices = append(reverses.Vertices, reverse[id])
		}
		rawBlocks = append(rawBlocks, block.Marshal())
		rawShapes = append(rawShapes, shapes.Marshal())
		rawReverses = append(rawReverses, reverses.Marshal())
	}

	regionIndex, regions := s.buildRegions(g, extent)

	blocks, err := compressSection(ctx, rawBlocks)
	if err != nil {
		return err
	}
	shapes, err := compressSection(ctx, rawShapes)
	if err != nil {
		return err
	}
	reverses, err := compressSection(ctx, rawReverses)
	if err != nil {
		return err
	}

	var tagSection bytes.Buffer
	if err := s.TagsCodec.SerializeBlocks(&tagSection, src.TagsIndex()); err != nil {
		return fmt.Errorf("serializing tags: %w", err)
	}

	regionSize := 0
	for _, r := range regions {
		regionSize += len(r)
	}
	h := header{sizeOfRegionIndex: int32(len(regionIndex))}
	h.startOfBlocks = int32(headerSize + len(regionIndex) + regionSize)
	h.startOfShapes = h.startOfBlocks + int32(blocks.size())
	h.startOfReverses = h.startOfShapes + int32(shapes.size())
	h.startOfTags = h.startOfReverses + int32(reverses.size())

	if err := writeEnvelope(w, pkg.CONTRACTED_FORMAT_VERSION); err != nil {
		return err
	}
	if _, err := w.Write(h.marshal()); err != nil {
		return err
	}
	if _, err := w.Write(regionIndex); err != nil {
		return err
	}
	for _, r := range regions {
		if _, err := w.Write(r); err != nil {
			return err
		}
	}
	for _, sec := range []section{blocks, shapes, reverses} {
		if err := sec.writeTo(w); err != nil {
			return err
		}
	}
	if _, err := tagSection.WriteTo(w); err != nil {
		return err
	}

	s.logger().Info("contracted graph serialized", zap.Int("blocks", len(rawBlocks)), zap.Int("regions", len(regions)),
		zap.Int32("bytes", h.startOfTags+int32(tagSection.Len())))
	return nil
}

// edgeExtent is the larger side, in degrees, of the bounding box of an edge polyline.
func edgeExtent(fromLat, fromLon, toLat, toLon float32, shape []datastructure.Coordinate) float64 {
	line := orb.LineString{{float64(fromLon), float64(fromLat)}}
	for _, c := range shape {
		line = append(line, orb.Point{float64(c.Lon), float64(c.Lat)})
	}
	line = append(line, orb.Point{float64(toLon), float64(toLat)})
	b := line.Bound()
	return max(b.Max[0]-b.Min[0], b.Max[1]-b.Min[1])
}

// buildRegions groups vertex ids by tile and returns the encoded index and region records. The index
// records the zoom and the largest edge extent so readers can find edges crossing a box.
func (s *Serializer) buildRegions(g *datastructure.GeometricGraph[datastructure.CHEdgeData], extent float64) ([]byte, [][]byte) {
	byTile := make(map[uint64][]uint32)
	for v := uint32(0); v < g.VertexCount(); v++ {
		lat, lon, _ := g.GetVertex(datastructure.Index(v))
		tile := geo.TileAt(geo.NewCoordinate(float64(lat), float64(lon)), s.RegionZoom)
		byTile[tile] = append(byTile[tile], v+1)
	}
	ids := make([]uint64, 0, len(byTile))
	for id := range byTile {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	// round up so the stored extent never undershoots
	stored := float32(extent)
	if float64(stored) < extent {
		stored = math.Nextafter32(stored, float32(math.Inf(1)))
	}
	index := RegionIndex{RegionIDs: ids, LocationIndex: make([]int32, len(ids)),
		Zoom: s.RegionZoom, HasZoom: true, MaxEdgeExtent: stored}
	records := make([][]byte, len(ids))
	end := 0
	for i, id := range ids {
		r := Region{Vertices: byTile[id]}
		records[i] = r.Marshal()
		end += len(records[i])
		index.LocationIndex[i] = int32(end)
	}
	return index.Marshal(), records
}
