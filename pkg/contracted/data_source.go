package contracted

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lintang-b-s/roadgraph/pkg"
	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"github.com/lintang-b-s/roadgraph/pkg/geo"
	"github.com/lintang-b-s/roadgraph/pkg/tags"
	"github.com/paulmach/orb"
	"go.uber.org/zap"
)

// Edge is an edge of a contracted graph as seen from its source vertex.
type Edge struct {
	ID        datastructure.EdgeID
	Neighbour datastructure.Index
	Data      datastructure.ContractedEdge
}

// EdgeIDOf addresses the k-th edge of vertex v.
func EdgeIDOf(v datastructure.Index, k int) datastructure.EdgeID {
	return datastructure.EdgeID(int64(v)<<16 | int64(k+1))
}

func splitEdgeID(id datastructure.EdgeID) (datastructure.Index, int) {
	return datastructure.Index(int64(id) >> 16), int(int64(id)&0xffff) - 1
}

// blockSection locates the compressed records of one section.
type blockSection struct {
	dataStart int64
	index     []int32
}

func (s blockSection) bounds(i int) (int64, int64) {
	start := int64(0)
	if i > 0 {
		start = int64(s.index[i-1])
	}
	return s.dataStart + start, s.dataStart + int64(s.index[i])
}

// DataSource reads a contracted graph file on demand. Vertex ids start at 1.
// It is safe for concurrent use.
type DataSource struct {
	r      io.ReaderAt
	closer io.Closer
	size   int64

	regionZoom  uint32
	blockSize   uint32
	vertexCount uint32

	regionStart int64
	regions     RegionIndex
	blocks      blockSection
	shapes      blockSection
	reverses    blockSection

	blockCache   *lru.Cache[int, *Block]
	shapeCache   *lru.Cache[int, *ShapeBlock]
	reverseCache *lru.Cache[int, *ReverseBlock]
	regionCache  *lru.Cache[int, []uint32]

	tagsIndex tags.Index
	profiles  []string
}

// Open opens a contracted graph file written by Serialize.
func (s *Serializer) Open(path string, vehicles []string) (*DataSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	ds, err := s.Deserialize(f, info.Size(), vehicles)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	ds.closer = f
	return ds, nil
}

// Deserialize decodes the header, the indices and the tag section of r. Blocks, shapes, reverse
// neighbours and regions are read when first needed.
func (s *Serializer) Deserialize(r io.ReaderAt, size int64, vehicles []string) (*DataSource, error) {
	base, err := readEnvelope(r, pkg.CONTRACTED_FORMAT_VERSION)
	if err != nil {
		return nil, err
	}
	raw := make([]byte, headerSize)
	if _, err := r.ReadAt(raw, base); err != nil {
		return nil, fmt.Errorf("%w: reading header: %w", ErrCorruptData, err)
	}
	h := unmarshalHeader(raw)
	if h.sizeOfRegionIndex < 0 || h.startOfBlocks < headerSize+h.sizeOfRegionIndex ||
		h.startOfShapes < h.startOfBlocks || h.startOfReverses < h.startOfShapes ||
		h.startOfTags < h.startOfReverses || base+int64(h.startOfTags) > size {
		return nil, fmt.Errorf("%w: inconsistent header %+v", ErrCorruptData, h)
	}

	cacheSize := s.CacheSize
	if cacheSize <= 0 {
		cacheSize = 1000
	}
	ds := &DataSource{
		r:          r,
		size:       size,
		regionZoom: s.RegionZoom,
		profiles:   slices.Clone(vehicles),
	}
	if ds.blockCache, err = lru.New[int, *Block](cacheSize); err != nil {
		return nil, err
	}
	if ds.shapeCache, err = lru.New[int, *ShapeBlock](cacheSize); err != nil {
		return nil, err
	}
	if ds.reverseCache, err = lru.New[int, *ReverseBlock](cacheSize); err != nil {
		return nil, err
	}
	if ds.regionCache, err = lru.New[int, []uint32](cacheSize); err != nil {
		return nil, err
	}

	raw = make([]byte, h.sizeOfRegionIndex)
	if _, err := r.ReadAt(raw, base+headerSize); err != nil {
		return nil, fmt.Errorf("%w: reading region index: %w", ErrCorruptData, err)
	}
	if err := ds.regions.Unmarshal(raw); err != nil {
		return nil, err
	}
	if len(ds.regions.RegionIDs) != len(ds.regions.LocationIndex) {
		return nil, fmt.Errorf("%w: region index has %d ids and %d locations", ErrCorruptData,
			len(ds.regions.RegionIDs), len(ds.regions.LocationIndex))
	}
	ds.regionStart = base + headerSize + int64(h.sizeOfRegionIndex)

	if ds.blocks, err = readBlockSection(r, base+int64(h.startOfBlocks), base+int64(h.startOfShapes)); err != nil {
		return nil, fmt.Errorf("blocks: %w", err)
	}
	if ds.shapes, err = readBlockSection(r, base+int64(h.startOfShapes), base+int64(h.startOfReverses)); err != nil {
		return nil, fmt.Errorf("shapes: %w", err)
	}
	if ds.reverses, err = readBlockSection(r, base+int64(h.startOfReverses), base+int64(h.startOfTags)); err != nil {
		return nil, fmt.Errorf("reverses: %w", err)
	}
	if len(ds.shapes.index) != len(ds.blocks.index) || len(ds.reverses.index) != len(ds.blocks.index) {
		return nil, fmt.Errorf("%w: section block counts differ", ErrCorruptData)
	}

	if err := ds.inferBlockLayout(); err != nil {
		return nil, err
	}
	if ds.regions.HasZoom {
		ds.regionZoom = ds.regions.Zoom
	}
	if err := ds.checkRegionZoom(); err != nil {
		return nil, err
	}

	tagStart := base + int64(h.startOfTags)
	ds.tagsIndex, err = s.TagsCodec.DeserializeBlocks(io.NewSectionReader(r, tagStart, size-tagStart))
	if err != nil {
		return nil, fmt.Errorf("reading tags: %w", err)
	}

	s.logger().Info("contracted graph opened", zap.Uint32("vertices", ds.vertexCount),
		zap.Uint32("blockVertexSize", ds.blockSize), zap.Int("regions", len(ds.regions.RegionIDs)),
		zap.Int("tags", ds.tagsIndex.Len()))
	return ds, nil
}

func readBlockSection(r io.ReaderAt, start, end int64) (blockSection, error) {
	var size [4]byte
	if _, err := r.ReadAt(size[:], start); err != nil {
		return blockSection{}, fmt.Errorf("%w: reading index size: %w", ErrCorruptData, err)
	}
	n := int64(int32(binary.LittleEndian.Uint32(size[:])))
	if n < 0 || start+4+n > end {
		return blockSection{}, fmt.Errorf("%w: index size %d out of section", ErrCorruptData, n)
	}
	raw := make([]byte, n)
	if _, err := r.ReadAt(raw, start+4); err != nil {
		return blockSection{}, fmt.Errorf("%w: reading index: %w", ErrCorruptData, err)
	}
	var index BlockIndex
	if err := index.Unmarshal(raw); err != nil {
		return blockSection{}, err
	}
	s := blockSection{dataStart: start + 4 + n, index: index.LocationIndex}
	prev := int32(0)
	for _, loc := range s.index {
		if loc < prev || s.dataStart+int64(loc) > end {
			return blockSection{}, fmt.Errorf("%w: block offset %d out of section", ErrCorruptData, loc)
		}
		prev = loc
	}
	return s, nil
}

// inferBlockLayout derives the block size from the first block and the vertex count from the last.
func (ds *DataSource) inferBlockLayout() error {
	n := len(ds.blocks.index)
	if n == 0 {
		ds.blockSize = 1
		return nil
	}
	first, err := ds.block(0)
	if err != nil {
		return err
	}
	if len(first.Vertices) == 0 {
		return fmt.Errorf("%w: empty first block", ErrCorruptData)
	}
	ds.blockSize = uint32(len(first.Vertices))
	last, err := ds.block(n - 1)
	if err != nil {
		return err
	}
	ds.vertexCount = uint32(n-1)*ds.blockSize + uint32(len(last.Vertices))
	return nil
}

// checkRegionZoom verifies that the first vertex lies in a region of the zoom used for lookups.
func (ds *DataSource) checkRegionZoom() error {
	if ds.vertexCount == 0 {
		return nil
	}
	lat, lon, err := ds.GetVertex(1)
	if err != nil {
		return err
	}
	tile := geo.TileAt(geo.NewCoordinate(float64(lat), float64(lon)), ds.regionZoom)
	if _, ok := slices.BinarySearch(ds.regions.RegionIDs, tile); !ok {
		return fmt.Errorf("%w: regions were not written at zoom %d", ErrIncompatibleFormat, ds.regionZoom)
	}
	return nil
}

func (ds *DataSource) readRange(start, end int64) ([]byte, error) {
	raw := make([]byte, end-start)
	if _, err := ds.r.ReadAt(raw, start); err != nil {
		return nil, fmt.Errorf("%w: reading [%d, %d): %w", ErrCorruptData, start, end, err)
	}
	return raw, nil
}

func (ds *DataSource) decompressed(s blockSection, i int) ([]byte, error) {
	raw, err := ds.readRange(s.bounds(i))
	if err != nil {
		return nil, err
	}
	out, err := decompress(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: block %d: %w", ErrCorruptData, i, err)
	}
	return out, nil
}

func (ds *DataSource) block(i int) (*Block, error) {
	if b, ok := ds.blockCache.Get(i); ok {
		return b, nil
	}
	raw, err := ds.decompressed(ds.blocks, i)
	if err != nil {
		return nil, err
	}
	b := &Block{}
	if err := b.Unmarshal(raw); err != nil {
		return nil, err
	}
	for _, v := range b.Vertices {
		if int(v.EdgeIndex)+int(v.EdgeCount) > len(b.Edges) {
			return nil, fmt.Errorf("%w: block %d edge range out of bounds", ErrCorruptData, i)
		}
	}
	ds.blockCache.Add(i, b)
	return b, nil
}

func (ds *DataSource) shapeBlock(i int) (*ShapeBlock, error) {
	if b, ok := ds.shapeCache.Get(i); ok {
		return b, nil
	}
	raw, err := ds.decompressed(ds.shapes, i)
	if err != nil {
		return nil, err
	}
	b := &ShapeBlock{}
	if err := b.Unmarshal(raw); err != nil {
		return nil, err
	}
	ds.shapeCache.Add(i, b)
	return b, nil
}

func (ds *DataSource) reverseBlock(i int) (*ReverseBlock, error) {
	if b, ok := ds.reverseCache.Get(i); ok {
		return b, nil
	}
	raw, err := ds.decompressed(ds.reverses, i)
	if err != nil {
		return nil, err
	}
	b := &ReverseBlock{}
	if err := b.Unmarshal(raw); err != nil {
		return nil, err
	}
	ds.reverseCache.Add(i, b)
	return b, nil
}

func (ds *DataSource) region(i int) ([]uint32, error) {
	if r, ok := ds.regionCache.Get(i); ok {
		return r, nil
	}
	start := int64(0)
	if i > 0 {
		start = int64(ds.regions.LocationIndex[i-1])
	}
	raw, err := ds.readRange(ds.regionStart+start, ds.regionStart+int64(ds.regions.LocationIndex[i]))
	if err != nil {
		return nil, err
	}
	var r Region
	if err := r.Unmarshal(raw); err != nil {
		return nil, err
	}
	ds.regionCache.Add(i, r.Vertices)
	return r.Vertices, nil
}

// locate returns the block holding v and the position of v inside it.
func (ds *DataSource) locate(v datastructure.Index) (int, int, error) {
	if v == 0 || uint32(v) > ds.vertexCount {
		return 0, 0, fmt.Errorf("%w: %d", ErrUnknownVertex, v)
	}
	id := BlockID(uint32(v), ds.blockSize)
	return int((id - 1) / ds.blockSize), int(uint32(v) - id), nil
}

func (ds *DataSource) vertex(v datastructure.Index) (*Block, BlockVertex, int, error) {
	bi, pos, err := ds.locate(v)
	if err != nil {
		return nil, BlockVertex{}, 0, err
	}
	b, err := ds.block(bi)
	if err != nil {
		return nil, BlockVertex{}, 0, err
	}
	if pos >= len(b.Vertices) {
		return nil, BlockVertex{}, 0, fmt.Errorf("%w: vertex %d missing from block %d", ErrCorruptData, v, bi)
	}
	return b, b.Vertices[pos], bi, nil
}

func (ds *DataSource) VertexCount() uint32 {
	return ds.vertexCount
}

func (ds *DataSource) BlockVertexSize() uint32 {
	return ds.blockSize
}

func (ds *DataSource) GetVertex(v datastructure.Index) (float32, float32, error) {
	_, vertex, _, err := ds.vertex(v)
	if err != nil {
		return 0, 0, err
	}
	return vertex.Latitude, vertex.Longitude, nil
}

func (ds *DataSource) GetEdges(v datastructure.Index) ([]Edge, error) {
	b, vertex, _, err := ds.vertex(v)
	if err != nil {
		return nil, err
	}
	edges := make([]Edge, 0, vertex.EdgeCount)
	for k := 0; k < int(vertex.EdgeCount); k++ {
		e := b.Edges[int(vertex.EdgeIndex)+k]
		edges = append(edges, Edge{ID: EdgeIDOf(v, k), Neighbour: datastructure.Index(e.TargetID), Data: e.Data()})
	}
	return edges, nil
}

// GetEdge returns the target and data of the edge addressed by id.
func (ds *DataSource) GetEdge(id datastructure.EdgeID) (datastructure.Index, datastructure.ContractedEdge, error) {
	v, k := splitEdgeID(id)
	b, vertex, _, err := ds.vertex(v)
	if err != nil {
		return 0, datastructure.ContractedEdge{}, err
	}
	if k < 0 || k >= int(vertex.EdgeCount) {
		return 0, datastructure.ContractedEdge{}, fmt.Errorf("%w: %d", datastructure.ErrInvalidEdgeID, id)
	}
	e := b.Edges[int(vertex.EdgeIndex)+k]
	return datastructure.Index(e.TargetID), e.Data(), nil
}

// GetEdgeShape returns the intermediate points of the edge addressed by id, in traversal order.
func (ds *DataSource) GetEdgeShape(id datastructure.EdgeID) ([]datastructure.Coordinate, error) {
	v, k := splitEdgeID(id)
	_, vertex, bi, err := ds.vertex(v)
	if err != nil {
		return nil, err
	}
	if k < 0 || k >= int(vertex.EdgeCount) {
		return nil, fmt.Errorf("%w: %d", datastructure.ErrInvalidEdgeID, id)
	}
	sb, err := ds.shapeBlock(bi)
	if err != nil {
		return nil, err
	}
	i := int(vertex.EdgeIndex) + k
	if i >= len(sb.Edges) {
		return nil, nil
	}
	return sb.Edges[i], nil
}

// GetReverseNeighbours lists the vertices storing a neighbour relation edge towards v.
func (ds *DataSource) GetReverseNeighbours(v datastructure.Index) ([]datastructure.Index, error) {
	bi, pos, err := ds.locate(v)
	if err != nil {
		return nil, err
	}
	rb, err := ds.reverseBlock(bi)
	if err != nil {
		return nil, err
	}
	if pos >= len(rb.Vertices) {
		return nil, nil
	}
	out := make([]datastructure.Index, len(rb.Vertices[pos]))
	for i, u := range rb.Vertices[pos] {
		out[i] = datastructure.Index(u)
	}
	return out, nil
}

func contains(b orb.Bound, lat, lon float32) bool {
	return b.Contains(orb.Point{float64(lon), float64(lat)})
}

// VerticesInBox returns the vertices inside b, only reading the regions overlapping it.
func (ds *DataSource) VerticesInBox(b orb.Bound) ([]datastructure.Index, error) {
	var out []datastructure.Index
	for _, tile := range geo.TilesInBound(b, ds.regionZoom) {
		i := sort.Search(len(ds.regions.RegionIDs), func(i int) bool { return ds.regions.RegionIDs[i] >= tile })
		if i == len(ds.regions.RegionIDs) || ds.regions.RegionIDs[i] != tile {
			continue
		}
		vertices, err := ds.region(i)
		if err != nil {
			return nil, err
		}
		for _, v := range vertices {
			lat, lon, err := ds.GetVertex(datastructure.Index(v))
			if err != nil {
				return nil, err
			}
			if contains(b, lat, lon) {
				out = append(out, datastructure.Index(v))
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// widen grows b by d degrees on every side, clamped to valid coordinates.
func widen(b orb.Bound, d float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{max(b.Min[0]-d, -180), max(b.Min[1]-d, -90)},
		Max: orb.Point{min(b.Max[0]+d, 180), min(b.Max[1]+d, 90)},
	}
}

// EdgesInBox returns the road segments whose bounding box intersects b. Both endpoints of such an
// edge lie within the largest edge extent of b, so only the regions of the widened box are read.
// Shortcuts are skipped and an edge stored at both endpoints is reported once, from the lower vertex.
func (ds *DataSource) EdgesInBox(b orb.Bound) ([]datastructure.SpatialEdge, error) {
	vertices, err := ds.VerticesInBox(widen(b, float64(ds.regions.MaxEdgeExtent)))
	if err != nil {
		return nil, err
	}
	inBox := make(map[datastructure.Index]struct{}, len(vertices))
	for _, v := range vertices {
		inBox[v] = struct{}{}
	}

	var out []datastructure.SpatialEdge
	for _, v := range vertices {
		edges, err := ds.GetEdges(v)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if e.Data.IsShortcut() {
				continue
			}
			reverseID, err := ds.reverseEdge(e.Neighbour, v, e.Data.Value)
			if err != nil {
				return nil, err
			}
			if _, ok := inBox[e.Neighbour]; ok && reverseID != 0 && e.Neighbour < v {
				continue
			}
			se, err := ds.spatialEdge(v, e, reverseID)
			if err != nil {
				return nil, err
			}
			if !polylineBound(se.Points()).Intersects(b) {
				continue
			}
			out = append(out, se)
		}
	}
	return out, nil
}

func polylineBound(points []datastructure.Coordinate) orb.Bound {
	line := make(orb.LineString, len(points))
	for i, p := range points {
		line[i] = orb.Point{float64(p.Lon), float64(p.Lat)}
	}
	return line.Bound()
}

// reverseEdge finds the edge of from that leads back to to with the same tags, zero if there is none.
func (ds *DataSource) reverseEdge(from, to datastructure.Index, value uint32) (datastructure.EdgeID, error) {
	edges, err := ds.GetEdges(from)
	if err != nil {
		return 0, err
	}
	for _, e := range edges {
		if e.Neighbour == to && !e.Data.IsShortcut() && e.Data.Value == value {
			return e.ID, nil
		}
	}
	return 0, nil
}

func (ds *DataSource) spatialEdge(v datastructure.Index, e Edge, reverseID datastructure.EdgeID) (datastructure.SpatialEdge, error) {
	fromLat, fromLon, err := ds.GetVertex(v)
	if err != nil {
		return datastructure.SpatialEdge{}, err
	}
	toLat, toLon, err := ds.GetVertex(e.Neighbour)
	if err != nil {
		return datastructure.SpatialEdge{}, err
	}
	shape, err := ds.GetEdgeShape(e.ID)
	if err != nil {
		return datastructure.SpatialEdge{}, err
	}
	tagsID, hasTags := e.Data.Tags()
	return datastructure.SpatialEdge{
		ID:        e.ID,
		ReverseID: reverseID,
		From:      v,
		To:        e.Neighbour,
		FromCoord: datastructure.Coordinate{Lat: fromLat, Lon: fromLon},
		ToCoord:   datastructure.Coordinate{Lat: toLat, Lon: toLon},
		Shape:     shape,
		Tags:      tagsID,
		HasTags:   hasTags,
	}, nil
}

func (ds *DataSource) TagsIndex() tags.Index {
	return ds.tagsIndex
}

func (ds *DataSource) SupportsProfile(vehicle string) bool {
	return slices.Contains(ds.profiles, vehicle)
}

// CappedView returns an independent reader over n bytes of the file starting at off.
func (ds *DataSource) CappedView(off, n int64) (*io.SectionReader, error) {
	if off < 0 || n < 0 || off+n > ds.size {
		return nil, fmt.Errorf("view [%d, %d) outside of %d bytes", off, off+n, ds.size)
	}
	return io.NewSectionReader(ds.r, off, n), nil
}

// Close releases the file opened by Open. Sources built with Deserialize leave the reader open.
func (ds *DataSource) Close() error {
	ds.blockCache.Purge()
	ds.shapeCache.Purge()
	ds.reverseCache.Purge()
	ds.regionCache.Purge()
	if ds.closer == nil {
		return nil
	}
	c := ds.closer
	ds.closer = nil
	return c.Close()
}

func (ds *DataSource) GetEdgeIterator() datastructure.EdgeIterator[datastructure.ContractedEdge] {
	return &EdgeIterator{ds: ds}
}

// EdgeIterator walks the edges of one vertex of a DataSource.
type EdgeIterator struct {
	ds     *DataSource
	block  *Block
	vertex datastructure.Index
	first  int
	count  int
	k      int
}

func (it *EdgeIterator) MoveTo(v datastructure.Index) error {
	b, vertex, _, err := it.ds.vertex(v)
	if err != nil {
		return err
	}
	it.block = b
	it.vertex = v
	it.first = int(vertex.EdgeIndex)
	it.count = int(vertex.EdgeCount)
	it.k = -1
	return nil
}

func (it *EdgeIterator) MoveNext() bool {
	if it.block == nil || it.k+1 >= it.count {
		return false
	}
	it.k++
	return true
}

func (it *EdgeIterator) EdgeID() datastructure.EdgeID {
	return EdgeIDOf(it.vertex, it.k)
}

func (it *EdgeIterator) Neighbour() datastructure.Index {
	return datastructure.Index(it.block.Edges[it.first+it.k].TargetID)
}

func (it *EdgeIterator) Data() datastructure.ContractedEdge {
	return it.block.Edges[it.first+it.k].Data()
}
