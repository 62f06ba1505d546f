package contracted

import (
	"fmt"
	"math"

	"github.com/lintang-b-s/roadgraph/pkg/datastructure"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records use the protobuf wire format with non packed repeated fields.

type BlockIndex struct {
	LocationIndex []int32 // cumulative end offset of every block
}

type BlockVertex struct {
	EdgeIndex uint16
	EdgeCount uint16
	Latitude  float32
	Longitude float32
}

type BlockEdge struct {
	TargetID uint32
	Weight   float32
	Value    uint32
	Meta     uint8
}

func (e BlockEdge) Data() datastructure.ContractedEdge {
	return datastructure.ContractedEdge{Weight: e.Weight, Value: e.Value, Meta: e.Meta}
}

// Block holds consecutive vertices and their edges, vertex i owns
// Edges[EdgeIndex : EdgeIndex+EdgeCount].
type Block struct {
	Vertices []BlockVertex
	Edges    []BlockEdge
}

// ShapeBlock holds one coordinate list per edge of the matching Block.
type ShapeBlock struct {
	Edges [][]datastructure.Coordinate
}

// ReverseBlock holds, per vertex of the matching Block, the vertices with an edge into it.
type ReverseBlock struct {
	Vertices [][]uint32
}

// RegionIndex lists the tiles holding vertices. Zoom and MaxEdgeExtent are optional fields; files
// written without them decode with HasZoom false and a zero extent.
type RegionIndex struct {
	RegionIDs     []uint64
	LocationIndex []int32
	Zoom          uint32
	HasZoom       bool
	// MaxEdgeExtent is the largest latitude or longitude span, in degrees, of any non shortcut edge.
	MaxEdgeExtent float32
}

type Region struct {
	Vertices []uint32
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// eachField calls fn for every field of a message; fn returns -1 to skip the field.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
		}
		b = b[n:]
	}
	return nil
}

// consumeVarints reads a varint field that may be written packed or one value per field.
func consumeVarints(typ protowire.Type, b []byte, fn func(uint64)) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		fn(v)
		return n, nil
	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return 0, protowire.ParseError(m)
			}
			fn(v)
			packed = packed[m:]
		}
		return n, nil
	}
	return 0, fmt.Errorf("unexpected wire type %d for varint field", typ)
}

func consumeFloat(typ protowire.Type, b []byte) (float32, int, error) {
	if typ != protowire.Fixed32Type {
		return 0, 0, fmt.Errorf("unexpected wire type %d for float field", typ)
	}
	v, n := protowire.ConsumeFixed32(b)
	if n < 0 {
		return 0, 0, protowire.ParseError(n)
	}
	return math.Float32frombits(v), n, nil
}

func consumeMessage(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("unexpected wire type %d for message field", typ)
	}
	msg, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, protowire.ParseError(n)
	}
	return msg, n, nil
}

func (bi *BlockIndex) Marshal() []byte {
	var b []byte
	for _, loc := range bi.LocationIndex {
		b = appendInt32(b, 1, loc)
	}
	return b
}

func (bi *BlockIndex) Unmarshal(b []byte) error {
	bi.LocationIndex = bi.LocationIndex[:0]
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		return consumeVarints(typ, b, func(v uint64) { bi.LocationIndex = append(bi.LocationIndex, int32(v)) })
	})
}

func (v *BlockVertex) marshal() []byte {
	var b []byte
	b = appendUint(b, 1, uint64(v.EdgeIndex))
	b = appendUint(b, 2, uint64(v.EdgeCount))
	b = appendFloat(b, 3, v.Latitude)
	return appendFloat(b, 4, v.Longitude)
}

func (v *BlockVertex) unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarints(typ, b, func(x uint64) { v.EdgeIndex = uint16(x) })
		case 2:
			return consumeVarints(typ, b, func(x uint64) { v.EdgeCount = uint16(x) })
		case 3:
			f, n, err := consumeFloat(typ, b)
			v.Latitude = f
			return n, err
		case 4:
			f, n, err := consumeFloat(typ, b)
			v.Longitude = f
			return n, err
		}
		return -1, nil
	})
}

func (e *BlockEdge) marshal() []byte {
	var b []byte
	b = appendUint(b, 1, uint64(e.TargetID))
	b = appendFloat(b, 2, e.Weight)
	b = appendUint(b, 3, uint64(e.Value))
	return appendUint(b, 4, uint64(e.Meta))
}

func (e *BlockEdge) unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarints(typ, b, func(x uint64) { e.TargetID = uint32(x) })
		case 2:
			f, n, err := consumeFloat(typ, b)
			e.Weight = f
			return n, err
		case 3:
			return consumeVarints(typ, b, func(x uint64) { e.Value = uint32(x) })
		case 4:
			return consumeVarints(typ, b, func(x uint64) { e.Meta = uint8(x) })
		}
		return -1, nil
	})
}

func (bl *Block) Marshal() []byte {
	var b []byte
	for i := range bl.Vertices {
		b = appendMessage(b, 1, bl.Vertices[i].marshal())
	}
	for i := range bl.Edges {
		b = appendMessage(b, 2, bl.Edges[i].marshal())
	}
	return b
}

func (bl *Block) Unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			msg, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			var v BlockVertex
			if err := v.unmarshal(msg); err != nil {
				return 0, err
			}
			bl.Vertices = append(bl.Vertices, v)
			return n, nil
		case 2:
			msg, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			var e BlockEdge
			if err := e.unmarshal(msg); err != nil {
				return 0, err
			}
			bl.Edges = append(bl.Edges, e)
			return n, nil
		}
		return -1, nil
	})
}

func marshalCoordinate(c datastructure.Coordinate) []byte {
	var b []byte
	b = appendFloat(b, 1, c.Lat)
	return appendFloat(b, 2, c.Lon)
}

func unmarshalCoordinate(b []byte) (datastructure.Coordinate, error) {
	var c datastructure.Coordinate
	err := eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			f, n, err := consumeFloat(typ, b)
			c.Lat = f
			return n, err
		case 2:
			f, n, err := consumeFloat(typ, b)
			c.Lon = f
			return n, err
		}
		return -1, nil
	})
	return c, err
}

func (sb *ShapeBlock) Marshal() []byte {
	var b []byte
	for _, shape := range sb.Edges {
		var edge []byte
		for _, c := range shape {
			edge = appendMessage(edge, 1, marshalCoordinate(c))
		}
		b = appendMessage(b, 1, edge)
	}
	return b
}

func (sb *ShapeBlock) Unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		msg, n, err := consumeMessage(typ, b)
		if err != nil {
			return 0, err
		}
		var shape []datastructure.Coordinate
		err = eachField(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num != 1 {
				return -1, nil
			}
			raw, n, err := consumeMessage(typ, b)
			if err != nil {
				return 0, err
			}
			c, err := unmarshalCoordinate(raw)
			if err != nil {
				return 0, err
			}
			shape = append(shape, c)
			return n, nil
		})
		if err != nil {
			return 0, err
		}
		sb.Edges = append(sb.Edges, shape)
		return n, nil
	})
}

func (rb *ReverseBlock) Marshal() []byte {
	var b []byte
	for _, neighbours := range rb.Vertices {
		var v []byte
		for _, n := range neighbours {
			v = appendUint(v, 1, uint64(n))
		}
		b = appendMessage(b, 1, v)
	}
	return b
}

func (rb *ReverseBlock) Unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		msg, n, err := consumeMessage(typ, b)
		if err != nil {
			return 0, err
		}
		var neighbours []uint32
		err = eachField(msg, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
			if num != 1 {
				return -1, nil
			}
			return consumeVarints(typ, b, func(x uint64) { neighbours = append(neighbours, uint32(x)) })
		})
		if err != nil {
			return 0, err
		}
		rb.Vertices = append(rb.Vertices, neighbours)
		return n, nil
	})
}

func (ri *RegionIndex) Marshal() []byte {
	var b []byte
	for _, id := range ri.RegionIDs {
		b = appendUint(b, 1, id)
	}
	for _, loc := range ri.LocationIndex {
		b = appendInt32(b, 2, loc)
	}
	if ri.HasZoom {
		b = appendUint(b, 3, uint64(ri.Zoom))
	}
	if ri.MaxEdgeExtent > 0 {
		b = appendFloat(b, 4, ri.MaxEdgeExtent)
	}
	return b
}

func (ri *RegionIndex) Unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return consumeVarints(typ, b, func(x uint64) { ri.RegionIDs = append(ri.RegionIDs, x) })
		case 2:
			return consumeVarints(typ, b, func(x uint64) { ri.LocationIndex = append(ri.LocationIndex, int32(x)) })
		case 3:
			return consumeVarints(typ, b, func(x uint64) {
				ri.Zoom = uint32(x)
				ri.HasZoom = true
			})
		case 4:
			v, n, err := consumeFloat(typ, b)
			ri.MaxEdgeExtent = v
			return n, err
		}
		return -1, nil
	})
}

func (r *Region) Marshal() []byte {
	var b []byte
	for _, v := range r.Vertices {
		b = appendUint(b, 1, uint64(v))
	}
	return b
}

func (r *Region) Unmarshal(b []byte) error {
	return eachField(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != 1 {
			return -1, nil
		}
		return consumeVarints(typ, b, func(x uint64) { r.Vertices = append(r.Vertices, uint32(x)) })
	})
}
