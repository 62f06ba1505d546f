package datastructure

import (
	"math"
)

// EdgeDataCodec maps a typed edge payload onto the fixed number of words a FlatGraph stores.
type EdgeDataCodec[T any] interface {
	Size() int
	Encode(value T, dst []uint32)
	Decode(src []uint32) T
	// Reverse returns the payload as seen when the edge is traversed backwards.
	Reverse(value T) T
}

// LiveEdge is a plain road segment: a tag collection reference and its length in meters.
// Forward is false when the stored direction is opposite to the direction of the OSM way.
type LiveEdge struct {
	Tags     uint32
	Forward  bool
	Distance float32
}

type LiveEdgeCodec struct{}

func (LiveEdgeCodec) Size() int { return 2 }

func (LiveEdgeCodec) Encode(e LiveEdge, dst []uint32) {
	value := e.Tags << 1
	if e.Forward {
		value |= 1
	}
	dst[0] = value
	dst[1] = math.Float32bits(e.Distance)
}

func (LiveEdgeCodec) Decode(src []uint32) LiveEdge {
	return LiveEdge{
		Tags:     src[0] >> 1,
		Forward:  src[0]&1 == 1,
		Distance: math.Float32frombits(src[1]),
	}
}

func (LiveEdgeCodec) Reverse(e LiveEdge) LiveEdge {
	e.Forward = !e.Forward
	return e
}

const (
	MetaForward  uint8 = 1 << 0
	MetaBackward uint8 = 1 << 1
	MetaShortcut uint8 = 1 << 2
	// MetaNeighbour marks edges that also have to be reachable from the target vertex in a
	// backward search.
	MetaNeighbour uint8 = 1 << 3
)

// CHEdgeData is the payload of a contracted graph edge. Contracted ids point to the vertex a
// shortcut bypasses, they are zero for original road segments.
type CHEdgeData struct {
	ForwardWeight        float32
	ForwardContractedID  uint32
	BackwardWeight       float32
	BackwardContractedID uint32
	Tags                 uint32
	Meta                 uint8
}

func (c CHEdgeData) CanMoveForward() bool  { return c.Meta&MetaForward != 0 }
func (c CHEdgeData) CanMoveBackward() bool { return c.Meta&MetaBackward != 0 }
func (c CHEdgeData) IsShortcut() bool      { return c.Meta&MetaShortcut != 0 }

func (c CHEdgeData) RepresentsNeighbourRelations() bool { return c.Meta&MetaNeighbour != 0 }

// Contracted collapses the payload into the single weight/value record stored in serialized blocks.
func (c CHEdgeData) Contracted() ContractedEdge {
	weight := c.ForwardWeight
	switch {
	case c.CanMoveForward() && c.CanMoveBackward():
		weight = float32(math.Min(float64(c.ForwardWeight), float64(c.BackwardWeight)))
	case c.CanMoveBackward():
		weight = c.BackwardWeight
	}
	value := c.Tags
	if c.IsShortcut() {
		value = c.ForwardContractedID
		if !c.CanMoveForward() {
			value = c.BackwardContractedID
		}
	}
	return ContractedEdge{Weight: weight, Value: value, Meta: c.Meta}
}

func swapDirectionBits(meta uint8) uint8 {
	out := meta &^ (MetaForward | MetaBackward)
	if meta&MetaForward != 0 {
		out |= MetaBackward
	}
	if meta&MetaBackward != 0 {
		out |= MetaForward
	}
	return out
}

type CHEdgeDataCodec struct{}

func (CHEdgeDataCodec) Size() int { return 6 }

func (CHEdgeDataCodec) Encode(c CHEdgeData, dst []uint32) {
	dst[0] = math.Float32bits(c.ForwardWeight)
	dst[1] = c.ForwardContractedID
	dst[2] = math.Float32bits(c.BackwardWeight)
	dst[3] = c.BackwardContractedID
	dst[4] = c.Tags
	dst[5] = uint32(c.Meta)
}

func (CHEdgeDataCodec) Decode(src []uint32) CHEdgeData {
	return CHEdgeData{
		ForwardWeight:        math.Float32frombits(src[0]),
		ForwardContractedID:  src[1],
		BackwardWeight:       math.Float32frombits(src[2]),
		BackwardContractedID: src[3],
		Tags:                 src[4],
		Meta:                 uint8(src[5]),
	}
}

func (CHEdgeDataCodec) Reverse(c CHEdgeData) CHEdgeData {
	return CHEdgeData{
		ForwardWeight:        c.BackwardWeight,
		ForwardContractedID:  c.BackwardContractedID,
		BackwardWeight:       c.ForwardWeight,
		BackwardContractedID: c.ForwardContractedID,
		Tags:                 c.Tags,
		Meta:                 swapDirectionBits(c.Meta),
	}
}

// ContractedEdge is the edge record of a serialized contracted graph block. Value holds the tag
// collection id of a road segment or the contracted vertex of a shortcut.
type ContractedEdge struct {
	Weight float32
	Value  uint32
	Meta   uint8
}

func (c ContractedEdge) CanMoveForward() bool  { return c.Meta&MetaForward != 0 }
func (c ContractedEdge) CanMoveBackward() bool { return c.Meta&MetaBackward != 0 }
func (c ContractedEdge) IsShortcut() bool      { return c.Meta&MetaShortcut != 0 }

func (c ContractedEdge) RepresentsNeighbourRelations() bool { return c.Meta&MetaNeighbour != 0 }

// Tags returns the tag collection id, ok is false for shortcuts.
func (c ContractedEdge) Tags() (uint32, bool) {
	if c.IsShortcut() {
		return 0, false
	}
	return c.Value, true
}

func (c ContractedEdge) Reverse() ContractedEdge {
	c.Meta = swapDirectionBits(c.Meta)
	return c
}
