package hugearray

import (
	"encoding/binary"
	"math"
)

// StructCodec describes the fixed byte layout of one element stored in a memory mapped array.
type StructCodec[T any] interface {
	SizeOf() int
	Read(b []byte) T
	Write(b []byte, value T)
}

type Uint32Codec struct{}

func (Uint32Codec) SizeOf() int { return 4 }

func (Uint32Codec) Read(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func (Uint32Codec) Write(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

type Uint64Codec struct{}

func (Uint64Codec) SizeOf() int { return 8 }

func (Uint64Codec) Read(b []byte) uint64 { return binary.LittleEndian.Uint64(b) }

func (Uint64Codec) Write(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

type Int64Codec struct{}

func (Int64Codec) SizeOf() int { return 8 }

func (Int64Codec) Read(b []byte) int64 { return int64(binary.LittleEndian.Uint64(b)) }

func (Int64Codec) Write(b []byte, v int64) { binary.LittleEndian.PutUint64(b, uint64(v)) }

type Float32Codec struct{}

func (Float32Codec) SizeOf() int { return 4 }

func (Float32Codec) Read(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func (Float32Codec) Write(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}
