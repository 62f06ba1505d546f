package datastructure

import (
	"errors"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
)

const (
	shapeCountBits = 24
	maxShapeLength = 1<<shapeCountBits - 1
)

var ErrShapeTooLong = errors.New("shape has too many coordinates")

// ShapeIndex keeps the intermediate coordinates of every edge record in one coordinate pool.
// pointers[record] packs (offset+1)<<24 | count; zero means the edge has no shape.
type ShapeIndex struct {
	pointers hugearray.HugeArray[uint64]
	pool     hugearray.HugeArray[Coordinate]
	poolSize int64
}

func NewShapeIndex(pointers hugearray.HugeArray[uint64], pool hugearray.HugeArray[Coordinate]) *ShapeIndex {
	return &ShapeIndex{pointers: pointers, pool: pool}
}

func (s *ShapeIndex) ensureRecord(record uint32) error {
	if int64(record) < s.pointers.Length() {
		return nil
	}
	return s.pointers.Resize(grow(s.pointers.Length(), int64(record)+1))
}

func (s *ShapeIndex) Set(record uint32, shape []Coordinate) error {
	if len(shape) > maxShapeLength {
		return ErrShapeTooLong
	}
	if err := s.ensureRecord(record); err != nil {
		return err
	}
	if len(shape) == 0 {
		s.pointers.Set(int64(record), 0)
		return nil
	}
	if needed := s.poolSize + int64(len(shape)); needed > s.pool.Length() {
		if err := s.pool.Resize(grow(s.pool.Length(), needed)); err != nil {
			return err
		}
	}
	offset := s.poolSize
	for i, c := range shape {
		s.pool.Set(offset+int64(i), c)
	}
	s.poolSize += int64(len(shape))
	s.pointers.Set(int64(record), uint64(offset+1)<<shapeCountBits|uint64(len(shape)))
	return nil
}

func (s *ShapeIndex) Get(record uint32) []Coordinate {
	if int64(record) >= s.pointers.Length() {
		return nil
	}
	ptr := s.pointers.Get(int64(record))
	if ptr == 0 {
		return nil
	}
	offset := int64(ptr>>shapeCountBits) - 1
	count := int64(ptr & maxShapeLength)
	shape := make([]Coordinate, count)
	for i := range shape {
		shape[i] = s.pool.Get(offset + int64(i))
	}
	return shape
}

func (s *ShapeIndex) Move(from, to uint32) error {
	if err := s.ensureRecord(to); err != nil {
		return err
	}
	var ptr uint64
	if int64(from) < s.pointers.Length() {
		ptr = s.pointers.Get(int64(from))
		s.pointers.Set(int64(from), 0)
	}
	s.pointers.Set(int64(to), ptr)
	return nil
}

// Compact rewrites the pool keeping only shapes of the first records records.
func (s *ShapeIndex) Compact(records uint32) error {
	shapes := make([][]Coordinate, records)
	for r := uint32(0); r < records; r++ {
		shapes[r] = s.Get(r)
	}
	s.poolSize = 0
	for r := uint32(0); r < records; r++ {
		if err := s.Set(r, shapes[r]); err != nil {
			return err
		}
	}
	if err := s.pointers.Resize(int64(records)); err != nil {
		return err
	}
	return s.pool.Resize(s.poolSize)
}

func (s *ShapeIndex) Close() error {
	return errors.Join(s.pointers.Close(), s.pool.Close())
}
