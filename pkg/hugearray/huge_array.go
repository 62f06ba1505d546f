package hugearray

import (
	"errors"
	"fmt"
)

var (
	ErrAllocation    = errors.New("hugearray: allocation failed")
	ErrNotResizable  = errors.New("hugearray: array cannot be resized")
	ErrNegativeSize  = errors.New("hugearray: negative size")
	ErrArrayDisposed = errors.New("hugearray: array already closed")
)

// HugeArray is a random access array of fixed size elements addressed by 64 bit indexes.
// Indexing outside [0, Length) panics, like indexing a slice.
type HugeArray[T any] interface {
	Length() int64
	Get(idx int64) T
	Set(idx int64, value T)
	// Resize grows or shrinks the array; elements below min(old, new) length keep their value
	// and grown elements read as the zero value.
	Resize(newLength int64) error
	CanResize() bool
	// Close releases backing storage, calling it again is a no-op.
	Close() error
}

const (
	arrayBlockBits = 20
	arrayBlockSize = int64(1) << arrayBlockBits
)

// Array is the in-memory HugeArray. Storage is split in fixed size blocks so growing never copies
// the whole array and no single allocation exceeds arrayBlockSize elements.
type Array[T any] struct {
	blocks [][]T
	length int64
}

func NewArray[T any](length int64) *Array[T] {
	arr := &Array[T]{}
	if err := arr.Resize(length); err != nil {
		panic(err)
	}
	return arr
}

func (a *Array[T]) Length() int64 {
	return a.length
}

func (a *Array[T]) checkIndex(idx int64) {
	if idx < 0 || idx >= a.length {
		panic(fmt.Sprintf("hugearray: index out of range [%d] with length %d", idx, a.length))
	}
}

func (a *Array[T]) Get(idx int64) T {
	a.checkIndex(idx)
	return a.blocks[idx>>arrayBlockBits][idx&(arrayBlockSize-1)]
}

func (a *Array[T]) Set(idx int64, value T) {
	a.checkIndex(idx)
	a.blocks[idx>>arrayBlockBits][idx&(arrayBlockSize-1)] = value
}

func (a *Array[T]) CanResize() bool {
	return true
}

func (a *Array[T]) Resize(newLength int64) error {
	if newLength < 0 {
		return ErrNegativeSize
	}
	blockCount := int((newLength + arrayBlockSize - 1) >> arrayBlockBits)

	if blockCount < len(a.blocks) {
		for i := blockCount; i < len(a.blocks); i++ {
			a.blocks[i] = nil
		}
		a.blocks = a.blocks[:blockCount]
	}

	for i := 0; i < blockCount; i++ {
		size := int(arrayBlockSize)
		if i == blockCount-1 {
			size = int(newLength - int64(i)*arrayBlockSize)
		}
		if i >= len(a.blocks) {
			a.blocks = append(a.blocks, make([]T, size))
			continue
		}
		block := a.blocks[i]
		switch {
		case len(block) > size:
			clear(block[size:])
			a.blocks[i] = block[:size]
		case len(block) < size:
			grown := make([]T, size)
			copy(grown, block)
			a.blocks[i] = grown
		}
	}

	a.length = newLength
	return nil
}

func (a *Array[T]) Close() error {
	a.blocks = nil
	a.length = 0
	return nil
}
