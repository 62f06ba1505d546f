package hugearray

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultFileElementSize = 128 * 1024
	DefaultCacheBlockSize  = 32
	DefaultCacheSize       = 1000
)

type Option func(*options)

type options struct {
	fileElementSize int64
	cacheBlockSize  int64
	cacheSize       int
}

// WithFileElementSize sets how many elements one backing file holds.
func WithFileElementSize(n int64) Option {
	return func(o *options) { o.fileElementSize = n }
}

// WithCacheBlockSize sets how many consecutive elements are decoded and cached together.
func WithCacheBlockSize(n int64) Option {
	return func(o *options) { o.cacheBlockSize = n }
}

// WithCacheSize sets the number of cached blocks.
func WithCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

// MemoryMapped is a HugeArray partitioned over fixed capacity backing files created by a FileFactory.
// Reads go through an LRU cache of decoded blocks, writes patch the cached block (when present) and
// go straight to the backing file.
type MemoryMapped[T any] struct {
	factory FileFactory
	codec   StructCodec[T]
	mapName string

	elementSize     int
	fileElementSize int64
	cacheBlockSize  int64

	files  []MappedFile
	length int64
	fixed  bool
	closed bool

	cache *lru.Cache[int64, []T]
}

func buildOptions(opts []Option) options {
	o := options{
		fileElementSize: DefaultFileElementSize,
		cacheBlockSize:  DefaultCacheBlockSize,
		cacheSize:       DefaultCacheSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheBlockSize <= 0 {
		o.cacheBlockSize = DefaultCacheBlockSize
	}
	if o.cacheSize <= 0 {
		o.cacheSize = DefaultCacheSize
	}
	if o.fileElementSize <= 0 {
		o.fileElementSize = DefaultFileElementSize
	}
	// a cache block never straddles two files
	if rem := o.fileElementSize % o.cacheBlockSize; rem != 0 {
		o.fileElementSize += o.cacheBlockSize - rem
	}
	return o
}

// NewMemoryMapped creates a resizable array of length elements whose backing files are named
// mapName-0, mapName-1, ...
func NewMemoryMapped[T any](factory FileFactory, codec StructCodec[T], mapName string, length int64,
	opts ...Option) (*MemoryMapped[T], error) {
	o := buildOptions(opts)
	cache, err := lru.New[int64, []T](o.cacheSize)
	if err != nil {
		return nil, err
	}
	arr := &MemoryMapped[T]{
		factory:         factory,
		codec:           codec,
		mapName:         mapName,
		elementSize:     codec.SizeOf(),
		fileElementSize: o.fileElementSize,
		cacheBlockSize:  o.cacheBlockSize,
		cache:           cache,
	}
	if err := arr.Resize(length); err != nil {
		arr.Close()
		return nil, err
	}
	return arr, nil
}

// OpenFixed maps length elements of the file at path starting at offset. The result cannot be resized.
func OpenFixed[T any](factory FileFactory, codec StructCodec[T], path string, offset, length int64,
	opts ...Option) (*MemoryMapped[T], error) {
	if length < 0 {
		return nil, ErrNegativeSize
	}
	o := buildOptions(opts)
	cache, err := lru.New[int64, []T](o.cacheSize)
	if err != nil {
		return nil, err
	}
	f, err := factory.CreateFromFile(path, length*int64(codec.SizeOf()), offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAllocation, path, err)
	}
	fileElementSize := length
	if fileElementSize == 0 {
		fileElementSize = o.cacheBlockSize
	}
	return &MemoryMapped[T]{
		factory:         factory,
		codec:           codec,
		mapName:         path,
		elementSize:     codec.SizeOf(),
		fileElementSize: fileElementSize,
		cacheBlockSize:  o.cacheBlockSize,
		files:           []MappedFile{f},
		length:          length,
		fixed:           true,
		cache:           cache,
	}, nil
}

func (m *MemoryMapped[T]) Length() int64 {
	return m.length
}

func (m *MemoryMapped[T]) CanResize() bool {
	return !m.fixed
}

func (m *MemoryMapped[T]) checkIndex(idx int64) {
	if idx < 0 || idx >= m.length {
		panic(fmt.Sprintf("hugearray: index out of range [%d] with length %d", idx, m.length))
	}
}

// location returns the backing bytes of element idx.
func (m *MemoryMapped[T]) location(idx int64) []byte {
	f := m.files[idx/m.fileElementSize]
	pos := (idx % m.fileElementSize) * int64(m.elementSize)
	return f.Bytes()[pos : pos+int64(m.elementSize)]
}

func (m *MemoryMapped[T]) loadBlock(blockID int64) []T {
	start := blockID * m.cacheBlockSize
	n := m.cacheBlockSize
	if start+n > m.length {
		n = m.length - start
	}
	block := make([]T, n)
	for i := int64(0); i < n; i++ {
		block[i] = m.codec.Read(m.location(start + i))
	}
	m.cache.Add(blockID, block)
	return block
}

func (m *MemoryMapped[T]) Get(idx int64) T {
	m.checkIndex(idx)
	blockID := idx / m.cacheBlockSize
	block, ok := m.cache.Get(blockID)
	if !ok {
		block = m.loadBlock(blockID)
	}
	return block[idx-blockID*m.cacheBlockSize]
}

func (m *MemoryMapped[T]) Set(idx int64, value T) {
	m.checkIndex(idx)
	blockID := idx / m.cacheBlockSize
	if block, ok := m.cache.Peek(blockID); ok {
		block[idx-blockID*m.cacheBlockSize] = value
	}
	m.codec.Write(m.location(idx), value)
}

func (m *MemoryMapped[T]) Resize(newLength int64) error {
	if m.closed {
		return ErrArrayDisposed
	}
	if newLength < 0 {
		return ErrNegativeSize
	}
	if m.fixed {
		if newLength == m.length {
			return nil
		}
		return ErrNotResizable
	}

	fileCount := int((newLength + m.fileElementSize - 1) / m.fileElementSize)
	if fileCount < len(m.files) {
		var err error
		for _, f := range m.files[fileCount:] {
			err = errors.Join(err, f.Close())
		}
		clear(m.files[fileCount:])
		m.files = m.files[:fileCount]
		if err != nil {
			return err
		}
	}

	// zero the dropped tail of the last retained file so a later grow reads zero values
	if newLength < m.length && fileCount > 0 {
		tailStart := (newLength % m.fileElementSize) * int64(m.elementSize)
		if newLength%m.fileElementSize != 0 {
			clear(m.files[fileCount-1].Bytes()[tailStart:])
		}
	}

	capacity := m.fileElementSize * int64(m.elementSize)
	for i := len(m.files); i < fileCount; i++ {
		f, err := m.factory.CreateNew(fmt.Sprintf("%s-%d", m.mapName, i), capacity)
		if err != nil {
			return fmt.Errorf("%w: %s-%d: %w", ErrAllocation, m.mapName, i, err)
		}
		m.files = append(m.files, f)
	}

	m.length = newLength
	m.cache.Purge()
	return nil
}

// Flush forces written elements down to the backing files.
func (m *MemoryMapped[T]) Flush() error {
	var err error
	for _, f := range m.files {
		err = errors.Join(err, f.Flush())
	}
	return err
}

func (m *MemoryMapped[T]) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var err error
	for _, f := range m.files {
		if f != nil {
			err = errors.Join(err, f.Close())
		}
	}
	m.files = nil
	m.length = 0
	m.cache.Purge()
	return err
}
