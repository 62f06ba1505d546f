package hugearray

import (
	"errors"
	"io"
	"os"
)

// MappedFile is one fixed capacity backing region of a memory mapped array.
type MappedFile interface {
	// Bytes exposes the whole region, len(Bytes()) equals the capacity the file was created with.
	Bytes() []byte
	Flush() error
	Close() error
}

// FileFactory creates backing regions. It is handed to every memory mapped array explicitly.
type FileFactory interface {
	// CreateFromFile maps capacity bytes of the file at path starting at offset, creating or
	// growing the file when needed.
	CreateFromFile(path string, capacity, offset int64) (MappedFile, error)
	// CreateNew creates a fresh zeroed region; mapName identifies it for diagnostics or naming
	// of the underlying file.
	CreateNew(mapName string, capacity int64) (MappedFile, error)
}

// HeapFactory keeps every region on the Go heap. Regions created from a file are loaded eagerly
// and written back on Flush and Close.
type HeapFactory struct{}

func (HeapFactory) CreateNew(_ string, capacity int64) (MappedFile, error) {
	if capacity < 0 {
		return nil, ErrNegativeSize
	}
	return &heapFile{data: make([]byte, capacity)}, nil
}

func (HeapFactory) CreateFromFile(path string, capacity, offset int64) (MappedFile, error) {
	if capacity < 0 || offset < 0 {
		return nil, ErrNegativeSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	data := make([]byte, capacity)
	if _, err := f.ReadAt(data, offset); err != nil && !errors.Is(err, io.EOF) {
		f.Close()
		return nil, err
	}
	return &heapFile{data: data, file: f, offset: offset}, nil
}

type heapFile struct {
	data   []byte
	file   *os.File
	offset int64
	closed bool
}

func (h *heapFile) Bytes() []byte {
	return h.data
}

func (h *heapFile) Flush() error {
	if h.file == nil || h.closed {
		return nil
	}
	_, err := h.file.WriteAt(h.data, h.offset)
	return err
}

func (h *heapFile) Close() error {
	if h.closed {
		return nil
	}
	err := h.Flush()
	h.closed = true
	h.data = nil
	if h.file != nil {
		err = errors.Join(err, h.file.Close())
	}
	return err
}
