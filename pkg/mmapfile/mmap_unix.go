//go:build unix

package mmapfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
	"golang.org/x/sys/unix"
)

type mapping struct {
	data     []byte // page aligned mapping
	region   []byte // the part handed out to callers
	file     *os.File
	removeAt string
	closed   bool
}

func (m *mapping) Bytes() []byte {
	return m.region
}

func (m *mapping) Flush() error {
	if m.closed || len(m.data) == 0 || m.file == nil {
		return nil
	}
	return unix.Msync(m.data, unix.MS_SYNC)
}

func (m *mapping) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var err error
	if len(m.data) > 0 {
		err = errors.Join(m.Flush(), unix.Munmap(m.data))
	}
	m.data, m.region = nil, nil
	if m.file != nil {
		err = errors.Join(err, m.file.Close())
	}
	if m.removeAt != "" {
		err = errors.Join(err, os.Remove(m.removeAt))
	}
	return err
}

func mapFile(f *os.File, capacity, offset int64) (*mapping, error) {
	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() < offset+capacity {
		if err := f.Truncate(offset + capacity); err != nil {
			return nil, err
		}
	}
	if capacity == 0 {
		return &mapping{file: f}, nil
	}

	pageSize := int64(unix.Getpagesize())
	aligned := offset - offset%pageSize
	delta := offset - aligned
	data, err := unix.Mmap(int(f.Fd()), aligned, int(capacity+delta), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}
	return &mapping{data: data, region: data[delta : delta+capacity], file: f}, nil
}

func (fa *Factory) CreateFromFile(path string, capacity, offset int64) (hugearray.MappedFile, error) {
	if capacity < 0 || offset < 0 {
		return nil, hugearray.ErrNegativeSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}
	m, err := mapFile(f, capacity, offset)
	if err != nil {
		f.Close()
		return nil, err
	}
	return m, nil
}

func (fa *Factory) CreateNew(mapName string, capacity int64) (hugearray.MappedFile, error) {
	if capacity < 0 {
		return nil, hugearray.ErrNegativeSize
	}
	if fa.Dir == "" {
		if capacity == 0 {
			return &mapping{}, nil
		}
		data, err := unix.Mmap(-1, 0, int(capacity), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_SHARED)
		if err != nil {
			return nil, fmt.Errorf("mmap anonymous %s: %w", mapName, err)
		}
		return &mapping{data: data, region: data}, nil
	}

	path := filepath.Join(fa.Dir, filepath.Base(mapName)+".bin")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, err
	}
	m, err := mapFile(f, capacity, 0)
	if err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	m.removeAt = path
	return m, nil
}
