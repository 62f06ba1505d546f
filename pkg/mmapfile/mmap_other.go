//go:build !unix

package mmapfile

import "github.com/lintang-b-s/roadgraph/pkg/hugearray"

func (fa *Factory) CreateFromFile(string, int64, int64) (hugearray.MappedFile, error) {
	return nil, ErrUnsupported
}

func (fa *Factory) CreateNew(string, int64) (hugearray.MappedFile, error) {
	return nil, ErrUnsupported
}
