// Package mmapfile backs memory mapped huge arrays with real file or anonymous memory mappings.
package mmapfile

import (
	"errors"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
)

var ErrUnsupported = errors.New("mmapfile: memory mapping is not supported on this platform")

// Factory creates mappings. Spill regions made by CreateNew live in Dir as files that are removed on
// close; an empty Dir uses anonymous shared memory instead.
type Factory struct {
	Dir string
}

var _ hugearray.FileFactory = (*Factory)(nil)

func NewFactory(dir string) *Factory {
	return &Factory{Dir: dir}
}
