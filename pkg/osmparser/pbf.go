package osmparser

import (
	"context"
	"errors"
	"os"

	"github.com/lintang-b-s/roadgraph/pkg/osmstream"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
)

type pbfScanner struct {
	*osmpbf.Scanner
	f *os.File
}

func (s *pbfScanner) Close() error {
	return errors.Join(s.Scanner.Close(), s.f.Close())
}

// OpenPBF returns a source decoding the PBF file at path with procs goroutines. The file is closed
// together with the scanner.
func OpenPBF(path string, procs int) osmstream.OpenFunc {
	return func(ctx context.Context) (osm.Scanner, error) {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		scanner := osmpbf.New(ctx, f, procs)
		return &pbfScanner{Scanner: scanner, f: f}, nil
	}
}
