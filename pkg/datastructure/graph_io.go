package datastructure

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
)

const snapshotMagic = "roadgraph-snapshot"
const snapshotVersion = 1

var ErrBadSnapshot = errors.New("malformed graph snapshot")

// WriteGraph stores g as a bzip2 compressed text snapshot.
func WriteGraph[T any](filename string, g *GeometricGraph[T]) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	bz, err := bzip2.NewWriter(f, &bzip2.WriterConfig{})
	if err != nil {
		return err
	}

	if err := writeSnapshot(bz, g); err != nil {
		bz.Close()
		return err
	}
	if err := bz.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func writeSnapshot[T any](out io.Writer, g *GeometricGraph[T]) error {
	w := bufio.NewWriter(out)
	flat := g.FlatGraph

	fmt.Fprintf(w, "%s %d\n", snapshotMagic, snapshotVersion)
	fmt.Fprintf(w, "%d %d %d %d %t\n", flat.edgeDataSize, flat.vertexCount, flat.nextRecord,
		flat.edgeCount, flat.duplicates)

	for v := uint32(0); v < flat.vertexCount; v++ {
		c := g.coordinates.Get(int64(v))
		fmt.Fprintf(w, "%d %s %s\n", flat.vertices.Get(int64(v)),
			strconv.FormatFloat(float64(c.Lat), 'f', -1, 32), strconv.FormatFloat(float64(c.Lon), 'f', -1, 32))
	}

	for r := uint32(0); r < flat.nextRecord; r++ {
		for f := int64(0); f < flat.edgeSize; f++ {
			if f > 0 {
				w.WriteByte(' ')
			}
			w.WriteString(strconv.FormatUint(uint64(flat.word(r, f)), 10))
		}
		w.WriteByte('\n')
	}

	for r := uint32(0); r < flat.nextRecord; r++ {
		shape := g.shapes.Get(r)
		fmt.Fprintf(w, "%d", len(shape))
		for _, c := range shape {
			fmt.Fprintf(w, " %s %s", strconv.FormatFloat(float64(c.Lat), 'f', -1, 32),
				strconv.FormatFloat(float64(c.Lon), 'f', -1, 32))
		}
		w.WriteByte('\n')
	}
	return w.Flush()
}

// ReadGraph loads a snapshot written by WriteGraph into memory.
func ReadGraph[T any](filename string, codec EdgeDataCodec[T]) (*GeometricGraph[T], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	bz, err := bzip2.NewReader(f, nil)
	if err != nil {
		return nil, err
	}
	defer bz.Close()
	return readSnapshot(bz, codec)
}

func fields(s string) []string {
	return strings.Fields(s)
}

func parseFloat32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func readSnapshot[T any](in io.Reader, codec EdgeDataCodec[T]) (*GeometricGraph[T], error) {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 1024*1024), 64*1024*1024)
	line := 0
	next := func() ([]string, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: unexpected end at line %d", ErrBadSnapshot, line+1)
		}
		line++
		return fields(sc.Text()), nil
	}
	bad := func(format string, a ...any) error {
		return fmt.Errorf("%w: line %d: %s", ErrBadSnapshot, line, fmt.Sprintf(format, a...))
	}

	head, err := next()
	if err != nil {
		return nil, err
	}
	if len(head) != 2 || head[0] != snapshotMagic || head[1] != strconv.Itoa(snapshotVersion) {
		return nil, bad("unsupported snapshot header %q", strings.Join(head, " "))
	}

	meta, err := next()
	if err != nil {
		return nil, err
	}
	if len(meta) != 5 {
		return nil, bad("expected 5 header fields, got %d", len(meta))
	}
	dataSize, err1 := strconv.Atoi(meta[0])
	vertexCount, err2 := strconv.ParseUint(meta[1], 10, 32)
	nextRecord, err3 := strconv.ParseUint(meta[2], 10, 32)
	edgeCount, err4 := strconv.ParseInt(meta[3], 10, 64)
	duplicates, err5 := strconv.ParseBool(meta[4])
	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, bad("%v", err)
	}
	if dataSize != codec.Size() {
		return nil, bad("edge data size %d does not match codec size %d", dataSize, codec.Size())
	}

	edgeSize := int64(edgeHeaderSize + dataSize)
	vertices := hugearray.NewArray[uint32](int64(vertexCount))
	coordinates := hugearray.NewArray[Coordinate](int64(vertexCount))
	for v := int64(0); v < int64(vertexCount); v++ {
		fs, err := next()
		if err != nil {
			return nil, err
		}
		if len(fs) != 3 {
			return nil, bad("vertex %d: expected 3 fields", v)
		}
		headPtr, err := strconv.ParseUint(fs[0], 10, 32)
		if err != nil {
			return nil, bad("vertex %d: %v", v, err)
		}
		lat, err1 := parseFloat32(fs[1])
		lon, err2 := parseFloat32(fs[2])
		if err := errors.Join(err1, err2); err != nil {
			return nil, bad("vertex %d: %v", v, err)
		}
		vertices.Set(v, uint32(headPtr))
		coordinates.Set(v, Coordinate{Lat: lat, Lon: lon})
	}

	edges := hugearray.NewArray[uint32](int64(nextRecord) * edgeSize)
	for r := int64(0); r < int64(nextRecord); r++ {
		fs, err := next()
		if err != nil {
			return nil, err
		}
		if int64(len(fs)) != edgeSize {
			return nil, bad("edge record %d: expected %d words", r, edgeSize)
		}
		for i, s := range fs {
			word, err := strconv.ParseUint(s, 10, 32)
			if err != nil {
				return nil, bad("edge record %d: %v", r, err)
			}
			edges.Set(r*edgeSize+int64(i), uint32(word))
		}
	}

	shapes := NewShapeIndex(hugearray.NewArray[uint64](int64(nextRecord)), hugearray.NewArray[Coordinate](0))
	for r := uint32(0); r < uint32(nextRecord); r++ {
		fs, err := next()
		if err != nil {
			return nil, err
		}
		if len(fs) == 0 {
			return nil, bad("shape %d: empty line", r)
		}
		count, err := strconv.Atoi(fs[0])
		if err != nil || len(fs) != 1+2*count {
			return nil, bad("shape %d: bad coordinate count", r)
		}
		shape := make([]Coordinate, count)
		for i := range shape {
			lat, err1 := parseFloat32(fs[1+2*i])
			lon, err2 := parseFloat32(fs[2+2*i])
			if err := errors.Join(err1, err2); err != nil {
				return nil, bad("shape %d: %v", r, err)
			}
			shape[i] = Coordinate{Lat: lat, Lon: lon}
		}
		if err := shapes.Set(r, shape); err != nil {
			return nil, err
		}
	}

	flat, err := NewFlatGraphWithArrays(dataSize, vertices, edges, duplicates)
	if err != nil {
		return nil, err
	}
	flat.vertexCount = uint32(vertexCount)
	flat.nextRecord = uint32(nextRecord)
	flat.edgeCount = edgeCount

	typed, err := NewTypedGraphWith(flat, codec)
	if err != nil {
		return nil, err
	}
	return &GeometricGraph[T]{TypedGraph: typed, coordinates: coordinates, shapes: shapes}, nil
}
