// Package contracted reads and writes contracted routing graphs in a block structured binary format.
//
// Layout after the version envelope, offsets relative to the end of the envelope:
//
//	header      int32 startOfBlocks, startOfShapes, startOfReverses, startOfTags, sizeOfRegionIndex
//	regions     RegionIndex (sizeOfRegionIndex bytes) followed by Region records
//	blocks      int32 sizeOfBlockIndex, BlockIndex, gzip compressed Block records
//	shapes      same structure, ShapeBlock records
//	reverses    same structure, ReverseBlock records
//	tags        tag index section, up to the end of the file
package contracted

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

const headerSize = 20

var (
	ErrIncompatibleFormat = errors.New("contracted: incompatible file format")
	ErrCorruptData        = errors.New("contracted: corrupt data")
	ErrUnknownVertex      = errors.New("contracted: unknown vertex")
)

type header struct {
	startOfBlocks     int32
	startOfShapes     int32
	startOfReverses   int32
	startOfTags       int32
	sizeOfRegionIndex int32
}

func (h header) marshal() []byte {
	b := make([]byte, headerSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(h.startOfBlocks))
	binary.LittleEndian.PutUint32(b[4:], uint32(h.startOfShapes))
	binary.LittleEndian.PutUint32(b[8:], uint32(h.startOfReverses))
	binary.LittleEndian.PutUint32(b[12:], uint32(h.startOfTags))
	binary.LittleEndian.PutUint32(b[16:], uint32(h.sizeOfRegionIndex))
	return b
}

func unmarshalHeader(b []byte) header {
	return header{
		startOfBlocks:     int32(binary.LittleEndian.Uint32(b[0:])),
		startOfShapes:     int32(binary.LittleEndian.Uint32(b[4:])),
		startOfReverses:   int32(binary.LittleEndian.Uint32(b[8:])),
		startOfTags:       int32(binary.LittleEndian.Uint32(b[12:])),
		sizeOfRegionIndex: int32(binary.LittleEndian.Uint32(b[16:])),
	}
}

// BlockID returns the id of the block holding vertex v; ids start at 1 like vertex ids.
func BlockID(v, blockSize uint32) uint32 {
	return ((v-1)/blockSize)*blockSize + 1
}

func writeEnvelope(w io.Writer, version string) error {
	if len(version) > 255 {
		return fmt.Errorf("version string too long: %d bytes", len(version))
	}
	if _, err := w.Write([]byte{byte(len(version))}); err != nil {
		return err
	}
	_, err := io.WriteString(w, version)
	return err
}

// readEnvelope returns the size of the envelope once the version is confirmed.
func readEnvelope(r io.ReaderAt, version string) (int64, error) {
	var l [1]byte
	if _, err := r.ReadAt(l[:], 0); err != nil {
		return 0, fmt.Errorf("%w: reading version: %w", ErrIncompatibleFormat, err)
	}
	found := make([]byte, l[0])
	if _, err := r.ReadAt(found, 1); err != nil {
		return 0, fmt.Errorf("%w: reading version: %w", ErrIncompatibleFormat, err)
	}
	if string(found) != version {
		return 0, fmt.Errorf("%w: expected version %q, found %q", ErrIncompatibleFormat, version, found)
	}
	return int64(1 + len(found)), nil
}

func compress(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
