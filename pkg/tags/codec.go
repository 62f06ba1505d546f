package tags

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/osm"
	"google.golang.org/protobuf/encoding/protowire"
)

var ErrCorruptTags = errors.New("tags: corrupt tag section")

// BlockCodec writes and reads a whole tag index as one opaque section of a routing file.
type BlockCodec interface {
	SerializeBlocks(w io.Writer, index Index) error
	DeserializeBlocks(r io.Reader) (Index, error)
}

const DefaultTagsPerBlock = 1000

// ProtoBlockCodec stores the index as gzip compressed blocks of protobuf encoded tag collections,
// preceded by an int32 block count and one int32 size per block.
type ProtoBlockCodec struct {
	BlockSize int
}

func (c ProtoBlockCodec) blockSize() int {
	if c.BlockSize <= 0 {
		return DefaultTagsPerBlock
	}
	return c.BlockSize
}

// tag collection: repeated bytes tag = 1; tag: string key = 1, string value = 2
func appendCollection(b []byte, tags osm.Tags) []byte {
	var msg []byte
	for _, t := range tags {
		var tag []byte
		tag = protowire.AppendTag(tag, 1, protowire.BytesType)
		tag = protowire.AppendString(tag, t.Key)
		tag = protowire.AppendTag(tag, 2, protowire.BytesType)
		tag = protowire.AppendString(tag, t.Value)
		msg = protowire.AppendTag(msg, 1, protowire.BytesType)
		msg = protowire.AppendBytes(msg, tag)
	}
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (c ProtoBlockCodec) SerializeBlocks(w io.Writer, index Index) error {
	n := index.Len()
	bs := c.blockSize()
	var blocks [][]byte
	for start := 0; start < n; start += bs {
		var raw []byte
		for id := start; id < start+bs && id < n; id++ {
			tags, _ := index.Get(uint32(id))
			raw = appendCollection(raw, tags)
		}
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		blocks = append(blocks, buf.Bytes())
	}

	header := make([]byte, 4*(len(blocks)+1))
	binary.LittleEndian.PutUint32(header, uint32(len(blocks)))
	for i, b := range blocks {
		binary.LittleEndian.PutUint32(header[4*(i+1):], uint32(len(b)))
	}
	if _, err := w.Write(header); err != nil {
		return err
	}
	for _, b := range blocks {
		if _, err := w.Write(b); err != nil {
			return err
		}
	}
	return nil
}

func (c ProtoBlockCodec) DeserializeBlocks(r io.Reader) (Index, error) {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("%w: reading block count: %w", ErrCorruptTags, err)
	}
	sizes := make([]uint32, count)
	if err := binary.Read(r, binary.LittleEndian, sizes); err != nil {
		return nil, fmt.Errorf("%w: reading block sizes: %w", ErrCorruptTags, err)
	}

	index := NewMemoryIndex()
	for i, size := range sizes {
		compressed := make([]byte, size)
		if _, err := io.ReadFull(r, compressed); err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrCorruptTags, i, err)
		}
		zr, err := gzip.NewReader(bytes.NewReader(compressed))
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrCorruptTags, i, err)
		}
		raw, err := io.ReadAll(zr)
		zr.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrCorruptTags, i, err)
		}
		if err := decodeCollections(raw, index); err != nil {
			return nil, fmt.Errorf("%w: block %d: %w", ErrCorruptTags, i, err)
		}
	}
	return index, nil
}

func decodeCollections(b []byte, index *MemoryIndex) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		if num != 1 || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		tags, err := decodeCollection(msg)
		if err != nil {
			return err
		}
		// ids are positional, append without deduplication
		index.mu.Lock()
		index.byKey[key(tags)] = uint32(len(index.tags))
		index.tags = append(index.tags, tags)
		index.mu.Unlock()
	}
	return nil
}

func decodeCollection(b []byte) (osm.Tags, error) {
	var tags osm.Tags
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		if num != 1 || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		tag, err := decodeTag(raw)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

func decodeTag(b []byte) (osm.Tag, error) {
	var tag osm.Tag
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return tag, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return tag, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return tag, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case 1:
			tag.Key = v
		case 2:
			tag.Value = v
		}
	}
	return tag, nil
}
