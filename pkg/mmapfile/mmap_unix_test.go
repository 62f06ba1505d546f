//go:build unix

package mmapfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lintang-b-s/roadgraph/pkg/hugearray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryMappedOverSpillFiles(t *testing.T) {
	dir := t.TempDir()
	arr, err := hugearray.NewMemoryMapped[uint32](NewFactory(dir), hugearray.Uint32Codec{}, "vertices", 300,
		hugearray.WithFileElementSize(64), hugearray.WithCacheBlockSize(16))
	require.NoError(t, err)

	for i := int64(0); i < arr.Length(); i++ {
		arr.Set(i, uint32(1000+i))
	}
	for i := int64(0); i < arr.Length(); i++ {
		assert.Equal(t, uint32(1000+i), arr.Get(i))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	require.NoError(t, arr.Close())
	require.NoError(t, arr.Close())

	entries, err = os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAnonymousMapping(t *testing.T) {
	arr, err := hugearray.NewMemoryMapped[int64](NewFactory(""), hugearray.Int64Codec{}, "anon", 50)
	require.NoError(t, err)
	defer arr.Close()

	arr.Set(49, -7)
	assert.Equal(t, int64(-7), arr.Get(49))
	require.NoError(t, arr.Resize(5000))
	assert.Equal(t, int64(0), arr.Get(4999))
}

func TestCreateFromFileUnalignedOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.bin")
	require.NoError(t, os.WriteFile(path, []byte("0123456789"), 0o644))

	f, err := NewFactory("").CreateFromFile(path, 4, 3)
	require.NoError(t, err)
	assert.Equal(t, []byte("3456"), f.Bytes())
	copy(f.Bytes(), "abcd")
	require.NoError(t, f.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "012abcd789", string(content))
}
