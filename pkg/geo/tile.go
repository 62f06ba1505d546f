package geo

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileID numbers tiles of every zoom level in one sequence: all tiles of lower zooms come first,
// then x*2^zoom + y.
func TileID(t maptile.Tile) uint64 {
	var offset uint64
	for z := uint32(0); z < uint32(t.Z); z++ {
		offset += uint64(1) << (2 * z)
	}
	return offset + uint64(t.X)<<uint32(t.Z) + uint64(t.Y)
}

// TileAt returns the id of the tile containing c at zoom.
func TileAt(c Coordinate, zoom uint32) uint64 {
	return TileID(maptile.At(c.Point(), maptile.Zoom(zoom)))
}

// TilesInBound lists the ids of every tile at zoom overlapping b.
func TilesInBound(b orb.Bound, zoom uint32) []uint64 {
	z := maptile.Zoom(zoom)
	// tile y grows southwards
	topLeft := maptile.At(orb.Point{b.Min[0], b.Max[1]}, z)
	bottomRight := maptile.At(orb.Point{b.Max[0], b.Min[1]}, z)

	var ids []uint64
	for x := topLeft.X; x <= bottomRight.X; x++ {
		for y := topLeft.Y; y <= bottomRight.Y; y++ {
			ids = append(ids, TileID(maptile.New(x, y, z)))
		}
	}
	return ids
}
