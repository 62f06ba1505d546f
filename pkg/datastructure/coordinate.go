package datastructure

import (
	"encoding/binary"
	"math"
)

type Coordinate struct {
	Lat float32
	Lon float32
}

func NewCoordinate(lat, lon float64) Coordinate {
	return Coordinate{Lat: float32(lat), Lon: float32(lon)}
}

// CoordinateCodec stores a coordinate as two little endian float32 values.
type CoordinateCodec struct{}

func (CoordinateCodec) SizeOf() int { return 8 }

func (CoordinateCodec) Read(b []byte) Coordinate {
	return Coordinate{
		Lat: math.Float32frombits(binary.LittleEndian.Uint32(b[0:4])),
		Lon: math.Float32frombits(binary.LittleEndian.Uint32(b[4:8])),
	}
}

func (CoordinateCodec) Write(b []byte, c Coordinate) {
	binary.LittleEndian.PutUint32(b[0:4], math.Float32bits(c.Lat))
	binary.LittleEndian.PutUint32(b[4:8], math.Float32bits(c.Lon))
}

func reverseCoordinates(shape []Coordinate) []Coordinate {
	out := make([]Coordinate, len(shape))
	for i, c := range shape {
		out[len(shape)-1-i] = c
	}
	return out
}
