// Package pix defines the pixel element types an image buffer can store and
// the conversions between them.
//
// Values move between types through float32: unsigned integer types are
// normalized to [0,1], signed integer types to [-1,1], and the floating-point
// types pass through unchanged. Buffers are plain byte slices in little-endian
// layout so the same bytes round-trip through files and the tile cache.
package pix

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Type identifies a pixel element type.
type Type uint8

const (
	Unknown Type = iota
	UInt8
	Int8
	UInt16
	Int16
	UInt32
	Int32
	Half
	Float
	Double

	numTypes
)

var typeNames = [numTypes]string{
	"unknown", "uint8", "int8", "uint16", "int16",
	"uint32", "int32", "half", "float", "double",
}

var typeSizes = [numTypes]int{0, 1, 1, 2, 2, 4, 4, 2, 4, 8}

// String returns the canonical lowercase name of the type.
func (t Type) String() string {
	if t >= numTypes {
		return "invalid"
	}
	return typeNames[t]
}

// Size returns the byte size of one element, 0 for Unknown.
func (t Type) Size() int {
	if t >= numTypes {
		return 0
	}
	return typeSizes[t]
}

// IsValid reports whether t names a concrete storable type.
func (t Type) IsValid() bool { return t > Unknown && t < numTypes }

// IsFloatingPoint reports whether t stores values without normalization.
func (t Type) IsFloatingPoint() bool { return t == Half || t == Float || t == Double }

// FromString parses a type name as produced by String. Returns Unknown for
// unrecognized names.
func FromString(name string) Type {
	for i, n := range typeNames {
		if n == name {
			return Type(i)
		}
	}
	// Common aliases seen in file metadata.
	switch name {
	case "float32":
		return Float
	case "float64":
		return Double
	case "float16":
		return Half
	}
	return Unknown
}

// GetFloat reads one element of type t from the front of data and converts it
// to float32. Integer types are normalized.
func GetFloat(t Type, data []byte) float32 {
	switch t {
	case UInt8:
		return float32(data[0]) / math.MaxUint8
	case Int8:
		v := float32(int8(data[0])) / math.MaxInt8
		return maxf(v, -1)
	case UInt16:
		return float32(binary.LittleEndian.Uint16(data)) / math.MaxUint16
	case Int16:
		v := float32(int16(binary.LittleEndian.Uint16(data))) / math.MaxInt16
		return maxf(v, -1)
	case UInt32:
		return float32(float64(binary.LittleEndian.Uint32(data)) / math.MaxUint32)
	case Int32:
		v := float32(float64(int32(binary.LittleEndian.Uint32(data))) / math.MaxInt32)
		return maxf(v, -1)
	case Half:
		return HalfToFloat(binary.LittleEndian.Uint16(data))
	case Float:
		return math.Float32frombits(binary.LittleEndian.Uint32(data))
	case Double:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(data)))
	}
	panic(fmt.Sprintf("pix: GetFloat on unsupported type %d", t))
}

// PutFloat converts v to type t and writes one element to the front of data.
// Integer targets are scaled, rounded, and clamped to the representable range.
func PutFloat(t Type, data []byte, v float32) {
	switch t {
	case UInt8:
		data[0] = uint8(clampRound(float64(v)*math.MaxUint8, 0, math.MaxUint8))
	case Int8:
		data[0] = uint8(int8(clampRound(float64(v)*math.MaxInt8, math.MinInt8, math.MaxInt8)))
	case UInt16:
		binary.LittleEndian.PutUint16(data, uint16(clampRound(float64(v)*math.MaxUint16, 0, math.MaxUint16)))
	case Int16:
		binary.LittleEndian.PutUint16(data, uint16(int16(clampRound(float64(v)*math.MaxInt16, math.MinInt16, math.MaxInt16))))
	case UInt32:
		binary.LittleEndian.PutUint32(data, uint32(clampRound(float64(v)*math.MaxUint32, 0, math.MaxUint32)))
	case Int32:
		binary.LittleEndian.PutUint32(data, uint32(int32(clampRound(float64(v)*math.MaxInt32, math.MinInt32, math.MaxInt32))))
	case Half:
		binary.LittleEndian.PutUint16(data, FloatToHalf(v))
	case Float:
		binary.LittleEndian.PutUint32(data, math.Float32bits(v))
	case Double:
		binary.LittleEndian.PutUint64(data, math.Float64bits(float64(v)))
	default:
		panic(fmt.Sprintf("pix: PutFloat on unsupported type %d", t))
	}
}

func clampRound(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
