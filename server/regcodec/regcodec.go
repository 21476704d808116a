// Package regcodec reads and writes fixed-width integers at byte offsets of
// register and frame buffers.
//
// All helpers panic when the offset does not leave room for the value. That
// is a caller bug, not a runtime condition.
package regcodec

import "encoding/binary"

// Uint8 returns the byte at offset.
func Uint8(b []byte, offset int) uint8 {
	return b[offset]
}

// Int8 returns the signed byte at offset.
func Int8(b []byte, offset int) int8 {
	return int8(b[offset])
}

// Uint16 decodes a big-endian uint16 at offset.
func Uint16(b []byte, offset int) uint16 {
	return binary.BigEndian.Uint16(b[offset : offset+2])
}

// Int16 decodes a big-endian int16 at offset.
func Int16(b []byte, offset int) int16 {
	return int16(Uint16(b, offset))
}

// Uint32 decodes a big-endian uint32 at offset.
func Uint32(b []byte, offset int) uint32 {
	return binary.BigEndian.Uint32(b[offset : offset+4])
}

// Int32 decodes a big-endian int32 at offset.
func Int32(b []byte, offset int) int32 {
	return int32(Uint32(b, offset))
}

func PutUint8(b []byte, offset int, v uint8) {
	b[offset] = v
}

func PutInt8(b []byte, offset int, v int8) {
	b[offset] = byte(v)
}

func PutUint16(b []byte, offset int, v uint16) {
	binary.BigEndian.PutUint16(b[offset:offset+2], v)
}

func PutInt16(b []byte, offset int, v int16) {
	PutUint16(b, offset, uint16(v))
}

func PutUint32(b []byte, offset int, v uint32) {
	binary.BigEndian.PutUint32(b[offset:offset+4], v)
}

func PutInt32(b []byte, offset int, v int32) {
	PutUint32(b, offset, uint32(v))
}

// Int32Bytes returns v as a fresh 4-byte big-endian slice.
func Int32Bytes(v int32) []byte {
	b := make([]byte, 4)
	PutInt32(b, 0, v)
	return b
}

// Uint16Bytes returns v as a fresh 2-byte big-endian slice.
func Uint16Bytes(v uint16) []byte {
	b := make([]byte, 2)
	PutUint16(b, 0, v)
	return b
}

// LittleEndian mirrors the big-endian helpers for buses that order bytes the
// other way round.
var LittleEndian littleEndian

type littleEndian struct{}

func (littleEndian) Uint16(b []byte, offset int) uint16 {
	return binary.LittleEndian.Uint16(b[offset : offset+2])
}

func (littleEndian) Int16(b []byte, offset int) int16 {
	return int16(binary.LittleEndian.Uint16(b[offset : offset+2]))
}

func (littleEndian) Uint32(b []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(b[offset : offset+4])
}

func (littleEndian) Int32(b []byte, offset int) int32 {
	return int32(binary.LittleEndian.Uint32(b[offset : offset+4]))
}

func (littleEndian) PutUint16(b []byte, offset int, v uint16) {
	binary.LittleEndian.PutUint16(b[offset:offset+2], v)
}

func (littleEndian) PutUint32(b []byte, offset int, v uint32) {
	binary.LittleEndian.PutUint32(b[offset:offset+4], v)
}

func (littleEndian) PutInt32(b []byte, offset int, v int32) {
	binary.LittleEndian.PutUint32(b[offset:offset+4], uint32(v))
}
