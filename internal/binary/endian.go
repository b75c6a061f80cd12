package binary

import "encoding/binary"

// Endianness represents byte order for multi-byte values.
type Endianness int

const (
	// BigEndian is used by ISO-BMFF atoms, ID3v2, FLAC metadata blocks and EBML.
	BigEndian Endianness = iota

	// LittleEndian is used by Ogg page headers and Vorbis comments.
	LittleEndian
)

// ReadLE reads a little-endian value of type T at the given offset.
//
//	serial, err := binary.ReadLE[uint32](sr, pageOffset+14, "serial number")
func ReadLE[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, LittleEndian)
}

// ReadBE reads a big-endian value of type T at the given offset.
// Equivalent to Read() but more explicit about byte order.
func ReadBE[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, BigEndian)
}

// ReadEndian reads a value of type T at the given offset with the given byte order.
func ReadEndian[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string, endian Endianness) (T, error) {
	var zero T

	buf := make([]byte, sizeOf[T]())
	if err := sr.ReadAt(buf, off, what); err != nil {
		return zero, err
	}

	return Decode[T](buf, endian), nil
}

// Decode converts the leading bytes of buf into a value of type T.
// buf must hold at least sizeof(T) bytes.
func Decode[T uint8 | uint16 | uint32 | uint64](buf []byte, endian Endianness) T {
	var order binary.ByteOrder = binary.BigEndian
	if endian == LittleEndian {
		order = binary.LittleEndian
	}

	var zero T
	switch any(zero).(type) {
	case uint16:
		return T(order.Uint16(buf))
	case uint32:
		return T(order.Uint32(buf))
	case uint64:
		return T(order.Uint64(buf))
	default:
		return T(buf[0])
	}
}
