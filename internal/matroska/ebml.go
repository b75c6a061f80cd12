// Package matroska walks Matroska and WebM files (EBML) for media tracks
// and attached files.
package matroska

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// Element IDs, stored with their length marker bits as they appear on disk.
const (
	idEBML    = 0x1A45DFA3
	idDocType = 0x4282
	idVoid    = 0xEC
	idCRC32   = 0xBF

	idSegment      = 0x18538067
	idSeekHead     = 0x114D9B74
	idSeek         = 0x4DBB
	idSeekID       = 0x53AB
	idSeekPosition = 0x53AC
	idCluster      = 0x1F43B675

	idTracks        = 0x1654AE6B
	idTrackEntry    = 0xAE
	idTrackNumber   = 0xD7
	idTrackType     = 0x83
	idCodecID       = 0x86
	idName          = 0x536E
	idLanguage      = 0x22B59C
	idLanguageBCP47 = 0x22B59D

	idAttachments     = 0x1941A469
	idAttachedFile    = 0x61A7
	idFileDescription = 0x467E
	idFileName        = 0x466E
	idFileMimeType    = 0x4660
	idFileData        = 0x465C
	idFileUID         = 0x46AE
)

// maxStringSize bounds string elements read into tags.
const maxStringSize = 64 << 10

// element is one EBML element header.
type element struct {
	ID         uint32
	Offset     int64 // position of the ID
	DataOffset int64 // position of the body
	Size       int64

	// UnknownSize is set when the size field has all value bits set.
	// Only Segment and Cluster may use it in practice.
	UnknownSize bool
}

// End returns the offset just past the element body.
func (e element) End() int64 {
	return e.DataOffset + e.Size
}

// readElement reads the element header at off.
func readElement(sr *binary.SafeReader, off int64) (element, error) {
	id, idLen, err := readID(sr, off)
	if err != nil {
		return element{}, err
	}

	size, sizeLen, unknown, err := readSize(sr, off+int64(idLen))
	if err != nil {
		return element{}, err
	}

	return element{
		ID:          id,
		Offset:      off,
		DataOffset:  off + int64(idLen) + int64(sizeLen),
		Size:        size,
		UnknownSize: unknown,
	}, nil
}

// readID reads an element ID (1 to 4 bytes, marker kept).
func readID(sr *binary.SafeReader, off int64) (uint32, int, error) {
	first, err := binary.Read[uint8](sr, off, "EBML element ID")
	if err != nil {
		return 0, 0, err
	}
	length := bits.LeadingZeros8(first) + 1
	if length > 4 {
		return 0, 0, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: off,
			Reason: fmt.Sprintf("invalid EBML element ID byte 0x%02x", first),
		}
	}

	id := uint32(first)
	if length > 1 {
		rest, err := sr.Bytes(off+1, int64(length-1), "EBML element ID")
		if err != nil {
			return 0, 0, err
		}
		for _, b := range rest {
			id = id<<8 | uint32(b)
		}
	}
	return id, length, nil
}

// readSize reads an element data size (1 to 8 bytes, marker stripped).
func readSize(sr *binary.SafeReader, off int64) (int64, int, bool, error) {
	first, err := binary.Read[uint8](sr, off, "EBML element size")
	if err != nil {
		return 0, 0, false, err
	}
	if first == 0 {
		return 0, 0, false, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: off,
			Reason: "invalid EBML size length",
		}
	}

	length := bits.LeadingZeros8(first) + 1
	value := uint64(first & (0xFF >> length))
	if length > 1 {
		rest, err := sr.Bytes(off+1, int64(length-1), "EBML element size")
		if err != nil {
			return 0, 0, false, err
		}
		for _, b := range rest {
			value = value<<8 | uint64(b)
		}
	}

	unknown := value == (uint64(1)<<(7*length))-1
	return int64(value), length, unknown, nil
}

// readUint decodes an unsigned integer element body.
func readUint(sr *binary.SafeReader, e element) (uint64, error) {
	if e.Size > 8 {
		return 0, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: e.Offset,
			Reason: fmt.Sprintf("unsigned integer element 0x%X has %d bytes", e.ID, e.Size),
		}
	}
	buf, err := sr.Bytes(e.DataOffset, e.Size, "EBML unsigned integer")
	if err != nil {
		return 0, err
	}
	var v uint64
	for _, b := range buf {
		v = v<<8 | uint64(b)
	}
	return v, nil
}

// readString decodes a string or UTF-8 element body, dropping NUL padding.
func readString(sr *binary.SafeReader, e element) (string, error) {
	if e.Size > maxStringSize {
		return "", &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: e.Offset,
			Reason: fmt.Sprintf("string element 0x%X too large (%d bytes)", e.ID, e.Size),
		}
	}
	buf, err := sr.Bytes(e.DataOffset, e.Size, "EBML string")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(buf), "\x00"), nil
}

// forEachChild calls fn for every child of parent, in file order.
// A child that overruns its parent is reported as corruption.
func forEachChild(sr *binary.SafeReader, parent element, fn func(child element) error) error {
	off := parent.DataOffset
	end := parent.End()
	for off < end {
		child, err := readElement(sr, off)
		if err != nil {
			return err
		}
		if child.UnknownSize || child.End() > end {
			return &types.CorruptedFileError{
				Path:   sr.Path(),
				Offset: child.Offset,
				Reason: fmt.Sprintf("element 0x%X overruns its parent 0x%X", child.ID, parent.ID),
			}
		}
		if err := fn(child); err != nil {
			return err
		}
		off = child.End()
	}
	return nil
}
