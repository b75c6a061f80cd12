package mp3

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	binutil "github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// ID3v2 header flags
const (
	flagUnsynchronisation = 0x80
	flagExtendedHeader    = 0x40 // compression in ID3v2.2
	flagFooter            = 0x10
)

// ID3v2Header represents an ID3v2 tag header
type ID3v2Header struct {
	Version  byte // Major version (2, 3 or 4)
	Revision byte // Minor version
	Flags    byte
	Size     uint32 // Tag size (excluding header and footer), synchsafe
}

// TotalSize returns the number of bytes the tag occupies in the file.
func (h ID3v2Header) TotalSize() int64 {
	n := int64(10) + int64(h.Size)
	if h.Version == 4 && h.Flags&flagFooter != 0 {
		n += 10
	}
	return n
}

// ID3v2Frame is the header of one frame and where its body lives.
type ID3v2Frame struct {
	ID    string // 3- or 4-character frame ID (e.g. "APIC", "PIC")
	Size  int64  // Body size as stored
	Flags uint16 // Frame flags (zero for ID3v2.2)

	// src holds the body at [Offset, Offset+Size). inline is set when src
	// is a decoded copy rather than the file itself.
	src    *binutil.SafeReader
	Offset int64
	inline bool
}

// readID3v2Header reads the 10-byte tag header at offset 0.
func readID3v2Header(sr *binutil.SafeReader) (ID3v2Header, error) {
	buf := make([]byte, 10)
	if err := sr.ReadAt(buf, 0, "ID3v2 header"); err != nil {
		return ID3v2Header{}, err
	}

	if string(buf[0:3]) != "ID3" {
		return ID3v2Header{}, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "missing ID3 header",
		}
	}

	header := ID3v2Header{
		Version:  buf[3],
		Revision: buf[4],
		Flags:    buf[5],
		Size:     types.DecodeSynchsafe(buf[6:10]),
	}

	if header.Version < 2 || header.Version > 4 {
		return ID3v2Header{}, &types.UnsupportedFormatError{
			Path:   sr.Path(),
			Reason: fmt.Sprintf("unsupported ID3v2 version: 2.%d", header.Version),
		}
	}
	for _, b := range buf[6:10] {
		if b&0x80 != 0 {
			return ID3v2Header{}, &types.CorruptedFileError{
				Path:   sr.Path(),
				Offset: 6,
				Reason: "ID3v2 tag size is not synchsafe",
			}
		}
	}

	return header, nil
}

// tagBody returns a reader over the frame area and the offset where frames
// start. A tag unsynchronised as a whole (ID3v2.2 and 2.3) is decoded into
// memory first.
func tagBody(sr *binutil.SafeReader, header ID3v2Header, c *types.Container) (*binutil.SafeReader, int64, int64, bool, error) {
	start := int64(10)
	end := int64(10) + int64(header.Size)
	if end > sr.Size() {
		c.Warn("tags", sr.Size(), "ID3v2 tag claims %d bytes, file ends at %d", end, sr.Size())
		end = sr.Size()
	}

	src := sr
	inline := false
	if header.Version < 4 && header.Flags&flagUnsynchronisation != 0 {
		raw, err := sr.Bytes(start, end-start, "unsynchronised ID3v2 tag")
		if err != nil {
			return nil, 0, 0, false, err
		}
		decoded := removeUnsynchronisation(raw)
		src = binutil.NewSafeReader(bytes.NewReader(decoded), int64(len(decoded)), sr.Path()).WithContext(sr.Context())
		start, end, inline = 0, int64(len(decoded)), true
	}

	if header.Version >= 3 && header.Flags&flagExtendedHeader != 0 {
		sizeBuf, err := src.Bytes(start, 4, "extended header size")
		if err != nil {
			return nil, 0, 0, false, err
		}
		if header.Version == 4 {
			// Synchsafe, includes the size field itself
			start += int64(types.DecodeSynchsafe(sizeBuf))
		} else {
			start += 4 + int64(binary.BigEndian.Uint32(sizeBuf))
		}
	}

	return src, start, end, inline, nil
}

// readFrames walks the frame headers of the tag and calls fn for each.
// Padding or an invalid frame ID ends the walk.
func readFrames(sr *binutil.SafeReader, header ID3v2Header, c *types.Container, fn func(ID3v2Frame) error) error {
	if header.Version == 2 && header.Flags&flagExtendedHeader != 0 {
		c.Warn("tags", 5, "compressed ID3v2.2 tag skipped")
		return nil
	}

	src, offset, end, inline, err := tagBody(sr, header, c)
	if err != nil {
		return err
	}

	headerSize := int64(10)
	if header.Version == 2 {
		headerSize = 6
	}

	for offset+headerSize <= end {
		buf, err := src.Bytes(offset, headerSize, "frame header")
		if err != nil {
			return err
		}

		// Check for padding (null bytes indicate end of frames)
		if buf[0] == 0 {
			return nil
		}

		frame := ID3v2Frame{src: src, inline: inline, Offset: offset + headerSize}
		if header.Version == 2 {
			frame.ID = string(buf[0:3])
			frame.Size = int64(buf[3])<<16 | int64(buf[4])<<8 | int64(buf[5])
		} else {
			frame.ID = string(buf[0:4])
			frame.Size = int64(decodeFrameSize(header.Version, buf[4:8]))
			frame.Flags = binary.BigEndian.Uint16(buf[8:10])
		}

		if !validFrameID(frame.ID) {
			c.Warn("tags", offset, "invalid frame ID %q, stopping", frame.ID)
			return nil
		}
		if frame.Offset+frame.Size > end {
			c.Warn("tags", offset, "frame %s truncated (%d bytes)", frame.ID, frame.Size)
			return nil
		}

		if err := fn(frame); err != nil {
			return err
		}
		offset = frame.Offset + frame.Size
	}
	return nil
}

// decodeFrameSize decodes a frame size. ID3v2.4 sizes are synchsafe, but
// some writers store plain integers; a byte with the high bit set means
// the size cannot be synchsafe.
func decodeFrameSize(version byte, b []byte) uint32 {
	if version == 4 && b[0]&0x80 == 0 && b[1]&0x80 == 0 && b[2]&0x80 == 0 && b[3]&0x80 == 0 {
		return types.DecodeSynchsafe(b)
	}
	return binary.BigEndian.Uint32(b)
}

func validFrameID(id string) bool {
	for i := range len(id) {
		c := id[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// removeUnsynchronisation reverses the 0xFF 0x00 escaping.
func removeUnsynchronisation(data []byte) []byte {
	out := make([]byte, 0, len(data))
	for i := 0; i < len(data); i++ {
		out = append(out, data[i])
		if data[i] == 0xFF && i+1 < len(data) && data[i+1] == 0x00 {
			i++
		}
	}
	return out
}

// textDecoders maps ID3v2 text encoding bytes to decoders.
var textDecoders = map[byte]encoding.Encoding{
	0: charmap.ISO8859_1,
	1: unicode.UTF16(unicode.LittleEndian, unicode.UseBOM),
	2: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM),
	3: encoding.Nop,
}

// decodeText decodes text based on ID3v2 encoding byte
func decodeText(data []byte, enc byte) string {
	if len(data) == 0 {
		return ""
	}
	dec, ok := textDecoders[enc]
	if !ok {
		// Unknown encoding - try as ISO-8859-1
		dec = charmap.ISO8859_1
	}
	out, err := dec.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(bytes.TrimRight(out, "\x00"))
}

// findNullTerminator finds the null terminator based on encoding
func findNullTerminator(data []byte, enc byte) int {
	switch enc {
	case 1, 2: // UTF-16 (double-byte null)
		for i := 0; i < len(data)-1; i += 2 {
			if data[i] == 0 && data[i+1] == 0 {
				return i
			}
		}
		return -1

	default: // ISO-8859-1, UTF-8 (single-byte null)
		return bytes.IndexByte(data, 0)
	}
}

// terminatorSize returns the size of the null terminator for the encoding
func terminatorSize(enc byte) int {
	switch enc {
	case 1, 2: // UTF-16
		return 2
	default:
		return 1
	}
}
