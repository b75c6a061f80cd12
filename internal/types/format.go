// Package types defines the structural model shared by the container walkers:
// formats, tracks, tags, attachments and errors.
package types

import (
	"bytes"
	"io"

	"github.com/simonhull/attachmeta/internal/binary"
)

// Format represents the detected container family.
type Format int

const (
	// FormatUnknown represents an unknown or unsupported format.
	FormatUnknown Format = iota
	// FormatMatroska represents Matroska files (.mkv, .mka, .mks).
	FormatMatroska
	// FormatWebM represents WebM files, the Matroska subset used on the web.
	FormatWebM
	// FormatMP4 represents ISO base media and QuickTime files.
	FormatMP4
	// FormatMP3 represents ID3v2-tagged and raw MPEG audio.
	FormatMP3
	// FormatFLAC represents native FLAC files.
	FormatFLAC
	// FormatOgg represents Ogg files of any codec.
	FormatOgg
)

// String returns the display name of the format.
func (f Format) String() string {
	switch f {
	case FormatMatroska:
		return "Matroska"
	case FormatWebM:
		return "WebM"
	case FormatMP4:
		return "MP4"
	case FormatMP3:
		return "MP3"
	case FormatFLAC:
		return "FLAC"
	case FormatOgg:
		return "Ogg"
	default:
		return "Unknown"
	}
}

// Extensions returns common file extensions for this format.
func (f Format) Extensions() []string {
	switch f {
	case FormatMatroska:
		return []string{".mkv", ".mka", ".mks", ".mk3d"}
	case FormatWebM:
		return []string{".webm"}
	case FormatMP4:
		return []string{".mp4", ".m4a", ".m4b", ".m4v", ".mov", ".3gp"}
	case FormatMP3:
		return []string{".mp3"}
	case FormatFLAC:
		return []string{".flac"}
	case FormatOgg:
		return []string{".ogg", ".oga", ".ogv", ".opus"}
	default:
		return nil
	}
}

// EBML magic, the first four bytes of every Matroska/WebM file.
var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// quickTimeLeadAtoms are top-level atom types that may open a QuickTime
// file written before ftyp existed.
var quickTimeLeadAtoms = map[string]bool{
	"moov": true,
	"mdat": true,
	"wide": true,
	"free": true,
	"skip": true,
	"pnot": true,
}

// DetectFormat determines the container format by examining magic bytes.
//
// Detection only looks at signatures; it does not validate the structure.
// Matroska and WebM are told apart later by the EBML DocType, so
// DetectFormat reports FormatMatroska for both.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	if size < 4 {
		return FormatUnknown, &UnsupportedFormatError{
			Path:   path,
			Reason: "file too small",
		}
	}

	sr := binary.NewSafeReader(r, size, path)

	head := make([]byte, min(size, 12))
	if err := sr.ReadAt(head, 0, "file magic bytes"); err != nil {
		if binary.IsContextErr(err) {
			return FormatUnknown, err
		}
		return FormatUnknown, &UnsupportedFormatError{
			Path:   path,
			Reason: "failed to read file header",
		}
	}

	switch {
	case bytes.HasPrefix(head, ebmlMagic):
		return FormatMatroska, nil
	case bytes.HasPrefix(head, []byte("fLaC")):
		return FormatFLAC, nil
	case bytes.HasPrefix(head, []byte("OggS")):
		return FormatOgg, nil
	case bytes.HasPrefix(head, []byte("ID3")):
		// ID3v2 may prefix FLAC as well as MPEG audio.
		if isFLACAfterID3(sr, head) {
			return FormatFLAC, nil
		}
		return FormatMP3, nil
	case head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return FormatMP3, nil
	}

	if len(head) >= 8 {
		atomType := string(head[4:8])
		if atomType == "ftyp" || quickTimeLeadAtoms[atomType] {
			return FormatMP4, nil
		}
	}

	return FormatUnknown, &UnsupportedFormatError{
		Path:   path,
		Reason: "unrecognized container signature",
	}
}

// isFLACAfterID3 reports whether "fLaC" follows the ID3v2 tag in head.
func isFLACAfterID3(sr *binary.SafeReader, head []byte) bool {
	if len(head) < 10 {
		return false
	}
	tagSize := int64(DecodeSynchsafe(head[6:10])) + 10
	if head[5]&0x10 != 0 {
		tagSize += 10 // footer
	}

	magic := make([]byte, 4)
	if err := sr.ReadAt(magic, tagSize, "FLAC magic after ID3v2"); err != nil {
		return false
	}
	return string(magic) == "fLaC"
}

// DecodeSynchsafe decodes a 4-byte synchsafe integer (7 bits per byte),
// as used by ID3v2 sizes.
func DecodeSynchsafe(b []byte) uint32 {
	if len(b) != 4 {
		return 0
	}
	return uint32(b[0]&0x7F)<<21 |
		uint32(b[1]&0x7F)<<14 |
		uint32(b[2]&0x7F)<<7 |
		uint32(b[3]&0x7F)
}
