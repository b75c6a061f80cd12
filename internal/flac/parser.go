// Package flac walks native FLAC metadata blocks.
package flac

import (
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"
	"github.com/simonhull/attachmeta/internal/vorbis"
)

// Metadata block types
const (
	blockTypeStreamInfo    = 0
	blockTypeVorbisComment = 4
	blockTypePicture       = 6
	blockTypeInvalid       = 127
)

const streamInfoSize = 34

// parser implements registry.TrackScanner for FLAC files
type parser struct{}

// blockHeader is the 4-byte header in front of every metadata block.
type blockHeader struct {
	Offset int64
	Length int64
	Type   uint8
	Last   bool
}

// DataOffset returns the offset of the block body.
func (h blockHeader) DataOffset() int64 {
	return h.Offset + 4
}

// Scan reports the STREAMINFO audio stream first, then one attached picture
// per PICTURE block in file order.
func (p *parser) Scan(sr *binary.SafeReader) (*types.Container, error) {
	start, err := skipID3v2(sr)
	if err != nil {
		return nil, err
	}

	// Verify FLAC magic bytes ("fLaC")
	magic := make([]byte, 4)
	if err := sr.ReadAt(magic, start, "FLAC magic bytes"); err != nil {
		return nil, fmt.Errorf("read FLAC magic: %w", err)
	}
	if string(magic) != "fLaC" {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: start,
			Reason: "invalid FLAC magic bytes",
		}
	}

	c := &types.Container{
		Path:   sr.Path(),
		Format: types.FormatFLAC,
		Size:   sr.Size(),
	}

	var (
		audio    *types.Track
		pictures []types.Track
	)

	offset := start + 4
	for first := true; offset < sr.Size(); first = false {
		h, err := readBlockHeader(sr, offset)
		if err != nil {
			if binary.IsContextErr(err) || first {
				return nil, err
			}
			c.Warn("metadata", offset, "metadata block header: %v", err)
			break
		}
		if first && h.Type != blockTypeStreamInfo {
			return nil, &types.CorruptedFileError{
				Path:   sr.Path(),
				Offset: offset,
				Reason: "first metadata block is not STREAMINFO",
			}
		}
		if h.DataOffset()+h.Length > sr.Size() {
			if first {
				return nil, &types.CorruptedFileError{
					Path:   sr.Path(),
					Offset: offset,
					Reason: "STREAMINFO extends past end of file",
				}
			}
			c.Warn("metadata", offset, "metadata block extends past end of file")
			break
		}

		switch h.Type {
		case blockTypeStreamInfo:
			if h.Length != streamInfoSize {
				return nil, &types.CorruptedFileError{
					Path:   sr.Path(),
					Offset: offset,
					Reason: fmt.Sprintf("invalid STREAMINFO size %d", h.Length),
				}
			}
			audio = &types.Track{Kind: types.KindAudio, Codec: "flac"}

		case blockTypeVorbisComment:
			_, comments, err := vorbis.ReadComments(sr, h.DataOffset(), h.Length, func(msg string) {
				c.Warn("metadata", h.DataOffset(), "invalid Vorbis comment: %s", msg)
			})
			if err != nil {
				if binary.IsContextErr(err) {
					return nil, err
				}
				c.Warn("metadata", h.DataOffset(), "VORBIS_COMMENT: %v", err)
			}
			if audio != nil {
				audio.Tags = vorbis.StreamTags(comments)
			}

		case blockTypePicture:
			pic, err := vorbis.ReadPicture(sr, h.DataOffset(), h.Length)
			if err != nil {
				if binary.IsContextErr(err) {
					return nil, err
				}
				c.Warn("metadata", h.DataOffset(), "skipping PICTURE block: %v", err)
				break
			}
			pictures = append(pictures, pic.Track(types.RangePayload(pic.DataOffset, pic.DataLength)))

		case blockTypeInvalid:
			c.Warn("metadata", offset, "invalid metadata block type")
		}

		offset = h.DataOffset() + h.Length
		if h.Last {
			break
		}
	}

	if audio != nil {
		c.AddTrack(*audio)
	}
	for _, t := range pictures {
		c.AddTrack(t)
	}
	return c, nil
}

// readBlockHeader reads a metadata block header:
// [is_last(1) | block_type(7)] [length(24)].
func readBlockHeader(sr *binary.SafeReader, offset int64) (blockHeader, error) {
	header, err := binary.Read[uint32](sr, offset, "metadata block header")
	if err != nil {
		return blockHeader{}, err
	}
	return blockHeader{
		Offset: offset,
		Length: int64(header & 0x00FFFFFF),
		Type:   uint8((header >> 24) & 0x7F),
		Last:   header>>31 == 1,
	}, nil
}

// skipID3v2 returns the offset just past a leading ID3v2 tag, or 0 when
// the file starts with "fLaC".
func skipID3v2(sr *binary.SafeReader) (int64, error) {
	head := make([]byte, 10)
	if err := sr.ReadAt(head[:4], 0, "file magic"); err != nil {
		return 0, err
	}
	if string(head[:3]) != "ID3" {
		return 0, nil
	}
	if err := sr.ReadAt(head, 0, "ID3v2 header"); err != nil {
		return 0, err
	}

	size := int64(types.DecodeSynchsafe(head[6:10])) + 10
	if head[5]&0x10 != 0 {
		size += 10 // footer
	}
	return size, nil
}

// init registers the FLAC parser
func init() {
	registry.Register(types.FormatFLAC, &parser{})
}
