package vorbis

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// maxPictureField bounds the MIME and description strings of a picture.
const maxPictureField = 64 << 10

// Picture is a decoded FLAC PICTURE block header. The image bytes are
// located by DataOffset and DataLength in the reader it was read from.
type Picture struct {
	MIMEType    string
	Description string
	Type        uint32
	Width       uint32
	Height      uint32
	DataOffset  int64
	DataLength  int64
}

// ReadPicture parses a PICTURE block that starts at off and must end by
// off+length.
//
// Layout (all integers big-endian):
//
//	[4] picture type
//	[4] MIME length, [n] MIME type
//	[4] description length, [n] description (UTF-8)
//	[4] width, [4] height, [4] color depth, [4] colors used
//	[4] data length, [n] data
func ReadPicture(sr *binary.SafeReader, off, length int64) (Picture, error) {
	end := off + length
	cr := binary.NewChainReader(binary.NewReader(sr, off))

	var p Picture
	p.Type = binary.ReadChained[uint32](cr, "picture type")

	mimeLen := binary.ReadChained[uint32](cr, "MIME type length")
	if cr.Error() == nil && (mimeLen > maxPictureField || cr.Offset()+int64(mimeLen) > end) {
		return Picture{}, fmt.Errorf("MIME type length %d exceeds block", mimeLen)
	}
	p.MIMEType = cr.String(int(mimeLen), "MIME type")

	descLen := binary.ReadChained[uint32](cr, "description length")
	if cr.Error() == nil && (descLen > maxPictureField || cr.Offset()+int64(descLen) > end) {
		return Picture{}, fmt.Errorf("description length %d exceeds block", descLen)
	}
	p.Description = cr.String(int(descLen), "description")

	p.Width = binary.ReadChained[uint32](cr, "width")
	p.Height = binary.ReadChained[uint32](cr, "height")
	_ = binary.ReadChained[uint32](cr, "color depth")
	_ = binary.ReadChained[uint32](cr, "colors used")

	dataLen := binary.ReadChained[uint32](cr, "picture data length")
	if err := cr.Error(); err != nil {
		return Picture{}, err
	}

	p.DataOffset = cr.Offset()
	p.DataLength = int64(dataLen)
	if p.DataOffset+p.DataLength > end {
		return Picture{}, fmt.Errorf("picture data length %d exceeds block", dataLen)
	}
	return p, nil
}

// DecodePictureComment decodes a base64 METADATA_BLOCK_PICTURE value and
// returns the picture with its image bytes.
func DecodePictureComment(value string) (Picture, []byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(value))
	if err != nil {
		return Picture{}, nil, fmt.Errorf("invalid base64: %w", err)
	}

	sr := binary.NewSafeReader(bytes.NewReader(data), int64(len(data)), PictureKey)
	p, err := ReadPicture(sr, 0, int64(len(data)))
	if err != nil {
		return Picture{}, nil, err
	}
	return p, data[p.DataOffset : p.DataOffset+p.DataLength], nil
}

// Track returns the attached-picture track for p with the given payload.
// A MIME type of "-->" marks a URL instead of image bytes, so the payload
// is dropped.
func (p Picture) Track(payload types.Payload) types.Track {
	t := types.Track{
		Kind:            types.KindVideo,
		AttachedPicture: true,
		Codec:           p.MIMEType,
	}
	if p.MIMEType != "-->" {
		t.Payload = payload
		if p.MIMEType != "" {
			t.Tags.Set(types.TagMIMEType, p.MIMEType)
		}
	}
	if p.Description != "" {
		t.Tags.Set(types.TagTitle, p.Description)
	}
	t.Tags.Set(types.TagPictureType, strconv.FormatUint(uint64(p.Type), 10))
	return t
}
