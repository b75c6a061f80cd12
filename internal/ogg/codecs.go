package ogg

import (
	"bytes"

	"github.com/simonhull/attachmeta/internal/types"
)

// codec describes how a logical stream identifies itself and where its
// comment header lives.
type codec struct {
	name string
	kind types.MediaKind

	// ident prefixes the first packet of the stream.
	ident []byte

	// comment prefixes the second packet, which holds Vorbis comments
	// right after the prefix. Codecs without comments leave both comment
	// and bareComment unset.
	comment     []byte
	bareComment bool

	// flac streams carry native FLAC metadata blocks as header packets.
	flac bool
}

// hasComments reports whether the stream delivers a comment header.
func (c *codec) hasComments() bool {
	return c.comment != nil || c.bareComment || c.flac
}

var codecs = []codec{
	{name: "vorbis", kind: types.KindAudio, ident: []byte("\x01vorbis"), comment: []byte("\x03vorbis")},
	{name: "opus", kind: types.KindAudio, ident: []byte("OpusHead"), comment: []byte("OpusTags")},
	{name: "flac", kind: types.KindAudio, ident: []byte("\x7FFLAC"), flac: true},
	{name: "speex", kind: types.KindAudio, ident: []byte("Speex   "), bareComment: true},
	{name: "theora", kind: types.KindVideo, ident: []byte("\x80theora"), comment: []byte("\x81theora")},
	{name: "vp8", kind: types.KindVideo, ident: []byte("OVP80\x01"), comment: []byte("OVP80\x02")},
	{name: "skeleton", kind: types.KindOther, ident: []byte("fishead\x00")},
}

// identify returns the codec whose identification header starts packet,
// or nil.
func identify(packet []byte) *codec {
	for i := range codecs {
		if bytes.HasPrefix(packet, codecs[i].ident) {
			return &codecs[i]
		}
	}
	return nil
}

// commentOffset returns where the comment body starts in the second header
// packet, or -1 when the packet is not a comment header.
func (c *codec) commentOffset(packet []byte) int {
	switch {
	case c.bareComment:
		return 0
	case c.comment != nil && bytes.HasPrefix(packet, c.comment):
		return len(c.comment)
	default:
		return -1
	}
}

// FLAC-in-Ogg: the first packet is "\x7FFLAC", a 2-byte mapping version, a
// 2-byte header packet count, "fLaC" and the STREAMINFO block. Each later
// header packet is one metadata block with its 4-byte header.
const (
	flacBlockVorbisComment = 4
	flacBlockPicture       = 6
	flacBlockHeaderSize    = 4
	flacLastBlock          = 0x80
)
