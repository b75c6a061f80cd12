package types

import (
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
)

// MediaKind classifies a track by the container's own type tag.
type MediaKind int

const (
	// KindOther covers subtitles, data, timecode and unknown tracks.
	KindOther MediaKind = iota
	// KindAudio is an audio elementary stream.
	KindAudio
	// KindVideo is a video stream, including attached still pictures.
	KindVideo
	// KindAttachment is an embedded file that is not a media stream.
	KindAttachment
)

// String returns the lowercase kind name.
func (k MediaKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	case KindAttachment:
		return "attachment"
	default:
		return "other"
	}
}

// Payload locates the raw bytes attached to a track.
//
// Walkers normally record a byte range into the source so that nothing is
// copied until a track wins. When the container encodes the bytes (base64
// picture comments, unsynchronised ID3 frames) the walker stores the decoded
// bytes in Data instead.
type Payload struct {
	Data   []byte
	Offset int64
	Length int64
}

// RangePayload returns a payload that points into the source.
func RangePayload(offset, length int64) Payload {
	return Payload{Offset: offset, Length: length}
}

// InlinePayload returns a payload backed by already decoded bytes.
func InlinePayload(data []byte) Payload {
	return Payload{Data: data, Length: int64(len(data))}
}

// Len returns the payload size in bytes.
func (p Payload) Len() int64 {
	return p.Length
}

// Empty reports whether the payload has no bytes.
func (p Payload) Empty() bool {
	return p.Length <= 0
}

// Load returns a copy of the payload bytes owned by the caller.
func (p Payload) Load(sr *binary.SafeReader) ([]byte, error) {
	if p.Empty() {
		return nil, nil
	}
	if p.Data != nil {
		out := make([]byte, len(p.Data))
		copy(out, p.Data)
		return out, nil
	}
	return sr.Bytes(p.Offset, p.Length, "attachment payload")
}

// Track describes one entry of a container's structural index.
type Track struct {
	Tags    Tags
	Codec   string
	Payload Payload
	Index   int
	Kind    MediaKind

	// AttachedPicture is set when the container reserves this entry for a
	// still image attached to the file rather than a playable stream.
	AttachedPicture bool
}

// Qualifies reports whether the track can be surfaced as an attachment:
// it must be an attached picture or an attachment, and carry bytes.
func (t Track) Qualifies() bool {
	if t.Payload.Empty() {
		return false
	}
	return t.AttachedPicture || t.Kind == KindAttachment
}

// String returns a one-line description of the track.
func (t Track) String() string {
	s := fmt.Sprintf("#%d %s", t.Index, t.Kind)
	if t.Codec != "" {
		s += " [" + t.Codec + "]"
	}
	if t.AttachedPicture {
		s += " attached-pic"
	}
	if !t.Payload.Empty() {
		s += " " + formatSize(t.Payload.Len())
	}
	return s
}

// Container is the structural index of one scanned source.
type Container struct {
	Path     string
	Tracks   []Track
	Warnings []Warning
	Format   Format
	Size     int64
}

// AddTrack appends t, assigning the next index in declaration order.
func (c *Container) AddTrack(t Track) {
	t.Index = len(c.Tracks)
	c.Tracks = append(c.Tracks, t)
}

// Warn records a non-fatal issue.
func (c *Container) Warn(stage string, offset int64, format string, args ...any) {
	c.Warnings = append(c.Warnings, Warning{
		Stage:   stage,
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
	})
}
