package attachmeta

import (
	"github.com/simonhull/attachmeta/internal/types"
)

// Attachment is an embedded file copied out of a container. Data is owned
// by the caller.
type Attachment = types.Attachment

// Container is the structural index of one scanned source.
type Container = types.Container

// Track describes one entry of a container's structural index.
type Track = types.Track

// Tags holds a track's metadata with case-insensitive keys.
type Tags = types.Tags

// MediaKind classifies a track.
type MediaKind = types.MediaKind

// Track kinds.
const (
	KindOther      = types.KindOther
	KindAudio      = types.KindAudio
	KindVideo      = types.KindVideo
	KindAttachment = types.KindAttachment
)

// Canonical tag keys.
const (
	TagFilename    = types.TagFilename
	TagMIMEType    = types.TagMIMEType
	TagTitle       = types.TagTitle
	TagComment     = types.TagComment
	TagLanguage    = types.TagLanguage
	TagPictureType = types.TagPictureType
	TagSampleRate  = types.TagSampleRate
	TagChannels    = types.TagChannels
)
