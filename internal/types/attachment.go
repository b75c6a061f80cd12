package types

import (
	"fmt"

	"github.com/simonhull/attachmeta/internal/sniff"
)

// Attachment is an embedded file copied out of a container.
//
// Data is owned by the caller and shares no memory with the parser.
// Filename and MIMEType are empty when the container does not record them.
type Attachment struct {
	Filename    string
	MIMEType    string
	Description string
	Data        []byte
	TrackIndex  int
	Format      Format
	Kind        MediaKind
}

// NewAttachment builds the result for a winning track. Only the filename
// and mimetype tags of that track are consulted.
func NewAttachment(t Track, data []byte, format Format) Attachment {
	return Attachment{
		Filename:    t.Tags.Value(TagFilename),
		MIMEType:    t.Tags.Value(TagMIMEType),
		Description: t.Tags.Value(TagTitle),
		Data:        data,
		TrackIndex:  t.Index,
		Format:      format,
		Kind:        t.Kind,
	}
}

// Dimensions returns the pixel size for JPEG and PNG payloads, or 0, 0.
func (a Attachment) Dimensions() (int, int) {
	return sniff.ImageDimensions(a.Data)
}

// String returns a human-readable description of the attachment.
//
// Example output: "cover.jpg (1200x1200 JPEG, 245KB)"
func (a Attachment) String() string {
	name := a.Filename
	if name == "" {
		name = fmt.Sprintf("track %d", a.TrackIndex)
	}

	dims := ""
	if w, h := a.Dimensions(); w > 0 && h > 0 {
		dims = fmt.Sprintf("%dx%d ", w, h)
	}

	mime := a.MIMEType
	if mime == "" {
		mime = sniff.MIMEType(a.Data)
	}

	return fmt.Sprintf("%s (%s%s, %s)", name, dims, mimeToFormat(mime), formatSize(int64(len(a.Data))))
}

// formatSize formats byte size in human-readable form.
func formatSize(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
	)

	switch {
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%dKB", bytes/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

// mimeToFormat converts MIME type to short format name.
func mimeToFormat(mime string) string {
	switch mime {
	case "image/jpeg":
		return "JPEG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	case "image/bmp":
		return "BMP"
	case "image/webp":
		return "WebP"
	case "font/ttf", "application/x-truetype-font", "font/sfnt":
		return "TrueType"
	case "font/otf", "application/vnd.ms-opentype":
		return "OpenType"
	case "":
		return "data"
	default:
		return mime
	}
}
