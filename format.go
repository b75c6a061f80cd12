package attachmeta

import (
	"io"
	"slices"

	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"
)

// Format identifies a container family.
type Format = types.Format

// Supported container formats.
const (
	FormatUnknown  = types.FormatUnknown
	FormatMatroska = types.FormatMatroska
	FormatWebM     = types.FormatWebM
	FormatMP4      = types.FormatMP4
	FormatMP3      = types.FormatMP3
	FormatFLAC     = types.FormatFLAC
	FormatOgg      = types.FormatOgg
)

// DetectFormat identifies the container in r by its signature.
//
// Matroska and WebM share a signature; DetectFormat reports FormatMatroska
// for both and the walker tells them apart by DocType.
func DetectFormat(r io.ReaderAt, size int64, path string) (Format, error) {
	return types.DetectFormat(r, size, path)
}

// SupportedFormats returns the formats that have a registered walker, in
// ascending order.
func SupportedFormats() []Format {
	formats := registry.Formats()
	slices.Sort(formats)
	return formats
}
