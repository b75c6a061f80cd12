package attachmeta

import (
	"github.com/simonhull/attachmeta/internal/types"
)

// OpenError is returned when the source cannot be opened for reading:
// missing file, permission denied, a directory, or a zero-length source.
// It unwraps to the filesystem error, so errors.Is(err, fs.ErrNotExist)
// works.
type OpenError = types.OpenError

// ParseError is returned when the container header or structural index
// cannot be read. It wraps an *UnsupportedFormatError, a
// *CorruptedFileError, an *OutOfBoundsError or the context error of a
// cancelled scan.
type ParseError = types.ParseError

// OutOfBoundsError is returned when a read would go past the end of the
// source.
type OutOfBoundsError = types.OutOfBoundsError

// UnsupportedFormatError is returned when no walker recognises the source.
type UnsupportedFormatError = types.UnsupportedFormatError

// CorruptedFileError is returned when the container structure is invalid.
type CorruptedFileError = types.CorruptedFileError

// Warning is a non-fatal issue found while walking a container.
type Warning = types.Warning
