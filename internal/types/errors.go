package types

import (
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
)

// OutOfBoundsError is returned when attempting to read beyond file bounds.
type OutOfBoundsError = binary.OutOfBoundsError

// OpenError is returned when the source cannot be opened for reading:
// missing file, permission denied, a directory, or a zero-length file.
type OpenError struct {
	Err  error
	Path string
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("%s: open: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// ParseError is returned when the container header or structural index
// cannot be read, or the format is not supported.
type ParseError struct {
	Err    error
	Path   string
	Format Format
}

func (e *ParseError) Error() string {
	if e.Format == FormatUnknown {
		return fmt.Sprintf("%s: parse: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: parse %s: %v", e.Path, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// UnsupportedFormatError is returned when the container is not recognised.
type UnsupportedFormatError struct {
	Path   string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported format: %s", e.Path, e.Reason)
}

// CorruptedFileError is returned when file structure is invalid.
type CorruptedFileError struct {
	Path   string
	Reason string
	Offset int64
}

func (e *CorruptedFileError) Error() string {
	return fmt.Sprintf("%s: corrupted file at offset %d: %s", e.Path, e.Offset, e.Reason)
}

// Warning represents a non-fatal issue encountered while walking a container.
//
// Damage past the structural index (a truncated trailing element, an
// undecodable picture comment) becomes a Warning; tracks found so far are
// still reported.
type Warning struct {
	// Stage where the warning occurred: "header", "tracks", "attachments", "tags"
	Stage string

	Message string

	// File offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
