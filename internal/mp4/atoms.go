// Package mp4 walks ISO base media (MP4, M4A, M4B) and QuickTime files for
// tracks and iTunes cover art.
package mp4

import (
	"errors"
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// Atom represents an MP4 atom (box)
type Atom struct {
	Size     uint64 // Total size including header
	Type     string // 4-character type code
	Offset   int64  // Position in file
	Extended bool   // Whether this uses 64-bit extended size
}

// DataSize returns the size of the atom's data (excluding header)
func (a *Atom) DataSize() uint64 {
	headerSize := uint64(a.headerSize())
	if a.Size < headerSize {
		return 0
	}
	return a.Size - headerSize
}

// DataOffset returns the file offset where the atom's data starts
func (a *Atom) DataOffset() int64 {
	return a.Offset + a.headerSize()
}

// End returns the file offset just past the atom.
func (a *Atom) End() int64 {
	return a.Offset + int64(a.Size)
}

func (a *Atom) headerSize() int64 {
	if a.Extended {
		return 16
	}
	return 8
}

// readAtomHeader reads an atom header at the given offset.
// A size of zero means the atom runs to end, the end of its parent.
func readAtomHeader(sr *binary.SafeReader, offset, end int64) (*Atom, error) {
	// Read size (4 bytes)
	size32, err := binary.Read[uint32](sr, offset, "atom size")
	if err != nil {
		return nil, err
	}

	// Read type (4 bytes)
	typeBytes := make([]byte, 4)
	if err := sr.ReadAt(typeBytes, offset+4, "atom type"); err != nil {
		return nil, err
	}

	atom := &Atom{
		Type:   string(typeBytes),
		Offset: offset,
	}

	switch size32 {
	case 1:
		// 64-bit size follows the type
		size64, err := binary.Read[uint64](sr, offset+8, "extended atom size")
		if err != nil {
			return nil, err
		}
		atom.Size = size64
		atom.Extended = true
	case 0:
		atom.Size = uint64(end - offset)
	default:
		atom.Size = uint64(size32)
	}

	// Validate atom size
	if atom.Size < uint64(atom.headerSize()) {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: offset,
			Reason: fmt.Sprintf("invalid atom size %d for '%s'", atom.Size, atom.Type),
		}
	}
	// Compared as sizes so that a 64-bit size cannot wrap End.
	if end < offset || atom.Size > uint64(end-offset) {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: offset,
			Reason: fmt.Sprintf("atom '%s' (%d bytes) overruns its parent", atom.Type, atom.Size),
		}
	}

	return atom, nil
}

// forEachAtom calls fn for every atom in [start, end), in file order.
func forEachAtom(sr *binary.SafeReader, start, end int64, fn func(*Atom) error) error {
	offset := start
	// Up to 7 bytes of trailing padding are tolerated.
	for offset+8 <= end {
		atom, err := readAtomHeader(sr, offset, end)
		if err != nil {
			return err
		}
		if atom.End() <= offset {
			return &types.CorruptedFileError{
				Path:   sr.Path(),
				Offset: offset,
				Reason: fmt.Sprintf("atom '%s' does not advance", atom.Type),
			}
		}
		if err := fn(atom); err != nil {
			return err
		}
		offset = atom.End()
	}
	return nil
}

var errFound = errors.New("atom found")

// findAtom searches for an atom of the given type within a range.
// Returns nil, nil if not found.
func findAtom(sr *binary.SafeReader, start, end int64, atomType string) (*Atom, error) {
	var found *Atom
	err := forEachAtom(sr, start, end, func(a *Atom) error {
		if a.Type == atomType {
			found = a
			return errFound
		}
		return nil
	})
	if errors.Is(err, errFound) {
		return found, nil
	}
	return nil, err
}
