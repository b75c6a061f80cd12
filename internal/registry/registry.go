// Package registry manages the per-format container walkers.
package registry

import (
	"sync"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// TrackScanner is the interface all container walkers implement.
type TrackScanner interface {
	// Scan walks the container's structural index and returns its tracks in
	// declaration order. Path, Format and Size are filled in by the walker.
	// Failure to read the header or the track index is returned as an error;
	// damage past that point becomes a Warning on the returned Container.
	Scan(sr *binary.SafeReader) (*types.Container, error)
}

var (
	mu       sync.RWMutex
	scanners = make(map[types.Format]TrackScanner)
)

// Register registers a scanner for a format.
// This is called by format packages during initialization (init functions).
func Register(format types.Format, scanner TrackScanner) {
	mu.Lock()
	defer mu.Unlock()
	scanners[format] = scanner
}

// Get returns the scanner for a given format.
// Returns nil if no scanner is registered for the format.
func Get(format types.Format) TrackScanner {
	mu.RLock()
	defer mu.RUnlock()
	return scanners[format]
}

// Formats returns the formats that currently have a scanner.
func Formats() []types.Format {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]types.Format, 0, len(scanners))
	for f := range scanners {
		out = append(out, f)
	}
	return out
}
