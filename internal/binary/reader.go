// Package binary provides bounds-checked, cancellable binary reading primitives
// shared by the container walkers.
package binary

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// OutOfBoundsError is returned when a read would leave the source.
type OutOfBoundsError struct {
	Path   string
	What   string
	Offset int64
	Length int
	Size   int64
}

func (e *OutOfBoundsError) Error() string {
	if e.Offset < 0 || e.Offset >= e.Size {
		return fmt.Sprintf("%s: offset %d out of bounds (file size: %d) while reading %s",
			e.Path, e.Offset, e.Size, e.What)
	}
	return fmt.Sprintf("%s: read of %d bytes at offset %d would exceed file size %d while reading %s",
		e.Path, e.Length, e.Offset, e.Size, e.What)
}

// SafeReader wraps io.ReaderAt with bounds checking, cancellation and
// helpful error messages.
//
// Every read checks the attached context first, so a cancelled scan stops
// at the next I/O boundary.
type SafeReader struct {
	ctx  context.Context
	r    io.ReaderAt
	path string
	size int64
}

// NewSafeReader creates a new SafeReader bound to context.Background().
func NewSafeReader(r io.ReaderAt, size int64, path string) *SafeReader {
	return &SafeReader{
		ctx:  context.Background(),
		r:    r,
		size: size,
		path: path,
	}
}

// WithContext returns a copy of sr whose reads observe ctx.
func (sr *SafeReader) WithContext(ctx context.Context) *SafeReader {
	if ctx == nil {
		ctx = context.Background()
	}
	cp := *sr
	cp.ctx = ctx
	return &cp
}

// Context returns the context reads are bound to.
func (sr *SafeReader) Context() context.Context {
	return sr.ctx
}

// Path returns the file path associated with this reader.
func (sr *SafeReader) Path() string {
	return sr.path
}

// Size returns the total size of the source.
func (sr *SafeReader) Size() int64 {
	return sr.size
}

// ReadAt fills b from offset off. what names the field for error messages.
func (sr *SafeReader) ReadAt(b []byte, off int64, what string) error {
	if err := sr.ctx.Err(); err != nil {
		return err
	}

	if off < 0 || off >= sr.size || off+int64(len(b)) > sr.size {
		return &OutOfBoundsError{
			Path:   sr.path,
			What:   what,
			Offset: off,
			Length: len(b),
			Size:   sr.size,
		}
	}

	n, err := sr.r.ReadAt(b, off)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: failed to read %s at offset %d: %w", sr.path, what, off, err)
	}

	if n < len(b) {
		return fmt.Errorf("%s: short read for %s at offset %d: got %d bytes, expected %d",
			sr.path, what, off, n, len(b))
	}

	return nil
}

// IsContextErr reports whether err comes from a cancelled or expired
// context.
func IsContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Bytes reads n bytes at off into a freshly allocated slice.
func (sr *SafeReader) Bytes(off, n int64, what string) ([]byte, error) {
	if n < 0 || n > sr.size {
		return nil, &OutOfBoundsError{
			Path:   sr.path,
			What:   what,
			Offset: off,
			Length: int(n),
			Size:   sr.size,
		}
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	if err := sr.ReadAt(buf, off, what); err != nil {
		return nil, err
	}
	return buf, nil
}

// Read reads a big-endian value of type T from the given offset.
func Read[T uint8 | uint16 | uint32 | uint64](sr *SafeReader, off int64, what string) (T, error) {
	return ReadEndian[T](sr, off, what, BigEndian)
}

// sizeOf returns the encoded width of T in bytes.
func sizeOf[T uint8 | uint16 | uint32 | uint64]() int64 {
	var zero T
	switch any(zero).(type) {
	case uint16:
		return 2
	case uint32:
		return 4
	case uint64:
		return 8
	default:
		return 1
	}
}

// Reader provides sequential reading with automatic offset tracking.
type Reader struct {
	*SafeReader
	offset int64
}

// NewReader creates a new Reader starting at the given offset.
func NewReader(sr *SafeReader, offset int64) *Reader {
	return &Reader{
		SafeReader: sr,
		offset:     offset,
	}
}

// ReadValue reads a big-endian value and advances the offset.
func ReadValue[T uint8 | uint16 | uint32 | uint64](r *Reader, what string) (T, error) {
	val, err := Read[T](r.SafeReader, r.offset, what)
	if err != nil {
		var zero T
		return zero, err
	}

	r.offset += sizeOf[T]()
	return val, nil
}

// ReadString reads a string of the given length and advances the offset.
func (r *Reader) ReadString(length int, what string) (string, error) {
	buf, err := r.ReadBytes(int64(length), what)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

// ReadBytes reads n bytes and advances the offset.
func (r *Reader) ReadBytes(n int64, what string) ([]byte, error) {
	buf, err := r.SafeReader.Bytes(r.offset, n, what)
	if err != nil {
		return nil, err
	}

	r.offset += n
	return buf, nil
}

// Skip advances the offset by n bytes.
func (r *Reader) Skip(n int64) {
	r.offset += n
}

// Offset returns the current offset.
func (r *Reader) Offset() int64 {
	return r.offset
}

// ChainReader allows chaining multiple reads with deferred error checking.
// This avoids repetitive "if err != nil" checks.
type ChainReader struct {
	*Reader
	err error
}

// NewChainReader creates a new ChainReader.
func NewChainReader(r *Reader) *ChainReader {
	return &ChainReader{Reader: r}
}

// ReadChained reads a value with deferred error checking.
// If a previous read failed, returns zero value without attempting read.
func ReadChained[T uint8 | uint16 | uint32 | uint64](cr *ChainReader, what string) T {
	if cr.err != nil {
		var zero T
		return zero
	}

	val, err := ReadValue[T](cr.Reader, what)
	if err != nil {
		cr.err = err
		var zero T
		return zero
	}

	return val
}

// String reads a string, accumulating any error.
func (cr *ChainReader) String(length int, what string) string {
	if cr.err != nil {
		return ""
	}

	val, err := cr.Reader.ReadString(length, what)
	if err != nil {
		cr.err = err
		return ""
	}

	return val
}

// Error returns the accumulated error, if any.
func (cr *ChainReader) Error() error {
	return cr.err
}
