package attachmeta

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"

	// Register the container walkers.
	_ "github.com/simonhull/attachmeta/internal/flac"
	_ "github.com/simonhull/attachmeta/internal/matroska"
	_ "github.com/simonhull/attachmeta/internal/mp3"
	_ "github.com/simonhull/attachmeta/internal/mp4"
	_ "github.com/simonhull/attachmeta/internal/ogg"
)

var (
	// ErrEmptySource is wrapped by an OpenError for zero-length sources.
	ErrEmptySource = errors.New("source is empty")

	// ErrIsDirectory is wrapped by an OpenError when the path names a
	// directory.
	ErrIsDirectory = errors.New("path is a directory")
)

// Scanner finds embedded attachments in media containers.
//
// A Scanner holds no mutable state after New returns and is safe for
// concurrent use. Every call opens its own handle and closes it before
// returning.
type Scanner struct {
	fs             afero.Fs
	logger         *slog.Logger
	maxPayloadSize int64
	concurrency    int
	strictParsing  bool
}

// New returns a Scanner configured by opts.
func New(opts ...Option) *Scanner {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Scanner{
		fs:             o.fs,
		logger:         o.logger,
		maxPayloadSize: o.maxPayloadSize,
		concurrency:    o.concurrency,
		strictParsing:  o.strictParsing,
	}
}

// FindFirstAttachment returns the first embedded attachment of the file at
// path, in the order the container declares its tracks.
//
// A track qualifies when it is an attached picture or an attachment and
// carries at least one byte. Only the winning track's filename and
// mimetype tags are read; either may be empty.
//
// When nothing qualifies, FindFirstAttachment returns (nil, nil). A source
// that cannot be opened yields an *OpenError, an unreadable container an
// *ParseError.
//
// Example:
//
//	a, err := attachmeta.FindFirstAttachment(ctx, "movie.mkv")
//	if err != nil {
//		return err
//	}
//	if a == nil {
//		return nil // no attachment
//	}
//	os.WriteFile(a.Filename, a.Data, 0o644)
func (s *Scanner) FindFirstAttachment(ctx context.Context, path string) (*Attachment, error) {
	var found *Attachment
	err := s.withSource(ctx, path, func(sr *binary.SafeReader) error {
		a, err := s.first(sr)
		found = a
		return err
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

// FindFirstAttachmentReader is FindFirstAttachment over a caller-owned
// reader. name is used in errors and logs only; r is not closed.
func (s *Scanner) FindFirstAttachmentReader(ctx context.Context, r io.ReaderAt, size int64, name string) (*Attachment, error) {
	if size <= 0 {
		return nil, &OpenError{Path: name, Err: ErrEmptySource}
	}
	sr := binary.NewSafeReader(r, size, name).WithContext(ctx)
	return s.first(sr)
}

// FindAttachments returns every qualifying attachment in track order. The
// slice is empty, not nil, when the file has none.
func (s *Scanner) FindAttachments(ctx context.Context, path string) ([]Attachment, error) {
	attachments := []Attachment{}
	err := s.withSource(ctx, path, func(sr *binary.SafeReader) error {
		c, err := s.index(sr)
		if err != nil {
			return err
		}
		for _, t := range c.Tracks {
			if !s.accept(c, t) {
				continue
			}
			a, err := s.load(sr, c, t)
			if err != nil {
				return err
			}
			attachments = append(attachments, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// Probe returns the structural index of the file at path: every track
// with its kind, codec, tags and payload length. No payload bytes are read.
func (s *Scanner) Probe(ctx context.Context, path string) (*Container, error) {
	var c *Container
	err := s.withSource(ctx, path, func(sr *binary.SafeReader) error {
		var err error
		c, err = s.index(sr)
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// FindMany scans paths concurrently and returns the first attachment of
// each, in input order. Entries are nil for files without an attachment.
//
// At most WithConcurrency files are open at once. The first error cancels
// the remaining scans and is returned.
func (s *Scanner) FindMany(ctx context.Context, paths ...string) ([]*Attachment, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	results := make([]*Attachment, len(paths))
	for i, path := range paths {
		g.Go(func() error {
			a, err := s.FindFirstAttachment(ctx, path)
			if err != nil {
				return err
			}
			results[i] = a
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// withSource opens path, runs fn over it and closes it on every path.
func (s *Scanner) withSource(ctx context.Context, path string, fn func(sr *binary.SafeReader) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := s.fs.Open(path)
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return &OpenError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &OpenError{Path: path, Err: ErrIsDirectory}
	}
	if info.Size() == 0 {
		return &OpenError{Path: path, Err: ErrEmptySource}
	}

	return fn(binary.NewSafeReader(f, info.Size(), path).WithContext(ctx))
}

// first returns the first qualifying attachment in sr, or nil.
func (s *Scanner) first(sr *binary.SafeReader) (*Attachment, error) {
	c, err := s.index(sr)
	if err != nil {
		return nil, err
	}
	for _, t := range c.Tracks {
		if s.accept(c, t) {
			return s.load(sr, c, t)
		}
	}
	s.logger.Debug("no attachment found", "path", c.Path, "format", c.Format, "tracks", len(c.Tracks))
	return nil, nil
}

// index detects the container format and runs its walker.
func (s *Scanner) index(sr *binary.SafeReader) (*Container, error) {
	path := sr.Path()
	if err := sr.Context().Err(); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	format, err := types.DetectFormat(readerAt{sr}, sr.Size(), path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}

	walker := registry.Get(format)
	if walker == nil {
		return nil, &ParseError{
			Path:   path,
			Format: format,
			Err: &UnsupportedFormatError{
				Path:   path,
				Reason: fmt.Sprintf("no walker registered for %s", format),
			},
		}
	}

	s.logger.Debug("scan start", "path", path, "format", format, "size", sr.Size())

	c, err := walker.Scan(sr)
	if err != nil {
		return nil, &ParseError{Path: path, Format: format, Err: err}
	}

	for _, w := range c.Warnings {
		s.logger.Debug("container warning", "path", path, "format", c.Format, "stage", w.Stage, "offset", w.Offset, "message", w.Message)
	}
	if s.strictParsing && len(c.Warnings) > 0 {
		return nil, &ParseError{
			Path:   path,
			Format: c.Format,
			Err:    fmt.Errorf("strict parsing: %s", c.Warnings[0]),
		}
	}

	s.logger.Debug("scan done", "path", path, "format", c.Format, "tracks", len(c.Tracks), "warnings", len(c.Warnings))
	return c, nil
}

// accept applies the qualifying predicate and the payload size limit.
func (s *Scanner) accept(c *Container, t Track) bool {
	if !t.Qualifies() {
		return false
	}
	if s.maxPayloadSize > 0 && t.Payload.Len() > s.maxPayloadSize {
		c.Warn("attachments", t.Payload.Offset, "track %d payload of %d bytes exceeds limit of %d",
			t.Index, t.Payload.Len(), s.maxPayloadSize)
		s.logger.Warn("attachment skipped",
			"path", c.Path, "format", c.Format, "track", t.Index,
			"size", t.Payload.Len(), "limit", s.maxPayloadSize)
		return false
	}
	return true
}

// load copies the payload of t out of the source.
func (s *Scanner) load(sr *binary.SafeReader, c *Container, t Track) (*Attachment, error) {
	data, err := t.Payload.Load(sr)
	if err != nil {
		return nil, &ParseError{Path: c.Path, Format: c.Format, Err: fmt.Errorf("read track %d payload: %w", t.Index, err)}
	}

	a := types.NewAttachment(t, data, c.Format)
	s.logger.Debug("attachment found",
		"path", c.Path, "format", c.Format, "track", t.Index,
		"filename", a.Filename, "mimetype", a.MIMEType, "size", len(a.Data))
	return &a, nil
}

// readerAt adapts a SafeReader to io.ReaderAt for format detection, so
// that detection honours the scan's context.
type readerAt struct {
	sr *binary.SafeReader
}

func (r readerAt) ReadAt(p []byte, off int64) (int, error) {
	if err := r.sr.ReadAt(p, off, "format signature"); err != nil {
		return 0, err
	}
	return len(p), nil
}

// FindFirstAttachment calls FindFirstAttachment on a Scanner built with
// the default options.
func FindFirstAttachment(ctx context.Context, path string) (*Attachment, error) {
	return New().FindFirstAttachment(ctx, path)
}

// FindAttachments calls FindAttachments on a Scanner built with the
// default options.
func FindAttachments(ctx context.Context, path string) ([]Attachment, error) {
	return New().FindAttachments(ctx, path)
}

// Probe calls Probe on a Scanner built with the default options.
func Probe(ctx context.Context, path string) (*Container, error) {
	return New().Probe(ctx, path)
}

// FindMany calls FindMany on a Scanner built with the default options.
func FindMany(ctx context.Context, paths ...string) ([]*Attachment, error) {
	return New().FindMany(ctx, paths...)
}
