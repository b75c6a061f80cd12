package attachmeta

import (
	"log/slog"
	"runtime"

	"github.com/spf13/afero"
)

// Option configures a Scanner.
//
// Options use the functional options pattern for clean, extensible APIs.
//
// Example:
//
//	s := attachmeta.New(
//	    attachmeta.WithMaxPayloadSize(32<<20),
//	    attachmeta.WithStrictParsing(),
//	)
type Option func(*scanOptions)

// scanOptions holds configuration for a Scanner.
type scanOptions struct {
	fs             afero.Fs
	logger         *slog.Logger
	maxPayloadSize int64 // 0 = no limit
	concurrency    int
	strictParsing  bool // Fail on any warning
}

// defaultOptions returns the default configuration.
func defaultOptions() *scanOptions {
	return &scanOptions{
		fs:          afero.NewOsFs(),
		logger:      slog.Default(),
		concurrency: runtime.NumCPU(),
	}
}

// WithFs sets the filesystem paths are opened from. The default is the
// operating system filesystem.
//
// Example:
//
//	fs := afero.NewMemMapFs()
//	s := attachmeta.New(attachmeta.WithFs(fs))
func WithFs(fs afero.Fs) Option {
	return func(o *scanOptions) {
		if fs != nil {
			o.fs = fs
		}
	}
}

// WithLogger sets the structured logger. The default is slog.Default() at
// the time New is called.
func WithLogger(logger *slog.Logger) Option {
	return func(o *scanOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMaxPayloadSize skips tracks whose payload is larger than n bytes.
//
// Skipped tracks are recorded as warnings and the scan moves on to the next
// qualifying track. Default is 0 (no limit).
func WithMaxPayloadSize(n int64) Option {
	return func(o *scanOptions) {
		o.maxPayloadSize = n
	}
}

// WithConcurrency bounds the number of files FindMany scans at once.
// Values below 1 keep the default of runtime.NumCPU().
func WithConcurrency(n int) Option {
	return func(o *scanOptions) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithStrictParsing treats any warning as a fatal error.
//
// By default a walker keeps the tracks it found before damage in the
// container and reports the damage as warnings. With strict parsing
// enabled, any warning becomes a *ParseError.
//
// Example:
//
//	s := attachmeta.New(attachmeta.WithStrictParsing())
//	a, err := s.FindFirstAttachment(ctx, "movie.mkv")
//	// err != nil if ANY issue is encountered
func WithStrictParsing() Option {
	return func(o *scanOptions) {
		o.strictParsing = true
	}
}
