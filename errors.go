package buildpal

import (
	"github.com/pkg/errors"

	"github.com/buildpal-oss/buildpal/internal/scanner"
)

// SourceNotFoundError is spec §7's SourceNotFound kind: the top-level
// source_path could not be opened.
type SourceNotFoundError struct {
	Path string
	Err  error
}

func (e *SourceNotFoundError) Error() string {
	return "buildpal: source not found: " + e.Path
}

func (e *SourceNotFoundError) Unwrap() error { return e.Err }

// ReadError is spec §7's ReadError kind: a located file could not be
// read, fatal to the current scan.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return "buildpal: read error: " + e.Path
}

func (e *ReadError) Unwrap() error { return e.Err }

// FatalPreprocessorError is spec §7's FatalPreprocessorError kind: the
// driving preprocessor signalled an unrecoverable condition. The caches
// remain consistent regardless — any Cache Entries this scan managed to
// insert before the failure are keyed only by the macro reads that
// actually completed, so they stay valid for replay.
type FatalPreprocessorError struct {
	Err error
}

func (e *FatalPreprocessorError) Error() string {
	return "buildpal: preprocessor error: " + e.Err.Error()
}

func (e *FatalPreprocessorError) Unwrap() error { return e.Err }

// wrapScanError translates the scanner package's own error types into
// this package's public ones, annotating with github.com/pkg/errors so
// a caller logging at the cache boundary keeps a stack trace across the
// content/scanner seam — matching how the rest of this module reserves
// pkg/errors for errors that cross a cache boundary rather than for
// every return.
func wrapScanError(err error) error {
	if err == nil {
		return nil
	}
	var notFound *scanner.SourceNotFoundError
	if errors.As(err, &notFound) {
		return &SourceNotFoundError{Path: notFound.Path, Err: errors.Wrap(err, "scanning source")}
	}
	var readErr *scanner.ReadError
	if errors.As(err, &readErr) {
		return &ReadError{Path: readErr.Path, Err: errors.Wrap(err, "reading header")}
	}
	return &FatalPreprocessorError{Err: errors.Wrap(err, "preprocessor")}
}
