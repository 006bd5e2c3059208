package compressor

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInputNotFound     = errors.New("input file does not exist")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrOutputDirInvalid  = errors.New("invalid output directory")
	ErrTranscodeFailed   = errors.New("transcode failed")
	ErrIO                = errors.New("i/o failure")
)

// TranscodeError is returned when the transcoder exits with a failure status.
// Stderr holds the process diagnostic stream verbatim.
type TranscodeError struct {
	Input  string
	Stderr string
	Err    error
}

func (e *TranscodeError) Error() string {
	msg := strings.TrimSpace(e.Stderr)
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("transcode failed for %s: %s", e.Input, msg)
}

func (e *TranscodeError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrTranscodeFailed) hold for any TranscodeError.
func (e *TranscodeError) Is(target error) bool {
	return target == ErrTranscodeFailed
}

// ioError wraps a filesystem failure on path with ErrIO.
func ioError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}
