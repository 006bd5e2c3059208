package compressor

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"time"
)

// Transcoder runs the external image transcoder with the given arguments
// and returns its captured stderr. A non-nil error means the run failed.
type Transcoder interface {
	Run(ctx context.Context, args []string) (stderr string, err error)
}

// ExecTranscoder runs a binary (ffmpeg by default) as a child process.
type ExecTranscoder struct {
	Binary string
	// Tee, when set, also receives the child's stderr in real time.
	Tee io.Writer
}

// NewExecTranscoder returns an ExecTranscoder for binary, defaulting to ffmpeg.
func NewExecTranscoder(binary string) *ExecTranscoder {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &ExecTranscoder{Binary: binary}
}

// Run blocks the calling goroutine until the child exits.
func (t *ExecTranscoder) Run(ctx context.Context, args []string) (string, error) {
	cmd := exec.CommandContext(ctx, t.Binary, args...)
	// Bounds Wait when a grandchild keeps stderr open after a cancel.
	cmd.WaitDelay = 2 * time.Second

	var stderrBuf bytes.Buffer
	if t.Tee != nil {
		cmd.Stderr = io.MultiWriter(&stderrBuf, t.Tee)
	} else {
		cmd.Stderr = &stderrBuf
	}

	err := cmd.Run()
	return stderrBuf.String(), err
}
