package compressor

import (
	"context"
	"errors"
	"fmt"

	"image-compressor-go/internal/logger"
)

// ItemError records the failure of one batch input.
type ItemError struct {
	Input string `json:"input"`
	Err   error  `json:"-"`
}

func (e ItemError) Error() string {
	return fmt.Sprintf("%s: %v", e.Input, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// BatchResult holds the successes, in input order, and the failures of a batch.
type BatchResult struct {
	Results []Result
	Errors  []ItemError
}

// Failed reports whether at least one item failed.
func (b BatchResult) Failed() bool {
	return len(b.Errors) > 0
}

// Err joins all item failures, or returns nil when every item succeeded.
func (b BatchResult) Err() error {
	if len(b.Errors) == 0 {
		return nil
	}
	errs := make([]error, len(b.Errors))
	for i, e := range b.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Messages returns the formatted failure messages.
func (b BatchResult) Messages() []string {
	msgs := make([]string, len(b.Errors))
	for i, e := range b.Errors {
		msgs[i] = e.Error()
	}
	return msgs
}

// BatchCompress compresses inputs one at a time, in order. A failing item is
// recorded and the next one is attempted. Once ctx is done the remaining
// items are recorded as failed without being started.
func (c *DefaultCompressor) BatchCompress(ctx context.Context, inputs []string, outputDir string, opts Options, progress ProgressFunc) BatchResult {
	var batch BatchResult
	log := logger.WithOperation(c.logger, "batch_compress")
	log.Infof("Compressing %d files into %s", len(inputs), outputDir)

	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			logger.WithFile(c.logger, input).Warnf("Skipped: %v", err)
			if c.settings.Stats != nil {
				c.settings.Stats.RecordFailure(input, "batch_compress", err)
			}
			batch.Errors = append(batch.Errors, ItemError{Input: input, Err: err})
			continue
		}

		if progress != nil {
			progress(input, 0)
		}
		res, err := c.Compress(ctx, input, outputDir, opts)
		if progress != nil {
			progress(input, 100)
		}

		if err != nil {
			log.WithField("file", input).Errorf("Compression failed: %v", err)
			batch.Errors = append(batch.Errors, ItemError{Input: input, Err: err})
			continue
		}
		batch.Results = append(batch.Results, res)
	}

	log.Infof("Batch finished: %d compressed, %d failed", len(batch.Results), len(batch.Errors))
	return batch
}
