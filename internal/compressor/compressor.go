package compressor

import (
	"context"
)

// Options defines the parameters for compressing a single image.
// The zero value of an optional field means "not set".
type Options struct {
	Quality             int    `json:"quality" mapstructure:"quality"`
	MaxWidth            int    `json:"max_width,omitempty" mapstructure:"max_width"`
	MaxHeight           int    `json:"max_height,omitempty" mapstructure:"max_height"`
	MaintainAspectRatio *bool  `json:"maintain_aspect_ratio,omitempty" mapstructure:"maintain_aspect_ratio"`
	Lossless            bool   `json:"lossless,omitempty" mapstructure:"lossless"`
	Format              string `json:"format,omitempty" mapstructure:"format"`
}

// KeepAspect reports whether the aspect ratio must be preserved. Defaults to true.
func (o Options) KeepAspect() bool {
	return o.MaintainAspectRatio == nil || *o.MaintainAspectRatio
}

// WithAspect returns a copy of o with MaintainAspectRatio set to keep.
func (o Options) WithAspect(keep bool) Options {
	o.MaintainAspectRatio = &keep
	return o
}

// Result describes the outcome of compressing a single file.
type Result struct {
	InputPath        string  `json:"input_path"`
	OutputPath       string  `json:"output_path"`
	OriginalSize     int64   `json:"original_size"`
	CompressedSize   int64   `json:"compressed_size"`
	Width            int     `json:"width"`
	Height           int     `json:"height"`
	CompressionRatio float64 `json:"compression_ratio"`
	Format           string  `json:"format"`
}

// Ratio returns the percentage change from original to compressed size.
// A zero original size yields 0.
func Ratio(original, compressed int64) float64 {
	if original == 0 {
		return 0
	}
	return (float64(compressed)/float64(original) - 1) * 100
}

// ProgressFunc is notified with progress 0 before an item starts and 100
// after it ends. It must not block for long.
type ProgressFunc func(input string, progress int)

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress compresses one image into outputDir.
	Compress(ctx context.Context, input, outputDir string, opts Options) (Result, error)
	// BatchCompress compresses inputs in order, isolating per-item failures.
	BatchCompress(ctx context.Context, inputs []string, outputDir string, opts Options, progress ProgressFunc) BatchResult
}
