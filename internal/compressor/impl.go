package compressor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/statistics"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// MetadataCopier copies image metadata from a source file onto a freshly
// written output.
type MetadataCopier interface {
	Copy(src, dst string) error
}

// Settings holds the optional collaborators of DefaultCompressor.
type Settings struct {
	// LogLevel is passed to the transcoder's -loglevel flag.
	LogLevel string
	// Metadata, when set, preserves tags from input to output.
	Metadata MetadataCopier
	// Stats, when set, accumulates per-item outcomes.
	Stats *statistics.Statistics
}

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	transcoder Transcoder
	logger     *logrus.Logger
	settings   Settings
}

// NewDefaultCompressor creates a new DefaultCompressor instance.
func NewDefaultCompressor(t Transcoder, logger *logrus.Logger, settings Settings) *DefaultCompressor {
	if logger == nil {
		logger = logrus.New()
	}
	return &DefaultCompressor{
		transcoder: t,
		logger:     logger,
		settings:   settings,
	}
}

// Compress validates input and outputDir, runs the transcoder into a
// collision-free path and measures the written file. The input is never
// modified. On transcoder failure no output file is left behind.
func (c *DefaultCompressor) Compress(ctx context.Context, input, outputDir string, opts Options) (Result, error) {
	res, err := c.compress(ctx, input, outputDir, opts)
	if c.settings.Stats != nil {
		if err != nil {
			c.settings.Stats.RecordFailure(input, "compress", err)
		} else {
			c.settings.Stats.RecordSuccess(res.Format, res.OriginalSize, res.CompressedSize)
		}
	}
	return res, err
}

func (c *DefaultCompressor) compress(ctx context.Context, input, outputDir string, opts Options) (Result, error) {
	log := logger.WithFileOperation(c.logger, input, "compress")

	info, err := os.Stat(input)
	if errors.Is(err, fs.ErrNotExist) {
		return Result{}, fmt.Errorf("%w: %s", ErrInputNotFound, input)
	}
	if err != nil {
		return Result{}, ioError("stat", input, err)
	}
	if info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s is a directory", ErrInputNotFound, input)
	}

	format, name, err := outputName(input, opts.Format)
	if err != nil {
		return Result{}, err
	}

	if err := checkOutputDir(outputDir); err != nil {
		return Result{}, err
	}

	outPath, err := ReservePath(outputDir, name)
	if err != nil {
		return Result{}, ioError("reserve", filepath.Join(outputDir, name), err)
	}
	if abs, err := filepath.Abs(outPath); err == nil {
		outPath = abs
	}

	args := BuildArgs(input, outPath, format, opts, c.settings.LogLevel)
	log.WithField("args", strings.Join(args, " ")).Debug("Running transcoder")

	stderr, err := c.transcoder.Run(ctx, args)
	if err != nil {
		if rmErr := os.Remove(outPath); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			log.Warnf("Could not remove output after failed transcode %s: %v", outPath, rmErr)
		}
		return Result{}, &TranscodeError{Input: input, Stderr: stderr, Err: err}
	}

	if c.settings.Metadata != nil {
		if err := c.settings.Metadata.Copy(input, outPath); err != nil {
			log.Warnf("Metadata not preserved for %s: %v", outPath, err)
		}
	}

	res, err := measure(input, outPath, format)
	if err != nil {
		return Result{}, err
	}

	log.WithFields(logrus.Fields{
		"output":          res.OutputPath,
		"original_size":   res.OriginalSize,
		"compressed_size": res.CompressedSize,
		"ratio":           fmt.Sprintf("%.2f%%", res.CompressionRatio),
	}).Info("Image compressed")
	return res, nil
}

// outputName picks the policy format and output filename for input. An
// explicit target format replaces the input extension.
func outputName(input, target string) (Format, string, error) {
	base := filepath.Base(input)
	ext := filepath.Ext(base)

	if target != "" {
		f, ok := ParseFormat(target)
		if !ok {
			return "", "", fmt.Errorf("%w: target format %q", ErrUnsupportedFormat, target)
		}
		return f, strings.TrimSuffix(base, ext) + "." + string(f), nil
	}

	if ext == "" {
		return "", "", fmt.Errorf("%w: cannot determine format of %s", ErrUnsupportedFormat, input)
	}
	f, ok := ParseFormat(ext)
	if !ok {
		return "", "", fmt.Errorf("%w: %q in %s", ErrUnsupportedFormat, ext, input)
	}
	return f, base, nil
}

func checkOutputDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: output directory is required", ErrOutputDirInvalid)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrOutputDirInvalid, dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputDirInvalid, dir)
	}
	return nil
}

// measure reads sizes and output dimensions back from disk.
func measure(input, output string, format Format) (Result, error) {
	original, err := FileSize(input)
	if err != nil {
		return Result{}, ioError("stat", input, err)
	}
	compressed, err := FileSize(output)
	if err != nil {
		return Result{}, ioError("stat", output, err)
	}

	img, err := imaging.Open(output)
	if err != nil {
		return Result{}, ioError("decode", output, err)
	}
	bounds := img.Bounds()

	return Result{
		InputPath:        input,
		OutputPath:       output,
		OriginalSize:     original,
		CompressedSize:   compressed,
		Width:            bounds.Dx(),
		Height:           bounds.Dy(),
		CompressionRatio: Ratio(original, compressed),
		Format:           string(format),
	}, nil
}

// FileSize returns the size in bytes of the file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
