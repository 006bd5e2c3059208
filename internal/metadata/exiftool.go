package metadata

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/barasher/go-exiftool"
)

// ExifTool preserves and lists metadata with the exiftool program.
type ExifTool struct {
	Binary string
}

// NewExifTool returns an ExifTool using binary, defaulting to "exiftool".
func NewExifTool(binary string) *ExifTool {
	if binary == "" {
		binary = "exiftool"
	}
	return &ExifTool{Binary: binary}
}

// Available reports whether the exiftool binary can be found.
func (e *ExifTool) Available() bool {
	_, err := exec.LookPath(e.Binary)
	return err == nil
}

// Copy copies all writable tags from src onto dst in place. It runs the
// binary directly because go-exiftool has no -TagsFromFile support.
func (e *ExifTool) Copy(src, dst string) error {
	cmd := exec.Command(e.Binary, "-q", "-TagsFromFile", src, "-all:all", "-overwrite_original", dst)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("exiftool copy failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Dump returns every tag exiftool reports for path.
func (e *ExifTool) Dump(path string) (map[string]interface{}, error) {
	et, err := exiftool.NewExiftool(exiftool.SetExiftoolBinaryPath(e.Binary))
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	defer et.Close()

	files := et.ExtractMetadata(path)
	if len(files) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	if files[0].Err != nil {
		return nil, files[0].Err
	}
	return files[0].Fields, nil
}
