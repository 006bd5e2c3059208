package compressor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// UniquePath returns dir/name if nothing exists there, otherwise the first
// dir/{stem}_{n}{ext} with n >= 1 that does not exist. Only a successful
// Lstat counts as taken, so an unusable dir ends the search at the first
// candidate and the later create reports the problem. The check and a later
// create are separate steps; use ReservePath when another writer may target
// the same directory.
func UniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	for n := 1; exists(path); n++ {
		path = candidate(dir, name, n)
	}
	return path
}

// ReservePath is UniquePath with exclusive creation: it creates an empty
// placeholder at the returned path so no concurrent caller can claim it.
// The caller owns the placeholder and must remove it if it is not used.
func ReservePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			if err := f.Close(); err != nil {
				return "", err
			}
			return path, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", err
		}
		path = candidate(dir, name, n)
	}
}

// candidate builds the n-th numbered variant of name. A name without an
// extension gets no trailing dot.
func candidate(dir, name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}
