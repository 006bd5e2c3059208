package compressor

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestUniquePath_Free(t *testing.T) {
	dir := t.TempDir()
	if got, want := UniquePath(dir, "photo.jpg"), filepath.Join(dir, "photo.jpg"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUniquePath_SkipsTakenSuffixes(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "photo.jpg"))
	touch(t, filepath.Join(dir, "photo_1.jpg"))

	if got, want := UniquePath(dir, "photo.jpg"), filepath.Join(dir, "photo_2.jpg"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestUniquePath_OddNames(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		want string
	}{
		{"README", "README_1"},
		{".jpg", "_1.jpg"},
		{"archive.tar.gz", "archive.tar_1.gz"},
	}
	for _, tt := range tests {
		touch(t, filepath.Join(dir, tt.name))
		if got, want := UniquePath(dir, tt.name), filepath.Join(dir, tt.want); got != want {
			t.Errorf("%q: got %q, want %q", tt.name, got, want)
		}
	}
}

func TestReservePath_CreatesPlaceholder(t *testing.T) {
	dir := t.TempDir()

	first, err := ReservePath(dir, "cat.png")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	second, err := ReservePath(dir, "cat.png")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if first != filepath.Join(dir, "cat.png") {
		t.Errorf("first: got %q", first)
	}
	if second != filepath.Join(dir, "cat_1.png") {
		t.Errorf("second: got %q", second)
	}
	if _, err := os.Stat(second); err != nil {
		t.Errorf("placeholder missing: %v", err)
	}
}

func TestReservePath_ConcurrentCallersGetDistinctPaths(t *testing.T) {
	dir := t.TempDir()
	const n = 16

	var wg sync.WaitGroup
	paths := make([]string, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			paths[i], errs[i] = ReservePath(dir, "img.webp")
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool)
	for i, p := range paths {
		if errs[i] != nil {
			t.Fatalf("reserve %d: %v", i, errs[i])
		}
		if seen[p] {
			t.Errorf("path handed out twice: %s", p)
		}
		seen[p] = true
	}
}

func TestReservePath_MissingDir(t *testing.T) {
	if _, err := ReservePath(filepath.Join(t.TempDir(), "nope"), "a.png"); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestUniquePath_DirIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	touch(t, file)

	done := make(chan string, 1)
	go func() { done <- UniquePath(file, "photo.jpg") }()

	select {
	case got := <-done:
		if want := filepath.Join(file, "photo.jpg"); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("UniquePath did not return for a file passed as dir")
	}

	if _, err := ReservePath(file, "photo.jpg"); err == nil {
		t.Error("ReservePath should fail when dir is a file")
	}
}
