package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// ResultFunc receives the outcome of each compression triggered by the watcher.
type ResultFunc func(input string, res compressor.Result, err error)

// Watcher compresses images as they appear in a directory.
type Watcher struct {
	comp      compressor.Compressor
	logger    *logrus.Logger
	dir       string
	outputDir string
	opts      compressor.Options
	settle    time.Duration
	onResult  ResultFunc

	queue   chan string
	mu      sync.Mutex
	pending map[string]*settleTimer
	// created holds paths seen in a Create event whose settle timer has
	// not fired yet; only their Write events are followed.
	created map[string]bool
}

// New returns a Watcher for dir writing into outputDir. The two must differ,
// otherwise every output would trigger another compression.
func New(comp compressor.Compressor, log *logrus.Logger, dir, outputDir string, opts compressor.Options, settle time.Duration, onResult ResultFunc) (*Watcher, error) {
	absDir, err := existingDir(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	absOut, err := existingDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", compressor.ErrOutputDirInvalid, err)
	}
	if absDir == absOut {
		return nil, fmt.Errorf("%w: output directory must differ from watched directory %s", compressor.ErrOutputDirInvalid, absDir)
	}

	return &Watcher{
		comp:      comp,
		logger:    log,
		dir:       absDir,
		outputDir: absOut,
		opts:      opts,
		settle:    settle,
		onResult:  onResult,
		queue:     make(chan string, 100),
		pending:   make(map[string]*settleTimer),
		created:   make(map[string]bool),
	}, nil
}

// Run watches until ctx is done. New files are compressed one at a time,
// each after it has been quiet for the settle delay.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to add watch: %w", err)
	}
	w.logger.Infof("Watching %s, writing to %s", w.dir, w.outputDir)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.worker(ctx)
	}()

	defer func() {
		w.stopTimers()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if w.accept(event) {
				w.schedule(ctx, event.Name)
			}

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("Watcher error: %v", err)
		}
	}
}

// shouldHandle reports whether event is a write to a supported, visible image.
func (w *Watcher) shouldHandle(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	_, ok := compressor.ParseFormat(filepath.Ext(name))
	return ok
}

// accept reports whether event belongs to a newly created image. Writes to
// files that were not seen being created are ignored, so editing an image in
// place does not produce another output.
func (w *Watcher) accept(event fsnotify.Event) bool {
	if !w.shouldHandle(event) {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.created == nil {
		w.created = make(map[string]bool)
	}
	if event.Has(fsnotify.Create) {
		w.created[event.Name] = true
		return true
	}
	return w.created[event.Name]
}

// settleTimer identifies one scheduled run so a superseded timer that
// already fired can tell it lost the race.
type settleTimer struct {
	t *time.Timer
}

// schedule (re)starts the settle timer for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if p, ok := w.pending[path]; ok && p.t.Stop() {
		p.t.Reset(w.settle)
		return
	}

	p := &settleTimer{}
	w.pending[path] = p
	p.t = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		if w.pending[path] != p {
			w.mu.Unlock()
			return
		}
		delete(w.pending, path)
		delete(w.created, path)
		w.mu.Unlock()

		select {
		case w.queue <- path:
		case <-ctx.Done():
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, p := range w.pending {
		p.t.Stop()
		delete(w.pending, path)
	}
	clear(w.created)
}

func (w *Watcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case path := <-w.queue:
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			log := logger.WithFileOperation(w.logger, path, "watch")
			res, err := w.comp.Compress(ctx, path, w.outputDir, w.opts)
			if err != nil {
				log.Errorf("Compression failed: %v", err)
			} else {
				log.Infof("Compressed to %s", res.OutputPath)
			}
			if w.onResult != nil {
				w.onResult(path, res, err)
			}
		}
	}
}

func existingDir(dir string) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}
