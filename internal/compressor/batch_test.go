package compressor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"image-compressor-go/internal/statistics"
)

func TestBatchCompress_IsolatesFailures(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	first := writeImage(t, inDir, "one.png", 10, 10)
	missing := filepath.Join(inDir, "two.png")
	third := writeImage(t, inDir, "three.jpg", 10, 10)

	ft := &fakeTranscoder{}
	c := newTestCompressor(ft, Settings{})

	var events []string
	progress := func(input string, p int) {
		events = append(events, fmt.Sprintf("%s:%d", filepath.Base(input), p))
	}

	batch := c.BatchCompress(context.Background(), []string{first, missing, third}, outDir, Options{Quality: 75}, progress)

	if len(batch.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(batch.Results))
	}
	if batch.Results[0].InputPath != first || batch.Results[1].InputPath != third {
		t.Errorf("results out of order: %q, %q", batch.Results[0].InputPath, batch.Results[1].InputPath)
	}

	if len(batch.Errors) != 1 {
		t.Fatalf("errors: got %d, want 1", len(batch.Errors))
	}
	if batch.Errors[0].Input != missing {
		t.Errorf("failed input: got %q, want %q", batch.Errors[0].Input, missing)
	}
	if !errors.Is(batch.Errors[0], ErrInputNotFound) {
		t.Errorf("cause: got %v", batch.Errors[0].Err)
	}

	if !batch.Failed() {
		t.Error("Failed() = false")
	}
	err := batch.Err()
	if err == nil || !strings.Contains(err.Error(), missing) {
		t.Errorf("joined error must name %s: %v", missing, err)
	}
	if msgs := batch.Messages(); len(msgs) != 1 || !strings.HasPrefix(msgs[0], missing+": ") {
		t.Errorf("messages: %v", msgs)
	}

	want := []string{"one.png:0", "one.png:100", "two.png:0", "two.png:100", "three.jpg:0", "three.jpg:100"}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("progress events: got %v, want %v", events, want)
	}
	if ft.callCount() != 2 {
		t.Errorf("transcoder calls: got %d, want 2", ft.callCount())
	}
}

func TestBatchCompress_AllSucceed(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	inputs := []string{
		writeImage(t, inDir, "a.png", 4, 4),
		writeImage(t, inDir, "b.bmp", 4, 4),
	}
	c := newTestCompressor(&fakeTranscoder{}, Settings{})

	batch := c.BatchCompress(context.Background(), inputs, outDir, Options{Quality: 60}, nil)
	if batch.Failed() || batch.Err() != nil {
		t.Fatalf("unexpected failure: %v", batch.Err())
	}
	if len(batch.Results) != 2 {
		t.Fatalf("results: got %d", len(batch.Results))
	}
	if batch.Results[1].Format != "bmp" {
		t.Errorf("format: got %q", batch.Results[1].Format)
	}
}

func TestBatchCompress_SameInputTwiceProducesDistinctFiles(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	input := writeImage(t, inDir, "dup.gif", 4, 4)
	c := newTestCompressor(&fakeTranscoder{}, Settings{})

	batch := c.BatchCompress(context.Background(), []string{input, input}, outDir, Options{Quality: 60}, nil)
	if len(batch.Results) != 2 {
		t.Fatalf("results: got %d, errors %v", len(batch.Results), batch.Messages())
	}
	if filepath.Base(batch.Results[1].OutputPath) != "dup_1.gif" {
		t.Errorf("second output: got %q", batch.Results[1].OutputPath)
	}
}

func TestBatchCompress_CanceledContextSkipsRemaining(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	inputs := []string{
		writeImage(t, inDir, "a.png", 4, 4),
		writeImage(t, inDir, "b.png", 4, 4),
	}
	ft := &fakeTranscoder{}
	c := newTestCompressor(ft, Settings{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := c.BatchCompress(ctx, inputs, outDir, Options{Quality: 60}, nil)
	if len(batch.Errors) != 2 || len(batch.Results) != 0 {
		t.Fatalf("got %d results, %d errors", len(batch.Results), len(batch.Errors))
	}
	if !errors.Is(batch.Errors[0], context.Canceled) {
		t.Errorf("cause: got %v", batch.Errors[0].Err)
	}
	if ft.callCount() != 0 {
		t.Errorf("transcoder ran %d times", ft.callCount())
	}
}

func TestBatchCompress_CanceledItemsCountAsFailures(t *testing.T) {
	inDir, outDir := t.TempDir(), t.TempDir()
	inputs := []string{
		writeImage(t, inDir, "a.png", 4, 4),
		writeImage(t, inDir, "b.png", 4, 4),
		writeImage(t, inDir, "c.png", 4, 4),
	}
	stats := statistics.NewStatistics()
	c := newTestCompressor(&fakeTranscoder{}, Settings{Stats: stats})

	ctx, cancel := context.WithCancel(context.Background())
	first := true
	batch := c.BatchCompress(ctx, inputs, outDir, Options{Quality: 60}, func(input string, progress int) {
		if progress == 100 && first {
			first = false
			cancel()
		}
	})

	if len(batch.Results) != 1 || len(batch.Errors) != 2 {
		t.Fatalf("got %d results, %d errors", len(batch.Results), len(batch.Errors))
	}
	if got := stats.FilesWithErrors; got != int64(len(batch.Errors)) {
		t.Errorf("stats errors: got %d, want %d", got, len(batch.Errors))
	}
	if got := stats.TotalFilesProcessed; got != int64(len(inputs)) {
		t.Errorf("stats processed: got %d, want %d", got, len(inputs))
	}
	if got := stats.GetFilesWithErrors(); got != 2 {
		t.Errorf("error entries: got %d", got)
	}
}
