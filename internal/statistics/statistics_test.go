package statistics

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func TestStatistics_RecordsCounters(t *testing.T) {
	s := NewStatistics()
	s.RecordSuccess("png", 1000, 400)
	s.RecordSuccess("png", 500, 100)
	s.RecordSuccess("gif", 100, 150)
	s.RecordFailure("/in/bad.jpg", "compress", errors.New("transcode failed"))
	s.Finalize()

	if s.TotalFilesProcessed != 4 || s.FilesCompressed != 3 || s.FilesWithErrors != 1 || s.FilesGrown != 1 {
		t.Errorf("counters: processed=%d compressed=%d errors=%d grown=%d",
			s.TotalFilesProcessed, s.FilesCompressed, s.FilesWithErrors, s.FilesGrown)
	}
	if got := s.BytesSaved(); got != 950 {
		t.Errorf("bytes saved: got %d, want 950", got)
	}
	if got := s.SavedPercent(); got < 59.3 || got > 59.4 {
		t.Errorf("saved percent: got %.2f", got)
	}
	if s.GetFilesWithErrors() != 1 {
		t.Errorf("error entries: got %d", s.GetFilesWithErrors())
	}

	breakdown := s.GetFormatBreakdown()
	if strings.Index(breakdown, "gif: 1") > strings.Index(breakdown, "png: 2") || !strings.Contains(breakdown, "png: 2") {
		t.Errorf("breakdown not sorted or wrong:\n%s", breakdown)
	}
	if !strings.Contains(s.GetErrorSummary(), "/in/bad.jpg") {
		t.Errorf("error summary missing path:\n%s", s.GetErrorSummary())
	}
	if !strings.Contains(s.GetSummary(), "Larger Than Original: 1") {
		t.Errorf("summary:\n%s", s.GetSummary())
	}

	snap := s.Snapshot()
	if snap["bytes_in"] != int64(1600) || snap["errors"] != int64(1) {
		t.Errorf("snapshot: %v", snap)
	}
}

func TestStatistics_Empty(t *testing.T) {
	s := NewStatistics()
	if s.SavedPercent() != 0 {
		t.Errorf("saved percent on empty stats: %v", s.SavedPercent())
	}
	if s.GetFormatBreakdown() != "No format statistics available" {
		t.Errorf("breakdown: %q", s.GetFormatBreakdown())
	}
	if s.GetErrorSummary() != "No errors occurred during processing" {
		t.Errorf("error summary: %q", s.GetErrorSummary())
	}
}

func TestStatistics_ErrorSummaryTruncates(t *testing.T) {
	s := NewStatistics()
	for i := 0; i < 12; i++ {
		s.AddError(fmt.Sprintf("f%d.png", i), "compress", "boom")
	}
	if !strings.Contains(s.GetErrorSummary(), "... and 2 more errors") {
		t.Errorf("summary not truncated:\n%s", s.GetErrorSummary())
	}
}

func TestStatistics_Concurrent(t *testing.T) {
	s := NewStatistics()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordSuccess("webp", 10, 5)
		}()
	}
	wg.Wait()
	if s.FilesCompressed != 50 || s.FormatStats["webp"] != 50 {
		t.Errorf("compressed=%d webp=%d", s.FilesCompressed, s.FormatStats["webp"])
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
		{-2048, "-2.0 KB"},
	}
	for _, tt := range tests {
		if got := FormatBytes(tt.in); got != tt.want {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
