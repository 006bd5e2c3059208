package compressor

import (
	"reflect"
	"strings"
	"testing"
)

func TestScaleFilter(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"none", Options{Quality: 80}, ""},
		{"fit within both", Options{MaxWidth: 800, MaxHeight: 600},
			"scale='min(800,iw)':'min(600,ih)':force_original_aspect_ratio=decrease"},
		{"fit within both explicit", Options{MaxWidth: 800, MaxHeight: 600}.WithAspect(true),
			"scale='min(800,iw)':'min(600,ih)':force_original_aspect_ratio=decrease"},
		{"exact", Options{MaxWidth: 800, MaxHeight: 600}.WithAspect(false), "scale=800:600"},
		{"width only", Options{MaxWidth: 800}, "scale='min(800,iw)':-1"},
		{"width only aspect released", Options{MaxWidth: 800}.WithAspect(false), "scale='min(800,iw)':-1"},
		{"height only", Options{MaxHeight: 600}, "scale=-1:'min(600,ih)'"},
		{"negative ignored", Options{MaxWidth: -1, MaxHeight: -1}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScaleFilter(tt.opts); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBuildArgs_Order(t *testing.T) {
	opts := Options{Quality: 80, MaxWidth: 800}
	args := BuildArgs("/in/cat.png", "/out/cat.png", FormatPNG, opts, "")

	want := []string{
		"-hide_banner", "-nostdin", "-loglevel", "error", "-y",
		"-i", "/in/cat.png",
		"-vf", "scale='min(800,iw)':-1",
		"-compression_level", "1",
		"-f", "image2", "-update", "1", "-c:v", "png",
		"/out/cat.png",
	}
	if !reflect.DeepEqual(args, want) {
		t.Errorf("got  %v\nwant %v", args, want)
	}
}

func TestBuildArgs_NoFilterWithoutBounds(t *testing.T) {
	args := BuildArgs("a.gif", "b.gif", FormatGIF, Options{Quality: 50}, "warning")
	joined := strings.Join(args, " ")
	if strings.Contains(joined, "-vf") {
		t.Errorf("unexpected scale filter: %s", joined)
	}
	if !strings.Contains(joined, "-loglevel warning") {
		t.Errorf("log level not applied: %s", joined)
	}
	if args[len(args)-1] != "b.gif" {
		t.Errorf("output must be last: got %q", args[len(args)-1])
	}
}
