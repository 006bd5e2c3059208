package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	opts := cfg.CompressionOptions()
	if opts.Quality != 80 || !opts.KeepAspect() || opts.Lossless {
		t.Errorf("unexpected default options: %+v", opts)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
output_directory: /tmp/out
compression:
  quality: 65
  max_width: 1024
  maintain_aspect_ratio: false
  format: WEBP
transcoder:
  binary: /usr/local/bin/ffmpeg
  preserve_metadata: true
watch:
  settle_delay: 2s
logging:
  level: debug
`)
	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.OutputDirectory != "/tmp/out" {
		t.Errorf("output_directory: got %q", cfg.OutputDirectory)
	}
	if cfg.Compression.Quality != 65 || cfg.Compression.MaxWidth != 1024 {
		t.Errorf("compression: got %+v", cfg.Compression)
	}
	if cfg.Compression.Format != "webp" {
		t.Errorf("format not normalized: %q", cfg.Compression.Format)
	}
	if cfg.CompressionOptions().KeepAspect() {
		t.Error("maintain_aspect_ratio=false not applied")
	}
	if !cfg.Transcoder.PreserveMetadata || cfg.Transcoder.Binary != "/usr/local/bin/ffmpeg" {
		t.Errorf("transcoder: got %+v", cfg.Transcoder)
	}
	if cfg.Transcoder.LogLevel != "error" {
		t.Errorf("default log level lost: %q", cfg.Transcoder.LogLevel)
	}
	if cfg.Watch.SettleDelay != 2*time.Second {
		t.Errorf("settle_delay: got %v", cfg.Watch.SettleDelay)
	}
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("IMAGE_COMPRESSOR_COMPRESSION_QUALITY", "42")
	path := writeConfig(t, "compression:\n  quality: 90\n")

	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Compression.Quality != 42 {
		t.Errorf("quality: got %d, want 42", cfg.Compression.Quality)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"quality zero", func(c *Config) { c.Compression.Quality = 0 }},
		{"quality high", func(c *Config) { c.Compression.Quality = 101 }},
		{"negative width", func(c *Config) { c.Compression.MaxWidth = -5 }},
		{"bad format", func(c *Config) { c.Compression.Format = "heic" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad preset quality", func(c *Config) { c.Presets["thumb"] = PresetConfig{Quality: 0, Format: "jpg"} }},
		{"bad preset format", func(c *Config) { c.Presets["thumb"] = PresetConfig{Quality: 50, Format: "heic"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Transcoder.Binary = ""
	cfg.Web.Port = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Transcoder.Binary != "ffmpeg" || cfg.Web.Port != 8080 {
		t.Errorf("defaults not restored: %+v %+v", cfg.Transcoder, cfg.Web)
	}
}

func TestPresets_Defaults(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	want := []string{"androidfhd", "androidhd", "archive", "ipadretina", "mobile1x", "mobile2x", "mobile3x", "social", "web"}
	if got := cfg.PresetNames(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("names: got %v, want %v", got, want)
	}

	tests := []struct {
		name          string
		quality, w, h int
		format        string
	}{
		{"web", 75, 1920, 1080, "webp"},
		{"Social", 85, 1200, 1200, "jpg"},
		{"archive", 95, 0, 0, "png"},
		{"androidHD", 85, 1080, 1920, "webp"},
	}
	for _, tt := range tests {
		opts, err := cfg.PresetOptions(tt.name)
		if err != nil {
			t.Errorf("%s: %v", tt.name, err)
			continue
		}
		if opts.Quality != tt.quality || opts.MaxWidth != tt.w || opts.MaxHeight != tt.h || opts.Format != tt.format {
			t.Errorf("%s: got %+v", tt.name, opts)
		}
		if !opts.KeepAspect() {
			t.Errorf("%s: aspect ratio setting not kept", tt.name)
		}
	}

	if _, err := cfg.PresetOptions("poster"); err == nil {
		t.Error("expected error for unknown preset")
	}
}

func TestPresets_FromFile(t *testing.T) {
	path := writeConfig(t, `
presets:
  thumb:
    quality: 60
    max_width: 200
    format: JPEG
`)
	cfg, err := load(viper.New(), path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	thumb, ok := cfg.Presets["thumb"]
	if !ok || thumb.Quality != 60 || thumb.MaxWidth != 200 || thumb.Format != "jpeg" {
		t.Errorf("thumb: got %+v (present=%v)", thumb, ok)
	}
	if _, ok := cfg.Presets["web"]; !ok {
		t.Error("built-in presets lost when a file adds one")
	}

	if err := cfg.ApplyPreset("thumb"); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Compression.Quality != 60 || cfg.Compression.MaxWidth != 200 || cfg.Compression.Format != "jpeg" {
		t.Errorf("compression after preset: %+v", cfg.Compression)
	}
}
