package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/logger"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	OutputDirectory string            `mapstructure:"output_directory"`
	Compression     CompressionConfig `mapstructure:"compression"`
	Transcoder      TranscoderConfig  `mapstructure:"transcoder"`
	Web             WebConfig         `mapstructure:"web"`
	Watch           WatchConfig       `mapstructure:"watch"`
	Logging         LoggingConfig     `mapstructure:"logging"`
	// Presets are keyed by lower-case name; viper folds keys to lower case.
	Presets map[string]PresetConfig `mapstructure:"presets"`
}

// PresetConfig is a named bundle of quality, size bounds and target format.
// A zero bound leaves that axis unconstrained.
type PresetConfig struct {
	Quality     int    `mapstructure:"quality" json:"quality"`
	MaxWidth    int    `mapstructure:"max_width" json:"max_width,omitempty"`
	MaxHeight   int    `mapstructure:"max_height" json:"max_height,omitempty"`
	Format      string `mapstructure:"format" json:"format"`
	Description string `mapstructure:"description" json:"description,omitempty"`
}

// CompressionConfig holds the default compression options
type CompressionConfig struct {
	Quality             int    `mapstructure:"quality"`
	MaxWidth            int    `mapstructure:"max_width"`
	MaxHeight           int    `mapstructure:"max_height"`
	MaintainAspectRatio bool   `mapstructure:"maintain_aspect_ratio"`
	Lossless            bool   `mapstructure:"lossless"`
	Format              string `mapstructure:"format"`
}

// TranscoderConfig contains external tool settings
type TranscoderConfig struct {
	Binary           string `mapstructure:"binary"`
	LogLevel         string `mapstructure:"log_level"`
	PreserveMetadata bool   `mapstructure:"preserve_metadata"`
	ExiftoolBinary   string `mapstructure:"exiftool_binary"`
}

// WebConfig contains web server settings
type WebConfig struct {
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
}

// WatchConfig contains watch-folder settings
type WatchConfig struct {
	SettleDelay time.Duration `mapstructure:"settle_delay"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultPresets returns the built-in presets.
func DefaultPresets() map[string]PresetConfig {
	return map[string]PresetConfig{
		"web":        {Quality: 75, MaxWidth: 1920, MaxHeight: 1080, Format: "webp", Description: "Web pages, high compression"},
		"social":     {Quality: 85, MaxWidth: 1200, MaxHeight: 1200, Format: "jpg", Description: "Social media sharing"},
		"archive":    {Quality: 95, Format: "png", Description: "High quality archive at original size"},
		"mobile1x":   {Quality: 80, MaxWidth: 375, MaxHeight: 812, Format: "webp", Description: "iPhone X class, 1x"},
		"mobile2x":   {Quality: 85, MaxWidth: 750, MaxHeight: 1624, Format: "webp", Description: "iPhone X class, 2x"},
		"mobile3x":   {Quality: 90, MaxWidth: 1125, MaxHeight: 2436, Format: "webp", Description: "iPhone X class, 3x"},
		"androidhd":  {Quality: 85, MaxWidth: 1080, MaxHeight: 1920, Format: "webp", Description: "Android HD"},
		"androidfhd": {Quality: 90, MaxWidth: 1440, MaxHeight: 2560, Format: "webp", Description: "Android FHD+"},
		"ipadretina": {Quality: 85, MaxWidth: 2048, MaxHeight: 2732, Format: "webp", Description: "iPad Retina"},
	}
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	logDefaults := logger.DefaultConfig()
	return &Config{
		Compression: CompressionConfig{
			Quality:             80,
			MaintainAspectRatio: true,
		},
		Transcoder: TranscoderConfig{
			Binary:         "ffmpeg",
			LogLevel:       "error",
			ExiftoolBinary: "exiftool",
		},
		Web: WebConfig{
			Port:      8080,
			StaticDir: "web/static",
		},
		Watch: WatchConfig{
			SettleDelay: 500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:      logDefaults.Level,
			FilePath:   logDefaults.FilePath,
			MaxSize:    logDefaults.MaxSize,
			MaxBackups: logDefaults.MaxBackups,
			MaxAge:     logDefaults.MaxAge,
			Compress:   logDefaults.Compress,
		},
		Presets: DefaultPresets(),
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	return load(viper.New(), configPath)
}

func load(v *viper.Viper, configPath string) (*Config, error) {
	config := DefaultConfig()

	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config file in current directory and home directory
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.image-compressor")
		v.AddConfigPath("/etc/image-compressor")
	}

	// Enable environment variable support
	v.SetEnvPrefix("IMAGE_COMPRESSOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// AutomaticEnv only resolves keys viper already knows about, so every
// leaf key is registered for Unmarshal to see env overrides.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"output_directory",
		"compression.quality", "compression.max_width", "compression.max_height",
		"compression.maintain_aspect_ratio", "compression.lossless", "compression.format",
		"transcoder.binary", "transcoder.log_level", "transcoder.preserve_metadata", "transcoder.exiftool_binary",
		"web.port", "web.static_dir",
		"watch.settle_delay",
		"logging.level", "logging.file_path", "logging.max_size", "logging.max_backups",
		"logging.max_age", "logging.compress",
	} {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Compression.Quality < 1 || c.Compression.Quality > 100 {
		return fmt.Errorf("compression.quality must be between 1 and 100, got %d", c.Compression.Quality)
	}
	if c.Compression.MaxWidth < 0 || c.Compression.MaxHeight < 0 {
		return fmt.Errorf("compression.max_width and max_height must not be negative")
	}
	if c.Compression.Format != "" {
		f, ok := compressor.ParseFormat(c.Compression.Format)
		if !ok {
			return fmt.Errorf("unsupported compression.format: %s", c.Compression.Format)
		}
		c.Compression.Format = string(f)
	}

	if c.Transcoder.Binary == "" {
		c.Transcoder.Binary = "ffmpeg"
	}
	if c.Transcoder.LogLevel == "" {
		c.Transcoder.LogLevel = "error"
	}
	if c.Transcoder.ExiftoolBinary == "" {
		c.Transcoder.ExiftoolBinary = "exiftool"
	}

	if c.Web.Port <= 0 || c.Web.Port > 65535 {
		c.Web.Port = 8080
	}
	if c.Watch.SettleDelay < 0 {
		c.Watch.SettleDelay = 0
	}

	normalized := make(map[string]PresetConfig, len(c.Presets))
	for name, p := range c.Presets {
		if p.Quality < 1 || p.Quality > 100 {
			return fmt.Errorf("preset %s: quality must be between 1 and 100, got %d", name, p.Quality)
		}
		if p.MaxWidth < 0 || p.MaxHeight < 0 {
			return fmt.Errorf("preset %s: max_width and max_height must not be negative", name)
		}
		if p.Format != "" {
			f, ok := compressor.ParseFormat(p.Format)
			if !ok {
				return fmt.Errorf("preset %s: unsupported format: %s", name, p.Format)
			}
			p.Format = string(f)
		}
		normalized[strings.ToLower(name)] = p
	}
	c.Presets = normalized

	// Validate logging settings
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// CompressionOptions converts the configured defaults into compressor options.
func (c *Config) CompressionOptions() compressor.Options {
	opts := compressor.Options{
		Quality:   c.Compression.Quality,
		MaxWidth:  c.Compression.MaxWidth,
		MaxHeight: c.Compression.MaxHeight,
		Lossless:  c.Compression.Lossless,
		Format:    c.Compression.Format,
	}
	return opts.WithAspect(c.Compression.MaintainAspectRatio)
}

// PresetNames returns the configured preset names, sorted.
func (c *Config) PresetNames() []string {
	names := make([]string, 0, len(c.Presets))
	for name := range c.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// PresetOptions returns the configured defaults with the named preset's
// quality, bounds and format applied. The aspect ratio setting is kept.
func (c *Config) PresetOptions(name string) (compressor.Options, error) {
	p, ok := c.Presets[strings.ToLower(name)]
	if !ok {
		return compressor.Options{}, fmt.Errorf("unknown preset: %s", name)
	}
	opts := c.CompressionOptions()
	opts.Quality = p.Quality
	opts.MaxWidth = p.MaxWidth
	opts.MaxHeight = p.MaxHeight
	opts.Format = p.Format
	return opts, nil
}

// ApplyPreset writes the named preset into the compression defaults.
func (c *Config) ApplyPreset(name string) error {
	opts, err := c.PresetOptions(name)
	if err != nil {
		return err
	}
	c.Compression.Quality = opts.Quality
	c.Compression.MaxWidth = opts.MaxWidth
	c.Compression.MaxHeight = opts.MaxHeight
	c.Compression.Format = opts.Format
	return nil
}
