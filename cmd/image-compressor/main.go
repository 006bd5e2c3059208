package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"image-compressor-go/internal/compressor"
	"image-compressor-go/internal/config"
	"image-compressor-go/internal/logger"
	"image-compressor-go/internal/metadata"
	"image-compressor-go/internal/statistics"
	"image-compressor-go/internal/watcher"
	"image-compressor-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	outputDir  string
	quality    int
	maxWidth   int
	maxHeight  int
	keepAspect bool
	lossless   bool
	format     string
	preset     string
	verbose    bool
	quiet      bool
	showAll    bool
	port       int
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "image-compressor",
	Short: "Compress and resize images with ffmpeg",
	Long: `image-compressor re-encodes images through ffmpeg with a per-format
quality mapping, optional bounded resizing and collision-free output names.

Features:
- JPEG, PNG, WebP, GIF, BMP and TIFF output
- Quality 1-100 mapped to each encoder's native scale
- Max width/height with or without aspect ratio
- Batch processing that keeps going past failed files
- Web API with live progress over websocket
- Watch mode for drop folders`,
	SilenceUsage: true,
}

// compressCmd compresses one or more files into the output directory.
var compressCmd = &cobra.Command{
	Use:   "compress <file>...",
	Short: "Compress images into the output directory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCompress(cmd, args)
	},
}

// infoCmd prints dimensions and EXIF details of an image.
var infoCmd = &cobra.Command{
	Use:   "info <file>",
	Short: "Show image dimensions and metadata",
	Long: `Shows the format, dimensions, size and EXIF summary of an image.
With --all every tag exiftool can read is listed as well.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(args[0])
	},
}

// statsCmd prints the size of a file.
var statsCmd = &cobra.Command{
	Use:   "stats <file>",
	Short: "Show the size of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(args[0])
	},
}

// presetsCmd lists the configured presets.
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List compression presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPresets()
	},
}

// serveCmd starts the web API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web API server",
	Long: `Starts an HTTP server exposing compression endpoints under /api and
progress events on /ws.

Access the interface at http://localhost:<port> (default: 8080)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

// watchCmd compresses new images dropped into a directory.
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Compress images as they appear in a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch(cmd, args[0])
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")

	for _, cmd := range []*cobra.Command{compressCmd, watchCmd} {
		addCompressionFlags(cmd)
	}

	infoCmd.Flags().BoolVar(&showAll, "all", false, "list every tag via exiftool")
	serveCmd.Flags().IntVar(&port, "port", 8080, "port to run web server on")

	rootCmd.AddCommand(compressCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(watchCmd)
}

func addCompressionFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outputDir, "out", "o", "", "output directory")
	cmd.Flags().IntVarP(&quality, "quality", "q", 80, "quality from 1 (smallest) to 100 (best)")
	cmd.Flags().IntVar(&maxWidth, "max-width", 0, "maximum output width in pixels")
	cmd.Flags().IntVar(&maxHeight, "max-height", 0, "maximum output height in pixels")
	cmd.Flags().BoolVar(&keepAspect, "keep-aspect", true, "preserve aspect ratio when resizing")
	cmd.Flags().BoolVar(&lossless, "lossless", false, "use lossless encoding where supported")
	cmd.Flags().StringVar(&format, "format", "", "output format (jpg, png, webp, gif, bmp, tiff)")
	cmd.Flags().StringVarP(&preset, "preset", "p", "", "named preset applied before the other flags (see 'presets')")
}

// loadConfig loads configuration and applies CLI overrides for flags that were set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if cmd == nil {
		return cfg, nil
	}

	flags := cmd.Flags()
	if flags.Changed("preset") {
		if err := cfg.ApplyPreset(preset); err != nil {
			return nil, err
		}
	}
	if flags.Changed("out") {
		cfg.OutputDirectory = outputDir
	}
	if flags.Changed("quality") {
		cfg.Compression.Quality = quality
	}
	if flags.Changed("max-width") {
		cfg.Compression.MaxWidth = maxWidth
	}
	if flags.Changed("max-height") {
		cfg.Compression.MaxHeight = maxHeight
	}
	if flags.Changed("keep-aspect") {
		cfg.Compression.MaintainAspectRatio = keepAspect
	}
	if flags.Changed("lossless") {
		cfg.Compression.Lossless = lossless
	}
	if flags.Changed("format") {
		cfg.Compression.Format = format
	}
	if flags.Changed("port") {
		cfg.Web.Port = port
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cfg *config.Config) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !quiet,
	}

	if verbose {
		loggerCfg.Level = "debug"
	}
	if quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("Falling back to default logger: %v", err)
	}

	return log
}

// newCompressor builds the ffmpeg-backed compressor recording into stats.
func newCompressor(cfg *config.Config, log *logrus.Logger, stats *statistics.Statistics) *compressor.DefaultCompressor {
	transcoder := compressor.NewExecTranscoder(cfg.Transcoder.Binary)
	if verbose {
		transcoder.Tee = os.Stderr
	}

	settings := compressor.Settings{
		LogLevel: cfg.Transcoder.LogLevel,
		Stats:    stats,
	}
	if cfg.Transcoder.PreserveMetadata {
		exifTool := metadata.NewExifTool(cfg.Transcoder.ExiftoolBinary)
		if exifTool.Available() {
			settings.Metadata = exifTool
		} else {
			log.Warnf("preserve_metadata is set but %s was not found; metadata will not be copied", cfg.Transcoder.ExiftoolBinary)
		}
	}

	return compressor.NewDefaultCompressor(transcoder, log, settings)
}

// runCompress compresses the given files and prints a summary.
func runCompress(cmd *cobra.Command, inputs []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.OutputDirectory == "" {
		return fmt.Errorf("output directory is required (--out or output_directory)")
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	comp := newCompressor(cfg, log, stats)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	batch := comp.BatchCompress(ctx, inputs, cfg.OutputDirectory, cfg.CompressionOptions(), nil)
	stats.Finalize()

	if !quiet {
		for _, res := range batch.Results {
			fmt.Printf("%s -> %s (%s -> %s, %+.1f%%, %dx%d)\n",
				res.InputPath, res.OutputPath,
				statistics.FormatBytes(res.OriginalSize), statistics.FormatBytes(res.CompressedSize),
				res.CompressionRatio, res.Width, res.Height)
		}
		fmt.Println("\n" + stats.GetSummary())
		fmt.Println("\n" + stats.GetFormatBreakdown())
		if stats.GetFilesWithErrors() > 0 {
			fmt.Println("\n" + stats.GetErrorSummary())
		}
	}

	if batch.Failed() {
		return fmt.Errorf("%d of %d files failed", len(batch.Errors), len(inputs))
	}
	return nil
}

// runInfo prints what the inspector (and optionally exiftool) knows about a file.
func runInfo(filePath string) error {
	if !fileExists(filePath) {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := setupLogger(cfg)

	info, err := metadata.NewInspector(log).Inspect(filePath)
	if err != nil {
		return err
	}

	fmt.Printf("File:        %s\n", info.Path)
	fmt.Printf("Format:      %s\n", info.Format)
	fmt.Printf("Size:        %s\n", statistics.FormatBytes(info.Size))
	fmt.Printf("Dimensions:  %dx%d\n", info.Width, info.Height)
	if info.DateTaken != nil {
		fmt.Printf("Date taken:  %s\n", info.DateTaken.Format("2006-01-02 15:04:05"))
	}
	if info.Camera != "" {
		fmt.Printf("Camera:      %s\n", info.Camera)
	}
	if info.Software != "" {
		fmt.Printf("Software:    %s\n", info.Software)
	}
	if info.Orientation != 0 {
		fmt.Printf("Orientation: %d\n", info.Orientation)
	}

	if !showAll {
		return nil
	}

	fields, err := metadata.NewExifTool(cfg.Transcoder.ExiftoolBinary).Dump(filePath)
	if err != nil {
		return fmt.Errorf("exiftool: %w", err)
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Println("\nAll tags:")
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, fields[k])
	}
	return nil
}

// runPresets prints one line per preset.
func runPresets() error {
	cfg, err := loadConfig(nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	for _, name := range cfg.PresetNames() {
		p := cfg.Presets[name]
		size := "original size"
		if p.MaxWidth > 0 || p.MaxHeight > 0 {
			size = fmt.Sprintf("max %dx%d", p.MaxWidth, p.MaxHeight)
		}
		fmt.Printf("%-12s q%-3d %-5s %-16s %s\n", name, p.Quality, p.Format, size, p.Description)
	}
	return nil
}

// runStats prints the byte size of a file as JSON.
func runStats(filePath string) error {
	size, err := compressor.FileSize(filePath)
	if err != nil {
		return err
	}
	out, err := json.Marshal(map[string]interface{}{
		"path":  filePath,
		"size":  size,
		"human": statistics.FormatBytes(size),
	})
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	comp := newCompressor(cfg, log, stats)
	server := web.NewServer(cfg, log, comp, metadata.NewInspector(log), stats)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Web.Port); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	if !quiet {
		fmt.Printf("Image compressor API listening on http://localhost:%d\n", cfg.Web.Port)
		fmt.Printf("Press Ctrl+C to stop the server\n\n")
	}

	select {
	case err := <-errChan:
		return fmt.Errorf("server failed to start: %w", err)
	case <-sigChan:
	}
	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	stats.Finalize()
	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
	}
	return nil
}

// runWatch compresses new images in dir until interrupted.
func runWatch(cmd *cobra.Command, dir string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !dirExists(dir) {
		return fmt.Errorf("watch directory does not exist: %s", dir)
	}

	log := setupLogger(cfg)
	stats := statistics.NewStatistics()
	comp := newCompressor(cfg, log, stats)

	onResult := func(input string, res compressor.Result, err error) {
		if quiet || err != nil {
			return
		}
		fmt.Printf("%s -> %s (%+.1f%%)\n", input, res.OutputPath, res.CompressionRatio)
	}

	w, err := watcher.New(comp, log, dir, cfg.OutputDirectory, cfg.CompressionOptions(), cfg.Watch.SettleDelay, onResult)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		return err
	}

	stats.Finalize()
	if !quiet {
		fmt.Println("\n" + stats.GetSummary())
		fmt.Println("\n" + stats.GetFormatBreakdown())
	}
	return nil
}

// fileExists returns true if the given path exists and is a file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
