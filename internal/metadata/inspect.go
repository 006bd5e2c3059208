package metadata

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"
	"sync"
	"time"

	"image-compressor-go/internal/logger"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Info describes an image file on disk.
type Info struct {
	Path        string     `json:"path"`
	Format      string     `json:"format"`
	Size        int64      `json:"size"`
	Width       int        `json:"width"`
	Height      int        `json:"height"`
	DateTaken   *time.Time `json:"date_taken,omitempty"`
	Camera      string     `json:"camera,omitempty"`
	Software    string     `json:"software,omitempty"`
	Orientation int        `json:"orientation,omitempty"`
}

// CacheStats contains statistics about cache performance.
type CacheStats struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	HitRate      float64 `json:"hit_rate"`
	TotalQueries int64   `json:"total_queries"`
}

// Inspector reads image headers and EXIF data, caching results per
// path, size and modification time.
type Inspector struct {
	logger *logrus.Logger
	cache  sync.Map
	stats  CacheStats
	mutex  sync.RWMutex
}

// NewInspector returns a new Inspector.
func NewInspector(logger *logrus.Logger) *Inspector {
	return &Inspector{
		logger: logger,
	}
}

// Inspect returns the dimensions, size and EXIF summary of the image at
// filePath. Missing EXIF is not an error.
func (i *Inspector) Inspect(filePath string) (Info, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat file: %w", err)
	}

	key := i.getCacheKey(filePath, fileInfo)
	if cached, ok := i.cache.Load(key); ok {
		i.incrementCacheHits()
		return cached.(Info), nil
	}
	i.incrementCacheMisses()

	info, err := i.read(filePath)
	if err != nil {
		return Info{}, err
	}
	info.Size = fileInfo.Size()

	i.cache.Store(key, info)
	return info, nil
}

// GetCacheStats returns cache statistics for this inspector.
func (i *Inspector) GetCacheStats() CacheStats {
	i.mutex.RLock()
	defer i.mutex.RUnlock()

	stats := i.stats
	if stats.TotalQueries > 0 {
		stats.HitRate = float64(stats.Hits) / float64(stats.TotalQueries)
	}
	return stats
}

func (i *Inspector) read(filePath string) (Info, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return Info{}, fmt.Errorf("failed to decode image header: %w", err)
	}
	info := Info{
		Path:   filePath,
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
	}

	if _, err := file.Seek(0, 0); err != nil {
		return info, nil
	}
	x, err := exif.Decode(file)
	if err != nil {
		logger.WithFile(i.logger, filePath).Debugf("No EXIF data: %v", err)
		return info, nil
	}
	i.applyEXIF(&info, x)
	return info, nil
}

func (i *Inspector) applyEXIF(info *Info, x *exif.Exif) {
	if tm, err := x.DateTime(); err == nil {
		info.DateTaken = &tm
	} else if field, err := x.Get(exif.DateTimeOriginal); err == nil {
		if dateStr, err := field.StringVal(); err == nil {
			info.DateTaken = i.parseEXIFDateTime(dateStr)
		}
	}

	var camera []string
	for _, name := range []exif.FieldName{exif.Make, exif.Model} {
		if field, err := x.Get(name); err == nil {
			if v, err := field.StringVal(); err == nil && strings.TrimSpace(v) != "" {
				camera = append(camera, strings.TrimSpace(v))
			}
		}
	}
	info.Camera = strings.Join(camera, " ")

	if field, err := x.Get(exif.Software); err == nil {
		if v, err := field.StringVal(); err == nil {
			info.Software = strings.TrimSpace(v)
		}
	}
	if field, err := x.Get(exif.Orientation); err == nil {
		if v, err := field.Int(0); err == nil {
			info.Orientation = v
		}
	}
}

// parseEXIFDateTime parses an EXIF date time string. Returns nil if parsing fails.
func (i *Inspector) parseEXIFDateTime(dateStr string) *time.Time {
	if dateStr == "" {
		return nil
	}

	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		"2006-01-02",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return &date
		}
	}

	i.logger.Debugf("Failed to parse date string: %s", dateStr)
	return nil
}

func (i *Inspector) getCacheKey(filePath string, fileInfo os.FileInfo) string {
	return fmt.Sprintf("%s:%d:%d", filePath, fileInfo.Size(), fileInfo.ModTime().UnixNano())
}

func (i *Inspector) incrementCacheHits() {
	i.mutex.Lock()
	i.stats.Hits++
	i.stats.TotalQueries++
	i.mutex.Unlock()
}

func (i *Inspector) incrementCacheMisses() {
	i.mutex.Lock()
	i.stats.Misses++
	i.stats.TotalQueries++
	i.mutex.Unlock()
}
