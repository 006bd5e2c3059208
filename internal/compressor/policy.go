package compressor

import (
	"strconv"
	"strings"
)

// Format is a lowercase image extension used as the policy key.
type Format string

const (
	FormatJPG  Format = "jpg"
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatWebP Format = "webp"
	FormatGIF  Format = "gif"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"
)

// Native quality ranges of the transcoder's encoders.
const (
	qscaleMin      = 2
	qscaleMax      = 31
	pngLevelMin    = 0
	pngLevelMax    = 9
	webpQualityMin = 0
	webpQualityMax = 100
)

// policy maps user-facing quality onto one format's encoder flags.
type policy struct {
	codec     func(quality int, lossless bool) []string
	container []string
}

// image2 with -update writes exactly one image to a non-pattern filename.
func singleImage(codec string) []string {
	return []string{"-f", "image2", "-update", "1", "-c:v", codec}
}

var policies = map[Format]policy{
	FormatJPG:  {codec: jpegCodec, container: singleImage("mjpeg")},
	FormatJPEG: {codec: jpegCodec, container: singleImage("mjpeg")},
	FormatPNG:  {codec: pngCodec, container: singleImage("png")},
	FormatWebP: {codec: webpCodec, container: singleImage("libwebp")},
	FormatGIF:  {codec: qscaleCodec, container: []string{"-f", "gif"}},
	FormatBMP:  {codec: qscaleCodec, container: singleImage("bmp")},
	FormatTIFF: {codec: tiffCodec, container: singleImage("tiff")},
}

// fallback applies to formats missing from the table.
var fallback = policy{
	codec:     qscaleCodec,
	container: []string{"-f", "image2", "-update", "1"},
}

// ParseFormat returns the Format for an extension with or without the
// leading dot. The second value is false when the format is not supported.
func ParseFormat(ext string) (Format, bool) {
	f := Format(strings.ToLower(strings.TrimPrefix(ext, ".")))
	_, ok := policies[f]
	return f, ok
}

// SupportedFormats returns every format with a dedicated policy.
func SupportedFormats() []Format {
	return []Format{FormatJPG, FormatJPEG, FormatPNG, FormatWebP, FormatGIF, FormatBMP, FormatTIFF}
}

func lookup(f Format) policy {
	if p, ok := policies[f]; ok {
		return p
	}
	return fallback
}

// CodecArgs returns the quality/compression arguments for f. Quality is on
// the 1-100 "higher is better" scale; out-of-range values are clamped onto
// the encoder's native range instead of failing.
func CodecArgs(f Format, quality int, lossless bool) []string {
	return lookup(f).codec(quality, lossless)
}

// ContainerArgs returns the output container and codec selectors for f.
func ContainerArgs(f Format) []string {
	c := lookup(f).container
	return append([]string(nil), c...)
}

func jpegCodec(quality int, lossless bool) []string {
	if lossless {
		return []string{"-q:v", strconv.Itoa(qscaleMin)}
	}
	return []string{"-q:v", strconv.Itoa(clamp((100-quality)/3, qscaleMin, qscaleMax))}
}

func pngCodec(quality int, lossless bool) []string {
	if lossless {
		return []string{"-compression_level", strconv.Itoa(pngLevelMin)}
	}
	return []string{"-compression_level", strconv.Itoa(clamp((100-quality)/11, pngLevelMin, pngLevelMax))}
}

func webpCodec(quality int, lossless bool) []string {
	if lossless {
		return []string{"-lossless", "1"}
	}
	return []string{"-quality", strconv.Itoa(clamp(quality, webpQualityMin, webpQualityMax))}
}

func qscaleCodec(quality int, _ bool) []string {
	return []string{"-q:v", strconv.Itoa(qscale(quality))}
}

// ffmpeg's tiff encoder has no lossy compression method, so the lossy path
// pairs qscale with deflate and the lossless path pins LZW.
func tiffCodec(quality int, lossless bool) []string {
	if lossless {
		return []string{"-compression_algo", "lzw"}
	}
	return []string{"-q:v", strconv.Itoa(qscale(quality)), "-compression_algo", "deflate"}
}

func qscale(quality int) int {
	return clamp((100-quality)/5, qscaleMin, qscaleMax)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
