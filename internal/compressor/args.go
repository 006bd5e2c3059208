package compressor

import (
	"fmt"
)

// ScaleFilter returns the -vf expression for the size constraints in opts,
// or "" when neither dimension is bounded. Bounds are ceilings: an image
// already smaller than the bound keeps its size on that axis. With the
// aspect ratio released and both bounds set, the exact size is forced.
func ScaleFilter(opts Options) string {
	w, h := opts.MaxWidth, opts.MaxHeight
	switch {
	case w > 0 && h > 0 && !opts.KeepAspect():
		return fmt.Sprintf("scale=%d:%d", w, h)
	case w > 0 && h > 0:
		return fmt.Sprintf("scale='min(%d,iw)':'min(%d,ih)':force_original_aspect_ratio=decrease", w, h)
	case w > 0:
		return fmt.Sprintf("scale='min(%d,iw)':-1", w)
	case h > 0:
		return fmt.Sprintf("scale=-1:'min(%d,ih)'", h)
	default:
		return ""
	}
}

// BuildArgs constructs the transcoder argument slice, without the binary
// name, for compressing input into output as format f:
//
//	-hide_banner -nostdin -loglevel L -y -i <input> [-vf <scale>] <codec> <container> <output>
func BuildArgs(input, output string, f Format, opts Options, logLevel string) []string {
	if logLevel == "" {
		logLevel = "error"
	}
	args := make([]string, 0, 24)

	// --- Preamble ---
	args = append(args, "-hide_banner", "-nostdin", "-loglevel", logLevel, "-y")

	// --- Input ---
	args = append(args, "-i", input)

	// --- Scale filter ---
	if vf := ScaleFilter(opts); vf != "" {
		args = append(args, "-vf", vf)
	}

	// --- Codec and container ---
	args = append(args, CodecArgs(f, opts.Quality, opts.Lossless)...)
	args = append(args, ContainerArgs(f)...)

	// --- Output ---
	return append(args, output)
}
