// Package pipeline orchestrates the per-image work of spec.md §4.7: decide
// whether an input can be fast-copied, otherwise mmap it, read its EXIF
// orientation, decode, orient, optionally resize, encode to a temp file,
// atomically rename into place, and guarantee the output is never larger
// than the input.
//
// Grounded on the original project's src/image_processor.cpp (process,
// load_image, resize, save_image) and src/cli.cpp's run().
package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/dlecorfec/squish/exif"
	"github.com/dlecorfec/squish/jpeg"
	"github.com/dlecorfec/squish/mmap"
	"github.com/dlecorfec/squish/resize"
)

// Fast-copy thresholds (spec.md §4.7 step 2, §9 Open Question 2): below
// these compressed/raw-size ratios, re-encoding is assumed not worth its
// own cost and the original bytes are copied through unchanged. Kept as
// unexported, documented constants rather than Options fields — see
// DESIGN.md's Open Question decision.
const (
	fastCopyJPEGRatio = 0.10
	fastCopyPNGRatio  = 0.50
)

// Memory admission control constants (spec.md §4.7, last paragraph).
const (
	memoryEstimateMultiplier = 100
	maxDecompressedBytes     = 2 << 30 // 2 GiB
	maxPixelCount            = 100_000_000
	maxDimensionPixels       = 65535
)

// codecMu serializes every call into a Decoder or PNGEncoder collaborator.
// Both are assumed non-reentrant (process-global error strings,
// compression-level globals) per spec.md §5(b)/§9, so all workers funnel
// through one mutex rather than one per collaborator instance.
var codecMu sync.Mutex

// Processor runs the per-image pipeline. Its collaborators are pluggable
// per spec.md §1 (decode/PNG-encode are explicitly out of the core's
// scope); the zero value uses the product defaults.
type Processor struct {
	Decoder    Decoder
	PNGEncoder PNGEncoder
	// BatchDCT is passed through to the JPEG encoder when an Options value
	// requests UseGPU; nil means the encoder always uses its own DCT path.
	BatchDCT jpeg.BatchDCT
}

func (p *Processor) decoder() Decoder {
	if p.Decoder != nil {
		return p.Decoder
	}
	return DefaultDecoder{}
}

func (p *Processor) pngEncoder() PNGEncoder {
	if p.PNGEncoder != nil {
		return p.PNGEncoder
	}
	return DefaultPNGEncoder{}
}

// Process runs the full nine-step pipeline of spec.md §4.7 for one input
// file, writing its output under outputDir and returning a fully populated
// Result. Process never panics on a per-image failure; every failure mode
// is captured into the returned Result, per spec.md §7's propagation
// policy.
func (p *Processor) Process(input, outputDir string, opts Options) (result Result) {
	result = newResult(input)
	start := time.Now()
	defer result.finish(start)
	defer func() {
		if result.Success {
			logrus.WithFields(logrus.Fields{
				"input":  result.InputPath,
				"output": result.OutputPath,
				"ratio":  result.CompressionRatio(),
			}).Info("pipeline: image processed")
		} else {
			logrus.WithFields(logrus.Fields{
				"input": result.InputPath,
				"error": result.ErrorMessage,
			}).Warn("pipeline: image failed")
		}
	}()

	if err := opts.Validate(); err != nil {
		result.fail(wrapErr(ErrorKindEncodeFailed, err, "invalid options for %s", input))
		return result
	}

	info, err := os.Stat(input)
	if err != nil {
		result.fail(wrapErr(ErrorKindInputUnreadable, err, "stat %s", input))
		return result
	}
	result.OriginalSize = info.Size()

	ext := strings.ToLower(filepath.Ext(input))
	isJPEG := ext == ".jpg" || ext == ".jpeg"
	isPNG := ext == ".png"

	if (isJPEG || isPNG) && opts.MaxWidth == 0 && opts.MaxHeight == 0 {
		copied, err := p.tryFastCopy(input, outputDir, &result, ext, isJPEG, isPNG)
		if err != nil {
			result.fail(err)
			return result
		}
		if copied {
			result.Success = true
			return result
		}
	}

	estimate := result.OriginalSize * memoryEstimateMultiplier
	if estimate > maxDecompressedBytes {
		result.fail(wrapErr(ErrorKindInsufficientMemory,
			errors.Errorf("estimated decompressed size %d exceeds %d byte cap", estimate, maxDecompressedBytes),
			"input %s", input))
		return result
	}
	if avail, ok := availableMemoryBytes(); ok && float64(estimate)*1.2 > float64(avail) {
		result.fail(wrapErr(ErrorKindInsufficientMemory,
			errors.Errorf("estimated need %d exceeds available memory %d", estimate, avail),
			"input %s", input))
		return result
	}

	pixels, width, height, channels, orientation, err := p.loadImage(input, ext, isJPEG)
	if err != nil {
		result.fail(err)
		return result
	}

	if width <= 0 || height <= 0 || width > maxDimensionPixels || height > maxDimensionPixels || width*height > maxPixelCount {
		result.fail(wrapErr(ErrorKindOversized,
			errors.Errorf("%dx%d exceeds the %d-pixel / %d-dimension cap", width, height, maxPixelCount, maxDimensionPixels),
			"input %s", input))
		return result
	}

	if orientation != exif.Normal {
		pixels, width, height = exif.Apply(pixels, width, height, channels, orientation)
	}

	newW, newH := targetDimensions(width, height, opts)
	if newW != width || newH != height {
		resized, err := resize.General(pixels, width, height, channels, newW, newH)
		if err != nil {
			result.fail(wrapErr(ErrorKindResizeFailed, err, "resize %s to %dx%d", input, newW, newH))
			return result
		}
		pixels, width, height = resized, newW, newH
	}

	outFormat, outName, err := outputNaming(input, ext, opts.Format)
	if err != nil {
		result.fail(wrapErr(ErrorKindWriteFailed, err, "output name for %s", input))
		return result
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		result.fail(wrapErr(ErrorKindWriteFailed, err, "mkdir %s", outputDir))
		return result
	}

	finalPath := filepath.Join(outputDir, outName)
	tmpPath := finalPath + ".tmp"

	if err := p.encode(tmpPath, pixels, width, height, channels, outFormat, opts); err != nil {
		os.Remove(tmpPath)
		result.fail(wrapErr(ErrorKindEncodeFailed, err, "encode %s", input))
		return result
	}

	if err := finalizeRename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		result.fail(wrapErr(ErrorKindFinalizeFailed, err, "finalize %s", finalPath))
		return result
	}

	outInfo, err := os.Stat(finalPath)
	if err != nil {
		result.fail(wrapErr(ErrorKindFinalizeFailed, err, "stat %s", finalPath))
		return result
	}
	result.CompressedSize = outInfo.Size()
	result.OutputPath = finalPath

	if result.CompressedSize >= result.OriginalSize {
		if err := copyFile(input, finalPath); err != nil {
			result.fail(wrapErr(ErrorKindFinalizeFailed, err, "no-regression copy for %s", input))
			return result
		}
		result.CompressedSize = result.OriginalSize
	}

	result.Success = true
	return result
}

// loadImage memory-maps input when possible (falling back to a plain read
// on mmap.ErrNotOpen, per spec.md §4.1), extracts EXIF orientation directly
// from the mapped/read bytes, and decodes through the configured Decoder.
func (p *Processor) loadImage(input, ext string, isJPEG bool) (pixels []byte, width, height, channels, orientation int, err error) {
	var data []byte
	mapped, mmErr := mmap.Open(input)
	if mmErr == nil {
		defer mapped.Close()
		data = mapped.Data()
	} else {
		data, err = os.ReadFile(input)
		if err != nil {
			return nil, 0, 0, 0, exif.Normal, wrapErr(ErrorKindInputUnreadable, err, "read %s", input)
		}
	}

	orientation = exif.Normal
	if isJPEG {
		orientation = exif.ReadOrientationMem(data)
	}

	codecMu.Lock()
	pixels, width, height, channels, decErr := p.decoder().Decode(data, ext)
	codecMu.Unlock()
	if decErr != nil {
		return nil, 0, 0, 0, orientation, wrapErr(ErrorKindDecodeFailed, decErr, "decode %s", input)
	}
	return pixels, width, height, channels, orientation, nil
}

// encode writes pixels to tmpPath in outFormat. For 3-channel JPEG output
// it first tries a writable mapping sized width*height/2+65536 bytes
// (spec.md §4.7 step 7); on overflow or mapping failure it falls back to
// the streaming encoder writing tmpPath directly.
func (p *Processor) encode(tmpPath string, pixels []byte, width, height, channels int, format Format, opts Options) error {
	if format == FormatPNG {
		f, err := os.Create(tmpPath)
		if err != nil {
			return err
		}
		defer f.Close()
		codecMu.Lock()
		err = p.pngEncoder().Encode(f, pixels, width, height, channels)
		codecMu.Unlock()
		return err
	}

	rgb := toRGB3(pixels, width, height, channels)
	jpegOpts := jpeg.EncodeOptions{Quality: opts.Quality}
	if opts.UseGPU {
		jpegOpts.BatchDCT = p.BatchDCT
	}

	reserve := int64(width)*int64(height)/2 + 65536
	if mf, mmErr := mmap.Create(tmpPath, reserve); mmErr == nil {
		n, err := jpeg.EncodeToBuffer(mf.Data(), rgb, width, height, jpegOpts)
		if err == nil {
			mf.Truncate(int64(n))
			return mf.Close()
		}
		mf.Close()
		os.Remove(tmpPath)
	}

	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, rgb, width, height, jpegOpts)
}

// tryFastCopy implements spec.md §4.7 step 2: if the input is already a
// well-compressed JPEG or PNG and no resize was requested, copy it through
// unchanged instead of re-encoding.
func (p *Processor) tryFastCopy(input, outputDir string, result *Result, ext string, isJPEG, isPNG bool) (bool, error) {
	rawSize, ok := probeRawSize(input, ext)
	if !ok || rawSize == 0 {
		return false, nil
	}
	ratio := float64(result.OriginalSize) / float64(rawSize)
	skip := (isJPEG && ratio < fastCopyJPEGRatio) || (isPNG && ratio < fastCopyPNGRatio)
	if !skip {
		return false, nil
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return false, wrapErr(ErrorKindWriteFailed, err, "mkdir %s", outputDir)
	}
	outPath := filepath.Join(outputDir, filepath.Base(input))
	if err := copyFile(input, outPath); err != nil {
		return false, wrapErr(ErrorKindWriteFailed, err, "fast-copy %s", input)
	}
	result.OutputPath = outPath
	result.CompressedSize = result.OriginalSize
	return true, nil
}

// probeRawSize reads just enough of input to report its decoded pixel
// count x channel count, without decoding pixel data, for the fast-copy
// ratio check.
func probeRawSize(input, ext string) (int64, bool) {
	f, err := os.Open(input)
	if err != nil {
		return 0, false
	}
	defer f.Close()
	buf := make([]byte, 65536)
	n, _ := io.ReadFull(f, buf)
	if n == 0 {
		return 0, false
	}
	w, h, channels, ok := probeDimensions(buf[:n], ext)
	if !ok {
		return 0, false
	}
	return int64(w) * int64(h) * int64(channels), true
}

// targetDimensions applies spec.md §4.7 step 5's resize decision.
func targetDimensions(width, height int, opts Options) (int, int) {
	if opts.MaxWidth == 0 && opts.MaxHeight == 0 {
		return width, height
	}

	newW, newH := width, height
	if opts.PreserveAspect {
		ratio := float64(width) / float64(height)
		if opts.MaxWidth > 0 && newW > opts.MaxWidth {
			newW = opts.MaxWidth
			newH = int(float64(newW) / ratio)
		}
		if opts.MaxHeight > 0 && newH > opts.MaxHeight {
			newH = opts.MaxHeight
			newW = int(float64(newH) * ratio)
		}
	} else {
		if opts.MaxWidth > 0 {
			newW = opts.MaxWidth
		}
		if opts.MaxHeight > 0 {
			newH = opts.MaxHeight
		}
	}
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	return newW, newH
}

// outputNaming implements spec.md §4.7 step 6: PNG stays PNG, everything
// else becomes JPEG with a .jpg extension; the chosen name is sanitized to
// its basename with any parent-path component rejected.
func outputNaming(input, ext string, format Format) (Format, string, error) {
	name := filepath.Base(input)

	var outFormat Format
	switch format {
	case FormatPNG:
		outFormat = FormatPNG
	case FormatJPEG:
		outFormat = FormatJPEG
		name = replaceExt(name, ".jpg")
	default:
		if ext == ".png" {
			outFormat = FormatPNG
		} else {
			outFormat = FormatJPEG
			name = replaceExt(name, ".jpg")
		}
	}

	sanitized, err := sanitizeFilename(name)
	if err != nil {
		return 0, "", err
	}
	return outFormat, sanitized, nil
}

func replaceExt(name, newExt string) string {
	return strings.TrimSuffix(name, filepath.Ext(name)) + newExt
}

// sanitizeFilename rejects any filename that carries a path separator or a
// ".." component instead of silently basing it away — defense against a
// crafted input filename escaping outputDir.
func sanitizeFilename(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == "" || base == string(filepath.Separator) {
		return "", errors.Errorf("invalid output filename %q", name)
	}
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') || strings.Contains(name, "..") {
		return "", errors.Errorf("invalid output filename %q", name)
	}
	return base, nil
}

// finalizeRename implements spec.md §4.7 step 8: atomic rename, falling
// back to copy-then-delete when rename fails (e.g. tmpPath and finalPath
// are on different mounts). The fallback is not atomic; a brief window
// exists where both temp and final paths are present, per spec.md §9.
func finalizeRename(tmpPath, finalPath string) error {
	if err := os.Rename(tmpPath, finalPath); err == nil {
		return nil
	}
	if err := copyFile(tmpPath, finalPath); err != nil {
		return err
	}
	return os.Remove(tmpPath)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
