// Package exif implements the one thing the pipeline needs from EXIF: the
// orientation tag, read without allocating and without trusting the buffer
// past its declared length, plus the eight orientation transforms applied
// to a decoded pixel buffer.
//
// Ported from the original project's lib/exif_orient.hpp
// (read_jpeg_orientation_mem / apply_orientation); deliberately not a
// general EXIF/IFD parser — see DESIGN.md for why no retrieved EXIF library
// is used here.
package exif

// Orientation values as defined by the EXIF/TIFF spec's tag 0x0112.
const (
	Normal      = 1
	FlipH       = 2
	Rotate180   = 3
	FlipV       = 4
	Transpose   = 5 // flip-h + rotate 270
	Rotate90CW  = 6
	Transverse  = 7 // flip-h + rotate 90
	Rotate270CW = 8
)

const (
	exifHeaderMinLen = 12
	maxSearchLen     = 65536
	app1Exif         = 0xe1
	markerSOS        = 0xda
	markerEOI        = 0xd9
	orientationTag   = 0x0112
)

// ReadOrientationMem scans buf (typically the first 64 KiB of a JPEG file)
// for an APP1/EXIF segment and returns the value of its orientation tag, in
// [1, 8]. It returns Normal (1) on any parse failure, truncation, or
// absence of EXIF — it never panics, never reads past len(buf), and never
// allocates.
func ReadOrientationMem(buf []byte) int {
	if len(buf) < exifHeaderMinLen {
		return Normal
	}
	if buf[0] != 0xff || buf[1] != 0xd8 {
		return Normal
	}

	limit := len(buf)
	if limit > maxSearchLen {
		limit = maxSearchLen
	}

	pos := 2
	for pos+4 < limit {
		if buf[pos] != 0xff {
			pos++
			continue
		}
		marker := buf[pos+1]

		if marker == 0xff {
			pos++
			continue
		}
		if marker == markerSOS || marker == markerEOI {
			break
		}
		// Standalone markers (RST0-RST7, TEM) carry no length field.
		if (marker >= 0xd0 && marker <= 0xd7) || marker == 0x01 {
			pos += 2
			continue
		}

		segLen := int(buf[pos+2])<<8 | int(buf[pos+3])

		if marker == app1Exif && pos+10 < limit {
			if hasExifHeader(buf, pos+4) {
				if o := readOrientationFromTIFF(buf, pos+10, limit); o != 0 {
					return o
				}
			}
		}

		pos += 2 + segLen
	}
	return Normal
}

func hasExifHeader(buf []byte, off int) bool {
	if off+6 > len(buf) {
		return false
	}
	return buf[off] == 'E' && buf[off+1] == 'x' && buf[off+2] == 'i' &&
		buf[off+3] == 'f' && buf[off+4] == 0 && buf[off+5] == 0
}

// readOrientationFromTIFF walks the TIFF header starting at tiffStart and
// returns the orientation tag's value. It returns Normal when the TIFF
// header or the IFD0 offset lies outside the buffer, or the tag's value is
// outside [1, 8]; it returns 0 only when IFD0 was read and holds no
// orientation tag (distinct from Normal so the caller can keep scanning
// other APP1 segments — though in practice there is only ever one EXIF APP1).
func readOrientationFromTIFF(buf []byte, tiffStart, limit int) int {
	if tiffStart+8 > limit {
		return Normal
	}
	bigEndian := buf[tiffStart] == 'M'

	read16 := func(off int) int {
		p := tiffStart + off
		if p+2 > limit {
			return 0
		}
		if bigEndian {
			return int(buf[p])<<8 | int(buf[p+1])
		}
		return int(buf[p]) | int(buf[p+1])<<8
	}
	read32 := func(off int) int {
		p := tiffStart + off
		if p+4 > limit {
			return 0
		}
		if bigEndian {
			return int(buf[p])<<24 | int(buf[p+1])<<16 | int(buf[p+2])<<8 | int(buf[p+3])
		}
		return int(buf[p]) | int(buf[p+1])<<8 | int(buf[p+2])<<16 | int(buf[p+3])<<24
	}

	ifdOffset := read32(4)
	if ifdOffset == 0 || tiffStart+ifdOffset+2 > limit {
		return Normal
	}

	entryCount := read16(ifdOffset)
	for i := 0; i < entryCount; i++ {
		entryOffset := ifdOffset + 2 + i*12
		if tiffStart+entryOffset+12 > limit {
			break
		}
		tag := read16(entryOffset)
		if tag == orientationTag {
			o := read16(entryOffset + 8)
			if o >= 1 && o <= 8 {
				return o
			}
			return Normal
		}
	}
	return 0
}

// Apply applies the inverse of orientation o to a row-major pixel buffer of
// the given width, height and channel count (1..4), returning the
// transformed buffer and its (possibly swapped) dimensions. Orientations
// 5-8 swap width and height. Orientation 1 (or anything outside [1,8]) is a
// no-op and returns pixels unchanged. Pixel count is always preserved.
func Apply(pixels []byte, width, height, channels, o int) ([]byte, int, int) {
	if o <= 1 || o > 8 {
		return pixels, width, height
	}

	rowSize := width * channels

	switch o {
	case FlipH:
		for y := 0; y < height; y++ {
			rowOff := y * rowSize
			for x := 0; x < width/2; x++ {
				x2 := width - 1 - x
				swapPixels(pixels, rowOff+x*channels, rowOff+x2*channels, channels)
			}
		}
		return pixels, width, height

	case Rotate180:
		n := len(pixels)
		for i := 0; i < n/2; i += channels {
			j := n - channels - i
			swapPixels(pixels, i, j, channels)
		}
		return pixels, width, height

	case FlipV:
		scratch := make([]byte, rowSize)
		for y := 0; y < height/2; y++ {
			y2 := height - 1 - y
			row1 := pixels[y*rowSize : y*rowSize+rowSize]
			row2 := pixels[y2*rowSize : y2*rowSize+rowSize]
			copy(scratch, row1)
			copy(row1, row2)
			copy(row2, scratch)
		}
		return pixels, width, height
	}

	// Transpose-family cases (5,6,7,8) need a full scratch buffer since
	// every pixel moves to a position that depends on both coordinates.
	out := make([]byte, len(pixels))
	newWidth := height

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			var nx, ny int
			switch o {
			case Transpose:
				nx, ny = y, x
			case Rotate90CW:
				nx, ny = height-1-y, x
			case Transverse:
				nx, ny = height-1-y, width-1-x
			case Rotate270CW:
				nx, ny = y, width-1-x
			}
			srcOff := (y*width + x) * channels
			dstOff := (ny*newWidth + nx) * channels
			copy(out[dstOff:dstOff+channels], pixels[srcOff:srcOff+channels])
		}
	}
	return out, height, width
}

func swapPixels(pixels []byte, i, j, channels int) {
	for c := 0; c < channels; c++ {
		pixels[i+c], pixels[j+c] = pixels[j+c], pixels[i+c]
	}
}
