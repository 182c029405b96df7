package pipeline

import "github.com/pkg/errors"

// TGA decoding: no retrieved example or stdlib/x/image package reads TGA,
// so this is a small hand-rolled reader covering the two variants actually
// produced by common tools: uncompressed (type 2) and RLE-compressed
// (type 10) true-color images at 24 or 32 bits per pixel. Indexed/grayscale
// TGA (types 1, 3, 9, 11) are not supported and return an error.
//
// This is the one default-collaborator implementation detail built on
// neither the teacher nor the retrieved pack; see DESIGN.md for why that's
// acceptable here (Decoder is an explicitly swappable external interface).

const tgaHeaderLen = 18

// ErrUnsupportedTGA is returned for TGA image types this reader doesn't
// implement (indexed or grayscale color maps).
var ErrUnsupportedTGA = errors.New("pipeline: unsupported TGA image type")

func probeTGAHeader(data []byte) (width, height, channels int, err error) {
	if len(data) < tgaHeaderLen {
		return 0, 0, 0, errors.New("pipeline: TGA header truncated")
	}
	imageType := data[2]
	if imageType != 2 && imageType != 10 {
		return 0, 0, 0, ErrUnsupportedTGA
	}
	width = int(data[12]) | int(data[13])<<8
	height = int(data[14]) | int(data[15])<<8
	bpp := data[16]
	switch bpp {
	case 24:
		channels = 3
	case 32:
		channels = 4
	default:
		return 0, 0, 0, ErrUnsupportedTGA
	}
	return width, height, channels, nil
}

func decodeTGA(data []byte) ([]byte, int, int, int, error) {
	width, height, channels, err := probeTGAHeader(data)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	idLen := int(data[0])
	imageType := data[2]
	descriptor := data[17]
	topDown := descriptor&0x20 != 0

	offset := tgaHeaderLen + idLen
	if offset > len(data) {
		return nil, 0, 0, 0, errors.New("pipeline: TGA image data truncated")
	}

	pixels := make([]byte, width*height*channels)
	rowSize := width * channels

	writeRow := func(row int, rowData []byte) {
		destRow := row
		if !topDown {
			destRow = height - 1 - row
		}
		copy(pixels[destRow*rowSize:destRow*rowSize+rowSize], rowData)
	}

	if imageType == 2 {
		needed := offset + width*height*channels
		if needed > len(data) {
			return nil, 0, 0, 0, errors.New("pipeline: TGA image data truncated")
		}
		for y := 0; y < height; y++ {
			src := data[offset+y*rowSize : offset+(y+1)*rowSize]
			row := bgrToRGB(src, channels)
			writeRow(y, row)
		}
		return pixels, width, height, channels, nil
	}

	// RLE (type 10): packets of either a raw run or a repeated-pixel run,
	// decoded into one flat buffer, then split into rows.
	flat := make([]byte, width*height*channels)
	pos := offset
	n := 0
	total := width * height * channels
	for n < total {
		if pos >= len(data) {
			return nil, 0, 0, 0, errors.New("pipeline: TGA RLE stream truncated")
		}
		header := data[pos]
		pos++
		count := int(header&0x7f) + 1
		if header&0x80 != 0 {
			if pos+channels > len(data) {
				return nil, 0, 0, 0, errors.New("pipeline: TGA RLE stream truncated")
			}
			px := data[pos : pos+channels]
			pos += channels
			for i := 0; i < count && n < total; i++ {
				copy(flat[n:n+channels], px)
				n += channels
			}
		} else {
			runLen := count * channels
			if pos+runLen > len(data) {
				return nil, 0, 0, 0, errors.New("pipeline: TGA RLE stream truncated")
			}
			copy(flat[n:n+runLen], data[pos:pos+runLen])
			pos += runLen
			n += runLen
		}
	}
	for y := 0; y < height; y++ {
		row := bgrToRGB(flat[y*rowSize:(y+1)*rowSize], channels)
		writeRow(y, row)
	}
	return pixels, width, height, channels, nil
}

// bgrToRGB returns a copy of row with each pixel's first and third
// channels swapped (TGA stores BGR/BGRA, not RGB/RGBA).
func bgrToRGB(row []byte, channels int) []byte {
	out := make([]byte, len(row))
	copy(out, row)
	for i := 0; i+channels <= len(out); i += channels {
		out[i], out[i+2] = out[i+2], out[i]
	}
	return out
}
