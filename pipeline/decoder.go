package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
)

// Decoder turns an encoded image buffer into a raw pixel buffer. It is an
// external collaborator per spec.md §1: the engine consumes
// {width, height, channels, pixels}, not the decode logic itself.
// Implementations are assumed non-reentrant (spec.md §5(b), §9); Process
// serializes all calls through codecMu.
type Decoder interface {
	// Decode decodes data (the full file content) into a row-major pixel
	// buffer. ext is the lowercased file extension including the leading
	// dot, used to select a format-specific path (TGA has no stdlib/x/image
	// decoder and is handled directly; everything else goes through
	// image.Decode's registry).
	Decode(data []byte, ext string) (pixels []byte, width, height, channels int, err error)
}

// DefaultDecoder is the product's default Decoder, covering every
// extension pipeline.SupportedExtensions lists: JPEG/PNG/GIF/BMP through
// the standard library plus golang.org/x/image/bmp, and TGA through a
// small hand-rolled reader (tga.go) since no retrieved example or stdlib
// package decodes it.
type DefaultDecoder struct{}

func (DefaultDecoder) Decode(data []byte, ext string) ([]byte, int, int, int, error) {
	if ext == ".tga" {
		return decodeTGA(data)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, 0, 0, err
	}
	pixels, w, h, channels := imageToPixels(img)
	return pixels, w, h, channels, nil
}

// imageToPixels normalizes any decoded image.Image into a row-major pixel
// buffer, picking the narrowest channel count the source format actually
// carries: 1 for grayscale, 3 for opaque color, 4 for color with an alpha
// channel.
func imageToPixels(img image.Image) ([]byte, int, int, int) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		pixels := make([]byte, width*height)
		for y := 0; y < height; y++ {
			srcOff := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(pixels[y*width:(y+1)*width], src.Pix[srcOff:srcOff+width])
		}
		return pixels, width, height, 1

	case *image.YCbCr:
		pixels := make([]byte, width*height*3)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				yi := src.YOffset(b.Min.X+x, b.Min.Y+y)
				ci := src.COffset(b.Min.X+x, b.Min.Y+y)
				r, g, bl := color.YCbCrToRGB(src.Y[yi], src.Cb[ci], src.Cr[ci])
				o := (y*width + x) * 3
				pixels[o], pixels[o+1], pixels[o+2] = r, g, bl
			}
		}
		return pixels, width, height, 3

	case *image.NRGBA:
		return nrgbaToPixels(src, b, width, height)

	default:
		nrgba := image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(nrgba, nrgba.Bounds(), img, b.Min, draw.Src)
		return nrgbaToPixels(nrgba, nrgba.Bounds(), width, height)
	}
}

func nrgbaToPixels(src *image.NRGBA, b image.Rectangle, width, height int) ([]byte, int, int, int) {
	if nrgbaOpaque(src, b) {
		pixels := make([]byte, width*height*3)
		for y := 0; y < height; y++ {
			rowOff := src.PixOffset(b.Min.X, b.Min.Y+y)
			for x := 0; x < width; x++ {
				i := rowOff + x*4
				o := (y*width + x) * 3
				pixels[o], pixels[o+1], pixels[o+2] = src.Pix[i], src.Pix[i+1], src.Pix[i+2]
			}
		}
		return pixels, width, height, 3
	}

	pixels := make([]byte, width*height*4)
	for y := 0; y < height; y++ {
		rowOff := src.PixOffset(b.Min.X, b.Min.Y+y)
		copy(pixels[y*width*4:(y+1)*width*4], src.Pix[rowOff:rowOff+width*4])
	}
	return pixels, width, height, 4
}

func nrgbaOpaque(src *image.NRGBA, b image.Rectangle) bool {
	for y := b.Min.Y; y < b.Max.Y; y++ {
		rowOff := src.PixOffset(b.Min.X, y)
		for x := 0; x < b.Dx(); x++ {
			if src.Pix[rowOff+x*4+3] != 0xff {
				return false
			}
		}
	}
	return true
}

// probeDimensions reads just enough of an encoded buffer to report its
// pixel dimensions and channel count, without decoding pixel data — used by
// the fast-copy check (spec.md §4.7 step 2), which needs the raw size
// ratio, not the pixels.
func probeDimensions(data []byte, ext string) (width, height, channels int, ok bool) {
	if ext == ".tga" {
		w, h, ch, err := probeTGAHeader(data)
		if err != nil {
			return 0, 0, 0, false
		}
		return w, h, ch, true
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, 0, false
	}
	channels = 3
	if format == "png" {
		channels = pngChannels(data)
	}
	return cfg.Width, cfg.Height, channels, true
}

// pngChannels reads the IHDR color-type byte straight out of the PNG
// header. DecodeConfig's ColorModel can't be matched on (the stdlib models
// are ModelFunc values, not distinct types), but the color type is a fixed
// byte at a fixed offset: 8-byte signature, 4-byte chunk length, "IHDR",
// then 13 bytes of data with color type at offset 9.
func pngChannels(data []byte) int {
	const colorTypeOff = 8 + 4 + 4 + 9
	if len(data) <= colorTypeOff {
		return 3
	}
	switch data[colorTypeOff] {
	case 0: // grayscale
		return 1
	case 4: // grayscale + alpha
		return 2
	case 6: // truecolor + alpha
		return 4
	default: // 2 truecolor, 3 palette
		return 3
	}
}
