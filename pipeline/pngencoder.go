package pipeline

import (
	"image"
	"image/png"
	"io"

	"github.com/pkg/errors"
)

// PNGEncoder writes a pixel buffer out as PNG. It is an external
// collaborator per spec.md §1 (PNG encoding is out of scope for the core
// engine); like Decoder, it is assumed non-reentrant and calls to it are
// serialized through codecMu.
type PNGEncoder interface {
	Encode(w io.Writer, pixels []byte, width, height, channels int) error
}

// DefaultPNGEncoder wraps the standard library's image/png encoder, the
// one PNG encoder present anywhere in the retrieved pack's dependency
// surface (no fpng-equivalent was retrieved).
type DefaultPNGEncoder struct{}

func (DefaultPNGEncoder) Encode(w io.Writer, pixels []byte, width, height, channels int) error {
	img, err := pixelsToImage(pixels, width, height, channels)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func pixelsToImage(pixels []byte, width, height, channels int) (image.Image, error) {
	switch channels {
	case 1:
		img := image.NewGray(image.Rect(0, 0, width, height))
		copy(img.Pix, pixels)
		return img, nil
	case 2:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			g, a := pixels[i*2], pixels[i*2+1]
			img.Pix[i*4], img.Pix[i*4+1], img.Pix[i*4+2], img.Pix[i*4+3] = g, g, g, a
		}
		return img, nil
	case 3:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		for i := 0; i < width*height; i++ {
			img.Pix[i*4] = pixels[i*3]
			img.Pix[i*4+1] = pixels[i*3+1]
			img.Pix[i*4+2] = pixels[i*3+2]
			img.Pix[i*4+3] = 0xff
		}
		return img, nil
	case 4:
		img := image.NewNRGBA(image.Rect(0, 0, width, height))
		copy(img.Pix, pixels)
		return img, nil
	default:
		return nil, errors.Errorf("pipeline: cannot encode PNG with %d channels", channels)
	}
}
