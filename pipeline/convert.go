package pipeline

// toRGB3 normalizes an arbitrary-channel pixel buffer into 3-channel RGB,
// the only layout jpeg_enc accepts. Grayscale is replicated across
// channels; alpha (present in 2- and 4-channel buffers) is dropped — this
// encoder has no use for transparency, matching the original's own
// channels==3 gate in save_image()'s JPEG branch.
func toRGB3(pixels []byte, width, height, channels int) []byte {
	if channels == 3 {
		return pixels
	}
	out := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		var r, g, b byte
		switch channels {
		case 1:
			r = pixels[i]
			g, b = r, r
		case 2:
			r = pixels[i*2]
			g, b = r, r
		case 4:
			r, g, b = pixels[i*4], pixels[i*4+1], pixels[i*4+2]
		}
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out
}
