package pipeline

import (
	"io"

	"github.com/dlecorfec/squish/jpeg"
)

// encodeTestJPEG is a thin wrapper so test cases that need a real, decodable
// JPEG file on disk (for the fast-copy size-ratio check, which reads actual
// file bytes) don't have to hand-roll a bitstream.
func encodeTestJPEG(w io.Writer, rgb []byte, width, height int) error {
	return jpeg.Encode(w, rgb, width, height, jpeg.EncodeOptions{Quality: 50})
}
