package pipeline

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDecoder returns a fixed pixel buffer regardless of input, so tests can
// drive Process without real image codecs.
type fakeDecoder struct {
	width, height, channels int
	pixels                  []byte
	err                     error
}

func (f fakeDecoder) Decode(data []byte, ext string) ([]byte, int, int, int, error) {
	if f.err != nil {
		return nil, 0, 0, 0, f.err
	}
	return append([]byte(nil), f.pixels...), f.width, f.height, f.channels, nil
}

type fakePNGEncoder struct{ payload []byte }

func (f fakePNGEncoder) Encode(w io.Writer, pixels []byte, width, height, channels int) error {
	_, err := w.Write(f.payload)
	return err
}

func writeTempFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestTargetDimensionsNoConstraint(t *testing.T) {
	w, h := targetDimensions(800, 600, Options{})
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestTargetDimensionsPreserveAspectBindsWidth(t *testing.T) {
	w, h := targetDimensions(4000, 3000, Options{MaxWidth: 1920, PreserveAspect: true})
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1440, h)
}

func TestTargetDimensionsPreserveAspectBindsHeight(t *testing.T) {
	w, h := targetDimensions(3000, 4000, Options{MaxHeight: 1920, PreserveAspect: true})
	assert.Equal(t, 1440, w)
	assert.Equal(t, 1920, h)
}

func TestTargetDimensionsNoUpscale(t *testing.T) {
	// A constraint larger than the source must not upscale.
	w, h := targetDimensions(100, 100, Options{MaxWidth: 1000, PreserveAspect: true})
	assert.Equal(t, 100, w)
	assert.Equal(t, 100, h)
}

func TestSanitizeFilenameRejectsTraversal(t *testing.T) {
	for _, bad := range []string{"../evil.jpg", "..", ".", "", "a/b.jpg"} {
		_, err := sanitizeFilename(bad)
		assert.Errorf(t, err, "expected %q to be rejected", bad)
	}
}

func TestSanitizeFilenameAcceptsPlainName(t *testing.T) {
	got, err := sanitizeFilename("photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", got)
}

func TestOutputNamingAutoPNGStaysPNG(t *testing.T) {
	format, name, err := outputNaming("/in/graphic.png", ".png", FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, FormatPNG, format)
	assert.Equal(t, "graphic.png", name)
}

func TestOutputNamingAutoJPEGInputBecomesJPEG(t *testing.T) {
	format, name, err := outputNaming("/in/photo.bmp", ".bmp", FormatAuto)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)
	assert.Equal(t, "photo.jpg", name)
}

func TestOutputNamingForcedFormatOverridesExtension(t *testing.T) {
	format, name, err := outputNaming("/in/photo.png", ".png", FormatJPEG)
	require.NoError(t, err)
	assert.Equal(t, FormatJPEG, format)
	assert.Equal(t, "photo.jpg", name)
}

func TestProcessFastCopiesAlreadyCompressedJPEG(t *testing.T) {
	dir := t.TempDir()
	// A 100x100 (10000px * 3 channels = 30000 raw bytes) "JPEG" whose file
	// size is far below the fast-copy ratio threshold. The fast-copy check
	// only probes the header via image.DecodeConfig, so this needs to be a
	// real, tiny JPEG; build one with the package's own encoder instead of
	// hand-rolling bytes.
	rgb := make([]byte, 100*100*3)
	var buf bytes.Buffer
	require.NoError(t, encodeTestJPEG(&buf, rgb, 100, 100))
	input := writeTempFile(t, dir, "tiny.jpg", buf.Bytes())

	outDir := filepath.Join(dir, "out")
	p := &Processor{}
	result := p.Process(input, outDir, DefaultOptions())

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, result.OriginalSize, result.CompressedSize)
	got, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, buf.Bytes(), got)
}

func TestProcessFastCopySkippedWhenResizeRequested(t *testing.T) {
	dir := t.TempDir()
	rgb := make([]byte, 100*100*3)
	var buf bytes.Buffer
	require.NoError(t, encodeTestJPEG(&buf, rgb, 100, 100))
	input := writeTempFile(t, dir, "tiny.jpg", buf.Bytes())

	outDir := filepath.Join(dir, "out")
	opts := DefaultOptions()
	opts.MaxWidth = 50

	p := &Processor{Decoder: fakeDecoder{width: 100, height: 100, channels: 3, pixels: rgb}}
	result := p.Process(input, outDir, opts)

	require.True(t, result.Success, result.ErrorMessage)
	// A real re-encode happened, so the fast-copy's exact-size-match
	// behavior must not have fired; output path still inside outDir.
	assert.Equal(t, outDir, filepath.Dir(result.OutputPath))
}

func TestProcessNoRegressionFallsBackToOriginal(t *testing.T) {
	dir := t.TempDir()
	// Decoder produces pixels whose "encoded" form (via a PNG encoder that
	// always writes something bigger than the input) would regress size.
	input := writeTempFile(t, dir, "in.png", []byte{1, 2, 3}) // 3-byte "original"
	outDir := filepath.Join(dir, "out")

	p := &Processor{
		Decoder:    fakeDecoder{width: 2, height: 2, channels: 3, pixels: make([]byte, 2*2*3)},
		PNGEncoder: fakePNGEncoder{payload: make([]byte, 100)}, // much bigger than input
	}
	result := p.Process(input, outDir, DefaultOptions())

	require.True(t, result.Success, result.ErrorMessage)
	assert.Equal(t, int64(3), result.CompressedSize)
	got, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

type failingPNGEncoder struct{}

func (failingPNGEncoder) Encode(w io.Writer, pixels []byte, width, height, channels int) error {
	// Write something first so the temp file exists and has content before
	// the failure, exercising the partial-output cleanup path.
	_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	return errEncodeBoom
}

var errEncodeBoom = errTest("encoder exploded")

func TestProcessEncoderFailureLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeTempFile(t, dir, "in.png", []byte{1, 2, 3})
	outDir := filepath.Join(dir, "out")

	p := &Processor{
		Decoder:    fakeDecoder{width: 2, height: 2, channels: 3, pixels: make([]byte, 2*2*3)},
		PNGEncoder: failingPNGEncoder{},
	}
	result := p.Process(input, outDir, DefaultOptions())

	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "EncodeFailed")

	finalPath := filepath.Join(outDir, "in.png")
	_, err := os.Stat(finalPath)
	assert.True(t, os.IsNotExist(err), "final output must not exist after an encode failure")
	_, err = os.Stat(finalPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must be removed after an encode failure")
}

func TestProcessInputUnreadable(t *testing.T) {
	p := &Processor{}
	result := p.Process(filepath.Join(t.TempDir(), "missing.png"), t.TempDir(), DefaultOptions())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "InputUnreadable")
}

func TestProcessDecodeFailurePropagates(t *testing.T) {
	dir := t.TempDir()
	input := writeTempFile(t, dir, "bad.png", []byte{0, 1, 2, 3})
	p := &Processor{Decoder: fakeDecoder{err: errDecodeBoom}}
	result := p.Process(input, filepath.Join(dir, "out"), DefaultOptions())
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "DecodeFailed")
}

var errDecodeBoom = errTest("boom")

type errTest string

func (e errTest) Error() string { return string(e) }
