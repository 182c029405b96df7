package jpeg

import (
	"bytes"
	"image"
	"image/jpeg"
	"math"
	"testing"
)

func solidRGB(width, height int, r, g, b byte) []byte {
	out := make([]byte, width*height*3)
	for i := 0; i < width*height; i++ {
		out[i*3], out[i*3+1], out[i*3+2] = r, g, b
	}
	return out
}

func TestEncodeProducesDecodableJPEG(t *testing.T) {
	const w, h = 33, 17 // deliberately not a multiple of 16
	rgb := solidRGB(w, h, 200, 40, 90)

	var buf bytes.Buffer
	if err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: 85}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != w || b.Dy() != h {
		t.Fatalf("dimensions: got %dx%d, want %dx%d", b.Dx(), b.Dy(), w, h)
	}

	ycbcr, ok := img.(*image.YCbCr)
	if !ok {
		t.Fatalf("expected *image.YCbCr, got %T", img)
	}
	yi := ycbcr.YOffset(b.Min.X+w/2, b.Min.Y+h/2)
	if v := ycbcr.Y[yi]; v < 60 || v > 110 {
		t.Errorf("center luma out of range for a dark-red fill: got %d", v)
	}
}

func TestEncodeDecodableAcrossQualities(t *testing.T) {
	const w, h = 120, 90
	rgb := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			rgb[o] = byte(x * 255 / w)
			rgb[o+1] = byte(y * 255 / h)
			rgb[o+2] = byte((x + y) * 255 / (w + h))
		}
	}

	for _, q := range []int{1, 40, 80, 100} {
		var buf bytes.Buffer
		if err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: q}); err != nil {
			t.Fatalf("quality %d: Encode: %v", q, err)
		}
		img, err := jpeg.Decode(&buf)
		if err != nil {
			t.Fatalf("quality %d: decode output: %v", q, err)
		}
		if b := img.Bounds(); b.Dx() != w || b.Dy() != h {
			t.Fatalf("quality %d: dimensions %dx%d, want %dx%d", q, b.Dx(), b.Dy(), w, h)
		}
	}
}

func TestEncodePSNRFloorAtQuality80(t *testing.T) {
	if testing.Short() {
		t.Skip("1000x1000 encode in -short mode")
	}
	const w, h = 1000, 1000
	rgb := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			// Smooth low-frequency content standing in for a natural
			// photograph: broad gradients with gentle sinusoidal variation.
			rgb[o] = byte(128 + 100*math.Sin(float64(x)/97)*math.Cos(float64(y)/83))
			rgb[o+1] = byte(x * 255 / w)
			rgb[o+2] = byte(128 + 80*math.Sin(float64(x+y)/131))
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: 80}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	img, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}

	var sqErr float64
	b := img.Bounds()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			o := (y*w + x) * 3
			dr := float64(r>>8) - float64(rgb[o])
			dg := float64(g>>8) - float64(rgb[o+1])
			db := float64(bl>>8) - float64(rgb[o+2])
			sqErr += dr*dr + dg*dg + db*db
		}
	}
	mse := sqErr / float64(w*h*3)
	psnr := 10 * math.Log10(255*255/mse)
	if psnr < 32 {
		t.Fatalf("PSNR at quality 80 = %.2f dB, want >= 32 dB", psnr)
	}
}

func TestEncodeSolidRedIsSmallAndRedDominant(t *testing.T) {
	const w, h = 100, 100
	rgb := solidRGB(w, h, 255, 0, 0)

	var buf bytes.Buffer
	if err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: 80}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() > 1500 {
		t.Fatalf("solid red at quality 80 encoded to %d bytes, want <= 1500", buf.Len())
	}

	img, err := jpeg.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	var sumR, sumG, sumB uint64
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			sumR += uint64(r >> 8)
			sumG += uint64(g >> 8)
			sumB += uint64(bl >> 8)
		}
	}
	n := uint64(w * h)
	if meanR := sumR / n; meanR <= 240 {
		t.Errorf("mean R = %d, want > 240", meanR)
	}
	if meanG := sumG / n; meanG >= 15 {
		t.Errorf("mean G = %d, want < 15", meanG)
	}
	if meanB := sumB / n; meanB >= 15 {
		t.Errorf("mean B = %d, want < 15", meanB)
	}
}

// TestEntropySegmentByteStuffing scans the entropy-coded data of an encode
// over noisy input: every 0xFF inside the scan must be followed by a 0x00
// stuffing byte. Only the final EOI marker may pair 0xFF with anything
// else.
func TestEntropySegmentByteStuffing(t *testing.T) {
	const w, h = 160, 160
	rgb := make([]byte, w*h*3)
	seed := uint32(2463534242)
	for i := range rgb {
		// xorshift32: deterministic noise with plenty of high-frequency
		// content, which maximizes large coefficients and therefore 0xFF
		// bytes in the entropy stream.
		seed ^= seed << 13
		seed ^= seed >> 17
		seed ^= seed << 5
		rgb[i] = byte(seed)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: 100}); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	out := buf.Bytes()

	sos := bytes.Index(out, []byte{0xff, 0xda})
	if sos < 0 {
		t.Fatal("no SOS marker in output")
	}
	scanStart := sos + 2 + 12 // marker + SOS header (length 12)
	if len(out) < scanStart+2 || out[len(out)-2] != 0xff || out[len(out)-1] != 0xd9 {
		t.Fatal("output does not end with EOI")
	}
	entropy := out[scanStart : len(out)-2]

	for i := 0; i < len(entropy); i++ {
		if entropy[i] != 0xff {
			continue
		}
		if i+1 >= len(entropy) || entropy[i+1] != 0x00 {
			t.Fatalf("lone 0xFF at entropy offset %d not followed by a stuffing byte", i)
		}
		i++
	}
}

func TestEncodeRejectsWrongBufferLength(t *testing.T) {
	var buf bytes.Buffer
	err := Encode(&buf, make([]byte, 10), 4, 4, EncodeOptions{Quality: 80})
	if err != ErrTooManyComponents {
		t.Fatalf("got %v, want ErrTooManyComponents", err)
	}
}

func TestEncodeToBufferMatchesStreamingOutput(t *testing.T) {
	const w, h = 16, 16
	rgb := solidRGB(w, h, 10, 200, 30)
	opts := EncodeOptions{Quality: 90}

	var streamed bytes.Buffer
	if err := Encode(&streamed, rgb, w, h, opts); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	buf := make([]byte, w*h/2+65536)
	n, err := EncodeToBuffer(buf, rgb, w, h, opts)
	if err != nil {
		t.Fatalf("EncodeToBuffer: %v", err)
	}

	if !bytes.Equal(streamed.Bytes(), buf[:n]) {
		t.Fatalf("EncodeToBuffer output diverges from Encode's streaming output")
	}
}

func TestEncodeToBufferOverflow(t *testing.T) {
	const w, h = 64, 64
	rgb := solidRGB(w, h, 128, 128, 128)
	_, err := EncodeToBuffer(make([]byte, 4), rgb, w, h, EncodeOptions{Quality: 80})
	if err == nil {
		t.Fatal("expected an overflow error for an undersized buffer")
	}
}

// fakeBatchDCT is a trivial BatchDCT that computes the exact same
// quantized result the internal scalar path would, so a test can assert the
// two paths are interchangeable instead of merely "doesn't crash".
type fakeBatchDCT struct {
	calls     int
	available bool
}

func (f *fakeBatchDCT) Available() bool { return f.available }

func (f *fakeBatchDCT) Process(blocks []Block8x8, quant *QuantTable8x8) ([]ZigzagBlock, error) {
	f.calls++

	// Rebuild the same reciprocal/bias pair newQuantTables derives, since
	// QuantTable8x8 only carries the scaled entries across the boundary.
	var q quantTable
	for i := 0; i < blockSize; i++ {
		x := int32(quant[i])
		q.scaled[i] = quant[i]
		bias := x / 2
		q.bias[i] = bias
		q.recip[i] = (32768 + bias) / x
	}

	out := make([]ZigzagBlock, len(blocks))
	for i, in := range blocks {
		b := block(in)
		fdct(&b)
		q.quantize(&b)
		for zig := 0; zig < blockSize; zig++ {
			out[i][zig] = b[zigzag[zig]]
		}
	}
	return out, nil
}

func TestBatchDCTProducesIdenticalOutput(t *testing.T) {
	const w, h = 1200, 900 // above minBatchDCTPixels
	rgb := make([]byte, w*h*3)
	for i := range rgb {
		rgb[i] = byte(i * 7 % 256)
	}
	opts := EncodeOptions{Quality: 80}

	var withoutBatch bytes.Buffer
	if err := Encode(&withoutBatch, rgb, w, h, opts); err != nil {
		t.Fatalf("Encode without batch: %v", err)
	}

	batch := &fakeBatchDCT{available: true}
	opts.BatchDCT = batch
	var withBatch bytes.Buffer
	if err := Encode(&withBatch, rgb, w, h, opts); err != nil {
		t.Fatalf("Encode with batch: %v", err)
	}

	if batch.calls == 0 {
		t.Fatal("expected the batch collaborator to be consulted for a >=1e6 pixel image")
	}
	if !bytes.Equal(withoutBatch.Bytes(), withBatch.Bytes()) {
		t.Fatal("batch-DCT path produced different bytes than the scalar path")
	}
}

func TestBatchDCTNotConsultedBelowThreshold(t *testing.T) {
	const w, h = 64, 64 // well under minBatchDCTPixels
	rgb := solidRGB(w, h, 1, 2, 3)
	batch := &fakeBatchDCT{available: true}

	var buf bytes.Buffer
	err := Encode(&buf, rgb, w, h, EncodeOptions{Quality: 80, BatchDCT: batch})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if batch.calls != 0 {
		t.Fatalf("batch collaborator should not be consulted below the pixel threshold, got %d calls", batch.calls)
	}
}

func TestBatchDCTFallsBackOnError(t *testing.T) {
	const w, h = 1200, 900
	rgb := solidRGB(w, h, 50, 60, 70)

	var want bytes.Buffer
	if err := Encode(&want, rgb, w, h, EncodeOptions{Quality: 80}); err != nil {
		t.Fatalf("Encode: %v", err)
	}

	failing := &failingBatchDCT{}
	var got bytes.Buffer
	if err := Encode(&got, rgb, w, h, EncodeOptions{Quality: 80, BatchDCT: failing}); err != nil {
		t.Fatalf("Encode with failing collaborator: %v", err)
	}
	if !bytes.Equal(want.Bytes(), got.Bytes()) {
		t.Fatal("a failing batch collaborator should fall back to bit-identical scalar output")
	}
}

type failingBatchDCT struct{}

func (failingBatchDCT) Available() bool { return true }
func (failingBatchDCT) Process(blocks []Block8x8, quant *QuantTable8x8) ([]ZigzagBlock, error) {
	return nil, errFailingBatch
}

var errFailingBatch = errTest("batch collaborator unavailable")

type errTest string

func (e errTest) Error() string { return string(e) }
