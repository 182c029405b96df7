package jpeg

import (
	"io"

	"github.com/pkg/errors"
)

// JPEG marker bytes (ISO/IEC 10918-1 Annex B). Only the markers a baseline
// encoder emits are named here.
const (
	markerSOI  = 0xd8
	markerEOI  = 0xd9
	markerAPP0 = 0xe0
	markerDQT  = 0xdb
	markerSOF0 = 0xc0
	markerDHT  = 0xc4
	markerSOS  = 0xda
	markerByte = 0xff
)

// ErrTooManyComponents is returned when an input image is not 3-channel
// RGB; this encoder only implements the 4:2:0 three-component path.
var ErrTooManyComponents = errors.New("jpeg: only 3-component RGB input is supported")

// Encoder writes a baseline, 4:2:0 chroma-subsampled JPEG bitstream. An
// Encoder is single-use: construct one per image via newEncoder.
type Encoder struct {
	w     *bitWriter
	quant [nQuantIndex]quantTable

	// running DC predictors, reset only when a new Encoder is constructed,
	// i.e. once per scan.
	dcY, dcCb, dcCr int32

	// batchDCT is consulted per-MCU when non-nil; set by encode() once it
	// knows the image's pixel count, per spec.md §4.5's size threshold.
	batchDCT BatchDCT
}

// EncodeOptions controls the output of Encode.
type EncodeOptions struct {
	// Quality is the IJG-style quality factor in [1, 100].
	Quality int

	// BatchDCT, if non-nil and reporting itself Available, is consulted
	// for DCT+quantization once the image reaches minBatchDCTPixels
	// pixels, per spec.md §4.5. Any failure (including a nil collaborator)
	// falls back to the encoder's own scalar/vector DCT for the affected
	// blocks; results are bit-identical up to the zigzag permutation.
	BatchDCT BatchDCT
}

// Encode writes width x height of 8-bit interleaved RGB samples (rgb must
// have len == width*height*3) as a baseline JFIF JPEG to dst. This is the
// streaming entry point; it buffers output in a fixed-size internal buffer
// and flushes to dst as it fills.
func Encode(dst io.Writer, rgb []byte, width, height int, opts EncodeOptions) error {
	if len(rgb) != width*height*3 {
		return ErrTooManyComponents
	}
	e := newEncoder(newStreamSink(dst), opts.Quality)
	e.configureBatchDCT(opts.BatchDCT, width, height)
	return e.encode(rgb, width, height)
}

// EncodeToBuffer writes the JPEG into buf, the memory-mapped output
// destination allocated by the caller (typically width*height/2 + 65536
// bytes, per the pipeline's mmap-reserve sizing), and returns the number of
// bytes written. If buf is too small, it returns errMemSinkOverflow-wrapped
// error and the caller must fall back to Encode with a streaming
// destination.
func EncodeToBuffer(buf, rgb []byte, width, height int, opts EncodeOptions) (int, error) {
	if len(rgb) != width*height*3 {
		return 0, ErrTooManyComponents
	}
	sink := newMemSink(buf)
	e := newEncoder(sink, opts.Quality)
	e.configureBatchDCT(opts.BatchDCT, width, height)
	if err := e.encode(rgb, width, height); err != nil {
		return 0, err
	}
	return sink.bytesWritten(), nil
}

func newEncoder(dst sink, quality int) *Encoder {
	return &Encoder{
		w:     newBitWriter(dst),
		quant: newQuantTables(quality),
	}
}

// configureBatchDCT decides whether the optional batch-DCT collaborator
// should be consulted for this image, per spec.md §4.5: it must be present,
// report itself available, and the image must have at least
// minBatchDCTPixels pixels.
func (e *Encoder) configureBatchDCT(b BatchDCT, width, height int) {
	if b == nil || !b.Available() {
		return
	}
	if width*height < minBatchDCTPixels {
		return
	}
	e.batchDCT = b
}

func (e *Encoder) encode(rgb []byte, width, height int) error {
	e.writeSOI()
	e.writeJFIF()
	e.writeDQT()
	e.writeSOF0(width, height)
	e.writeDHT()
	e.writeSOS()
	e.writeScan(rgb, width, height)
	e.w.padToByte()
	e.writeEOI()
	if err := e.w.flush(); err != nil {
		return errors.Wrap(err, "jpeg: flush")
	}
	return e.w.err
}

func (e *Encoder) writeMarker(m byte) {
	e.w.writeRaw([]byte{markerByte, m})
}

func (e *Encoder) writeSOI() { e.writeMarker(markerSOI) }
func (e *Encoder) writeEOI() { e.writeMarker(markerEOI) }

// writeJFIF writes the APP0 JFIF identification segment: version 1.1, no
// density units, 1x1 pixel aspect, no thumbnail.
func (e *Encoder) writeJFIF() {
	e.writeMarker(markerAPP0)
	e.w.writeRaw([]byte{
		0x00, 0x10, // length = 16
		'J', 'F', 'I', 'F', 0x00,
		0x01, 0x01, // version 1.1
		0x00,       // no density units
		0x00, 0x01, // Xdensity = 1
		0x00, 0x01, // Ydensity = 1
		0x00, 0x00, // no thumbnail
	})
}

// writeDQT writes both quantization tables, in zig-zag order as the
// standard requires, even though they are held in natural order internally.
func (e *Encoder) writeDQT() {
	e.writeMarker(markerDQT)
	const markerLen = 2 + 2*(1+blockSize)
	e.w.writeRaw([]byte{byte(markerLen >> 8), byte(markerLen)})
	for qi := quantIndex(0); qi < nQuantIndex; qi++ {
		e.w.writeByteRaw(byte(qi))
		var buf [blockSize]byte
		for i := 0; i < blockSize; i++ {
			buf[i] = e.quant[qi].scaled[zigzag[i]]
		}
		e.w.writeRaw(buf[:])
	}
}

// writeSOF0 writes the baseline frame header for a 3-component, 4:2:0
// image: luma sampled 2x2, chroma each sampled 1x1, luma using quant table
// 0 and both chroma components using quant table 1.
func (e *Encoder) writeSOF0(width, height int) {
	e.writeMarker(markerSOF0)
	const markerLen = 2 + 1 + 2 + 2 + 1 + 3*3
	e.w.writeRaw([]byte{byte(markerLen >> 8), byte(markerLen)})
	e.w.writeByteRaw(8) // sample precision
	e.w.writeRaw([]byte{byte(height >> 8), byte(height)})
	e.w.writeRaw([]byte{byte(width >> 8), byte(width)})
	e.w.writeByteRaw(3) // number of components
	e.w.writeRaw([]byte{1, 0x22, 0x00}) // Y:  id 1, 2x2 sampling, quant 0
	e.w.writeRaw([]byte{2, 0x11, 0x01}) // Cb: id 2, 1x1 sampling, quant 1
	e.w.writeRaw([]byte{3, 0x11, 0x01}) // Cr: id 3, 1x1 sampling, quant 1
}

// writeDHT writes all four canonical Huffman tables.
func (e *Encoder) writeDHT() {
	e.writeMarker(markerDHT)
	markerLen := 2
	for _, s := range theHuffmanSpec {
		markerLen += 1 + 16 + len(s.value)
	}
	e.w.writeRaw([]byte{byte(markerLen >> 8), byte(markerLen)})
	tcth := [nHuffIndex]byte{0x00, 0x10, 0x01, 0x11} // class<<4 | id
	for i, s := range theHuffmanSpec {
		e.w.writeByteRaw(tcth[i])
		e.w.writeRaw(s.count[:])
		e.w.writeRaw(s.value)
	}
}

// writeSOS writes the start-of-scan header selecting DC/AC tables 0 for Y
// and 1 for Cb/Cr, with the fixed spectral-selection bytes a baseline,
// non-progressive scan always uses.
func (e *Encoder) writeSOS() {
	e.writeMarker(markerSOS)
	e.w.writeRaw([]byte{
		0x00, 0x0c, // length = 12
		0x03,       // 3 components
		1, 0x00,    // Y:  DC/AC table 0
		2, 0x11,    // Cb: DC/AC table 1
		3, 0x11,    // Cr: DC/AC table 1
		0x00, 0x3f, 0x00, // spectral selection 0..63, successive approx 0
	})
}

// writeScan runs the MCU loop over a 16x16-pixel grid (four luma blocks
// plus one subsampled Cb and Cr block each), reproducing the original
// encoder's exact chroma accumulation: for a horizontal pair of source
// pixels, the RGB-averaged pixel's chroma is added at half weight; a
// trailing unpaired edge pixel's own chroma is added at quarter weight
// instead, rather than contributing to an averaged pair.
func (e *Encoder) writeScan(rgb []byte, width, height int) {
	stride := width * 3
	mcusX := (width + 15) / 16
	mcusY := (height + 15) / 16

	var yBlocks [4]block
	var cb, cr block

	for my := 0; my < mcusY; my++ {
		for mx := 0; mx < mcusX; mx++ {
			for i := range cb {
				cb[i], cr[i] = 0, 0
			}
			baseX, baseY := mx*16, my*16

			for sub := 0; sub < 4; sub++ {
				subX := baseX + (sub&1)*8
				subY := baseY + (sub>>1)*8
				e.buildLumaAndAccumulateChroma(&yBlocks[sub], &cb, &cr, rgb, stride, width, height, subX, subY, sub)
			}

			if !e.encodeLumaViaBatch(&yBlocks) {
				for sub := 0; sub < 4; sub++ {
					e.quant[quantIndexLuminance].quantize(fdctBlock(&yBlocks[sub]))
					e.encodeBlock(&yBlocks[sub], &e.dcY, huffIndexLuminanceDC, huffIndexLuminanceAC)
				}
			}
			if !e.encodeChromaViaBatch(&cb, &cr) {
				e.quant[quantIndexChrominance].quantize(fdctBlock(&cb))
				e.encodeBlock(&cb, &e.dcCb, huffIndexChrominanceDC, huffIndexChrominanceAC)
				e.quant[quantIndexChrominance].quantize(fdctBlock(&cr))
				e.encodeBlock(&cr, &e.dcCr, huffIndexChrominanceDC, huffIndexChrominanceAC)
			}
		}
	}
}

// fdctBlock runs the forward DCT on b and returns b, a small convenience so
// quantize can be chained directly against fdct's result.
func fdctBlock(b *block) *block {
	fdct(b)
	return b
}

// buildLumaAndAccumulateChroma fills one 8x8 luma sub-block at (subX, subY)
// with level-shifted Y samples, zero-padding past the image bounds, and
// accumulates that sub-block's contribution into the MCU-wide 8x8 chroma
// accumulators cb/cr at quadrant sub (0=top-left, 1=top-right,
// 2=bottom-left, 3=bottom-right). Paired horizontal pixels are averaged in
// RGB first and contribute half their chroma to the shared cell; a trailing
// unpaired edge pixel contributes a quarter of its own chroma instead.
// Cells with no source pixels at all stay zero.
func (e *Encoder) buildLumaAndAccumulateChroma(y *block, cb, cr *block, rgb []byte, stride, width, height, subX, subY, sub int) {
	cbOffX, cbOffY := (sub&1)*4, (sub>>1)*4
	for row := 0; row < 8; row++ {
		py := subY + row
		if py >= height {
			for col := 0; col < 8; col++ {
				y[row*8+col] = 0
			}
			continue
		}
		rowOff := py * stride
		maxCol := width - subX
		if maxCol > 8 {
			maxCol = 8
		}

		col := 0
		for ; col+1 < maxCol; col += 2 {
			r0, g0, b0 := pixelAt(rgb, rowOff, subX+col)
			r1, g1, b1 := pixelAt(rgb, rowOff, subX+col+1)
			y[row*8+col] = int16(rgbToY(r0, g0, b0))
			y[row*8+col+1] = int16(rgbToY(r1, g1, b1))

			ra, ga, ba := (r0+r1)>>1, (g0+g1)>>1, (b0+b1)>>1
			cbv, crv := rgbToCbCr(ra, ga, ba)
			ci := (cbOffY+row/2)*8 + cbOffX + col/2
			cb[ci] += int16((cbv + 1) >> 1)
			cr[ci] += int16((crv + 1) >> 1)
		}
		for ; col < maxCol; col++ {
			r, g, b := pixelAt(rgb, rowOff, subX+col)
			y[row*8+col] = int16(rgbToY(r, g, b))

			cbv, crv := rgbToCbCr(r, g, b)
			ci := (cbOffY+row/2)*8 + cbOffX + col/2
			cb[ci] += int16(cbv >> 2)
			cr[ci] += int16(crv >> 2)
		}
		for ; col < 8; col++ {
			y[row*8+col] = 0
		}
	}
}

func pixelAt(rgb []byte, rowOff, x int) (int32, int32, int32) {
	o := rowOff + x*3
	return int32(rgb[o]), int32(rgb[o+1]), int32(rgb[o+2])
}

// rgbToY applies the BT.601 luma transform, level-shifted by -128 for DCT
// input.
func rgbToY(r, g, b int32) int32 {
	return ((19595*r+38470*g+7471*b+32768)>>16 - 128)
}

// rgbToCbCr applies the BT.601 chroma transforms. The coefficients already
// sum to zero, so a gray input (R==G==B) yields 0 directly; no separate
// level shift is needed the way rgbToY needs its -128.
func rgbToCbCr(r, g, b int32) (int32, int32) {
	cb := (-11056*r - 21712*g + 32768*b) >> 16
	cr := (32768*r - 27440*g - 5328*b) >> 16
	return cb, cr
}

// encodeBlock emits one quantized, natural-order block's DC delta and
// zig-zag-ordered AC run-lengths, updating the running DC predictor.
func (e *Encoder) encodeBlock(b *block, dcPred *int32, dcTable, acTable huffIndex) {
	dc := int32(b[0])
	diff := dc - *dcPred
	*dcPred = dc
	e.w.emitHuffRLE(theHuffmanLUT[dcTable], 0, diff)

	runLength := int32(0)
	for zig := 1; zig < blockSize; zig++ {
		v := int32(b[zigzag[zig]])
		if v == 0 {
			runLength++
			continue
		}
		for runLength > 15 {
			e.w.emitHuff(theHuffmanLUT[acTable], 0xf0) // ZRL
			runLength -= 16
		}
		e.w.emitHuffRLE(theHuffmanLUT[acTable], runLength, v)
		runLength = 0
	}
	if runLength > 0 {
		e.w.emitHuff(theHuffmanLUT[acTable], 0x00) // EOB
	}
}

// encodeZigzagBlock is encodeBlock's counterpart for coefficients that
// arrive already in zig-zag order from the batch-DCT collaborator: same
// entropy coding, indexed directly instead of through the zigzag table.
func (e *Encoder) encodeZigzagBlock(b *ZigzagBlock, dcPred *int32, dcTable, acTable huffIndex) {
	dc := int32(b[0])
	diff := dc - *dcPred
	*dcPred = dc
	e.w.emitHuffRLE(theHuffmanLUT[dcTable], 0, diff)

	runLength := int32(0)
	for zig := 1; zig < blockSize; zig++ {
		v := int32(b[zig])
		if v == 0 {
			runLength++
			continue
		}
		for runLength > 15 {
			e.w.emitHuff(theHuffmanLUT[acTable], 0xf0) // ZRL
			runLength -= 16
		}
		e.w.emitHuffRLE(theHuffmanLUT[acTable], runLength, v)
		runLength = 0
	}
	if runLength > 0 {
		e.w.emitHuff(theHuffmanLUT[acTable], 0x00) // EOB
	}
}

// encodeLumaViaBatch attempts to DCT+quantize+entropy-code the MCU's four
// luma blocks through the batch-DCT collaborator. Reports whether it
// succeeded; on false the caller must run the internal scalar/vector DCT
// path instead (spec.md §4.5: a non-nil error means the whole call's
// blocks fall back together, partial results are not honored).
func (e *Encoder) encodeLumaViaBatch(yBlocks *[4]block) bool {
	if e.batchDCT == nil {
		return false
	}
	in := []Block8x8{Block8x8(yBlocks[0]), Block8x8(yBlocks[1]), Block8x8(yBlocks[2]), Block8x8(yBlocks[3])}
	quant := QuantTable8x8(e.quant[quantIndexLuminance].scaled)
	out, err := e.batchDCT.Process(in, &quant)
	if err != nil || len(out) != 4 {
		return false
	}
	for sub := 0; sub < 4; sub++ {
		e.encodeZigzagBlock(&out[sub], &e.dcY, huffIndexLuminanceDC, huffIndexLuminanceAC)
	}
	return true
}

// encodeChromaViaBatch is encodeLumaViaBatch's counterpart for the MCU's
// one Cb and one Cr block.
func (e *Encoder) encodeChromaViaBatch(cb, cr *block) bool {
	if e.batchDCT == nil {
		return false
	}
	in := []Block8x8{Block8x8(*cb), Block8x8(*cr)}
	quant := QuantTable8x8(e.quant[quantIndexChrominance].scaled)
	out, err := e.batchDCT.Process(in, &quant)
	if err != nil || len(out) != 2 {
		return false
	}
	e.encodeZigzagBlock(&out[0], &e.dcCb, huffIndexChrominanceDC, huffIndexChrominanceAC)
	e.encodeZigzagBlock(&out[1], &e.dcCr, huffIndexChrominanceDC, huffIndexChrominanceAC)
	return true
}
