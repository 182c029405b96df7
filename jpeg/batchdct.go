package jpeg

// BatchDCT is the optional external batch-DCT collaborator contract
// (spec.md §4.5). An encoder MAY delegate DCT+quantization to an
// implementation of this interface when Available reports true and the
// image being encoded has at least minBatchDCTPixels pixels; on
// unavailability or failure it falls back to the encoder's own DCT and
// quantization. No implementation of BatchDCT ships with this module: the
// contract exists so a GPU-backed batch processor can be wired in without
// touching the encoder's MCU loop.
type BatchDCT interface {
	// Available reports whether the collaborator is ready to accept work,
	// e.g. because a GPU device was successfully initialized.
	Available() bool

	// Process accepts level-shifted 8x8 blocks (natural order) and the
	// quantization table to apply, and returns one quantized block per
	// input block, each already permuted into zig-zag order. The returned
	// slice has the same length as blocks. A non-nil error means the
	// caller must fall back to the internal DCT+quantization path for
	// every block in this call; partial results are not honored.
	Process(blocks []Block8x8, quant *QuantTable8x8) ([]ZigzagBlock, error)
}

// minBatchDCTPixels is the pixel-count threshold below which the batch-DCT
// collaborator is not consulted, per spec.md §4.5.
const minBatchDCTPixels = 1_000_000

// Block8x8 is a level-shifted, natural-order 8x8 block of DCT input
// samples, exposed across the BatchDCT boundary.
type Block8x8 [blockSize]int16

// ZigzagBlock is a quantized 8x8 block in zig-zag order, exposed across the
// BatchDCT boundary.
type ZigzagBlock [blockSize]int16

// QuantTable8x8 is a quantization table in natural order, exposed across
// the BatchDCT boundary so an external collaborator can apply the same
// scaling the internal quantizer would.
type QuantTable8x8 [blockSize]uint8
