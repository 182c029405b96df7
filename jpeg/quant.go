package jpeg

// quantTable holds the scaled quantization table for one component class,
// in natural order, along with the precomputed reciprocal and rounding bias
// used to replace division by multiplication in the quantizer.
type quantTable struct {
	scaled [blockSize]uint8
	recip  [blockSize]int32
	bias   [blockSize]int32
}

// newQuantTables derives the luma and chroma quantization tables for the
// given quality, scaling the standard tables and precomputing the
// reciprocal/bias pair for each entry, per the derivation:
//
//	q = quality<50 ? 5000/quality : 200-2*quality
//	entry = clamp((std*q+50)/100, 1, 255)
//	recip = (32768 + entry/2) / entry
//	bias  = entry/2
func newQuantTables(quality int) [nQuantIndex]quantTable {
	if quality < 1 {
		quality = 1
	} else if quality > 100 {
		quality = 100
	}
	var scale int
	if quality < 50 {
		scale = 5000 / quality
	} else {
		scale = 200 - quality*2
	}

	var tables [nQuantIndex]quantTable
	for qi := range tables {
		for i := 0; i < blockSize; i++ {
			x := (int(unscaledQuant[qi][i])*scale + 50) / 100
			if x < 1 {
				x = 1
			} else if x > 255 {
				x = 255
			}
			tables[qi].scaled[i] = uint8(x)
			bias := int32(x / 2)
			tables[qi].bias[i] = bias
			tables[qi].recip[i] = int32((32768 + bias)) / int32(x)
		}
	}
	return tables
}

// quantize replaces each natural-order coefficient v in b with an
// approximation of v / q[i] computed as ((v + sign(v)*bias[i]) * recip[i]) >> 15,
// the reciprocal-multiplication trick that avoids 64 signed divisions per
// block. For v >= 0 this rounds to nearest; for v < 0 the arithmetic shift
// floors, so a negative result is usually one step further from zero than
// rounding would give (with q = 16, v = -1 gives -1 and v = -9 gives -2).
func (q *quantTable) quantize(b *block) {
	for i := 0; i < blockSize; i++ {
		v := int32(b[i])
		bias := q.bias[i]
		if v < 0 {
			bias = -bias
		}
		b[i] = int16(((v + bias) * q.recip[i]) >> 15)
	}
}
