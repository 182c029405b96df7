package resize

import "testing"

func solidImage(w, h, channels int, fill byte) []byte {
	out := make([]byte, w*h*channels)
	for i := range out {
		out[i] = fill
	}
	return out
}

func TestRGBIdentityCopiesExactly(t *testing.T) {
	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
	out, err := RGB(src, 2, 2, 2, 2)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	for i := range src {
		if out[i] != src[i] {
			t.Fatalf("identity resize changed data at %d: got %d, want %d", i, out[i], src[i])
		}
	}
	// Must be a copy, not an alias: mutating one must not affect the other.
	out[0] = 255
	if src[0] == 255 {
		t.Fatal("RGB identity path aliased the source buffer")
	}
}

func TestRGBRejectsMismatchedLength(t *testing.T) {
	_, err := RGB(make([]byte, 10), 2, 2, 2, 2)
	if err != ErrInvalidDimensions {
		t.Fatalf("got %v, want ErrInvalidDimensions", err)
	}
}

func TestRGBRejectsNonPositiveTarget(t *testing.T) {
	src := solidImage(4, 4, 3, 10)
	if _, err := RGB(src, 4, 4, 0, 4); err != ErrInvalidDimensions {
		t.Fatalf("got %v, want ErrInvalidDimensions for zero width", err)
	}
}

func TestBox2x2HalvesDimensionsAndAverages(t *testing.T) {
	// 4x4 single-channel split into 2x2 quadrants of constant value.
	const w, h = 4, 4
	src := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			src[y*w+x] = byte(10 * (y/2*2 + x/2 + 1))
		}
	}
	out := box2x2(src, w, h, 1)
	if len(out) != 2*2 {
		t.Fatalf("got %d output pixels, want 4", len(out))
	}
	// Each quadrant is constant, so the 2x2 box average must reproduce it
	// exactly (no rounding drift on a uniform input).
	want := []byte{10, 20, 30, 40}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("box2x2 = %v, want %v", out, want)
		}
	}
}

func TestRGBHalvingMatchesExplicitBoxFormula(t *testing.T) {
	const w, h = 10, 6
	src := make([]byte, w*h*3)
	for i := range src {
		src[i] = byte(i * 17 % 256)
	}

	out, err := RGB(append([]byte(nil), src...), w, h, w/2, h/2)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}

	for y := 0; y < h/2; y++ {
		for x := 0; x < w/2; x++ {
			for c := 0; c < 3; c++ {
				a := int(src[(2*y*w+2*x)*3+c])
				b := int(src[(2*y*w+2*x+1)*3+c])
				cc := int(src[((2*y+1)*w+2*x)*3+c])
				d := int(src[((2*y+1)*w+2*x+1)*3+c])
				want := byte((a + b + cc + d + 2) / 4)
				got := out[(y*(w/2)+x)*3+c]
				if got != want {
					t.Fatalf("pixel (%d,%d) channel %d: got %d, want %d", x, y, c, got, want)
				}
			}
		}
	}
}

func TestRGBUsesBox2x2FastPath(t *testing.T) {
	const w, h = 8, 8
	src := solidImage(w, h, 3, 64)
	out, err := RGB(src, w, h, w/2, h/2)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	for _, v := range out {
		if v != 64 {
			t.Fatalf("downscaling a solid-color image changed its value: got %d, want 64", v)
		}
	}
}

func TestRGBGenericBoxDownscaleSolidColorIsStable(t *testing.T) {
	const w, h = 17, 13 // not an even multiple of any target
	src := solidImage(w, h, 3, 200)
	out, err := RGB(src, w, h, 5, 4)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	for _, v := range out {
		if v != 200 {
			t.Fatalf("generic box downscale of a solid image changed its value: got %d, want 200", v)
		}
	}
}

func TestRGBBilinearUpscaleSolidColorIsStable(t *testing.T) {
	const w, h = 4, 4
	src := solidImage(w, h, 3, 77)
	out, err := RGB(src, w, h, 16, 16)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	for _, v := range out {
		if v != 77 {
			t.Fatalf("bilinear upscale of a solid image changed its value: got %d, want 77", v)
		}
	}
}

func TestRGBDownscaleDeterministic(t *testing.T) {
	const w, h = 37, 29
	src := make([]byte, w*h*3)
	for i := range src {
		src[i] = byte(i * 13 % 256)
	}
	a, err := RGB(append([]byte(nil), src...), w, h, 11, 9)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	b, err := RGB(append([]byte(nil), src...), w, h, 11, 9)
	if err != nil {
		t.Fatalf("RGB: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("resize is not deterministic at byte %d: %d vs %d", i, a[i], b[i])
		}
	}
}

func TestGeneralDelegatesNonThreeChannel(t *testing.T) {
	const w, h = 6, 6
	src := solidImage(w, h, 1, 99)
	out, err := General(src, w, h, 1, 3, 3)
	if err != nil {
		t.Fatalf("General: %v", err)
	}
	if len(out) != 3*3*1 {
		t.Fatalf("got %d bytes, want %d", len(out), 3*3)
	}
}

func TestGeneralFourChannelUpscale(t *testing.T) {
	const w, h = 2, 2
	src := solidImage(w, h, 4, 128)
	out, err := General(src, w, h, 4, 4, 4)
	if err != nil {
		t.Fatalf("General: %v", err)
	}
	if len(out) != 4*4*4 {
		t.Fatalf("got %d bytes, want %d", len(out), 4*4*4)
	}
}
