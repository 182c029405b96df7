package pipeline

// Format selects the output container format; AUTO follows spec.md §4.7
// step 6 (PNG in → PNG out, everything else → JPEG).
type Format int

const (
	FormatAuto Format = iota
	FormatJPEG
	FormatPNG
)

// Options is the per-job encoding configuration (spec.md §3's "encoding
// job" options).
type Options struct {
	// Quality is the JPEG quality factor, 1..100.
	Quality int
	// MaxWidth/MaxHeight bound the output's dimensions; 0 means no
	// constraint on that axis.
	MaxWidth  int
	MaxHeight int
	// PreserveAspect, when both max dimensions are set, scales so the
	// larger constraint binds rather than stretching independently.
	PreserveAspect bool
	Format         Format
	// UseGPU requests the optional batch-DCT collaborator (spec.md §4.5)
	// when one has been wired in via Processor.BatchDCT; a nil collaborator makes
	// this a no-op.
	UseGPU bool
}

// DefaultOptions mirrors the original CLI's defaults (src/cli.cpp:
// quality 80, AUTO format, no resize).
func DefaultOptions() Options {
	return Options{
		Quality:        80,
		Format:         FormatAuto,
		PreserveAspect: true,
	}
}

// Validate clamps Quality into [1,100] and rejects negative dimensions,
// mirroring the teacher's own Options.Quality validation style
// (clamp-don't-fail for quality, reject outright for structurally invalid
// fields).
func (o *Options) Validate() error {
	if o.Quality < 1 {
		o.Quality = 1
	} else if o.Quality > 100 {
		o.Quality = 100
	}
	if o.MaxWidth < 0 || o.MaxHeight < 0 {
		return errNegativeDimension
	}
	return nil
}
