// Command squish is a bulk image optimizer: point it at files or folders
// and it re-encodes each into an output directory, typically smaller,
// optionally resized, with camera orientation normalized.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dlecorfec/squish/pipeline"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("squish", flag.ContinueOnError)
	fs.Usage = func() { printHelp(fs) }

	var (
		output    string
		quality   int
		maxWidth  int
		maxHeight int
		verbose   bool
		useGPU    bool
		workers   int
		showVer   bool
	)

	fs.StringVar(&output, "o", "optimized", "Output directory")
	fs.StringVar(&output, "output", "optimized", "Output directory")
	fs.IntVar(&quality, "q", 80, "JPEG quality (1-100)")
	fs.IntVar(&quality, "quality", 80, "JPEG quality (1-100)")
	fs.IntVar(&maxWidth, "w", 0, "Max width, preserves aspect ratio (0 = no resize)")
	fs.IntVar(&maxWidth, "width", 0, "Max width, preserves aspect ratio (0 = no resize)")
	fs.IntVar(&maxHeight, "height", 0, "Max height, preserves aspect ratio (0 = no resize)")
	fs.BoolVar(&verbose, "v", false, "Show progress for each file")
	fs.BoolVar(&verbose, "verbose", false, "Show progress for each file")
	fs.BoolVar(&useGPU, "gpu", false, "Use the batch-DCT collaborator when one is wired in")
	fs.IntVar(&workers, "workers", 0, "Worker pool size (0 = ~75% of logical cores)")
	fs.BoolVar(&showVer, "version", false, "Show version number")

	// flag.Parse stops at the first non-flag argument, so parse repeatedly
	// to accept options after inputs as well as before them.
	var inputs []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return 1
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		inputs = append(inputs, rest[0])
		rest = rest[1:]
	}
	if showVer {
		fmt.Printf("squish %s\n", version)
		return 0
	}

	if len(inputs) == 0 {
		fs.Usage()
		return 1
	}

	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}

	opts := pipeline.DefaultOptions()
	opts.Quality = quality
	opts.MaxWidth = maxWidth
	opts.MaxHeight = maxHeight
	opts.UseGPU = useGPU
	if err := opts.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "squish: %v\n", err)
		return 1
	}

	files, err := pipeline.ScanPaths(inputs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squish: %v\n", err)
		return 2
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "squish: no supported images found")
		return 2
	}

	start := time.Now()
	results, summary, err := pipeline.RunBatch(files, output, opts, workers)
	if err != nil {
		fmt.Fprintf(os.Stderr, "squish: %v\n", err)
		return 2
	}
	elapsed := time.Since(start)

	printSummary(results, summary, elapsed, verbose)
	return summary.ExitCode()
}

func printSummary(results []pipeline.Result, summary pipeline.Summary, elapsed time.Duration, verbose bool) {
	var totalIn, totalOut int64
	for _, r := range results {
		totalIn += r.OriginalSize
		totalOut += r.CompressedSize
		if verbose || !r.Success {
			status := "ok"
			if !r.Success {
				status = "FAILED: " + r.ErrorMessage
			}
			fmt.Printf("%-60s %s\n", r.InputPath, status)
		}
	}

	fmt.Printf("\n%d succeeded, %d failed, out of %d total (%.1fs)\n",
		summary.Succeeded, summary.Failed, summary.Total, elapsed.Seconds())
	if totalIn > 0 {
		fmt.Printf("%d -> %d bytes (%.1f%% saved)\n",
			totalIn, totalOut, 100*(1-float64(totalOut)/float64(totalIn)))
	}
}

func printHelp(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `squish %s
High-performance bulk image optimizer.

USAGE
  squish <input> [options]
  squish <folder> -o <output> -q <quality> -w <max-width>

EXAMPLES
  squish photo.jpg                    Optimize single image
  squish photos/                      Optimize entire folder
  squish photos/ -o compressed/       Output to specific folder
  squish photos/ -q 70 -w 1920        Quality 70, max width 1920px

OPTIONS
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
SUPPORTED FORMATS
  Input:  JPEG, PNG, BMP, TGA, GIF
  Output: JPEG (photos), PNG (graphics/transparency)
`)
}
