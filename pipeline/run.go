package pipeline

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/dlecorfec/squish/pool"
)

// DefaultWorkerCount sizes the pool to ~75% of logical cores (minimum 2),
// per spec.md §5: enough parallelism to saturate I/O and SIMD-heavy encode
// without the hyper-threading contention a full core count invites.
func DefaultWorkerCount() int {
	n := runtime.NumCPU() * 3 / 4
	if n < 2 {
		n = 2
	}
	return n
}

// RunBatch processes every input concurrently through a bounded Pool sized
// to workers (DefaultWorkerCount() if <= 0), returning a Result per input in
// the same order as inputs regardless of completion order (spec.md §3's
// "fixed index" guarantee) and a Summary for the batch exit-code decision.
//
// The only error RunBatch itself returns is a PoolTimeout: every other
// per-image failure is captured into its Result, per spec.md §7's
// propagation policy.
func RunBatch(inputs []string, outputDir string, opts Options, workers int) ([]Result, Summary, error) {
	return newProcessor().runBatch(inputs, outputDir, opts, workers)
}

// RunBatchWith is RunBatch with an explicit Processor, letting callers wire
// a custom Decoder/PNGEncoder/BatchDCT (e.g. for tests).
func RunBatchWith(proc *Processor, inputs []string, outputDir string, opts Options, workers int) ([]Result, Summary, error) {
	return proc.runBatch(inputs, outputDir, opts, workers)
}

func newProcessor() *Processor {
	return &Processor{Decoder: DefaultDecoder{}, PNGEncoder: DefaultPNGEncoder{}}
}

func (p *Processor) runBatch(inputs []string, outputDir string, opts Options, workers int) ([]Result, Summary, error) {
	if workers <= 0 {
		workers = DefaultWorkerCount()
	}

	wp := pool.New(workers)
	defer wp.Close()

	results := make([]Result, len(inputs))

	for i, input := range inputs {
		idx, in := i, input
		if _, err := wp.Enqueue(func() error {
			results[idx] = p.Process(in, outputDir, opts)
			return nil
		}); err != nil {
			wrapped := wrapErr(ErrorKindPoolTimeout, err, "enqueue %s", in)
			logrus.WithField("error", wrapped).Error("pipeline: batch aborted")
			return results, summarize(results), wrapped
		}
	}

	if err := wp.WaitAll(pool.DefaultWaitAllTimeout); err != nil {
		wrapped := wrapErr(ErrorKindPoolTimeout, err, "batch wait_all")
		logrus.WithField("error", wrapped).Error("pipeline: batch aborted")
		return results, summarize(results), wrapped
	}

	return results, summarize(results), nil
}
