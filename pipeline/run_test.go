package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunBatchPreservesInputOrder(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	var inputs []string
	for i := 0; i < 8; i++ {
		name := filepath.Join(dir, "img"+string(rune('a'+i))+".png")
		require.NoError(t, os.WriteFile(name, []byte{1, 2, 3}, 0o644))
		inputs = append(inputs, name)
	}

	proc := &Processor{
		Decoder:    fakeDecoder{width: 1, height: 1, channels: 3, pixels: []byte{1, 2, 3}},
		PNGEncoder: fakePNGEncoder{payload: []byte{9}},
	}

	results, summary, err := RunBatchWith(proc, inputs, outDir, DefaultOptions(), 4)
	require.NoError(t, err)
	require.Equal(t, len(inputs), summary.Total)
	require.Equal(t, len(inputs), summary.Succeeded)

	for i, r := range results {
		require.Equal(t, inputs[i], r.InputPath)
	}
}

func TestRunBatchExitCodes(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	require.NoError(t, os.WriteFile(good, []byte{1, 2, 3}, 0o644))
	missing := filepath.Join(dir, "missing.png")

	proc := &Processor{
		Decoder:    fakeDecoder{width: 1, height: 1, channels: 3, pixels: []byte{1, 2, 3}},
		PNGEncoder: fakePNGEncoder{payload: []byte{9}},
	}

	_, allGood, err := RunBatchWith(proc, []string{good}, filepath.Join(dir, "out1"), DefaultOptions(), 2)
	require.NoError(t, err)
	require.Equal(t, 0, allGood.ExitCode())

	_, mixed, err := RunBatchWith(proc, []string{good, missing}, filepath.Join(dir, "out2"), DefaultOptions(), 2)
	require.NoError(t, err)
	require.Equal(t, 1, mixed.ExitCode())

	_, allBad, err := RunBatchWith(proc, []string{missing}, filepath.Join(dir, "out3"), DefaultOptions(), 2)
	require.NoError(t, err)
	require.Equal(t, 2, allBad.ExitCode())
}
