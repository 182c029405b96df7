package pipeline

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// SupportedExtensions lists the case-insensitive input extensions spec.md
// §6 names.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".tga", ".gif"}

// MaxScannedFiles caps the number of files a single ScanPaths call will
// collect, per spec.md §6's "hard cap on files per invocation" to bound
// runaway directory traversal.
const MaxScannedFiles = 500_000

// IsSupported reports whether path's extension (case-insensitive) is one
// ScanPaths/Process will accept.
func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

// ScanPaths expands a mix of file and directory inputs into a flat,
// deterministic list of supported image files. Directories are walked
// recursively; symbolic links are never followed (a symlinked directory is
// skipped entirely, a symlinked file is skipped as a file) and per-entry
// permission errors are logged and skipped rather than aborting the whole
// scan, per spec.md §6. Traversal stops early, with a warning, once
// MaxScannedFiles files have been collected.
//
// Grounded on the original project's src/cli.cpp collect_files().
func ScanPaths(paths []string) ([]string, error) {
	var files []string

	for _, p := range paths {
		info, err := os.Lstat(p)
		if err != nil {
			logrus.WithField("path", p).Warn("pipeline: path does not exist, skipping")
			continue
		}

		if info.Mode()&os.ModeSymlink != 0 {
			logrus.WithField("path", p).Warn("pipeline: symlink at top level, skipping")
			continue
		}

		if info.IsDir() {
			if !scanDir(p, &files) {
				return files, nil
			}
			continue
		}

		if IsSupported(p) {
			files = append(files, p)
		} else {
			logrus.WithField("path", p).Warn("pipeline: unsupported image format, skipping")
		}
	}

	return files, nil
}

// scanDir walks root, appending supported regular files to files. It
// returns false once MaxScannedFiles has been reached, signaling the
// caller to stop scanning entirely.
func scanDir(root string, files *[]string) bool {
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsPermission(err) {
				logrus.WithField("path", path).Warn("pipeline: permission denied, skipping")
				return nil
			}
			logrus.WithFields(logrus.Fields{"path": path, "error": err}).Warn("pipeline: scan error, skipping entry")
			return nil
		}

		// d.Type() reports the symlink itself without following it, so a
		// symlinked directory is pruned here instead of being descended
		// into, and a symlinked file is skipped below.
		if d.Type()&fs.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if !IsSupported(path) {
			return nil
		}

		*files = append(*files, path)
		if len(*files) >= MaxScannedFiles {
			logrus.WithField("limit", MaxScannedFiles).Warn("pipeline: file limit reached, stopping scan")
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && err != filepath.SkipAll {
		logrus.WithFields(logrus.Fields{"path": root, "error": err}).Warn("pipeline: error scanning directory")
	}
	return len(*files) < MaxScannedFiles
}
