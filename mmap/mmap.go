// Package mmap provides read-only and writable memory-mapped file I/O, the
// zero-copy path the pipeline uses instead of fread/ioutil-style buffered
// reads. Both handle types are non-copyable by convention (callers should
// pass *ReadFile/*WriteFile, never copy the struct) and release every OS
// resource on Close, which is safe to call more than once.
//
// Ported from the original project's lib/mmap_file.hpp: a MappedFile
// (read-only) and a MappedFileWrite (create + reserve + truncate-on-close)
// pair, split here across mmap_unix.go and mmap_windows.go build-tagged
// files since the syscalls involved are platform-specific, mirroring the
// _linux.go / _windows.go split seen elsewhere in the retrieved pack.
package mmap

import "errors"

// ErrNotOpen is returned by Open/Create, in place of any OS error, whenever
// the file cannot be mapped: it cannot be opened or sized, it is
// zero-length, or a mapping syscall fails. Per spec.md §4.1 this is not an error condition
// the caller should alarm on; it is the caller's signal to fall back to
// streaming file I/O.
var ErrNotOpen = errors.New("mmap: file not mapped")

// ReadFile is a read-only mapping of an existing file.
type ReadFile struct {
	data []byte
	impl platformReadFile
}

// Data returns the mapped bytes. Valid until Close.
func (r *ReadFile) Data() []byte { return r.data }

// Close unmaps the view and releases the underlying file descriptor/handle.
// Safe to call multiple times.
func (r *ReadFile) Close() error { return r.impl.close() }

// Open maps path read-only and advises the kernel of sequential access
// where supported. If the file cannot be opened or sized, is zero-length, or
// the mapping syscalls fail, it returns (nil, ErrNotOpen) rather than a hard
// error — the caller should
// fall back to a normal streaming read in that case, per spec.md §4.1.
func Open(path string) (*ReadFile, error) {
	return openReadFile(path)
}

// WriteFile is a writable mapping of a newly created file reserved at a
// caller-specified size. Truncate records the number of bytes actually
// written so Close can shrink the file to that size; without a Truncate
// call the file keeps its full reservation.
type WriteFile struct {
	data       []byte
	actualSize int64
	truncated  bool
	impl       platformWriteFile
}

// Data returns the reserved, writable byte slice. Its length is the
// reservation size passed to Create, not the eventual actual content size.
func (w *WriteFile) Data() []byte { return w.data }

// Truncate records that only actualSize bytes of Data are meaningful; Close
// shrinks the file to this length. Call before Close.
func (w *WriteFile) Truncate(actualSize int64) {
	w.actualSize = actualSize
	w.truncated = true
}

// Close flushes, unmaps, truncates (if requested) and closes the file.
// Safe to call multiple times.
func (w *WriteFile) Close() error { return w.impl.close(w) }

// Create creates (or truncates) path, reserves size bytes and maps it
// read-write. On any failure (including size == 0) it returns
// (nil, ErrNotOpen); the caller should fall back to a streaming writer.
func Create(path string, size int64) (*WriteFile, error) {
	return createWriteFile(path, size)
}
