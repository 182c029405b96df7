//go:build !windows

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// platformReadFile holds the POSIX fd and mapped view backing a read-only
// mapping.
type platformReadFile struct {
	fd   int
	data []byte
}

func (p *platformReadFile) close() error {
	if p.fd < 0 {
		return nil
	}
	if p.data != nil {
		_ = unix.Munmap(p.data)
		p.data = nil
	}
	fd := p.fd
	p.fd = -1
	return unix.Close(fd)
}

func openReadFile(path string) (*ReadFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ErrNotOpen
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil || st.Size() == 0 {
		return nil, ErrNotOpen
	}
	size := int(st.Size())

	// Duplicate the fd: unix.Mmap keeps working after the owning *os.File is
	// closed as long as the underlying fd stays open; dup lets us close f
	// (and its finalizer) immediately instead of pinning it for the mapping's
	// lifetime.
	dupFd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, ErrNotOpen
	}

	data, err := unix.Mmap(dupFd, 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		unix.Close(dupFd)
		return nil, ErrNotOpen
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)

	return &ReadFile{data: data, impl: platformReadFile{fd: dupFd, data: data}}, nil
}

// platformWriteFile holds the POSIX fd backing a writable mapping.
type platformWriteFile struct {
	fd int
}

func (p *platformWriteFile) close(w *WriteFile) error {
	if p.fd < 0 {
		return nil
	}
	if w.data != nil {
		_ = unix.Msync(w.data, unix.MS_SYNC)
		_ = unix.Munmap(w.data)
		w.data = nil
	}
	fd := p.fd
	p.fd = -1
	if w.truncated && w.actualSize >= 0 {
		_ = unix.Ftruncate(fd, w.actualSize)
	}
	return unix.Close(fd)
}

func createWriteFile(path string, size int64) (*WriteFile, error) {
	if size <= 0 {
		return nil, ErrNotOpen
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, ErrNotOpen
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		os.Remove(path)
		return nil, ErrNotOpen
	}

	dupFd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return nil, ErrNotOpen
	}

	data, err := unix.Mmap(dupFd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(dupFd)
		return nil, ErrNotOpen
	}

	return &WriteFile{data: data, impl: platformWriteFile{fd: dupFd}}, nil
}
