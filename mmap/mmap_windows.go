//go:build windows

package mmap

import (
	"unsafe"

	"golang.org/x/sys/windows"
)

// platformReadFile holds the Windows handles backing a read-only mapping:
// the file handle and the mapping object, per CreateFileMapping/
// MapViewOfFile's two-handle model.
type platformReadFile struct {
	file    windows.Handle
	mapping windows.Handle
	addr    uintptr
}

func (p *platformReadFile) close() error {
	if p.addr != 0 {
		windows.UnmapViewOfFile(p.addr)
		p.addr = 0
	}
	if p.mapping != 0 {
		windows.CloseHandle(p.mapping)
		p.mapping = 0
	}
	if p.file != 0 {
		h := p.file
		p.file = 0
		return windows.CloseHandle(h)
	}
	return nil
}

func openReadFile(path string) (*ReadFile, error) {
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, ErrNotOpen
	}
	file, err := windows.CreateFile(pathp, windows.GENERIC_READ, windows.FILE_SHARE_READ, nil,
		windows.OPEN_EXISTING, windows.FILE_FLAG_SEQUENTIAL_SCAN, 0)
	if err != nil {
		return nil, ErrNotOpen
	}

	var size int64
	if err := windows.GetFileSizeEx(file, &size); err != nil || size == 0 {
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	mapping, err := windows.CreateFileMapping(file, nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_READ, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(mapping)
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	data := unsafeSlice(addr, int(size))
	return &ReadFile{data: data, impl: platformReadFile{file: file, mapping: mapping, addr: addr}}, nil
}

// platformWriteFile holds the Windows handles backing a writable mapping,
// plus the mapped base address needed to unmap on close (Data() may have
// been reassigned to nil by WriteFile.Close already by the time impl.close
// runs, so the address is kept independently).
type platformWriteFile struct {
	file    windows.Handle
	mapping windows.Handle
	addr    uintptr
}

func (p *platformWriteFile) close(w *WriteFile) error {
	if p.addr != 0 {
		windows.FlushViewOfFile(p.addr, 0)
		windows.UnmapViewOfFile(p.addr)
		p.addr = 0
		w.data = nil
	}
	if p.mapping != 0 {
		windows.CloseHandle(p.mapping)
		p.mapping = 0
	}
	if p.file != 0 {
		file := p.file
		p.file = 0
		if w.truncated && w.actualSize >= 0 {
			windows.SetFilePointer(file, int32(w.actualSize), nil, windows.FILE_BEGIN)
			windows.SetEndOfFile(file)
		}
		return windows.CloseHandle(file)
	}
	return nil
}

func createWriteFile(path string, size int64) (*WriteFile, error) {
	if size <= 0 {
		return nil, ErrNotOpen
	}
	pathp, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, ErrNotOpen
	}
	file, err := windows.CreateFile(pathp, windows.GENERIC_READ|windows.GENERIC_WRITE, 0, nil,
		windows.CREATE_ALWAYS, windows.FILE_ATTRIBUTE_NORMAL, 0)
	if err != nil {
		return nil, ErrNotOpen
	}

	if _, err := windows.SetFilePointer(file, int32(size), nil, windows.FILE_BEGIN); err != nil {
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}
	if err := windows.SetEndOfFile(file); err != nil {
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	mapping, err := windows.CreateFileMapping(file, nil, windows.PAGE_READWRITE, 0, 0, nil)
	if err != nil {
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	addr, err := windows.MapViewOfFile(mapping, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(mapping)
		windows.CloseHandle(file)
		return nil, ErrNotOpen
	}

	data := unsafeSlice(addr, int(size))
	return &WriteFile{
		data: data,
		impl: platformWriteFile{file: file, mapping: mapping, addr: addr},
	}, nil
}

// unsafeSlice builds a []byte view over a mapped region; Windows mapping
// addresses are uintptr, not a pointer type Go can slice directly.
func unsafeSlice(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}
