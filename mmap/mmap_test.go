package mmap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenReadsFileContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")
	want := []byte("the quick brown fox jumps over the lazy dog")
	if err := os.WriteFile(path, want, 0o644); err != nil {
		t.Fatal(err)
	}

	rf, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rf.Close()

	if got := rf.Data(); string(got) != string(want) {
		t.Fatalf("Data() = %q, want %q", got, want)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "does-not-exist.bin"))
	if err == nil {
		t.Fatal("expected an error opening a nonexistent file")
	}
}

func TestOpenEmptyFileReportsNotOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.bin")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Open(path)
	if err != ErrNotOpen {
		t.Fatalf("Open(empty) = %v, want ErrNotOpen", err)
	}
}

func TestCreateWriteTruncateClose(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.bin")

	wf, err := Create(path, 4096)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	data := wf.Data()
	if len(data) != 4096 {
		t.Fatalf("reserved %d bytes, want 4096", len(data))
	}
	payload := []byte("hello, mapped world")
	copy(data, payload)
	wf.Truncate(int64(len(payload)))

	if err := wf.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payload) {
		t.Fatalf("file content = %q, want %q", got, payload)
	}
}

func TestCreateZeroSizeReportsNotOpen(t *testing.T) {
	dir := t.TempDir()
	_, err := Create(filepath.Join(dir, "zero.bin"), 0)
	if err != ErrNotOpen {
		t.Fatalf("Create(size=0) = %v, want ErrNotOpen", err)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.bin")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	rf, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := rf.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
