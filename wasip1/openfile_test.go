package wasip1

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFile_RejectsEmbeddedNUL(t *testing.T) {
	dir := t.TempDir()
	preopens := NewPreopenTable(3, map[string]string{"/": dir})

	_, err := OpenFile(preopens, OpenRequest{Path: "/foo\x00bar", Readable: true})
	if err == nil {
		t.Fatal("expected an error for a path containing an embedded NUL")
	}
}

func TestOpenFile_UnresolvedPreopenIsNoent(t *testing.T) {
	preopens := NewPreopenTable(3, map[string]string{"/data": t.TempDir()})

	_, err := OpenFile(preopens, OpenRequest{Path: "/other/file.txt", Readable: true})
	if err == nil {
		t.Fatal("expected an error for a path outside every preopen")
	}
}

func TestOpenFile_CreatesAndDerivesRights(t *testing.T) {
	dir := t.TempDir()
	preopens := NewPreopenTable(3, map[string]string{"/": dir})

	res, err := OpenFile(preopens, OpenRequest{
		Path:     "/new.txt",
		Flags:    OCreat,
		Readable: false,
		Writable: true,
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.File.Close()

	if res.Rights&WritableRights == 0 {
		t.Fatal("expected writable rights on a write-only open")
	}
	if res.Rights&RightFdRead != 0 {
		t.Fatal("did not expect read rights on a write-only open")
	}
	if _, err := os.Stat(filepath.Join(dir, "new.txt")); err != nil {
		t.Fatalf("expected the file to have been created: %v", err)
	}
}

func TestOpenFile_DefaultsToReadable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "existing.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	preopens := NewPreopenTable(3, map[string]string{"/": dir})

	res, err := OpenFile(preopens, OpenRequest{Path: "/existing.txt"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer res.File.Close()

	if res.Rights&ReadableRights == 0 {
		t.Fatal("expected the read-only default to carry readable rights")
	}
}

func TestOpenFile_MissingFileIsNoent(t *testing.T) {
	dir := t.TempDir()
	preopens := NewPreopenTable(3, map[string]string{"/": dir})

	_, err := OpenFile(preopens, OpenRequest{Path: "/missing.txt", Readable: true})
	if err != os.ErrNotExist {
		t.Fatalf("expected os.ErrNotExist, got %v", err)
	}
}
