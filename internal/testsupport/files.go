package testsupport

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteFile fills the target path with the requested number of bytes using a
// simple repeating pattern. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	const chunkSize = 32 * 1024
	buf := make([]byte, chunkSize)
	for i := range buf {
		buf[i] = 0x42
	}

	remaining := size
	for remaining > 0 {
		toWrite := min(int64(chunkSize), remaining)
		if _, err := f.Write(buf[:toWrite]); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
		remaining -= toWrite
	}
}

// FloppyImage lays out files the way a Mavica camera writes a disk: a few
// JPEGs and an index page. It returns the relative paths written.
func FloppyImage(t testing.TB, root string) []string {
	t.Helper()

	files := map[string]int64{
		"MVC-001F.JPG": 48 * 1024,
		"MVC-002F.JPG": 52 * 1024,
		"MVC-003F.JPG": 47 * 1024,
		"MAVICA.HTM":   512,
	}
	written := make([]string, 0, len(files))
	for name, size := range files {
		WriteFile(t, filepath.Join(root, name), size)
		written = append(written, name)
	}
	return written
}
