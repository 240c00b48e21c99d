package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "dir", FileName)

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(path); err != nil {
			t.Errorf("log file was not created: %v", err)
		}
		if rw.Path() != path {
			t.Errorf("Path() = %q, want %q", rw.Path(), path)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte("initial\n"), 0644); err != nil {
			t.Fatalf("failed to seed file: %v", err)
		}

		rw, err := NewRotatingWriter(path, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if rw.Size() != int64(len("initial\n")) {
			t.Errorf("Size() = %d, want %d", rw.Size(), len("initial\n"))
		}
		if _, err := rw.Write([]byte("appended\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		content, _ := os.ReadFile(path)
		if string(content) != "initial\nappended\n" {
			t.Errorf("content = %q", content)
		}
	})
}

// writeChunks writes n chunks of a little over 400KiB each.
func writeChunks(t *testing.T, rw *RotatingWriter, marker string, n int) {
	t.Helper()
	chunk := []byte(strings.Repeat(marker, 400*1024) + "\n")
	for range n {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
}

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	// Two chunks fit in one megabyte, the third forces a rotation.
	writeChunks(t, rw, "a", 2)
	writeChunks(t, rw, "b", 2)
	writeChunks(t, rw, "c", 2)
	writeChunks(t, rw, "d", 1)
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	first := func(p string) byte {
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("read %s: %v", p, err)
		}
		return data[0]
	}
	if got := first(path); got != 'd' {
		t.Errorf("active file starts with %q, want 'd'", got)
	}
	if got := first(path + ".1"); got != 'c' {
		t.Errorf("backup 1 starts with %q, want 'c'", got)
	}
	if got := first(path + ".2"); got != 'b' {
		t.Errorf("backup 2 starts with %q, want 'b'", got)
	}
	if _, err := os.Stat(path + ".3"); !os.IsNotExist(err) {
		t.Error("backup 3 exists beyond MaxBackups")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	writeChunks(t, rw, "a", 3)
	_ = rw.Close()

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("backup created with MaxBackups = 0")
	}
	if info, err := os.Stat(path); err != nil || info.Size() > 1024*1024 {
		t.Errorf("active file not truncated by rotation: %v", err)
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	rw, err := NewRotatingWriter(path, RotationConfig{MaxSizeMB: 1, MaxBackups: 1, Compress: true})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	writeChunks(t, rw, "z", 3)
	// Close waits for the background compression.
	_ = rw.Close()

	if _, err := os.Stat(path + ".1"); !os.IsNotExist(err) {
		t.Error("uncompressed backup was not removed")
	}
	f, err := os.Open(path + ".1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer func() { _ = f.Close() }()
	zr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	data, err := io.ReadAll(zr)
	if err != nil {
		t.Fatalf("read compressed backup: %v", err)
	}
	if len(data) == 0 || data[0] != 'z' {
		t.Error("compressed backup has unexpected content")
	}
}

func TestRotatingWriter_Close(t *testing.T) {
	rw, err := NewRotatingWriter(filepath.Join(t.TempDir(), FileName), DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := rw.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if _, err := rw.Write([]byte("late\n")); err == nil {
		t.Error("expected write after close to fail")
	}
}

func TestNewLoggerWithRotation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLoggerWithRotation(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation failed: %v", err)
	}
	logger.WithComponent("sync").Debug("inserted process", "pid", 42)
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	content, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	entries := readEntries(t, content)
	if len(entries) != 1 || entries[0]["msg"] != "inserted process" || entries[0]["component"] != "sync" {
		t.Errorf("entries = %v", entries)
	}

	stderrLogger, err := NewLoggerWithRotation("", LevelInfo, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLoggerWithRotation(\"\") failed: %v", err)
	}
	if stderrLogger.out.closer != nil {
		t.Error("stderr logger should not own a closer")
	}
}
