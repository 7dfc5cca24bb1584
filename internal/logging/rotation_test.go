package logging

import (
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates nested directories", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nested", "dir", "test.log")

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("appends to existing file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, "/logs/test.log", []byte("initial\n"), 0644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}

		rw, err := NewRotatingWriter("/logs/test.log", RotationConfig{Fs: fs})
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		if got := rw.CurrentSize(); got != int64(len("initial\n")) {
			t.Errorf("CurrentSize() = %d, want %d", got, len("initial\n"))
		}
		if _, err := rw.Write([]byte("more\n")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		_ = rw.Close()

		data, _ := afero.ReadFile(fs, "/logs/test.log")
		if string(data) != "initial\nmore\n" {
			t.Errorf("content = %q, want %q", data, "initial\nmore\n")
		}
	})
}

// smallWriter returns a writer over a MemMapFs that rotates after maxBytes.
func smallWriter(t *testing.T, fs afero.Fs, maxBackups int, compress bool, maxBytes int64) *RotatingWriter {
	t.Helper()
	rw, err := NewRotatingWriter("/logs/recorder.log", RotationConfig{
		MaxSizeMB:  1,
		MaxBackups: maxBackups,
		Compress:   compress,
		Fs:         fs,
	})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	rw.maxSizeB = maxBytes
	return rw
}

func TestRotatingWriter_Rotates(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := smallWriter(t, fs, 2, false, 10)

	for _, line := range []string{"aaaaaaaa\n", "bbbbbbbb\n", "cccccccc\n", "dddddddd\n"} {
		if _, err := rw.Write([]byte(line)); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	want := map[string]string{
		"/logs/recorder.log":   "dddddddd\n",
		"/logs/recorder.log.1": "cccccccc\n",
		"/logs/recorder.log.2": "bbbbbbbb\n",
	}
	for path, content := range want {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			t.Errorf("ReadFile(%s) failed: %v", path, err)
			continue
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", path, data, content)
		}
	}
	if ok, _ := afero.Exists(fs, "/logs/recorder.log.3"); ok {
		t.Error("backup beyond MaxBackups should have been removed")
	}
}

func TestRotatingWriter_NoBackups(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := smallWriter(t, fs, 0, false, 5)

	_, _ = rw.Write([]byte("first\n"))
	_, _ = rw.Write([]byte("second\n"))
	_ = rw.Close()

	if ok, _ := afero.Exists(fs, "/logs/recorder.log.2"); ok {
		t.Error("unexpected .2 backup with MaxBackups=0")
	}
	data, _ := afero.ReadFile(fs, "/logs/recorder.log")
	if string(data) != "second\n" {
		t.Errorf("current log = %q, want %q", data, "second\n")
	}
}

func TestRotatingWriter_Compress(t *testing.T) {
	fs := afero.NewMemMapFs()
	rw := smallWriter(t, fs, 3, true, 10)

	_, _ = rw.Write([]byte("old entry\n"))
	_, _ = rw.Write([]byte("new entry\n"))
	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := fs.Open("/logs/recorder.log.1.gz")
	if err != nil {
		t.Fatalf("compressed backup missing: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader failed: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "old entry\n" {
		t.Errorf("decompressed = %q, want %q", data, "old entry\n")
	}
	if ok, _ := afero.Exists(fs, "/logs/recorder.log.1"); ok {
		t.Error("uncompressed backup should be removed after compression")
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	rw := smallWriter(t, afero.NewMemMapFs(), 1, false, 100)
	_ = rw.Close()

	_, err := rw.Write([]byte("x"))
	if err == nil || !strings.Contains(err.Error(), "closed") {
		t.Errorf("Write after Close = %v, want closed error", err)
	}
	if err := rw.Sync(); err != nil {
		t.Errorf("Sync after Close = %v, want nil", err)
	}
}
