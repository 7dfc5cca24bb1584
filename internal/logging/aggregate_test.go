package logging

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleLog = `{"time":"2026-01-02T10:00:01Z","level":"INFO","msg":"session started","build":"app","build_number":"7"}
{"time":"2026-01-02T10:00:03Z","level":"WARN","msg":"artifact excluded","build":"app","build_number":"7","module_id":"org.acme:core:1.0","worker":"w-1","path":"org/acme/core/1.0/core-1.0.zip"}
not json at all
{"time":"2026-01-02T10:00:02Z","level":"DEBUG","msg":"dependencies merged","module_id":"org.acme:core:1.0","worker":"w-1","count":3}
{"time":"2026-01-02T10:00:05Z","level":"ERROR","msg":"upload failed","phase":"artifact-upload","module_id":"org.acme:web:1.0"}
`

func writeSampleLog(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, LogFileName), []byte(sampleLog), 0644); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}
}

func TestAggregateLogs(t *testing.T) {
	dir := t.TempDir()
	writeSampleLog(t, dir)

	entries, err := AggregateLogs(dir)
	if err != nil {
		t.Fatalf("AggregateLogs failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	wantOrder := []string{"session started", "dependencies merged", "artifact excluded", "upload failed"}
	for i, msg := range wantOrder {
		if entries[i].Message != msg {
			t.Errorf("entries[%d].Message = %q, want %q", i, entries[i].Message, msg)
		}
	}

	excluded := entries[2]
	if excluded.Build != "app" || excluded.BuildNumber != "7" {
		t.Errorf("build = %q#%q, want app#7", excluded.Build, excluded.BuildNumber)
	}
	if excluded.Worker != "w-1" {
		t.Errorf("Worker = %q, want w-1", excluded.Worker)
	}
	if excluded.Attrs["path"] != "org/acme/core/1.0/core-1.0.zip" {
		t.Errorf("Attrs[path] = %v", excluded.Attrs["path"])
	}
	if _, ok := excluded.Attrs["module_id"]; ok {
		t.Error("standard field leaked into Attrs")
	}
}

func TestAggregateLogs_IncludesCompressedBackups(t *testing.T) {
	dir := t.TempDir()
	writeSampleLog(t, dir)

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, _ = gz.Write([]byte(`{"time":"2026-01-01T09:00:00Z","level":"INFO","msg":"older session"}` + "\n"))
	_ = gz.Close()
	if err := os.WriteFile(filepath.Join(dir, LogFileName+".1.gz"), buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write backup: %v", err)
	}

	entries, err := AggregateLogs(dir)
	if err != nil {
		t.Fatalf("AggregateLogs failed: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	if entries[0].Message != "older session" {
		t.Errorf("first entry = %q, want older session", entries[0].Message)
	}
}

func TestAggregateLogs_MissingFile(t *testing.T) {
	_, err := AggregateLogs(t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing log file")
	}
	if !strings.Contains(err.Error(), "no log file found") {
		t.Errorf("error = %v, want no log file found", err)
	}
}

func TestFilterLogs(t *testing.T) {
	entries, err := ParseLogEntries(strings.NewReader(sampleLog))
	if err != nil {
		t.Fatalf("ParseLogEntries failed: %v", err)
	}

	tests := []struct {
		name   string
		filter LogFilter
		want   int
	}{
		{"empty filter", LogFilter{}, 4},
		{"level warn", LogFilter{Level: "warn"}, 2},
		{"module", LogFilter{ModuleID: "org.acme:core:1.0"}, 2},
		{"worker and level", LogFilter{Worker: "w-1", Level: LevelInfo}, 1},
		{"phase", LogFilter{Phase: "artifact-upload"}, 1},
		{"build", LogFilter{Build: "app"}, 2},
		{"message", LogFilter{MessageContains: "merged"}, 1},
		{"start time", LogFilter{StartTime: time.Date(2026, 1, 2, 10, 0, 3, 0, time.UTC)}, 2},
		{"end time", LogFilter{EndTime: time.Date(2026, 1, 2, 10, 0, 2, 0, time.UTC)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := len(FilterLogs(entries, tt.filter)); got != tt.want {
				t.Errorf("FilterLogs() returned %d entries, want %d", got, tt.want)
			}
		})
	}
}

func TestExportLogEntries(t *testing.T) {
	entries, _ := ParseLogEntries(strings.NewReader(sampleLog))

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "json"); err != nil {
			t.Fatalf("ExportLogEntries failed: %v", err)
		}
		var decoded []LogEntry
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON output: %v", err)
		}
		if len(decoded) != len(entries) {
			t.Errorf("decoded %d entries, want %d", len(decoded), len(entries))
		}
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "text"); err != nil {
			t.Fatalf("ExportLogEntries failed: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "WARN - artifact excluded (build=app#7, module=org.acme:core:1.0, worker=w-1)") {
			t.Errorf("text output missing context line:\n%s", out)
		}
	})

	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		if err := ExportLogEntries(&buf, entries, "CSV"); err != nil {
			t.Fatalf("ExportLogEntries failed: %v", err)
		}
		records, err := csv.NewReader(&buf).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != len(entries)+1 {
			t.Errorf("got %d records, want %d", len(records), len(entries)+1)
		}
		if records[0][5] != "module_id" {
			t.Errorf("header[5] = %q, want module_id", records[0][5])
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		err := ExportLogEntries(&bytes.Buffer{}, entries, "xml")
		if err == nil || !strings.Contains(err.Error(), "unsupported export format") {
			t.Errorf("err = %v, want unsupported format error", err)
		}
	})
}
