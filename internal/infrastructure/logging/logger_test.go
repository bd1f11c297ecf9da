package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/eltako2mqtt/internal/infrastructure/config"
)

// bufferLogger returns a logger writing to buf, bypassing openOutput.
func bufferLogger(buf *bytes.Buffer, cfg config.LoggingConfig, version string) *Logger {
	return &Logger{Logger: slog.New(newHandler(buf, cfg, version))}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"Warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"trace":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}

	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestOpenOutput(t *testing.T) {
	tests := []struct {
		output     string
		wantWriter *os.File
	}{
		{"stdout", os.Stdout},
		{"STDERR", os.Stderr},
		{"", os.Stdout},
		{"syslog", os.Stdout},
	}

	for _, tt := range tests {
		t.Run(tt.output, func(t *testing.T) {
			w, closer := openOutput(config.LoggingConfig{Output: tt.output})
			if w != tt.wantWriter {
				t.Errorf("writer = %v, want %v", w, tt.wantWriter)
			}
			if closer != nil {
				t.Error("console output must not be closable")
			}
		})
	}
}

func TestLogger_JSONRecord(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf, config.LoggingConfig{Level: "info"}, "1.2.3")

	log.With("component", "bridge").Info("device added", "device_id", "12")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	want := map[string]string{
		"service":   serviceName,
		"version":   "1.2.3",
		"component": "bridge",
		"device_id": "12",
		"msg":       "device added",
	}
	for k, v := range want {
		if rec[k] != v {
			t.Errorf("%s = %v, want %q", k, rec[k], v)
		}
	}
}

func TestLogger_TextFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	log := bufferLogger(&buf, config.LoggingConfig{Level: "warn", Format: "Text"}, "dev")

	log.Info("poll ok")
	log.Warn("gateway slow")

	out := buf.String()
	if strings.Contains(out, "poll ok") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, `msg="gateway slow"`) {
		t.Errorf("expected text warn record, got %q", out)
	}
	if strings.HasPrefix(out, "{") {
		t.Error("text format produced JSON")
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")

	log := New(config.LoggingConfig{
		Output: "file",
		File:   config.FileLoggingConfig{Path: path, MaxSize: 1},
	}, "1.0.0")
	log.Info("written to file", "device_id", "12")

	// A derived logger must not close the shared file.
	if err := log.With("component", "x").Close(); err != nil {
		t.Fatalf("child Close() error: %v", err)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Errorf("log file missing record: %s", data)
	}
}

func TestLogger_CloseWithoutFile(t *testing.T) {
	if err := Default().Close(); err != nil {
		t.Errorf("Close() on stdout logger = %v, want nil", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Close(); err != nil {
		t.Errorf("Close() on nil logger = %v, want nil", err)
	}
}
