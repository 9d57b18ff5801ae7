package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestNew_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Output: &buf, ServiceName: "renderd"})

	log.Debug("job started", "job_id", "abc")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v\n%s", err, buf.String())
	}
	if entry["msg"] != "job started" {
		t.Errorf("expected msg, got %v", entry["msg"])
	}
	if entry["service"] != "renderd" {
		t.Errorf("expected service attribute, got %v", entry["service"])
	}
	if entry["job_id"] != "abc" {
		t.Errorf("expected job_id, got %v", entry["job_id"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Output: &buf})

	log.Info("hidden")
	if buf.Len() != 0 {
		t.Errorf("expected info to be filtered, got %s", buf.String())
	}
	log.Warn("shown")
	if buf.Len() == 0 {
		t.Error("expected warn to be written")
	}
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := New(Config{Output: &buf})

	ctx := ContextWithJobID(context.Background(), "job-42")
	ctx = ContextWithRequestID(ctx, "req-7")
	FromContext(ctx, base).Info("hello")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}
	if entry["job_id"] != "job-42" {
		t.Errorf("expected job_id job-42, got %v", entry["job_id"])
	}
	if entry["request_id"] != "req-7" {
		t.Errorf("expected request_id req-7, got %v", entry["request_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
