package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newJSON(buf *bytes.Buffer, level string) *Logger {
	return NewWithWriter(&Config{Level: level, Format: FormatJSON}, "test-svc", buf)
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var m map[string]interface{}
	line := strings.TrimSpace(buf.String())
	if err := json.Unmarshal([]byte(line), &m); err != nil {
		t.Fatalf("invalid json log line %q: %v", line, err)
	}
	return m
}

func TestNewDefault(t *testing.T) {
	l := NewDefault("svc")
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
	if l.Service() != "svc" {
		t.Errorf("expected service 'svc', got %q", l.Service())
	}
}

func TestInfoWritesFields(t *testing.T) {
	var buf bytes.Buffer
	newJSON(&buf, "info").WithComponent("upstream").Info("ready", map[string]interface{}{
		FieldUpstream: "billing-service",
		FieldAttempt:  2,
	})

	m := decodeLine(t, &buf)
	if m["message"] != "ready" {
		t.Errorf("message = %v", m["message"])
	}
	if m[FieldService] != "test-svc" {
		t.Errorf("service = %v", m[FieldService])
	}
	if m[FieldComponent] != "upstream" {
		t.Errorf("component = %v", m[FieldComponent])
	}
	if m[FieldUpstream] != "billing-service" {
		t.Errorf("upstream = %v", m[FieldUpstream])
	}
	if m[FieldAttempt] != float64(2) {
		t.Errorf("attempt = %v", m[FieldAttempt])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON(&buf, "warn")
	l.Info("hidden")
	l.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %q", buf.String())
	}
	l.Warn("shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warn output, got %q", buf.String())
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := newJSON(&buf, "loud")
	l.Debug("hidden")
	l.Info("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestWithContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithRequestID(context.Background(), "req-1")
	ctx = ContextWithTraceID(ctx, "trace-1")
	newJSON(&buf, "info").WithContext(ctx).Info("handled")

	m := decodeLine(t, &buf)
	if m[FieldRequestID] != "req-1" {
		t.Errorf("request_id = %v", m[FieldRequestID])
	}
	if m[FieldTraceID] != "trace-1" {
		t.Errorf("trace_id = %v", m[FieldTraceID])
	}
	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext = %q", got)
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	newJSON(&buf, "info").WithFields(map[string]interface{}{"k": "v"}).Info("x")
	if m := decodeLine(t, &buf); m["k"] != "v" {
		t.Errorf("k = %v", m["k"])
	}
}

func TestNopDiscards(t *testing.T) {
	NewNop().Error("nothing")
}

func TestGlobalLogger(t *testing.T) {
	prev := globalLogger
	defer SetGlobalLogger(prev)

	l := Init(Config{Level: "debug", Format: FormatJSON}, "global")
	if GetGlobalLogger() != l {
		t.Fatal("Init should replace the global logger")
	}
	if WithComponent("x") == nil {
		t.Fatal("expected component logger")
	}
}

func TestConfigApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if cfg.Level != "info" || cfg.Format != FormatConsole || cfg.Output != "stdout" || !cfg.Timestamp {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{Level: "info", Format: FormatJSON}, false},
		{"bad level", Config{Level: "verbose", Format: FormatJSON}, true},
		{"bad format", Config{Level: "info", Format: "xml"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFields(t *testing.T) {
	m := Fields("a", 1, "b", "two", 3, "skipped", "dangling")
	if len(m) != 2 || m["a"] != 1 || m["b"] != "two" {
		t.Errorf("unexpected fields %v", m)
	}
}

func TestErrorAndDurationFields(t *testing.T) {
	ef := ErrorFields("dial", errors.New("refused"))
	if ef[FieldError] != "refused" || ef["operation"] != "dial" {
		t.Errorf("unexpected error fields %v", ef)
	}
	df := DurationFields("probe", 1500*time.Millisecond)
	if df[FieldDuration] != int64(1500) {
		t.Errorf("unexpected duration fields %v", df)
	}
}
