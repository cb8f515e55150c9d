package logger

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestCriticalLevelIsRenamed(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug, "json")

	log.Critical("app: init failed", "step", "config")

	if !strings.Contains(buf.String(), `"level":"CRITICAL"`) {
		t.Fatalf("expected CRITICAL level, got %s", buf.String())
	}
}

func TestBusinessErrorSkipsNil(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelDebug, "text")

	log.BusinessError("lifecycle.submit: rejected", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected no output for nil error, got %q", buf.String())
	}

	log.BusinessError("lifecycle.submit: rejected", errors.New("not draft"), "id", "r1")
	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, "not draft") {
		t.Fatalf("expected warn line with error, got %q", out)
	}
}

func TestComponentAddsAttribute(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, slog.LevelInfo, "text").Component("cache")

	log.Info("cache.load: done")

	if !strings.Contains(buf.String(), "component=cache") {
		t.Fatalf("expected component attribute, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		value string
		env   string
		want  slog.Level
	}{
		{"", "development", slog.LevelDebug},
		{"", "production", slog.LevelInfo},
		{"warning", "production", slog.LevelWarn},
		{"fatal", "production", LevelCritical},
		{"nonsense", "production", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.value, tc.env); got != tc.want {
			t.Fatalf("parseLevel(%q, %q) = %v, want %v", tc.value, tc.env, got, tc.want)
		}
	}
}
