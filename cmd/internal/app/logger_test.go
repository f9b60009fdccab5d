package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: "INFO", want: slog.LevelInfo},
		{in: "warn", want: slog.LevelWarn},
		{in: "warning", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "unknown", want: slog.LevelInfo},
		{in: "", want: slog.LevelInfo},
	}

	for _, tc := range cases {
		got := parseLogLevel(tc.in)
		if got != tc.want {
			t.Fatalf("parseLogLevel(%q)=%v want=%v", tc.in, got, tc.want)
		}
	}
}

func TestNewLogHandler_JSONDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slog.New(newLogHandler(&buf, "debug", "", false)).Debug("signup.verify.ok", "id", "01ABC")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", buf.String(), err)
	}
	if rec["msg"] != "signup.verify.ok" || rec["id"] != "01ABC" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestNewLogHandler_Pretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	slog.New(newLogHandler(&buf, "info", "PRETTY", false)).Info("server.start")
	if json.Valid(buf.Bytes()) {
		t.Fatalf("pretty format should not emit JSON: %q", buf.String())
	}
}
