package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"INFO", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.WarnLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if ValidLevel("bogus") {
		t.Error("ValidLevel(bogus) = true")
	}
}

func TestCtx_AddsRunID(t *testing.T) {
	old := Logger()
	t.Cleanup(func() {
		SetLogger(old)
		zerolog.SetGlobalLevel(ParseLevel(DefaultConfig().Level))
	})

	var buf bytes.Buffer
	Init(Config{Level: "info", Format: "json", Output: &buf})

	ctx := ContextWithRunID(context.Background(), "run-1")
	Ctx(ctx).Info().Int("items", 3).Msg("mining")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v (%q)", err, buf.String())
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", entry["run_id"])
	}
	if entry["message"] != "mining" {
		t.Errorf("message = %v, want mining", entry["message"])
	}

	buf.Reset()
	Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Errorf("debug message written at info level: %q", buf.String())
	}
}
