package logx

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWritesServiceField(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := New(&buf, Config{Service: "bot"})
	logger.Info().Str("user_id", "u1").Msg("turn handled")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["service"] != "bot" {
		t.Fatalf("service = %v, want bot", entry["service"])
	}
	if entry["user_id"] != "u1" {
		t.Fatalf("user_id = %v, want u1", entry["user_id"])
	}
}

func TestNewDebugToggle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	quiet := New(&buf, Config{})
	quiet.Debug().Msg("hidden")
	if buf.Len() != 0 {
		t.Fatalf("debug line written at info level: %s", buf.String())
	}

	verbose := New(&buf, Config{Debug: true})
	verbose.Debug().Msg("shown")
	if buf.Len() == 0 {
		t.Fatal("debug line missing with Debug enabled")
	}
}
