package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"WARNING": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"chatty":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestWrapWritesStructuredObject(t *testing.T) {
	var buf bytes.Buffer
	log := Wrap(New(&buf, zapcore.InfoLevel))

	log.DebugObj("dropped", "k", 1)
	log.InfoObj("list submitted", "list", map[string]interface{}{"id": "abc", "records": 2})

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line at info level, got %d: %s", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal(lines[0], &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["msg"] != "list submitted" || entry["level"] != "info" {
		t.Fatalf("unexpected entry %v", entry)
	}
	if _, ok := entry["ts"]; !ok {
		t.Fatalf("missing ts field: %v", entry)
	}
	list, ok := entry["list"].(map[string]interface{})
	if !ok || list["id"] != "abc" {
		t.Fatalf("object not logged under key: %v", entry)
	}
}

func TestLBeforeInitIsNop(t *testing.T) {
	S = nil
	if _, ok := L().(NopLogger); !ok {
		t.Fatalf("expected NopLogger before Init")
	}
	InfoObj("ignored", "k", 1)
}
