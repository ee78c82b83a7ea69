package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestProdLoggerWritesJSONAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "prod", "")

	log.Debug("hidden")
	log.Info("event processed", "event_id", "E1")

	line := strings.TrimSpace(buf.String())
	if strings.Contains(line, "hidden") {
		t.Fatalf("debug line leaked in prod: %s", line)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(line), &rec); err != nil {
		t.Fatalf("not json: %v (%s)", err, line)
	}
	if rec["event_id"] != "E1" || rec["service"] != "betsave-core" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestLevelOverride(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "dev", "warn")
	log.Info("skip me")
	log.Warn("keep me")

	out := buf.String()
	if strings.Contains(out, "skip me") || !strings.Contains(out, "keep me") {
		t.Fatalf("level override not applied: %q", out)
	}
}
