package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"terrafort/server/logging"
)

func TestConsoleFormatsActorAndPayload(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsole(&buf)
	err := sink.Write(logging.Event{
		Type:     "lifecycle.player_joined",
		Tick:     3,
		Severity: logging.SeverityInfo,
		Actor:    logging.EntityRef{ID: "7", Kind: logging.EntityKindPlayer},
		Payload:  map[string]string{"world": "wilderness"},
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	line := buf.String()
	for _, want := range []string{"[lifecycle.player_joined]", "tick=3", "severity=info", "actor=player:7", `payload={"world":"wilderness"}`} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestJSONWritesOneObjectPerLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewJSON(&buf, 0)
	for i := 0; i < 2; i++ {
		if err := sink.Write(logging.Event{Type: "simulation.phase_timeout", Tick: uint64(i), Severity: logging.SeverityWarn}); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("invalid json line: %v", err)
	}
	if decoded["severity"] != "warn" || decoded["tick"] != float64(1) {
		t.Fatalf("unexpected line %v", decoded)
	}
}

func TestMemoryFiltersByType(t *testing.T) {
	sink := NewMemory()
	sink.Write(logging.Event{Type: "a"})
	sink.Write(logging.Event{Type: "b"})
	sink.Write(logging.Event{Type: "a"})
	if got := len(sink.OfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("reset should clear events")
	}
}
