package server

import (
	"strings"
	"testing"
	"time"

	"terrafort/server/internal/telemetry"
)

func TestTelemetryCountersSnapshot(t *testing.T) {
	counters := newTelemetryCounters(nil, false)
	for i := 0; i < 10; i++ {
		counters.RecordTickDuration(16 * time.Millisecond)
	}
	counters.RecordBroadcast(120, 3)
	counters.RecordBroadcast(80, 2)
	counters.RecordBroadcast(-5, -1)
	counters.RecordFrame(true)
	counters.RecordFrame(false)
	counters.RecordFrame(false)
	counters.IncrementOverrun()

	snapshot := counters.Snapshot()
	if snapshot.Ticks != 10 {
		t.Fatalf("expected 10 ticks, got %d", snapshot.Ticks)
	}
	if snapshot.TickDuration != 16 {
		t.Fatalf("expected tick duration 16ms, got %d", snapshot.TickDuration)
	}
	if snapshot.BytesSent != 200 {
		t.Fatalf("expected 200 bytes sent, got %d", snapshot.BytesSent)
	}
	if snapshot.EntitiesSent != 5 {
		t.Fatalf("expected 5 entities sent, got %d", snapshot.EntitiesSent)
	}
	if snapshot.ResetFrames != 1 || snapshot.UpdateFrames != 2 {
		t.Fatalf("unexpected frame counts: reset=%d update=%d", snapshot.ResetFrames, snapshot.UpdateFrames)
	}
	if snapshot.Overruns != 1 {
		t.Fatalf("expected 1 overrun, got %d", snapshot.Overruns)
	}
}

func TestTelemetryDebugLogging(t *testing.T) {
	var lines []string
	logger := telemetry.LoggerFunc(func(format string, args ...any) {
		lines = append(lines, format)
	})

	quiet := newTelemetryCounters(logger, false)
	quiet.RecordTickDuration(time.Millisecond)
	if len(lines) != 0 {
		t.Fatalf("expected no debug output when disabled, got %v", lines)
	}

	verbose := newTelemetryCounters(logger, true)
	verbose.RecordBroadcast(64, 1)
	verbose.RecordTickDuration(2 * time.Millisecond)
	if len(lines) != 1 {
		t.Fatalf("expected one debug line, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "[telemetry]") {
		t.Fatalf("unexpected debug line %q", lines[0])
	}
}
