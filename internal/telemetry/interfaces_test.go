package telemetry

import (
	"bytes"
	"log"
	"testing"

	"terrafort/server/logging"
)

func TestWrapLogger(t *testing.T) {
	t.Run("nil logger", func(t *testing.T) {
		logger := WrapLogger(nil)
		logger.Printf("ignored %d", 42)
	})

	t.Run("forwards to logger", func(t *testing.T) {
		var buf bytes.Buffer
		base := log.New(&buf, "", 0)
		logger := WrapLogger(base)
		logger.Printf("tick %d overran", 12)
		if got := buf.String(); got != "tick 12 overran\n" {
			t.Fatalf("unexpected log output: %q", got)
		}
	})
}

func TestWrapMetrics(t *testing.T) {
	var metrics logging.Metrics
	adapter := WrapMetrics(&metrics)

	adapter.Add("frames_dropped", 2)
	adapter.Store("frames_dropped", 5)
	adapter.Add("frames_dropped", 3)

	snapshot := metrics.Snapshot()
	if got := snapshot["frames_dropped"]; got != 8 {
		t.Fatalf("unexpected metric value: %d", got)
	}

	// Ensure nil metrics do not panic.
	var nilAdapter Metrics = WrapMetrics(nil)
	nilAdapter.Add("ignored", 1)
	nilAdapter.Store("ignored", 1)
}

func TestLoggerFuncNilIsSafe(t *testing.T) {
	var f LoggerFunc
	f.Printf("ignored")

	var got string
	LoggerFunc(func(format string, args ...any) { got = format }).Printf("tick %d", 1)
	if got != "tick %d" {
		t.Fatalf("expected format to be forwarded, got %q", got)
	}
}
