package app

import (
	"context"
	"testing"
	"time"

	"terrafort/server/logging"
)

func TestBuildSinksHonoursJSONSelection(t *testing.T) {
	cfg := logging.DefaultConfig()
	sinks, err := buildSinks(cfg)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	for _, s := range sinks {
		if s.Name == "json" {
			t.Fatalf("json sink must not be built unless enabled")
		}
	}

	cfg.EnabledSinks = []string{"console", "json"}
	cfg.JSON.FilePath = t.TempDir() + "/events.jsonl"
	sinks, err = buildSinks(cfg)
	if err != nil {
		t.Fatalf("build sinks: %v", err)
	}
	found := false
	for _, s := range sinks {
		if s.Name == "json" {
			found = true
			if err := s.Sink.Close(context.Background()); err != nil {
				t.Fatalf("close json sink: %v", err)
			}
		}
	}
	if !found {
		t.Fatalf("expected json sink when enabled")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Addr = "127.0.0.1:0"
	cfg.ShutdownTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not stop after cancellation")
	}
}
