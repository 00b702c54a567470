package timing

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func TestStopAccumulatesElapsed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	r := NewRecorder(clock.Now)

	for i := 0; i < 2; i++ {
		r.Start("physics", "tick")
		clock.now = clock.now.Add(3 * time.Millisecond)
		if err := r.Stop("physics"); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	}

	report := r.Pull()
	if got := report.Times["physics"]; got != 6*time.Millisecond {
		t.Fatalf("expected 6ms, got %s", got)
	}
	if meta := report.Metadata["physics"]; meta.Parent != "tick" || meta.Type != TypeTime {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if again := r.Pull(); len(again.Times) != 0 || len(again.Metadata) != 0 {
		t.Fatalf("pull should drain, got %+v", again)
	}
}

func TestStopWithoutStartFails(t *testing.T) {
	r := NewRecorder(nil)
	if err := r.Stop("never"); !errors.Is(err, ErrTimerNotStarted) {
		t.Fatalf("expected ErrTimerNotStarted, got %v", err)
	}
}

func TestCountSums(t *testing.T) {
	r := NewRecorder(nil)
	r.Count(2, "entities", "tick")
	r.Count(3, "entities", "tick")
	report := r.Pull()
	if report.Counts["entities"] != 5 {
		t.Fatalf("expected 5, got %d", report.Counts["entities"])
	}
	if report.Metadata["entities"].Type != TypeCount {
		t.Fatalf("expected count metadata")
	}
}

func TestDisableSilencesRecorder(t *testing.T) {
	r := NewRecorder(nil)
	r.Disable()
	r.Start("x", "")
	r.Count(1, "y", "")
	if err := r.Stop("unknown"); err != nil {
		t.Fatalf("disabled stop should not fail: %v", err)
	}
	report := r.Pull()
	if len(report.Times)+len(report.Counts)+len(report.Metadata) != 0 {
		t.Fatalf("disabled recorder recorded %+v", report)
	}
}
