package schedule

import (
	"reflect"
	"testing"
)

func TestScheduleFiresExactlyAtDelay(t *testing.T) {
	s := New(nil)
	s.Update(10)

	var fired []uint64
	s.Schedule(5, func(tick uint64) { fired = append(fired, tick) })

	for tick := uint64(11); tick < 15; tick++ {
		s.Update(tick)
		if len(fired) != 0 {
			t.Fatalf("callback fired early at tick %d", tick)
		}
	}
	s.Update(15)
	s.Update(16)
	if !reflect.DeepEqual(fired, []uint64{15}) {
		t.Fatalf("expected single fire at 15, got %v", fired)
	}
	if s.Pending() != 0 {
		t.Fatalf("fired callback should be removed")
	}
}

func TestSameTickCallbacksRunInRegistrationOrder(t *testing.T) {
	s := New(nil)
	var order []int
	for i := 0; i < 5; i++ {
		s.Schedule(1, func(uint64) { order = append(order, i) })
	}
	if n := s.Update(1); n != 5 {
		t.Fatalf("expected 5 callbacks, got %d", n)
	}
	if !reflect.DeepEqual(order, []int{0, 1, 2, 3, 4}) {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestSkippedTicksFireEarliestFirst(t *testing.T) {
	s := New(nil)
	var order []string
	s.ScheduleAt(3, func(uint64) { order = append(order, "late") })
	s.ScheduleAt(2, func(uint64) { order = append(order, "early") })

	s.Update(10)
	if !reflect.DeepEqual(order, []string{"early", "late"}) {
		t.Fatalf("unexpected order %v", order)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s := New(nil)
	fired := false
	h := s.Schedule(2, func(uint64) { fired = true })
	if !s.Cancel(h) {
		t.Fatalf("cancel should report success")
	}
	if s.Cancel(h) {
		t.Fatalf("second cancel should report nothing removed")
	}
	s.Update(5)
	if fired {
		t.Fatalf("cancelled callback fired")
	}
}

func TestPanicIsIsolated(t *testing.T) {
	var reported []Handle
	s := New(func(h Handle, target, tick uint64, err error) {
		if err == nil {
			t.Errorf("expected error for handle %d", h)
		}
		reported = append(reported, h)
	})
	bad := s.Schedule(1, func(uint64) { panic("boom") })
	ran := false
	s.Schedule(1, func(uint64) { ran = true })

	s.Update(1)

	if !ran {
		t.Fatalf("sibling callback should still run")
	}
	if !reflect.DeepEqual(reported, []Handle{bad}) {
		t.Fatalf("expected panic reported for %d, got %v", bad, reported)
	}
}

func TestCallbackMayReschedule(t *testing.T) {
	s := New(nil)
	count := 0
	var tick func(uint64)
	tick = func(uint64) {
		count++
		if count < 3 {
			s.Schedule(1, tick)
		}
	}
	s.Schedule(1, tick)
	for i := uint64(1); i <= 5; i++ {
		s.Update(i)
	}
	if count != 3 {
		t.Fatalf("expected 3 runs, got %d", count)
	}
}
