package scheduler

import (
	"testing"

	"github.com/retrobus/sim65/emu/types"
)

func TestAdvanceDispatchesDueInOrder(t *testing.T) {
	s := New(nil)
	var order []string
	s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) { order = append(order, "a") }, nil)
	s.ScheduleAt(5, KindDeviceTimer, 0, func(Context, any) { order = append(order, "b") }, nil)
	s.Advance(10)
	if got := len(order); got != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("order = %v, want [b a]", order)
	}
}

// TestSameCycleTiesResolveByInsertionOrder covers P8: two events due at
// the same cycle fire in registration order regardless of priority ties.
func TestSameCycleTiesResolveByInsertionOrder(t *testing.T) {
	s := New(nil)
	var order []string
	s.ScheduleAt(5, KindDeviceTimer, 0, func(Context, any) { order = append(order, "first") }, nil)
	s.ScheduleAt(5, KindDeviceTimer, 0, func(Context, any) { order = append(order, "second") }, nil)
	s.Advance(5)
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("order = %v, want [first second]", order)
	}
}

func TestPriorityBreaksTieBeforeInsertionOrder(t *testing.T) {
	s := New(nil)
	var order []string
	s.ScheduleAt(5, KindDeviceTimer, 5, func(Context, any) { order = append(order, "low-pri") }, nil)
	s.ScheduleAt(5, KindDeviceTimer, 1, func(Context, any) { order = append(order, "high-pri") }, nil)
	s.Advance(5)
	if len(order) != 2 || order[0] != "high-pri" || order[1] != "low-pri" {
		t.Fatalf("order = %v, want [high-pri low-pri]", order)
	}
}

// TestReentrantScheduleWithinSameSweep covers S4: scheduling A at 10
// whose callback schedules B at 10 and C at 20. After advance(10), A
// then B dispatch within the same sweep; C remains pending with
// peek_next_due() == 20.
func TestReentrantScheduleWithinSameSweep(t *testing.T) {
	s := New(nil)
	var order []string
	var cHandle Handle
	s.ScheduleAt(10, KindDeviceTimer, 0, func(ctx Context, tag any) {
		order = append(order, "A")
		s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) {
			order = append(order, "B")
		}, nil)
		cHandle = s.ScheduleAt(20, KindDeviceTimer, 0, func(Context, any) {
			order = append(order, "C")
		}, nil)
	}, nil)

	s.Advance(10)

	if len(order) != 2 || order[0] != "A" || order[1] != "B" {
		t.Fatalf("order = %v, want [A B] dispatched within the same sweep", order)
	}
	due, ok := s.PeekNextDue()
	if !ok || due != 20 {
		t.Fatalf("peek_next_due = (%v, %v), want (20, true)", due, ok)
	}
	if cHandle == 0 {
		t.Fatal("expected a non-zero handle for C")
	}
}

func TestCancelPreventsDispatch(t *testing.T) {
	s := New(nil)
	fired := false
	h := s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) { fired = true }, nil)
	if !s.Cancel(h) {
		t.Fatal("expected Cancel to succeed on a pending handle")
	}
	s.Advance(10)
	if fired {
		t.Fatal("cancelled event must not dispatch")
	}
	if s.Cancel(h) {
		t.Fatal("cancelling an already-cancelled handle must report false")
	}
}

func TestCancelUnknownHandleReturnsFalse(t *testing.T) {
	s := New(nil)
	if s.Cancel(Handle(12345)) {
		t.Fatal("cancelling an unknown handle must report false")
	}
}

func TestJumpToNextEventAndDispatch(t *testing.T) {
	s := New(nil)
	fired := false
	s.ScheduleAt(50, KindDeviceTimer, 0, func(Context, any) { fired = true }, nil)
	if ok := s.JumpToNextEventAndDispatch(); !ok {
		t.Fatal("expected a pending event to jump to")
	}
	if !fired {
		t.Fatal("expected the event to have dispatched")
	}
	if got := s.Now(); got != 50 {
		t.Fatalf("now = %d, want 50", got)
	}
	if ok := s.JumpToNextEventAndDispatch(); ok {
		t.Fatal("expected no pending event left")
	}
}

func TestJumpToNextEventAndDispatchAtCurrentCycle(t *testing.T) {
	// Open Question #3: due == now must still dispatch.
	s := New(nil)
	s.Advance(50)
	fired := false
	s.ScheduleAt(50, KindDeviceTimer, 0, func(Context, any) { fired = true }, nil)
	if ok := s.JumpToNextEventAndDispatch(); !ok || !fired {
		t.Fatal("expected dispatch even when due already equals now")
	}
}

func TestResetClearsPendingAndCycle(t *testing.T) {
	s := New(nil)
	fired := false
	s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) { fired = true }, nil)
	s.Advance(1)
	s.Reset()
	if got := s.Now(); got != 0 {
		t.Fatalf("now after reset = %d, want 0", got)
	}
	s.Advance(100)
	if fired {
		t.Fatal("event pending before reset must not dispatch afterward")
	}
	if _, ok := s.PeekNextDue(); ok {
		t.Fatal("expected no pending events after reset")
	}
}

func TestResetNotifiesCancelledObserver(t *testing.T) {
	s := New(nil)
	var cancelled []Handle
	s.OnCancelled(func(h Handle) { cancelled = append(cancelled, h) })
	h := s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) {}, nil)
	s.Reset()
	if len(cancelled) != 1 || cancelled[0] != h {
		t.Fatalf("cancelled observers = %v, want [%d]", cancelled, h)
	}
}

func TestScheduledObserverReportsLate(t *testing.T) {
	s := New(nil)
	var sawLate bool
	s.OnScheduled(func(_ Handle, _ types.Cycle, _ Kind, _ any, late bool) {
		sawLate = late
	})
	s.Advance(5)
	s.ScheduleAt(3, KindDeviceTimer, 0, func(Context, any) {}, nil)
	if !sawLate {
		t.Fatal("expected scheduling an event due before now to report late=true")
	}
}

func TestObserverCannotScheduleOrCancel(t *testing.T) {
	s := New(nil)
	s.OnScheduled(func(Handle, types.Cycle, Kind, any, bool) {
		s.ScheduleAt(1, KindDeviceTimer, 0, func(Context, any) {}, nil)
	})

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when an observer reenters ScheduleAt")
		}
	}()
	s.ScheduleAt(10, KindDeviceTimer, 0, func(Context, any) {}, nil)
}

func TestSetContextPassedToCallback(t *testing.T) {
	s := New(nil)
	type marker struct{ name string }
	want := marker{name: "ctx"}
	s.SetContext(want)

	var got Context
	s.ScheduleAt(1, KindDeviceTimer, 0, func(ctx Context, tag any) {
		got = ctx
	}, nil)
	s.Advance(1)

	m, ok := got.(marker)
	if !ok || m.name != "ctx" {
		t.Fatalf("callback context = %#v, want %#v", got, want)
	}
}
