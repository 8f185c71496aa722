package evctx

import (
	"testing"

	"github.com/retrobus/sim65/emu/scheduler"
)

type fakeDeviceRegistry struct{ nextID int }

func TestRegisterAndGetComponent(t *testing.T) {
	ctx := New(nil, nil, nil)
	reg := &fakeDeviceRegistry{nextID: 1}
	RegisterComponent(ctx, "device-registry", reg)

	got, ok := GetComponent[*fakeDeviceRegistry](ctx, "device-registry")
	if !ok || got != reg {
		t.Fatalf("GetComponent = (%v, %v), want (%v, true)", got, ok, reg)
	}
}

func TestGetComponentMissingKey(t *testing.T) {
	ctx := New(nil, nil, nil)
	if _, ok := GetComponent[*fakeDeviceRegistry](ctx, "nope"); ok {
		t.Fatal("expected ok=false for an unregistered key")
	}
}

func TestGetComponentWrongType(t *testing.T) {
	ctx := New(nil, nil, nil)
	RegisterComponent(ctx, "k", 42)
	if _, ok := GetComponent[*fakeDeviceRegistry](ctx, "k"); ok {
		t.Fatal("expected ok=false when the stored value isn't a T")
	}
}

// TestContextSatisfiesSchedulerContext proves evctx.Context can flow
// through the scheduler without the scheduler package importing evctx.
func TestContextSatisfiesSchedulerContext(t *testing.T) {
	s := scheduler.New(nil)
	ctx := New(s, nil, nil)
	s.SetContext(ctx)

	var seen scheduler.Context
	s.ScheduleAt(1, scheduler.KindDeviceTimer, 0, func(c scheduler.Context, _ any) {
		seen = c
	}, nil)
	s.Advance(1)

	got, ok := seen.(*Context)
	if !ok || got != ctx {
		t.Fatalf("callback context = %#v, want %#v", seen, ctx)
	}
}
