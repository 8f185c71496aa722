/*
 * sim65 - Event scheduler: the clock that drives simulated time
 *
 * Copyright 2026, sim65 contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package scheduler is the ordered priority queue of future events on
// a monotonic cycle clock (spec §4.2). The teacher's emu/event package
// keeps a single delta-ordered linked list with one implicit priority;
// this generalizes that into a (due, priority, insertion) min-heap so
// ties resolve in registration order (P8) the way the teacher's list
// already resolved same-time ties by insertion position.
package scheduler

import (
	"container/heap"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/retrobus/sim65/emu/types"
)

// Handle identifies a scheduled event. Zero is never issued.
type Handle uint64

// Kind is an informational classification of what an event represents.
type Kind int

const (
	KindDeviceTimer Kind = iota
	KindInterruptLineChange
	KindDmaPhase
	KindAudioTick
	KindVideoScanline
	KindDeferredWork
	KindCustom
)

// Context is the opaque "active EventContext" handed to callbacks.
// The scheduler never inspects it; see emu/evctx for the concrete type
// machine.Builder installs with SetContext.
type Context any

// Callback runs when a scheduled event comes due.
type Callback func(ctx Context, tag any)

// ScheduledObserver is notified when an event is scheduled. late is
// true if due was already <= the scheduler's current time.
type ScheduledObserver func(handle Handle, due types.Cycle, kind Kind, tag any, late bool)

// ConsumedObserver is notified immediately before a due event's
// callback runs.
type ConsumedObserver func(handle Handle, due types.Cycle, kind Kind, tag any)

// CancelledObserver is notified after a pending event is cancelled
// (including the bulk cancellation Reset performs).
type CancelledObserver func(handle Handle)

type scheduledEvent struct {
	handle   Handle
	due      types.Cycle
	priority int
	seq      uint64
	kind     Kind
	cb       Callback
	tag      any
	index    int
}

type eventHeap []*scheduledEvent

func (h eventHeap) Len() int { return len(h) }

func (h eventHeap) Less(i, j int) bool {
	if h[i].due != h[j].due {
		return h[i].due < h[j].due
	}
	if h[i].priority != h[j].priority {
		return h[i].priority < h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *eventHeap) Push(x any) {
	ev := x.(*scheduledEvent)
	ev.index = len(*h)
	*h = append(*h, ev)
}

func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	ev.index = -1
	*h = old[:n-1]
	return ev
}

// Scheduler is the monotonic cycle clock plus its pending-event heap.
// Safe for the single-writer use described in spec §5: the emulation
// thread is the only caller of the mutating methods; observers may
// read but must not schedule or cancel from inside a notification
// (see inObserver).
type Scheduler struct {
	mu         sync.Mutex
	now        types.Cycle
	heap       eventHeap
	byHandle   map[Handle]*scheduledEvent
	nextHandle Handle
	nextSeq    uint64
	ctx        Context
	log        *slog.Logger

	inObserver atomic.Bool

	onScheduled []ScheduledObserver
	onConsumed  []ConsumedObserver
	onCancelled []CancelledObserver
}

// New returns an empty Scheduler with now=0. A nil logger disables the
// "late scheduling" warning; late events are still reported to
// ScheduledObserver.
func New(log *slog.Logger) *Scheduler {
	return &Scheduler{
		byHandle: make(map[Handle]*scheduledEvent),
		log:      log,
	}
}

// SetContext installs the EventContext handed to every callback.
// Called once by the machine builder after assembling the machine.
func (s *Scheduler) SetContext(ctx Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx = ctx
}

// Now returns the current simulated cycle.
func (s *Scheduler) Now() types.Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// OnScheduled registers an observer for every Schedule* call.
func (s *Scheduler) OnScheduled(fn ScheduledObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onScheduled = append(s.onScheduled, fn)
}

// OnConsumed registers an observer fired just before a due callback runs.
func (s *Scheduler) OnConsumed(fn ConsumedObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConsumed = append(s.onConsumed, fn)
}

// OnCancelled registers an observer fired when a pending event is
// cancelled or dropped by Reset.
func (s *Scheduler) OnCancelled(fn CancelledObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCancelled = append(s.onCancelled, fn)
}

func (s *Scheduler) requireNotInObserver(op string) {
	if s.inObserver.Load() {
		panic("scheduler: " + op + " called from inside an observer callback")
	}
}

// ScheduleAt arms an event for due and returns its handle. due may be
// <= Now(); it is accepted and dispatched on the next Advance, and
// reported to ScheduledObserver as "late" when that happens.
func (s *Scheduler) ScheduleAt(due types.Cycle, kind Kind, priority int, cb Callback, tag any) Handle {
	s.requireNotInObserver("ScheduleAt")
	s.mu.Lock()
	s.nextHandle++
	handle := s.nextHandle
	s.nextSeq++
	ev := &scheduledEvent{
		handle:   handle,
		due:      due,
		priority: priority,
		seq:      s.nextSeq,
		kind:     kind,
		cb:       cb,
		tag:      tag,
	}
	heap.Push(&s.heap, ev)
	s.byHandle[handle] = ev
	now := s.now
	observers := append([]ScheduledObserver(nil), s.onScheduled...)
	s.mu.Unlock()

	late := due <= now
	if late && s.log != nil {
		s.log.Warn("late scheduling", "handle", handle, "due", due, "now", now)
	}
	s.runScheduledObservers(observers, handle, due, kind, tag, late)
	return handle
}

// ScheduleAfter arms an event delta cycles after Now().
func (s *Scheduler) ScheduleAfter(delta types.Cycle, kind Kind, priority int, cb Callback, tag any) Handle {
	s.mu.Lock()
	due := s.now.Add(delta)
	s.mu.Unlock()
	return s.ScheduleAt(due, kind, priority, cb, tag)
}

// Cancel removes a pending event. Returns false if handle is unknown
// or already dispatching/dispatched.
func (s *Scheduler) Cancel(handle Handle) bool {
	s.requireNotInObserver("Cancel")
	s.mu.Lock()
	ev, ok := s.byHandle[handle]
	if !ok || ev.index < 0 {
		s.mu.Unlock()
		return false
	}
	heap.Remove(&s.heap, ev.index)
	delete(s.byHandle, handle)
	observers := append([]CancelledObserver(nil), s.onCancelled...)
	s.mu.Unlock()

	s.runCancelledObservers(observers, handle)
	return true
}

// PeekNextDue returns the soonest pending due cycle, if any.
func (s *Scheduler) PeekNextDue() (types.Cycle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.heap) == 0 {
		return 0, false
	}
	return s.heap[0].due, true
}

// Advance moves now forward by delta and dispatches every event now
// due, including ones newly scheduled by callbacks within this sweep
// (S4).
func (s *Scheduler) Advance(delta types.Cycle) {
	s.mu.Lock()
	s.now = s.now.Add(delta)
	s.mu.Unlock()
	s.dispatchDue()
}

// JumpToNextEventAndDispatch sets now to the soonest pending due
// cycle (a no-op if it is already <= now) and dispatches it, for a
// CPU's WAI fast-forward. Reports whether anything was pending.
func (s *Scheduler) JumpToNextEventAndDispatch() bool {
	due, ok := s.PeekNextDue()
	if !ok {
		return false
	}
	s.mu.Lock()
	if due > s.now {
		s.now = due
	}
	s.mu.Unlock()
	s.dispatchDue()
	return true
}

func (s *Scheduler) dispatchDue() {
	for {
		s.mu.Lock()
		if len(s.heap) == 0 || s.heap[0].due > s.now {
			s.mu.Unlock()
			return
		}
		ev := heap.Pop(&s.heap).(*scheduledEvent)
		delete(s.byHandle, ev.handle)
		ctx := s.ctx
		observers := append([]ConsumedObserver(nil), s.onConsumed...)
		s.mu.Unlock()

		s.runConsumedObservers(observers, ev.handle, ev.due, ev.kind, ev.tag)
		ev.cb(ctx, ev.tag)
	}
}

// Reset sets now to 0 and cancels every pending event, notifying
// CancelledObserver for each.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.now = 0
	handles := make([]Handle, 0, len(s.byHandle))
	for h := range s.byHandle {
		handles = append(handles, h)
	}
	s.heap = nil
	s.byHandle = make(map[Handle]*scheduledEvent)
	observers := append([]CancelledObserver(nil), s.onCancelled...)
	s.mu.Unlock()

	for _, h := range handles {
		s.runCancelledObservers(observers, h)
	}
}

func (s *Scheduler) runScheduledObservers(obs []ScheduledObserver, handle Handle, due types.Cycle, kind Kind, tag any, late bool) {
	if len(obs) == 0 {
		return
	}
	s.inObserver.Store(true)
	defer s.inObserver.Store(false)
	for _, fn := range obs {
		fn(handle, due, kind, tag, late)
	}
}

func (s *Scheduler) runConsumedObservers(obs []ConsumedObserver, handle Handle, due types.Cycle, kind Kind, tag any) {
	if len(obs) == 0 {
		return
	}
	s.inObserver.Store(true)
	defer s.inObserver.Store(false)
	for _, fn := range obs {
		fn(handle, due, kind, tag)
	}
}

func (s *Scheduler) runCancelledObservers(obs []CancelledObserver, handle Handle) {
	if len(obs) == 0 {
		return
	}
	s.inObserver.Store(true)
	defer s.inObserver.Store(false)
	for _, fn := range obs {
		fn(handle)
	}
}
