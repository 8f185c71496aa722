/*
 * sim65 - Machine: runtime and lifecycle
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

package machine

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/retrobus/sim65/emu/bus"
	"github.com/retrobus/sim65/emu/evctx"
	"github.com/retrobus/sim65/emu/scheduler"
	"github.com/retrobus/sim65/emu/signal"
	"github.com/retrobus/sim65/emu/trap"
	"github.com/retrobus/sim65/emu/types"
)

// MachineState is the machine's run state.
type MachineState int

const (
	StateStopped MachineState = iota
	StateRunning
	StatePaused
)

func (s MachineState) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateRunning:
		return "Running"
	case StatePaused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// resetSignalSourceID is the device id the machine itself uses when
// asserting/deasserting Reset during reset().
const resetSignalSourceID = -1

// StateChangedObserver is notified after every state transition.
type StateChangedObserver func(old, new MachineState)

// BreakpointHitObserver is notified when Run() stops at a breakpoint.
type BreakpointHitObserver func(addr types.Addr)

type slotCardEntry struct {
	slot   int
	device Device
}

// Machine bundles the CPU with the bus fabric, scheduler, signal
// fabric, and trap registry it was built against, plus the component
// bucket shared with its EventContext (spec C10-C11; the
// "component bucket" spec.md's §4.8 gives Machine and the one
// EventContext's own §2 overview entry names are the same registry,
// since devices only ever see the Machine through its EventContext).
type Machine struct {
	log       *slog.Logger
	cpu       CPU
	bus       *bus.MainBus
	scheduler *scheduler.Scheduler
	signals   *signal.Fabric
	traps     *trap.Registry
	ctx       *evctx.Context
	registry  *deviceRegistry

	devices    []Device
	slotCards  []slotCardEntry
	layerNames []string

	stateMu       sync.Mutex
	state         MachineState
	stopRequested atomic.Bool

	observerMu            sync.Mutex
	stateChangedObservers  []StateChangedObserver
	breakpointObservers    []BreakpointHitObserver

	breakpointMu sync.RWMutex
	breakpoints  map[types.Addr]struct{}
}

// Bus returns the machine's main bus.
func (m *Machine) Bus() *bus.MainBus { return m.bus }

// Scheduler returns the machine's event scheduler.
func (m *Machine) Scheduler() *scheduler.Scheduler { return m.scheduler }

// Signals returns the machine's signal fabric.
func (m *Machine) Signals() *signal.Fabric { return m.signals }

// Traps returns the machine's trap registry.
func (m *Machine) Traps() *trap.Registry { return m.traps }

// EventContext returns the bundle passed to device callbacks.
func (m *Machine) EventContext() *evctx.Context { return m.ctx }

// CPU returns the machine's CPU.
func (m *Machine) CPU() CPU { return m.cpu }

// State returns the current run state.
func (m *Machine) State() MachineState {
	m.stateMu.Lock()
	defer m.stateMu.Unlock()
	return m.state
}

func (m *Machine) setState(next MachineState) {
	m.stateMu.Lock()
	old := m.state
	m.state = next
	m.stateMu.Unlock()
	if old == next {
		return
	}
	m.log.Debug("machine state transition", "from", old, "to", next)
	m.observerMu.Lock()
	observers := append([]StateChangedObserver(nil), m.stateChangedObservers...)
	m.observerMu.Unlock()
	for _, fn := range observers {
		fn(old, next)
	}
}

// OnStateChanged registers an observer fired on every state transition.
func (m *Machine) OnStateChanged(fn StateChangedObserver) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.stateChangedObservers = append(m.stateChangedObservers, fn)
}

// OnBreakpointHit registers an observer fired when Run() stops at a breakpoint.
func (m *Machine) OnBreakpointHit(fn BreakpointHitObserver) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.breakpointObservers = append(m.breakpointObservers, fn)
}

func (m *Machine) notifyBreakpoint(addr types.Addr) {
	m.observerMu.Lock()
	observers := append([]BreakpointHitObserver(nil), m.breakpointObservers...)
	m.observerMu.Unlock()
	for _, fn := range observers {
		fn(addr)
	}
}

// AddBreakpoint arms a breakpoint at addr, checked between instructions
// while Run() is looping.
func (m *Machine) AddBreakpoint(addr types.Addr) {
	m.breakpointMu.Lock()
	defer m.breakpointMu.Unlock()
	m.breakpoints[addr] = struct{}{}
}

// RemoveBreakpoint disarms a previously-armed breakpoint. A no-op if
// addr was never armed.
func (m *Machine) RemoveBreakpoint(addr types.Addr) {
	m.breakpointMu.Lock()
	defer m.breakpointMu.Unlock()
	delete(m.breakpoints, addr)
}

func (m *Machine) isBreakpoint(addr types.Addr) bool {
	m.breakpointMu.RLock()
	defer m.breakpointMu.RUnlock()
	_, ok := m.breakpoints[addr]
	return ok
}

func (m *Machine) slotInstalled(slot int) bool {
	for _, sc := range m.slotCards {
		if sc.slot == slot {
			return true
		}
	}
	return false
}

// Reset asserts Reset on the signal bus, resets the CPU (which
// re-reads its reset vector through the bus) and the scheduler, then
// deasserts Reset and transitions to Stopped (spec §4.8 Lifecycle).
func (m *Machine) Reset() {
	m.signals.Assert(signal.Reset, resetSignalSourceID, uint64(m.scheduler.Now()))
	m.cpu.Reset()
	m.scheduler.Reset()
	m.signals.Deassert(signal.Reset, resetSignalSourceID, uint64(m.scheduler.Now()))
	m.setState(StateStopped)
}

// Run loops cpu.Step() -> scheduler.advance(cycles) until Stop() is
// called or a breakpoint is hit. When the CPU reports it is waiting
// for an interrupt, time jumps to the next scheduled event instead of
// advancing by the step's cycle count, and the loop continues.
func (m *Machine) Run() {
	m.stopRequested.Store(false)
	m.setState(StateRunning)
	for {
		if m.stopRequested.Load() {
			break
		}
		if pc := m.cpu.PC(); m.isBreakpoint(pc) {
			m.setState(StatePaused)
			m.notifyBreakpoint(pc)
			return
		}
		cycles, waiting := m.cpu.Step()
		if waiting {
			m.scheduler.JumpToNextEventAndDispatch()
		} else {
			m.scheduler.Advance(cycles)
		}
	}
	m.setState(StateStopped)
}

// Step executes exactly one instruction and leaves the machine Paused.
func (m *Machine) Step() {
	m.setState(StateRunning)
	cycles, waiting := m.cpu.Step()
	if waiting {
		m.scheduler.JumpToNextEventAndDispatch()
	} else {
		m.scheduler.Advance(cycles)
	}
	m.setState(StatePaused)
}

// Stop requests a graceful halt, observed by Run() between instructions.
func (m *Machine) Stop() {
	m.stopRequested.Store(true)
}
