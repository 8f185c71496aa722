/*
 * sim65 - Signal fabric: interrupts, ready, DMA, reset
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

// Package signal is the reference-counted assertion fabric for the
// machine's control lines (IRQ, NMI, Reset, Ready, DMA request, Sync)
// plus the CPU cycle accumulator. It generalizes the teacher's
// per-device status byte (emu/device.Device's channel-status
// constants) into a proper level-sensitive assertion set per line,
// and its own ad hoc cycle bookkeeping in emu/cpu into named counters.
package signal

import "sync"

// Line identifies one of the machine's control lines.
type Line int

const (
	Irq Line = iota
	Nmi
	Reset
	Rdy
	DmaReq
	Sync
	numLines
)

func (l Line) String() string {
	switch l {
	case Irq:
		return "IRQ"
	case Nmi:
		return "NMI"
	case Reset:
		return "RESET"
	case Rdy:
		return "RDY"
	case DmaReq:
		return "DMAREQ"
	case Sync:
		return "SYNC"
	default:
		return "UNKNOWN"
	}
}

func (l Line) valid() bool { return l >= Irq && l < numLines }

// Fabric tracks, per line, the set of device ids currently asserting
// it, plus NMI's one-shot rising-edge latch and the CPU's fetch/
// execute cycle counters.
type Fabric struct {
	mu             sync.Mutex
	asserted       [numLines]map[int]struct{}
	nmiEdgePending bool
	fetches        uint64
	executes       uint64
}

// New returns a Fabric with every line deasserted.
func New() *Fabric {
	f := &Fabric{}
	for i := range f.asserted {
		f.asserted[i] = make(map[int]struct{})
	}
	return f
}

// Assert records id as asserting line. Idempotent. For Nmi, a
// transition from no asserters to at least one latches the pending
// edge flag exactly once (invariant per P10) until acknowledged.
func (f *Fabric) Assert(line Line, id int, _ uint64) {
	if !line.valid() {
		panic("signal: invalid line")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	wasEmpty := len(f.asserted[line]) == 0
	f.asserted[line][id] = struct{}{}
	if line == Nmi && wasEmpty {
		f.nmiEdgePending = true
	}
}

// Deassert removes id from line's asserters. A no-op if id was never
// asserting (invariant 7).
func (f *Fabric) Deassert(line Line, id int, _ uint64) {
	if !line.valid() {
		panic("signal: invalid line")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.asserted[line], id)
}

// IsAsserted reports whether at least one device currently asserts line.
func (f *Fabric) IsAsserted(line Line) bool {
	if !line.valid() {
		panic("signal: invalid line")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.asserted[line]) > 0
}

// Sample returns true if line reads as asserted at an instruction
// boundary: the assertion set is non-empty, or (for Nmi) the latched
// edge is still pending. Infallible.
func (f *Fabric) Sample(line Line) bool {
	if !line.valid() {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.asserted[line]) > 0 {
		return true
	}
	return line == Nmi && f.nmiEdgePending
}

// AcknowledgeNMI clears the pending NMI edge and reports whether it
// had been set (P10: clears exactly once per edge).
func (f *Fabric) AcknowledgeNMI() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	was := f.nmiEdgePending
	f.nmiEdgePending = false
	return was
}

// InstructionFetched accumulates n cycles into the fetch counter.
func (f *Fabric) InstructionFetched(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches += n
}

// InstructionExecuted accumulates n cycles into the execute counter.
func (f *Fabric) InstructionExecuted(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executes += n
}

// TotalCPUCycles returns fetches+executes.
func (f *Fabric) TotalCPUCycles() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches + f.executes
}

// Reset clears every assertion set, the NMI edge, and both counters.
func (f *Fabric) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.asserted {
		f.asserted[i] = make(map[int]struct{})
	}
	f.nmiEdgePending = false
	f.fetches = 0
	f.executes = 0
}

// ResetCycleCounters clears only the fetch/execute counters.
func (f *Fabric) ResetCycleCounters() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches = 0
	f.executes = 0
}
