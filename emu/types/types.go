/*
 * sim65 - Core value types shared across the bus fabric
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

// Package types holds the primitive value types threaded through every
// layer of the bus fabric: addresses, cycle counts, permission and
// capability sets, and the access/result records the bus hands back.
package types

import "fmt"

// Addr is a virtual or physical address, sized to the configured
// address-space width (12-32 bits). The type itself is always 32 bits
// wide; callers mask to the configured width.
type Addr uint32

// Cycle is a monotonic, non-wrapping count of simulated cycles.
type Cycle uint64

// Add returns c+n. Cycle never wraps under normal operation (invariant 5).
func (c Cycle) Add(n Cycle) Cycle { return c + n }

// Sub returns c-n, saturating at zero rather than wrapping.
func (c Cycle) Sub(n Cycle) Cycle {
	if n > c {
		return 0
	}
	return c - n
}

// PagePerms is a bitset over {Read, Write, Execute}.
type PagePerms uint8

const (
	PermRead PagePerms = 1 << iota
	PermWrite
	PermExecute
)

// PermRWX is shorthand for a page with full permissions.
const PermRWX = PermRead | PermWrite | PermExecute

// Has reports whether all bits of flags are set in p.
func (p PagePerms) Has(flags PagePerms) bool { return p&flags == flags }

func (p PagePerms) String() string {
	buf := [3]byte{'-', '-', '-'}
	if p.Has(PermRead) {
		buf[0] = 'r'
	}
	if p.Has(PermWrite) {
		buf[1] = 'w'
	}
	if p.Has(PermExecute) {
		buf[2] = 'x'
	}
	return string(buf[:])
}

// TargetCaps is a bitset over the capabilities a BusTarget advertises.
type TargetCaps uint8

const (
	CapSupportsPeek TargetCaps = 1 << iota
	CapSupportsPoke
	CapSupportsWide
	CapHasSideEffects
	CapTimingSensitive
)

// Has reports whether all bits of flags are set in c.
func (c TargetCaps) Has(flags TargetCaps) bool { return c&flags == flags }

// RegionTag is a purely informational classification carried through
// bus results for debugging and diagnostics.
type RegionTag int

const (
	RegionRAM RegionTag = iota
	RegionROM
	RegionIO
	RegionSlot
	RegionComposite
	RegionOther
)

func (r RegionTag) String() string {
	switch r {
	case RegionRAM:
		return "RAM"
	case RegionROM:
		return "ROM"
	case RegionIO:
		return "IO"
	case RegionSlot:
		return "Slot"
	case RegionComposite:
		return "Composite"
	default:
		return "Other"
	}
}

// AccessIntent describes why a bus access is happening. The Debug
// variants bypass permission checks entirely.
type AccessIntent int

const (
	IntentDataRead AccessIntent = iota
	IntentDataWrite
	IntentInstructionFetch
	IntentDebugRead
	IntentDebugWrite
)

// IsDebug reports whether this intent bypasses permission enforcement.
func (i AccessIntent) IsDebug() bool {
	return i == IntentDebugRead || i == IntentDebugWrite
}

func (i AccessIntent) String() string {
	switch i {
	case IntentDataRead:
		return "DataRead"
	case IntentDataWrite:
		return "DataWrite"
	case IntentInstructionFetch:
		return "InstructionFetch"
	case IntentDebugRead:
		return "DebugRead"
	case IntentDebugWrite:
		return "DebugWrite"
	default:
		return "Unknown"
	}
}

// BusAccessMode selects whether a wide (16/32-bit) access may be
// satisfied atomically or must be simulated byte-by-byte.
type BusAccessMode int

const (
	ModeAtomic BusAccessMode = iota
	ModeDecomposed
)

// AccessFlags are extra per-access modifiers.
type AccessFlags uint8

const (
	// FlagForceDecompose always decomposes a wide access into byte accesses.
	FlagForceDecompose AccessFlags = 1 << iota
	// FlagAtomicRequested asks for a native wide access when the target supports it.
	FlagAtomicRequested
)

// Has reports whether all bits of flags are set in f.
func (f AccessFlags) Has(flags AccessFlags) bool { return f&flags == flags }

// BusAccess describes a single bus transaction.
type BusAccess struct {
	Address  Addr
	Width    uint8 // 8, 16, or 32
	Intent   AccessIntent
	Mode     BusAccessMode
	SourceID int
	Cycle    Cycle
	Flags    AccessFlags
}

// FloatingBus is the value returned when no device drives the data lines.
const FloatingBus uint8 = 0xFF

// FaultKind enumerates the BusFault sum type's variants.
type FaultKind int

const (
	FaultUnmapped FaultKind = iota
	FaultPermissionDenied
	FaultBusError
)

func (k FaultKind) String() string {
	switch k {
	case FaultUnmapped:
		return "Unmapped"
	case FaultPermissionDenied:
		return "PermissionDenied"
	default:
		return "BusError"
	}
}

// PermissionReason qualifies a FaultPermissionDenied.
type PermissionReason int

const (
	NoRead PermissionReason = iota
	NoWrite
	NoExecute
)

func (r PermissionReason) String() string {
	switch r {
	case NoRead:
		return "NoRead"
	case NoWrite:
		return "NoWrite"
	default:
		return "NoExecute"
	}
}

// BusFault is the error payload of a failed BusResult.
type BusFault struct {
	Kind     FaultKind
	Reason   PermissionReason // meaningful iff Kind == FaultPermissionDenied
	Detail   string           // meaningful iff Kind == FaultBusError
	Access   BusAccess
	DeviceID int
	Region   RegionTag
}

func (f BusFault) Error() string {
	switch f.Kind {
	case FaultUnmapped:
		return fmt.Sprintf("bus: unmapped access at %#x", f.Access.Address)
	case FaultPermissionDenied:
		return fmt.Sprintf("bus: permission denied (%s) at %#x", f.Reason, f.Access.Address)
	default:
		return fmt.Sprintf("bus: error at %#x: %s", f.Access.Address, f.Detail)
	}
}

// Unit is the empty payload used for BusResult instances returned by
// write operations.
type Unit struct{}

// BusResult is the outcome of a fallible bus access: either a Success
// carrying a value, source device and region, or a Fault.
type BusResult[T any] struct {
	OK            bool
	Value         T
	SourceID      int
	Region        RegionTag
	CyclesCharged Cycle
	Fault         BusFault
}

// Success builds a successful BusResult.
func Success[T any](value T, sourceID int, region RegionTag, cycles Cycle) BusResult[T] {
	return BusResult[T]{OK: true, Value: value, SourceID: sourceID, Region: region, CyclesCharged: cycles}
}

// Failure builds a faulted BusResult.
func Failure[T any](fault BusFault, cycles Cycle) BusResult[T] {
	return BusResult[T]{OK: false, Fault: fault, CyclesCharged: cycles}
}

// WriteResult is the fallible result of a write access.
type WriteResult = BusResult[Unit]
