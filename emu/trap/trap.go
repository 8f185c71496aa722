/*
 * sim65 - Trap registry: ROM-interception of reads, writes, and calls
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

// Package trap is the O(1) interception registry the CPU's fetch loop
// consults before executing an opcode (spec C9). Read and Write traps
// are stored and resolved here like Call traps, but emu/bus does not
// consult the registry: its accessors never invoke a trap on their
// own. It generalizes the
// teacher's address/device-keyed channel dispatch in
// emu/sys_channel and emu/device's Device interface from a fixed
// table into a configurable, refcounted index.
package trap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/retrobus/sim65/emu/types"
)

// Operation identifies what kind of bus event a trap intercepts.
type Operation int

const (
	OpRead Operation = iota
	OpWrite
	OpCall // intercepts InstructionFetch
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "Read"
	case OpWrite:
		return "Write"
	case OpCall:
		return "Call"
	default:
		return "Unknown"
	}
}

// Category classifies a trap for bulk enable/disable.
type Category int

const (
	CategoryFirmware Category = iota
	CategoryMonitor
	CategoryBasicInterp
	CategoryBasicRuntime
	CategoryDos
	CategoryPrinterDriver
	CategoryDiskDriver
	CategoryCustom
)

// MemoryContext disambiguates overlapping traps at the same address
// across different active banks. It is opaque to the registry.
type MemoryContext string

// Well-known contexts the default resolver and convenience
// constructors use. DefaultContext is the context the default resolver
// reports whenever language-card RAM is not the active bank, so it is
// the same key as ROM. Callers may define their own.
const (
	DefaultContext  MemoryContext = "ROM"
	ROM             MemoryContext = "ROM"
	LanguageCardRam MemoryContext = "LC_RAM"
)

// Key uniquely identifies a registered trap (invariant 6).
type Key struct {
	Addr      types.Addr
	Operation Operation
	Context   MemoryContext
}

// ReturnMethod tells the CPU how to resume after a handled Call trap.
type ReturnMethod int

const (
	ReturnNone ReturnMethod = iota
	ReturnRts
	ReturnRti
)

// Result is what a handler (or TryExecute, on a miss) reports back.
type Result struct {
	Handled          bool
	CyclesConsumed   types.Cycle
	ReturnMethod     ReturnMethod
	ReturnAddress    types.Addr
	HasReturnAddress bool
}

// NotHandled is the zero-value miss result.
var NotHandled = Result{}

// HandlerArgs is what a Handler receives. CPU, Bus, and EventCtx are
// passed as any to avoid the registry importing the CPU, bus, or
// evctx packages; handlers type-assert to the concrete types their
// machine wires in.
type HandlerArgs struct {
	Addr    types.Addr
	Op      Operation
	Context MemoryContext
	Cycle   types.Cycle
	CPU     any
	Bus     any
	EventCtx any
}

// Handler runs when a trap is invoked.
type Handler func(HandlerArgs) Result

// Info describes one registered trap.
type Info struct {
	Key                  Key
	Name                 string
	Category             Category
	Handler              Handler
	Description          string
	Enabled              bool
	HasSlot              bool
	Slot                 int
	RequiresExpansionROM bool
}

// ErrDuplicateKey is returned by Register when the (addr, op, context)
// triple is already registered.
var ErrDuplicateKey = errors.New("trap: key already registered")

// ErrUnknownKey is returned by operations referencing a key that was
// never registered.
var ErrUnknownKey = errors.New("trap: unknown key")

// ContextResolver picks the active MemoryContext for addr, overriding
// the registry's built-in default.
type ContextResolver func(addr types.Addr) MemoryContext

// LCRamReadEnabledFunc reports whether the language-card RAM bank is
// currently readable, consulted by the default context resolver.
type LCRamReadEnabledFunc func() bool

// SlotInstalledFunc reports whether a card is installed in slot.
type SlotInstalledFunc func(slot int) bool

// ActiveExpansionSlotFunc reports the currently-selected expansion slot.
type ActiveExpansionSlotFunc func() (slot int, ok bool)

// InvokedObserver is notified whenever TryExecute actually invokes a
// handler.
type InvokedObserver func(key Key, result Result, cycle types.Cycle)

// Registry is the trap table plus its O(1) address-presence index.
type Registry struct {
	mu       sync.RWMutex
	traps    map[Key]*Info
	addrRefs map[types.Addr]int

	resolver            ContextResolver
	lcRamReadEnabled     LCRamReadEnabledFunc
	slotInstalled        SlotInstalledFunc
	activeExpansionSlot  ActiveExpansionSlotFunc
	invokedObservers     []InvokedObserver
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		traps:    make(map[Key]*Info),
		addrRefs: make(map[types.Addr]int),
	}
}

// SetContextResolver overrides the default active-context resolution.
func (r *Registry) SetContextResolver(fn ContextResolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolver = fn
}

// SetLCRamReadEnabledFunc wires the soft-switch state the default
// resolver consults for addresses >= 0xD000.
func (r *Registry) SetLCRamReadEnabledFunc(fn LCRamReadEnabledFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lcRamReadEnabled = fn
}

// SetSlotInstalledFunc wires the slot-card presence check
// slot-dependent traps consult.
func (r *Registry) SetSlotInstalledFunc(fn SlotInstalledFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slotInstalled = fn
}

// SetActiveExpansionSlotFunc wires the slot manager's active
// expansion-ROM slot, consulted by traps with RequiresExpansionROM.
func (r *Registry) SetActiveExpansionSlotFunc(fn ActiveExpansionSlotFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeExpansionSlot = fn
}

// OnTrapInvoked registers an observer fired after every handler
// invocation, whether or not the handler reports Handled.
func (r *Registry) OnTrapInvoked(fn InvokedObserver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invokedObservers = append(r.invokedObservers, fn)
}

// Register adds a new trap. Fails with ErrDuplicateKey if the
// (addr, op, context) triple already has a handler.
func (r *Registry) Register(addr types.Addr, op Operation, memCtx MemoryContext, name string, category Category, handler Handler, description string) error {
	return r.register(Info{
		Key:         Key{Addr: addr, Operation: op, Context: memCtx},
		Name:        name,
		Category:    category,
		Handler:     handler,
		Description: description,
		Enabled:     true,
	})
}

// RegisterCall is the default-context convenience wrapper for a Call
// (instruction-fetch) trap.
func (r *Registry) RegisterCall(addr types.Addr, name string, category Category, handler Handler, description string) error {
	return r.Register(addr, OpCall, DefaultContext, name, category, handler, description)
}

// RegisterSlotTrap binds a trap to a specific slot card. Addresses in
// [0xC800, 0xCFFF] automatically require the expansion-ROM window to
// be selected for that slot.
func (r *Registry) RegisterSlotTrap(addr types.Addr, op Operation, memCtx MemoryContext, name string, category Category, slot int, handler Handler, description string) error {
	info := Info{
		Key:         Key{Addr: addr, Operation: op, Context: memCtx},
		Name:        name,
		Category:    category,
		Handler:     handler,
		Description: description,
		Enabled:     true,
		HasSlot:     true,
		Slot:        slot,
	}
	if addr >= 0xC800 && addr <= 0xCFFF {
		info.RequiresExpansionROM = true
	}
	return r.register(info)
}

// RegisterLanguageCardTrap is the convenience wrapper for a trap that
// only fires while the language-card RAM bank is the active context.
func (r *Registry) RegisterLanguageCardTrap(addr types.Addr, op Operation, name string, category Category, handler Handler, description string) error {
	return r.Register(addr, op, LanguageCardRam, name, category, handler, description)
}

func (r *Registry) register(info Info) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.traps[info.Key]; exists {
		return fmt.Errorf("%w: %+v", ErrDuplicateKey, info.Key)
	}
	stored := info
	r.traps[info.Key] = &stored
	r.addrRefs[info.Key.Addr]++
	return nil
}

// Unregister removes a single trap. Reports whether it existed.
func (r *Registry) Unregister(key Key) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.traps[key]; !ok {
		return false
	}
	r.removeLocked(key)
	return true
}

func (r *Registry) removeLocked(key Key) {
	delete(r.traps, key)
	r.addrRefs[key.Addr]--
	if r.addrRefs[key.Addr] <= 0 {
		delete(r.addrRefs, key.Addr)
	}
}

// UnregisterSlot removes every trap bound to slot, returning the
// count removed.
func (r *Registry) UnregisterSlot(slot int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []Key
	for k, info := range r.traps {
		if info.HasSlot && info.Slot == slot {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		r.removeLocked(k)
	}
	return len(keys)
}

// UnregisterContext removes every trap registered under memCtx,
// returning the count removed.
func (r *Registry) UnregisterContext(memCtx MemoryContext) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var keys []Key
	for k := range r.traps {
		if k.Context == memCtx {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		r.removeLocked(k)
	}
	return len(keys)
}

// ClearAll removes every registered trap.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traps = make(map[Key]*Info)
	r.addrRefs = make(map[types.Addr]int)
}

// SetCategoryEnabled toggles the Enabled flag on every trap in
// category, returning the count changed.
func (r *Registry) SetCategoryEnabled(category Category, enabled bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, info := range r.traps {
		if info.Category == category && info.Enabled != enabled {
			info.Enabled = enabled
			count++
		}
	}
	return count
}

// EnableKey toggles a single trap's Enabled flag. Fails with
// ErrUnknownKey if key was never registered.
func (r *Registry) EnableKey(key Key, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, ok := r.traps[key]
	if !ok {
		return fmt.Errorf("%w: %+v", ErrUnknownKey, key)
	}
	info.Enabled = enabled
	return nil
}

// ContainsAddress is the O(1) fast path the CPU's fetch loop
// consults: true iff at least one trap (any operation, any context,
// enabled or not) is registered at addr (invariant 6).
func (r *Registry) ContainsAddress(addr types.Addr) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.addrRefs[addr] > 0
}

func (r *Registry) resolveContext(addr types.Addr) MemoryContext {
	if r.resolver != nil {
		return r.resolver(addr)
	}
	if addr >= 0xD000 {
		enabled := r.lcRamReadEnabled != nil && r.lcRamReadEnabled()
		if enabled {
			return LanguageCardRam
		}
	}
	return ROM
}

// TryExecute resolves the active memory context for addr, looks up
// (addr, op, context), and — if found, enabled, and (for
// slot-dependent traps) the slot preconditions hold — invokes the
// handler (spec §4.7).
func (r *Registry) TryExecute(addr types.Addr, op Operation, cycle types.Cycle, cpu, busRef, eventCtx any) Result {
	r.mu.RLock()
	memCtx := r.resolveContext(addr)
	stored, ok := r.traps[Key{Addr: addr, Operation: op, Context: memCtx}]
	var info Info
	if ok {
		info = *stored // snapshot to avoid racing with concurrent EnableKey
	}
	observers := append([]InvokedObserver(nil), r.invokedObservers...)
	slotInstalled := r.slotInstalled
	activeExpansionSlot := r.activeExpansionSlot
	r.mu.RUnlock()

	if !ok || !info.Enabled {
		return NotHandled
	}
	if info.HasSlot {
		if slotInstalled == nil || !slotInstalled(info.Slot) {
			return NotHandled
		}
		if info.RequiresExpansionROM {
			if activeExpansionSlot == nil {
				return NotHandled
			}
			slot, present := activeExpansionSlot()
			if !present || slot != info.Slot {
				return NotHandled
			}
		}
	}

	result := info.Handler(HandlerArgs{
		Addr:     addr,
		Op:       op,
		Context:  memCtx,
		Cycle:    cycle,
		CPU:      cpu,
		Bus:      busRef,
		EventCtx: eventCtx,
	})
	for _, fn := range observers {
		fn(info.Key, result, cycle)
	}
	return result
}
