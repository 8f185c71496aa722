/*
 * sim65 - Swap groups: mutually-exclusive bank variants
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

package bus

import (
	"errors"
	"fmt"
	"sync"

	"github.com/retrobus/sim65/emu/types"
)

// ErrUnknownSwapGroup is returned for operations on an undeclared group id.
var ErrUnknownSwapGroup = errors.New("bus: unknown swap group")

// ErrDuplicateSwapGroup is returned when a group id is reused.
var ErrDuplicateSwapGroup = errors.New("bus: duplicate swap group")

// ErrUnknownVariant is returned by SelectVariant for an unregistered
// variant name (spec's KeyNotFound).
var ErrUnknownVariant = errors.New("bus: unknown swap variant")

// SwapVariant is one selectable bank within a SwapGroup.
type SwapVariant struct {
	Name         string
	Target       BusTarget
	PhysicalBase types.Addr
	Perms        types.PagePerms

	groupBase types.Addr // set by SwapGroup, used to compute per-page physical offsets
}

type swapGroup struct {
	id       string
	name     string
	base     types.Addr
	size     types.Addr
	variants map[string]SwapVariant
	active   string
}

// swapGroupSet holds every declared swap group. Builder-time variant
// registration takes its own lock since multiple builder goroutines
// may populate variants concurrently during setup (spec §5); once
// running, only the emulation thread selects variants.
type swapGroupSet struct {
	mu     sync.Mutex
	groups map[string]*swapGroup
}

func newSwapGroupSet() *swapGroupSet {
	return &swapGroupSet{groups: make(map[string]*swapGroup)}
}

func (ss *swapGroupSet) create(id, name string, base, size types.Addr) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if _, exists := ss.groups[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSwapGroup, id)
	}
	ss.groups[id] = &swapGroup{id: id, name: name, base: base, size: size, variants: make(map[string]SwapVariant)}
	return nil
}

func (ss *swapGroupSet) addVariant(id string, v SwapVariant) error {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	g, ok := ss.groups[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSwapGroup, id)
	}
	v.groupBase = g.base
	g.variants[v.Name] = v
	return nil
}

func (ss *swapGroupSet) selectVariant(id, name string) (types.Addr, types.Addr, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	g, ok := ss.groups[id]
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownSwapGroup, id)
	}
	if _, ok := g.variants[name]; !ok {
		return 0, 0, fmt.Errorf("%w: %s", ErrUnknownVariant, name)
	}
	g.active = name
	return g.base, g.size, nil
}

func (ss *swapGroupSet) activeVariantName(id string) (string, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	g, ok := ss.groups[id]
	if !ok || g.active == "" {
		return "", false
	}
	return g.active, true
}

// activeVariantFor returns the active variant (if any) whose group
// covers addr, with groupBase set so callers can compute a per-page
// physical offset.
func (ss *swapGroupSet) activeVariantFor(addr types.Addr) (SwapVariant, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	for _, g := range ss.groups {
		if g.active == "" {
			continue
		}
		if addr < g.base || addr >= g.base+g.size {
			continue
		}
		return g.variants[g.active], true
	}
	return SwapVariant{}, false
}

// CreateSwapGroup declares a group over [base, base+size).
func (b *MainBus) CreateSwapGroup(id, name string, base, size types.Addr) error {
	if !aligned(base) || !aligned(size) {
		return ErrUnalignedRegion
	}
	return b.swaps.create(id, name, base, size)
}

// AddSwapVariant registers a selectable variant within a group.
func (b *MainBus) AddSwapVariant(groupID string, v SwapVariant) error {
	return b.swaps.addVariant(groupID, v)
}

// SelectVariant atomically rewrites every page entry in the group's
// range to the named variant, preserving device id, region, and caps
// from the entry currently resolved there (before the swap overlay).
func (b *MainBus) SelectVariant(groupID, variantName string) error {
	base, size, err := b.swaps.selectVariant(groupID, variantName)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recomputeRangeLocked(base, size)
	return nil
}

// ActiveVariant returns the name of the currently selected variant in
// a group, if any.
func (b *MainBus) ActiveVariant(groupID string) (string, bool) {
	return b.swaps.activeVariantName(groupID)
}
