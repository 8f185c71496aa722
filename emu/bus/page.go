/*
 * sim65 - Page table / main bus
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
	"log/slog"
	"sync"

	"github.com/retrobus/sim65/emu/types"
)

// PageEntry is the resolved mapping for one 4 KiB page. Target == nil
// means unmapped: reads yield the floating bus, writes are no-ops.
type PageEntry struct {
	DeviceID     int
	Region       types.RegionTag
	Perms        types.PagePerms
	Caps         types.TargetCaps
	Target       BusTarget
	PhysicalBase types.Addr
}

// ErrUnalignedRegion is returned when a base or size is not a
// PageSize multiple.
var ErrUnalignedRegion = errors.New("bus: base/size must be a multiple of the page size")

// ErrOutOfRange is returned when a page index or address range falls
// outside the configured address space.
var ErrOutOfRange = errors.New("bus: range exceeds address space")

// MainBus is the paged virtual-to-physical translation table plus the
// layer and swap-group overlays that feed it (spec C4-C8). It
// generalizes the teacher's masked flat-array emu/memory into a
// polymorphic per-page target dispatch.
type MainBus struct {
	mu     sync.RWMutex
	width  uint
	pages  []PageEntry
	base   []PageEntry // builder-supplied entries before layer/swap overlay
	layers *layerSet
	swaps  *swapGroupSet
	log    *slog.Logger
}

// New builds an empty MainBus for the given address-space width in
// bits (12-32 inclusive).
func New(width uint, log *slog.Logger) (*MainBus, error) {
	if width < 12 || width > 32 {
		return nil, fmt.Errorf("bus: address width %d out of range [12,32]", width)
	}
	count := 1 << (width - PageShift)
	b := &MainBus{
		width:  width,
		pages:  make([]PageEntry, count),
		base:   make([]PageEntry, count),
		layers: newLayerSet(),
		swaps:  newSwapGroupSet(),
		log:    log,
	}
	return b, nil
}

// Width returns the configured address-space width in bits.
func (b *MainBus) Width() uint { return b.width }

// PageCount returns the number of 4 KiB pages in the address space.
func (b *MainBus) PageCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pages)
}

func (b *MainBus) pageIndex(addr types.Addr) int { return int(addr >> PageShift) }

func aligned(v types.Addr) bool { return v&(PageSize-1) == 0 }

// GetPageEntry returns the current effective entry covering addr
// (invariant 1: identical for every address in the same page).
func (b *MainBus) GetPageEntry(addr types.Addr) PageEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pages[b.pageIndex(addr)]
}

// RemapPage atomically replaces the base entry at index, then
// recomputes the effective entry through any active layer/swap
// overlay.
func (b *MainBus) RemapPage(index int, entry PageEntry) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if index < 0 || index >= len(b.base) {
		return ErrOutOfRange
	}
	b.base[index] = entry
	b.recomputeLocked(index)
	return nil
}

// RemapPageRange replaces the base entries covering [base, base+size)
// with entry, incrementing PhysicalBase by PageSize per page.
func (b *MainBus) RemapPageRange(base types.Addr, size types.Addr, entry PageEntry) error {
	if !aligned(base) || !aligned(size) {
		return ErrUnalignedRegion
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	first := b.pageIndex(base)
	count := int(size >> PageShift)
	if first < 0 || first+count > len(b.base) {
		return ErrOutOfRange
	}
	for i := 0; i < count; i++ {
		e := entry
		e.PhysicalBase = entry.PhysicalBase + types.Addr(i)*PageSize
		b.base[first+i] = e
		b.recomputeLocked(first + i)
	}
	return nil
}

// MapRegion is the builder-time convenience for memory-configuration
// steps: maps [base, base+size) onto target starting at physicalBase, in
// page-sized physical strides, with uniform perms/caps/region/device.
func (b *MainBus) MapRegion(base, size types.Addr, target BusTarget, physicalBase types.Addr, perms types.PagePerms, caps types.TargetCaps, region types.RegionTag, deviceID int) error {
	return b.RemapPageRange(base, size, PageEntry{
		DeviceID:     deviceID,
		Region:       region,
		Perms:        perms,
		Caps:         caps,
		Target:       target,
		PhysicalBase: physicalBase,
	})
}

// recomputeLocked rebuilds pages[index] from base[index] folded with
// the highest-priority active layer covering it, then any active
// swap-group selection. Caller holds b.mu.
func (b *MainBus) recomputeLocked(index int) {
	entry := b.base[index]
	addr := types.Addr(index) << PageShift
	if m, ok := b.layers.effectiveMapping(addr); ok {
		entry = PageEntry{
			DeviceID:     m.DeviceID,
			Region:       m.Region,
			Perms:        m.Perms,
			Caps:         m.Caps,
			Target:       m.Target,
			PhysicalBase: m.PhysicalBase + (addr - m.VirtualBase),
		}
	}
	if v, ok := b.swaps.activeVariantFor(addr); ok {
		entry.Target = v.Target
		entry.PhysicalBase = v.PhysicalBase + (addr - v.groupBase)
		entry.Perms = v.Perms
	}
	b.pages[index] = entry
}

// recomputeRangeLocked recomputes every page in [base, base+size).
func (b *MainBus) recomputeRangeLocked(base, size types.Addr) {
	first := b.pageIndex(base)
	count := int(size >> PageShift)
	for i := 0; i < count; i++ {
		b.recomputeLocked(first + i)
	}
}

// recomputeAllLocked recomputes every page. Layer activation and
// deactivation do not call it; they recompute only the layer's own
// span through recomputeRangeLocked.
func (b *MainBus) recomputeAllLocked() {
	for i := range b.pages {
		b.recomputeLocked(i)
	}
}
