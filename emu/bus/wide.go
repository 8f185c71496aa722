/*
 * sim65 - Wide (16/32-bit) bus access and the decomposition policy
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

import "github.com/retrobus/sim65/emu/types"

func (b *MainBus) crossesPage(addr types.Addr, widthBytes types.Addr) bool {
	return (addr & (PageSize - 1) + widthBytes) > PageSize
}

// shouldDecompose implements the six-step wide-access policy (§4.4).
func shouldDecompose(crosses bool, access types.BusAccess, supportsWide bool) bool {
	if crosses {
		return true
	}
	if access.Flags.Has(types.FlagForceDecompose) {
		return true
	}
	if access.Flags.Has(types.FlagAtomicRequested) && supportsWide {
		return false
	}
	if access.Mode == types.ModeDecomposed {
		return true
	}
	if supportsWide {
		return false
	}
	return true
}

// wideTargetAt reports whether the single page covering addr has a
// resolvable leaf supporting native wide access.
func (b *MainBus) wideTargetAt(addr types.Addr, intent types.AccessIntent) (WideTarget, bool) {
	b.mu.RLock()
	entry := b.pages[b.pageIndex(addr)]
	b.mu.RUnlock()
	if entry.Target == nil {
		return nil, false
	}
	offset := addr & (PageSize - 1)
	leaf, _, ok := resolveLeaf(entry.Target, offset, intent)
	if !ok {
		return nil, false
	}
	wide, ok := leaf.(WideTarget)
	if !ok || !wide.Caps().Has(types.CapSupportsWide) {
		return nil, false
	}
	return wide, true
}

func widthBytesOf(bits int) types.Addr { return types.Addr(bits / 8) }

// tryReadWideDecomposed reads widthBytes little-endian bytes via
// TryRead8, stopping at the first fault. Cycles charged reflect only
// the byte lanes that completed successfully (Open Question 4).
func (b *MainBus) tryReadWideDecomposed(access types.BusAccess, widthBytes types.Addr) (uint32, types.BusFault, bool, types.Cycle, int, types.RegionTag) {
	var value uint32
	var charged types.Cycle
	var sourceID int
	var region types.RegionTag
	for i := types.Addr(0); i < widthBytes; i++ {
		lane := access
		lane.Address = access.Address + i
		res := b.TryRead8(lane)
		if !res.OK {
			return value, res.Fault, true, charged, sourceID, region
		}
		value |= uint32(res.Value) << (8 * i)
		charged += res.CyclesCharged
		sourceID = res.SourceID
		region = res.Region
	}
	return value, types.BusFault{}, false, charged, sourceID, region
}

func (b *MainBus) tryWriteWideDecomposed(access types.BusAccess, value uint32, widthBytes types.Addr) (types.BusFault, bool, types.Cycle, int, types.RegionTag) {
	var charged types.Cycle
	var sourceID int
	var region types.RegionTag
	for i := types.Addr(0); i < widthBytes; i++ {
		lane := access
		lane.Address = access.Address + i
		res := b.TryWrite8(lane, uint8(value>>(8*i)))
		if !res.OK {
			return res.Fault, true, charged, sourceID, region
		}
		charged += res.CyclesCharged
		sourceID = res.SourceID
		region = res.Region
	}
	return types.BusFault{}, false, charged, sourceID, region
}

func (b *MainBus) tryReadWide(access types.BusAccess, bits int) types.BusResult[uint32] {
	widthBytes := widthBytesOf(bits)
	crosses := b.crossesPage(access.Address, widthBytes)
	wide, supportsWide := (WideTarget)(nil), false
	if !crosses {
		wide, supportsWide = b.wideTargetAt(access.Address, access.Intent)
	}
	if shouldDecompose(crosses, access, supportsWide) {
		value, fault, hasFault, charged, sourceID, region := b.tryReadWideDecomposed(access, widthBytes)
		if hasFault {
			return types.Failure[uint32](fault, charged)
		}
		return types.Success[uint32](value, sourceID, region, charged)
	}

	// Atomic native path: same permission checks as a single byte,
	// evaluated once since the whole access stays on one page.
	probe := b.TryRead8(access)
	if !probe.OK {
		return types.Failure[uint32](probe.Fault, probe.CyclesCharged)
	}
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	var value uint32
	switch bits {
	case 16:
		value = uint32(wide.Read16(b.physicalFor(entry, access.Address), access))
	case 32:
		value = wide.Read32(b.physicalFor(entry, access.Address), access)
	}
	return types.Success[uint32](value, probe.SourceID, probe.Region, 1)
}

func (b *MainBus) tryWriteWide(access types.BusAccess, value uint32, bits int) types.WriteResult {
	widthBytes := widthBytesOf(bits)
	crosses := b.crossesPage(access.Address, widthBytes)
	wide, supportsWide := (WideTarget)(nil), false
	if !crosses {
		wide, supportsWide = b.wideTargetAt(access.Address, access.Intent)
	}
	if shouldDecompose(crosses, access, supportsWide) {
		fault, hasFault, charged, sourceID, region := b.tryWriteWideDecomposed(access, value, widthBytes)
		if hasFault {
			return types.Failure[types.Unit](fault, charged)
		}
		return types.Success[types.Unit](types.Unit{}, sourceID, region, charged)
	}

	probe := b.TryWrite8(access, uint8(value))
	if !probe.OK {
		return probe
	}
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	switch bits {
	case 16:
		wide.Write16(b.physicalFor(entry, access.Address), uint16(value), access)
	case 32:
		wide.Write32(b.physicalFor(entry, access.Address), value, access)
	}
	return types.Success[types.Unit](types.Unit{}, probe.SourceID, probe.Region, 1)
}

// TryRead16 is the checked 16-bit read following the wide-access policy.
func (b *MainBus) TryRead16(access types.BusAccess) types.BusResult[uint16] {
	r := b.tryReadWide(access, 16)
	if !r.OK {
		return types.Failure[uint16](r.Fault, r.CyclesCharged)
	}
	return types.Success[uint16](uint16(r.Value), r.SourceID, r.Region, r.CyclesCharged)
}

// TryWrite16 is the checked 16-bit write following the wide-access policy.
func (b *MainBus) TryWrite16(access types.BusAccess, value uint16) types.WriteResult {
	return b.tryWriteWide(access, uint32(value), 16)
}

// TryRead32 is the checked 32-bit read following the wide-access policy.
func (b *MainBus) TryRead32(access types.BusAccess) types.BusResult[uint32] {
	return b.tryReadWide(access, 32)
}

// TryWrite32 is the checked 32-bit write following the wide-access policy.
func (b *MainBus) TryWrite32(access types.BusAccess, value uint32) types.WriteResult {
	return b.tryWriteWide(access, value, 32)
}

// Read16 is the infallible counterpart of TryRead16: like Read8, it
// never enforces permissions, only translates and dispatches; an
// unmapped lane reads as the floating bus.
func (b *MainBus) Read16(access types.BusAccess) uint16 {
	return uint16(b.readWideInfallible(access, 16))
}

// Write16 is the infallible counterpart of TryWrite16.
func (b *MainBus) Write16(access types.BusAccess, value uint16) {
	b.writeWideInfallible(access, uint32(value), 16)
}

// Read32 is the infallible counterpart of TryRead32.
func (b *MainBus) Read32(access types.BusAccess) uint32 {
	return b.readWideInfallible(access, 32)
}

// Write32 is the infallible counterpart of TryWrite32.
func (b *MainBus) Write32(access types.BusAccess, value uint32) {
	b.writeWideInfallible(access, value, 32)
}

func (b *MainBus) readWideInfallible(access types.BusAccess, bits int) uint32 {
	widthBytes := widthBytesOf(bits)
	crosses := b.crossesPage(access.Address, widthBytes)
	wide, supportsWide := (WideTarget)(nil), false
	if !crosses {
		wide, supportsWide = b.wideTargetAt(access.Address, access.Intent)
	}
	if shouldDecompose(crosses, access, supportsWide) {
		var value uint32
		for i := types.Addr(0); i < widthBytes; i++ {
			lane := access
			lane.Address = access.Address + i
			value |= uint32(b.Read8(lane)) << (8 * i)
		}
		return value
	}
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	switch bits {
	case 16:
		return uint32(wide.Read16(b.physicalFor(entry, access.Address), access))
	case 32:
		return wide.Read32(b.physicalFor(entry, access.Address), access)
	}
	return 0
}

func (b *MainBus) writeWideInfallible(access types.BusAccess, value uint32, bits int) {
	widthBytes := widthBytesOf(bits)
	crosses := b.crossesPage(access.Address, widthBytes)
	wide, supportsWide := (WideTarget)(nil), false
	if !crosses {
		wide, supportsWide = b.wideTargetAt(access.Address, access.Intent)
	}
	if shouldDecompose(crosses, access, supportsWide) {
		for i := types.Addr(0); i < widthBytes; i++ {
			lane := access
			lane.Address = access.Address + i
			b.Write8(lane, uint8(value>>(8*i)))
		}
		return
	}
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	switch bits {
	case 16:
		wide.Write16(b.physicalFor(entry, access.Address), uint16(value), access)
	case 32:
		wide.Write32(b.physicalFor(entry, access.Address), value, access)
	}
}
