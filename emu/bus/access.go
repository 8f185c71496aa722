/*
 * sim65 - Bus access: byte and wide reads/writes, permission checks
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

func (b *MainBus) physicalFor(entry PageEntry, addr types.Addr) types.Addr {
	return entry.PhysicalBase + (addr & (PageSize - 1))
}

// Read8 is the infallible byte read: unmapped positions yield the
// floating bus.
func (b *MainBus) Read8(access types.BusAccess) uint8 {
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	if entry.Target == nil {
		return types.FloatingBus
	}
	offset := access.Address & (PageSize - 1)
	leaf, _, ok := resolveLeaf(entry.Target, offset, access.Intent)
	if !ok {
		return types.FloatingBus
	}
	return leaf.Read8(b.physicalFor(entry, access.Address), access)
}

// Write8 is the infallible byte write: unmapped or composite-refused
// positions are silent no-ops. Target implementations (e.g. ROM) are
// themselves responsible for ignoring writes they don't accept.
func (b *MainBus) Write8(access types.BusAccess, value uint8) {
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()
	if entry.Target == nil {
		return
	}
	offset := access.Address & (PageSize - 1)
	leaf, _, ok := resolveLeaf(entry.Target, offset, access.Intent)
	if !ok {
		return
	}
	leaf.Write8(b.physicalFor(entry, access.Address), value, access)
}

// TryRead8 implements the checked read path (spec §4.4 step 1-4).
func (b *MainBus) TryRead8(access types.BusAccess) types.BusResult[uint8] {
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()

	if entry.Target == nil {
		return types.Failure[uint8](types.BusFault{
			Kind:   types.FaultUnmapped,
			Access: access,
			Region: types.RegionOther,
		}, 0)
	}
	if !access.Intent.IsDebug() && !entry.Perms.Has(types.PermRead) {
		return types.Failure[uint8](types.BusFault{
			Kind:     types.FaultPermissionDenied,
			Reason:   types.NoRead,
			Access:   access,
			DeviceID: entry.DeviceID,
			Region:   entry.Region,
		}, 0)
	}
	if access.Intent == types.IntentInstructionFetch && access.Mode == types.ModeAtomic && !entry.Perms.Has(types.PermExecute) {
		return types.Failure[uint8](types.BusFault{
			Kind:     types.FaultPermissionDenied,
			Reason:   types.NoExecute,
			Access:   access,
			DeviceID: entry.DeviceID,
			Region:   entry.Region,
		}, 0)
	}

	offset := access.Address & (PageSize - 1)
	leaf, subTag, ok := resolveLeaf(entry.Target, offset, access.Intent)
	region := entry.Region
	if _, isComposite := entry.Target.(CompositeTarget); isComposite {
		region = subTag
	}
	if !ok {
		return types.Success[uint8](types.FloatingBus, entry.DeviceID, region, 1)
	}
	value := leaf.Read8(b.physicalFor(entry, access.Address), access)
	return types.Success[uint8](value, entry.DeviceID, region, 1)
}

// TryWrite8 implements the checked write path, mirroring TryRead8.
func (b *MainBus) TryWrite8(access types.BusAccess, value uint8) types.WriteResult {
	b.mu.RLock()
	entry := b.pages[b.pageIndex(access.Address)]
	b.mu.RUnlock()

	if entry.Target == nil {
		return types.Failure[types.Unit](types.BusFault{
			Kind:   types.FaultUnmapped,
			Access: access,
			Region: types.RegionOther,
		}, 0)
	}
	if !access.Intent.IsDebug() && !entry.Perms.Has(types.PermWrite) {
		return types.Failure[types.Unit](types.BusFault{
			Kind:     types.FaultPermissionDenied,
			Reason:   types.NoWrite,
			Access:   access,
			DeviceID: entry.DeviceID,
			Region:   entry.Region,
		}, 0)
	}

	offset := access.Address & (PageSize - 1)
	leaf, subTag, ok := resolveLeaf(entry.Target, offset, access.Intent)
	region := entry.Region
	if _, isComposite := entry.Target.(CompositeTarget); isComposite {
		region = subTag
	}
	if ok {
		leaf.Write8(b.physicalFor(entry, access.Address), value, access)
	}
	return types.Success[types.Unit](types.Unit{}, entry.DeviceID, region, 1)
}
