/*
 * sim65 - Bus target contracts
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

// Package bus is the page-table main bus: translation, permission
// enforcement, wide-access decomposition, layers, and swap groups.
// It generalizes the teacher's flat masked-array emu/memory into a
// polymorphic, paged target dispatch the way spec component C5
// describes.
package bus

import "github.com/retrobus/sim65/emu/types"

// PageSize is the fixed page granularity every map/layer/swap-group
// base and size must be a multiple of.
const PageSize = 0x1000

// PageShift is log2(PageSize).
const PageShift = 12

// BusTarget answers byte-sized reads and writes against a target's
// own physical addressing.
type BusTarget interface {
	Read8(physical types.Addr, access types.BusAccess) uint8
	Write8(physical types.Addr, value uint8, access types.BusAccess)
	Caps() types.TargetCaps
}

// WideTarget is a BusTarget that additionally offers atomic 16/32-bit
// entry points. A target only satisfies this if TargetCaps has
// CapSupportsWide set.
type WideTarget interface {
	BusTarget
	Read16(physical types.Addr, access types.BusAccess) uint16
	Write16(physical types.Addr, value uint16, access types.BusAccess)
	Read32(physical types.Addr, access types.BusAccess) uint32
	Write32(physical types.Addr, value uint32, access types.BusAccess)
}

// CompositeTarget re-dispatches sub-ranges of its page to nested
// targets, e.g. a combined soft-switch/slot-ROM/expansion-ROM page.
// Sub-ranges must be 256-byte aligned in both offset and size.
type CompositeTarget interface {
	BusTarget
	ResolveTarget(offset types.Addr, intent types.AccessIntent) (BusTarget, bool)
	SubregionTag(offset types.Addr) types.RegionTag
}

// resolveLeaf follows a composite target down to the leaf that
// actually answers offset, or reports none if unresolved. The leaf
// receives the same page-relative physical address as the composite
// itself would have (sub-targets are expected to know their own
// window within the page).
func resolveLeaf(target BusTarget, offset types.Addr, intent types.AccessIntent) (leaf BusTarget, tag types.RegionTag, ok bool) {
	if composite, isComposite := target.(CompositeTarget); isComposite {
		resolved, found := composite.ResolveTarget(offset, intent)
		if !found {
			return nil, types.RegionOther, false
		}
		return resolved, composite.SubregionTag(offset), true
	}
	return target, types.RegionOther, true
}
