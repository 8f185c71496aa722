/*
 * sim65 - Composite target: 256-byte-aligned sub-range dispatch
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
	"sort"

	"github.com/retrobus/sim65/emu/types"
)

// SubrangeAlignment is the alignment granularity Composite sub-ranges
// must satisfy in both offset and size (spec §4.3).
const SubrangeAlignment = 0x100

// ErrSubrangeUnaligned is returned when a sub-range offset or size is
// not a SubrangeAlignment multiple.
var ErrSubrangeUnaligned = errors.New("bus: composite sub-range must be 256-byte aligned")

// ErrOverlappingSubrange is returned when a new sub-range would overlap one
// already registered.
var ErrOverlappingSubrange = errors.New("bus: overlapping composite sub-range")

type subrange struct {
	offset types.Addr
	size   types.Addr
	target BusTarget
	tag    types.RegionTag
}

// Composite is a BusTarget/CompositeTarget that re-dispatches fixed,
// 256-byte-aligned sub-ranges of a single page to nested targets —
// e.g. a page combining soft switches, a slot ROM window, and an
// expansion-ROM window (scenario S3).
type Composite struct {
	ranges []subrange
}

// NewComposite returns an empty Composite with no sub-ranges registered.
func NewComposite() *Composite { return &Composite{} }

// AddSubrange registers offset..offset+size as dispatching to target,
// tagged with tag for SubregionTag. offset and size must both be
// 256-byte aligned and must not overlap an existing sub-range.
func (c *Composite) AddSubrange(offset, size types.Addr, target BusTarget, tag types.RegionTag) error {
	if offset%SubrangeAlignment != 0 || size%SubrangeAlignment != 0 {
		return ErrSubrangeUnaligned
	}
	for _, r := range c.ranges {
		if offset < r.offset+r.size && r.offset < offset+size {
			return fmt.Errorf("%w: [%#x,%#x) overlaps [%#x,%#x)", ErrOverlappingSubrange, offset, offset+size, r.offset, r.offset+r.size)
		}
	}
	c.ranges = append(c.ranges, subrange{offset: offset, size: size, target: target, tag: tag})
	sort.Slice(c.ranges, func(i, j int) bool { return c.ranges[i].offset < c.ranges[j].offset })
	return nil
}

func (c *Composite) find(offset types.Addr) (subrange, bool) {
	for _, r := range c.ranges {
		if offset >= r.offset && offset < r.offset+r.size {
			return r, true
		}
	}
	return subrange{}, false
}

// ResolveTarget returns the nested target covering offset, if any.
func (c *Composite) ResolveTarget(offset types.Addr, _ types.AccessIntent) (BusTarget, bool) {
	r, ok := c.find(offset)
	if !ok {
		return nil, false
	}
	return r.target, true
}

// SubregionTag returns the RegionTag registered for the sub-range
// covering offset, or RegionOther if none.
func (c *Composite) SubregionTag(offset types.Addr) types.RegionTag {
	r, ok := c.find(offset)
	if !ok {
		return types.RegionOther
	}
	return r.tag
}

// Read8 satisfies BusTarget directly (e.g. when something addresses a
// Composite without going through MainBus's resolveLeaf path); it
// returns the floating bus for an offset with no registered sub-range.
// The nested target receives the same page-relative physical address
// Composite itself was given — sub-targets are expected to know their
// own window within the page.
func (c *Composite) Read8(physical types.Addr, access types.BusAccess) uint8 {
	r, ok := c.find(physical)
	if !ok {
		return types.FloatingBus
	}
	return r.target.Read8(physical, access)
}

// Write8 satisfies BusTarget directly; a no-op for an offset with no
// registered sub-range.
func (c *Composite) Write8(physical types.Addr, value uint8, access types.BusAccess) {
	r, ok := c.find(physical)
	if !ok {
		return
	}
	r.target.Write8(physical, value, access)
}

// Caps reports RegionComposite-style capabilities: Composite itself
// never claims wide support, since sub-dispatch is always byte-sized.
func (c *Composite) Caps() types.TargetCaps { return 0 }
