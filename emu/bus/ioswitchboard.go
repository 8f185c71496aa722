/*
 * sim65 - I/O switchboard: per-byte soft-switch handler dispatch
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

// ReadHandler answers a soft-switch read at offset.
type ReadHandler func(offset types.Addr, access types.BusAccess) uint8

// WriteHandler handles a soft-switch write at offset.
type WriteHandler func(offset types.Addr, value uint8, access types.BusAccess)

// IOSwitchboard is a leaf BusTarget registering a handler per byte
// offset within its page — the per-byte soft-switch dispatcher of
// spec §6, distinct from Composite's coarser 256-byte sub-range
// dispatch: a single IOSwitchboard instance is typically one of
// Composite's registered sub-ranges.
type IOSwitchboard struct {
	reads  map[types.Addr]ReadHandler
	writes map[types.Addr]WriteHandler
}

// NewIOSwitchboard returns an empty switchboard.
func NewIOSwitchboard() *IOSwitchboard {
	return &IOSwitchboard{
		reads:  make(map[types.Addr]ReadHandler),
		writes: make(map[types.Addr]WriteHandler),
	}
}

// RegisterReadHandler installs h to answer reads at offset, replacing
// any previous handler there.
func (s *IOSwitchboard) RegisterReadHandler(offset types.Addr, h ReadHandler) {
	s.reads[offset] = h
}

// RegisterWriteHandler installs h to answer writes at offset, replacing
// any previous handler there.
func (s *IOSwitchboard) RegisterWriteHandler(offset types.Addr, h WriteHandler) {
	s.writes[offset] = h
}

// Read8 dispatches to the registered handler at physical, or returns
// the floating bus if none is registered.
func (s *IOSwitchboard) Read8(physical types.Addr, access types.BusAccess) uint8 {
	h, ok := s.reads[physical]
	if !ok {
		return types.FloatingBus
	}
	return h(physical, access)
}

// Write8 dispatches to the registered handler at physical, or is a
// no-op if none is registered.
func (s *IOSwitchboard) Write8(physical types.Addr, value uint8, access types.BusAccess) {
	h, ok := s.writes[physical]
	if !ok {
		return
	}
	h(physical, value, access)
}

// Caps reports that a switchboard has side effects and is timing
// sensitive (soft switches are classic examples of both) but never
// supports wide atomic access.
func (s *IOSwitchboard) Caps() types.TargetCaps {
	return types.CapHasSideEffects | types.CapTimingSensitive
}
