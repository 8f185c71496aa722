/*
 * sim65 - RAM and ROM leaf targets
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

// Block is a named, owned byte buffer — a "physical memory block" in
// spec §4.8's builder vocabulary. RAM and ROM targets hold a
// non-owning view into one.
type Block struct {
	Name string
	Data []byte
}

// NewBlock returns a Block of size bytes filled with fill.
func NewBlock(name string, size int, fill byte) *Block {
	b := &Block{Name: name, Data: make([]byte, size)}
	if fill != 0 {
		for i := range b.Data {
			b.Data[i] = fill
		}
	}
	return b
}

// RAM is a read/write leaf target backed by a Block. Wide accesses
// are natively supported since a plain byte slice has no side effects.
type RAM struct {
	block *Block
}

// NewRAM returns a RAM view over block.
func NewRAM(block *Block) *RAM { return &RAM{block: block} }

func (r *RAM) Read8(physical types.Addr, _ types.BusAccess) uint8 {
	if int(physical) >= len(r.block.Data) {
		return types.FloatingBus
	}
	return r.block.Data[physical]
}

func (r *RAM) Write8(physical types.Addr, value uint8, _ types.BusAccess) {
	if int(physical) >= len(r.block.Data) {
		return
	}
	r.block.Data[physical] = value
}

func (r *RAM) Read16(physical types.Addr, access types.BusAccess) uint16 {
	lo := r.Read8(physical, access)
	hi := r.Read8(physical+1, access)
	return uint16(lo) | uint16(hi)<<8
}

func (r *RAM) Write16(physical types.Addr, value uint16, access types.BusAccess) {
	r.Write8(physical, uint8(value), access)
	r.Write8(physical+1, uint8(value>>8), access)
}

func (r *RAM) Read32(physical types.Addr, access types.BusAccess) uint32 {
	lo := r.Read16(physical, access)
	hi := r.Read16(physical+2, access)
	return uint32(lo) | uint32(hi)<<16
}

func (r *RAM) Write32(physical types.Addr, value uint32, access types.BusAccess) {
	r.Write16(physical, uint16(value), access)
	r.Write16(physical+2, uint16(value>>16), access)
}

func (r *RAM) Caps() types.TargetCaps {
	return types.CapSupportsPeek | types.CapSupportsPoke | types.CapSupportsWide
}

// ROM is a read-only leaf target backed by a Block. Non-debug writes
// are ignored; debug-intent writes patch the backing buffer directly
// (P3: ROM immutability unless constructed over a mutable buffer,
// which this always is — the distinction is the intent, not the
// buffer).
type ROM struct {
	block *Block
}

// NewROM returns a ROM view over block.
func NewROM(block *Block) *ROM { return &ROM{block: block} }

func (r *ROM) Read8(physical types.Addr, _ types.BusAccess) uint8 {
	if int(physical) >= len(r.block.Data) {
		return types.FloatingBus
	}
	return r.block.Data[physical]
}

func (r *ROM) Write8(physical types.Addr, value uint8, access types.BusAccess) {
	if !access.Intent.IsDebug() {
		return
	}
	if int(physical) >= len(r.block.Data) {
		return
	}
	r.block.Data[physical] = value
}

func (r *ROM) Read16(physical types.Addr, access types.BusAccess) uint16 {
	lo := r.Read8(physical, access)
	hi := r.Read8(physical+1, access)
	return uint16(lo) | uint16(hi)<<8
}

func (r *ROM) Write16(physical types.Addr, value uint16, access types.BusAccess) {
	r.Write8(physical, uint8(value), access)
	r.Write8(physical+1, uint8(value>>8), access)
}

func (r *ROM) Read32(physical types.Addr, access types.BusAccess) uint32 {
	lo := r.Read16(physical, access)
	hi := r.Read16(physical+2, access)
	return uint32(lo) | uint32(hi)<<16
}

func (r *ROM) Write32(physical types.Addr, value uint32, access types.BusAccess) {
	r.Write16(physical, uint16(value), access)
	r.Write16(physical+2, uint16(value>>16), access)
}

func (r *ROM) Caps() types.TargetCaps {
	return types.CapSupportsPeek | types.CapSupportsWide
}
