/*
 * sim65 - Machine: device registry and lifecycle interfaces
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

package machine

import (
	"sync"

	"github.com/retrobus/sim65/emu/bus"
	"github.com/retrobus/sim65/emu/evctx"
	"github.com/retrobus/sim65/emu/signal"
	"github.com/retrobus/sim65/emu/types"
)

// Device is anything the builder installs as a motherboard device or
// slot card. Initialize runs during the build()'s device-init ladder
// (motherboard devices) or as part of a slot card's own factory
// (slot cards, step 8).
type Device interface {
	ID() int
	Name() string
	Initialize(ctx *evctx.Context) error
}

// SoftSwitchRegistrar is implemented by devices that expose
// memory-mapped soft switches. Registered during build()'s step 7.
type SoftSwitchRegistrar interface {
	RegisterSoftSwitches(mainBus *bus.MainBus) error
}

// CPU is the external collaborator the machine drives. Concrete
// 65C02/65C816/65832 cores live outside this module; the machine only
// needs the step/reset/PC surface to pump simulated time.
type CPU interface {
	Reset()
	// Step executes one instruction and returns the cycles it took
	// plus whether the core is now waiting for an interrupt (WAI/STP
	// style), in which case the run loop should jump time forward to
	// the next scheduled event instead of advancing by cycles.
	Step() (cycles types.Cycle, waitingForInterrupt bool)
	PC() types.Addr
}

// CPUFactory builds the CPU for a machine once its bus and signal
// fabric exist (build() step 4).
type CPUFactory func(mainBus *bus.MainBus, signals *signal.Fabric) CPU

// DeviceFactory builds a motherboard device. id is pre-allocated by
// the device registry.
type DeviceFactory func(id int, m *Machine) (Device, error)

// SlotCardFactory builds and fully initializes a slot card, including
// any bus mapping and soft-switch registration it needs — slot cards
// are installed in build() step 8, outside the motherboard device-init
// ladder of steps 6-7.
type SlotCardFactory func(id int, slot int, m *Machine) (Device, error)

// deviceRegistry hands out sequential device ids and tracks installed
// devices by id for debugger-style lookups. The trap registry's
// SlotInstalledFunc hook does not use it; Machine.slotInstalled checks
// the machine's own slot-card list.
type deviceRegistry struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]Device
}

func newDeviceRegistry() *deviceRegistry {
	return &deviceRegistry{byID: make(map[int]Device)}
}

func (r *deviceRegistry) allocateID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextID
	r.nextID++
	return id
}

func (r *deviceRegistry) register(id int, d Device) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[id] = d
}

func (r *deviceRegistry) Get(id int) (Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byID[id]
	return d, ok
}
