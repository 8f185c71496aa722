/*
 * sim65 - Machine: builder
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

// Package machine wires the bus, scheduler, signal fabric, trap
// registry and event context into a runnable machine (spec C10-C11).
// Builder.Build() runs the teacher's config-then-device-then-run
// construction order (main.go's InitializeChannels -> LoadConfigFile
// -> ResetChannels -> cpu.Start()), generalized from one hardcoded
// S/370 channel subsystem into a declared sequence of memory, overlay,
// device, soft-switch, and slot-card installation steps.
package machine

import (
	"fmt"
	"log/slog"

	"github.com/retrobus/sim65/emu/bus"
	"github.com/retrobus/sim65/emu/evctx"
	"github.com/retrobus/sim65/emu/scheduler"
	"github.com/retrobus/sim65/emu/signal"
	"github.com/retrobus/sim65/emu/trap"
	"github.com/retrobus/sim65/emu/types"
)

type layerDecl struct {
	name     string
	priority int
}

type layeredMappingDecl struct {
	layer   string
	mapping bus.LayeredMapping
}

type swapGroupDecl struct {
	id, name   string
	base, size types.Addr
}

type swapVariantDecl struct {
	groupID string
	variant bus.SwapVariant
}

type motherboardEntry struct {
	typeName string
	name     string
	enabled  bool
	factory  DeviceFactory
}

// PendingInstall is a slot card queued for installation in build()
// step 8 — a plain struct standing in for the sum type
// "PendingInstall{Slot(slot, card)}" spec.md's Design Notes call for,
// Go having no tagged unions.
type PendingInstall struct {
	Slot     int
	TypeName string
}

// Builder accumulates configuration and assembles a Machine via
// Build()'s fixed nine-step order (spec §4.8).
type Builder struct {
	log          *slog.Logger
	addressWidth uint
	cpuFactory   CPUFactory

	memorySteps []func(*bus.MainBus) error
	romSteps    []func(*bus.MainBus) error

	layers          []layerDecl
	layeredMappings []layeredMappingDecl
	swapGroups      []swapGroupDecl
	swapVariants    []swapVariantDecl

	motherboard  []motherboardEntry
	slotFactory  map[string]SlotCardFactory
	pendingSlots []PendingInstall

	beforeDeviceInit, afterDeviceInit     []func(*Machine) error
	beforeSoftSwitch, afterSoftSwitch     []func(*Machine) error
	beforeSlotInstall, afterSlotInstall   []func(*Machine) error
	afterBuild                            []func(*Machine) error
}

// NewBuilder returns a Builder for a machine with the given
// address-space width (12-32 bits) and CPU factory. log defaults to
// slog.Default() when nil.
func NewBuilder(addressWidth uint, cpuFactory CPUFactory, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{
		log:          log,
		addressWidth: addressWidth,
		cpuFactory:   cpuFactory,
		slotFactory:  make(map[string]SlotCardFactory),
	}
}

// AddMemoryStep queues a build() step-2 callback that populates the
// base page table (RAM regions, composite I/O targets, and the like).
func (b *Builder) AddMemoryStep(fn func(*bus.MainBus) error) {
	b.memorySteps = append(b.memorySteps, fn)
}

// AddROMStep queues a build() step-3 callback that maps ROM regions.
func (b *Builder) AddROMStep(fn func(*bus.MainBus) error) {
	b.romSteps = append(b.romSteps, fn)
}

// DeclareLayer records a layer to be created in step 3 and activated
// in step 9.
func (b *Builder) DeclareLayer(name string, priority int) {
	b.layers = append(b.layers, layerDecl{name: name, priority: priority})
}

// AddLayeredMapping queues a mapping to be added to layerName in step 3.
func (b *Builder) AddLayeredMapping(layerName string, m bus.LayeredMapping) {
	b.layeredMappings = append(b.layeredMappings, layeredMappingDecl{layer: layerName, mapping: m})
}

// DeclareSwapGroup records a swap group to be created (left
// deactivated) in step 3.
func (b *Builder) DeclareSwapGroup(id, name string, base, size types.Addr) {
	b.swapGroups = append(b.swapGroups, swapGroupDecl{id: id, name: name, base: base, size: size})
}

// AddSwapVariant queues a variant to be added to groupID in step 3.
func (b *Builder) AddSwapVariant(groupID string, v bus.SwapVariant) {
	b.swapVariants = append(b.swapVariants, swapVariantDecl{groupID: groupID, variant: v})
}

// AddMotherboardDevice registers a motherboard device factory keyed by
// typeName, installed (if enabled) during steps 6-7.
func (b *Builder) AddMotherboardDevice(typeName, name string, enabled bool, factory DeviceFactory) {
	b.motherboard = append(b.motherboard, motherboardEntry{typeName: typeName, name: name, enabled: enabled, factory: factory})
}

// RegisterSlotCardType makes a slot-card type installable via InstallSlotCard.
func (b *Builder) RegisterSlotCardType(typeName string, factory SlotCardFactory) {
	b.slotFactory[typeName] = factory
}

// InstallSlotCard queues typeName for installation in slot (1-7)
// during step 8. Fails fast if typeName was never registered or slot
// is out of range — a configuration error per spec §7.
func (b *Builder) InstallSlotCard(slot int, typeName string) error {
	if slot < 1 || slot > 7 {
		return fmt.Errorf("machine: slot %d out of range [1,7]", slot)
	}
	if _, ok := b.slotFactory[typeName]; !ok {
		return fmt.Errorf("machine: unknown slot card type %q", typeName)
	}
	b.pendingSlots = append(b.pendingSlots, PendingInstall{Slot: slot, TypeName: typeName})
	return nil
}

// OnBeforeDeviceInit / OnAfterDeviceInit bracket step 6.
func (b *Builder) OnBeforeDeviceInit(fn func(*Machine) error) { b.beforeDeviceInit = append(b.beforeDeviceInit, fn) }
func (b *Builder) OnAfterDeviceInit(fn func(*Machine) error)  { b.afterDeviceInit = append(b.afterDeviceInit, fn) }

// OnBeforeSoftSwitchRegistration / OnAfterSoftSwitchRegistration bracket step 7.
func (b *Builder) OnBeforeSoftSwitchRegistration(fn func(*Machine) error) {
	b.beforeSoftSwitch = append(b.beforeSoftSwitch, fn)
}
func (b *Builder) OnAfterSoftSwitchRegistration(fn func(*Machine) error) {
	b.afterSoftSwitch = append(b.afterSoftSwitch, fn)
}

// OnBeforeSlotCardInstall / OnAfterSlotCardInstall bracket step 8.
func (b *Builder) OnBeforeSlotCardInstall(fn func(*Machine) error) {
	b.beforeSlotInstall = append(b.beforeSlotInstall, fn)
}
func (b *Builder) OnAfterSlotCardInstall(fn func(*Machine) error) {
	b.afterSlotInstall = append(b.afterSlotInstall, fn)
}

// OnAfterBuild runs at the very end of step 9.
func (b *Builder) OnAfterBuild(fn func(*Machine) error) { b.afterBuild = append(b.afterBuild, fn) }

// Build assembles the Machine following spec §4.8's fixed nine-step
// order. Any failure aborts construction and returns a wrapped error
// (a configuration error per spec §7); nothing partially built is
// returned.
func (b *Builder) Build() (*Machine, error) {
	// Step 1: scheduler, signal bus, device registry, empty bus.
	sched := scheduler.New(b.log)
	signals := signal.New()
	mainBus, err := bus.New(b.addressWidth, b.log)
	if err != nil {
		return nil, fmt.Errorf("machine: create bus: %w", err)
	}
	registry := newDeviceRegistry()

	// Step 2: memory-configuration callbacks, in registration order.
	for i, fn := range b.memorySteps {
		if err := fn(mainBus); err != nil {
			return nil, fmt.Errorf("machine: memory step %d: %w", i, err)
		}
	}

	// Step 3: ROMs, layers (+mappings), swap groups (+variants), all deactivated.
	for i, fn := range b.romSteps {
		if err := fn(mainBus); err != nil {
			return nil, fmt.Errorf("machine: ROM step %d: %w", i, err)
		}
	}
	for _, l := range b.layers {
		if err := mainBus.CreateLayer(l.name, l.priority); err != nil {
			return nil, fmt.Errorf("machine: create layer %q: %w", l.name, err)
		}
	}
	for _, lm := range b.layeredMappings {
		if err := mainBus.AddLayeredMapping(lm.layer, lm.mapping); err != nil {
			return nil, fmt.Errorf("machine: add mapping to layer %q: %w", lm.layer, err)
		}
	}
	for _, sg := range b.swapGroups {
		if err := mainBus.CreateSwapGroup(sg.id, sg.name, sg.base, sg.size); err != nil {
			return nil, fmt.Errorf("machine: create swap group %q: %w", sg.id, err)
		}
	}
	for _, sv := range b.swapVariants {
		if err := mainBus.AddSwapVariant(sv.groupID, sv.variant); err != nil {
			return nil, fmt.Errorf("machine: add swap variant to group %q: %w", sv.groupID, err)
		}
	}

	// Step 4: EventContext, CPU.
	if b.cpuFactory == nil {
		return nil, fmt.Errorf("machine: no CPU factory configured")
	}
	cpu := b.cpuFactory(mainBus, signals)
	ctx := evctx.New(sched, signals, mainBus)
	sched.SetContext(ctx)

	// Step 5: assemble the Machine.
	m := &Machine{
		log:       b.log,
		cpu:       cpu,
		bus:       mainBus,
		scheduler: sched,
		signals:   signals,
		traps:     trap.NewRegistry(),
		ctx:       ctx,
		registry:  registry,
		layerNames: func() []string {
			names := make([]string, len(b.layers))
			for i, l := range b.layers {
				names[i] = l.name
			}
			return names
		}(),
		state:       StateStopped,
		breakpoints: make(map[types.Addr]struct{}),
	}
	evctx.RegisterComponent(ctx, "trap-registry", m.traps)
	evctx.RegisterComponent(ctx, "machine", m)

	for _, entry := range b.motherboard {
		if !entry.enabled {
			continue
		}
		id := registry.allocateID()
		dev, err := entry.factory(id, m)
		if err != nil {
			return nil, fmt.Errorf("machine: create motherboard device %q: %w", entry.typeName, err)
		}
		registry.register(id, dev)
		m.devices = append(m.devices, dev)
	}

	// Step 6: device-init ladder.
	for i, fn := range b.beforeDeviceInit {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: before_device_init[%d]: %w", i, err)
		}
	}
	for _, dev := range m.devices {
		if err := dev.Initialize(ctx); err != nil {
			return nil, fmt.Errorf("machine: initialize device %q: %w", dev.Name(), err)
		}
	}
	for i, fn := range b.afterDeviceInit {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: after_device_init[%d]: %w", i, err)
		}
	}

	// Step 7: soft-switch handler registration ladder.
	for i, fn := range b.beforeSoftSwitch {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: before_soft_switch_handler_registration[%d]: %w", i, err)
		}
	}
	for _, dev := range m.devices {
		if reg, ok := dev.(SoftSwitchRegistrar); ok {
			if err := reg.RegisterSoftSwitches(mainBus); err != nil {
				return nil, fmt.Errorf("machine: register soft switches for %q: %w", dev.Name(), err)
			}
		}
	}
	for i, fn := range b.afterSoftSwitch {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: after_soft_switch_handler_registration[%d]: %w", i, err)
		}
	}

	// Step 8: slot-card installation ladder.
	for i, fn := range b.beforeSlotInstall {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: before_slot_card_install[%d]: %w", i, err)
		}
	}
	for _, pending := range b.pendingSlots {
		factory := b.slotFactory[pending.TypeName]
		id := registry.allocateID()
		card, err := factory(id, pending.Slot, m)
		if err != nil {
			return nil, fmt.Errorf("machine: install slot %d card %q: %w", pending.Slot, pending.TypeName, err)
		}
		registry.register(id, card)
		m.devices = append(m.devices, card)
		m.slotCards = append(m.slotCards, slotCardEntry{slot: pending.Slot, device: card})
	}
	for i, fn := range b.afterSlotInstall {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: after_slot_card_install[%d]: %w", i, err)
		}
	}

	// Step 9: activate declared layers, run after_build.
	for _, name := range m.layerNames {
		if err := mainBus.ActivateLayer(name); err != nil {
			return nil, fmt.Errorf("machine: activate layer %q: %w", name, err)
		}
	}
	for i, fn := range b.afterBuild {
		if err := fn(m); err != nil {
			return nil, fmt.Errorf("machine: after_build[%d]: %w", i, err)
		}
	}

	m.traps.SetSlotInstalledFunc(m.slotInstalled)
	return m, nil
}
