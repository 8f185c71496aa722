/*
 * sim65 - Layer system: prioritised, activatable overlays
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

	"github.com/retrobus/sim65/emu/types"
)

// ErrUnknownLayer is returned by operations referencing a layer name
// that was never created.
var ErrUnknownLayer = errors.New("bus: unknown layer")

// ErrDuplicateLayer is returned by CreateLayer when name already exists.
var ErrDuplicateLayer = errors.New("bus: duplicate layer name")

// LayeredMapping is one virtual-range mapping belonging to a single layer.
type LayeredMapping struct {
	VirtualBase  types.Addr
	Size         types.Addr
	DeviceID     int
	Region       types.RegionTag
	Perms        types.PagePerms
	Caps         types.TargetCaps
	Target       BusTarget
	PhysicalBase types.Addr
}

func (m LayeredMapping) covers(addr types.Addr) bool {
	return addr >= m.VirtualBase && addr < m.VirtualBase+m.Size
}

type layer struct {
	name     string
	priority int
	active   bool
	seq      int
	mappings []LayeredMapping
}

// layerSet is the collection of all declared layers, keyed by name,
// ordered for deterministic tie resolution (registration order, per
// invariant 2).
type layerSet struct {
	byName map[string]*layer
	seq    int
}

func newLayerSet() *layerSet {
	return &layerSet{byName: make(map[string]*layer)}
}

// Create adds a new, initially inactive layer.
func (ls *layerSet) Create(name string, priority int) error {
	if _, exists := ls.byName[name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLayer, name)
	}
	ls.seq++
	ls.byName[name] = &layer{name: name, priority: priority, seq: ls.seq}
	return nil
}

func (ls *layerSet) get(name string) (*layer, error) {
	l, ok := ls.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownLayer, name)
	}
	return l, nil
}

// AddMapping appends a mapping to an existing layer.
func (ls *layerSet) AddMapping(name string, m LayeredMapping) error {
	l, err := ls.get(name)
	if err != nil {
		return err
	}
	l.mappings = append(l.mappings, m)
	return nil
}

// SetPermissions updates every mapping in the layer.
func (ls *layerSet) SetPermissions(name string, perms types.PagePerms) error {
	l, err := ls.get(name)
	if err != nil {
		return err
	}
	for i := range l.mappings {
		l.mappings[i].Perms = perms
	}
	return nil
}

// Activate marks a layer active; reactivating an already-active layer
// is a no-op. Returns the range of pages the caller must recompute.
func (ls *layerSet) Activate(name string) (types.Addr, types.Addr, bool, error) {
	l, err := ls.get(name)
	if err != nil {
		return 0, 0, false, err
	}
	if l.active {
		return 0, 0, false, nil
	}
	l.active = true
	base, size := layerSpan(l)
	return base, size, true, nil
}

// Deactivate marks a layer inactive.
func (ls *layerSet) Deactivate(name string) (types.Addr, types.Addr, bool, error) {
	l, err := ls.get(name)
	if err != nil {
		return 0, 0, false, err
	}
	if !l.active {
		return 0, 0, false, nil
	}
	l.active = false
	base, size := layerSpan(l)
	return base, size, true, nil
}

func layerSpan(l *layer) (types.Addr, types.Addr) {
	if len(l.mappings) == 0 {
		return 0, 0
	}
	lo, hi := l.mappings[0].VirtualBase, l.mappings[0].VirtualBase+l.mappings[0].Size
	for _, m := range l.mappings[1:] {
		if m.VirtualBase < lo {
			lo = m.VirtualBase
		}
		if end := m.VirtualBase + m.Size; end > hi {
			hi = end
		}
	}
	return lo, hi - lo
}

// effectiveMapping returns the mapping from the highest-priority
// active layer covering addr, ties broken by registration order.
func (ls *layerSet) effectiveMapping(addr types.Addr) (LayeredMapping, bool) {
	var best *layer
	var bestMapping LayeredMapping
	found := false
	for _, l := range ls.byName {
		if !l.active {
			continue
		}
		for _, m := range l.mappings {
			if !m.covers(addr) {
				continue
			}
			if !found || l.priority > best.priority || (l.priority == best.priority && l.seq < best.seq) {
				best = l
				bestMapping = m
				found = true
			}
		}
	}
	return bestMapping, found
}

// AllMappingsAt returns every mapping from every layer (active or not)
// that covers addr, for debugging (§4.5 get_all_mappings_at).
func (ls *layerSet) AllMappingsAt(addr types.Addr) []LayeredMapping {
	var out []LayeredMapping
	for _, l := range ls.byName {
		for _, m := range l.mappings {
			if m.covers(addr) {
				out = append(out, m)
			}
		}
	}
	return out
}

// CreateLayer declares a new layer at the given priority. Where active
// layers overlap, the higher priority wins; between equal priorities,
// the layer created first wins.
func (b *MainBus) CreateLayer(name string, priority int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layers.Create(name, priority)
}

// AddLayeredMapping attaches a mapping to an existing layer. The
// mapping only takes visible effect once the layer is activated.
func (b *MainBus) AddLayeredMapping(layerName string, m LayeredMapping) error {
	if !aligned(m.VirtualBase) || !aligned(m.Size) {
		return ErrUnalignedRegion
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.layers.AddMapping(layerName, m)
}

// SetLayerPermissions updates every mapping in a layer and recomputes
// every page it covers.
func (b *MainBus) SetLayerPermissions(layerName string, perms types.PagePerms) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.layers.SetPermissions(layerName, perms); err != nil {
		return err
	}
	l, _ := b.layers.get(layerName)
	if l.active {
		base, size := layerSpan(l)
		b.recomputeRangeLocked(base, size)
	}
	return nil
}

// ActivateLayer activates a layer and recomputes every page it covers.
func (b *MainBus) ActivateLayer(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	base, size, changed, err := b.layers.Activate(name)
	if err != nil {
		return err
	}
	if changed {
		b.recomputeRangeLocked(base, size)
	}
	return nil
}

// DeactivateLayer deactivates a layer and recomputes every page it covered.
func (b *MainBus) DeactivateLayer(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	base, size, changed, err := b.layers.Deactivate(name)
	if err != nil {
		return err
	}
	if changed {
		b.recomputeRangeLocked(base, size)
	}
	return nil
}

// GetEffectiveMapping returns the current page entry at addr (after
// layer and swap-group overlay).
func (b *MainBus) GetEffectiveMapping(addr types.Addr) PageEntry {
	return b.GetPageEntry(addr)
}

// GetAllMappingsAt returns every layered mapping covering addr across
// every layer, active or not, for debugging.
func (b *MainBus) GetAllMappingsAt(addr types.Addr) []LayeredMapping {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.layers.AllMappingsAt(addr)
}
