/*
 * sim65 - Machine profile loading and validation
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

// Package profile loads and validates the JSON machine-profile
// document (spec.md §6) that a Builder is configured from. It is the
// generalization of the teacher's hand-rolled line-oriented
// config/configparser grammar to JSON: where the teacher reports one
// "line: %d" error at a time, Load collects every structural
// violation in a single ConfigError, since a profile is read once at
// startup and a developer debugging it wants the whole list.
package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Profile is the root of a machine profile document.
type Profile struct {
	AddressSpace int           `json:"address_space"`
	CPU          CPUConfig     `json:"cpu"`
	Memory       MemoryConfig  `json:"memory"`
	Devices      DevicesConfig `json:"devices"`
}

// CPUConfig names the CPU model to build.
type CPUConfig struct {
	Type string `json:"type"`
}

// MemoryConfig is the memory section: ROM source images, the
// physical blocks assembled from them, and the virtual regions mapped
// over the bus.
type MemoryConfig struct {
	ROMImages []ROMImage      `json:"rom_images"`
	Physical  []PhysicalBlock `json:"physical"`
	Regions   []Region        `json:"regions"`
}

// ROMImage names a source file to load as an opaque byte array.
type ROMImage struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Size   string `json:"size"`
}

// PhysicalBlock is a named, owned byte buffer assembled from zero or
// more ROM-image sources at given offsets, with the remainder filled
// with Fill (default 0).
type PhysicalBlock struct {
	Name    string           `json:"name"`
	Size    string           `json:"size"`
	Fill    string           `json:"fill,omitempty"`
	Sources []PhysicalSource `json:"sources,omitempty"`
}

// PhysicalSource copies a ROM image into a physical block at Offset.
type PhysicalSource struct {
	Type     string `json:"type"`
	ROMImage string `json:"rom_image"`
	Offset   string `json:"offset"`
}

// Region is a virtual mapping over the bus: a RAM or ROM window onto a
// physical block, or a composite handler.
type Region struct {
	Name          string `json:"name"`
	Type          string `json:"type"` // "ram" | "rom" | "composite"
	Start         string `json:"start"`
	Size          string `json:"size"`
	Permissions   string `json:"permissions"` // "rwx"-style
	Source        string `json:"source,omitempty"`
	SourceOffset  string `json:"source_offset,omitempty"`
	Handler       string `json:"handler,omitempty"`
}

// DevicesConfig is the device section: motherboard devices plus the
// slot-card complement.
type DevicesConfig struct {
	Motherboard []MotherboardDevice `json:"motherboard"`
	Slots       SlotsConfig         `json:"slots"`
}

// MotherboardDevice is one built-in device.
type MotherboardDevice struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Enabled bool   `json:"enabled"`
}

// SlotsConfig is the expansion-slot complement.
type SlotsConfig struct {
	Enabled bool       `json:"enabled"`
	Cards   []SlotCard `json:"cards"`
}

// SlotCard installs Type in Slot (1-7).
type SlotCard struct {
	Slot int    `json:"slot"`
	Type string `json:"type"`
}

var validCPUTypes = map[string]bool{
	"65C02":  true,
	"65816":  true,
	"65832":  true,
}

var validRegionTypes = map[string]bool{
	"ram":       true,
	"rom":       true,
	"composite": true,
}

const regionAlignment = 0x1000

// Load decodes a JSON machine profile from r and validates it,
// returning a *ConfigError (via errors.As) if any structural
// invariant from spec.md §7 is violated. A malformed JSON document is
// reported as a single-violation ConfigError rather than a raw
// encoding/json error, so callers only ever need to handle one error
// type from this package.
func Load(r io.Reader) (*Profile, error) {
	var p Profile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&p); err != nil {
		return nil, &ConfigError{Violations: []string{fmt.Sprintf("decode profile: %s", err)}}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks every structural invariant build() would otherwise
// fail on, accumulating all violations rather than stopping at the
// first. Returns nil if the profile is well-formed.
func (p *Profile) Validate() *ConfigError {
	var errs ConfigError

	if p.AddressSpace < 12 || p.AddressSpace > 32 {
		errs.Addf("address_space %d out of range [12,32]", p.AddressSpace)
	}
	if !validCPUTypes[p.CPU.Type] {
		errs.Addf("cpu.type %q is not one of 65C02, 65816, 65832", p.CPU.Type)
	}

	addressLimit := uint64(1) << uint(clampBits(p.AddressSpace))

	romNames := make(map[string]bool)
	for i, img := range p.Memory.ROMImages {
		if img.Name == "" {
			errs.Addf("memory.rom_images[%d]: name is required", i)
		} else if romNames[img.Name] {
			errs.Addf("memory.rom_images[%d]: duplicate name %q", i, img.Name)
		}
		romNames[img.Name] = true
		if img.Source == "" {
			errs.Addf("memory.rom_images[%d] (%s): source is required", i, img.Name)
		}
		if _, err := ParseHex(img.Size); err != nil {
			errs.Addf("memory.rom_images[%d] (%s): size: %s", i, img.Name, err)
		}
	}

	physicalNames := make(map[string]bool)
	for i, blk := range p.Memory.Physical {
		if blk.Name == "" {
			errs.Addf("memory.physical[%d]: name is required", i)
		} else if physicalNames[blk.Name] {
			errs.Addf("memory.physical[%d]: duplicate name %q", i, blk.Name)
		}
		physicalNames[blk.Name] = true
		size, err := ParseHex(blk.Size)
		if err != nil {
			errs.Addf("memory.physical[%d] (%s): size: %s", i, blk.Name, err)
		}
		if blk.Fill != "" {
			if _, err := ParseHex(blk.Fill); err != nil {
				errs.Addf("memory.physical[%d] (%s): fill: %s", i, blk.Name, err)
			}
		}
		for j, src := range blk.Sources {
			if src.Type != "rom-image" {
				errs.Addf("memory.physical[%d] (%s).sources[%d]: unsupported source type %q", i, blk.Name, j, src.Type)
			}
			if !romNames[src.ROMImage] {
				errs.Addf("memory.physical[%d] (%s).sources[%d]: unknown rom_image %q", i, blk.Name, j, src.ROMImage)
			}
			offset, err := ParseHex(src.Offset)
			if err != nil {
				errs.Addf("memory.physical[%d] (%s).sources[%d]: offset: %s", i, blk.Name, j, err)
			} else if err == nil && size > 0 && offset >= size {
				errs.Addf("memory.physical[%d] (%s).sources[%d]: offset %#x exceeds block size %#x", i, blk.Name, j, offset, size)
			}
		}
	}

	regionNames := make(map[string]bool)
	for i, reg := range p.Memory.Regions {
		if reg.Name == "" {
			errs.Addf("memory.regions[%d]: name is required", i)
		} else if regionNames[reg.Name] {
			errs.Addf("memory.regions[%d]: duplicate name %q", i, reg.Name)
		}
		regionNames[reg.Name] = true

		if !validRegionTypes[reg.Type] {
			errs.Addf("memory.regions[%d] (%s): type %q is not one of ram, rom, composite", i, reg.Name, reg.Type)
		}
		start, startErr := ParseHex(reg.Start)
		if startErr != nil {
			errs.Addf("memory.regions[%d] (%s): start: %s", i, reg.Name, startErr)
		} else if start%regionAlignment != 0 {
			errs.Addf("memory.regions[%d] (%s): start %#x is not a multiple of 0x1000", i, reg.Name, start)
		}
		size, sizeErr := ParseHex(reg.Size)
		if sizeErr != nil {
			errs.Addf("memory.regions[%d] (%s): size: %s", i, reg.Name, sizeErr)
		} else if size%regionAlignment != 0 {
			errs.Addf("memory.regions[%d] (%s): size %#x is not a multiple of 0x1000", i, reg.Name, size)
		}
		if startErr == nil && sizeErr == nil && start+size > addressLimit {
			errs.Addf("memory.regions[%d] (%s): [%#x, %#x) exceeds the address space (%d bits)", i, reg.Name, start, start+size, p.AddressSpace)
		}
		if !validPermissions(reg.Permissions) {
			errs.Addf("memory.regions[%d] (%s): permissions %q must be an \"rwx\"-style string", i, reg.Name, reg.Permissions)
		}
		if reg.Type == "composite" && reg.Handler == "" {
			errs.Addf("memory.regions[%d] (%s): composite regions require a handler", i, reg.Name)
		}
	}

	for i, card := range p.Devices.Slots.Cards {
		if card.Slot < 1 || card.Slot > 7 {
			errs.Addf("devices.slots.cards[%d]: slot %d out of range [1,7]", i, card.Slot)
		}
		if card.Type == "" {
			errs.Addf("devices.slots.cards[%d]: type is required", i)
		}
	}

	if len(errs.Violations) == 0 {
		return nil
	}
	return &errs
}

func clampBits(bits int) int {
	if bits < 0 {
		return 0
	}
	if bits > 63 {
		return 63
	}
	return bits
}

func validPermissions(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch c {
		case 'r', 'w', 'x', '-':
		default:
			return false
		}
	}
	return true
}

// ParseHex parses a hex-string field as spec.md §6 defines them:
// an optional "0x"/"0X" prefix followed by hexadecimal digits, or
// (absent a prefix) a plain hexadecimal string, the way the teacher's
// util/hex package renders addresses without a prefix. Generalizes
// that package's formatting direction into the reverse, parsing one.
func ParseHex(s string) (uint64, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if trimmed == "" {
		return 0, fmt.Errorf("empty hex value %q", s)
	}
	v, err := strconv.ParseUint(trimmed, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid hex value %q: %w", s, err)
	}
	return v, nil
}
