package profile

import (
	"strings"
	"testing"
)

const validProfileJSON = `{
  "address_space": 16,
  "cpu": {"type": "65C02"},
  "memory": {
    "rom_images": [
      {"name": "apple2e.rom", "source": "roms/apple2e.rom", "size": "3000"}
    ],
    "physical": [
      {"name": "main-rom", "size": "3000", "sources": [
        {"type": "rom-image", "rom_image": "apple2e.rom", "offset": "0"}
      ]}
    ],
    "regions": [
      {"name": "ram", "type": "ram", "start": "0", "size": "C000", "permissions": "rwx"},
      {"name": "rom", "type": "rom", "start": "D000", "size": "3000", "permissions": "r-x", "source": "main-rom"}
    ]
  },
  "devices": {
    "motherboard": [
      {"type": "speaker", "enabled": true}
    ],
    "slots": {
      "enabled": true,
      "cards": [{"slot": 6, "type": "disk2"}]
    }
  }
}`

func TestLoadValidProfile(t *testing.T) {
	p, err := Load(strings.NewReader(validProfileJSON))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.AddressSpace != 16 {
		t.Fatalf("AddressSpace = %d, want 16", p.AddressSpace)
	}
	if p.CPU.Type != "65C02" {
		t.Fatalf("CPU.Type = %q, want 65C02", p.CPU.Type)
	}
	if len(p.Memory.Regions) != 2 {
		t.Fatalf("len(Regions) = %d, want 2", len(p.Memory.Regions))
	}
}

func TestLoadMalformedJSONReturnsConfigError(t *testing.T) {
	_, err := Load(strings.NewReader(`{not json`))
	var cfgErr *ConfigError
	if !asConfigError(err, &cfgErr) {
		t.Fatalf("error = %v (%T), want *ConfigError", err, err)
	}
}

func TestValidateAccumulatesAllViolations(t *testing.T) {
	p := &Profile{
		AddressSpace: 99,               // out of range
		CPU:          CPUConfig{Type: "Z80"}, // unknown
		Memory: MemoryConfig{
			Regions: []Region{
				{Name: "bad", Type: "weird", Start: "0x0FFF", Size: "0x1000", Permissions: "zzz"},
			},
		},
		Devices: DevicesConfig{
			Slots: SlotsConfig{Cards: []SlotCard{{Slot: 9, Type: ""}}},
		},
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	if len(err.Violations) < 6 {
		t.Fatalf("Violations = %v, want at least 6 distinct issues", err.Violations)
	}
}

func TestValidateRegionMustBePageAligned(t *testing.T) {
	p := validMinimalProfile()
	p.Memory.Regions = []Region{
		{Name: "r", Type: "ram", Start: "0x0100", Size: "0x1000", Permissions: "rwx"},
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected an alignment violation")
	}
	if !containsSubstring(err.Violations, "not a multiple of 0x1000") {
		t.Fatalf("violations = %v, want an alignment complaint", err.Violations)
	}
}

func TestValidateRegionExceedingAddressSpace(t *testing.T) {
	p := validMinimalProfile()
	p.AddressSpace = 12
	p.Memory.Regions = []Region{
		{Name: "r", Type: "ram", Start: "0x1000", Size: "0x1000", Permissions: "rwx"},
	}
	err := p.Validate()
	if err == nil {
		t.Fatal("expected an address-space-exceeded violation")
	}
	if !containsSubstring(err.Violations, "exceeds the address space") {
		t.Fatalf("violations = %v, want an address-space complaint", err.Violations)
	}
}

func TestValidateDuplicatePhysicalName(t *testing.T) {
	p := validMinimalProfile()
	p.Memory.Physical = []PhysicalBlock{
		{Name: "dup", Size: "0x1000"},
		{Name: "dup", Size: "0x1000"},
	}
	err := p.Validate()
	if err == nil || !containsSubstring(err.Violations, "duplicate name") {
		t.Fatalf("expected duplicate-name violation, got %v", err)
	}
}

func TestParseHexAcceptsPrefixedAndBare(t *testing.T) {
	cases := map[string]uint64{
		"0x1000": 0x1000,
		"0X1000": 0x1000,
		"1000":   0x1000,
		"0":      0,
		"ffff":   0xffff,
	}
	for in, want := range cases {
		got, err := ParseHex(in)
		if err != nil {
			t.Fatalf("ParseHex(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseHex(%q) = %#x, want %#x", in, got, want)
		}
	}
}

func TestParseHexRejectsInvalid(t *testing.T) {
	for _, in := range []string{"", "0x", "zz", "0xZZ"} {
		if _, err := ParseHex(in); err == nil {
			t.Fatalf("ParseHex(%q): expected an error", in)
		}
	}
}

func validMinimalProfile() *Profile {
	return &Profile{
		AddressSpace: 16,
		CPU:          CPUConfig{Type: "65C02"},
	}
}

func containsSubstring(haystack []string, needle string) bool {
	for _, s := range haystack {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func asConfigError(err error, target **ConfigError) bool {
	ce, ok := err.(*ConfigError)
	if !ok {
		return false
	}
	*target = ce
	return true
}
