package trap

import (
	"errors"
	"testing"

	"github.com/retrobus/sim65/emu/types"
)

func TestRegisterDuplicateKeyP11(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(0xFDED, OpCall, DefaultContext, "COUT", CategoryMonitor, okHandler, ""); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	err := r.Register(0xFDED, OpCall, DefaultContext, "COUT-dup", CategoryMonitor, okHandler, "")
	if !errors.Is(err, ErrDuplicateKey) {
		t.Fatalf("Register duplicate = %v, want ErrDuplicateKey", err)
	}
	// A different context at the same address is a distinct key.
	if err := r.Register(0xFDED, OpCall, LanguageCardRam, "COUT-lc", CategoryMonitor, okHandler, ""); err != nil {
		t.Fatalf("Register under distinct context: %v", err)
	}
}

func TestContainsAddressReflectsAnyKeyP11(t *testing.T) {
	r := NewRegistry()
	if r.ContainsAddress(0xFDED) {
		t.Fatal("ContainsAddress true before any registration")
	}
	if err := r.Register(0xFDED, OpCall, DefaultContext, "COUT", CategoryMonitor, okHandler, ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.ContainsAddress(0xFDED) {
		t.Fatal("ContainsAddress false right after registration")
	}
	// Disabling doesn't remove it from the address index.
	r.SetCategoryEnabled(CategoryMonitor, false)
	if !r.ContainsAddress(0xFDED) {
		t.Fatal("ContainsAddress should stay true for a disabled trap")
	}
	r.Unregister(Key{Addr: 0xFDED, Operation: OpCall, Context: DefaultContext})
	if r.ContainsAddress(0xFDED) {
		t.Fatal("ContainsAddress true after the only trap at that address was removed")
	}
}

func TestDefaultContextResolutionP12(t *testing.T) {
	r := NewRegistry()
	romHits := 0
	lcHits := 0
	if err := r.Register(0xD000, OpRead, ROM, "rom-d000", CategoryFirmware, func(HandlerArgs) Result {
		romHits++
		return Result{Handled: true}
	}, ""); err != nil {
		t.Fatalf("Register ROM trap: %v", err)
	}
	if err := r.Register(0xD000, OpRead, LanguageCardRam, "lc-d000", CategoryFirmware, func(HandlerArgs) Result {
		lcHits++
		return Result{Handled: true}
	}, ""); err != nil {
		t.Fatalf("Register LC trap: %v", err)
	}

	// LC RAM read disabled (no func wired): resolves to ROM.
	r.TryExecute(0xD000, OpRead, 0, nil, nil, nil)
	if romHits != 1 || lcHits != 0 {
		t.Fatalf("with LC read disabled: romHits=%d lcHits=%d, want 1,0", romHits, lcHits)
	}

	lcEnabled := true
	r.SetLCRamReadEnabledFunc(func() bool { return lcEnabled })
	r.TryExecute(0xD000, OpRead, 0, nil, nil, nil)
	if romHits != 1 || lcHits != 1 {
		t.Fatalf("with LC read enabled: romHits=%d lcHits=%d, want 1,1", romHits, lcHits)
	}

	// Below 0xD000 always resolves to ROM regardless of LC state.
	if err := r.Register(0xC100, OpRead, ROM, "rom-c100", CategoryFirmware, func(HandlerArgs) Result {
		romHits++
		return Result{Handled: true}
	}, ""); err != nil {
		t.Fatalf("Register below-D000 trap: %v", err)
	}
	r.TryExecute(0xC100, OpRead, 0, nil, nil, nil)
	if romHits != 2 {
		t.Fatalf("romHits = %d, want 2", romHits)
	}
}

func TestSlotTrapRequiresCardInstalledP12(t *testing.T) {
	r := NewRegistry()
	invoked := 0
	if err := r.RegisterSlotTrap(0xC600, OpCall, DefaultContext, "disk-boot", CategoryDiskDriver, 6, func(HandlerArgs) Result {
		invoked++
		return Result{Handled: true}
	}, ""); err != nil {
		t.Fatalf("RegisterSlotTrap: %v", err)
	}

	res := r.TryExecute(0xC600, OpCall, 0, nil, nil, nil)
	if res.Handled || invoked != 0 {
		t.Fatal("trap fired with no SlotInstalledFunc wired (must default to not installed)")
	}

	r.SetSlotInstalledFunc(func(slot int) bool { return slot == 6 })
	res = r.TryExecute(0xC600, OpCall, 0, nil, nil, nil)
	if !res.Handled || invoked != 1 {
		t.Fatalf("trap should fire once slot 6 reports installed: handled=%v invoked=%d", res.Handled, invoked)
	}
}

func TestExpansionROMSlotTrapGatingP12(t *testing.T) {
	r := NewRegistry()
	invoked := 0
	if err := r.RegisterSlotTrap(0xC800, OpRead, DefaultContext, "slot6-rom", CategoryDiskDriver, 6, func(HandlerArgs) Result {
		invoked++
		return Result{Handled: true}
	}, ""); err != nil {
		t.Fatalf("RegisterSlotTrap: %v", err)
	}
	info, ok := r.traps[Key{Addr: 0xC800, Operation: OpRead, Context: DefaultContext}]
	if !ok || !info.RequiresExpansionROM {
		t.Fatal("trap at 0xC800 must auto-set RequiresExpansionROM")
	}
	r.SetSlotInstalledFunc(func(int) bool { return true })

	// No active expansion slot selected yet.
	res := r.TryExecute(0xC800, OpRead, 0, nil, nil, nil)
	if res.Handled || invoked != 0 {
		t.Fatal("trap fired without an active expansion slot")
	}

	activeSlot := 5
	r.SetActiveExpansionSlotFunc(func() (int, bool) { return activeSlot, true })
	res = r.TryExecute(0xC800, OpRead, 0, nil, nil, nil)
	if res.Handled || invoked != 0 {
		t.Fatal("trap fired while a different slot's expansion ROM is selected")
	}

	activeSlot = 6
	res = r.TryExecute(0xC800, OpRead, 0, nil, nil, nil)
	if !res.Handled || invoked != 1 {
		t.Fatalf("trap should fire once slot 6's expansion ROM is active: handled=%v invoked=%d", res.Handled, invoked)
	}
}

// TestMonitorCallTrapReturnsViaRtsS5 models scenario S5: a trap
// installed over a monitor Call (e.g. COUT) runs in place of the ROM
// routine and reports an RTS-style return with cycles charged.
func TestMonitorCallTrapReturnsViaRtsS5(t *testing.T) {
	r := NewRegistry()
	var sawArgs HandlerArgs
	err := r.RegisterCall(0xFDED, "COUT", CategoryMonitor, func(args HandlerArgs) Result {
		sawArgs = args
		return Result{
			Handled:          true,
			CyclesConsumed:   6,
			ReturnMethod:     ReturnRts,
			ReturnAddress:    0x0803,
			HasReturnAddress: true,
		}
	}, "character output")
	if err != nil {
		t.Fatalf("RegisterCall: %v", err)
	}

	var invokedKey Key
	var invokedResult Result
	r.OnTrapInvoked(func(key Key, result Result, cycle types.Cycle) {
		invokedKey = key
		invokedResult = result
	})

	fakeCPU := struct{ PC uint16 }{PC: 0xFDED}
	res := r.TryExecute(0xFDED, OpCall, 1000, &fakeCPU, nil, nil)

	if !res.Handled {
		t.Fatal("COUT trap should be handled")
	}
	if res.ReturnMethod != ReturnRts {
		t.Fatalf("ReturnMethod = %v, want ReturnRts", res.ReturnMethod)
	}
	if !res.HasReturnAddress || res.ReturnAddress != 0x0803 {
		t.Fatalf("ReturnAddress = (%v, %v), want (0x0803, true)", res.ReturnAddress, res.HasReturnAddress)
	}
	if res.CyclesConsumed != 6 {
		t.Fatalf("CyclesConsumed = %d, want 6", res.CyclesConsumed)
	}
	if sawArgs.Addr != 0xFDED || sawArgs.Op != OpCall || sawArgs.Cycle != 1000 || sawArgs.CPU != &fakeCPU {
		t.Fatalf("handler args = %+v, want addr 0xFDED op Call cycle 1000 cpu wired", sawArgs)
	}
	if invokedKey.Addr != 0xFDED || invokedResult.ReturnMethod != ReturnRts {
		t.Fatalf("invoked observer saw key=%+v result=%+v", invokedKey, invokedResult)
	}
}

func TestUnregisterSlotAndContextBulkRemoval(t *testing.T) {
	r := NewRegistry()
	must(t, r.RegisterSlotTrap(0xC600, OpCall, DefaultContext, "slot6-a", CategoryDiskDriver, 6, okHandler, ""))
	must(t, r.RegisterSlotTrap(0xC600, OpRead, DefaultContext, "slot6-b", CategoryDiskDriver, 6, okHandler, ""))
	must(t, r.RegisterSlotTrap(0xC700, OpCall, DefaultContext, "slot7-a", CategoryDiskDriver, 7, okHandler, ""))
	must(t, r.RegisterLanguageCardTrap(0xD800, OpRead, "lc-a", CategoryCustom, okHandler, ""))

	if n := r.UnregisterSlot(6); n != 2 {
		t.Fatalf("UnregisterSlot(6) = %d, want 2", n)
	}
	if r.ContainsAddress(0xC600) {
		t.Fatal("0xC600 should have no remaining traps")
	}
	if !r.ContainsAddress(0xC700) {
		t.Fatal("0xC700 (slot 7) should be untouched")
	}

	if n := r.UnregisterContext(LanguageCardRam); n != 1 {
		t.Fatalf("UnregisterContext(LanguageCardRam) = %d, want 1", n)
	}
	if r.ContainsAddress(0xD800) {
		t.Fatal("0xD800 should have been removed by context")
	}
}

func TestClearAllRemovesEverything(t *testing.T) {
	r := NewRegistry()
	must(t, r.RegisterCall(0xFDED, "COUT", CategoryMonitor, okHandler, ""))
	must(t, r.RegisterLanguageCardTrap(0xD000, OpRead, "lc", CategoryCustom, okHandler, ""))
	r.ClearAll()
	if r.ContainsAddress(0xFDED) || r.ContainsAddress(0xD000) {
		t.Fatal("ClearAll should remove every trap")
	}
}

func TestEnableKeyUnknownKeyErrors(t *testing.T) {
	r := NewRegistry()
	err := r.EnableKey(Key{Addr: 0x1234, Operation: OpRead, Context: DefaultContext}, false)
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("EnableKey on unregistered key = %v, want ErrUnknownKey", err)
	}
}

func okHandler(HandlerArgs) Result { return Result{Handled: true} }

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
