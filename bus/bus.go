// Package bus implements the NSF engine's 16-bit address decoder: the
// component a CPU collaborator's read/write hooks call into, routing each
// access to RAM, the driver shim, the APU register shadow (and sink), the
// bank-switch registers, ROM, or the interrupt vectors.
//
// The NSF address map is six small, fixed, non-overlapping ranges known at
// compile time, so decoding is a direct range switch rather than a general
// device-registration table.
package bus

import "github.com/arl/nsfplay/emu/log"

// Address ranges the bus decodes. Anything outside these six ranges reads
// as 0 and discards writes.
const (
	ramStart, ramEnd           = 0x0000, 0x07FF
	shimStart, shimEnd         = 0x1000, 0x107F
	apuStart, apuEnd           = 0x4000, 0x4017
	bankRegStart, bankRegEnd   = 0x5FF8, 0x5FFF
	romStart, romEnd           = 0x8000, 0xFFF9
	vecStart, vecEnd           = 0xFFFA, 0xFFFF
	apuControllerStrobe uint16 = 0x4016
)

// ROMSource resolves a read in the $8000-$FFF9 range. bank.Cache and the
// engine's contiguous flat-ROM buffer both implement it.
type ROMSource interface {
	Read(addr uint16) uint8
}

// BankSwitcher services a write to a bank-switch register. Only bank.Cache
// implements it; in contiguous-ROM mode the bus has none, and bank-register
// writes only update the shadow register.
type BankSwitcher interface {
	LoadBank(registerIndex, bankID int) error
}

// APUSink receives every APU register write not aimed at the controller
// strobe register, in 6502 program order.
type APUSink interface {
	Write(addr uint16, val uint8)
}

// MemoryBus is what a CPU collaborator's host hooks call back into.
type MemoryBus interface {
	Read8(addr uint16) uint8
	Write8(addr uint16, val uint8)
}

// Bus is the NSF engine's memory map.
type Bus struct {
	RAM      [ramEnd - ramStart + 1]byte
	Shim     [shimEnd - shimStart + 1]byte
	APURegs  [apuEnd - apuStart + 1]byte
	BankRegs [bankRegEnd - bankRegStart + 1]byte
	IntVecs  [vecEnd - vecStart + 1]byte

	rom          ROMSource
	bankSwitcher BankSwitcher
	sink         APUSink

	// LastError records the most recent bank-switcher failure. Write8 has
	// no return value (it services a CPU's host hook), so a load_bank
	// failure is surfaced here for the playback controller to check after
	// stepping, rather than being silently dropped.
	LastError error
}

// New creates a Bus reading ROM from rom and forwarding APU writes to sink.
// If rom also implements BankSwitcher, writes to $5FF8-$5FFF drive it;
// otherwise they only update the register shadow.
func New(rom ROMSource, sink APUSink) *Bus {
	b := &Bus{rom: rom, sink: sink}
	if sw, ok := rom.(BankSwitcher); ok {
		b.bankSwitcher = sw
	}
	return b
}

// Reset clears RAM, the APU shadow, and the bank-register shadow, and
// leaves the shim/ROM/vectors untouched (those are (re)installed by the
// playback controller on each playback_init).
func (b *Bus) Reset() {
	clear(b.RAM[:])
	clear(b.APURegs[:])
	clear(b.BankRegs[:])
}

// Read8 decodes addr and returns the byte at that address, or 0 if addr is
// unmapped.
func (b *Bus) Read8(addr uint16) uint8 {
	switch {
	case addr <= ramEnd:
		return b.RAM[addr-ramStart]
	case addr >= shimStart && addr <= shimEnd:
		return b.Shim[addr-shimStart]
	case addr >= apuStart && addr <= apuEnd:
		return b.APURegs[addr-apuStart]
	case addr >= bankRegStart && addr <= bankRegEnd:
		return b.BankRegs[addr-bankRegStart]
	case addr >= romStart && addr <= romEnd:
		return b.rom.Read(addr)
	case addr >= vecStart && addr <= vecEnd:
		return b.IntVecs[addr-vecStart]
	default:
		return 0
	}
}

// Write8 decodes addr and stores val, per the address decoding table.
// Writes to the shim, ROM, or unmapped ranges are silently discarded.
func (b *Bus) Write8(addr uint16, val uint8) {
	switch {
	case addr <= ramEnd:
		b.RAM[addr-ramStart] = val
	case addr >= shimStart && addr <= shimEnd:
		// The shim is CPU-executed code, not writable memory.
	case addr >= apuStart && addr <= apuEnd:
		b.APURegs[addr-apuStart] = val
		if addr != apuControllerStrobe && b.sink != nil {
			b.sink.Write(addr, val)
		}
	case addr >= bankRegStart && addr <= bankRegEnd:
		b.writeBankReg(addr-bankRegStart, val)
	case addr >= romStart && addr <= romEnd, addr >= vecStart && addr <= vecEnd:
		// ROM and interrupt vectors are read-only from the CPU's side.
	default:
		// Unmapped: discarded.
	}
}

func (b *Bus) writeBankReg(idx uint16, val uint8) {
	if b.BankRegs[idx] == val {
		return
	}
	b.BankRegs[idx] = val

	if b.bankSwitcher == nil {
		return
	}
	if err := b.bankSwitcher.LoadBank(int(idx), int(val)); err != nil {
		log.ModBus.ErrorZ("bank switch failed").
			Int("register", int(idx)).Hex8("bank", val).Error("err", err).End()
		b.LastError = err
	}
}
