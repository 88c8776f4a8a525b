package engine

import (
	"errors"
	"os"
	"testing"

	"github.com/arl/nsfplay/bus"
	"github.com/arl/nsfplay/nsf"
	"github.com/arl/nsfplay/shim"
	"github.com/arl/nsfplay/sink"
)

// fakeCPU interprets just enough of the 6502 instruction set to execute the
// driver shim and a song's INIT/PLAY routines when those routines are
// themselves written in the same restricted subset
// (LDA/LDX/STA/JSR/RTS/JMP/NOP).
// It stands in for the real 6502 core, which is out of scope here.
type fakeCPU struct {
	mb        bus.MemoryBus
	pc        uint16
	a, x      uint8
	callStack []uint16
}

func (c *fakeCPU) Reset(mb bus.MemoryBus) {
	c.mb = mb
	lo := uint16(mb.Read8(0xFFFC))
	hi := uint16(mb.Read8(0xFFFD))
	c.pc = hi<<8 | lo
	c.callStack = nil
}

func (c *fakeCPU) PC() uint16 { return c.pc }

func (c *fakeCPU) Step() {
	op := c.mb.Read8(c.pc)
	switch op {
	case 0xA9: // LDA #imm
		c.a = c.mb.Read8(c.pc + 1)
		c.pc += 2
	case 0xA2: // LDX #imm
		c.x = c.mb.Read8(c.pc + 1)
		c.pc += 2
	case 0x20: // JSR abs
		target := uint16(c.mb.Read8(c.pc+1)) | uint16(c.mb.Read8(c.pc+2))<<8
		c.callStack = append(c.callStack, c.pc+3)
		c.pc = target
	case 0x60: // RTS
		n := len(c.callStack)
		c.pc = c.callStack[n-1]
		c.callStack = c.callStack[:n-1]
	case 0x4C: // JMP abs
		c.pc = uint16(c.mb.Read8(c.pc+1)) | uint16(c.mb.Read8(c.pc+2))<<8
	case 0x8D: // STA abs (used by the fake init/play routines below)
		addr := uint16(c.mb.Read8(c.pc+1)) | uint16(c.mb.Read8(c.pc+2))<<8
		c.mb.Write8(addr, c.a)
		c.pc += 3
	case 0xEA: // NOP
		c.pc++
	default:
		panic("fakeCPU: unsupported opcode")
	}
}

// buildNSF assembles a minimal, well-formed contiguous-load NSF file in
// memory. init and play are tiny routines written in fakeCPU's instruction
// subset, placed at $8000 and $8010 respectively, both terminated with RTS.
func buildNSF(t *testing.T) []byte {
	t.Helper()

	buf := make([]byte, nsf.HeaderSize+0x8000)
	copy(buf[0:5], nsf.Magic[:])
	buf[5] = 1 // version
	buf[6] = 2 // total songs
	buf[7] = 1 // starting song (1-based)
	putU16(buf[8:10], 0x8000)
	putU16(buf[10:12], 0x8000) // init
	putU16(buf[12:14], 0x8010) // play

	body := buf[0x80:]
	// init: STA $4000; RTS
	body[0x00] = 0x8D
	body[0x01] = 0x00
	body[0x02] = 0x40
	body[0x03] = 0x60
	// play, at file offset matching $8010 given load address $8000
	body[0x10] = 0x8D
	body[0x11] = 0x01
	body[0x12] = 0x40
	body[0x13] = 0x60

	return buf
}

// buildBankedNSF assembles a bankswitched NSF file with eight 4 KiB banks,
// register i mapped at init to bank i. Bank 0 (mapped at $8000-$8FFF) holds
// the same init/play routines as buildNSF.
func buildBankedNSF(t *testing.T) []byte {
	t.Helper()

	const numBanks = 8
	buf := make([]byte, nsf.HeaderSize+numBanks*4096)
	copy(buf[0:5], nsf.Magic[:])
	buf[5] = 1
	buf[6] = 2
	buf[7] = 1
	putU16(buf[8:10], 0x8000)
	putU16(buf[10:12], 0x8000)
	putU16(buf[12:14], 0x8010)
	for i := 0; i < numBanks; i++ {
		buf[112+i] = uint8(i)
	}

	bank0 := buf[0x80 : 0x80+4096]
	bank0[0x00] = 0x8D
	bank0[0x01] = 0x00
	bank0[0x02] = 0x40
	bank0[0x03] = 0x60
	bank0[0x10] = 0x8D
	bank0[0x11] = 0x01
	bank0[0x12] = 0x40
	bank0[0x13] = 0x60

	return buf
}

func putU16(b []byte, v uint16) {
	b[0] = uint8(v)
	b[1] = uint8(v >> 8)
}

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.nsf")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return f.Name()
}

func TestOpenPlaybackInitFrameClose(t *testing.T) {
	path := writeTemp(t, buildNSF(t))

	cpu := &fakeCPU{}
	e, err := Open(path, cpu)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	rec := &sink.Recorder{}
	if err := e.PlaybackInit(0, rec); err != nil {
		t.Fatalf("PlaybackInit: %v", err)
	}
	if cpu.PC() != shim.IdleAddr {
		t.Fatalf("pc after init = %#04x, want %#04x", cpu.PC(), shim.IdleAddr)
	}
	if len(rec.Writes) != 1 || rec.Writes[0].Addr != 0x4000 {
		t.Fatalf("expected one write from init, got %+v", rec.Writes)
	}

	if err := e.PlaybackFrame(); err != nil {
		t.Fatalf("PlaybackFrame: %v", err)
	}
	if len(rec.Writes) != 2 || rec.Writes[1].Addr != 0x4001 {
		t.Fatalf("expected a second write from play, got %+v", rec.Writes)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestOpenAlreadyOpen(t *testing.T) {
	path := writeTemp(t, buildNSF(t))

	e1, err := Open(path, &fakeCPU{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e1.Close()

	_, err = Open(path, &fakeCPU{})
	if !errors.Is(err, ErrAlreadyOpen) {
		t.Fatalf("second Open error = %v, want ErrAlreadyOpen", err)
	}
}

func TestPlaybackFrameBeforeInit(t *testing.T) {
	path := writeTemp(t, buildNSF(t))
	e, err := Open(path, &fakeCPU{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if err := e.PlaybackFrame(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("PlaybackFrame before init = %v, want ErrInvalidState", err)
	}
}

func TestPlaybackInitBankedMode(t *testing.T) {
	path := writeTemp(t, buildBankedNSF(t))

	cpu := &fakeCPU{}
	e, err := Open(path, cpu)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	rec := &sink.Recorder{}
	if err := e.PlaybackInit(1, rec); err != nil {
		t.Fatalf("PlaybackInit: %v", err)
	}
	if cpu.PC() != shim.IdleAddr {
		t.Fatalf("pc after init = %#04x, want %#04x", cpu.PC(), shim.IdleAddr)
	}
	if len(rec.Writes) != 1 || rec.Writes[0].Addr != 0x4000 {
		t.Fatalf("expected one write from init, got %+v", rec.Writes)
	}

	if err := e.PlaybackFrame(); err != nil {
		t.Fatalf("PlaybackFrame: %v", err)
	}
	if len(rec.Writes) != 2 || rec.Writes[1].Addr != 0x4001 {
		t.Fatalf("expected a second write from play, got %+v", rec.Writes)
	}
}

func TestBadLoadAddress(t *testing.T) {
	data := buildNSF(t)
	putU16(data[8:10], 0x0200) // below $8000
	path := writeTemp(t, data)

	e, err := Open(path, &fakeCPU{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer e.Close()

	if err := e.PlaybackInit(0, &sink.Recorder{}); !errors.Is(err, ErrBadLoadAddress) {
		t.Fatalf("PlaybackInit err = %v, want ErrBadLoadAddress", err)
	}
}

// A failed playback_init must release the singleton slot and the file
// handle on its own, without waiting for Close: otherwise one malformed
// NSF file permanently locks out every later Open in the process.
func TestFailedPlaybackInitReleasesSingleton(t *testing.T) {
	data := buildNSF(t)
	putU16(data[8:10], 0x0200) // below $8000
	path := writeTemp(t, data)

	e, err := Open(path, &fakeCPU{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if err := e.PlaybackInit(0, &sink.Recorder{}); !errors.Is(err, ErrBadLoadAddress) {
		t.Fatalf("PlaybackInit err = %v, want ErrBadLoadAddress", err)
	}

	other, err := Open(writeTemp(t, buildNSF(t)), &fakeCPU{})
	if err != nil {
		t.Fatalf("Open after failed playback_init on a discarded engine: %v", err)
	}
	defer other.Close()

	// Close on the original engine must still be safe (idempotent
	// teardown), and must not release the slot a second time.
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
