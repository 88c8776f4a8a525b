// Package engine implements the NSF playback controller: it orchestrates
// header parsing, ROM mapping (banked or contiguous), driver-shim
// installation, and per-frame CPU stepping, forwarding every APU register
// write to a caller-supplied sink.
//
// The 6502 core itself is an external collaborator (CPU) the caller
// supplies; PlaybackInit binds it to the engine's Bus through CPU.Reset.
// This package never implements 6502 semantics.
package engine

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sync/semaphore"

	"github.com/arl/nsfplay/bank"
	"github.com/arl/nsfplay/bus"
	"github.com/arl/nsfplay/emu/log"
	"github.com/arl/nsfplay/nsf"
	"github.com/arl/nsfplay/shim"
)

// CPU is the external 6502 collaborator this engine drives. Reset binds
// the CPU's host read/write hooks to mb and leaves PC set from the vector
// at $FFFC/$FFFD; Step must execute exactly one instruction against the
// bus it was last bound to.
type CPU interface {
	Reset(mb bus.MemoryBus)
	Step()
	PC() uint16
}

// Only one engine may exist at a time: the CPU collaborator is a
// process-global resource (single register file, single bus binding).
var singleton = semaphore.NewWeighted(1)

// maxInitSteps and maxTicksPerFrame bound otherwise-unbounded step loops
// against a malformed or non-returning driver program; a well-formed NSF
// never approaches either.
const (
	maxInitSteps     = 10_000_000
	maxTicksPerFrame = 10_000_000
)

// Engine is one open NSF file, from Open through Close.
type Engine struct {
	file   *os.File
	header *nsf.Header
	cpu    CPU
	bus    *bus.Bus

	// closed marks the engine as unusable for further playback_init /
	// playback_frame calls: set on Close and on any playback_init failure
	// past the song-index check (§7 requires the caller to discard the
	// engine after a failed init).
	closed bool

	// released tracks whether the process-wide singleton slot and the file
	// handle have been freed, independently of closed: a failed
	// playback_init marks the engine closed and releases both at once, so a
	// later Close (called by the caller to discard it) finds nothing left
	// to free. teardown checks it so the release happens exactly once.
	released bool
}

// teardown releases the singleton slot and closes the file handle, at most
// once per Engine. Safe to call from a failed playback_init and again from
// a later Close.
func (e *Engine) teardown() error {
	if e.released {
		return nil
	}
	e.released = true
	singleton.Release(1)
	return e.file.Close()
}

// Open opens path, parses its header, and reserves the process-wide
// single-engine slot. cpu is the caller-supplied 6502 collaborator; it is
// not reset here, only stored — call PlaybackInit to start playback.
func Open(path string, cpu CPU) (*Engine, error) {
	if cpu == nil {
		return nil, fmt.Errorf("engine: nil cpu: %w", ErrInvalidArg)
	}
	if !singleton.TryAcquire(1) {
		return nil, ErrAlreadyOpen
	}

	f, err := os.Open(path)
	if err != nil {
		singleton.Release(1)
		return nil, fmt.Errorf("engine: open %s: %w", path, err)
	}

	var buf [nsf.HeaderSize]byte
	n, err := f.ReadAt(buf[:], 0)
	if err != nil && err != io.EOF {
		f.Close()
		singleton.Release(1)
		return nil, fmt.Errorf("engine: read header: %w: %w", ErrIoError, err)
	}
	if n < nsf.HeaderSize {
		f.Close()
		singleton.Release(1)
		return nil, fmt.Errorf("engine: %s: %w", path, nsf.ErrShortHeader)
	}
	hdr, err := nsf.Decode(buf[:])
	if err != nil {
		f.Close()
		singleton.Release(1)
		return nil, err
	}

	e := &Engine{file: f, header: hdr, cpu: cpu}
	return e, nil
}

// Header returns the engine's parsed NSF header.
func (e *Engine) Header() *nsf.Header {
	return e.header
}

// LogHeader logs a summary of the engine's header at info level.
func (e *Engine) LogHeader() {
	h := e.header
	log.ModEngine.InfoZ("nsf header").
		String("name", h.Name).
		String("artist", h.Artist).
		Hex16("load", h.LoadAddress).
		Hex16("init", h.InitAddress).
		Hex16("play", h.PlayAddress).
		Bool("bankswitched", h.IsBankswitched()).
		Bool("pal", h.IsPAL()).
		End()
}

// PlaybackInit resets RAM/APU/bank state, builds the driver shim, maps ROM
// (banked or contiguous, per the header's bankswitch_init vector), resets
// the CPU, and single-steps until the CPU idles at the shim's poll address.
func (e *Engine) PlaybackInit(song int, apuSink bus.APUSink) error {
	if e.closed {
		return fmt.Errorf("engine: playback_init on closed engine: %w", ErrInvalidState)
	}
	if song < 0 || song > 0xFF {
		return fmt.Errorf("engine: song %d: %w", song, ErrInvalidArg)
	}
	if e.header.LoadAddress < 0x8000 {
		return e.failInit(ErrBadLoadAddress)
	}

	var rom bus.ROMSource
	if e.header.IsBankswitched() {
		cache := bank.New(e.file, e.header.LoadAddress)
		for i, bankID := range e.header.BankswitchInit {
			if err := cache.LoadBank(i, int(bankID)); err != nil {
				return e.failInit(err)
			}
		}
		rom = cache
	} else {
		flat, err := e.loadContiguousROM()
		if err != nil {
			return e.failInit(err)
		}
		rom = flat
	}

	b := bus.New(rom, apuSink)
	b.Reset()
	b.APURegs[0x17] = 0x40 // frame-counter initial state

	region := shim.NTSC
	if e.header.IsPAL() {
		region = shim.PAL
	}
	s := shim.Build(uint8(song), region, e.header.InitAddress, e.header.PlayAddress)
	copy(b.Shim[:], s[:])
	b.IntVecs[2] = shim.ResetVectorLow
	b.IntVecs[3] = shim.ResetVectorHigh

	e.bus = b
	e.cpu.Reset(b)

	steps := 0
	for e.cpu.PC() != shim.IdleAddr {
		if steps >= maxInitSteps {
			return e.failInit(fmt.Errorf("engine: playback_init never reached the idle loop: %w", ErrInternalError))
		}
		e.cpu.Step()
		steps++
		if b.LastError != nil {
			return e.failInit(b.LastError)
		}
	}
	return nil
}

// failInit marks the engine closed and tears it down (releasing the
// singleton slot and the file handle) on a playback_init failure, per §7:
// a partially-initialized engine must not be reusable, and must not hold
// the process-wide slot hostage until some later Close call.
func (e *Engine) failInit(err error) error {
	e.closed = true
	e.teardown()
	return err
}

// loadContiguousROM reads the NSF body directly into a flat 32 KiB buffer
// covering $8000-$FFFF, per §4.2/§6's contiguous-load rule.
func (e *Engine) loadContiguousROM() (*flatROM, error) {
	flat := &flatROM{}

	offset := e.header.LoadAddress - 0x8000
	readLen := int(0xFFFF - e.header.LoadAddress)
	if readLen <= 0 {
		return flat, nil
	}
	if int(offset)+readLen > len(flat.buf) {
		readLen = len(flat.buf) - int(offset)
	}

	n, err := e.file.ReadAt(flat.buf[offset:int(offset)+readLen], 0x80)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("engine: read rom body: %w: %w", ErrIoError, err)
	}
	if n < readLen {
		// A short read at EOF leaves the remainder zeroed; it is only
		// recorded as a diagnostic.
		log.ModEngine.DebugZ("short rom body read, remainder zero-filled").
			Int("read", n).Int("want", readLen).End()
	}
	return flat, nil
}

// PlaybackFrame steps the CPU through one JSR play/JMP idle cycle. The CPU
// must be sitting at the shim's idle address on entry (i.e. either
// PlaybackInit just returned, or the previous PlaybackFrame call did).
func (e *Engine) PlaybackFrame() error {
	if e.closed || e.bus == nil {
		return fmt.Errorf("engine: playback_frame before playback_init: %w", ErrInvalidState)
	}
	if e.cpu.PC() != shim.IdleAddr {
		return fmt.Errorf("engine: playback_frame: pc=%#04x, want %#04x: %w", e.cpu.PC(), shim.IdleAddr, ErrInvalidState)
	}

	e.cpu.Step()
	ticks := 1
	for e.cpu.PC() != shim.IdleAddr {
		if ticks >= maxTicksPerFrame {
			return fmt.Errorf("engine: playback_frame did not return to the idle loop: %w", ErrInternalError)
		}
		if e.bus.LastError != nil {
			return e.bus.LastError
		}
		e.cpu.Step()
		ticks++
	}
	if e.bus.LastError != nil {
		return e.bus.LastError
	}
	return nil
}

// Close releases the engine's file handle and the process-wide singleton
// slot. Close is idempotent; after a failed playback_init, which has
// already released both, it only marks the engine closed.
func (e *Engine) Close() error {
	e.closed = true
	e.bus = nil
	return e.teardown()
}
