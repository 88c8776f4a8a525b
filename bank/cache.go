// Package bank implements the fixed-slot LRU cache that resolves the NSF
// bank-switch registers against a file too large to keep resident: a small
// pool of in-RAM 4 KiB slots stands in for a much larger set of on-disk
// 4 KiB banks, evicting the least-recently-used resident bank on a miss.
package bank

import (
	"errors"
	"fmt"
	"io"

	"github.com/arl/nsfplay/emu/log"
)

// Capacity is the number of resident 4 KiB cache slots, C in the design.
const Capacity = 10

// Size is the size in bytes of one bank/cache slot.
const Size = 4096

// NumRegisters is the number of ROM slots ($8000-$FFFF, in 4 KiB windows)
// the cache can be asked to resolve.
const NumRegisters = 8

// bodyOffset is the file offset of the first byte of the NSF body.
const bodyOffset = 0x80

// Errors returned by LoadBank.
var (
	// ErrInvalidArg is returned for an out-of-range register index.
	ErrInvalidArg = errors.New("bank: invalid argument")

	// ErrIoError wraps a read failure other than EOF.
	ErrIoError = errors.New("bank: io error")

	// ErrInternalError indicates one of the cache's invariants was
	// violated; it is fatal to the owning engine instance.
	ErrInternalError = errors.New("bank: internal error")
)

// empty is the LRU tail sentinel: no bank occupies this position.
const empty = -1

// Cache is a fixed-capacity LRU over 4 KiB ROM banks read from src, with
// eight ROM-slot registers ($8000-$FFFF windows) that can each be pointed
// at a resident bank.
type Cache struct {
	src         io.ReaderAt
	loadAddress uint16

	slots      [Capacity][Size]byte
	slotBankID [Capacity]int
	slotLoaded [Capacity]bool
	lru        [Capacity]int // head = MRU; empty (-1) marks an unused slot

	romBlock       [NumRegisters]int // index into slots, or -1 if unmapped
	romBlockBankID [NumRegisters]int
}

// New creates a Cache reading banks from src, whose body starts at file
// offset 0x80. loadAddress is the NSF header's load address, which
// determines bank 0's short first page (see offsetForBank).
func New(src io.ReaderAt, loadAddress uint16) *Cache {
	c := &Cache{src: src, loadAddress: loadAddress}
	c.Reset()
	return c
}

// Reset empties the cache: no bank is resident, no register points anywhere.
func (c *Cache) Reset() {
	*c = Cache{src: c.src, loadAddress: c.loadAddress}
	for i := range c.lru {
		c.lru[i] = empty
	}
	for i := range c.romBlock {
		c.romBlock[i] = empty
	}
}

// LoadBank ensures bankID is resident and makes ROM register registerIndex
// point at it. Idempotent when the bank is already resident under that
// register (still touches the LRU).
func (c *Cache) LoadBank(registerIndex, bankID int) error {
	if registerIndex < 0 || registerIndex >= NumRegisters {
		return fmt.Errorf("bank: register %d: %w", registerIndex, ErrInvalidArg)
	}
	if bankID < 0 || bankID > 0xFF {
		return fmt.Errorf("bank: bank id %d: %w", bankID, ErrInvalidArg)
	}

	if slot, ok := c.residentSlot(bankID); ok {
		c.point(registerIndex, slot, bankID)
		c.touch(bankID)
		return nil
	}

	slot, err := c.victim()
	if err != nil {
		return err
	}

	if err := c.fill(slot, bankID); err != nil {
		return err
	}

	c.slotLoaded[slot] = true
	c.slotBankID[slot] = bankID
	c.point(registerIndex, slot, bankID)
	c.touch(bankID)
	return nil
}

// Read returns the byte at the given address ($8000..$FFF9), resolved
// through whichever bank the covering register currently points at, and
// promotes that bank to most-recently-used (invariant 5). Reading through
// an unmapped register is a non-fatal diagnostic that returns 0.
func (c *Cache) Read(addr uint16) uint8 {
	reg := int((addr>>12)&7) % NumRegisters
	slot := c.romBlock[reg]
	if slot == empty {
		log.ModBank.DebugZ("read from unmapped bank register").
			Hex16("addr", addr).Int("register", reg).End()
		return 0
	}
	c.touch(c.romBlockBankID[reg])
	return c.slots[slot][addr&0x0FFF]
}

func (c *Cache) residentSlot(bankID int) (int, bool) {
	for i := range c.slots {
		if c.slotLoaded[i] && c.slotBankID[i] == bankID {
			return i, true
		}
	}
	return 0, false
}

func (c *Cache) point(registerIndex, slot, bankID int) {
	c.romBlock[registerIndex] = slot
	c.romBlockBankID[registerIndex] = bankID
}

// victim picks the slot to load a new bank into: the lowest-indexed unused
// slot if any is free, else the LRU-tail resident bank's slot.
func (c *Cache) victim() (int, error) {
	for i := range c.slotLoaded {
		if !c.slotLoaded[i] {
			return i, nil
		}
	}

	oldest := c.lru[Capacity-1]
	if oldest == empty {
		return 0, fmt.Errorf("bank: full cache with empty lru tail: %w", ErrInternalError)
	}

	v, ok := c.residentSlot(oldest)
	if !ok {
		return 0, fmt.Errorf("bank: lru tail %d not resident: %w", oldest, ErrInternalError)
	}

	c.lru[Capacity-1] = empty
	c.slotLoaded[v] = false
	evictedID := c.slotBankID[v]
	c.slotBankID[v] = 0

	// Null any register still pointing at the bank we just evicted. The
	// comparison is against the evicted bank id, not the evicted slot
	// index: slot indices and bank ids are different spaces, and comparing
	// against the slot index (as an earlier, buggy version of this cache
	// did) leaves stale register pointers alive whenever a bank id happens
	// to equal some other slot's index.
	for k := range c.romBlock {
		if c.romBlock[k] == v && c.romBlockBankID[k] == evictedID {
			c.romBlock[k] = empty
			c.romBlockBankID[k] = 0
		}
	}

	return v, nil
}

// fill zeroes cache slot v and reads bankID's on-disk bytes into it.
func (c *Cache) fill(v, bankID int) error {
	clear(c.slots[v][:])

	fileOffset, inBankOffset, length := offsetForBank(bankID, c.loadAddress)

	n, err := c.src.ReadAt(c.slots[v][inBankOffset:inBankOffset+length], fileOffset)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("bank: read bank %d: %w", bankID, ErrIoError)
	}
	if n < length {
		// Short/EOF reads leave the remainder zeroed, which is acceptable;
		// it is only recorded as a diagnostic.
		log.ModBank.DebugZ("short bank read, remainder zero-filled").
			Int("bank", bankID).Int("read", n).Int("want", length).End()
	}
	return nil
}

// offsetForBank computes the file offset, in-slot offset, and read length
// for bankID, given the NSF header's load address. Bank 0 is short by
// padding bytes to preserve the original file's page alignment.
func offsetForBank(bankID int, loadAddress uint16) (fileOffset int64, inBankOffset, length int) {
	padding := int(loadAddress & 0x0FFF)
	if bankID == 0 {
		return bodyOffset, padding, Size - padding
	}
	return bodyOffset + int64(Size-padding) + int64(Size)*int64(bankID-1), 0, Size
}

// touch moves bankID to the head of the LRU, per the touch algorithm: a
// no-op if already head, a shift-right-and-set-head otherwise.
func (c *Cache) touch(bankID int) {
	if c.lru[0] == bankID {
		return
	}
	for i := 1; i < Capacity; i++ {
		if c.lru[i] == bankID {
			copy(c.lru[1:i+1], c.lru[0:i])
			c.lru[0] = bankID
			return
		}
	}
	// Not resident in the LRU at all: this must be a freshly-loaded bank,
	// so the tail must be free.
	copy(c.lru[1:], c.lru[0:Capacity-1])
	c.lru[0] = bankID
}
