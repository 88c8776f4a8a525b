// Package shim synthesizes the tiny 6502 driver stub the playback
// controller installs at $1000 to orchestrate a song's INIT/PLAY calls.
package shim

// Size is the size in bytes of the shim region at $1000-$107F.
const Size = 0x80

// Base is the 6502 address the shim is mapped at.
const Base uint16 = 0x1000

// IdleAddr is the address both playback_init and playback_frame poll the
// CPU's program counter for: the JSR play/JMP loop the driver settles into
// once INIT has returned.
const IdleAddr uint16 = 0x1007

// Region is the value the shim loads into the X register before calling
// the song's INIT routine: 0 for NTSC, 1 for PAL.
type Region uint8

const (
	NTSC Region = 0
	PAL  Region = 1
)

// opcodes used by the hand-assembled stub.
const (
	opLDAImm = 0xA9
	opLDXImm = 0xA2
	opJSRAbs = 0x20
	opJMPAbs = 0x4C
	opNOP    = 0xEA
)

// Build assembles the driver shim for one song:
//
//	$1000  A9 ss        LDA #song
//	$1002  A2 rr        LDX #region
//	$1004  20 lo hi     JSR initAddr
//	$1007  20 lo hi     JSR playAddr   <- IdleAddr
//	$100A  4C 07 10     JMP $1007
//	$100D  EA EA EA EA  NOP filler
func Build(song uint8, region Region, initAddr, playAddr uint16) [Size]byte {
	var s [Size]byte

	s[0x00] = opLDAImm
	s[0x01] = song
	s[0x02] = opLDXImm
	s[0x03] = uint8(region)
	s[0x04] = opJSRAbs
	s[0x05] = uint8(initAddr)
	s[0x06] = uint8(initAddr >> 8)
	s[0x07] = opJSRAbs
	s[0x08] = uint8(playAddr)
	s[0x09] = uint8(playAddr >> 8)
	s[0x0A] = opJMPAbs
	idleAddr := IdleAddr
	s[0x0B] = uint8(idleAddr)
	s[0x0C] = uint8(idleAddr >> 8)
	s[0x0D] = opNOP
	s[0x0E] = opNOP
	s[0x0F] = opNOP
	s[0x10] = opNOP

	return s
}

var baseAddr = Base

// ResetVectorLow, ResetVectorHigh are the bytes stored at $FFFC/$FFFD so
// the CPU's reset vector points at Base ($1000).
var (
	ResetVectorLow  uint8 = uint8(baseAddr)
	ResetVectorHigh uint8 = uint8(baseAddr >> 8)
)
