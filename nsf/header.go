// Package nsf decodes the 128-byte NSF v1 header: the fixed-layout record
// that identifies a song bank, its load/init/play addresses, its
// bank-switch initialization vector and its region/extra-chip flags.
//
// The parser is pure: Decode never retains the reader or file it was given.
package nsf

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/arl/nsfplay/emu/log"
)

// HeaderSize is the fixed size, in bytes, of an NSF v1 header.
const HeaderSize = 128

// Magic is the 5-byte signature every valid NSF file starts with.
var Magic = [5]byte{0x4E, 0x45, 0x53, 0x4D, 0x1A}

// Header is the decoded contents of an NSF file's 128-byte header.
type Header struct {
	Version      uint8
	TotalSongs   uint8
	StartingSong int // 0-based (file stores 1-based)

	LoadAddress uint16
	InitAddress uint16
	PlayAddress uint16

	Name      string
	Artist    string
	Copyright string

	PlaySpeedNTSC uint16 // microseconds
	PlaySpeedPAL  uint16 // microseconds

	BankswitchInit [8]uint8

	RegionFlags uint8
	ExtraChips  uint8

	reserved [4]byte

	// Diagnostics records non-fatal parse anomalies (reserved bits set):
	// the header is still accepted, per the engine's error-handling design.
	Diagnostics []string
}

// Region flag bits.
const (
	regionPAL  = 1 << 0
	regionDual = 1 << 1
	regionMask = 0x03
)

// Extra chip flag bits.
const (
	chipVRC6 = 1 << 0
	chipVRC7 = 1 << 1
	chipFDS  = 1 << 2
	chipMMC5 = 1 << 3
	chipN163 = 1 << 4
	chipS5B  = 1 << 5
	chipMask = 0x3F
)

func (h *Header) IsPAL() bool  { return h.RegionFlags&regionPAL != 0 }
func (h *Header) IsDual() bool { return h.RegionFlags&regionDual != 0 }

func (h *Header) HasVRC6() bool { return h.ExtraChips&chipVRC6 != 0 }
func (h *Header) HasVRC7() bool { return h.ExtraChips&chipVRC7 != 0 }
func (h *Header) HasFDS() bool  { return h.ExtraChips&chipFDS != 0 }
func (h *Header) HasMMC5() bool { return h.ExtraChips&chipMMC5 != 0 }
func (h *Header) HasN163() bool { return h.ExtraChips&chipN163 != 0 }
func (h *Header) HasS5B() bool  { return h.ExtraChips&chipS5B != 0 }

// IsBankswitched reports whether any bank-switch init byte is non-zero,
// i.e. whether the playback controller must route through the bank cache
// instead of a contiguous ROM load.
func (h *Header) IsBankswitched() bool {
	for _, b := range h.BankswitchInit {
		if b != 0 {
			return true
		}
	}
	return false
}

// ReadHeader opens path and decodes its first 128 bytes. The file handle is
// closed before ReadHeader returns.
func ReadHeader(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nsf: open %s: %w", path, err)
	}
	defer f.Close()

	var buf [HeaderSize]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("nsf: read %s: %w", path, err)
	}
	if n < HeaderSize {
		return nil, fmt.Errorf("nsf: %s: %w", path, ErrShortHeader)
	}

	return Decode(buf[:])
}

// Decode parses a 128-byte NSF header. buf must be at least HeaderSize
// bytes; only the first HeaderSize are consulted.
func Decode(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, ErrShortHeader
	}

	if [5]byte(buf[0:5]) != Magic {
		return nil, ErrBadMagic
	}

	h := &Header{
		Version:       buf[5],
		TotalSongs:    buf[6],
		StartingSong:  startingSongIndex(buf[7]),
		LoadAddress:   binary.LittleEndian.Uint16(buf[8:10]),
		InitAddress:   binary.LittleEndian.Uint16(buf[10:12]),
		PlayAddress:   binary.LittleEndian.Uint16(buf[12:14]),
		Name:          decodeText(buf[14:46]),
		Artist:        decodeText(buf[46:78]),
		Copyright:     decodeText(buf[78:110]),
		PlaySpeedNTSC: binary.LittleEndian.Uint16(buf[110:112]),
		PlaySpeedPAL:  binary.LittleEndian.Uint16(buf[120:122]),
		RegionFlags:   buf[122],
		ExtraChips:    buf[123],
	}
	copy(h.BankswitchInit[:], buf[112:120])
	copy(h.reserved[:], buf[124:128])

	if h.RegionFlags&^regionMask != 0 {
		h.Diagnostics = append(h.Diagnostics, "reserved region flag bits set")
		log.ModHeader.DebugZ("reserved region bits set").Hex8("flags", h.RegionFlags).End()
	}
	if h.ExtraChips&^chipMask != 0 {
		h.Diagnostics = append(h.Diagnostics, "reserved extra-chip flag bits set")
		log.ModHeader.DebugZ("reserved extra-chip bits set").Hex8("flags", h.ExtraChips).End()
	}

	return h, nil
}

// startingSongIndex converts the file's 1-based starting song to a 0-based
// index, clamping a malformed 0 to song 0.
func startingSongIndex(fileValue uint8) int {
	if fileValue == 0 {
		return 0
	}
	return int(fileValue) - 1
}

// Encode reconstructs the 128-byte on-disk representation of h. For a
// header produced by Decode, Encode(Decode(buf)) == buf (property P1),
// provided the starting-song byte was non-zero (Decode clamps 0 to song
// index 0, which Encode writes back as 1) and each text field held at
// most 31 characters followed only by NUL bytes.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:5], Magic[:])
	buf[5] = h.Version
	buf[6] = h.TotalSongs
	buf[7] = uint8(h.StartingSong + 1)
	binary.LittleEndian.PutUint16(buf[8:10], h.LoadAddress)
	binary.LittleEndian.PutUint16(buf[10:12], h.InitAddress)
	binary.LittleEndian.PutUint16(buf[12:14], h.PlayAddress)
	copy(buf[14:46], encodeText(h.Name))
	copy(buf[46:78], encodeText(h.Artist))
	copy(buf[78:110], encodeText(h.Copyright))
	binary.LittleEndian.PutUint16(buf[110:112], h.PlaySpeedNTSC)
	copy(buf[112:120], h.BankswitchInit[:])
	binary.LittleEndian.PutUint16(buf[120:122], h.PlaySpeedPAL)
	buf[122] = h.RegionFlags
	buf[123] = h.ExtraChips
	copy(buf[124:128], h.reserved[:])
	return buf
}

// decodeText extracts a NUL-terminated string from a fixed-size text field,
// truncating to 31 characters plus a forced terminator (the 32nd byte is
// never consulted as content).
func decodeText(field []byte) string {
	n := 0
	for n < len(field)-1 && n < 31 && field[n] != 0 {
		n++
	}
	return string(field[:n])
}

// encodeText writes s into a 32-byte NUL-padded field, truncated to 31
// characters plus a forced terminator.
func encodeText(s string) []byte {
	buf := make([]byte, 32)
	if len(s) > 31 {
		s = s[:31]
	}
	copy(buf, s)
	return buf
}
