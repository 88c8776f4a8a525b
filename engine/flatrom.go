package engine

// flatROM is the contiguous-ROM playback mode's bus.ROMSource: a single
// 32 KiB buffer covering $8000-$FFFF, filled once at playback_init and
// aliased by all eight ROM slots (no LRU, no bank switching).
type flatROM struct {
	buf [0x8000]byte // $8000-$FFFF
}

func (f *flatROM) Read(addr uint16) uint8 {
	return f.buf[addr-0x8000]
}
