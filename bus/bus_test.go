package bus

import "testing"

type constROM struct{ v uint8 }

func (r constROM) Read(addr uint16) uint8 { return r.v }

type recordingSink struct {
	writes [][2]uint16
}

func (s *recordingSink) Write(addr uint16, val uint8) {
	s.writes = append(s.writes, [2]uint16{addr, uint16(val)})
}

type stubSwitcher struct {
	loads int
	last  struct{ reg, bank int }
	err   error
}

func (s *stubSwitcher) LoadBank(reg, bank int) error {
	s.loads++
	s.last.reg, s.last.bank = reg, bank
	return s.err
}

type romWithSwitcher struct {
	constROM
	*stubSwitcher
}

func TestAddressDecodingRAM(t *testing.T) {
	b := New(constROM{}, nil)
	b.Write8(0x0042, 0x99)
	if got := b.Read8(0x0042); got != 0x99 {
		t.Fatalf("want 0x99, got %#x", got)
	}
}

func TestAddressDecodingBoundaries(t *testing.T) {
	sink := &recordingSink{}
	b := New(constROM{v: 0xEE}, sink)
	copy(b.Shim[:], []byte{0xA9, 0x00})
	b.IntVecs[0] = 0x42

	cases := []struct {
		name string
		addr uint16
		want uint8
	}{
		{"ram end", 0x07FF, 0},
		{"ram mirror boundary unmapped", 0x0800, 0},
		{"shim start", 0x1000, 0xA9},
		{"shim end unmapped byte", 0x107F, 0},
		{"shim past end unmapped", 0x1080, 0},
		{"apu end", 0x4017, 0},
		{"apu past end unmapped", 0x4018, 0},
		{"below bankreg unmapped", 0x5FF7, 0},
		{"bankreg start", 0x5FF8, 0},
		{"bankreg end", 0x5FFF, 0},
		{"above bankreg unmapped", 0x6000, 0},
		{"below rom unmapped", 0x7FFF, 0},
		{"rom start", 0x8000, 0xEE},
		{"rom end", 0xFFF9, 0xEE},
		{"vec start", 0xFFFA, 0x42},
		{"vec end", 0xFFFF, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := b.Read8(c.addr); got != c.want {
				t.Fatalf("Read8(%#x) = %#x, want %#x", c.addr, got, c.want)
			}
		})
	}
}

// P6 / scenario 4: writing $4016 shadows but does not invoke the sink;
// writing any other APU register invokes it with (addr, val).
func TestAPUSinkSuppressesControllerStrobe(t *testing.T) {
	sink := &recordingSink{}
	b := New(constROM{}, sink)

	b.Write8(0x4016, 0xFF)
	if len(sink.writes) != 0 {
		t.Fatalf("want no sink writes for $4016, got %v", sink.writes)
	}
	if got := b.Read8(0x4016); got != 0xFF {
		t.Fatalf("want $4016 shadowed to 0xFF, got %#x", got)
	}

	b.Write8(0x4015, 0x0F)
	if len(sink.writes) != 1 || sink.writes[0] != [2]uint16{0x4015, 0x0F} {
		t.Fatalf("want one sink write (0x4015,0x0F), got %v", sink.writes)
	}
}

// P5: writing the same value to a bank register twice triggers exactly one
// bank load.
func TestBankRegisterWriteDedup(t *testing.T) {
	sw := &stubSwitcher{}
	rom := romWithSwitcher{stubSwitcher: sw}
	b := New(rom, nil)

	b.Write8(0x5FF8, 7)
	b.Write8(0x5FF8, 7)
	if sw.loads != 1 {
		t.Fatalf("want exactly one load, got %d", sw.loads)
	}

	b.Write8(0x5FF8, 8)
	if sw.loads != 2 {
		t.Fatalf("want a second load after a value change, got %d", sw.loads)
	}
	if sw.last.reg != 0 || sw.last.bank != 8 {
		t.Fatalf("want register 0 bank 8, got %+v", sw.last)
	}
}

func TestBankRegisterWriteWithoutSwitcherOnlyShadows(t *testing.T) {
	b := New(constROM{}, nil)
	b.Write8(0x5FFF, 42)
	if got := b.Read8(0x5FFF); got != 42 {
		t.Fatalf("want shadow updated, got %d", got)
	}
	if b.LastError != nil {
		t.Fatalf("want no error without a bank switcher, got %v", b.LastError)
	}
}

func TestWritesToROMAndShimAreDiscarded(t *testing.T) {
	b := New(constROM{v: 1}, nil)
	b.Write8(0x8000, 0x55) // ROM range: discarded
	if got := b.Read8(0x8000); got != 1 {
		t.Fatalf("ROM write should be discarded, got %#x", got)
	}

	b.Write8(0x1000, 0x55) // shim range: discarded
	if got := b.Read8(0x1000); got != 0 {
		t.Fatalf("shim write should be discarded, got %#x", got)
	}
}

func TestBankSwitchErrorIsSticky(t *testing.T) {
	sw := &stubSwitcher{err: errBankFail{}}
	rom := romWithSwitcher{stubSwitcher: sw}
	b := New(rom, nil)

	b.Write8(0x5FF8, 3)
	if b.LastError == nil {
		t.Fatal("want LastError set after a failing bank switch")
	}
}

type errBankFail struct{}

func (errBankFail) Error() string { return "bank fail" }
