// Package sink provides reference bus.APUSink implementations: a recorder
// for tests and offline analysis, and a logging wrapper around another
// sink. The actual APU synthesis backend is out of scope for this engine.
package sink

import "github.com/arl/nsfplay/emu/log"

// Write is one recorded APU register write.
type Write struct {
	Addr uint16
	Val  uint8
}

// Recorder appends every write it receives, in order.
type Recorder struct {
	Writes []Write
}

func (r *Recorder) Write(addr uint16, val uint8) {
	r.Writes = append(r.Writes, Write{Addr: addr, Val: val})
}

// Logging wraps another sink and logs every write at debug level before
// forwarding it. Next may be nil, in which case writes are only logged.
type Logging struct {
	Next interface {
		Write(addr uint16, val uint8)
	}
}

func (l Logging) Write(addr uint16, val uint8) {
	log.ModAPU.DebugZ("apu write").Hex16("addr", addr).Hex8("val", val).End()
	if l.Next != nil {
		l.Next.Write(addr, val)
	}
}
