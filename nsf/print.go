package nsf

import (
	"fmt"
	"io"
)

// Print writes a human-readable summary of h to w, in the manner of the
// teacher's ROM-info dumps.
func (h *Header) Print(w io.Writer) {
	fmt.Fprintf(w, "Name:      %s\n", h.Name)
	fmt.Fprintf(w, "Artist:    %s\n", h.Artist)
	fmt.Fprintf(w, "Copyright: %s\n", h.Copyright)
	fmt.Fprintf(w, "Version:   %d\n", h.Version)
	fmt.Fprintf(w, "Songs:     %d (starting at %d)\n", h.TotalSongs, h.StartingSong)
	fmt.Fprintf(w, "Load:      $%04X\n", h.LoadAddress)
	fmt.Fprintf(w, "Init:      $%04X\n", h.InitAddress)
	fmt.Fprintf(w, "Play:      $%04X\n", h.PlayAddress)
	fmt.Fprintf(w, "Speed:     %d us (NTSC) / %d us (PAL)\n", h.PlaySpeedNTSC, h.PlaySpeedPAL)
	fmt.Fprintf(w, "Region:    %s\n", h.regionString())
	fmt.Fprintf(w, "Bankswitched: %v\n", h.IsBankswitched())
	if chips := h.chipsString(); chips != "" {
		fmt.Fprintf(w, "Extra chips: %s\n", chips)
	}
	for _, d := range h.Diagnostics {
		fmt.Fprintf(w, "note: %s\n", d)
	}
}

func (h *Header) regionString() string {
	switch {
	case h.IsPAL() && h.IsDual():
		return "PAL/NTSC dual"
	case h.IsPAL():
		return "PAL"
	default:
		return "NTSC"
	}
}

func (h *Header) chipsString() string {
	var chips []string
	add := func(has bool, name string) {
		if has {
			chips = append(chips, name)
		}
	}
	add(h.HasVRC6(), "VRC6")
	add(h.HasVRC7(), "VRC7")
	add(h.HasFDS(), "FDS")
	add(h.HasMMC5(), "MMC5")
	add(h.HasN163(), "N163")
	add(h.HasS5B(), "S5B")

	out := ""
	for i, c := range chips {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
