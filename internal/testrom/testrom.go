// Package testrom assembles tiny cartridge images with valid headers for
// tests and demos. Programs start at 0x0150; the entry point at 0x0100 jumps
// there.
package testrom

import "github.com/FabianRolfMatthiasNoll/gbgolden/internal/cart"

// CodeStart is where Build places the program.
const CodeStart = 0x0150

// Cartridge type and RAM size codes used by the builders.
const (
	ROMOnly byte = 0x00
	MBC1RAM byte = 0x02
	NoRAM   byte = 0x00
	RAM8K   byte = 0x02
)

// Build makes a 32 KiB ROM with a valid header and checksum around code.
// Every interrupt vector holds RETI.
func Build(title string, cartType, ramSizeCode byte, code []byte) []byte {
	rom := header(title, cartType, ramSizeCode)
	// 0100: NOP; JP 0150
	copy(rom[0x0100:], []byte{0x00, 0xC3, byte(CodeStart & 0xFF), byte(CodeStart >> 8)})
	copy(rom[CodeStart:], code)
	return rom
}

// BuildEntry places up to four bytes of code directly at the 0x0100 entry
// point, so the first Step executes them.
func BuildEntry(title string, code []byte) []byte {
	rom := header(title, ROMOnly, NoRAM)
	copy(rom[0x0100:0x0104], code)
	return rom
}

func header(title string, cartType, ramSizeCode byte) []byte {
	rom := make([]byte, 0x8000)

	logo := cart.Logo()
	copy(rom[0x0104:], logo[:])
	t := []byte(title)
	if len(t) > 15 {
		t = t[:15]
	}
	copy(rom[0x0134:0x0143], t)
	rom[0x0147] = cartType
	rom[0x0148] = 0x00 // 32 KiB
	rom[0x0149] = ramSizeCode
	rom[0x014B] = 0x33
	var sum byte
	for addr := 0x0134; addr <= 0x014C; addr++ {
		sum = sum - rom[addr] - 1
	}
	rom[0x014D] = sum

	for v := 0x40; v <= 0x60; v += 8 {
		rom[v] = 0xD9
	}
	return rom
}
