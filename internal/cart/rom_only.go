package cart

// ROMOnly implements a simple cartridge without MBC or external RAM.
type ROMOnly struct {
	rom []byte
}

func NewROMOnly(rom []byte) *ROMOnly {
	return &ROMOnly{rom: rom}
}

func (c *ROMOnly) Read(addr uint16) byte {
	if addr < 0x8000 && int(addr) < len(c.rom) {
		return c.rom[addr]
	}
	// no external RAM, and anything else is not ours
	return 0xFF
}

// Write ignores everything: there are no mapper registers and no external RAM.
func (c *ROMOnly) Write(addr uint16, value byte) {}

func (c *ROMOnly) Regs() [RegsLen]byte { return [RegsLen]byte{} }

func (c *ROMOnly) SetRegs(r [RegsLen]byte) error {
	if r != ([RegsLen]byte{}) {
		return ErrBadRegs
	}
	return nil
}

func (c *ROMOnly) RAM() []byte { return nil }
