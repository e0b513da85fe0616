package cart

// MBC1 implements basic MBC1 ROM/RAM banking.
// Supports ROM banking up to 2MB and RAM up to 32KB. Battery is not handled here.
type MBC1 struct {
	rom []byte
	ram []byte

	romBankLow5       byte // lower 5 bits of ROM bank number (0->1 remapped)
	ramBankOrRomHigh2 byte // either RAM bank (mode1) or ROM bank high bits
	ramEnabled        bool
	modeSelect        byte // 0: ROM banking (default), 1: RAM banking
}

func NewMBC1(rom []byte, ramSize int) *MBC1 {
	m := &MBC1{rom: rom}
	if ramSize > 0 {
		m.ram = make([]byte, ramSize)
	}
	// default to bank 1 for switchable area
	m.romBankLow5 = 1
	return m
}

func (m *MBC1) Read(addr uint16) byte {
	switch {
	case addr < 0x4000:
		bank := 0
		if m.modeSelect == 1 {
			// mode 1: high bits also apply to the bank 0 region
			bank = int(m.ramBankOrRomHigh2&0x03) << 5
		}
		return m.romAt(bank, addr)
	case addr < 0x8000:
		return m.romAt(int(m.effectiveROMBank()), addr-0x4000)
	case addr >= 0xA000 && addr <= 0xBFFF:
		off, ok := m.ramOffset(addr)
		if !ok {
			return 0xFF
		}
		return m.ram[off]
	default:
		return 0xFF
	}
}

func (m *MBC1) Write(addr uint16, value byte) {
	switch {
	case addr < 0x2000:
		// RAM enable: low 4 bits must be 0x0A
		m.ramEnabled = (value & 0x0F) == 0x0A
	case addr < 0x4000:
		// ROM bank low 5 bits (0 maps to 1)
		m.romBankLow5 = value & 0x1F
		if m.romBankLow5 == 0 {
			m.romBankLow5 = 1
		}
	case addr < 0x6000:
		m.ramBankOrRomHigh2 = value & 0x03
	case addr < 0x8000:
		m.modeSelect = value & 0x01
	case addr >= 0xA000 && addr <= 0xBFFF:
		if off, ok := m.ramOffset(addr); ok {
			m.ram[off] = value
		}
	}
}

// romAt reads from a bank, wrapping the bank number to the ROM size like the
// unconnected upper address lines do on real carts.
func (m *MBC1) romAt(bank int, off uint16) byte {
	banks := len(m.rom) / 0x4000
	if banks == 0 {
		return 0xFF
	}
	bank %= banks
	i := bank*0x4000 + int(off)
	if i >= len(m.rom) {
		return 0xFF
	}
	return m.rom[i]
}

func (m *MBC1) ramOffset(addr uint16) (int, bool) {
	if !m.ramEnabled || len(m.ram) == 0 {
		return 0, false
	}
	ramBank := 0
	if m.modeSelect == 1 && len(m.ram) > 0x2000 {
		ramBank = int(m.ramBankOrRomHigh2 & 0x03)
	}
	off := (ramBank*0x2000 + int(addr-0xA000)) % len(m.ram)
	return off, true
}

func (m *MBC1) effectiveROMBank() byte {
	return m.romBankLow5 | (m.ramBankOrRomHigh2&0x03)<<5
}

func (m *MBC1) Regs() [RegsLen]byte {
	var r [RegsLen]byte
	r[0] = m.romBankLow5
	r[1] = m.ramBankOrRomHigh2
	if m.ramEnabled {
		r[2] = 1
	}
	r[3] = m.modeSelect
	return r
}

func (m *MBC1) SetRegs(r [RegsLen]byte) error {
	if r[0] == 0 || r[0] > 0x1F || r[1] > 0x03 || r[2] > 1 || r[3] > 1 {
		return ErrBadRegs
	}
	for _, v := range r[4:] {
		if v != 0 {
			return ErrBadRegs
		}
	}
	m.romBankLow5 = r[0]
	m.ramBankOrRomHigh2 = r[1]
	m.ramEnabled = r[2] == 1
	m.modeSelect = r[3]
	return nil
}

func (m *MBC1) RAM() []byte { return m.ram }
