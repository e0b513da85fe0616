package cart

import "github.com/pkg/errors"

// RegsLen is the fixed size of a mapper register dump.
const RegsLen = 8

// Cartridge defines the minimal interface the Bus needs for ROM/RAM banking.
// Implementations can be ROM-only or MBC variants. Addresses are CPU addresses.
type Cartridge interface {
	// Read returns a byte for ROM (0x0000–0x7FFF) and external RAM (0xA000–0xBFFF).
	Read(addr uint16) byte
	// Write handles MBC control writes (0x0000–0x7FFF) and external RAM writes (0xA000–0xBFFF).
	Write(addr uint16, value byte)
	// Regs/SetRegs dump and restore the mapper registers for snapshots.
	Regs() [RegsLen]byte
	SetRegs(r [RegsLen]byte) error
	// RAM returns the live external RAM backing slice (nil when the cart has none).
	RAM() []byte
}

// ErrBadRegs is returned by SetRegs when a register dump holds values the mapper cannot hold.
var ErrBadRegs = errors.New("cart: invalid mapper registers")

// New validates the header and picks an implementation based on the cartridge type.
func New(rom []byte, skipChecksum bool) (Cartridge, *Header, error) {
	h, err := Validate(rom, skipChecksum)
	if err != nil {
		return nil, nil, err
	}
	switch h.CartType {
	case 0x00, 0x08, 0x09:
		return NewROMOnly(rom), h, nil
	case 0x01, 0x02, 0x03: // MBC1 variants (RAM, RAM+BAT are transparent here)
		return NewMBC1(rom, h.RAMSizeBytes), h, nil
	default:
		return nil, nil, errors.Wrapf(ErrInvalidROM, "unsupported cartridge type %#02x (%s)", h.CartType, h.CartTypeStr)
	}
}
