package apu

// APU holds the sound register file (FF10–FF3F). Nothing is synthesized: it
// only keeps what the CPU can observe, with the DMG read-back masks and the
// NR52 power and channel-status behavior.
type APU struct {
	regs [0x30]byte // FF10–FF3F, NR52 channel bits live in status
	// status bits 0-3 of NR52 (channel on flags)
	status byte
}

// readMask holds the bits that always read back as 1 (write-only or unused).
var readMask = [0x20]byte{
	0x80, 0x3F, 0x00, 0xFF, 0xBF, // NR10-NR14
	0xFF, 0x3F, 0x00, 0xFF, 0xBF, // unused, NR21-NR24
	0x7F, 0xFF, 0x9F, 0xFF, 0xBF, // NR30-NR34
	0xFF, 0xFF, 0x00, 0x00, 0xBF, // unused, NR41-NR44
	0x00, 0x00, 0x70, // NR50-NR52
	0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, // FF27-FF2F
}

const (
	nr52 = 0xFF26
	wave = 0xFF30
)

func New() *APU { return &APU{} }

func (a *APU) powered() bool { return a.regs[nr52-0xFF10]&0x80 != 0 }

// CPURead returns a sound register as the CPU sees it.
func (a *APU) CPURead(addr uint16) byte {
	if addr < 0xFF10 || addr > 0xFF3F {
		return 0xFF
	}
	if addr >= wave {
		return a.regs[addr-0xFF10]
	}
	i := addr - 0xFF10
	if addr == nr52 {
		return (a.regs[i] & 0x80) | readMask[i] | (a.status & 0x0F)
	}
	return a.regs[i] | readMask[i]
}

// CPUWrite stores a sound register. While powered off only NR52 and wave RAM
// accept writes.
func (a *APU) CPUWrite(addr uint16, v byte) {
	if addr < 0xFF10 || addr > 0xFF3F {
		return
	}
	i := addr - 0xFF10
	switch {
	case addr >= wave:
		a.regs[i] = v
	case addr == nr52:
		if v&0x80 == 0 {
			// power off clears every register but wave RAM
			for j := range a.regs[:nr52-0xFF10] {
				a.regs[j] = 0
			}
			a.status = 0
		}
		a.regs[i] = v & 0x80
	case !a.powered():
	default:
		a.regs[i] = v
		a.updateStatus(addr, v)
	}
}

// updateStatus tracks NR52 channel flags: a trigger turns a channel on when its
// DAC is enabled, and disabling the DAC turns it off.
func (a *APU) updateStatus(addr uint16, v byte) {
	ch := -1
	trigger := false
	switch addr {
	case 0xFF12, 0xFF14:
		ch, trigger = 0, addr == 0xFF14 && v&0x80 != 0
	case 0xFF17, 0xFF19:
		ch, trigger = 1, addr == 0xFF19 && v&0x80 != 0
	case 0xFF1A, 0xFF1E:
		ch, trigger = 2, addr == 0xFF1E && v&0x80 != 0
	case 0xFF21, 0xFF23:
		ch, trigger = 3, addr == 0xFF23 && v&0x80 != 0
	default:
		return
	}
	switch {
	case !a.dacOn(ch):
		a.status &^= 1 << ch
	case trigger:
		a.status |= 1 << ch
	}
}

func (a *APU) dacOn(ch int) bool {
	switch ch {
	case 0:
		return a.regs[0xFF12-0xFF10]&0xF8 != 0
	case 1:
		return a.regs[0xFF17-0xFF10]&0xF8 != 0
	case 2:
		return a.regs[0xFF1A-0xFF10]&0x80 != 0
	default:
		return a.regs[0xFF21-0xFF10]&0xF8 != 0
	}
}

// Poke restores a register raw value as read back by CPURead. NR52 restores
// the channel flags too.
func (a *APU) Poke(addr uint16, v byte) {
	if addr < 0xFF10 || addr > 0xFF3F {
		return
	}
	i := addr - 0xFF10
	if addr == nr52 {
		a.regs[i] = v & 0x80
		a.status = v & 0x0F
		return
	}
	a.regs[i] = v
}
