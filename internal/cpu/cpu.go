package cpu

import (
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/bus"
)

// Mode is the halt/stop state of the core.
type Mode byte

const (
	Running Mode = iota
	Halted
	Stopped
	// Locked is entered by an illegal opcode. Nothing wakes it.
	Locked
)

func (m Mode) String() string {
	switch m {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Stopped:
		return "stopped"
	case Locked:
		return "locked"
	}
	return "invalid"
}

// CPU is the SM83 core. It owns the register file and the halt/stop state
// machine and drives the bus clock after every step.
type CPU struct {
	// 8-bit registers
	A, F byte
	B, C byte
	D, E byte
	H, L byte

	SP uint16
	PC uint16

	IME  bool
	mode Mode
	// eiDelay counts instruction boundaries until EI takes effect.
	eiDelay byte
	haltBug bool

	lastOp    byte
	lastValid bool

	bus *bus.Bus
}

// New creates a CPU at PC 0 with SP at the top of HRAM, as a boot ROM expects.
func New(b *bus.Bus) *CPU {
	return &CPU{bus: b, SP: 0xFFFE, PC: 0x0000}
}

// SetPC allows tests or a boot stub to set the program counter.
func (c *CPU) SetPC(pc uint16) { c.PC = pc }

// Bus exposes the underlying bus for tests/tools.
func (c *CPU) Bus() *bus.Bus { return c.bus }

// Mode reports whether the core is running, halted, stopped or locked.
func (c *CPU) Mode() Mode { return c.mode }

// ResetNoBoot sets registers to typical DMG post-boot state.
// Useful when running without a boot ROM.
func (c *CPU) ResetNoBoot() {
	c.A, c.F = 0x01, 0xB0
	c.B, c.C = 0x00, 0x13
	c.D, c.E = 0x00, 0xD8
	c.H, c.L = 0x01, 0x4D
	c.SP = 0xFFFE
	c.PC = 0x0100
	c.IME = false
	c.mode = Running
	c.eiDelay = 0
	c.haltBug = false
	c.lastValid = false
}

// LastOpcode returns the unprefixed opcode executed by the most recent Step.
// ok is false when that step dispatched an interrupt or idled.
func (c *CPU) LastOpcode() (op byte, ok bool) { return c.lastOp, c.lastValid }

// Wake leaves STOP mode. It has no effect in any other mode.
func (c *CPU) Wake() {
	if c.mode == Stopped {
		c.mode = Running
	}
}

// Flags helpers
const (
	flagZ byte = 1 << 7
	flagN byte = 1 << 6
	flagH byte = 1 << 5
	flagC byte = 1 << 4
)

func (c *CPU) setZNHC(z, n, h, carry bool) {
	var f byte
	if z {
		f |= flagZ
	}
	if n {
		f |= flagN
	}
	if h {
		f |= flagH
	}
	if carry {
		f |= flagC
	}
	c.F = f
}

func (c *CPU) flag(f byte) bool { return c.F&f != 0 }

func (c *CPU) add8(a, b byte) (res byte, z, n, h, cy bool) {
	r := uint16(a) + uint16(b)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F)) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) adc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := uint16(a) + uint16(b) + uint16(ci)
	res = byte(r)
	z = res == 0
	n = false
	h = ((a & 0x0F) + (b & 0x0F) + ci) > 0x0F
	cy = r > 0xFF
	return
}

func (c *CPU) sub8(a, b byte) (res byte, z, n, h, cy bool) {
	r := int16(a) - int16(b)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < (b & 0x0F)
	cy = a < b
	return
}

func (c *CPU) sbc8(a, b byte, carryIn bool) (res byte, z, n, h, cy bool) {
	ci := byte(0)
	if carryIn {
		ci = 1
	}
	r := int16(a) - int16(b) - int16(ci)
	res = byte(r)
	z = res == 0
	n = true
	h = (a & 0x0F) < ((b & 0x0F) + ci)
	cy = int16(a) < int16(b)+int16(ci)
	return
}

func (c *CPU) and8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a & b
	z = res == 0
	n = false
	h = true
	cy = false
	return
}

func (c *CPU) xor8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a ^ b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) or8(a, b byte) (res byte, z, n, h, cy bool) {
	res = a | b
	z = res == 0
	n = false
	h = false
	cy = false
	return
}

func (c *CPU) cp8(a, b byte) (z, n, h, cy bool) {
	_, z, n, h, cy = c.sub8(a, b)
	return
}

// alu applies one of the eight accumulator operations in opcode order
// (ADD ADC SUB SBC AND XOR OR CP).
func (c *CPU) alu(op byte, v byte) {
	var (
		res         byte
		z, n, h, cy bool
	)
	switch op & 7 {
	case 0:
		res, z, n, h, cy = c.add8(c.A, v)
	case 1:
		res, z, n, h, cy = c.adc8(c.A, v, c.flag(flagC))
	case 2:
		res, z, n, h, cy = c.sub8(c.A, v)
	case 3:
		res, z, n, h, cy = c.sbc8(c.A, v, c.flag(flagC))
	case 4:
		res, z, n, h, cy = c.and8(c.A, v)
	case 5:
		res, z, n, h, cy = c.xor8(c.A, v)
	case 6:
		res, z, n, h, cy = c.or8(c.A, v)
	case 7:
		z, n, h, cy = c.cp8(c.A, v)
		res = c.A
	}
	c.A = res
	c.setZNHC(z, n, h, cy)
}

func (c *CPU) inc8(v byte) byte {
	r := v + 1
	c.F = (c.F & flagC)
	if r == 0 {
		c.F |= flagZ
	}
	if v&0x0F == 0x0F {
		c.F |= flagH
	}
	return r
}

func (c *CPU) dec8(v byte) byte {
	r := v - 1
	c.F = (c.F & flagC) | flagN
	if r == 0 {
		c.F |= flagZ
	}
	if v&0x0F == 0 {
		c.F |= flagH
	}
	return r
}

// addHL implements ADD HL,rr: Z preserved, H from bit 11, C from bit 15.
func (c *CPU) addHL(v uint16) {
	hl := c.getHL()
	r := uint32(hl) + uint32(v)
	h := (hl&0x0FFF)+(v&0x0FFF) > 0x0FFF
	c.F &= flagZ
	if h {
		c.F |= flagH
	}
	if r > 0xFFFF {
		c.F |= flagC
	}
	c.setHL(uint16(r))
}

// addSPe computes SP+e with flags from the low byte, as used by
// ADD SP,e and LD HL,SP+e.
func (c *CPU) addSPe(e byte) uint16 {
	_, _, _, h, cy := c.add8(byte(c.SP), e)
	c.setZNHC(false, false, h, cy)
	return c.SP + uint16(int16(int8(e)))
}

func (c *CPU) read8(addr uint16) byte     { return c.bus.Read(addr) }
func (c *CPU) write8(addr uint16, v byte) { c.bus.Write(addr, v) }

func (c *CPU) fetch8() byte {
	b := c.read8(c.PC)
	c.PC++
	return b
}

func (c *CPU) fetch16() uint16 {
	lo := uint16(c.fetch8())
	hi := uint16(c.fetch8())
	return lo | (hi << 8)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := uint16(c.read8(addr))
	hi := uint16(c.read8(addr + 1))
	return lo | (hi << 8)
}

func (c *CPU) write16(addr uint16, v uint16) {
	c.write8(addr, byte(v&0x00FF))
	c.write8(addr+1, byte(v>>8))
}

func (c *CPU) getAF() uint16  { return uint16(c.A)<<8 | uint16(c.F&0xF0) }
func (c *CPU) setAF(v uint16) { c.A = byte(v >> 8); c.F = byte(v) & 0xF0 }
func (c *CPU) getBC() uint16  { return uint16(c.B)<<8 | uint16(c.C) }
func (c *CPU) setBC(v uint16) { c.B = byte(v >> 8); c.C = byte(v) }
func (c *CPU) getDE() uint16  { return uint16(c.D)<<8 | uint16(c.E) }
func (c *CPU) setDE(v uint16) { c.D = byte(v >> 8); c.E = byte(v) }
func (c *CPU) getHL() uint16  { return uint16(c.H)<<8 | uint16(c.L) }
func (c *CPU) setHL(v uint16) { c.H = byte(v >> 8); c.L = byte(v) }

// reg8 reads a register by its 3-bit opcode index; 6 is (HL).
func (c *CPU) reg8(idx byte) byte {
	switch idx & 7 {
	case 0:
		return c.B
	case 1:
		return c.C
	case 2:
		return c.D
	case 3:
		return c.E
	case 4:
		return c.H
	case 5:
		return c.L
	case 6:
		return c.read8(c.getHL())
	}
	return c.A
}

func (c *CPU) setReg8(idx byte, v byte) {
	switch idx & 7 {
	case 0:
		c.B = v
	case 1:
		c.C = v
	case 2:
		c.D = v
	case 3:
		c.E = v
	case 4:
		c.H = v
	case 5:
		c.L = v
	case 6:
		c.write8(c.getHL(), v)
	default:
		c.A = v
	}
}

// reg16 reads BC, DE, HL or SP by the 2-bit pair index.
func (c *CPU) reg16(idx byte) uint16 {
	switch idx & 3 {
	case 0:
		return c.getBC()
	case 1:
		return c.getDE()
	case 2:
		return c.getHL()
	}
	return c.SP
}

func (c *CPU) setReg16(idx byte, v uint16) {
	switch idx & 3 {
	case 0:
		c.setBC(v)
	case 1:
		c.setDE(v)
	case 2:
		c.setHL(v)
	default:
		c.SP = v
	}
}

// cond evaluates NZ, Z, NC, C by index.
func (c *CPU) cond(idx byte) bool {
	switch idx & 3 {
	case 0:
		return !c.flag(flagZ)
	case 1:
		return c.flag(flagZ)
	case 2:
		return !c.flag(flagC)
	}
	return c.flag(flagC)
}

func (c *CPU) push16(v uint16) {
	c.SP -= 2
	c.write16(c.SP, v)
}

func (c *CPU) pop16() uint16 {
	v := c.read16(c.SP)
	c.SP += 2
	return v
}

// dispatch services the highest priority pending interrupt.
func (c *CPU) dispatch(pending byte) int {
	bit := 0
	for ; bit < 5; bit++ {
		if pending&(1<<uint(bit)) != 0 {
			break
		}
	}
	c.bus.Acknowledge(bit)
	c.IME = false
	c.eiDelay = 0
	ret := c.PC
	if c.haltBug {
		// EI; HALT with an interrupt pending: the handler returns to the HALT.
		c.haltBug = false
		ret--
	}
	c.push16(ret)
	c.PC = 0x40 + uint16(bit)*8
	return 20
}

// Step executes one instruction, one interrupt dispatch or one idle slot and
// returns the cycles consumed. The bus is clocked for those cycles unless the
// core is stopped.
func (c *CPU) Step() (cycles int) {
	c.lastValid = false
	defer func() {
		if c.mode != Stopped && cycles > 0 {
			c.bus.Tick(cycles)
		}
	}()

	switch c.mode {
	case Locked:
		return 4
	case Stopped:
		if c.bus.Pending()&(1<<bus.IntJoypad) != 0 {
			c.mode = Running
		}
		return 4
	case Halted:
		pending := c.bus.Pending()
		if pending == 0 {
			return 4
		}
		c.mode = Running
		if c.IME {
			// leaving HALT costs one extra M-cycle before the dispatch
			return 4 + c.dispatch(pending)
		}
		return 4
	}

	if c.IME {
		if pending := c.bus.Pending(); pending != 0 {
			return c.dispatch(pending)
		}
	}

	var op byte
	if c.haltBug {
		op = c.read8(c.PC)
		c.haltBug = false
	} else {
		op = c.fetch8()
	}
	c.lastOp, c.lastValid = op, true
	cycles = opcodes[op].exec(c)

	if c.eiDelay > 0 {
		c.eiDelay--
		if c.eiDelay == 0 {
			c.IME = true
		}
	}
	return cycles
}
