package cpu

import "fmt"

var cbShiftNames = [8]string{"RLC", "RRC", "RL", "RR", "SLA", "SRA", "SWAP", "SRL"}

// execCB decodes a CB-prefixed opcode. Every one of the 256 encodings is
// valid: x selects rotate/shift, BIT, RES or SET; y the operation or bit; z
// the register.
func (c *CPU) execCB(op byte) int {
	x, y, z := op>>6, (op>>3)&7, op&7
	cyc := 8
	if z == 6 {
		cyc = 16
	}
	v := c.reg8(z)
	switch x {
	case 0:
		c.setReg8(z, c.shift(y, v))
	case 1:
		// BIT never writes back, so (HL) costs one access less.
		c.F = (c.F & flagC) | flagH
		if v&(1<<y) == 0 {
			c.F |= flagZ
		}
		if z == 6 {
			cyc = 12
		}
	case 2:
		c.setReg8(z, v&^(1<<y))
	case 3:
		c.setReg8(z, v|1<<y)
	}
	return cyc
}

func (c *CPU) shift(kind, v byte) byte {
	var r, cy byte
	switch kind {
	case 0: // RLC
		cy = v >> 7
		r = v<<1 | cy
	case 1: // RRC
		cy = v & 1
		r = v>>1 | cy<<7
	case 2: // RL
		cy = v >> 7
		r = v << 1
		if c.flag(flagC) {
			r |= 1
		}
	case 3: // RR
		cy = v & 1
		r = v >> 1
		if c.flag(flagC) {
			r |= 0x80
		}
	case 4: // SLA
		cy = v >> 7
		r = v << 1
	case 5: // SRA
		cy = v & 1
		r = v>>1 | v&0x80
	case 6: // SWAP
		r = v<<4 | v>>4
	case 7: // SRL
		cy = v & 1
		r = v >> 1
	}
	c.setZNHC(r == 0, false, false, cy != 0)
	return r
}

func cbName(op byte) string {
	x, y, z := op>>6, (op>>3)&7, op&7
	switch x {
	case 0:
		return cbShiftNames[y] + " " + regNames[z]
	case 1:
		return fmt.Sprintf("BIT %d,%s", y, regNames[z])
	case 2:
		return fmt.Sprintf("RES %d,%s", y, regNames[z])
	}
	return fmt.Sprintf("SET %d,%s", y, regNames[z])
}
