package cpu

import "fmt"

// opcode describes one unprefixed instruction. name uses d8, d16, a8, a16
// and r8 as operand placeholders; length counts the opcode byte.
type opcode struct {
	name   string
	length int
	exec   func(c *CPU) int
}

var opcodes [256]opcode

var (
	regNames  = [8]string{"B", "C", "D", "E", "H", "L", "(HL)", "A"}
	pairNames = [4]string{"BC", "DE", "HL", "SP"}
	condNames = [4]string{"NZ", "Z", "NC", "C"}
	aluNames  = [8]string{"ADD A,", "ADC A,", "SUB ", "SBC A,", "AND ", "XOR ", "OR ", "CP "}
)

// illegalOpcodes hang the CPU on real hardware.
var illegalOpcodes = []byte{0xD3, 0xDB, 0xDD, 0xE3, 0xE4, 0xEB, 0xEC, 0xED, 0xF4, 0xFC, 0xFD}

func def(op byte, name string, length int, fn func(c *CPU) int) {
	if opcodes[op].exec != nil {
		panic(fmt.Sprintf("cpu: opcode %02X defined twice (%s, %s)", op, opcodes[op].name, name))
	}
	opcodes[op] = opcode{name: name, length: length, exec: fn}
}

func init() {
	defineLoads()
	defineArithmetic()
	defineControl()
	defineMisc()
	for i := range opcodes {
		if opcodes[i].exec == nil {
			panic(fmt.Sprintf("cpu: opcode %02X has no handler", i))
		}
	}
}

func defineLoads() {
	// LD r,r' (0x76 is HALT)
	for d := byte(0); d < 8; d++ {
		for s := byte(0); s < 8; s++ {
			op := 0x40 | d<<3 | s
			if op == 0x76 {
				continue
			}
			cyc := 4
			if d == 6 || s == 6 {
				cyc = 8
			}
			def(op, fmt.Sprintf("LD %s,%s", regNames[d], regNames[s]), 1, func(c *CPU) int {
				c.setReg8(d, c.reg8(s))
				return cyc
			})
		}
	}
	// LD r,d8
	for d := byte(0); d < 8; d++ {
		cyc := 8
		if d == 6 {
			cyc = 12
		}
		def(0x06|d<<3, fmt.Sprintf("LD %s,d8", regNames[d]), 2, func(c *CPU) int {
			c.setReg8(d, c.fetch8())
			return cyc
		})
	}
	// LD rr,d16
	for p := byte(0); p < 4; p++ {
		def(0x01|p<<4, fmt.Sprintf("LD %s,d16", pairNames[p]), 3, func(c *CPU) int {
			c.setReg16(p, c.fetch16())
			return 12
		})
	}
	def(0x02, "LD (BC),A", 1, func(c *CPU) int { c.write8(c.getBC(), c.A); return 8 })
	def(0x12, "LD (DE),A", 1, func(c *CPU) int { c.write8(c.getDE(), c.A); return 8 })
	def(0x0A, "LD A,(BC)", 1, func(c *CPU) int { c.A = c.read8(c.getBC()); return 8 })
	def(0x1A, "LD A,(DE)", 1, func(c *CPU) int { c.A = c.read8(c.getDE()); return 8 })
	def(0x22, "LD (HL+),A", 1, func(c *CPU) int {
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl + 1)
		return 8
	})
	def(0x2A, "LD A,(HL+)", 1, func(c *CPU) int {
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl + 1)
		return 8
	})
	def(0x32, "LD (HL-),A", 1, func(c *CPU) int {
		hl := c.getHL()
		c.write8(hl, c.A)
		c.setHL(hl - 1)
		return 8
	})
	def(0x3A, "LD A,(HL-)", 1, func(c *CPU) int {
		hl := c.getHL()
		c.A = c.read8(hl)
		c.setHL(hl - 1)
		return 8
	})
	def(0x08, "LD (a16),SP", 3, func(c *CPU) int {
		c.write16(c.fetch16(), c.SP)
		return 20
	})
	def(0xE0, "LDH (a8),A", 2, func(c *CPU) int {
		c.write8(0xFF00+uint16(c.fetch8()), c.A)
		return 12
	})
	def(0xF0, "LDH A,(a8)", 2, func(c *CPU) int {
		c.A = c.read8(0xFF00 + uint16(c.fetch8()))
		return 12
	})
	def(0xE2, "LD (C),A", 1, func(c *CPU) int { c.write8(0xFF00+uint16(c.C), c.A); return 8 })
	def(0xF2, "LD A,(C)", 1, func(c *CPU) int { c.A = c.read8(0xFF00 + uint16(c.C)); return 8 })
	def(0xEA, "LD (a16),A", 3, func(c *CPU) int { c.write8(c.fetch16(), c.A); return 16 })
	def(0xFA, "LD A,(a16)", 3, func(c *CPU) int { c.A = c.read8(c.fetch16()); return 16 })
	def(0xF9, "LD SP,HL", 1, func(c *CPU) int { c.SP = c.getHL(); return 8 })
	def(0xF8, "LD HL,SP+r8", 2, func(c *CPU) int {
		c.setHL(c.addSPe(c.fetch8()))
		return 12
	})

	// PUSH/POP use AF in place of SP.
	push := [4]string{"BC", "DE", "HL", "AF"}
	for p := byte(0); p < 4; p++ {
		def(0xC5|p<<4, "PUSH "+push[p], 1, func(c *CPU) int {
			if p == 3 {
				c.push16(c.getAF())
			} else {
				c.push16(c.reg16(p))
			}
			return 16
		})
		def(0xC1|p<<4, "POP "+push[p], 1, func(c *CPU) int {
			v := c.pop16()
			if p == 3 {
				c.setAF(v)
			} else {
				c.setReg16(p, v)
			}
			return 12
		})
	}
}

func defineArithmetic() {
	// ALU A,r
	for k := byte(0); k < 8; k++ {
		for s := byte(0); s < 8; s++ {
			cyc := 4
			if s == 6 {
				cyc = 8
			}
			def(0x80|k<<3|s, aluNames[k]+regNames[s], 1, func(c *CPU) int {
				c.alu(k, c.reg8(s))
				return cyc
			})
		}
		def(0xC6|k<<3, aluNames[k]+"d8", 2, func(c *CPU) int {
			c.alu(k, c.fetch8())
			return 8
		})
	}
	// INC/DEC r
	for d := byte(0); d < 8; d++ {
		cyc := 4
		if d == 6 {
			cyc = 12
		}
		def(0x04|d<<3, "INC "+regNames[d], 1, func(c *CPU) int {
			c.setReg8(d, c.inc8(c.reg8(d)))
			return cyc
		})
		def(0x05|d<<3, "DEC "+regNames[d], 1, func(c *CPU) int {
			c.setReg8(d, c.dec8(c.reg8(d)))
			return cyc
		})
	}
	// 16-bit INC/DEC/ADD HL leave Z alone; INC/DEC touch no flags.
	for p := byte(0); p < 4; p++ {
		def(0x03|p<<4, "INC "+pairNames[p], 1, func(c *CPU) int {
			c.setReg16(p, c.reg16(p)+1)
			return 8
		})
		def(0x0B|p<<4, "DEC "+pairNames[p], 1, func(c *CPU) int {
			c.setReg16(p, c.reg16(p)-1)
			return 8
		})
		def(0x09|p<<4, "ADD HL,"+pairNames[p], 1, func(c *CPU) int {
			c.addHL(c.reg16(p))
			return 8
		})
	}
	def(0xE8, "ADD SP,r8", 2, func(c *CPU) int {
		c.SP = c.addSPe(c.fetch8())
		return 16
	})

	def(0x27, "DAA", 1, func(c *CPU) int {
		a := c.A
		cf := c.flag(flagC)
		if !c.flag(flagN) { // after addition
			if cf || a > 0x99 {
				a += 0x60
				cf = true
			}
			if c.flag(flagH) || (a&0x0F) > 9 {
				a += 0x06
			}
		} else { // after subtraction
			if cf {
				a -= 0x60
			}
			if c.flag(flagH) {
				a -= 0x06
			}
		}
		c.A = a
		c.setZNHC(c.A == 0, c.flag(flagN), false, cf)
		return 4
	})
	def(0x2F, "CPL", 1, func(c *CPU) int {
		c.A = ^c.A
		c.F = (c.F & (flagZ | flagC)) | flagN | flagH
		return 4
	})
	def(0x37, "SCF", 1, func(c *CPU) int {
		c.F = (c.F & flagZ) | flagC
		return 4
	})
	def(0x3F, "CCF", 1, func(c *CPU) int {
		c.F = (c.F & flagZ) | (^c.F & flagC)
		return 4
	})

	// Accumulator rotates always clear Z.
	def(0x07, "RLCA", 1, func(c *CPU) int {
		cy := c.A >> 7
		c.A = c.A<<1 | cy
		c.setZNHC(false, false, false, cy != 0)
		return 4
	})
	def(0x0F, "RRCA", 1, func(c *CPU) int {
		cy := c.A & 1
		c.A = c.A>>1 | cy<<7
		c.setZNHC(false, false, false, cy != 0)
		return 4
	})
	def(0x17, "RLA", 1, func(c *CPU) int {
		var in byte
		if c.flag(flagC) {
			in = 1
		}
		cy := c.A >> 7
		c.A = c.A<<1 | in
		c.setZNHC(false, false, false, cy != 0)
		return 4
	})
	def(0x1F, "RRA", 1, func(c *CPU) int {
		var in byte
		if c.flag(flagC) {
			in = 0x80
		}
		cy := c.A & 1
		c.A = c.A>>1 | in
		c.setZNHC(false, false, false, cy != 0)
		return 4
	})
}

func defineControl() {
	def(0x18, "JR r8", 2, func(c *CPU) int {
		e := int8(c.fetch8())
		c.PC = uint16(int32(c.PC) + int32(e))
		return 12
	})
	def(0xC3, "JP a16", 3, func(c *CPU) int {
		c.PC = c.fetch16()
		return 16
	})
	def(0xE9, "JP HL", 1, func(c *CPU) int {
		c.PC = c.getHL()
		return 4
	})
	def(0xCD, "CALL a16", 3, func(c *CPU) int {
		addr := c.fetch16()
		c.push16(c.PC)
		c.PC = addr
		return 24
	})
	def(0xC9, "RET", 1, func(c *CPU) int {
		c.PC = c.pop16()
		return 16
	})
	def(0xD9, "RETI", 1, func(c *CPU) int {
		c.PC = c.pop16()
		c.IME = true
		c.eiDelay = 0
		return 16
	})
	for cc := byte(0); cc < 4; cc++ {
		def(0x20|cc<<3, "JR "+condNames[cc]+",r8", 2, func(c *CPU) int {
			e := int8(c.fetch8())
			if !c.cond(cc) {
				return 8
			}
			c.PC = uint16(int32(c.PC) + int32(e))
			return 12
		})
		def(0xC2|cc<<3, "JP "+condNames[cc]+",a16", 3, func(c *CPU) int {
			addr := c.fetch16()
			if !c.cond(cc) {
				return 12
			}
			c.PC = addr
			return 16
		})
		def(0xC4|cc<<3, "CALL "+condNames[cc]+",a16", 3, func(c *CPU) int {
			addr := c.fetch16()
			if !c.cond(cc) {
				return 12
			}
			c.push16(c.PC)
			c.PC = addr
			return 24
		})
		def(0xC0|cc<<3, "RET "+condNames[cc], 1, func(c *CPU) int {
			if !c.cond(cc) {
				return 8
			}
			c.PC = c.pop16()
			return 20
		})
	}
	for t := byte(0); t < 8; t++ {
		vec := uint16(t) * 8
		def(0xC7|t<<3, fmt.Sprintf("RST %02XH", vec), 1, func(c *CPU) int {
			c.push16(c.PC)
			c.PC = vec
			return 16
		})
	}
}

func defineMisc() {
	def(0x00, "NOP", 1, func(c *CPU) int { return 4 })
	def(0x10, "STOP", 2, func(c *CPU) int {
		c.fetch8() // padding byte
		c.bus.ResetDIV()
		c.mode = Stopped
		return 4
	})
	def(0x76, "HALT", 1, func(c *CPU) int {
		if c.bus.Pending() != 0 {
			if !c.IME {
				c.haltBug = true
			}
			return 4
		}
		c.mode = Halted
		return 4
	})
	def(0xF3, "DI", 1, func(c *CPU) int {
		c.IME = false
		c.eiDelay = 0
		return 4
	})
	def(0xFB, "EI", 1, func(c *CPU) int {
		if !c.IME {
			c.eiDelay = 2
		}
		return 4
	})
	def(0xCB, "PREFIX CB", 2, func(c *CPU) int {
		return c.execCB(c.fetch8())
	})
	for _, op := range illegalOpcodes {
		def(op, fmt.Sprintf("ILLEGAL %02X", op), 1, func(c *CPU) int {
			c.mode = Locked
			return 4
		})
	}
}
