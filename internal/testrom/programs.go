package testrom

// Counter enables the timer interrupt and then loops forever incrementing A
// and storing it through HL, which wraps within WRAM.
func Counter() []byte {
	return Build("COUNTER", ROMOnly, NoRAM, []byte{
		0x3E, 0x05, 0xE0, 0x07, // LD A,05; LDH (07),A  timer on, 16 cycles
		0x3E, 0x04, 0xE0, 0xFF, // LD A,04; LDH (FF),A  IE timer
		0xFB,             // EI
		0x21, 0x00, 0xC0, // LD HL,C000
		0x3C,       // loop: INC A
		0x22,       // LD (HL+),A
		0xCB, 0xAC, // RES 5,H
		0x18, 0xFA, // JR loop
	})
}

// Signature reports through the Blargg memory protocol: it enables cart RAM,
// marks the test as running, writes the signature, burns about 1.6 frames and
// then stores the result code (0 on pass, 1 on fail).
func Signature(pass bool) []byte {
	code := byte(1)
	if pass {
		code = 0
	}
	return Build("SIGNATURE", MBC1RAM, RAM8K, []byte{
		0x3E, 0x0A, 0xEA, 0x00, 0x00, // RAM enable
		0x3E, 0x80, 0xEA, 0x00, 0xA0, // A000 = 80 (running)
		0x3E, 0xDE, 0xEA, 0x01, 0xA0,
		0x3E, 0xB0, 0xEA, 0x02, 0xA0,
		0x3E, 0x61, 0xEA, 0x03, 0xA0,
		0x01, 0x00, 0x10, // LD BC,1000
		0x0B,       // delay: DEC BC
		0x78,       // LD A,B
		0xB1,       // OR C
		0x20, 0xFB, // JR NZ,delay
		0x3E, code, 0xEA, 0x00, 0xA0, // A000 = result
		0x18, 0xFE, // JR $
	})
}

// Breakpoint loads the Mooneye pass (Fibonacci) or fail (0x42) pattern into
// B..L and executes LD B,B.
func Breakpoint(pass bool) []byte {
	regs := [6]byte{3, 5, 8, 13, 21, 34}
	if !pass {
		regs = [6]byte{0x42, 0x42, 0x42, 0x42, 0x42, 0x42}
	}
	return Build("BREAKPOINT", ROMOnly, NoRAM, []byte{
		0x06, regs[0], 0x0E, regs[1], 0x16, regs[2],
		0x1E, regs[3], 0x26, regs[4], 0x2E, regs[5],
		0x40,       // LD B,B
		0x18, 0xFE, // JR $
	})
}

// Serial sends text over the serial port with the internal clock and then
// spins.
func Serial(text string) []byte {
	var code []byte
	for i := 0; i < len(text); i++ {
		code = append(code,
			0x3E, text[i], 0xE0, 0x01, // LD A,c; LDH (01),A
			0x3E, 0x81, 0xE0, 0x02, // LD A,81; LDH (02),A
		)
	}
	code = append(code, 0x18, 0xFE)
	return Build("SERIAL", ROMOnly, NoRAM, code)
}
