package cpu

import (
	"fmt"
	"strings"
)

// Disassemble decodes the instruction at pc through side-effect-free bus
// reads. It returns the mnemonic and the instruction length in bytes.
func (c *CPU) Disassemble(pc uint16) (string, int) {
	op := opcodes[c.bus.Peek(pc)]
	b1 := c.bus.Peek(pc + 1)
	b2 := c.bus.Peek(pc + 2)
	name := op.name
	switch {
	case name == "PREFIX CB":
		return cbName(b1), 2
	case strings.Contains(name, "d16"):
		name = strings.Replace(name, "d16", fmt.Sprintf("$%04X", uint16(b2)<<8|uint16(b1)), 1)
	case strings.Contains(name, "a16"):
		name = strings.Replace(name, "a16", fmt.Sprintf("$%04X", uint16(b2)<<8|uint16(b1)), 1)
	case strings.Contains(name, "d8"):
		name = strings.Replace(name, "d8", fmt.Sprintf("$%02X", b1), 1)
	case strings.Contains(name, "a8"):
		name = strings.Replace(name, "a8", fmt.Sprintf("$FF%02X", b1), 1)
	case strings.Contains(name, "r8"):
		e := int8(b1)
		if strings.HasPrefix(name, "JR") {
			name = strings.Replace(name, "r8", fmt.Sprintf("$%04X", uint16(int32(pc)+2+int32(e))), 1)
		} else {
			name = strings.Replace(name, "+r8", fmt.Sprintf("%+d", e), 1)
			name = strings.Replace(name, "r8", fmt.Sprintf("%d", e), 1)
		}
	}
	return name, op.length
}
