package snapshot

import "fmt"

var headerFields = []struct {
	off, size int
	name      string
}{
	{OffRegs, 1, "A"},
	{OffRegs + 1, 1, "B"},
	{OffRegs + 2, 1, "C"},
	{OffRegs + 3, 1, "D"},
	{OffRegs + 4, 1, "E"},
	{OffRegs + 5, 1, "H"},
	{OffRegs + 6, 1, "L"},
	{OffSP, 2, "SP"},
	{OffPC, 2, "PC"},
	{OffF, 1, "F"},
	{OffIE, 1, "IE"},
	{OffIF, 1, "IF"},
	{OffMode, 1, "mode"},
	{OffLatches, 1, "latches"},
	{OffEIDelay, 1, "EI delay"},
	{OffDiv, 2, "divider"},
	{OffReload, 1, "TIMA reload"},
	{OffBoot, 1, "boot overlay"},
	{OffDot, 2, "LCD dot"},
	{OffDMA, 2, "OAM DMA"},
	{OffMapper, OffMemory - OffMapper, "mapper"},
}

// FieldAt names the snapshot field containing byte offset off, for example
// "PC" or "mem[FF44]".
func FieldAt(off int) string {
	switch {
	case off < 0:
		return "invalid"
	case off >= OffCartRAM:
		return fmt.Sprintf("cart RAM[%04X]", off-OffCartRAM)
	case off >= OffMemory:
		return fmt.Sprintf("mem[%04X]", off-OffMemory)
	}
	for _, f := range headerFields {
		if off >= f.off && off < f.off+f.size {
			return f.name
		}
	}
	return "invalid"
}
