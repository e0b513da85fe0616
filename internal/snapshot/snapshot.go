// Package snapshot serializes the complete architectural state of a CPU and
// its bus into a fixed layout with no length prefixes. 16-bit values are
// little-endian. The total size depends only on the cartridge RAM size, so a
// stream of snapshots for one ROM can be indexed by frame number.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cpu"
)

// Field offsets.
const (
	OffRegs    = 0 // A B C D E H L
	OffSP      = 7 // 2 bytes
	OffPC      = 9 // 2 bytes
	OffF       = 11
	OffIE      = 12
	OffIF      = 13
	OffMode    = 14 // cpu.Mode
	OffLatches = 15 // bit0 IME, bit1 halt bug
	OffEIDelay = 16
	OffDiv     = 17 // 2 bytes
	OffReload  = 19
	OffBoot    = 20
	OffDot     = 21 // 2 bytes
	OffDMA     = 23 // 2 bytes, cycles left
	OffMapper  = 25 // cart.RegsLen bytes
	OffMemory  = OffMapper + cart.RegsLen
	MemorySize = 0x10000
	OffCartRAM = OffMemory + MemorySize
)

const (
	latchIME     = 1 << 0
	latchHaltBug = 1 << 1
)

// ErrCorruptSnapshot is returned when a byte stream does not match the layout
// or holds values the machine can never reach.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Size returns the encoded length for machines built around this bus.
func Size(b *bus.Bus) int {
	return OffCartRAM + len(b.Cart().RAM())
}

// Marshal returns the snapshot bytes for c and b. It has no side effects on
// either.
func Marshal(c *cpu.CPU, b *bus.Bus) []byte {
	s := c.State()
	bs := b.State()
	out := make([]byte, Size(b))

	copy(out[OffRegs:], []byte{s.A, s.B, s.C, s.D, s.E, s.H, s.L})
	binary.LittleEndian.PutUint16(out[OffSP:], s.SP)
	binary.LittleEndian.PutUint16(out[OffPC:], s.PC)
	out[OffF] = s.F
	out[OffIE] = b.Peek(0xFFFF)
	out[OffIF] = b.Peek(0xFF0F) & 0x1F
	out[OffMode] = byte(s.Mode)
	if s.IME {
		out[OffLatches] |= latchIME
	}
	if s.HaltBug {
		out[OffLatches] |= latchHaltBug
	}
	out[OffEIDelay] = s.EIDelay
	binary.LittleEndian.PutUint16(out[OffDiv:], bs.Div)
	out[OffReload] = bs.ReloadDelay
	if bs.BootEnabled {
		out[OffBoot] = 1
	}
	binary.LittleEndian.PutUint16(out[OffDot:], bs.Dot)
	binary.LittleEndian.PutUint16(out[OffDMA:], bs.DMALeft)
	regs := b.Cart().Regs()
	copy(out[OffMapper:], regs[:])
	for addr := 0; addr < MemorySize; addr++ {
		out[OffMemory+addr] = b.Peek(uint16(addr))
	}
	copy(out[OffCartRAM:], b.Cart().RAM())
	return out
}

// Encode writes one snapshot to w.
func Encode(w io.Writer, c *cpu.CPU, b *bus.Bus) error {
	_, err := w.Write(Marshal(c, b))
	return errors.Wrap(err, "write snapshot")
}

// Decode reads r to EOF and restores the snapshot it holds.
func Decode(r io.Reader, c *cpu.CPU, b *bus.Bus) error {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return errors.Wrap(err, "read snapshot")
	}
	return Unmarshal(buf.Bytes(), c, b)
}

// Unmarshal restores c and b from data. Nothing is changed when an error is
// returned. ROM bytes in the memory image are ignored and IO registers are
// restored without write side effects.
func Unmarshal(data []byte, c *cpu.CPU, b *bus.Bus) error {
	if want := Size(b); len(data) != want {
		return errors.Wrapf(ErrCorruptSnapshot, "length %d, want %d", len(data), want)
	}
	if data[OffLatches]&^(latchIME|latchHaltBug) != 0 {
		return errors.Wrapf(ErrCorruptSnapshot, "latches %02X", data[OffLatches])
	}
	if data[OffBoot] > 1 {
		return errors.Wrapf(ErrCorruptSnapshot, "boot flag %d", data[OffBoot])
	}
	if data[OffIF] > 0x1F {
		return errors.Wrapf(ErrCorruptSnapshot, "IF %02X", data[OffIF])
	}

	s := cpu.State{
		A: data[OffRegs], B: data[OffRegs+1], C: data[OffRegs+2], D: data[OffRegs+3],
		E: data[OffRegs+4], H: data[OffRegs+5], L: data[OffRegs+6],
		F:       data[OffF],
		SP:      binary.LittleEndian.Uint16(data[OffSP:]),
		PC:      binary.LittleEndian.Uint16(data[OffPC:]),
		Mode:    cpu.Mode(data[OffMode]),
		IME:     data[OffLatches]&latchIME != 0,
		HaltBug: data[OffLatches]&latchHaltBug != 0,
		EIDelay: data[OffEIDelay],
	}
	bs := bus.State{
		Div:         binary.LittleEndian.Uint16(data[OffDiv:]),
		ReloadDelay: data[OffReload],
		BootEnabled: data[OffBoot] == 1,
		Dot:         binary.LittleEndian.Uint16(data[OffDot:]),
		DMALeft:     binary.LittleEndian.Uint16(data[OffDMA:]),
	}
	if err := cpu.CheckState(s); err != nil {
		return errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	if err := b.CheckState(bs); err != nil {
		return errors.Wrap(ErrCorruptSnapshot, err.Error())
	}
	var regs [cart.RegsLen]byte
	copy(regs[:], data[OffMapper:OffMemory])
	if err := b.Cart().SetRegs(regs); err != nil {
		return errors.Wrap(ErrCorruptSnapshot, err.Error())
	}

	// Nothing below can fail.
	for addr := 0; addr < MemorySize; addr++ {
		b.Poke(uint16(addr), data[OffMemory+addr])
	}
	b.Poke(0xFFFF, data[OffIE])
	b.Poke(0xFF0F, data[OffIF])
	copy(b.Cart().RAM(), data[OffCartRAM:])
	_ = b.SetState(bs)
	_ = c.SetState(s)
	return nil
}
