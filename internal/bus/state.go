package bus

import (
	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/ppu"
)

// State holds the bus counters that are not visible through the memory map.
type State struct {
	Div         uint16 // internal 16-bit divider (DIV is its high byte)
	ReloadDelay byte   // pending TIMA reload countdown, 0 when idle
	BootEnabled bool
	Dot         uint16 // LCD position within the current line
	DMALeft     uint16 // cycles left in a running OAM DMA
}

// ErrBadState is returned when restoring counters the hardware cannot reach.
var ErrBadState = errors.New("bus: invalid state")

func (b *Bus) State() State {
	return State{
		Div:         b.divInternal,
		ReloadDelay: b.reloadDelay,
		BootEnabled: b.bootEnabled,
		Dot:         uint16(b.ppu.Dot()),
		DMALeft:     b.dmaLeft,
	}
}

// CheckState validates s against this bus without changing anything.
func (b *Bus) CheckState(s State) error {
	if s.ReloadDelay > 4 {
		return errors.Wrapf(ErrBadState, "reload delay %d", s.ReloadDelay)
	}
	if s.BootEnabled && b.boot == nil {
		return errors.Wrap(ErrBadState, "boot ROM enabled but none loaded")
	}
	if int(s.Dot) >= ppu.DotsPerLine {
		return errors.Wrapf(ErrBadState, "LCD dot %d", s.Dot)
	}
	if s.DMALeft > dmaCycles {
		return errors.Wrapf(ErrBadState, "DMA cycles %d", s.DMALeft)
	}
	return nil
}

// SetState restores the hidden counters. Call CheckState first to avoid a
// partial restore.
func (b *Bus) SetState(s State) error {
	if err := b.CheckState(s); err != nil {
		return err
	}
	b.divInternal = s.Div
	b.reloadDelay = s.ReloadDelay
	b.bootEnabled = s.BootEnabled
	b.ppu.SetDot(int(s.Dot))
	b.dmaLeft = s.DMALeft
	return nil
}

// Poke stores v as the value Peek(addr) should return, without triggering any
// write side effect. ROM, external RAM, echo RAM, DIV and FF50 are skipped:
// they are either immutable or restored from State and the cartridge.
func (b *Bus) Poke(addr uint16, v byte) {
	switch {
	case addr >= 0x8000 && addr < 0xA000, addr >= 0xFE00 && addr < 0xFEA0:
		b.ppu.Poke(addr, v)
	case addr >= 0xC000 && addr < 0xE000:
		b.wram[addr-0xC000] = v
	case addr == 0xFF00:
		b.joypSelect = v & 0x30
	case addr == 0xFF01:
		b.sb = v
	case addr == 0xFF02:
		b.sc = v & 0x81
	case addr == 0xFF05:
		b.tima = v
	case addr == 0xFF06:
		b.tma = v
	case addr == 0xFF07:
		b.tac = v & 0x07
	case addr == 0xFF0F:
		b.ifr = v & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.apu != nil {
			b.apu.Poke(addr, v)
		}
	case addr == 0xFF46:
		b.dma = v
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.Poke(addr, v)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = v
	case addr == 0xFFFF:
		b.ie = v
	}
}
