package cpu

import (
	"github.com/pkg/errors"
)

// State is the register file plus the latches that decide what the next
// Step does.
type State struct {
	A, F, B, C, D, E, H, L byte
	SP, PC                 uint16

	IME     bool
	HaltBug bool
	EIDelay byte
	Mode    Mode
}

// ErrBadState is returned by SetState for values the core can never hold.
var ErrBadState = errors.New("cpu: invalid state")

func (c *CPU) State() State {
	return State{
		A: c.A, F: c.F, B: c.B, C: c.C, D: c.D, E: c.E, H: c.H, L: c.L,
		SP: c.SP, PC: c.PC,
		IME:     c.IME,
		HaltBug: c.haltBug,
		EIDelay: c.eiDelay,
		Mode:    c.mode,
	}
}

// CheckState validates s without touching the CPU.
func CheckState(s State) error {
	if s.Mode > Locked {
		return errors.Wrapf(ErrBadState, "mode %d", s.Mode)
	}
	if s.EIDelay > 2 {
		return errors.Wrapf(ErrBadState, "EI delay %d", s.EIDelay)
	}
	if s.F&0x0F != 0 {
		return errors.Wrapf(ErrBadState, "flags %02X", s.F)
	}
	return nil
}

func (c *CPU) SetState(s State) error {
	if err := CheckState(s); err != nil {
		return err
	}
	c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L = s.A, s.F, s.B, s.C, s.D, s.E, s.H, s.L
	c.SP, c.PC = s.SP, s.PC
	c.IME = s.IME
	c.haltBug = s.HaltBug
	c.eiDelay = s.EIDelay
	c.mode = s.Mode
	c.lastValid = false
	return nil
}
