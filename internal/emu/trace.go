package emu

import (
	"io"
	"log"
	"os"

	"github.com/pkg/errors"
)

// tracer writes one line per CPU step: the PC and opcode the step started
// from, the cycles it took and the registers it left behind.
type tracer struct {
	log  *log.Logger
	file *os.File // owned, closed by Stop
}

func newTracer(w io.Writer, path string) (*tracer, error) {
	var file *os.File
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, errors.Wrap(err, "create trace file")
		}
		file = f
		if w != nil {
			w = io.MultiWriter(w, f)
		} else {
			w = f
		}
	}
	if w == nil {
		return nil, nil
	}
	return &tracer{log: log.New(w, "", 0), file: file}, nil
}

func (t *tracer) step(m *Machine, pc uint16, op byte, mnemonic string, cyc int) {
	c := m.cpu
	t.log.Printf("PC=%04X OP=%02X cyc=%d A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X IME=%t IF=%02X IE=%02X %s",
		pc, op, cyc, c.A, c.F, c.B, c.C, c.D, c.E, c.H, c.L, c.SP, c.IME, m.bus.Peek(0xFF0F), m.bus.Peek(0xFFFF), mnemonic)
}

func (t *tracer) close() error {
	if t == nil || t.file == nil {
		return nil
	}
	return errors.Wrap(t.file.Close(), "close trace file")
}
