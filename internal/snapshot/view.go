package snapshot

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// View reads the header fields of an encoded snapshot without a machine to
// restore into. It is what inspection tools print.
type View []byte

// NewView checks that data is at least a full header plus memory image.
func NewView(data []byte) (View, error) {
	if len(data) < OffCartRAM {
		return nil, errors.Wrapf(ErrCorruptSnapshot, "length %d shorter than %d", len(data), OffCartRAM)
	}
	return View(data), nil
}

func (v View) PC() uint16           { return binary.LittleEndian.Uint16(v[OffPC:]) }
func (v View) SP() uint16           { return binary.LittleEndian.Uint16(v[OffSP:]) }
func (v View) Mem(addr uint16) byte { return v[OffMemory+int(addr)] }

// Print writes registers, latches and hidden counters in a one-line-per-group
// format.
func (v View) Print(w io.Writer) error {
	_, err := fmt.Fprintf(w,
		"A=%02X F=%02X B=%02X C=%02X D=%02X E=%02X H=%02X L=%02X SP=%04X PC=%04X\n"+
			"IE=%02X IF=%02X mode=%d IME=%t haltbug=%t ei=%d\n"+
			"div=%04X reload=%d boot=%d dot=%d dma=%d mapper=% X\n",
		v[OffRegs], v[OffF], v[OffRegs+1], v[OffRegs+2], v[OffRegs+3], v[OffRegs+4], v[OffRegs+5], v[OffRegs+6],
		v.SP(), v.PC(),
		v[OffIE], v[OffIF], v[OffMode], v[OffLatches]&latchIME != 0, v[OffLatches]&latchHaltBug != 0, v[OffEIDelay],
		binary.LittleEndian.Uint16(v[OffDiv:]), v[OffReload], v[OffBoot],
		binary.LittleEndian.Uint16(v[OffDot:]), binary.LittleEndian.Uint16(v[OffDMA:]),
		[]byte(v[OffMapper:OffMemory]))
	return errors.Wrap(err, "print snapshot")
}
