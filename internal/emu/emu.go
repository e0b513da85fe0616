package emu

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/snapshot"
)

var (
	// ErrInvalidROMFormat is returned by New for ROMs that are too short to
	// hold a header, fail the header checksum or use an unsupported mapper.
	ErrInvalidROMFormat = cart.ErrInvalidROM
	// ErrInvalidBootROM is returned by New for a boot ROM under 256 bytes.
	ErrInvalidBootROM = errors.New("boot ROM must be at least 256 bytes")
	// ErrStopped is returned by every call on a machine after Stop.
	ErrStopped = errors.New("machine stopped")
)

// Machine is one emulated DMG. It is not safe for concurrent use, but
// distinct machines share nothing and may run in parallel.
type Machine struct {
	opts   Options
	header *cart.Header

	// core components
	bus *bus.Bus
	cpu *cpu.CPU

	serial *serialLog
	detect detector
	pacer  *pacer
	trace  *tracer

	result  Result
	frames  uint64
	cycles  uint64
	stopped bool
}

// New validates rom and builds a machine. With a boot ROM execution starts at
// 0x0000 with the overlay mapped; without one the CPU and IO registers are set
// to their DMG post-boot values and execution starts at 0x0100.
func New(rom, boot []byte, opts Options) (*Machine, error) {
	opts.Defaults()
	if opts.Speed < 0 {
		return nil, errors.Wrapf(ErrBadSpeed, "got %g", opts.Speed)
	}
	if boot != nil && len(boot) < 0x100 {
		return nil, errors.Wrapf(ErrInvalidBootROM, "got %d bytes", len(boot))
	}
	c, hdr, err := cart.New(rom, opts.SkipChecksum)
	if err != nil {
		return nil, err
	}
	tr, err := newTracer(opts.Trace, opts.TracePath)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		opts:   opts,
		header: hdr,
		serial: &serialLog{fwd: opts.Serial},
		detect: newDetector(opts.Completion),
		pacer:  newPacer(opts.Speed),
		trace:  tr,
	}
	m.bus = bus.NewWithCart(c, opts.Video, opts.Audio)
	m.bus.SetSerialWriter(m.serial)
	m.cpu = cpu.New(m.bus)
	if boot != nil {
		m.bus.SetBootROM(boot)
	} else {
		m.resetPostBoot()
	}
	opts.Logger.Printf("loaded %q type=%s rom=%dKiB ram=%dKiB boot=%t video=%t audio=%t completion=%s",
		hdr.Title, hdr.CartTypeStr, hdr.ROMSizeBytes/1024, hdr.RAMSizeBytes/1024,
		boot != nil, opts.Video, opts.Audio, opts.Completion)
	return m, nil
}

// resetPostBoot puts CPU and IO where the DMG boot ROM leaves them.
func (m *Machine) resetPostBoot() {
	m.cpu.ResetNoBoot()
	m.applyDMGPostBootIO()
}

// applyDMGPostBootIO sets the IO registers to DMG post-boot defaults, so ROMs
// can start from PC=0x0100 without a boot ROM.
func (m *Machine) applyDMGPostBootIO() {
	b := m.bus
	// Joypad: no group selected, high bits set
	b.Write(0xFF00, 0xCF)
	// Timers
	b.Write(0xFF05, 0x00) // TIMA
	b.Write(0xFF06, 0x00) // TMA
	b.Write(0xFF07, 0x00) // TAC (disabled)
	// APU defaults (power on + route all to both)
	b.Write(0xFF26, 0x80) // NR52 power
	b.Write(0xFF24, 0x77) // NR50: Vin off, L=7, R=7
	b.Write(0xFF25, 0xF3) // NR51
	// LCD: on, BG on, tile data 8000, BG map 9800
	b.Write(0xFF40, 0x91)
	b.Write(0xFF42, 0x00) // SCY
	b.Write(0xFF43, 0x00) // SCX
	b.Write(0xFF45, 0x00) // LYC
	b.Write(0xFF47, 0xFC) // BGP
	b.Write(0xFF48, 0xFF) // OBP0
	b.Write(0xFF49, 0xFF) // OBP1
	b.Write(0xFF4A, 0x00) // WY
	b.Write(0xFF4B, 0x00) // WX
	// IE: none enabled; VBlank left pending by the boot ROM
	b.Write(0xFFFF, 0x00)
	b.Write(0xFF0F, 0x01)
	s := b.State()
	s.Div = 0xABCC
	_ = b.SetState(s)
}

// Step executes one CPU step and returns the cycles it took.
func (m *Machine) Step() (int, error) {
	if m.stopped {
		return 0, ErrStopped
	}
	return m.step(), nil
}

func (m *Machine) step() int {
	var (
		pc       uint16
		op       byte
		mnemonic string
	)
	if m.trace != nil {
		pc = m.cpu.PC
		op = m.bus.Peek(pc)
		mnemonic, _ = m.cpu.Disassemble(pc)
	}
	n := m.cpu.Step()
	m.cycles += uint64(n)
	if m.trace != nil {
		m.trace.step(m, pc, op, mnemonic, n)
	}
	if m.result == Running {
		if r := m.detect.check(m); r != Running {
			m.result = r
			m.opts.Logger.Printf("completion: %s at frame %d PC=%04X", r, m.frames, m.cpu.PC)
		}
	}
	return n
}

// Tick runs one frame worth of cycles (FrameCycles). When sink is non-nil one
// snapshot is written to it at the configured SnapshotPoint. The tick in which
// the ROM signals completion ends early at that instruction boundary; Tick
// returns true from then on. Ticks are paced to the configured speed.
func (m *Machine) Tick(sink io.Writer) (bool, error) {
	if m.stopped {
		return false, ErrStopped
	}
	if sink != nil && m.opts.SnapshotPoint == BeforeTick {
		if err := snapshot.Encode(sink, m.cpu, m.bus); err != nil {
			return false, err
		}
	}
	done := m.result != Running
	for spent := 0; spent < FrameCycles; {
		spent += m.step()
		if !done && m.result != Running {
			break
		}
	}
	m.frames++
	if sink != nil && m.opts.SnapshotPoint == AfterTick {
		if err := snapshot.Encode(sink, m.cpu, m.bus); err != nil {
			return false, err
		}
	}
	m.pacer.wait()
	return m.result != Running, nil
}

// Wake releases the CPU from STOP, standing in for a button press.
func (m *Machine) Wake() error {
	if m.stopped {
		return ErrStopped
	}
	m.cpu.Wake()
	return nil
}

// Stop releases the trace file and buffers. The machine is unusable afterwards.
func (m *Machine) Stop() error {
	if m.stopped {
		return ErrStopped
	}
	m.stopped = true
	err := m.trace.close()
	m.opts.Logger.Printf("stopped after %d frames (%d cycles), result %s", m.frames, m.cycles, m.result)
	m.trace = nil
	m.bus = nil
	m.cpu = nil
	m.serial = nil
	return err
}

// Result reports what the ROM has signaled so far.
func (m *Machine) Result() Result { return m.result }

// Frames returns the number of completed ticks.
func (m *Machine) Frames() uint64 { return m.frames }

// Cycles returns the total cycles executed.
func (m *Machine) Cycles() uint64 { return m.cycles }

// Header returns the parsed cartridge header.
func (m *Machine) Header() *cart.Header { return m.header }

// Registers returns a copy of the CPU register file and latches.
func (m *Machine) Registers() cpu.State {
	if m.stopped {
		return cpu.State{}
	}
	return m.cpu.State()
}

// Peek reads memory without side effects.
func (m *Machine) Peek(addr uint16) byte {
	if m.stopped {
		return bus.OpenBus
	}
	return m.bus.Peek(addr)
}

// Disassemble decodes the instruction at pc without side effects.
func (m *Machine) Disassemble(pc uint16) (string, int) {
	if m.stopped {
		return "", 0
	}
	return m.cpu.Disassemble(pc)
}

// LY returns the current LCD line.
func (m *Machine) LY() byte {
	if m.stopped {
		return 0
	}
	return m.bus.PPU().LY()
}

// SnapshotSize is the byte length of every snapshot this machine writes.
func (m *Machine) SnapshotSize() int {
	if m.stopped {
		return 0
	}
	return snapshot.Size(m.bus)
}

// SaveState writes a snapshot of the current state to w.
func (m *Machine) SaveState(w io.Writer) error {
	if m.stopped {
		return ErrStopped
	}
	return snapshot.Encode(w, m.cpu, m.bus)
}

// LoadState restores a snapshot read from r. The machine is unchanged on
// error. Completion detection starts over: the result and captured serial
// text are cleared, since the snapshot holds neither.
func (m *Machine) LoadState(r io.Reader) error {
	if m.stopped {
		return ErrStopped
	}
	if err := snapshot.Decode(r, m.cpu, m.bus); err != nil {
		return err
	}
	m.result = Running
	m.serial.reset()
	return nil
}

func (m *Machine) SaveStateToFile(path string) error {
	var buf bytes.Buffer
	if err := m.SaveState(&buf); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, buf.Bytes(), 0644), "write state file")
}

func (m *Machine) LoadStateFromFile(path string) error {
	if m.stopped {
		return ErrStopped
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read state file")
	}
	return m.LoadState(bytes.NewReader(data))
}
