package bus

import (
	"io"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/apu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cart"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/ppu"
)

// Interrupt bits in IE/IF.
const (
	IntVBlank = 0
	IntSTAT   = 1
	IntTimer  = 2
	IntSerial = 3
	IntJoypad = 4
)

// OpenBus is what unmapped reads return.
const OpenBus byte = 0xFF

// Bus decodes the 16-bit address space. Every address has exactly one owner;
// reads from unmapped space return OpenBus and writes to it are dropped.
type Bus struct {
	cart cart.Cartridge
	ppu  *ppu.PPU
	apu  *apu.APU // nil when audio capability is off

	wram [0x2000]byte // 8KB internal RAM
	hram [0x7F]byte   // FF80–FFFE
	ie   byte         // FFFF
	ifr  byte         // FF0F (low 5 bits)

	boot        []byte
	bootEnabled bool

	joypSelect byte // FF00 bits 4-5

	// serial
	sb      byte
	sc      byte
	serialW io.Writer

	// timer
	divInternal uint16
	tima        byte
	tma         byte
	tac         byte
	reloadDelay byte // cycles until TIMA reloads from TMA after an overflow

	dma     byte   // FF46 last written source page
	dmaLeft uint16 // cycles left in the running OAM DMA, 0 when idle
}

// dmaCycles is the length of one OAM DMA: 160 bytes, one per machine cycle.
const dmaCycles = 0xA0 * 4

// New builds a bus over a ROM-only cartridge with video and audio registers on.
// Handy for tests and tools that poke at raw code.
func New(rom []byte) *Bus {
	return NewWithCart(cart.NewROMOnly(rom), true, true)
}

// NewWithCart builds a bus over an already validated cartridge. video and
// audio are the construction-time capability flags.
func NewWithCart(c cart.Cartridge, video, audio bool) *Bus {
	b := &Bus{cart: c}
	b.ppu = ppu.New(video, b.RequestInterrupt)
	if audio {
		b.apu = apu.New()
	}
	return b
}

// SetBootROM overlays the first 0x100 bytes of data at 0x0000 until FF50 is written.
func (b *Bus) SetBootROM(data []byte) {
	if len(data) < 0x100 {
		b.boot = nil
		b.bootEnabled = false
		return
	}
	b.boot = make([]byte, 0x100)
	copy(b.boot, data[:0x100])
	b.bootEnabled = true
}

// BootEnabled reports whether the boot ROM currently overlays low memory.
func (b *Bus) BootEnabled() bool { return b.bootEnabled }

// SetSerialWriter connects an io.Writer to receive bytes shifted out of the serial port.
func (b *Bus) SetSerialWriter(w io.Writer) { b.serialW = w }

func (b *Bus) Cart() cart.Cartridge { return b.cart }
func (b *Bus) PPU() *ppu.PPU        { return b.ppu }
func (b *Bus) Video() bool          { return b.ppu.Video() }
func (b *Bus) Audio() bool          { return b.apu != nil }

// RequestInterrupt sets a bit in IF.
func (b *Bus) RequestInterrupt(bit int) {
	b.ifr |= (1 << uint(bit)) & 0x1F
}

// Pending returns the interrupts both requested and enabled.
func (b *Bus) Pending() byte { return b.ie & b.ifr & 0x1F }

// Acknowledge clears one IF bit once the CPU dispatches it.
func (b *Bus) Acknowledge(bit int) { b.ifr &^= 1 << uint(bit) }

func (b *Bus) Read(addr uint16) byte {
	switch {
	case addr < 0x0100 && b.bootEnabled:
		return b.boot[addr]
	case addr < 0x8000: // ROM area
		return b.cart.Read(addr)
	case addr < 0xA000:
		return b.ppu.CPURead(addr)
	case addr < 0xC000:
		return b.cart.Read(addr)
	case addr < 0xE000: // Internal RAM
		return b.wram[addr-0xC000]
	case addr < 0xFE00: // Echo RAM
		return b.wram[addr-0xE000]
	case addr < 0xFEA0:
		if b.dmaLeft > 0 {
			return OpenBus
		}
		return b.ppu.CPURead(addr)
	case addr < 0xFF00:
		return OpenBus
	default:
		return b.readHigh(addr)
	}
}

// Peek reads like the CPU would but without side effects or PPU mode locks.
func (b *Bus) Peek(addr uint16) byte {
	if (addr >= 0x8000 && addr < 0xA000) || (addr >= 0xFE00 && addr < 0xFEA0) {
		return b.ppu.Peek(addr)
	}
	return b.Read(addr)
}

func (b *Bus) readHigh(addr uint16) byte {
	switch {
	case addr == 0xFF00:
		// no buttons are ever pressed: low nibble reads 1s
		return 0xC0 | b.joypSelect | 0x0F
	case addr == 0xFF01:
		return b.sb
	case addr == 0xFF02:
		return 0x7E | b.sc
	case addr == 0xFF04:
		return byte(b.divInternal >> 8)
	case addr == 0xFF05:
		return b.tima
	case addr == 0xFF06:
		return b.tma
	case addr == 0xFF07:
		return 0xF8 | b.tac
	case addr == 0xFF0F:
		return 0xE0 | b.ifr
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.apu == nil {
			return OpenBus
		}
		return b.apu.CPURead(addr)
	case addr == 0xFF46:
		return b.dma
	case addr >= 0xFF40 && addr <= 0xFF4B:
		return b.ppu.CPURead(addr)
	case addr >= 0xFF80 && addr <= 0xFFFE:
		return b.hram[addr-0xFF80]
	case addr == 0xFFFF:
		return b.ie
	default:
		return OpenBus
	}
}

func (b *Bus) Write(addr uint16, value byte) {
	switch {
	case addr < 0x8000:
		b.cart.Write(addr, value)
	case addr < 0xA000:
		b.ppu.CPUWrite(addr, value)
	case addr < 0xC000:
		b.cart.Write(addr, value)
	case addr < 0xE000:
		b.wram[addr-0xC000] = value
	case addr < 0xFE00:
		b.wram[addr-0xE000] = value
	case addr < 0xFEA0:
		if b.dmaLeft == 0 {
			b.ppu.CPUWrite(addr, value)
		}
	case addr < 0xFF00:
		// unusable
	default:
		b.writeHigh(addr, value)
	}
}

func (b *Bus) writeHigh(addr uint16, value byte) {
	switch {
	case addr == 0xFF00:
		b.joypSelect = value & 0x30
	case addr == 0xFF01:
		b.sb = value
	case addr == 0xFF02:
		b.sc = value & 0x81
		b.serialTransfer()
	case addr == 0xFF04:
		b.writeDIV()
	case addr == 0xFF05:
		b.writeTIMA(value)
	case addr == 0xFF06:
		b.tma = value
	case addr == 0xFF07:
		b.writeTAC(value)
	case addr == 0xFF0F:
		b.ifr = value & 0x1F
	case addr >= 0xFF10 && addr <= 0xFF3F:
		if b.apu != nil {
			b.apu.CPUWrite(addr, value)
		}
	case addr == 0xFF46:
		b.dma = value
		b.dmaLeft = dmaCycles
	case addr >= 0xFF40 && addr <= 0xFF4B:
		b.ppu.CPUWrite(addr, value)
	case addr == 0xFF50:
		// any non-zero write unmaps the boot ROM for good
		if value != 0 {
			b.bootEnabled = false
		}
	case addr >= 0xFF80 && addr <= 0xFFFE:
		b.hram[addr-0xFF80] = value
	case addr == 0xFFFF:
		b.ie = value
	}
}

// serialTransfer completes an internal-clock transfer at once. No link peer is
// attached, so the received byte is 0xFF. External-clock transfers never finish.
func (b *Bus) serialTransfer() {
	if b.sc&0x81 != 0x81 {
		return
	}
	if b.serialW != nil {
		_, _ = b.serialW.Write([]byte{b.sb})
	}
	b.sb = 0xFF
	b.sc &^= 0x80
	b.RequestInterrupt(IntSerial)
}

// tickDMA copies one OAM byte at the end of every machine cycle of a running DMA.
func (b *Bus) tickDMA() {
	pos := dmaCycles - b.dmaLeft
	b.dmaLeft--
	if pos%4 != 3 {
		return
	}
	src := uint16(b.dma) << 8
	if b.dma >= 0xE0 {
		// sources above DFFF resolve through echo RAM
		src -= 0x2000
	}
	i := pos / 4
	b.ppu.WriteOAM(int(i), b.Peek(src+i))
}

// DMAActive reports whether an OAM DMA is in progress.
func (b *Bus) DMAActive() bool { return b.dmaLeft > 0 }

// Tick advances the timer, OAM DMA and LCD by the given number of cycles.
func (b *Bus) Tick(cycles int) {
	for i := 0; i < cycles; i++ {
		b.tickTimer()
		if b.dmaLeft > 0 {
			b.tickDMA()
		}
	}
	b.ppu.Tick(cycles)
}
