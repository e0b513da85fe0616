package snapshot

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/bus"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cpu"
)

// counterROM loops forever incrementing A and storing it to WRAM with the
// timer and LCD running, so every step changes visible state.
func counterROM() []byte {
	rom := make([]byte, 0x8000)
	prog := []byte{
		0x3E, 0x91, 0xE0, 0x40, // LD A,91; LDH (40),A  LCD on
		0x3E, 0x05, 0xE0, 0x07, // LD A,05; LDH (07),A  timer on
		0x21, 0x00, 0xC0, // LD HL,C000
		0x3C,       // loop: INC A
		0x22,       // LD (HL+),A
		0x18, 0xFC, // JR loop
	}
	copy(rom, prog)
	return rom
}

func newMachine(rom []byte) (*cpu.CPU, *bus.Bus) {
	b := bus.New(rom)
	return cpu.New(b), b
}

func run(c *cpu.CPU, n int) {
	for i := 0; i < n; i++ {
		c.Step()
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	rom := counterROM()
	c1, b1 := newMachine(rom)
	run(c1, 5000)

	var buf bytes.Buffer
	if err := Encode(&buf, c1, b1); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if buf.Len() != Size(b1) {
		t.Fatalf("encoded %d bytes want %d", buf.Len(), Size(b1))
	}
	first := append([]byte(nil), buf.Bytes()...)

	c2, b2 := newMachine(rom)
	if err := Decode(&buf, c2, b2); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if again := Marshal(c2, b2); !bytes.Equal(again, first) {
		for i := range again {
			if again[i] != first[i] {
				t.Fatalf("re-encoded snapshot differs at %s", FieldAt(i))
			}
		}
	}

	run(c1, 3000)
	run(c2, 3000)
	a, b := Marshal(c1, b1), Marshal(c2, b2)
	if !bytes.Equal(a, b) {
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("restored machine diverged at %s: %02X vs %02X", FieldAt(i), a[i], b[i])
			}
		}
	}
}

func TestSnapshot_BeforeFirstStep(t *testing.T) {
	rom := counterROM()
	c1, b1 := newMachine(rom)
	c1.ResetNoBoot()
	c1.SetPC(0)
	data := Marshal(c1, b1)

	c2, b2 := newMachine(rom)
	if err := Unmarshal(data, c2, b2); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	c1.Step()
	c2.Step()
	if c1.State() != c2.State() {
		t.Fatalf("registers differ after one step: %+v vs %+v", c1.State(), c2.State())
	}
}

func TestSnapshot_RejectsBadLength(t *testing.T) {
	c, b := newMachine(counterROM())
	data := Marshal(c, b)
	for _, n := range []int{0, 10, len(data) - 1, len(data) + 1} {
		buf := make([]byte, n)
		copy(buf, data)
		if err := Unmarshal(buf, c, b); !errors.Is(err, ErrCorruptSnapshot) {
			t.Fatalf("length %d: got %v want ErrCorruptSnapshot", n, err)
		}
	}
}

func TestSnapshot_RejectsBadValuesAndLeavesTarget(t *testing.T) {
	rom := counterROM()
	src, sb := newMachine(rom)
	run(src, 100)
	good := Marshal(src, sb)

	cases := []struct {
		name string
		off  int
		v    byte
	}{
		{"mode", OffMode, 4},
		{"ei delay", OffEIDelay, 3},
		{"reload", OffReload, 5},
		{"boot flag", OffBoot, 2},
		{"latches", OffLatches, 0x80},
		{"flags low nibble", OffF, 0x0F},
		{"boot without ROM", OffBoot, 1},
		{"mapper", OffMapper, 1},
	}
	for _, tc := range cases {
		dst, db := newMachine(rom)
		run(dst, 10)
		before := Marshal(dst, db)

		bad := append([]byte(nil), good...)
		bad[tc.off] = tc.v
		err := Unmarshal(bad, dst, db)
		if !errors.Is(err, ErrCorruptSnapshot) {
			t.Fatalf("%s: got %v want ErrCorruptSnapshot", tc.name, err)
		}
		if !bytes.Equal(Marshal(dst, db), before) {
			t.Fatalf("%s: target modified by failed decode", tc.name)
		}
	}
}

func TestSnapshot_IgnoresROMBytes(t *testing.T) {
	rom := counterROM()
	c, b := newMachine(rom)
	data := Marshal(c, b)
	data[OffMemory+0x0000] = 0x99
	if err := Unmarshal(data, c, b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if b.Peek(0x0000) != rom[0] {
		t.Fatalf("ROM changed by decode: %02X", b.Peek(0x0000))
	}
}

func TestFieldAt(t *testing.T) {
	cases := map[int]string{
		0:                  "A",
		OffRegs + 6:        "L",
		OffPC + 1:          "PC",
		OffMode:            "mode",
		OffDMA + 1:         "OAM DMA",
		OffMapper + 7:      "mapper",
		OffMemory + 0xFF44: "mem[FF44]",
		OffCartRAM + 0x10:  "cart RAM[0010]",
		-1:                 "invalid",
	}
	for off, want := range cases {
		if got := FieldAt(off); got != want {
			t.Fatalf("FieldAt(%d) got %q want %q", off, got, want)
		}
	}
}

func TestView_Print(t *testing.T) {
	c, b := newMachine(counterROM())
	c.ResetNoBoot()
	v, err := NewView(Marshal(c, b))
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if v.PC() != 0x0100 || v.SP() != 0xFFFE {
		t.Fatalf("view PC/SP got %04X/%04X", v.PC(), v.SP())
	}
	var out bytes.Buffer
	if err := v.Print(&out); err != nil {
		t.Fatalf("Print: %v", err)
	}
	if !bytes.Contains(out.Bytes(), []byte("PC=0100")) {
		t.Fatalf("Print output missing PC: %q", out.String())
	}
	if _, err := NewView(make([]byte, 10)); !errors.Is(err, ErrCorruptSnapshot) {
		t.Fatalf("short view should be corrupt, got %v", err)
	}
}
