package apu

import "testing"

func TestAPU_ReadMasks(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF11, 0x00)
	if got := a.CPURead(0xFF11); got != 0x3F {
		t.Fatalf("NR11 got %02X want 3F", got)
	}
	a.CPUWrite(0xFF24, 0x77)
	if got := a.CPURead(0xFF24); got != 0x77 {
		t.Fatalf("NR50 got %02X want 77", got)
	}
	if got := a.CPURead(0xFF27); got != 0xFF {
		t.Fatalf("unused FF27 got %02X want FF", got)
	}
}

func TestAPU_PowerOffClearsAndBlocksWrites(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF24, 0x77)
	a.CPUWrite(0xFF30, 0xAB)
	a.CPUWrite(0xFF26, 0x00)
	if got := a.CPURead(0xFF24); got != 0x00 {
		t.Fatalf("NR50 after power off got %02X want 00", got)
	}
	a.CPUWrite(0xFF24, 0x55)
	if got := a.CPURead(0xFF24); got != 0x00 {
		t.Fatalf("NR50 write while off got %02X want 00", got)
	}
	if got := a.CPURead(0xFF30); got != 0xAB {
		t.Fatalf("wave RAM lost on power off: got %02X", got)
	}
	if got := a.CPURead(0xFF26); got != 0x70 {
		t.Fatalf("NR52 off got %02X want 70", got)
	}
}

func TestAPU_TriggerSetsChannelStatus(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF14, 0x80) // trigger with DAC off
	if got := a.CPURead(0xFF26) & 0x0F; got != 0 {
		t.Fatalf("trigger with DAC off set status %X", got)
	}
	a.CPUWrite(0xFF12, 0xF0)
	a.CPUWrite(0xFF14, 0x80)
	if got := a.CPURead(0xFF26) & 0x0F; got != 0x01 {
		t.Fatalf("CH1 status got %X want 1", got)
	}
	a.CPUWrite(0xFF12, 0x00) // DAC off
	if got := a.CPURead(0xFF26) & 0x0F; got != 0 {
		t.Fatalf("CH1 status after DAC off got %X want 0", got)
	}
}

func TestAPU_PokeRoundTrip(t *testing.T) {
	a := New()
	a.CPUWrite(0xFF26, 0x80)
	a.CPUWrite(0xFF21, 0xF0)
	a.CPUWrite(0xFF23, 0x80)
	b := New()
	for addr := uint16(0xFF10); addr <= 0xFF3F; addr++ {
		b.Poke(addr, a.CPURead(addr))
	}
	for addr := uint16(0xFF10); addr <= 0xFF3F; addr++ {
		if a.CPURead(addr) != b.CPURead(addr) {
			t.Fatalf("%04X got %02X want %02X", addr, b.CPURead(addr), a.CPURead(addr))
		}
	}
}
