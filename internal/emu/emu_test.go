package emu

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cpu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/testrom"
)

func newMachine(t *testing.T, rom []byte, opts Options) *Machine {
	t.Helper()
	m, err := New(rom, nil, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestNew_RejectsShortROM(t *testing.T) {
	_, err := New(make([]byte, 0x100), nil, Options{})
	if !errors.Is(err, ErrInvalidROMFormat) {
		t.Fatalf("got %v want ErrInvalidROMFormat", err)
	}
}

func TestNew_ChecksumEnforcedUnlessSkipped(t *testing.T) {
	rom := testrom.Counter()
	rom[0x014D] ^= 0xFF
	if _, err := New(rom, nil, Options{}); !errors.Is(err, ErrInvalidROMFormat) {
		t.Fatalf("bad checksum: got %v want ErrInvalidROMFormat", err)
	}
	if _, err := New(rom, nil, Options{SkipChecksum: true}); err != nil {
		t.Fatalf("SkipChecksum: %v", err)
	}
}

func TestNew_RejectsShortBootROM(t *testing.T) {
	_, err := New(testrom.Counter(), make([]byte, 0x80), Options{})
	if !errors.Is(err, ErrInvalidBootROM) {
		t.Fatalf("got %v want ErrInvalidBootROM", err)
	}
}

func TestNew_PostBootState(t *testing.T) {
	m := newMachine(t, testrom.Counter(), Options{Video: true, Audio: true})
	r := m.Registers()
	if r.PC != 0x0100 || r.SP != 0xFFFE || r.A != 0x01 || r.F != 0xB0 {
		t.Fatalf("post-boot registers %+v", r)
	}
	if div := m.Peek(0xFF04); div != 0xAB {
		t.Fatalf("post-boot DIV got %02X want AB", div)
	}
	if lcdc := m.Peek(0xFF40); lcdc != 0x91 {
		t.Fatalf("post-boot LCDC got %02X want 91", lcdc)
	}
}

func TestNew_BootROMStartsAtZero(t *testing.T) {
	boot := make([]byte, 0x100)
	boot[0] = 0x3E // LD A,77
	boot[1] = 0x77
	m, err := New(testrom.Counter(), boot, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := m.Step(); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if r := m.Registers(); r.A != 0x77 || r.PC != 0x0002 {
		t.Fatalf("boot ROM not executed: %+v", r)
	}
}

func TestStep_LoadThenHalt(t *testing.T) {
	m := newMachine(t, testrom.BuildEntry("HALT", []byte{0x3E, 0x42, 0x76}), Options{})
	for i := 0; i < 2; i++ {
		if _, err := m.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
	}
	if r := m.Registers(); r.A != 0x42 || r.Mode != cpu.Halted {
		t.Fatalf("got A=%02X mode=%v want A=42 halted", r.A, r.Mode)
	}
}

func TestDeterminism_ParallelMachines(t *testing.T) {
	rom := testrom.Counter()
	const n = 4
	const ticks = 20
	streams := make([][]byte, n)
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			m, err := New(rom, nil, Options{Video: true, Audio: true})
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			for j := 0; j < ticks; j++ {
				if _, err := m.Tick(&buf); err != nil {
					return err
				}
			}
			streams[i] = buf.Bytes()
			return m.Stop()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("run: %v", err)
	}
	for i := 1; i < n; i++ {
		if !bytes.Equal(streams[0], streams[i]) {
			t.Fatalf("machine %d produced a different snapshot stream", i)
		}
	}
}

func TestTick_WritesOneSnapshotBeforeTick(t *testing.T) {
	m := newMachine(t, testrom.Counter(), Options{})
	var buf bytes.Buffer
	if _, err := m.Tick(&buf); err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if buf.Len() != m.SnapshotSize() {
		t.Fatalf("snapshot size got %d want %d", buf.Len(), m.SnapshotSize())
	}
	// the first snapshot is the constructed state
	if pc := buf.Bytes()[9]; pc != 0x00 || buf.Bytes()[10] != 0x01 {
		t.Fatalf("first snapshot PC bytes %02X %02X want 00 01", buf.Bytes()[9], buf.Bytes()[10])
	}
	if m.Cycles() < FrameCycles {
		t.Fatalf("tick ran %d cycles, want at least %d", m.Cycles(), FrameCycles)
	}
	if _, err := m.Tick(nil); err != nil {
		t.Fatalf("Tick(nil): %v", err)
	}
	if m.Frames() != 2 {
		t.Fatalf("frames got %d want 2", m.Frames())
	}
}

func runUntilDone(t *testing.T, m *Machine, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		done, err := m.Tick(nil)
		if err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if done {
			return i
		}
	}
	t.Fatalf("no completion within %d ticks (serial %q)", maxTicks, m.Serial())
	return 0
}

func TestCompletion_Signature(t *testing.T) {
	m := newMachine(t, testrom.Signature(true), Options{Completion: CompletionSignature})
	if n := runUntilDone(t, m, 10); n < 2 {
		t.Fatalf("completed in tick %d, before the delay loop ended", n)
	}
	if m.Result() != Passed {
		t.Fatalf("result got %v want passed", m.Result())
	}
	if v := m.Peek(ResultAddr); v != PassSentinel {
		t.Fatalf("result byte got %02X want %02X", v, PassSentinel)
	}

	m = newMachine(t, testrom.Signature(false), Options{})
	runUntilDone(t, m, 10)
	if m.Result() != Failed {
		t.Fatalf("failing ROM result got %v", m.Result())
	}
}

func TestCompletion_Breakpoint(t *testing.T) {
	m := newMachine(t, testrom.Breakpoint(true), Options{Completion: CompletionBreakpoint})
	runUntilDone(t, m, 2)
	if m.Result() != Passed {
		t.Fatalf("result got %v want passed", m.Result())
	}
	m = newMachine(t, testrom.Breakpoint(false), Options{})
	runUntilDone(t, m, 2)
	if m.Result() != Failed {
		t.Fatalf("result got %v want failed", m.Result())
	}
}

func TestCompletion_Serial(t *testing.T) {
	var out bytes.Buffer
	m := newMachine(t, testrom.Serial("cpu_instrs\n\nPassed\n"), Options{Completion: CompletionSerial, Serial: &out})
	runUntilDone(t, m, 2)
	if m.Result() != Passed {
		t.Fatalf("result got %v want passed", m.Result())
	}
	if !strings.HasPrefix(m.Serial(), "cpu_instrs\n\nPassed") || !strings.HasPrefix(out.String(), "cpu_instrs") {
		t.Fatalf("serial capture %q forward %q", m.Serial(), out.String())
	}

	m = newMachine(t, testrom.Serial("Failed 3 tests"), Options{})
	runUntilDone(t, m, 2)
	if m.Result() != Failed {
		t.Fatalf("result got %v want failed", m.Result())
	}
	m.Tick(nil) // let the summary line finish
	if n, ok := m.FailedTests(); !ok || n != 3 {
		t.Fatalf("FailedTests got %d %v want 3", n, ok)
	}
}

func TestCompletion_EndsTickEarly(t *testing.T) {
	m := newMachine(t, testrom.Breakpoint(true), Options{})
	done, err := m.Tick(nil)
	if err != nil || !done {
		t.Fatalf("Tick got %v %v", done, err)
	}
	if m.Cycles() >= FrameCycles {
		t.Fatalf("completion tick ran %d cycles, want an early stop", m.Cycles())
	}
	// later ticks run a full frame and keep reporting completion
	before := m.Cycles()
	if done, _ := m.Tick(nil); !done || m.Cycles()-before < FrameCycles {
		t.Fatalf("second tick done=%v cycles=%d", done, m.Cycles()-before)
	}
}

func TestCompletion_None(t *testing.T) {
	m := newMachine(t, testrom.Breakpoint(true), Options{Completion: CompletionNone})
	for i := 0; i < 3; i++ {
		if done, _ := m.Tick(nil); done {
			t.Fatalf("CompletionNone reported completion")
		}
	}
}

func TestParseCompletion(t *testing.T) {
	for _, c := range []Completion{CompletionAuto, CompletionSerial, CompletionSignature, CompletionBreakpoint, CompletionNone} {
		got, err := ParseCompletion(strings.ToUpper(c.String()))
		if err != nil || got != c {
			t.Fatalf("ParseCompletion(%q) got %v %v", c.String(), got, err)
		}
	}
	if _, err := ParseCompletion("bogus"); err == nil {
		t.Fatalf("ParseCompletion accepted bogus")
	}
}

func TestSaveLoadState_RoundTrip(t *testing.T) {
	rom := testrom.Counter()
	a := newMachine(t, rom, Options{Video: true})
	for i := 0; i < 3; i++ {
		a.Tick(nil)
	}
	path := filepath.Join(t.TempDir(), "slot.state")
	if err := a.SaveStateToFile(path); err != nil {
		t.Fatalf("SaveStateToFile: %v", err)
	}
	b := newMachine(t, rom, Options{Video: true})
	if err := b.LoadStateFromFile(path); err != nil {
		t.Fatalf("LoadStateFromFile: %v", err)
	}
	var sa, sb bytes.Buffer
	a.Tick(&sa)
	b.Tick(&sb)
	a.SaveState(&sa)
	b.SaveState(&sb)
	if !bytes.Equal(sa.Bytes(), sb.Bytes()) {
		t.Fatalf("restored machine diverged")
	}
}

// stepsToCompletion steps m until it reports a result.
func stepsToCompletion(t *testing.T, m *Machine, limit int) int {
	t.Helper()
	for n := 1; n <= limit; n++ {
		if _, err := m.Step(); err != nil {
			t.Fatalf("Step: %v", err)
		}
		if m.Result() != Running {
			return n
		}
	}
	t.Fatalf("no completion after %d steps, serial %q", limit, m.Serial())
	return 0
}

func TestLoadState_CompletionDetectedAgain(t *testing.T) {
	rom := testrom.Serial("Passed\n")
	fresh := stepsToCompletion(t, newMachine(t, rom, Options{}), 100000)

	m := newMachine(t, rom, Options{})
	var start bytes.Buffer
	if err := m.SaveState(&start); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	if n := stepsToCompletion(t, m, 100000); n != fresh {
		t.Fatalf("first run completed after %d steps want %d", n, fresh)
	}
	if err := m.LoadState(bytes.NewReader(start.Bytes())); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if m.Result() != Running || m.Serial() != "" {
		t.Fatalf("after load: result %v serial %q", m.Result(), m.Serial())
	}
	if n := stepsToCompletion(t, m, 100000); n != fresh || m.Result() != Passed {
		t.Fatalf("restored run completed after %d steps (%v) want %d", n, m.Result(), fresh)
	}
}

func TestSnapshotRightAfterConstruction(t *testing.T) {
	rom := testrom.Counter()
	a := newMachine(t, rom, Options{})
	var buf bytes.Buffer
	if err := a.SaveState(&buf); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	b := newMachine(t, rom, Options{})
	if err := b.LoadState(&buf); err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	a.Step()
	b.Step()
	if a.Registers() != b.Registers() {
		t.Fatalf("registers differ: %+v vs %+v", a.Registers(), b.Registers())
	}
}

func TestCapabilityFlags(t *testing.T) {
	off := newMachine(t, testrom.Counter(), Options{})
	on := newMachine(t, testrom.Counter(), Options{Video: true, Audio: true})
	for i := 0; i < 200; i++ {
		off.Step()
		on.Step()
	}
	if off.LY() != 0 || on.LY() == 0 {
		t.Fatalf("LY with video off %d, on %d", off.LY(), on.LY())
	}
	if v := off.Peek(0xFF26); v != 0xFF {
		t.Fatalf("NR52 without audio got %02X want FF", v)
	}
	if v := on.Peek(0xFF26); v&0x80 == 0 {
		t.Fatalf("NR52 with audio should be powered, got %02X", v)
	}
}

func TestSetSpeed(t *testing.T) {
	m := newMachine(t, testrom.Counter(), Options{})
	if err := m.SetSpeed(-1); !errors.Is(err, ErrBadSpeed) {
		t.Fatalf("negative speed: got %v", err)
	}
	if err := m.SetSpeed(2); err != nil || m.Speed() != 2 {
		t.Fatalf("SetSpeed(2): %v speed %g", err, m.Speed())
	}
	if _, err := New(testrom.Counter(), nil, Options{Speed: -3}); !errors.Is(err, ErrBadSpeed) {
		t.Fatalf("New with negative speed: got %v", err)
	}
}

func TestPacer_SleepsToFrameRate(t *testing.T) {
	now := time.Unix(0, 0)
	var slept time.Duration
	p := newPacer(1)
	p.now = func() time.Time { return now }
	p.sleep = func(d time.Duration) { slept += d; now = now.Add(d) }

	for i := 0; i < 11; i++ {
		p.wait()
	}
	want := 10 * p.period()
	if slept != want {
		t.Fatalf("slept %v want %v", slept, want)
	}

	p.setSpeed(0)
	slept = 0
	p.wait()
	p.wait()
	if slept != 0 {
		t.Fatalf("unthrottled pacer slept %v", slept)
	}
}

func TestStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.log")
	m := newMachine(t, testrom.Counter(), Options{TracePath: path})
	m.Step()
	m.Step()
	if err := m.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if _, err := m.Tick(nil); !errors.Is(err, ErrStopped) {
		t.Fatalf("Tick after Stop: %v", err)
	}
	if _, err := m.Step(); !errors.Is(err, ErrStopped) {
		t.Fatalf("Step after Stop: %v", err)
	}
	if err := m.SetSpeed(1); !errors.Is(err, ErrStopped) {
		t.Fatalf("SetSpeed after Stop: %v", err)
	}
	if err := m.Stop(); !errors.Is(err, ErrStopped) {
		t.Fatalf("second Stop: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "PC=0100 OP=00") || !strings.HasSuffix(lines[1], "JP $0150") {
		t.Fatalf("trace lines %q", lines)
	}
}
