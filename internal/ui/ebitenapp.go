package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
)

const (
	screenW    = 360
	screenH    = 240
	lineHeight = 16
	// unthrottledBudget is how long one Update may spend ticking at speed 0.
	unthrottledBudget = 12 * time.Millisecond
	toastDuration     = 2 * time.Second
)

// App is a live monitor for one machine: it ticks the machine from ebiten's
// update loop and prints registers, latches and serial output.
type App struct {
	cfg    Config
	m      *emu.Machine
	paused bool
	err    error

	// overlay/menu
	showMenu    bool
	menuMode    string // "main" or "slot"
	menuIdx     int
	currentSlot int

	toastMsg   string
	toastUntil time.Time
}

func NewApp(cfg Config, m *emu.Machine) *App {
	cfg.Defaults()
	ebiten.SetWindowTitle(cfg.Title)
	ebiten.SetWindowSize(screenW*cfg.Scale, screenH*cfg.Scale)
	a := &App{cfg: cfg, m: m, menuMode: "main"}
	a.applySpeed()
	return a
}

func (a *App) Run() error { return ebiten.RunGame(a) }

// applySpeed maps the speed multiplier onto ebiten's tick rate. Speed 0 keeps
// 60 updates per second and fills each one with as many ticks as fit.
func (a *App) applySpeed() {
	tps := int(60 * a.cfg.Speed)
	if tps < 1 {
		tps = 60
	}
	ebiten.SetTPS(tps)
}

func (a *App) Update() error {
	if a.err != nil {
		return a.err
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		a.showMenu = !a.showMenu
		a.menuMode = "main"
		a.menuIdx = 0
	}
	if a.showMenu {
		switch a.menuMode {
		case "slot":
			a.updateSlotMenu()
		default:
			a.updateMainMenu()
		}
		return nil
	}

	// Pause toggle (P)
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		a.paused = !a.paused
	}
	// Quick state slots
	for i, k := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3, ebiten.Key4} {
		if inpututil.IsKeyJustPressed(k) {
			a.currentSlot = i
			a.toast(fmt.Sprintf("Slot set to %d", i+1))
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF5) {
		a.saveCurrent()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyF9) {
		a.loadCurrent()
	}
	// Speed +/- in halves, never below 0.5 from the keyboard
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		a.cfg.Speed += 0.5
		a.applySpeed()
		a.toast(fmt.Sprintf("Speed %gx", a.cfg.Speed))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) && a.cfg.Speed > 0.5 {
		a.cfg.Speed -= 0.5
		a.applySpeed()
		a.toast(fmt.Sprintf("Speed %gx", a.cfg.Speed))
	}
	// W stands in for a button press to leave STOP
	if inpututil.IsKeyJustPressed(ebiten.KeyW) {
		a.err = a.m.Wake()
	}

	if a.paused {
		// Single tick (N) or single instruction (S) while paused
		if inpututil.IsKeyJustPressed(ebiten.KeyN) {
			_, a.err = a.m.Tick(nil)
		}
		if inpututil.IsKeyJustPressed(ebiten.KeyS) {
			_, a.err = a.m.Step()
		}
		return nil
	}

	if a.cfg.Speed > 0 {
		_, a.err = a.m.Tick(nil)
		return nil
	}
	deadline := time.Now().Add(unthrottledBudget)
	for time.Now().Before(deadline) {
		if _, a.err = a.m.Tick(nil); a.err != nil {
			break
		}
	}
	return nil
}

func (a *App) Draw(screen *ebiten.Image) {
	if a.showMenu {
		switch a.menuMode {
		case "slot":
			a.drawSlotMenu(screen)
		default:
			a.drawMainMenu(screen)
		}
		return
	}
	for i, s := range a.panel() {
		ebitenutil.DebugPrintAt(screen, s, 8, 4+i*lineHeight)
	}
	if a.toastMsg != "" && time.Now().Before(a.toastUntil) {
		ebitenutil.DebugPrintAt(screen, a.toastMsg, 8, screenH-lineHeight-4)
	}
}

func (a *App) Layout(outW, outH int) (int, int) { return screenW, screenH }

// panel renders the monitor text: machine status, registers, latches and the
// tail of the serial output.
func (a *App) panel() []string {
	r := a.m.Registers()
	next, _ := a.m.Disassemble(r.PC)
	status := "running"
	if a.paused {
		status = "paused"
	}
	lines := []string{
		fmt.Sprintf("%s [%s]  %s  result=%s", a.m.Header().Title, a.m.Header().CartTypeStr, status, a.m.Result()),
		fmt.Sprintf("tick %d  cycles %d  speed %gx  slot %d", a.m.Frames(), a.m.Cycles(), a.cfg.Speed, a.currentSlot+1),
		"",
		fmt.Sprintf("AF=%02X%02X BC=%02X%02X DE=%02X%02X HL=%02X%02X", r.A, r.F, r.B, r.C, r.D, r.E, r.H, r.L),
		fmt.Sprintf("SP=%04X PC=%04X  %s", r.SP, r.PC, next),
		fmt.Sprintf("Z%d N%d H%d C%d  mode=%s IME=%t EI=%d", r.F>>7&1, r.F>>6&1, r.F>>5&1, r.F>>4&1, r.Mode, r.IME, r.EIDelay),
		fmt.Sprintf("IF=%02X IE=%02X LY=%d DIV=%02X TIMA=%02X TAC=%02X",
			a.m.Peek(0xFF0F), a.m.Peek(0xFFFF), a.m.LY(), a.m.Peek(0xFF04), a.m.Peek(0xFF05), a.m.Peek(0xFF07)),
		"",
		"serial:",
	}
	return append(lines, tailLines(a.m.Serial(), 5, 56)...)
}

// tailLines returns up to n trailing lines of s, each cut to width.
func tailLines(s string, n, width int) []string {
	all := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}
	for i, l := range all {
		if len(l) > width {
			all[i] = l[:width]
		}
	}
	return all
}

func (a *App) toast(msg string) {
	a.toastMsg = msg
	a.toastUntil = time.Now().Add(toastDuration)
}
