package ui

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// mainMenuItems is the number of selectable entries in the main menu.
const mainMenuItems = 5

func (a *App) updateMainMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < mainMenuItems-1 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		switch a.menuIdx {
		case 0:
			a.saveCurrent()
		case 1:
			a.loadCurrent()
		case 2:
			a.menuMode = "slot"
			a.menuIdx = a.currentSlot
		case 3:
			if err := a.m.Wake(); err != nil {
				a.toast("Wake failed: " + err.Error())
			} else {
				a.toast("Woke CPU")
			}
		case 4:
			a.showMenu = false
		}
	}
	// Back with Backspace
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.showMenu = false
	}
}

func (a *App) updateSlotMenu() {
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowUp) && a.menuIdx > 0 {
		a.menuIdx--
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyArrowDown) && a.menuIdx < 3 {
		a.menuIdx++
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		a.currentSlot = a.menuIdx
		a.toast(fmt.Sprintf("Slot set to %d", a.currentSlot+1))
		a.menuMode = "main"
		a.menuIdx = 0
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) {
		a.menuMode = "main"
		a.menuIdx = 2
	}
}

func (a *App) saveCurrent() {
	if err := a.saveSlot(a.currentSlot); err != nil {
		a.toast("Save failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Saved slot %d", a.currentSlot+1))
}

func (a *App) loadCurrent() {
	if _, err := os.Stat(a.cfg.statePath(a.currentSlot)); err != nil {
		a.toast("Slot is empty")
		return
	}
	if err := a.loadSlot(a.currentSlot); err != nil {
		a.toast("Load failed: " + err.Error())
		return
	}
	a.toast(fmt.Sprintf("Loaded slot %d", a.currentSlot+1))
}

func (a *App) saveSlot(slot int) error {
	path := a.cfg.statePath(slot)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return a.m.SaveStateToFile(path)
}

func (a *App) loadSlot(slot int) error {
	return a.m.LoadStateFromFile(a.cfg.statePath(slot))
}
