package ui

import "path/filepath"

// Config contains window and monitor settings.
type Config struct {
	Title    string  // window title
	Scale    int     // integer upscaling factor
	Speed    float64 // 1 = real time (60 ticks/s); 0 runs as many ticks as fit in a frame
	StateDir string  // directory holding the save state slots
	ROMPath  string  // used to name the slot files
}

// Defaults fills missing fields with reasonable defaults.
func (c *Config) Defaults() {
	if c.Title == "" {
		c.Title = "gbmon"
	}
	if c.Scale <= 0 {
		c.Scale = 2
	}
	if c.Speed < 0 {
		c.Speed = 1
	}
	if c.StateDir == "" {
		c.StateDir = "states"
	}
}

// statePath is <StateDir>/<rom name>.slotN.state.
func (c *Config) statePath(slot int) string {
	name := "machine"
	if c.ROMPath != "" {
		name = filepath.Base(c.ROMPath)
	}
	return filepath.Join(c.StateDir, name+".slot"+string(rune('1'+slot))+".state")
}
