package emu

import (
	"io"
	"strconv"
)

// serialWindow bounds how much serial text a machine keeps.
const serialWindow = 8192

// serialLog captures serial bytes for completion detection, keeping only the
// most recent serialWindow bytes, and optionally forwards them.
type serialLog struct {
	buf     []byte
	fwd     io.Writer
	changed bool
}

func (s *serialLog) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	if over := len(s.buf) - serialWindow; over > 0 {
		s.buf = append(s.buf[:0], s.buf[over:]...)
	}
	s.changed = true
	if s.fwd != nil {
		if _, err := s.fwd.Write(p); err != nil {
			// The forward copy is best effort; the machine keeps running.
			s.fwd = nil
		}
	}
	return len(p), nil
}

func (s *serialLog) Bytes() []byte { return s.buf }

// reset drops the captured text. The forward writer is kept.
func (s *serialLog) reset() {
	s.buf = s.buf[:0]
	s.changed = false
}

func (s *serialLog) takeChanged() bool {
	c := s.changed
	s.changed = false
	return c
}

// Serial returns the captured serial output (at most the last 8 KiB).
func (m *Machine) Serial() string {
	if m.serial == nil {
		return ""
	}
	return string(m.serial.Bytes())
}

// FailedTests parses a Blargg "Failed N tests" summary from serial output.
func (m *Machine) FailedTests() (int, bool) {
	if m.serial == nil {
		return 0, false
	}
	mm := failCountRe.FindSubmatch(m.serial.Bytes())
	if mm == nil {
		return 0, false
	}
	n, err := strconv.Atoi(string(mm[1]))
	return n, err == nil
}
