package emu

import (
	"regexp"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/cpu"
)

// Result is the outcome a test ROM has reported so far.
type Result int

const (
	Running Result = iota
	Passed
	Failed
)

func (r Result) String() string {
	switch r {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	}
	return "running"
}

// Blargg memory protocol: once A001-A003 hold the signature, A000 is the
// result code. 0x80 means the test is still running.
const (
	ResultAddr   uint16 = 0xA000
	PassSentinel byte   = 0x00
	runningCode  byte   = 0x80
)

var signature = [3]byte{0xDE, 0xB0, 0x61}

// Mooneye tests execute LD B,B when finished and leave a Fibonacci sequence
// in B..L on success or 0x42 everywhere on failure.
const breakpointOp = 0x40

var (
	mooneyePass = [6]byte{3, 5, 8, 13, 21, 34}
	mooneyeFail = [6]byte{0x42, 0x42, 0x42, 0x42, 0x42, 0x42}
)

var (
	serialPassRe = regexp.MustCompile(`(?i)\bpassed\b`)
	serialFailRe = regexp.MustCompile(`(?i)\bfailed\b`)
	// failCountRe picks up the summary line of the combined ROMs.
	failCountRe = regexp.MustCompile(`(?i)failed\s+(\d+)\s+tests?`)
)

// detector inspects the machine at an instruction boundary.
type detector interface {
	check(m *Machine) Result
}

type serialDetector struct{}

func (serialDetector) check(m *Machine) Result {
	if !m.serial.takeChanged() {
		return Running
	}
	text := m.serial.Bytes()
	switch {
	case serialFailRe.Match(text):
		return Failed
	case serialPassRe.Match(text):
		return Passed
	}
	return Running
}

type signatureDetector struct{}

func (signatureDetector) check(m *Machine) Result {
	b := m.bus
	for i, v := range signature {
		if b.Peek(ResultAddr+1+uint16(i)) != v {
			return Running
		}
	}
	switch code := b.Peek(ResultAddr); code {
	case runningCode:
		return Running
	case PassSentinel:
		return Passed
	}
	return Failed
}

type breakpointDetector struct{}

func (breakpointDetector) check(m *Machine) Result {
	if op, ok := m.cpu.LastOpcode(); !ok || op != breakpointOp {
		return Running
	}
	return mooneyeResult(m.cpu.State())
}

func mooneyeResult(s cpu.State) Result {
	regs := [6]byte{s.B, s.C, s.D, s.E, s.H, s.L}
	switch regs {
	case mooneyePass:
		return Passed
	case mooneyeFail:
		return Failed
	}
	return Running
}

// firstOf reports the first detector that leaves Running.
type firstOf []detector

func (d firstOf) check(m *Machine) Result {
	for _, det := range d {
		if r := det.check(m); r != Running {
			return r
		}
	}
	return Running
}

type never struct{}

func (never) check(*Machine) Result { return Running }

func newDetector(c Completion) detector {
	switch c {
	case CompletionSerial:
		return serialDetector{}
	case CompletionSignature:
		return signatureDetector{}
	case CompletionBreakpoint:
		return breakpointDetector{}
	case CompletionNone:
		return never{}
	}
	return firstOf{serialDetector{}, signatureDetector{}, breakpointDetector{}}
}
