package emu

import (
	"io"
	"log"
	"strings"

	"github.com/pkg/errors"
)

// Completion selects how a running test ROM signals that it is done.
type Completion int

const (
	// CompletionAuto reports whichever of the conventions below fires first.
	CompletionAuto Completion = iota
	// CompletionSerial watches serial output for "Passed" or "Failed" (Blargg).
	CompletionSerial
	// CompletionSignature watches the Blargg memory protocol at ResultAddr.
	CompletionSignature
	// CompletionBreakpoint watches for LD B,B with the Mooneye register pattern.
	CompletionBreakpoint
	// CompletionNone never completes.
	CompletionNone
)

var completionNames = map[Completion]string{
	CompletionAuto:       "auto",
	CompletionSerial:     "serial",
	CompletionSignature:  "signature",
	CompletionBreakpoint: "breakpoint",
	CompletionNone:       "none",
}

func (c Completion) String() string {
	if s, ok := completionNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseCompletion maps a flag value such as "serial" to a Completion.
func ParseCompletion(s string) (Completion, error) {
	for c, name := range completionNames {
		if strings.EqualFold(s, name) {
			return c, nil
		}
	}
	return CompletionNone, errors.Errorf("unknown completion mode %q", s)
}

// SnapshotPoint is where within a tick the snapshot sink is written.
type SnapshotPoint int

const (
	// BeforeTick writes the state the tick starts from, so the first snapshot
	// of a run is the freshly constructed machine.
	BeforeTick SnapshotPoint = iota
	AfterTick
)

// Options contains construction-time settings. The zero value is a headless,
// unthrottled machine with video and audio registers disabled.
type Options struct {
	Video        bool // LCD timing unit (LY, STAT, VBlank); no pixels are produced
	Audio        bool // sound register file at FF10-FF3F; open bus when false
	SkipChecksum bool // accept ROMs whose header checksum does not match

	Completion    Completion
	SnapshotPoint SnapshotPoint
	Speed         float64 // 0 = unthrottled, 1 = real time

	Serial    io.Writer // optional copy of every serial byte
	Trace     io.Writer // one line per instruction when set
	TracePath string    // file to create for the trace; closed by Stop
	Logger    *log.Logger
}

// Defaults fills missing fields with reasonable defaults.
func (o *Options) Defaults() {
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
}
