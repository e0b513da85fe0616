package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
)

// stageRe matches Blargg progress markers like "11:01".
var stageRe = regexp.MustCompile(`\b(\d{2}:\d{2})\b`)

// lineRing keeps the last n lines written to it.
type lineRing struct {
	lines   []string
	next    int
	full    bool
	partial []byte
}

func newLineRing(n int) *lineRing { return &lineRing{lines: make([]string, n)} }

func (r *lineRing) Write(p []byte) (int, error) {
	r.partial = append(r.partial, p...)
	for {
		i := bytes.IndexByte(r.partial, '\n')
		if i < 0 {
			break
		}
		if len(r.lines) > 0 {
			r.lines[r.next] = string(r.partial[:i])
			r.next = (r.next + 1) % len(r.lines)
			if r.next == 0 {
				r.full = true
			}
		}
		r.partial = r.partial[i+1:]
	}
	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (r *lineRing) Lines() []string {
	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}
	return append(append([]string(nil), r.lines[r.next:]...), r.lines[:r.next]...)
}

func runCmd() *cobra.Command {
	var (
		mf          machineFlags
		maxTicks    int
		completion  string
		trace       bool
		traceFile   string
		traceOnFail bool
		traceWindow int
		timeout     time.Duration
		quiet       bool
	)
	cmd := &cobra.Command{
		Use:   "run ROM",
		Short: "Run a test ROM until it signals completion (exit 0 pass, 1 fail, 2 timeout)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rom, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read ROM")
			}
			boot, err := mf.boot()
			if err != nil {
				return err
			}
			opts := mf.options()
			if opts.Completion, err = emu.ParseCompletion(completion); err != nil {
				return err
			}
			if !quiet {
				opts.Serial = os.Stdout
			}
			var ring *lineRing
			if trace {
				opts.Trace = os.Stdout
			}
			if traceOnFail && traceWindow > 0 {
				ring = newLineRing(traceWindow)
				if opts.Trace != nil {
					opts.Trace = io.MultiWriter(opts.Trace, ring)
				} else {
					opts.Trace = ring
				}
			}
			opts.TracePath = traceFile

			m, err := emu.New(rom, boot, opts)
			if err != nil {
				return err
			}
			h := m.Header()
			fmt.Printf("ROM: %q type=%s banks=%d ram=%dB completion=%s\n", h.Title, h.CartTypeStr, h.ROMBanks, h.RAMSizeBytes, opts.Completion)
			start := time.Now()
			var deadline time.Time
			if timeout > 0 {
				deadline = start.Add(timeout)
			}
			code := exitCode(2)
			for i := 0; maxTicks <= 0 || i < maxTicks; i++ {
				done, err := m.Tick(nil)
				if err != nil {
					m.Stop()
					return err
				}
				if done {
					break
				}
				if !deadline.IsZero() && time.Now().After(deadline) {
					fmt.Printf("\nTimeout after %s.\n", time.Since(start).Truncate(time.Millisecond))
					break
				}
			}

			serial := m.Serial()
			lastStage := ""
			if mm := stageRe.FindAllString(serial, -1); len(mm) > 0 {
				lastStage = mm[len(mm)-1]
			}
			switch m.Result() {
			case emu.Passed:
				fmt.Printf("\nDetected PASS (%s).\n", opts.Completion)
				code = 0
			case emu.Failed:
				if n, ok := m.FailedTests(); ok {
					fmt.Printf("\nDetected FAIL: %d tests failed.\n", n)
				} else {
					fmt.Printf("\nDetected FAIL (%s).\n", opts.Completion)
				}
				code = 1
			default:
				fmt.Printf("\nNo completion after %d ticks.\n", m.Frames())
			}
			if lastStage != "" {
				fmt.Printf("Last stage seen: %s\n", lastStage)
			}
			if code == 1 && ring != nil {
				lines := ring.Lines()
				fmt.Printf("\n--- recent trace (last %d instructions) ---\n", len(lines))
				for _, l := range lines {
					fmt.Println(l)
				}
				fmt.Printf("--- end trace ---\n")
			}
			if code == 1 && quiet && serial != "" {
				fmt.Printf("\n--- recent serial (last %d bytes) ---\n%s\n--- end serial ---\n", len(serial), serial)
			}
			fmt.Printf("\nDone: ticks=%d cycles=%d elapsed=%s\n", m.Frames(), m.Cycles(), time.Since(start).Truncate(time.Millisecond))
			if err := m.Stop(); err != nil {
				return err
			}
			if code != 0 {
				return code
			}
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().IntVar(&maxTicks, "max-ticks", 3600, "give up after this many ticks (0 = no limit)")
	cmd.Flags().StringVar(&completion, "completion", "auto", "completion convention: auto, serial, signature, breakpoint or none")
	cmd.Flags().BoolVar(&trace, "trace", false, "print one line per instruction")
	cmd.Flags().StringVar(&traceFile, "trace-file", "", "also write the instruction trace to this file")
	cmd.Flags().BoolVar(&traceOnFail, "trace-on-fail", false, "on failure, print the most recent instructions (slows down)")
	cmd.Flags().IntVar(&traceWindow, "trace-window", 200, "instructions kept for --trace-on-fail")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "optional wall-clock timeout (e.g. 30s, 2m); 0 disables")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not echo serial output")
	return cmd
}
