package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/golden"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/snapshot"
)

// exitCode carries a process exit status out of a RunE.
type exitCode int

func (e exitCode) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

// machineFlags are the construction options shared by every subcommand.
type machineFlags struct {
	bootROM      string
	speed        float64
	video        bool
	audio        bool
	skipChecksum bool
	verbose      bool
}

func (f *machineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.bootROM, "bootrom", "", "optional DMG boot ROM to run from 0x0000 until FF50 disables it")
	cmd.Flags().Float64Var(&f.speed, "speed", 0, "emulation speed multiplier (0 = unthrottled, 1 = real time)")
	cmd.Flags().BoolVar(&f.video, "video", false, "enable LCD timing (LY, STAT, VBlank)")
	cmd.Flags().BoolVar(&f.audio, "audio", false, "enable the sound register file")
	cmd.Flags().BoolVar(&f.skipChecksum, "skip-checksum", false, "accept ROMs with a bad header checksum")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "log machine events to stderr")
}

func (f *machineFlags) options() emu.Options {
	opts := emu.Options{
		Video:        f.video,
		Audio:        f.audio,
		SkipChecksum: f.skipChecksum,
		Speed:        f.speed,
	}
	if f.verbose {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	return opts
}

func (f *machineFlags) boot() ([]byte, error) {
	if f.bootROM == "" {
		return nil, nil
	}
	b, err := os.ReadFile(f.bootROM)
	return b, errors.Wrap(err, "read boot ROM")
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "gbgolden",
		Short:         "Deterministic DMG core: golden state streams for CPU test ROMs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(dumpCmd(), runCmd(), inspectCmd(), verifyCmd())

	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		log.Printf("gbgolden: %v", err)
		os.Exit(2)
	}
}

func dumpCmd() *cobra.Command {
	var (
		mf       machineFlags
		out      string
		ticks    int
		parallel int
	)
	cmd := &cobra.Command{
		Use:   "dump ROM...",
		Short: "Write one snapshot per tick to <out>/<rom>/save.state",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			boot, err := mf.boot()
			if err != nil {
				return err
			}
			opts := mf.options()
			if opts.Logger == nil {
				opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
			}
			jobs := make([]golden.Job, len(args))
			for i, p := range args {
				jobs[i] = golden.Job{ROMPath: p, Boot: boot}
			}
			return golden.DumpAll(context.Background(), jobs, out, opts, ticks, parallel)
		},
	}
	mf.register(cmd)
	cmd.Flags().StringVar(&out, "out", "generated", "output directory")
	cmd.Flags().IntVar(&ticks, "ticks", golden.DefaultTicks, "ticks (frames) to run per ROM")
	cmd.Flags().IntVar(&parallel, "parallel", runtime.NumCPU(), "ROMs to run at once")
	return cmd
}

func inspectCmd() *cobra.Command {
	var (
		frame int
		size  int
		rom   string
	)
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the registers and latches of one snapshot in a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if size == 0 {
				if rom == "" {
					size = snapshot.OffCartRAM
				} else {
					data, err := os.ReadFile(rom)
					if err != nil {
						return errors.Wrap(err, "read ROM")
					}
					if size, err = golden.SnapshotSize(data, emu.Options{SkipChecksum: true}); err != nil {
						return err
					}
				}
			}
			f, err := os.Open(args[0])
			if err != nil {
				return errors.Wrap(err, "open stream")
			}
			defer f.Close()
			if _, err := f.Seek(int64(frame)*int64(size), io.SeekStart); err != nil {
				return errors.Wrap(err, "seek")
			}
			data, err := golden.NewReader(f, size).Next()
			if err == io.EOF {
				return errors.Errorf("frame %d is past the end of %s", frame, args[0])
			}
			if err != nil {
				return err
			}
			v, err := snapshot.NewView(data)
			if err != nil {
				return err
			}
			fmt.Printf("frame %d\n", frame)
			return v.Print(os.Stdout)
		},
	}
	cmd.Flags().IntVar(&frame, "frame", 0, "snapshot index")
	cmd.Flags().IntVar(&size, "size", 0, "snapshot size in bytes (default: derived from --rom, or a cart without RAM)")
	cmd.Flags().StringVar(&rom, "rom", "", "ROM the stream was made from, used to derive the snapshot size")
	return cmd
}

func verifyCmd() *cobra.Command {
	var (
		mf    machineFlags
		ticks int
	)
	cmd := &cobra.Command{
		Use:   "verify ROM GOLDEN",
		Short: "Regenerate a stream in memory and report the first difference from GOLDEN",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rom, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read ROM")
			}
			boot, err := mf.boot()
			if err != nil {
				return err
			}
			want, err := os.Open(args[1])
			if err != nil {
				return errors.Wrap(err, "open golden stream")
			}
			defer want.Close()
			if ticks == 0 {
				st, err := want.Stat()
				if err != nil {
					return errors.Wrap(err, "stat golden stream")
				}
				size, err := golden.SnapshotSize(rom, mf.options())
				if err != nil {
					return err
				}
				ticks = int(st.Size() / int64(size))
			}
			got, size, err := golden.Generate(rom, boot, mf.options(), ticks)
			if err != nil {
				return err
			}
			mm, err := golden.Compare(want, bytes.NewReader(got), size)
			if err != nil {
				return err
			}
			if mm != nil {
				fmt.Println(mm.Error())
				return exitCode(1)
			}
			fmt.Printf("%s: %d snapshots match\n", args[1], ticks)
			return nil
		},
	}
	mf.register(cmd)
	cmd.Flags().IntVar(&ticks, "ticks", 0, "ticks to regenerate (default: as many as GOLDEN holds)")
	return cmd
}
