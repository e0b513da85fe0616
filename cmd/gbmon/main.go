package main

import (
	"log"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/ui"
)

func mustRead(path string) []byte {
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read %s: %v", path, err)
	}
	return b
}

func main() {
	var (
		bootROM    string
		scale      int
		title      string
		speed      float64
		stateDir   string
		completion string
		video      bool
		audio      bool
		tracePath  string
	)
	rootCmd := &cobra.Command{
		Use:          "gbmon ROM",
		Short:        "Run a ROM in a window showing live CPU and IO state",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			rom := mustRead(args[0])
			boot := mustRead(bootROM)
			comp, err := emu.ParseCompletion(completion)
			if err != nil {
				return err
			}
			m, err := emu.New(rom, boot, emu.Options{
				Video:      video,
				Audio:      audio,
				Completion: comp,
				TracePath:  tracePath,
				Logger:     log.New(os.Stderr, "", log.LstdFlags),
			})
			if err != nil {
				return errors.Wrap(err, "load ROM")
			}
			defer m.Stop()

			app := ui.NewApp(ui.Config{
				Title:    title,
				Scale:    scale,
				Speed:    speed,
				StateDir: stateDir,
				ROMPath:  args[0],
			}, m)
			return app.Run()
		},
	}
	rootCmd.Flags().StringVar(&bootROM, "bootrom", "", "optional DMG boot ROM")
	rootCmd.Flags().IntVar(&scale, "scale", 2, "window scale")
	rootCmd.Flags().StringVar(&title, "title", "gbmon", "window title")
	rootCmd.Flags().Float64Var(&speed, "speed", 1, "emulation speed (1 = real time, 0 = as fast as possible)")
	rootCmd.Flags().StringVar(&stateDir, "states", "states", "directory for save state slots")
	rootCmd.Flags().StringVar(&completion, "completion", "auto", "completion convention shown in the status line")
	rootCmd.Flags().BoolVar(&video, "video", true, "enable LCD timing")
	rootCmd.Flags().BoolVar(&audio, "audio", true, "enable the sound register file")
	rootCmd.Flags().StringVar(&tracePath, "trace", "", "write an instruction trace to this file")

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
