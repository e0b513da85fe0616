package golden

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
)

// DefaultTicks matches the length of the reference dumps.
const DefaultTicks = 100

// FileName is the stream file inside a ROM's output directory.
const FileName = "save.state"

// Path returns <outDir>/<rom file name>/save.state.
func Path(outDir, romPath string) string {
	return filepath.Join(outDir, filepath.Base(romPath), FileName)
}

// Dump runs a fresh machine for ticks ticks, handing w to every Tick so that
// one snapshot per tick lands in the stream. It returns the number of
// snapshots written. The machine is stopped before returning.
func Dump(rom, boot []byte, opts emu.Options, ticks int, w *Writer) (int, error) {
	m, err := emu.New(rom, boot, opts)
	if err != nil {
		return 0, err
	}
	for i := 0; i < ticks; i++ {
		if _, err := m.Tick(w); err != nil {
			m.Stop()
			return w.Frames(), errors.Wrapf(err, "tick %d", i)
		}
	}
	return w.Frames(), m.Stop()
}

// Generate produces a complete stream in memory.
func Generate(rom, boot []byte, opts emu.Options, ticks int) ([]byte, int, error) {
	size, err := SnapshotSize(rom, opts)
	if err != nil {
		return nil, 0, err
	}
	var buf bytes.Buffer
	w := NewWriter(&buf, size)
	if _, err := Dump(rom, boot, opts, ticks, w); err != nil {
		return nil, size, err
	}
	if err := w.Close(); err != nil {
		return nil, size, err
	}
	return buf.Bytes(), size, nil
}

// SnapshotSize reports the snapshot length machines for rom produce.
func SnapshotSize(rom []byte, opts emu.Options) (int, error) {
	m, err := emu.New(rom, nil, emu.Options{SkipChecksum: opts.SkipChecksum})
	if err != nil {
		return 0, err
	}
	defer m.Stop()
	return m.SnapshotSize(), nil
}

// Job is one ROM to dump.
type Job struct {
	ROMPath string
	Boot    []byte
}

// DumpAll writes the stream of every job to Path(outDir, job.ROMPath),
// running up to parallel machines at once. The first failure cancels the
// jobs that have not started. Per-machine writers (trace, serial copy) are
// dropped from opts since machines run concurrently.
func DumpAll(ctx context.Context, jobs []Job, outDir string, opts emu.Options, ticks, parallel int) error {
	opts.Defaults()
	opts.Trace, opts.TracePath, opts.Serial = nil, "", nil
	g, ctx := errgroup.WithContext(ctx)
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for _, job := range jobs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return dumpFile(job, outDir, opts, ticks)
		})
	}
	return g.Wait()
}

func dumpFile(job Job, outDir string, opts emu.Options, ticks int) error {
	rom, err := os.ReadFile(job.ROMPath)
	if err != nil {
		return errors.Wrap(err, "read ROM")
	}
	size, err := SnapshotSize(rom, opts)
	if err != nil {
		return errors.Wrap(err, job.ROMPath)
	}
	out := Path(outDir, job.ROMPath)
	w, err := Create(out, size)
	if err != nil {
		return err
	}
	n, err := Dump(rom, job.Boot, opts, ticks, w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return errors.Wrap(err, job.ROMPath)
	}
	opts.Logger.Printf("%s: %d snapshots of %d bytes -> %s", filepath.Base(job.ROMPath), n, size, out)
	return nil
}
