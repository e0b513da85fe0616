package golden

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/emu"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/snapshot"
	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/testrom"
)

func TestGenerate_OneSnapshotPerTick(t *testing.T) {
	data, size, err := Generate(testrom.Counter(), nil, emu.Options{}, 5)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(data) != 5*size {
		t.Fatalf("stream length %d want %d", len(data), 5*size)
	}
	r := NewReader(bytes.NewReader(data), size)
	first, err := r.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	v, err := snapshot.NewView(first)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if v.PC() != 0x0100 {
		t.Fatalf("first snapshot PC got %04X want 0100", v.PC())
	}
	frames := 1
	for {
		if _, err := r.Next(); err == io.EOF {
			break
		} else if err != nil {
			t.Fatalf("Next: %v", err)
		}
		frames++
	}
	if frames != 5 {
		t.Fatalf("read %d frames want 5", frames)
	}
}

func TestReader_Truncated(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 15)), 10)
	if _, err := r.Next(); err != nil {
		t.Fatalf("first frame: %v", err)
	}
	if _, err := r.Next(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("got %v want ErrTruncated", err)
	}
}

func TestWriter_RejectsWrongSize(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, 8)
	if _, err := w.Write(make([]byte, 7)); err == nil {
		t.Fatalf("short snapshot accepted")
	}
	if _, err := w.Write(make([]byte, 8)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil || buf.Len() != 8 || w.Frames() != 1 {
		t.Fatalf("Close %v len %d frames %d", err, buf.Len(), w.Frames())
	}
}

func TestCompare(t *testing.T) {
	rom := testrom.Counter()
	a, size, err := Generate(rom, nil, emu.Options{}, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, _, err := Generate(rom, nil, emu.Options{}, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if mm, err := Compare(bytes.NewReader(a), bytes.NewReader(b), size); err != nil || mm != nil {
		t.Fatalf("identical streams: %v %v", mm, err)
	}

	c := append([]byte(nil), b...)
	c[2*size+snapshot.OffPC] ^= 1
	mm, err := Compare(bytes.NewReader(a), bytes.NewReader(c), size)
	if err != nil || mm == nil {
		t.Fatalf("expected a mismatch, got %v %v", mm, err)
	}
	if mm.Frame != 2 || mm.Field != "PC" || mm.Offset != snapshot.OffPC {
		t.Fatalf("mismatch %+v", mm)
	}

	mm, err = Compare(bytes.NewReader(a), bytes.NewReader(b[:3*size]), size)
	if err != nil || mm == nil || mm.Offset != -1 || mm.Frame != 3 {
		t.Fatalf("short stream mismatch %+v %v", mm, err)
	}
}

func TestDumpAll_WritesEveryROM(t *testing.T) {
	dir := t.TempDir()
	roms := map[string][]byte{
		"counter.gb":   testrom.Counter(),
		"serial.gb":    testrom.Serial("Passed"),
		"signature.gb": testrom.Signature(true),
	}
	var jobs []Job
	for name, data := range roms {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatalf("write ROM: %v", err)
		}
		jobs = append(jobs, Job{ROMPath: p})
	}
	out := filepath.Join(dir, "generated")
	if err := DumpAll(context.Background(), jobs, out, emu.Options{}, 3, 2); err != nil {
		t.Fatalf("DumpAll: %v", err)
	}
	for name, data := range roms {
		got, err := os.ReadFile(Path(out, name))
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		want, _, err := Generate(data, nil, emu.Options{}, 3)
		if err != nil {
			t.Fatalf("Generate: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("%s: parallel dump differs from a sequential run", name)
		}
	}
}

func TestDumpAll_ReportsBadROM(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "short.gb")
	if err := os.WriteFile(p, make([]byte, 64), 0o644); err != nil {
		t.Fatalf("write ROM: %v", err)
	}
	err := DumpAll(context.Background(), []Job{{ROMPath: p}}, dir, emu.Options{}, 1, 1)
	if !errors.Is(err, emu.ErrInvalidROMFormat) {
		t.Fatalf("got %v want ErrInvalidROMFormat", err)
	}
}
