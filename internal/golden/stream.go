// Package golden reads, writes and compares golden state streams: one
// fixed-size snapshot per tick, concatenated with no framing.
package golden

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/FabianRolfMatthiasNoll/gbgolden/internal/snapshot"
)

// ErrTruncated is returned when a stream ends inside a snapshot.
var ErrTruncated = errors.New("golden: truncated stream")

// Writer appends snapshots of one fixed size. It is the sink handed to
// emu.Machine.Tick.
type Writer struct {
	bw     *bufio.Writer
	closer io.Closer
	size   int
	frames int
}

func NewWriter(w io.Writer, size int) *Writer {
	return &Writer{bw: bufio.NewWriter(w), size: size}
}

// Create makes path (and its parent directories) and returns a Writer on it.
func Create(path string, size int) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create golden file")
	}
	w := NewWriter(f, size)
	w.closer = f
	return w, nil
}

// Write takes exactly one snapshot per call.
func (w *Writer) Write(p []byte) (int, error) {
	if len(p) != w.size {
		return 0, errors.Errorf("golden: snapshot of %d bytes, stream uses %d", len(p), w.size)
	}
	n, err := w.bw.Write(p)
	if err != nil {
		return n, errors.Wrap(err, "write golden frame")
	}
	w.frames++
	return n, nil
}

// Frames is the number of snapshots written so far.
func (w *Writer) Frames() int { return w.frames }

// Close flushes and, for writers from Create, closes the file.
func (w *Writer) Close() error {
	err := w.bw.Flush()
	if w.closer != nil {
		if cerr := w.closer.Close(); err == nil {
			err = cerr
		}
	}
	return errors.Wrap(err, "close golden stream")
}

// Reader iterates the snapshots of a stream.
type Reader struct {
	r     *bufio.Reader
	size  int
	frame int
}

func NewReader(r io.Reader, size int) *Reader {
	return &Reader{r: bufio.NewReader(r), size: size}
}

// Next returns the next snapshot, io.EOF after the last one, or ErrTruncated.
// The returned slice is freshly allocated.
func (r *Reader) Next() ([]byte, error) {
	buf := make([]byte, r.size)
	_, err := io.ReadFull(r.r, buf)
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case err == io.ErrUnexpectedEOF:
		return nil, errors.Wrapf(ErrTruncated, "frame %d", r.frame)
	case err != nil:
		return nil, errors.Wrap(err, "read golden frame")
	}
	r.frame++
	return buf, nil
}

// Frame returns the index of the next snapshot Next will return.
func (r *Reader) Frame() int { return r.frame }

// Mismatch locates the first difference between two streams.
type Mismatch struct {
	Frame  int
	Offset int    // byte offset within the snapshot, -1 when one stream is shorter
	Field  string // snapshot.FieldAt(Offset)
	Want   byte
	Got    byte
}

func (m *Mismatch) Error() string {
	if m.Offset < 0 {
		return fmt.Sprintf("stream length differs at frame %d", m.Frame)
	}
	return fmt.Sprintf("frame %d %s: want %02X got %02X", m.Frame, m.Field, m.Want, m.Got)
}

// Compare reads want and got in lockstep and returns the first mismatch, or
// nil when they are identical.
func Compare(want, got io.Reader, size int) (*Mismatch, error) {
	rw, rg := NewReader(want, size), NewReader(got, size)
	for {
		a, errA := rw.Next()
		b, errB := rg.Next()
		if errA == io.EOF && errB == io.EOF {
			return nil, nil
		}
		if errA == io.EOF {
			return &Mismatch{Frame: rw.Frame(), Offset: -1, Field: "length"}, nil
		}
		if errB == io.EOF {
			return &Mismatch{Frame: rg.Frame(), Offset: -1, Field: "length"}, nil
		}
		if errA != nil {
			return nil, errA
		}
		if errB != nil {
			return nil, errB
		}
		if bytes.Equal(a, b) {
			continue
		}
		for i := range a {
			if a[i] != b[i] {
				return &Mismatch{Frame: rw.Frame() - 1, Offset: i, Field: snapshot.FieldAt(i), Want: a[i], Got: b[i]}, nil
			}
		}
	}
}
