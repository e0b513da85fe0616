package emu

import (
	"time"

	"github.com/pkg/errors"
)

// FrameCycles is one LCD frame: 154 lines of 456 dots.
const FrameCycles = 70224

// FrameRate is the DMG refresh rate, 4194304 Hz / FrameCycles.
const FrameRate = 4194304.0 / FrameCycles

// ErrBadSpeed is returned for negative speed multipliers.
var ErrBadSpeed = errors.New("speed must be >= 0")

// pacer sleeps between ticks so they run at FrameRate*speed. A speed of 0
// disables pacing.
type pacer struct {
	speed float64
	next  time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

func newPacer(speed float64) *pacer {
	return &pacer{speed: speed, now: time.Now, sleep: time.Sleep}
}

func (p *pacer) period() time.Duration {
	return time.Duration(float64(time.Second) / (FrameRate * p.speed))
}

func (p *pacer) setSpeed(speed float64) error {
	if speed < 0 {
		return errors.Wrapf(ErrBadSpeed, "got %g", speed)
	}
	p.speed = speed
	p.next = time.Time{}
	return nil
}

// wait blocks until the next tick is due. A caller that falls more than one
// frame behind is resynchronized instead of catching up in a burst.
func (p *pacer) wait() {
	if p.speed == 0 {
		return
	}
	period := p.period()
	now := p.now()
	if p.next.IsZero() || now.Sub(p.next) > period {
		p.next = now.Add(period)
		return
	}
	if d := p.next.Sub(now); d > 0 {
		p.sleep(d)
	}
	p.next = p.next.Add(period)
}

// SetSpeed changes the pacing multiplier: 0 runs unthrottled, 1 runs at
// real-time speed, 2 twice as fast. Negative values are rejected.
func (m *Machine) SetSpeed(multiplier float64) error {
	if m.stopped {
		return ErrStopped
	}
	return m.pacer.setSpeed(multiplier)
}

// Speed returns the current pacing multiplier.
func (m *Machine) Speed() float64 { return m.pacer.speed }
