package mixer

import (
	"sync/atomic"
	"time"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// ramp is an immutable linear interpolation from one gain to another.
// Immutability is what lets the render path read it without locks: a
// new target installs a new ramp, it never edits a live one.
type ramp struct {
	from  float32
	to    float32
	start time.Time
	dur   time.Duration
}

// valueAt returns the interpolated gain at t. Before start it returns
// from, after start+dur it returns to, and a zero duration is an
// immediate jump to the target.
func (r *ramp) valueAt(t time.Time) float32 {
	if r.dur <= 0 {
		return r.to
	}
	elapsed := t.Sub(r.start)
	if elapsed <= 0 {
		return r.from
	}
	if elapsed >= r.dur {
		return r.to
	}
	frac := float32(elapsed) / float32(r.dur)
	return r.from + (r.to-r.from)*frac
}

// GainControl is a gain value in [0, 1] that moves toward its target
// along a linear ramp. Reads are lock-free and safe from any goroutine,
// which is what the render path relies on; writers must be externally
// serialized (the mixer serializes them on its control path).
type GainControl struct {
	cur atomic.Pointer[ramp]
}

// NewGainControl returns a control resting at the clamped initial gain.
func NewGainControl(initial float32) *GainControl {
	g := &GainControl{}
	v := audio.Clamp01(initial)
	g.cur.Store(&ramp{from: v, to: v})
	return g
}

// Set starts a ramp from the value the control holds at now toward the
// clamped target. Superseding an unfinished ramp anchors the new one at
// the current interpolated value, so the gain never jumps. A zero dur
// applies the target immediately.
func (g *GainControl) Set(target float32, dur time.Duration, now time.Time) {
	target = audio.Clamp01(target)
	prev := g.cur.Load()
	g.cur.Store(&ramp{from: prev.valueAt(now), to: target, start: now, dur: dur})
}

// ValueAt returns the gain at t.
func (g *GainControl) ValueAt(t time.Time) float32 {
	return g.cur.Load().valueAt(t)
}

// Value returns the gain at the current time.
func (g *GainControl) Value() float32 {
	return g.ValueAt(time.Now())
}

// Target returns the gain the control is moving toward.
func (g *GainControl) Target() float32 {
	return g.cur.Load().to
}
