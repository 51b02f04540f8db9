package mixer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
)

func TestGainControlImmediate(t *testing.T) {
	g := mixer.NewGainControl(1)
	now := time.Now()

	g.Set(0.3, 0, now)

	assert.InDelta(t, 0.3, g.ValueAt(now), 1e-6)
	assert.InDelta(t, 0.3, g.ValueAt(now.Add(-time.Hour)), 1e-6, "zero duration ignores time")
	assert.InDelta(t, 0.3, g.Target(), 1e-6)
}

func TestGainControlLinearRamp(t *testing.T) {
	g := mixer.NewGainControl(0.2)
	start := time.Now()
	g.Set(0.8, time.Second, start)

	assert.InDelta(t, 0.2, g.ValueAt(start), 1e-6)
	assert.InDelta(t, 0.5, g.ValueAt(start.Add(500*time.Millisecond)), 1e-6, "midpoint is the average of endpoints")
	assert.InDelta(t, 0.65, g.ValueAt(start.Add(750*time.Millisecond)), 1e-6)
	assert.InDelta(t, 0.8, g.ValueAt(start.Add(time.Second)), 1e-6)
	assert.InDelta(t, 0.8, g.ValueAt(start.Add(time.Hour)), 1e-6, "value holds after the ramp completes")
}

func TestGainControlBeforeStart(t *testing.T) {
	g := mixer.NewGainControl(0.4)
	start := time.Now()
	g.Set(1, time.Second, start)

	assert.InDelta(t, 0.4, g.ValueAt(start.Add(-time.Minute)), 1e-6)
}

func TestGainControlSupersedeKeepsContinuity(t *testing.T) {
	g := mixer.NewGainControl(0)
	start := time.Now()
	g.Set(1, time.Second, start)

	// Halfway up, redirect toward zero. The new ramp must depart from
	// the interpolated 0.5, not from either endpoint.
	mid := start.Add(500 * time.Millisecond)
	g.Set(0, time.Second, mid)

	assert.InDelta(t, 0.5, g.ValueAt(mid), 1e-6)
	assert.InDelta(t, 0.25, g.ValueAt(mid.Add(500*time.Millisecond)), 1e-6)
	assert.InDelta(t, 0, g.ValueAt(mid.Add(time.Second)), 1e-6)
}

func TestGainControlClampsTargets(t *testing.T) {
	g := mixer.NewGainControl(2)
	now := time.Now()
	assert.InDelta(t, 1, g.ValueAt(now), 1e-6, "initial value is clamped")

	g.Set(-3, 0, now)
	assert.InDelta(t, 0, g.ValueAt(now), 1e-6, "targets are clamped, not rejected")

	g.Set(1.7, 0, now)
	assert.InDelta(t, 1, g.ValueAt(now), 1e-6)
}
