package mixer

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// DuckingController arbitrates attenuation of low-priority program
// material while high-priority channels are active. Each triggering
// channel holds at most one trigger; while any trigger is held the
// effective attenuation is the minimum level among all of them, so the
// most aggressive preset always wins and an emergency trigger (level 0)
// can never be overridden by a softer concurrent one.
//
// Trigger starts ramp down over the starting preset's attack; trigger
// ends ramp toward the remaining minimum (or full volume) over the
// ended preset's release.
type DuckingController interface {
	// TriggerHighPriorityStart activates ducking on behalf of the given
	// high-priority channel. A repeated start replaces the channel's
	// preset in place.
	TriggerHighPriorityStart(ch Channel, preset DuckingPreset)

	// TriggerHighPriorityEnd releases the channel's trigger. Ending a
	// channel with no active trigger is a no-op.
	TriggerHighPriorityEnd(ch Channel)

	// MultiplierAt returns the low-priority attenuation at t, including
	// any attack or release ramp in progress.
	MultiplierAt(t time.Time) float32

	// State snapshots the controller.
	State() DuckingState

	// Active reports whether any trigger is held.
	Active() bool

	// SetCustomLevel adjusts the level of the custom preset for future
	// triggers. Triggers already holding the old level are unaffected.
	SetCustomLevel(level float32)

	// CustomPreset returns the custom preset with its current level.
	CustomPreset() DuckingPreset
}

type duckingController struct {
	logger *zap.Logger
	notify func(Event)

	mu       sync.Mutex
	triggers map[Channel]DuckingPreset
	custom   DuckingPreset
	mult     *GainControl
}

// NewDuckingController returns an idle controller. custom seeds the
// adjustable preset; notify, if non-nil, receives a
// DuckingStateChangedEvent whenever ducking engages or fully releases,
// synchronously and outside the controller lock.
func NewDuckingController(logger *zap.Logger, custom DuckingPreset, notify func(Event)) DuckingController {
	if notify == nil {
		notify = func(Event) {}
	}
	custom.Name = PresetCustom.Name
	custom.Level = audio.Clamp01(custom.Level)
	return &duckingController{
		logger:   logger,
		notify:   notify,
		triggers: make(map[Channel]DuckingPreset),
		custom:   custom,
		mult:     NewGainControl(1),
	}
}

// effectiveLevel is the minimum level among held triggers. Callers must
// hold d.mu and guarantee at least one trigger.
func (d *duckingController) effectiveLevel() float32 {
	level := float32(1)
	for _, p := range d.triggers {
		if p.Level < level {
			level = p.Level
		}
	}
	return level
}

func (d *duckingController) TriggerHighPriorityStart(ch Channel, preset DuckingPreset) {
	if !ch.HighPriority() {
		d.logger.Warn("Ignoring ducking trigger from low-priority channel", zap.Stringer("channel", ch))
		return
	}

	d.mu.Lock()
	_, held := d.triggers[ch]
	d.triggers[ch] = preset
	engaged := !held && len(d.triggers) == 1
	target := d.effectiveLevel()
	now := time.Now()
	if d.mult.Target() != target {
		d.mult.Set(target, preset.Attack, now)
	}
	d.mu.Unlock()

	d.logger.Info("Ducking trigger started",
		zap.Stringer("channel", ch),
		zap.String("preset", preset.Name),
		zap.Float32("target", target))
	if engaged {
		d.notify(DuckingStateChangedEvent{Active: true, Channel: ch, Preset: preset, Multiplier: target})
	}
}

func (d *duckingController) TriggerHighPriorityEnd(ch Channel) {
	d.mu.Lock()
	preset, held := d.triggers[ch]
	if !held {
		d.mu.Unlock()
		d.logger.Debug("Ignoring ducking release with no active trigger", zap.Stringer("channel", ch))
		return
	}
	delete(d.triggers, ch)
	released := len(d.triggers) == 0
	target := float32(1)
	if !released {
		target = d.effectiveLevel()
	}
	now := time.Now()
	if d.mult.Target() != target {
		d.mult.Set(target, preset.Release, now)
	}
	d.mu.Unlock()

	d.logger.Info("Ducking trigger ended",
		zap.Stringer("channel", ch),
		zap.String("preset", preset.Name),
		zap.Float32("target", target))
	if released {
		d.notify(DuckingStateChangedEvent{Active: false, Channel: ch, Preset: preset, Multiplier: target})
	}
}

func (d *duckingController) MultiplierAt(t time.Time) float32 {
	return d.mult.ValueAt(t)
}

func (d *duckingController) State() DuckingState {
	d.mu.Lock()
	defer d.mu.Unlock()

	triggers := make(map[Channel]DuckingPreset, len(d.triggers))
	for ch, p := range d.triggers {
		triggers[ch] = p
	}
	return DuckingState{
		Active:     len(d.triggers) > 0,
		Multiplier: d.mult.Value(),
		Triggers:   triggers,
	}
}

func (d *duckingController) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.triggers) > 0
}

func (d *duckingController) SetCustomLevel(level float32) {
	d.mu.Lock()
	d.custom.Level = audio.Clamp01(level)
	d.mu.Unlock()
	d.logger.Info("Custom duck level updated", zap.Float32("level", level))
}

func (d *duckingController) CustomPreset() DuckingPreset {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.custom
}
