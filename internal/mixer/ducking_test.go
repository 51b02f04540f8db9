package mixer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
)

func newDuckingController(events *[]mixer.DuckingStateChangedEvent) mixer.DuckingController {
	notify := func(e mixer.Event) {
		if ev, ok := e.(mixer.DuckingStateChangedEvent); ok && events != nil {
			*events = append(*events, ev)
		}
	}
	return mixer.NewDuckingController(zap.NewNop(), mixer.PresetCustom, notify)
}

func TestDuckingIdle(t *testing.T) {
	d := newDuckingController(nil)

	assert.False(t, d.Active())
	assert.InDelta(t, 1, d.MultiplierAt(time.Now()), 1e-6)
	assert.Empty(t, d.State().Triggers)
}

func TestDuckingAttackAndRelease(t *testing.T) {
	d := newDuckingController(nil)

	started := time.Now()
	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode)

	assert.True(t, d.Active())
	// The attack completes within the preset's 50ms.
	assert.InDelta(t, 0.2, d.MultiplierAt(started.Add(50*time.Millisecond)), 1e-3)

	ended := time.Now()
	d.TriggerHighPriorityEnd(mixer.ChannelVoice)

	// Ducking deactivates immediately even though the release ramp is
	// still running.
	assert.False(t, d.Active())
	assert.Less(t, d.MultiplierAt(time.Now()), float32(1))
	// Recovery completes within the preset's 2000ms.
	assert.InDelta(t, 1, d.MultiplierAt(ended.Add(2100*time.Millisecond)), 1e-3)
}

func TestDuckingMinimumLevelWins(t *testing.T) {
	d := newDuckingController(nil)

	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode)
	d.TriggerHighPriorityStart(mixer.ChannelAlert, mixer.PresetEmergency)

	// Emergency has a zero attack, so the multiplier is pinned at zero
	// no matter where the DJ attack ramp was.
	assert.InDelta(t, 0, d.MultiplierAt(time.Now()), 1e-6)

	// A softer trigger joining does not lift the emergency floor.
	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetBackground)
	assert.InDelta(t, 0, d.MultiplierAt(time.Now()), 1e-6)

	state := d.State()
	assert.True(t, state.Active)
	assert.Len(t, state.Triggers, 2)
}

func TestDuckingReleaseFollowsLastEndedTrigger(t *testing.T) {
	d := newDuckingController(nil)

	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode)
	d.TriggerHighPriorityStart(mixer.ChannelAlert, mixer.PresetEmergency)
	require.InDelta(t, 0, d.MultiplierAt(time.Now()), 1e-6)

	// The emergency ends first: recovery goes to the DJ floor on the
	// emergency's 500ms release.
	alertEnded := time.Now()
	d.TriggerHighPriorityEnd(mixer.ChannelAlert)
	assert.True(t, d.Active(), "DJ trigger still held")
	assert.InDelta(t, 0.2, d.MultiplierAt(alertEnded.Add(600*time.Millisecond)), 1e-3)

	// The DJ trigger ends last: full recovery on its 2000ms release.
	voiceEnded := time.Now()
	d.TriggerHighPriorityEnd(mixer.ChannelVoice)
	assert.False(t, d.Active())
	assert.InDelta(t, 1, d.MultiplierAt(voiceEnded.Add(2100*time.Millisecond)), 1e-3)
}

func TestDuckingRetriggerReplacesPreset(t *testing.T) {
	d := newDuckingController(nil)

	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode)
	started := time.Now()
	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetMusic)

	state := d.State()
	assert.Len(t, state.Triggers, 1)
	assert.Equal(t, mixer.PresetMusic.Name, state.Triggers[mixer.ChannelVoice].Name)
	assert.InDelta(t, 0.5, d.MultiplierAt(started.Add(mixer.PresetMusic.Attack+50*time.Millisecond)), 1e-3)
}

func TestDuckingIgnoresLowPriorityChannel(t *testing.T) {
	var events []mixer.DuckingStateChangedEvent
	d := newDuckingController(&events)

	d.TriggerHighPriorityStart(mixer.ChannelMain, mixer.PresetDJMode)

	assert.False(t, d.Active())
	assert.InDelta(t, 1, d.MultiplierAt(time.Now()), 1e-6)
	assert.Empty(t, events)
}

func TestDuckingEndWithoutTriggerIsNoop(t *testing.T) {
	var events []mixer.DuckingStateChangedEvent
	d := newDuckingController(&events)

	d.TriggerHighPriorityEnd(mixer.ChannelVoice)

	assert.False(t, d.Active())
	assert.Empty(t, events)
}

func TestDuckingStateChangeEvents(t *testing.T) {
	var events []mixer.DuckingStateChangedEvent
	d := newDuckingController(&events)

	d.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode)
	d.TriggerHighPriorityStart(mixer.ChannelAlert, mixer.PresetEmergency)
	d.TriggerHighPriorityEnd(mixer.ChannelAlert)
	d.TriggerHighPriorityEnd(mixer.ChannelVoice)

	// Only the engage and the final release flip the state.
	require.Len(t, events, 2)
	assert.True(t, events[0].Active)
	assert.Equal(t, mixer.ChannelVoice, events[0].Channel)
	assert.InDelta(t, 0.2, events[0].Multiplier, 1e-6)
	assert.False(t, events[1].Active)
	assert.Equal(t, mixer.ChannelVoice, events[1].Channel)
	assert.InDelta(t, 1, events[1].Multiplier, 1e-6)
}

func TestDuckingCustomLevelNotRetroactive(t *testing.T) {
	d := newDuckingController(nil)

	custom := d.CustomPreset()
	d.TriggerHighPriorityStart(mixer.ChannelVoice, custom)
	d.SetCustomLevel(0.9)

	assert.InDelta(t, custom.Level, d.State().Triggers[mixer.ChannelVoice].Level, 1e-6,
		"active trigger keeps the level it engaged with")
	assert.InDelta(t, 0.9, d.CustomPreset().Level, 1e-6)
}

func TestDuckingCustomLevelClamped(t *testing.T) {
	d := newDuckingController(nil)

	d.SetCustomLevel(1.5)
	assert.InDelta(t, 1, d.CustomPreset().Level, 1e-6)

	d.SetCustomLevel(-0.5)
	assert.InDelta(t, 0, d.CustomPreset().Level, 1e-6)
}
