package mixer_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/config"
	"github.com/Raikerian/go-audio-mixer/internal/mixer"
	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// fakeSource produces a constant sample value. A non-negative remaining
// budget makes it finite: once drained it reports readErr if set, or
// io.EOF.
type fakeSource struct {
	id      string
	value   float32
	initErr error
	readErr error

	mu        sync.Mutex
	remaining int
	inits     int
	closes    int
}

func newFakeSource(id string, value float32) *fakeSource {
	return &fakeSource{id: id, value: value, remaining: -1}
}

func (f *fakeSource) ID() string { return f.id }

func (f *fakeSource) Initialize(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits++
	return f.initErr
}

func (f *fakeSource) ReadPCM(dst []float32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.remaining == 0 {
		if f.readErr != nil {
			return 0, f.readErr
		}
		return 0, io.EOF
	}
	n := len(dst)
	if f.remaining > 0 && f.remaining < n {
		n = f.remaining
	}
	for i := 0; i < n; i++ {
		dst[i] = f.value
	}
	if f.remaining > 0 {
		f.remaining -= n
	}
	return n, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// taggedSource adds caller-visible metadata to a fakeSource.
type taggedSource struct {
	*fakeSource
	tags map[string]string
}

func (s *taggedSource) Metadata() map[string]string { return s.tags }

// fakeOpener records the frame source the mixer hands to its output so
// tests can pull frames directly.
type fakeOpener struct {
	mu     sync.Mutex
	err    error
	source mixer.FrameSource
	device string
	opens  int
	stops  int
}

func (o *fakeOpener) OpenOutput(_ context.Context, deviceID string, src mixer.FrameSource) (mixer.Output, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return nil, o.err
	}
	o.opens++
	o.device = deviceID
	o.source = src
	return &fakeOutput{opener: o, name: deviceID}, nil
}

func (o *fakeOpener) stopCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stops
}

type fakeOutput struct {
	opener *fakeOpener
	name   string
}

func (o *fakeOutput) Name() string { return o.name }

func (o *fakeOutput) Stop(context.Context) error {
	o.opener.mu.Lock()
	defer o.opener.mu.Unlock()
	o.opener.stops++
	return nil
}

// eventRecorder collects events across goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []mixer.Event
}

func (r *eventRecorder) record(e mixer.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) snapshot() []mixer.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]mixer.Event, len(r.events))
	copy(out, r.events)
	return out
}

func newTestService(t *testing.T) (mixer.Service, *fakeOpener) {
	t.Helper()
	opener := &fakeOpener{}
	svc := mixer.NewService(zap.NewNop(), &config.Config{}, opener)
	require.NoError(t, svc.Initialize(context.Background(), "fake-device"))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
	return svc, opener
}

func startPlaying(t *testing.T, svc mixer.Service, src mixer.Source, ch mixer.Channel) *mixer.SourceHandle {
	t.Helper()
	h, err := svc.AddSource(src, ch)
	require.NoError(t, err)
	require.NoError(t, h.Initialize(context.Background()))
	require.NoError(t, h.Start())
	return h
}

func readFrame(t *testing.T, o *fakeOpener) []float32 {
	t.Helper()
	buf := make([]float32, audio.FrameLen)
	n, err := o.source.ReadFrame(buf)
	require.NoError(t, err)
	require.Equal(t, audio.FrameLen, n)
	return buf
}

func TestServiceRequiresInitialize(t *testing.T) {
	svc := mixer.NewService(zap.NewNop(), &config.Config{}, &fakeOpener{})

	_, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	assert.ErrorIs(t, err, mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.RemoveSource("a"), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.MoveSourceToChannel("a", mixer.ChannelVoice), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.SetMasterVolume(0.5, 0), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.SetChannelVolume(mixer.ChannelMain, 0.5, 0), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.SetSourceVolume("a", 0.5, 0), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.TriggerHighPriorityEnd(mixer.ChannelVoice), mixer.ErrNotInitialized)
	assert.ErrorIs(t, svc.SetDuckLevel(0.3), mixer.ErrNotInitialized)

	// Queries work before initialization.
	assert.InDelta(t, 1, svc.MasterVolume(), 1e-6)
	assert.InDelta(t, 1, svc.ChannelVolume(mixer.ChannelMain), 1e-6)
	assert.Empty(t, svc.GetAllSources())
	assert.False(t, svc.IsDuckingActive())
}

func TestServiceInitializeOnce(t *testing.T) {
	svc, opener := newTestService(t)

	assert.Equal(t, 1, opener.opens)
	assert.Equal(t, "fake-device", opener.device)
	assert.ErrorIs(t, svc.Initialize(context.Background(), "fake-device"), mixer.ErrAlreadyInitialized)
}

func TestServiceInitializeDeviceUnavailable(t *testing.T) {
	opener := &fakeOpener{err: mixer.ErrDeviceUnavailable}
	svc := mixer.NewService(zap.NewNop(), &config.Config{}, opener)

	err := svc.Initialize(context.Background(), "missing")
	require.ErrorIs(t, err, mixer.ErrDeviceUnavailable)

	// A failed initialize leaves the service retryable.
	opener.err = nil
	require.NoError(t, svc.Initialize(context.Background(), "fake-device"))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })
}

func TestServiceClose(t *testing.T) {
	svc, opener := newTestService(t)

	src := newFakeSource("a", 0.5)
	rec := &eventRecorder{}
	svc.Subscribe(rec.record)
	_, err := svc.AddSource(src, mixer.ChannelMain)
	require.NoError(t, err)

	require.NoError(t, svc.Close(context.Background()))

	assert.Equal(t, 1, opener.stopCount())
	assert.Equal(t, 1, src.closeCount())
	assert.Empty(t, svc.GetAllSources())

	_, err = opener.source.ReadFrame(make([]float32, audio.FrameLen))
	assert.ErrorIs(t, err, io.EOF, "the mixed stream ends with the mixer")

	_, err = svc.AddSource(newFakeSource("b", 1), mixer.ChannelMain)
	assert.ErrorIs(t, err, mixer.ErrMixerClosed)
	assert.ErrorIs(t, svc.SetMasterVolume(1, 0), mixer.ErrMixerClosed)

	require.NoError(t, svc.Close(context.Background()), "close is idempotent")

	var removed []mixer.SourceRemovedEvent
	for _, e := range rec.snapshot() {
		if ev, ok := e.(mixer.SourceRemovedEvent); ok {
			removed = append(removed, ev)
		}
	}
	require.Len(t, removed, 1)
	assert.Equal(t, "a", removed[0].ID)
}

func TestAddSourceDuplicateID(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddSource(newFakeSource("dup", 1), mixer.ChannelMain)
	require.NoError(t, err)

	_, err = svc.AddSource(newFakeSource("dup", 0.5), mixer.ChannelMain)
	assert.ErrorIs(t, err, mixer.ErrDuplicateSourceID)

	// Ids are unique across channels, not per channel.
	_, err = svc.AddSource(newFakeSource("dup", 0.5), mixer.ChannelVoice)
	assert.ErrorIs(t, err, mixer.ErrDuplicateSourceID)

	assert.Len(t, svc.GetAllSources(), 1, "failed add leaves the registry unchanged")
}

func TestAddThenRemoveLeavesRegistryEmpty(t *testing.T) {
	svc, _ := newTestService(t)

	src := newFakeSource("a", 1)
	_, err := svc.AddSource(src, mixer.ChannelMain)
	require.NoError(t, err)
	require.Len(t, svc.GetAllSources(), 1)

	require.NoError(t, svc.RemoveSource("a"))
	assert.Empty(t, svc.GetAllSources())
	assert.Equal(t, 1, src.closeCount())

	require.NoError(t, svc.RemoveSource("a"), "removing an unknown id is a no-op")
	assert.Equal(t, 1, src.closeCount())
}

func TestDisposeIsIdempotent(t *testing.T) {
	svc, _ := newTestService(t)

	src := newFakeSource("a", 1)
	h, err := svc.AddSource(src, mixer.ChannelMain)
	require.NoError(t, err)

	require.NoError(t, h.Dispose())
	require.NoError(t, h.Dispose())
	assert.Equal(t, 1, src.closeCount())
}

func TestMoveSourceToChannel(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)

	require.NoError(t, svc.MoveSourceToChannel("a", mixer.ChannelVoice))
	assert.Empty(t, svc.GetChannelSources(mixer.ChannelMain))
	require.Len(t, svc.GetChannelSources(mixer.ChannelVoice), 1)

	// Moving to the current channel and moving unknown ids are no-ops.
	require.NoError(t, svc.MoveSourceToChannel("a", mixer.ChannelVoice))
	require.NoError(t, svc.MoveSourceToChannel("ghost", mixer.ChannelMain))
	require.Len(t, svc.GetChannelSources(mixer.ChannelVoice), 1)

	assert.ErrorIs(t, svc.MoveSourceToChannel("a", mixer.Channel(42)), mixer.ErrUnknownChannel)
}

func TestSourceLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	rec := &eventRecorder{}
	svc.Subscribe(rec.record)

	h, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)

	status := func() mixer.SourceStatus {
		info, err := h.Info()
		require.NoError(t, err)
		return info.Status
	}

	assert.Equal(t, mixer.StatusInitializing, status())
	require.NoError(t, h.Initialize(context.Background()))
	assert.Equal(t, mixer.StatusReady, status())
	require.NoError(t, h.Start())
	assert.Equal(t, mixer.StatusPlaying, status())
	require.NoError(t, h.Pause())
	assert.Equal(t, mixer.StatusPaused, status())
	require.NoError(t, h.Resume())
	assert.Equal(t, mixer.StatusPlaying, status())
	require.NoError(t, h.Stop())
	assert.Equal(t, mixer.StatusStopped, status())

	var changes []mixer.SourceStatusChangedEvent
	for _, e := range rec.snapshot() {
		if ev, ok := e.(mixer.SourceStatusChangedEvent); ok {
			changes = append(changes, ev)
		}
	}
	require.Len(t, changes, 5, "every transition is observable")
	assert.Equal(t, mixer.StatusInitializing, changes[0].Old)
	assert.Equal(t, mixer.StatusReady, changes[0].New)
	assert.Equal(t, mixer.StatusStopped, changes[4].New)
}

func TestInvalidLifecycleOpsAreNoops(t *testing.T) {
	svc, _ := newTestService(t)

	h, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)

	// Not initialized yet: nothing below Initialize applies.
	require.NoError(t, h.Pause())
	require.NoError(t, h.Stop())
	info, err := h.Info()
	require.NoError(t, err)
	assert.Equal(t, mixer.StatusInitializing, info.Status)

	require.NoError(t, h.Initialize(context.Background()))
	require.NoError(t, h.Resume(), "resume without pause is ignored")
	info, err = h.Info()
	require.NoError(t, err)
	assert.Equal(t, mixer.StatusReady, info.Status)

	require.NoError(t, h.Stop())
	info, err = h.Info()
	require.NoError(t, err)
	assert.Equal(t, mixer.StatusReady, info.Status, "stop only applies to playing or paused")
}

func TestLifecycleAfterDispose(t *testing.T) {
	svc, _ := newTestService(t)

	h, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)
	require.NoError(t, h.Dispose())

	assert.ErrorIs(t, h.Start(), mixer.ErrSourceDisposed)
	assert.ErrorIs(t, h.Initialize(context.Background()), mixer.ErrSourceDisposed)
	_, err = h.Info()
	assert.ErrorIs(t, err, mixer.ErrSourceDisposed)
}

func TestSourceInitializeFailure(t *testing.T) {
	svc, _ := newTestService(t)

	src := newFakeSource("a", 1)
	src.initErr = errors.New("decoder exploded")
	h, err := svc.AddSource(src, mixer.ChannelMain)
	require.NoError(t, err)

	err = h.Initialize(context.Background())
	require.ErrorContains(t, err, "decoder exploded")

	info, err := h.Info()
	require.NoError(t, err)
	assert.Equal(t, mixer.StatusErrored, info.Status)

	require.NoError(t, h.Start(), "errored is terminal; start is ignored")
	info, err = h.Info()
	require.NoError(t, err)
	assert.Equal(t, mixer.StatusErrored, info.Status)
}

func TestVolumeClampingAndQueries(t *testing.T) {
	svc, _ := newTestService(t)

	require.NoError(t, svc.SetMasterVolume(0.5, 0))
	assert.InDelta(t, 0.5, svc.MasterVolume(), 1e-6)

	require.NoError(t, svc.SetMasterVolume(3, 0))
	assert.InDelta(t, 1, svc.MasterVolume(), 1e-6, "overdrive is clamped, not rejected")

	require.NoError(t, svc.SetChannelVolume(mixer.ChannelMain, -0.5, 0))
	assert.InDelta(t, 0, svc.ChannelVolume(mixer.ChannelMain), 1e-6)

	assert.ErrorIs(t, svc.SetChannelVolume(mixer.Channel(9), 0.5, 0), mixer.ErrUnknownChannel)

	_, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)
	require.NoError(t, svc.SetSourceVolume("a", 0.4, 0))
	v, ok := svc.SourceVolume("a")
	require.True(t, ok)
	assert.InDelta(t, 0.4, v, 1e-6)

	_, ok = svc.SourceVolume("ghost")
	assert.False(t, ok)
	require.NoError(t, svc.SetSourceVolume("ghost", 0.4, 0), "unknown ids are logged, not errors")
}

func TestSnapshotsAreSortedAndCarryMetadata(t *testing.T) {
	svc, _ := newTestService(t)

	tagged := &taggedSource{
		fakeSource: newFakeSource("b", 1),
		tags:       map[string]string{"kind": "tone", "frequency_hz": "440"},
	}
	_, err := svc.AddSource(newFakeSource("c", 1), mixer.ChannelMain)
	require.NoError(t, err)
	_, err = svc.AddSource(tagged, mixer.ChannelMain)
	require.NoError(t, err)
	_, err = svc.AddSource(newFakeSource("a", 1), mixer.ChannelVoice)
	require.NoError(t, err)

	all := svc.GetAllSources()
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)
	assert.Equal(t, "c", all[2].ID)
	assert.Equal(t, "tone", all[1].Metadata["kind"])
	assert.Equal(t, mixer.ChannelVoice, all[0].Channel)

	main := svc.GetChannelSources(mixer.ChannelMain)
	require.Len(t, main, 2)
	assert.Equal(t, "b", main[0].ID)
	assert.Equal(t, "c", main[1].ID)
}

func TestPresetResolution(t *testing.T) {
	svc, _ := newTestService(t)

	p, ok := svc.Preset("djmode")
	require.True(t, ok)
	assert.Equal(t, mixer.PresetDJMode, p)

	require.NoError(t, svc.SetDuckLevel(0.33))
	p, ok = svc.Preset("custom")
	require.True(t, ok)
	assert.InDelta(t, 0.33, p.Level, 1e-6)
	assert.InDelta(t, 0.33, svc.DuckLevel(), 1e-6)

	_, ok = svc.Preset("club-banger")
	assert.False(t, ok)
}

func TestServiceEvents(t *testing.T) {
	svc, _ := newTestService(t)
	rec := &eventRecorder{}
	unsubscribe := svc.Subscribe(rec.record)

	_, err := svc.AddSource(newFakeSource("a", 1), mixer.ChannelMain)
	require.NoError(t, err)
	require.NoError(t, svc.SetChannelVolume(mixer.ChannelMain, 0.7, 250*time.Millisecond))
	require.NoError(t, svc.TriggerHighPriorityStart(mixer.ChannelVoice, mixer.PresetDJMode))
	require.NoError(t, svc.TriggerHighPriorityEnd(mixer.ChannelVoice))
	require.NoError(t, svc.RemoveSource("a"))

	events := rec.snapshot()
	require.Len(t, events, 5)

	added, ok := events[0].(mixer.SourceAddedEvent)
	require.True(t, ok)
	assert.Equal(t, "a", added.ID)
	assert.Equal(t, mixer.ChannelMain, added.Channel)

	volume, ok := events[1].(mixer.ChannelVolumeChangedEvent)
	require.True(t, ok)
	assert.InDelta(t, 0.7, volume.Volume, 1e-6)
	assert.Equal(t, 250*time.Millisecond, volume.Ramp)

	ducked, ok := events[2].(mixer.DuckingStateChangedEvent)
	require.True(t, ok)
	assert.True(t, ducked.Active)

	released, ok := events[3].(mixer.DuckingStateChangedEvent)
	require.True(t, ok)
	assert.False(t, released.Active)

	removed, ok := events[4].(mixer.SourceRemovedEvent)
	require.True(t, ok)
	assert.Equal(t, "a", removed.ID)

	unsubscribe()
	unsubscribe() // idempotent
	_, err = svc.AddSource(newFakeSource("b", 1), mixer.ChannelMain)
	require.NoError(t, err)
	assert.Len(t, rec.snapshot(), 5, "no delivery after unsubscribe")
}

func TestConfigSeedsInitialState(t *testing.T) {
	master := float32(0.7)
	main := float32(0.6)
	level := float32(0.3)
	cfg := &config.Config{}
	cfg.Mixer.MasterVolume = &master
	cfg.Mixer.Channels.Main = &main
	cfg.Ducking.CustomLevel = &level
	cfg.Ducking.CustomAttackMs = 100
	cfg.Ducking.CustomReleaseMs = 800

	svc := mixer.NewService(zap.NewNop(), cfg, &fakeOpener{})

	assert.InDelta(t, 0.7, svc.MasterVolume(), 1e-6)
	assert.InDelta(t, 0.6, svc.ChannelVolume(mixer.ChannelMain), 1e-6)
	assert.InDelta(t, 1, svc.ChannelVolume(mixer.ChannelVoice), 1e-6)
	assert.InDelta(t, 0.3, svc.DuckLevel(), 1e-6)

	p, ok := svc.Preset("custom")
	require.True(t, ok)
	assert.Equal(t, 100*time.Millisecond, p.Attack)
	assert.Equal(t, 800*time.Millisecond, p.Release)
}
