package mixer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/config"
	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// Service is the mixing engine façade: source registration and
// lifecycle, per-source, per-channel and master volume, priority
// ducking, and state notifications. One Service drives one output
// device for its whole life; after Close it cannot be restarted.
//
// Mutating operations are serialized by the service and fail with
// ErrNotInitialized before Initialize and ErrMixerClosed after Close.
// Queries are safe at any time from any goroutine.
type Service interface {
	// Initialize resolves the output device, starts delivering the mix
	// to it and arms the control plane. It must be called exactly once;
	// a failed Initialize leaves the service re-initializable with
	// another device.
	Initialize(ctx context.Context, outputDeviceID string) error

	// Close stops the output, disposes every source and ends the mixed
	// stream. Close is idempotent.
	Close(ctx context.Context) error

	// AddSource registers src on ch in the initializing state and
	// returns the handle that drives its lifecycle. Ids are unique
	// across all channels; a duplicate fails with ErrDuplicateSourceID
	// and leaves the registry unchanged.
	AddSource(src Source, ch Channel) (*SourceHandle, error)

	// RemoveSource unregisters the source and closes its producer.
	// Unknown ids are logged no-ops.
	RemoveSource(id string) error

	// MoveSourceToChannel atomically reassigns a source; no frame ever
	// renders it on two channels or on none. Moving a source to its
	// current channel is a no-op.
	MoveSourceToChannel(id string, ch Channel) error

	// GetChannelSources snapshots the sources assigned to ch.
	GetChannelSources(ch Channel) []SourceInfo

	// GetAllSources snapshots every registered source.
	GetAllSources() []SourceInfo

	// SetMasterVolume ramps the master gain to the clamped volume over
	// ramp; zero applies it immediately.
	SetMasterVolume(volume float32, ramp time.Duration) error

	// MasterVolume returns the master gain right now, ramp included.
	MasterVolume() float32

	// SetChannelVolume ramps one channel's gain to the clamped volume.
	SetChannelVolume(ch Channel, volume float32, ramp time.Duration) error

	// ChannelVolume returns the channel gain right now, ramp included.
	ChannelVolume(ch Channel) float32

	// SetSourceVolume ramps one source's gain. Unknown ids are logged
	// no-ops.
	SetSourceVolume(id string, volume float32, ramp time.Duration) error

	// SourceVolume returns the source gain right now. ok is false for
	// unknown ids.
	SourceVolume(id string) (volume float32, ok bool)

	// TriggerHighPriorityStart engages ducking on behalf of a
	// high-priority channel. See DuckingController.
	TriggerHighPriorityStart(ch Channel, preset DuckingPreset) error

	// TriggerHighPriorityEnd releases the channel's ducking trigger.
	TriggerHighPriorityEnd(ch Channel) error

	// SetDuckLevel adjusts the custom preset's level for future
	// triggers; already-active triggers keep the level they engaged
	// with.
	SetDuckLevel(level float32) error

	// DuckLevel returns the custom preset's configured level.
	DuckLevel() float32

	// IsDuckingActive reports whether any ducking trigger is held.
	IsDuckingActive() bool

	// DuckingState snapshots the ducking controller.
	DuckingState() DuckingState

	// Preset resolves a preset name, including "custom" with its live
	// level.
	Preset(name string) (DuckingPreset, bool)

	// Subscribe registers fn for all mixer events and returns its
	// remover. Delivery is synchronous; see Event.
	Subscribe(fn func(Event)) func()

	// Stats returns cumulative render counters.
	Stats() Stats
}

type serviceState int

const (
	stateCreated serviceState = iota
	stateReady
	stateClosed
)

type service struct {
	logger *zap.Logger
	opener OutputOpener

	hub    *eventHub
	reg    *sourceRegistry
	mix    *channelMixer
	duck   DuckingController
	master *GainControl
	bus    *mixBus

	mu     sync.Mutex
	state  serviceState
	output Output

	stopDrain chan struct{}
	drainDone chan struct{}
}

// NewService assembles an uninitialized mixer. Initial channel and
// master volumes and the custom ducking preset are seeded from cfg;
// everything else starts at defaults (gain 1, ducking idle).
func NewService(logger *zap.Logger, cfg *config.Config, opener OutputOpener) Service {
	hub := newEventHub()

	var initial [channelCount]float32
	initial[ChannelMain] = initialVolume(cfg.Mixer.Channels.Main)
	initial[ChannelVoice] = initialVolume(cfg.Mixer.Channels.Voice)
	initial[ChannelAlert] = initialVolume(cfg.Mixer.Channels.Alert)

	custom := PresetCustom
	if cfg.Ducking.CustomLevel != nil {
		custom.Level = audio.Clamp01(*cfg.Ducking.CustomLevel)
	}
	if cfg.Ducking.CustomAttackMs > 0 {
		custom.Attack = time.Duration(cfg.Ducking.CustomAttackMs) * time.Millisecond
	}
	if cfg.Ducking.CustomReleaseMs > 0 {
		custom.Release = time.Duration(cfg.Ducking.CustomReleaseMs) * time.Millisecond
	}

	reg := newSourceRegistry(logger)
	mix := newChannelMixer(logger, initial)
	duck := NewDuckingController(logger, custom, hub.emit)
	master := NewGainControl(initialVolume(cfg.Mixer.MasterVolume))

	return &service{
		logger: logger,
		opener: opener,
		hub:    hub,
		reg:    reg,
		mix:    mix,
		duck:   duck,
		master: master,
		bus:    newMixBus(logger, reg, mix, duck, master),
	}
}

func initialVolume(v *float32) float32 {
	if v == nil {
		return 1
	}
	return audio.Clamp01(*v)
}

// stateErrLocked maps the service state to its sentinel. Callers hold
// s.mu.
func (s *service) stateErrLocked() error {
	switch s.state {
	case stateCreated:
		return ErrNotInitialized
	case stateClosed:
		return ErrMixerClosed
	default:
		return nil
	}
}

func (s *service) Initialize(ctx context.Context, outputDeviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateReady:
		return ErrAlreadyInitialized
	case stateClosed:
		return ErrMixerClosed
	}

	output, err := s.opener.OpenOutput(ctx, outputDeviceID, s.bus)
	if err != nil {
		return fmt.Errorf("open output %q: %w", outputDeviceID, err)
	}

	s.output = output
	s.state = stateReady
	s.stopDrain = make(chan struct{})
	s.drainDone = make(chan struct{})
	go s.drainReports()

	s.logger.Info("Mixer initialized", zap.String("output", output.Name()))
	return nil
}

func (s *service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.state == stateClosed {
		s.mu.Unlock()
		return nil
	}
	wasReady := s.state == stateReady
	s.state = stateClosed
	output := s.output
	s.output = nil
	s.mu.Unlock()

	s.bus.close()

	var errs []error
	if output != nil {
		if err := output.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop output: %w", err))
		}
	}
	if wasReady {
		close(s.stopDrain)
		<-s.drainDone
	}

	removed := s.reg.removeAll()
	for _, e := range removed {
		if err := e.src.Close(); err != nil {
			s.logger.Warn("Source close failed", zap.String("source", e.id), zap.Error(err))
		}
		s.hub.emit(SourceRemovedEvent{ID: e.id, Channel: e.channel})
	}

	s.logger.Info("Mixer closed", zap.Int("sources_disposed", len(removed)))
	return errors.Join(errs...)
}

// drainReports applies render-path producer reports to the control
// plane: end of stream stops the source, anything else marks it
// errored.
func (s *service) drainReports() {
	defer close(s.drainDone)
	for {
		select {
		case <-s.stopDrain:
			return
		case rep := <-s.bus.reports:
			s.handleReport(rep)
		}
	}
}

func (s *service) handleReport(rep sourceReport) {
	to := StatusStopped
	if !errors.Is(rep.err, io.EOF) {
		to = StatusErrored
		s.logger.Warn("Source producer failed", zap.String("source", rep.id), zap.Error(rep.err))
	}
	tr, ok := s.reg.renderTransition(rep.id, to)
	if !ok {
		return
	}
	if to == StatusStopped {
		s.logger.Info("Source reached end of stream", zap.String("source", rep.id))
	}
	s.hub.emit(SourceStatusChangedEvent{ID: tr.id, Channel: tr.channel, Old: tr.old, New: tr.new})
}

func (s *service) AddSource(src Source, ch Channel) (*SourceHandle, error) {
	if src == nil {
		return nil, errors.New("source must not be nil")
	}
	if !ch.Valid() {
		return nil, fmt.Errorf("%w %d", ErrUnknownChannel, int(ch))
	}

	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	entry, err := s.reg.add(src, ch, 1)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	s.logger.Info("Source added", zap.String("source", entry.id), zap.Stringer("channel", ch))
	s.hub.emit(SourceAddedEvent{ID: entry.id, Channel: ch})
	return &SourceHandle{svc: s, id: entry.id}, nil
}

func (s *service) RemoveSource(id string) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	e, ok := s.reg.remove(id)
	s.mu.Unlock()
	if !ok {
		s.logger.Debug("Remove ignored for unknown source", zap.String("source", id))
		return nil
	}

	if err := e.src.Close(); err != nil {
		s.logger.Warn("Source close failed", zap.String("source", e.id), zap.Error(err))
	}
	s.logger.Info("Source removed", zap.String("source", e.id), zap.Stringer("channel", e.channel))
	s.hub.emit(SourceRemovedEvent{ID: e.id, Channel: e.channel})
	return nil
}

func (s *service) MoveSourceToChannel(id string, ch Channel) error {
	if !ch.Valid() {
		return fmt.Errorf("%w %d", ErrUnknownChannel, int(ch))
	}

	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	from, moved, found := s.reg.move(id, ch)
	s.mu.Unlock()

	if !found {
		s.logger.Debug("Move ignored for unknown source", zap.String("source", id))
		return nil
	}
	if !moved {
		s.logger.Debug("Source already on channel", zap.String("source", id), zap.Stringer("channel", ch))
		return nil
	}
	s.logger.Info("Source moved",
		zap.String("source", id),
		zap.Stringer("from", from),
		zap.Stringer("to", ch))
	return nil
}

// sourceLifecycle runs one handle operation. Producer Initialize runs
// outside the registry lock so the render feedback path stays live, but
// under the service lock so control operations stay serialized.
func (s *service) sourceLifecycle(ctx context.Context, id string, op lifecycleOp) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	src, tr, err := s.reg.beginLifecycle(id, op)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	var initErr error
	if src != nil {
		initErr = src.Initialize(ctx)
		var ok bool
		tr, ok = s.reg.finishInitialize(id, initErr)
		if !ok {
			s.mu.Unlock()
			return initErr
		}
	}
	s.mu.Unlock()

	if tr.changed {
		if initErr != nil {
			s.logger.Warn("Source initialization failed", zap.String("source", id), zap.Error(initErr))
		} else {
			s.logger.Debug("Source state changed",
				zap.String("source", id),
				zap.Stringer("from", tr.old),
				zap.Stringer("to", tr.new))
		}
		s.hub.emit(SourceStatusChangedEvent{ID: tr.id, Channel: tr.channel, Old: tr.old, New: tr.new})
	}
	if initErr != nil {
		return fmt.Errorf("initialize source %q: %w", id, initErr)
	}
	return nil
}

func (s *service) sourceInfo(id string) (SourceInfo, error) {
	info, ok := s.reg.info(id, time.Now())
	if !ok {
		return SourceInfo{}, ErrSourceDisposed
	}
	return info, nil
}

func (s *service) GetChannelSources(ch Channel) []SourceInfo {
	if !ch.Valid() {
		return nil
	}
	return s.reg.channelSources(ch, time.Now())
}

func (s *service) GetAllSources() []SourceInfo {
	return s.reg.allSources(time.Now())
}

func (s *service) SetMasterVolume(volume float32, ramp time.Duration) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.master.Set(volume, ramp, time.Now())
	s.mu.Unlock()

	s.logger.Debug("Master volume set", zap.Float32("volume", audio.Clamp01(volume)), zap.Duration("ramp", ramp))
	return nil
}

func (s *service) MasterVolume() float32 {
	return s.master.Value()
}

func (s *service) SetChannelVolume(ch Channel, volume float32, ramp time.Duration) error {
	if !ch.Valid() {
		return fmt.Errorf("%w %d", ErrUnknownChannel, int(ch))
	}

	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	target := audio.Clamp01(volume)
	now := time.Now()
	s.mix.setVolume(ch, target, ramp, now)
	s.mu.Unlock()

	s.logger.Debug("Channel volume set",
		zap.Stringer("channel", ch),
		zap.Float32("volume", target),
		zap.Duration("ramp", ramp))
	s.hub.emit(ChannelVolumeChangedEvent{Channel: ch, Volume: target, Ramp: ramp})
	return nil
}

func (s *service) ChannelVolume(ch Channel) float32 {
	if !ch.Valid() {
		return 0
	}
	return s.mix.volume(ch, time.Now())
}

func (s *service) SetSourceVolume(id string, volume float32, ramp time.Duration) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	found := s.reg.setVolume(id, volume, ramp, time.Now())
	s.mu.Unlock()

	if !found {
		s.logger.Debug("Volume change ignored for unknown source", zap.String("source", id))
	}
	return nil
}

func (s *service) SourceVolume(id string) (float32, bool) {
	return s.reg.volume(id, time.Now())
}

func (s *service) TriggerHighPriorityStart(ch Channel, preset DuckingPreset) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.duck.TriggerHighPriorityStart(ch, preset)
	return nil
}

func (s *service) TriggerHighPriorityEnd(ch Channel) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.duck.TriggerHighPriorityEnd(ch)
	return nil
}

func (s *service) SetDuckLevel(level float32) error {
	s.mu.Lock()
	if err := s.stateErrLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	s.duck.SetCustomLevel(level)
	return nil
}

func (s *service) DuckLevel() float32 {
	return s.duck.CustomPreset().Level
}

func (s *service) IsDuckingActive() bool {
	return s.duck.Active()
}

func (s *service) DuckingState() DuckingState {
	return s.duck.State()
}

func (s *service) Preset(name string) (DuckingPreset, bool) {
	switch name {
	case PresetDJMode.Name:
		return PresetDJMode, true
	case PresetBackground.Name:
		return PresetBackground, true
	case PresetEmergency.Name:
		return PresetEmergency, true
	case PresetMusic.Name:
		return PresetMusic, true
	case PresetCustom.Name:
		return s.duck.CustomPreset(), true
	default:
		return DuckingPreset{}, false
	}
}

func (s *service) Subscribe(fn func(Event)) func() {
	return s.hub.subscribe(fn)
}

func (s *service) Stats() Stats {
	return s.bus.stats()
}
