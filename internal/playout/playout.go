// Package playout turns configuration into a running program: it
// brings the mixer up against the configured output device, creates
// the configured sources, schedules their playback, and ducks program
// material automatically while high-priority sources play.
package playout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/config"
	"github.com/Raikerian/go-audio-mixer/internal/mixer"
	"github.com/Raikerian/go-audio-mixer/internal/sources"
	"github.com/Raikerian/go-audio-mixer/pkg/util"
)

const statsInterval = 30 * time.Second

// Service owns the mixer lifecycle for the daemon. Automatic ducking
// subscribes to mixer events: the first high-priority source entering
// playback triggers the channel's preset, and the trigger is released
// once the channel has been silent for the configured debounce window,
// so back-to-back announcements do not pump the program volume.
type Service struct {
	logger *zap.Logger
	cfg    *config.Config
	mixer  mixer.Service
	store  *sources.Store

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopStats   chan struct{}
	unsubscribe func()

	mu      sync.Mutex
	playing map[mixer.Channel]map[string]struct{}
	presets map[string]mixer.DuckingPreset
	release map[mixer.Channel]*util.Debouncer
}

// NewService creates the playout service. The mixer is not touched
// until Start.
func NewService(logger *zap.Logger, cfg *config.Config, mixerService mixer.Service, store *sources.Store) *Service {
	return &Service{
		logger:  logger,
		cfg:     cfg,
		mixer:   mixerService,
		store:   store,
		playing: make(map[mixer.Channel]map[string]struct{}),
		presets: make(map[string]mixer.DuckingPreset),
		release: make(map[mixer.Channel]*util.Debouncer),
	}
}

// Start initializes the mixer and launches the configured entries.
// Configuration mistakes (unknown channels, presets, source types)
// fail Start; runtime producer failures only disable their own entry.
func (s *Service) Start(ctx context.Context) error {
	if err := s.mixer.Initialize(ctx, s.cfg.Output.Device); err != nil {
		return fmt.Errorf("initialize mixer: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if s.cfg.Playout.AutoDuck {
		silence := time.Duration(s.cfg.Playout.SilenceReleaseMs) * time.Millisecond
		for _, ch := range mixer.Channels() {
			if !ch.HighPriority() {
				continue
			}
			s.release[ch] = util.NewDebouncer(silence, s.releaseFunc(ch))
		}
		s.unsubscribe = s.mixer.Subscribe(s.onEvent)
	}

	for _, entry := range s.cfg.Playout.Entries {
		if err := s.launchEntry(ctx, runCtx, entry); err != nil {
			return fmt.Errorf("playout entry %q: %w", entry.ID, err)
		}
	}

	s.stopStats = make(chan struct{})
	s.wg.Add(1)
	go s.statsLoop()

	s.logger.Info("Playout started",
		zap.String("output", s.cfg.Output.Device),
		zap.Int("entries", len(s.cfg.Playout.Entries)),
		zap.Bool("autoDuck", s.cfg.Playout.AutoDuck))
	return nil
}

// Stop unwinds the schedule and closes the mixer. It is safe to call
// more than once.
func (s *Service) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.mu.Lock()
	for _, d := range s.release {
		d.Stop()
	}
	s.mu.Unlock()
	if s.stopStats != nil {
		close(s.stopStats)
		s.stopStats = nil
	}
	s.wg.Wait()

	if err := s.mixer.Close(ctx); err != nil {
		return fmt.Errorf("close mixer: %w", err)
	}
	s.logger.Info("Playout stopped")
	return nil
}

// launchEntry registers one configured source and schedules its start.
func (s *Service) launchEntry(ctx, runCtx context.Context, entry config.PlayoutEntry) error {
	ch, err := mixer.ParseChannel(entry.Channel)
	if err != nil {
		return err
	}

	src, err := s.buildSource(entry)
	if err != nil {
		return err
	}

	preset := mixer.PresetBackground
	if entry.Preset != "" {
		p, ok := s.mixer.Preset(entry.Preset)
		if !ok {
			return fmt.Errorf("unknown ducking preset %q", entry.Preset)
		}
		preset = p
	}

	handle, err := s.mixer.AddSource(src, ch)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.presets[entry.ID] = preset
	s.mu.Unlock()

	if err := handle.Initialize(ctx); err != nil {
		// The source sits in the registry as errored; the rest of the
		// schedule is unaffected.
		s.logger.Warn("Playout entry failed to initialize",
			zap.String("entry", entry.ID),
			zap.Error(err))
		return nil
	}

	if entry.Volume != nil {
		if err := handle.SetVolume(*entry.Volume, 0); err != nil {
			return err
		}
	}

	s.wg.Add(1)
	go s.runEntry(runCtx, handle, entry)
	return nil
}

// buildSource maps an entry to a producer. Tone durations are baked
// into the source; clip durations are enforced with a timed stop in
// runEntry.
func (s *Service) buildSource(entry config.PlayoutEntry) (mixer.Source, error) {
	switch entry.Type {
	case "tone":
		return sources.NewToneSource(entry.ID, entry.FrequencyHz, time.Duration(entry.DurationMs)*time.Millisecond), nil
	case "clip":
		return sources.NewClipSource(entry.ID, s.store, entry.File, entry.Loop), nil
	default:
		return nil, fmt.Errorf("unknown source type %q", entry.Type)
	}
}

func (s *Service) runEntry(ctx context.Context, handle *mixer.SourceHandle, entry config.PlayoutEntry) {
	defer s.wg.Done()

	if entry.StartAfterMs > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(entry.StartAfterMs) * time.Millisecond):
		}
	}

	if err := handle.Start(); err != nil {
		s.logger.Warn("Playout entry failed to start", zap.String("entry", entry.ID), zap.Error(err))
		return
	}
	s.logger.Info("Playout entry started",
		zap.String("entry", entry.ID),
		zap.String("channel", entry.Channel))

	if entry.Type == "clip" && entry.DurationMs > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(time.Duration(entry.DurationMs) * time.Millisecond):
			if err := handle.Stop(); err != nil {
				s.logger.Warn("Playout entry failed to stop", zap.String("entry", entry.ID), zap.Error(err))
			}
		}
	}
}

// onEvent tracks which high-priority sources are audible and drives
// the ducking triggers from that. Events arrive synchronously from the
// mixer's control and drain paths.
func (s *Service) onEvent(e mixer.Event) {
	switch ev := e.(type) {
	case mixer.SourceStatusChangedEvent:
		if ev.New == mixer.StatusPlaying {
			s.markPlaying(ev.Channel, ev.ID)
		} else if ev.Old == mixer.StatusPlaying {
			s.markSilent(ev.Channel, ev.ID)
		}
	case mixer.SourceRemovedEvent:
		s.markSilent(ev.Channel, ev.ID)
	}
}

func (s *Service) markPlaying(ch mixer.Channel, id string) {
	if !ch.HighPriority() {
		return
	}

	s.mu.Lock()
	active, ok := s.playing[ch]
	if !ok {
		active = make(map[string]struct{})
		s.playing[ch] = active
	}
	active[id] = struct{}{}
	first := len(active) == 1
	preset, hasPreset := s.presets[id]
	if !hasPreset {
		preset = mixer.PresetBackground
	}
	s.mu.Unlock()

	// A pending silence release may still fire, but it rechecks the
	// bookkeeping and backs off while anything is audible.
	if first {
		if err := s.mixer.TriggerHighPriorityStart(ch, preset); err != nil {
			s.logger.Warn("Ducking trigger failed", zap.Stringer("channel", ch), zap.Error(err))
		}
	}
}

func (s *Service) markSilent(ch mixer.Channel, id string) {
	if !ch.HighPriority() {
		return
	}

	s.mu.Lock()
	active := s.playing[ch]
	delete(active, id)
	silent := len(active) == 0
	d := s.release[ch]
	s.mu.Unlock()

	if silent && d != nil {
		d.Reset()
	}
}

// releaseFunc builds the debounced trigger release for one channel.
func (s *Service) releaseFunc(ch mixer.Channel) func() {
	return func() {
		s.mu.Lock()
		stillSilent := len(s.playing[ch]) == 0
		s.mu.Unlock()
		if !stillSilent {
			return
		}
		if err := s.mixer.TriggerHighPriorityEnd(ch); err != nil {
			s.logger.Debug("Ducking release skipped", zap.Stringer("channel", ch), zap.Error(err))
		}
	}
}

func (s *Service) statsLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopStats:
			return
		case <-ticker.C:
			stats := s.mixer.Stats()
			s.logger.Debug("Mixer stats",
				zap.Uint64("frames", stats.FramesRendered),
				zap.Int("activeSources", stats.ActiveSources),
				zap.Float32("peak", stats.Peak),
				zap.Float32("rms", stats.RMS),
				zap.Uint64("sourceErrors", stats.SourceErrors))
		}
	}
}
