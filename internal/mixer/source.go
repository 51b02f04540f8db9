package mixer

import (
	"context"
	"time"
)

// Source produces interleaved stereo float32 PCM at the engine rate
// (audio.SampleRate). The mixer owns the lifecycle around a Source: it
// decides when Initialize, ReadPCM and Close are called, and it never
// calls ReadPCM before Initialize has returned nil. A frame already in
// flight when a source is removed may still pull it, so ReadPCM must
// stay safe to call concurrently with or after Close.
//
// ReadPCM fills dst with up to len(dst) samples and returns how many it
// wrote. It runs on the render goroutine: implementations must not
// block on I/O, locks held by slow paths, or allocation-heavy work.
// Preload in Initialize instead. End of material is reported with
// io.EOF, with or without a final short read; any other error marks the
// source errored.
//
// Initialize must release everything it acquired before returning a
// non-nil error: a failed source is never asked to Close.
type Source interface {
	ID() string
	Initialize(ctx context.Context) error
	ReadPCM(dst []float32) (int, error)
	Close() error
}

// MetadataProvider is optionally implemented by sources that carry
// descriptive tags (origin, file, frequency). Tags are captured once at
// registration and surfaced on SourceInfo.
type MetadataProvider interface {
	Metadata() map[string]string
}

// lifecycleOp is a caller-driven transition request against one source.
type lifecycleOp int

const (
	opInitialize lifecycleOp = iota
	opStart
	opPause
	opResume
	opStop
)

func (op lifecycleOp) String() string {
	switch op {
	case opInitialize:
		return "initialize"
	case opStart:
		return "start"
	case opPause:
		return "pause"
	case opResume:
		return "resume"
	case opStop:
		return "stop"
	default:
		return "unknown"
	}
}

// lifecycleFrom lists the states each operation may leave from. An
// operation applied in any other state is a logged no-op, not an error,
// so racing control paths (a stop crossing a natural end of stream)
// stay harmless.
var lifecycleFrom = map[lifecycleOp][]SourceStatus{
	opInitialize: {StatusInitializing},
	opStart:      {StatusReady, StatusPaused},
	opPause:      {StatusPlaying},
	opResume:     {StatusPaused},
	opStop:       {StatusPlaying, StatusPaused},
}

// lifecycleTo is the state each operation lands in when permitted.
var lifecycleTo = map[lifecycleOp]SourceStatus{
	opInitialize: StatusReady,
	opStart:      StatusPlaying,
	opPause:      StatusPaused,
	opResume:     StatusPlaying,
	opStop:       StatusStopped,
}

func (op lifecycleOp) allowedFrom(s SourceStatus) bool {
	for _, from := range lifecycleFrom[op] {
		if from == s {
			return true
		}
	}
	return false
}

// sourceEntry is the registry's record of one source. All fields are
// guarded by the registry mutex; gain is read lock-free by the render
// path through the published plan.
type sourceEntry struct {
	src      Source
	id       string
	channel  Channel
	status   SourceStatus
	gain     *GainControl
	metadata map[string]string

	// initializing marks a producer Initialize in flight, which happens
	// outside the registry lock so other sources stay controllable.
	initializing bool
}

func (e *sourceEntry) info(now time.Time) SourceInfo {
	var md map[string]string
	if len(e.metadata) > 0 {
		md = make(map[string]string, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
	}
	return SourceInfo{
		ID:       e.id,
		Channel:  e.channel,
		Status:   e.status,
		Volume:   e.gain.ValueAt(now),
		Metadata: md,
	}
}

// SourceHandle is the caller's grip on one registered source. It stays
// valid after removal; operations on a removed source return
// ErrSourceDisposed.
type SourceHandle struct {
	svc *service
	id  string
}

// ID returns the source id the handle controls.
func (h *SourceHandle) ID() string { return h.id }

// Initialize prepares the producer. On success the source becomes
// ready; on failure it is marked errored and the producer error is
// returned.
func (h *SourceHandle) Initialize(ctx context.Context) error {
	return h.svc.sourceLifecycle(ctx, h.id, opInitialize)
}

// Start begins or restarts playback from ready or paused.
func (h *SourceHandle) Start() error {
	return h.svc.sourceLifecycle(context.Background(), h.id, opStart)
}

// Pause suspends playback, retaining position.
func (h *SourceHandle) Pause() error {
	return h.svc.sourceLifecycle(context.Background(), h.id, opPause)
}

// Resume continues playback from paused.
func (h *SourceHandle) Resume() error {
	return h.svc.sourceLifecycle(context.Background(), h.id, opResume)
}

// Stop ends playback. Stopped is terminal; only disposal follows.
func (h *SourceHandle) Stop() error {
	return h.svc.sourceLifecycle(context.Background(), h.id, opStop)
}

// Dispose removes the source from the mixer and closes its producer.
// Disposing twice is a no-op.
func (h *SourceHandle) Dispose() error {
	return h.svc.RemoveSource(h.id)
}

// Info returns a snapshot of the source, or ErrSourceDisposed if it has
// been removed.
func (h *SourceHandle) Info() (SourceInfo, error) {
	return h.svc.sourceInfo(h.id)
}

// SetVolume ramps the per-source gain to the clamped volume over ramp.
func (h *SourceHandle) SetVolume(volume float32, ramp time.Duration) error {
	return h.svc.SetSourceVolume(h.id, volume, ramp)
}
