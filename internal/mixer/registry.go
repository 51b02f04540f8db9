package mixer

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// renderSource is the render path's view of one playing source: the
// producer to pull and the gain to apply. Everything else about the
// source is control-plane state it does not need.
type renderSource struct {
	src  Source
	gain *GainControl
}

// renderPlan is an immutable per-channel listing of playing sources.
// The registry publishes a fresh plan after every mutation; the render
// path loads it once per frame and never takes the registry lock.
type renderPlan struct {
	byChannel [channelCount][]renderSource
}

var emptyPlan = &renderPlan{}

// transition describes one applied lifecycle change, for event emission
// after locks are released.
type transition struct {
	id      string
	channel Channel
	old     SourceStatus
	new     SourceStatus
	changed bool
}

// sourceRegistry owns source membership, channel assignment and
// lifecycle state. It is the only writer of the render plan.
type sourceRegistry struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]*sourceEntry
	plan    atomic.Pointer[renderPlan]
}

func newSourceRegistry(logger *zap.Logger) *sourceRegistry {
	r := &sourceRegistry{
		logger:  logger,
		entries: make(map[string]*sourceEntry),
	}
	r.plan.Store(emptyPlan)
	return r
}

// currentPlan returns the most recently published render plan.
func (r *sourceRegistry) currentPlan() *renderPlan {
	return r.plan.Load()
}

// republish rebuilds the render plan from playing entries. Callers must
// hold r.mu.
func (r *sourceRegistry) republish() {
	next := &renderPlan{}
	for _, e := range r.entries {
		if e.status != StatusPlaying {
			continue
		}
		next.byChannel[e.channel] = append(next.byChannel[e.channel], renderSource{src: e.src, gain: e.gain})
	}
	r.plan.Store(next)
}

// add registers src on ch with the given initial gain. The id must be
// unique across all channels.
func (r *sourceRegistry) add(src Source, ch Channel, volume float32) (*sourceEntry, error) {
	var md map[string]string
	if mp, ok := src.(MetadataProvider); ok {
		md = mp.Metadata()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := src.ID()
	if _, exists := r.entries[id]; exists {
		return nil, ErrDuplicateSourceID
	}
	e := &sourceEntry{
		src:      src,
		id:       id,
		channel:  ch,
		status:   StatusInitializing,
		gain:     NewGainControl(volume),
		metadata: md,
	}
	r.entries[id] = e
	return e, nil
}

// remove unregisters the source and returns its entry for producer
// teardown. Removing an unknown id is a no-op.
func (r *sourceRegistry) remove(id string) (*sourceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	delete(r.entries, id)
	r.republish()
	return e, true
}

// removeAll empties the registry and returns the removed entries.
func (r *sourceRegistry) removeAll() []*sourceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]*sourceEntry, 0, len(r.entries))
	for id, e := range r.entries {
		removed = append(removed, e)
		delete(r.entries, id)
	}
	r.republish()
	sort.Slice(removed, func(i, j int) bool { return removed[i].id < removed[j].id })
	return removed
}

// move reassigns the source to ch. The swap is atomic: the plan is
// rebuilt once, so no frame ever sees the source on two channels or on
// none. Moving to the current channel is a no-op.
func (r *sourceRegistry) move(id string, ch Channel) (from Channel, moved, found bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return 0, false, false
	}
	if e.channel == ch {
		return e.channel, false, true
	}
	from = e.channel
	e.channel = ch
	r.republish()
	return from, true, true
}

// beginLifecycle validates op against the source's current state. For
// opInitialize it additionally marks the producer call in flight and
// hands back the producer so the caller can run Initialize without
// holding the registry lock. A disallowed op returns changed=false with
// no error; unknown ids return ErrSourceDisposed.
func (r *sourceRegistry) beginLifecycle(id string, op lifecycleOp) (Source, transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, transition{}, ErrSourceDisposed
	}
	if !op.allowedFrom(e.status) || e.initializing {
		r.logger.Debug("Ignoring lifecycle operation in current state",
			zap.String("source", id),
			zap.Stringer("operation", op),
			zap.Stringer("status", e.status))
		return nil, transition{}, nil
	}

	if op == opInitialize {
		e.initializing = true
		return e.src, transition{}, nil
	}

	tr := transition{id: id, channel: e.channel, old: e.status, new: lifecycleTo[op], changed: true}
	e.status = tr.new
	r.republish()
	return nil, tr, nil
}

// finishInitialize records the outcome of a producer Initialize started
// by beginLifecycle. The entry may have been removed while the call was
// in flight, in which case the outcome is dropped.
func (r *sourceRegistry) finishInitialize(id string, initErr error) (transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return transition{}, false
	}
	e.initializing = false
	tr := transition{id: id, channel: e.channel, old: e.status, changed: true}
	if initErr != nil {
		tr.new = StatusErrored
	} else {
		tr.new = StatusReady
	}
	e.status = tr.new
	return tr, true
}

// renderTransition applies a state change reported by the render path:
// end of stream lands in stopped, a producer failure in errored. The
// source may already be gone or terminal by the time the report drains.
func (r *sourceRegistry) renderTransition(id string, to SourceStatus) (transition, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok || e.status.terminal() || e.status == to {
		return transition{}, false
	}
	tr := transition{id: id, channel: e.channel, old: e.status, new: to, changed: true}
	e.status = to
	r.republish()
	return tr, true
}

// setVolume ramps the per-source gain. Unknown ids report found=false.
func (r *sourceRegistry) setVolume(id string, volume float32, ramp time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.gain.Set(volume, ramp, now)
	return true
}

// volume returns the source's gain at now.
func (r *sourceRegistry) volume(id string, now time.Time) (float32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return 0, false
	}
	return e.gain.ValueAt(now), true
}

// info snapshots one source.
func (r *sourceRegistry) info(id string, now time.Time) (SourceInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return SourceInfo{}, false
	}
	return e.info(now), true
}

// channelSources snapshots every source assigned to ch, sorted by id.
func (r *sourceRegistry) channelSources(ch Channel, now time.Time) []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]SourceInfo, 0)
	for _, e := range r.entries {
		if e.channel == ch {
			infos = append(infos, e.info(now))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// allSources snapshots every registered source, sorted by id.
func (r *sourceRegistry) allSources(now time.Time) []SourceInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]SourceInfo, 0, len(r.entries))
	for _, e := range r.entries {
		infos = append(infos, e.info(now))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

// playingCount reports how many sources the published plan renders.
func (r *sourceRegistry) playingCount() int {
	plan := r.plan.Load()
	n := 0
	for _, sources := range plan.byChannel {
		n += len(sources)
	}
	return n
}
