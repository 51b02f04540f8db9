package mixer

import (
	"sync"
	"time"
)

// Event is a mixer state-change notification. Events are delivered
// synchronously on the goroutine that caused the change, after the
// mixer's own locks have been released; subscribers that need to do
// slow work should hand the event off to their own goroutine.
type Event interface {
	event()
}

// SourceAddedEvent is emitted after a source is registered.
type SourceAddedEvent struct {
	ID      string
	Channel Channel
}

// SourceRemovedEvent is emitted after a source is removed or disposed.
type SourceRemovedEvent struct {
	ID      string
	Channel Channel
}

// SourceStatusChangedEvent is emitted for every lifecycle transition,
// including those driven by the render path (end of stream, producer
// failure).
type SourceStatusChangedEvent struct {
	ID      string
	Channel Channel
	Old     SourceStatus
	New     SourceStatus
}

// ChannelVolumeChangedEvent is emitted when a channel volume target
// changes. Volume is the new target; Ramp is the transition duration.
type ChannelVolumeChangedEvent struct {
	Channel Channel
	Volume  float32
	Ramp    time.Duration
}

// DuckingStateChangedEvent is emitted when ducking engages or fully
// releases. Channel and Preset identify the trigger that flipped the
// state; Multiplier is the new target attenuation.
type DuckingStateChangedEvent struct {
	Active     bool
	Channel    Channel
	Preset     DuckingPreset
	Multiplier float32
}

func (SourceAddedEvent) event()          {}
func (SourceRemovedEvent) event()        {}
func (SourceStatusChangedEvent) event()  {}
func (ChannelVolumeChangedEvent) event() {}
func (DuckingStateChangedEvent) event()  {}

// eventHub fans events out to an explicit subscriber list. Subscribers
// are keyed so that unsubscribing one never affects another, and the
// listener set is copied before dispatch so a handler may subscribe or
// unsubscribe reentrantly.
type eventHub struct {
	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

func newEventHub() *eventHub {
	return &eventHub{listeners: make(map[int]func(Event))}
}

// subscribe registers fn and returns its remover. The remover is
// idempotent.
func (h *eventHub) subscribe(fn func(Event)) func() {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

func (h *eventHub) emit(e Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
