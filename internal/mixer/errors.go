package mixer

import "errors"

var (
	// ErrNotInitialized is returned by mutating operations invoked before
	// Initialize has completed.
	ErrNotInitialized = errors.New("mixer is not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize on a live
	// instance.
	ErrAlreadyInitialized = errors.New("mixer is already initialized")

	// ErrMixerClosed is returned by any operation after Close. A closed
	// mixer is not restartable; create a fresh instance.
	ErrMixerClosed = errors.New("mixer is closed")

	// ErrDuplicateSourceID is returned by AddSource when the id is
	// already registered, on any channel.
	ErrDuplicateSourceID = errors.New("source id already registered")

	// ErrDeviceUnavailable marks output device resolution or open
	// failures. Fatal to the mixer instance.
	ErrDeviceUnavailable = errors.New("output device unavailable")

	// ErrSourceDisposed is returned by lifecycle operations on a source
	// that has been removed or disposed.
	ErrSourceDisposed = errors.New("source is disposed")

	// ErrUnknownChannel is returned for channel values or names outside
	// the fixed channel set.
	ErrUnknownChannel = errors.New("unknown channel")

	// ErrInvalidChannelTransition is reserved for fixed-topology
	// constraints on channel moves. No move is currently rejected.
	ErrInvalidChannelTransition = errors.New("invalid channel transition")
)
