package mixer

import (
	"fmt"
	"strings"
	"time"
)

// Channel identifies one of the fixed mixer channels. The set is closed:
// sources move between channels, but channels are never created or
// destroyed at runtime.
type Channel int

const (
	// ChannelMain carries regular program material (music, beds). It is
	// the only low-priority channel and the one attenuated by ducking.
	ChannelMain Channel = iota
	// ChannelVoice carries announcements and live speech.
	ChannelVoice
	// ChannelAlert carries emergency and operational alerts.
	ChannelAlert

	channelCount = 3
)

// Channels returns all mixer channels in render order.
func Channels() [channelCount]Channel {
	return [channelCount]Channel{ChannelMain, ChannelVoice, ChannelAlert}
}

// HighPriority reports whether activity on the channel is allowed to
// duck low-priority program material.
func (c Channel) HighPriority() bool {
	return c == ChannelVoice || c == ChannelAlert
}

// Valid reports whether c names an existing channel.
func (c Channel) Valid() bool {
	return c >= ChannelMain && c < channelCount
}

func (c Channel) String() string {
	switch c {
	case ChannelMain:
		return "main"
	case ChannelVoice:
		return "voice"
	case ChannelAlert:
		return "alert"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// ParseChannel maps a configuration name to a Channel.
func ParseChannel(name string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "main":
		return ChannelMain, nil
	case "voice":
		return ChannelVoice, nil
	case "alert":
		return ChannelAlert, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrUnknownChannel, name)
	}
}

// SourceStatus is the lifecycle state of a registered source.
type SourceStatus int

const (
	// StatusInitializing is the state of a freshly added source whose
	// producer has not been prepared yet.
	StatusInitializing SourceStatus = iota
	// StatusReady means the producer is prepared and can start playing.
	StatusReady
	// StatusPlaying means the source is being pulled by the render path.
	StatusPlaying
	// StatusPaused means playback is suspended; position is retained.
	StatusPaused
	// StatusStopped is terminal apart from disposal.
	StatusStopped
	// StatusErrored marks a source whose producer failed. Terminal apart
	// from disposal.
	StatusErrored
)

func (s SourceStatus) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusStopped:
		return "stopped"
	case StatusErrored:
		return "errored"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// terminal reports whether no further lifecycle operation except
// disposal applies.
func (s SourceStatus) terminal() bool {
	return s == StatusStopped || s == StatusErrored
}

// DuckingPreset describes one attenuation profile: how fast program
// material drops when a trigger starts, how far it drops, and how fast
// it recovers when the trigger ends.
type DuckingPreset struct {
	Name    string
	Attack  time.Duration
	Release time.Duration
	// Level is the gain multiplier applied to low-priority channels
	// while the trigger is active, in [0, 1].
	Level float32
}

// Built-in ducking presets. PresetCustom carries defaults only; its
// live level is owned by the controller and adjusted via SetDuckLevel.
var (
	PresetDJMode     = DuckingPreset{Name: "djmode", Attack: 50 * time.Millisecond, Release: 2000 * time.Millisecond, Level: 0.2}
	PresetBackground = DuckingPreset{Name: "background", Attack: 300 * time.Millisecond, Release: 1200 * time.Millisecond, Level: 0.4}
	PresetEmergency  = DuckingPreset{Name: "emergency", Attack: 0, Release: 500 * time.Millisecond, Level: 0}
	PresetMusic      = DuckingPreset{Name: "music", Attack: 500 * time.Millisecond, Release: 1500 * time.Millisecond, Level: 0.5}
	PresetCustom     = DuckingPreset{Name: "custom", Attack: 250 * time.Millisecond, Release: 1000 * time.Millisecond, Level: 0.5}
)

// DuckingState is a point-in-time snapshot of the ducking controller.
type DuckingState struct {
	// Active is true while at least one trigger is held.
	Active bool
	// Multiplier is the attenuation currently applied to low-priority
	// channels, including any ramp in progress. 1 means no attenuation.
	Multiplier float32
	// Triggers maps each triggering channel to the preset it activated.
	Triggers map[Channel]DuckingPreset
}

// SourceInfo is a point-in-time snapshot of one registered source.
type SourceInfo struct {
	ID       string
	Channel  Channel
	Status   SourceStatus
	Volume   float32
	Metadata map[string]string
}

// Stats are cumulative render-path counters. Peak and RMS describe the
// most recently rendered frame after master gain and clamping.
type Stats struct {
	FramesRendered uint64
	SourceErrors   uint64
	ActiveSources  int
	Peak           float32
	RMS            float32
}
