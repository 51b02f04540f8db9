package mixer

import (
	"time"

	"go.uber.org/zap"
)

// channelMixer owns one gain strip per channel and renders one
// channel's contribution per call by summing its playing sources. Gains
// are rampable and read lock-free, so mixChannel runs without touching
// control-plane locks.
type channelMixer struct {
	logger *zap.Logger
	gains  [channelCount]*GainControl
}

func newChannelMixer(logger *zap.Logger, initial [channelCount]float32) *channelMixer {
	m := &channelMixer{logger: logger}
	for i := range m.gains {
		m.gains[i] = NewGainControl(initial[i])
	}
	return m
}

// setVolume ramps the channel gain toward the clamped volume.
func (m *channelMixer) setVolume(ch Channel, volume float32, ramp time.Duration, now time.Time) {
	m.gains[ch].Set(volume, ramp, now)
}

// volume returns the channel gain at now, ramp included.
func (m *channelMixer) volume(ch Channel, now time.Time) float32 {
	return m.gains[ch].ValueAt(now)
}

// mixChannel renders ch into dst: each playing source is pulled into
// scratch, scaled by its own gain and summed, then the channel gain is
// applied to the total. Sources delivering short reads contribute
// silence for the remainder of the frame. Producer errors, including
// end of stream, are handed to report and never interrupt the frame.
// Returns how many sources contributed samples.
func (m *channelMixer) mixChannel(dst, scratch []float32, ch Channel, sources []renderSource, now time.Time, report func(id string, err error)) int {
	zeroSamples(dst)
	if len(sources) == 0 {
		return 0
	}

	active := 0
	for _, rs := range sources {
		n, err := rs.src.ReadPCM(scratch)
		if n > len(scratch) {
			n = len(scratch)
		}
		if n > 0 {
			accumulate(dst[:n], scratch[:n], rs.gain.ValueAt(now))
			active++
		}
		if err != nil {
			report(rs.src.ID(), err)
		}
	}

	scaleSamples(dst, m.gains[ch].ValueAt(now))
	return active
}

func zeroSamples(dst []float32) {
	for i := range dst {
		dst[i] = 0
	}
}

// accumulate adds src scaled by gain into dst. Slices must be equal
// length.
func accumulate(dst, src []float32, gain float32) {
	for i := range dst {
		dst[i] += src[i] * gain
	}
}

func scaleSamples(dst []float32, gain float32) {
	if gain == 1 {
		return
	}
	for i := range dst {
		dst[i] *= gain
	}
}
