// Package sources provides the built-in PCM producers the mixer plays:
// synthesized tones and WAV clips loaded through a shared, size-bounded
// clip store.
package sources

import (
	"context"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// ToneSource synthesizes a stereo sine wave at the engine sample rate.
// A zero duration plays forever; otherwise the tone ends with io.EOF
// once the duration has been produced.
//
// The mixer serializes lifecycle calls around ReadPCM, so the source
// needs no locking of its own.
type ToneSource struct {
	id       string
	freq     float64
	duration time.Duration

	step      float64
	phase     float64
	remaining int
	infinite  bool
}

// NewToneSource returns a tone source. The frequency is validated in
// Initialize, not here, so a misconfigured tone surfaces through the
// source lifecycle like any other producer failure.
func NewToneSource(id string, freqHz float64, duration time.Duration) *ToneSource {
	return &ToneSource{id: id, freq: freqHz, duration: duration}
}

func (t *ToneSource) ID() string { return t.id }

// Initialize validates the frequency against the Nyquist limit and
// derives the per-sample phase step.
func (t *ToneSource) Initialize(_ context.Context) error {
	if t.freq <= 0 || t.freq >= float64(audio.SampleRate)/2 {
		return fmt.Errorf("tone frequency %g Hz out of range (0, %d)", t.freq, audio.SampleRate/2)
	}
	t.step = 2 * math.Pi * t.freq / float64(audio.SampleRate)
	t.infinite = t.duration <= 0
	if !t.infinite {
		t.remaining = int(t.duration.Seconds() * float64(audio.SampleRate))
	}
	return nil
}

func (t *ToneSource) ReadPCM(dst []float32) (int, error) {
	if !t.infinite && t.remaining <= 0 {
		return 0, io.EOF
	}

	frames := len(dst) / audio.NumChannels
	if !t.infinite && t.remaining < frames {
		frames = t.remaining
	}
	for i := 0; i < frames; i++ {
		v := float32(math.Sin(t.phase))
		dst[i*audio.NumChannels] = v
		dst[i*audio.NumChannels+1] = v
		t.phase += t.step
	}
	if t.phase > 2*math.Pi {
		t.phase = math.Mod(t.phase, 2*math.Pi)
	}
	if !t.infinite {
		t.remaining -= frames
	}
	return frames * audio.NumChannels, nil
}

func (t *ToneSource) Close() error { return nil }

// Metadata implements mixer.MetadataProvider.
func (t *ToneSource) Metadata() map[string]string {
	return map[string]string{
		"kind":         "tone",
		"frequency_hz": strconv.FormatFloat(t.freq, 'f', -1, 64),
	}
}
