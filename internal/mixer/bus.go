package mixer

import (
	"context"
	"errors"
	"io"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// FrameSource is the pull surface output sinks consume: one call fills
// one frame of interleaved stereo float32 PCM. The stream is infinite
// while the mixer runs (silence when nothing plays) and ends with
// io.EOF once the mixer is closed. ReadFrame is single-consumer; the
// active output sink is its only caller.
type FrameSource interface {
	ReadFrame(dst []float32) (int, error)
}

// Output is a running consumer of the mixed stream.
type Output interface {
	Name() string
	Stop(ctx context.Context) error
}

// OutputOpener resolves an output device id and starts delivering the
// source to it. Unknown or failing devices report ErrDeviceUnavailable.
type OutputOpener interface {
	OpenOutput(ctx context.Context, deviceID string, src FrameSource) (Output, error)
}

// sourceReport carries a producer error from the render path to the
// control plane. End of stream travels as io.EOF.
type sourceReport struct {
	id  string
	err error
}

// mixBus renders the final mix: per-channel sums scaled by channel
// gain, the ducking multiplier on low-priority channels, master gain,
// then a hard clamp to [-1, 1]. The render path allocates nothing and
// takes no locks; all shared state is read through atomics.
type mixBus struct {
	logger *zap.Logger
	reg    *sourceRegistry
	mix    *channelMixer
	duck   DuckingController
	master *GainControl

	chanBuf []float32
	srcBuf  []float32

	closed atomic.Bool

	frames   atomic.Uint64
	srcErrs  atomic.Uint64
	peakBits atomic.Uint32
	rmsBits  atomic.Uint32

	// reports is drained by the control plane. Sends never block: a
	// dropped report is retried naturally because a finished or failed
	// producer keeps returning its error on every subsequent pull.
	reports chan sourceReport
}

func newMixBus(logger *zap.Logger, reg *sourceRegistry, mix *channelMixer, duck DuckingController, master *GainControl) *mixBus {
	return &mixBus{
		logger:  logger,
		reg:     reg,
		mix:     mix,
		duck:    duck,
		master:  master,
		chanBuf: make([]float32, audio.FrameLen),
		srcBuf:  make([]float32, audio.FrameLen),
		reports: make(chan sourceReport, 64),
	}
}

// ReadFrame implements FrameSource.
func (b *mixBus) ReadFrame(dst []float32) (int, error) {
	if b.closed.Load() {
		return 0, io.EOF
	}

	n := len(dst)
	if n > audio.FrameLen {
		n = audio.FrameLen
	}
	out := dst[:n]
	zeroSamples(out)

	now := time.Now()
	plan := b.reg.currentPlan()
	duckMult := b.duck.MultiplierAt(now)

	for _, ch := range Channels() {
		sources := plan.byChannel[ch]
		if len(sources) == 0 {
			continue
		}
		b.mix.mixChannel(b.chanBuf[:n], b.srcBuf[:n], ch, sources, now, b.report)
		gain := float32(1)
		if !ch.HighPriority() {
			gain = duckMult
		}
		accumulate(out, b.chanBuf[:n], gain)
	}

	masterGain := b.master.ValueAt(now)
	var peak float32
	var sumSquares float64
	for i := range out {
		s := audio.ClampSample(out[i] * masterGain)
		out[i] = s
		if s < 0 {
			s = -s
		}
		if s > peak {
			peak = s
		}
		sumSquares += float64(s) * float64(s)
	}

	b.frames.Add(1)
	b.peakBits.Store(math.Float32bits(peak))
	if n > 0 {
		b.rmsBits.Store(math.Float32bits(float32(math.Sqrt(sumSquares / float64(n)))))
	}
	return n, nil
}

// report hands a producer error to the control plane without blocking
// the render path.
func (b *mixBus) report(id string, err error) {
	if !errors.Is(err, io.EOF) {
		b.srcErrs.Add(1)
	}
	select {
	case b.reports <- sourceReport{id: id, err: err}:
	default:
	}
}

// close makes every subsequent ReadFrame return io.EOF. The stream is
// not restartable.
func (b *mixBus) close() {
	b.closed.Store(true)
}

func (b *mixBus) stats() Stats {
	return Stats{
		FramesRendered: b.frames.Load(),
		SourceErrors:   b.srcErrs.Load(),
		ActiveSources:  b.reg.playingCount(),
		Peak:           math.Float32frombits(b.peakBits.Load()),
		RMS:            math.Float32frombits(b.rmsBits.Load()),
	}
}
