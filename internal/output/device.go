package output

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gordonklaus/portaudio"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// PortAudioSink plays the mix on a hardware device. The device id is
// "portaudio" for the system default output or "portaudio:<name>" to
// select a device by name (exact match first, then substring).
type PortAudioSink struct {
	logger *zap.Logger
}

// NewPortAudioSink creates the hardware backend.
func NewPortAudioSink(logger *zap.Logger) *PortAudioSink {
	return &PortAudioSink{logger: logger}
}

// Name implements Sink.
func (s *PortAudioSink) Name() string { return "portaudio" }

// Open implements Sink. The stream pulls frames from the hardware
// callback; PortAudio is terminated again when the output stops.
func (s *PortAudioSink) Open(_ context.Context, arg string, src mixer.FrameSource) (mixer.Output, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	out := &paOutput{logger: s.logger, src: src}
	stream, device, err := s.openStream(arg, out.fill)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, err
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	out.stream = stream
	out.device = device
	s.logger.Info("PortAudio output started", zap.String("device", device))
	return out, nil
}

func (s *PortAudioSink) openStream(deviceName string, callback func([]float32)) (*portaudio.Stream, string, error) {
	if deviceName == "" {
		stream, err := portaudio.OpenDefaultStream(0, audio.NumChannels, float64(audio.SampleRate), audio.FrameSamples, callback)
		if err != nil {
			return nil, "", fmt.Errorf("open default output: %w", err)
		}
		return stream, "default", nil
	}

	device, err := findOutputDevice(deviceName)
	if err != nil {
		return nil, "", err
	}
	params := portaudio.StreamParameters{
		Output: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: audio.NumChannels,
			Latency:  device.DefaultLowOutputLatency,
		},
		SampleRate:      float64(audio.SampleRate),
		FramesPerBuffer: audio.FrameSamples,
	}
	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, "", fmt.Errorf("open output %q: %w", device.Name, err)
	}
	return stream, device.Name, nil
}

func findOutputDevice(name string) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}

	var partial *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxOutputChannels < audio.NumChannels {
			continue
		}
		if d.Name == name {
			return d, nil
		}
		if partial == nil && strings.Contains(strings.ToLower(d.Name), strings.ToLower(name)) {
			partial = d
		}
	}
	if partial != nil {
		return partial, nil
	}
	return nil, fmt.Errorf("no output device matches %q", name)
}

type paOutput struct {
	logger *zap.Logger
	src    mixer.FrameSource
	stream *portaudio.Stream
	device string
}

// fill runs on the PortAudio callback thread. It must not block, which
// holds because ReadFrame is lock-free; after the mixer closes it pads
// silence until the stream is stopped.
func (o *paOutput) fill(out []float32) {
	n, err := o.src.ReadFrame(out)
	if err != nil {
		n = 0
	}
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
}

func (o *paOutput) Name() string { return "portaudio:" + o.device }

func (o *paOutput) Stop(_ context.Context) error {
	var errs []error
	if err := o.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop stream: %w", err))
	}
	if err := o.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close stream: %w", err))
	}
	if err := portaudio.Terminate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		o.logger.Info("PortAudio output stopped", zap.String("device", o.device))
	}
	return errors.Join(errs...)
}
