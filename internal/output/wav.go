package output

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// WAVSink records the mix to a WAV file at the frame cadence. Device
// ids look like "wav:/path/to/out.wav".
type WAVSink struct {
	logger *zap.Logger
}

// NewWAVSink creates the wav backend.
func NewWAVSink(logger *zap.Logger) *WAVSink {
	return &WAVSink{logger: logger}
}

// Name implements Sink.
func (s *WAVSink) Name() string { return "wav" }

// Open implements Sink.
func (s *WAVSink) Open(_ context.Context, arg string, src mixer.FrameSource) (mixer.Output, error) {
	if arg == "" {
		return nil, errors.New("wav output requires a file path, e.g. \"wav:out.wav\"")
	}

	f, err := os.Create(arg)
	if err != nil {
		return nil, fmt.Errorf("create wav file: %w", err)
	}
	w, err := audio.NewWriter(f, audio.SampleRate, audio.NumChannels)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("write wav header: %w", err)
	}

	s.logger.Info("Recording mix to WAV file", zap.String("path", arg))
	p := startPump(s.logger, s.Name(), src, w.WriteSamples)
	return &wavOutput{pump: p, logger: s.logger, path: arg, writer: w, file: f}, nil
}

// wavOutput finalizes the RIFF header once the pump has drained.
type wavOutput struct {
	*pump
	logger *zap.Logger
	path   string
	writer *audio.Writer
	file   *os.File
}

func (o *wavOutput) Stop(ctx context.Context) error {
	pumpErr := o.pump.Stop(ctx)

	var errs []error
	if pumpErr != nil {
		errs = append(errs, pumpErr)
	}
	if err := o.writer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalize wav header: %w", err))
	}
	if err := o.file.Close(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		o.logger.Info("WAV recording finished", zap.String("path", o.path))
	}
	return errors.Join(errs...)
}
