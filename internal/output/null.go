package output

import (
	"context"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
)

// NullSink consumes the mix at the frame cadence and discards it. It
// keeps the engine fully operational without audio hardware, which is
// what headless deployments and tests run against.
type NullSink struct {
	logger *zap.Logger
}

// NewNullSink creates the null backend.
func NewNullSink(logger *zap.Logger) *NullSink {
	return &NullSink{logger: logger}
}

// Name implements Sink.
func (s *NullSink) Name() string { return "null" }

// Open implements Sink.
func (s *NullSink) Open(_ context.Context, _ string, src mixer.FrameSource) (mixer.Output, error) {
	s.logger.Info("Null output started; frames will be discarded")
	return startPump(s.logger, s.Name(), src, nil), nil
}
