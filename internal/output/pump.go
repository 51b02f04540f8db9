package output

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
	"github.com/Raikerian/go-audio-mixer/pkg/audio"
)

// pump drives a clockless backend: it pulls one frame per frame
// duration and hands it to consume, standing in for the hardware
// callback a real device provides. It implements mixer.Output.
type pump struct {
	logger  *zap.Logger
	name    string
	src     mixer.FrameSource
	consume func([]float32) error

	stop chan struct{}
	done chan struct{}
}

// startPump begins pulling frames. consume may be nil to discard them.
func startPump(logger *zap.Logger, name string, src mixer.FrameSource, consume func([]float32) error) *pump {
	p := &pump{
		logger:  logger,
		name:    name,
		src:     src,
		consume: consume,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *pump) run() {
	defer close(p.done)

	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	buf := make([]float32, audio.FrameLen)
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			n, err := p.src.ReadFrame(buf)
			if err != nil {
				if !errors.Is(err, io.EOF) {
					p.logger.Warn("Frame pull failed", zap.String("output", p.name), zap.Error(err))
				}
				return
			}
			if p.consume == nil {
				continue
			}
			if err := p.consume(buf[:n]); err != nil {
				p.logger.Error("Output write failed", zap.String("output", p.name), zap.Error(err))
				return
			}
		}
	}
}

func (p *pump) Name() string { return p.name }

// Stop ends the pump and waits for the last frame to finish, bounded
// by ctx.
func (p *pump) Stop(ctx context.Context) error {
	close(p.stop)
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
