// Package output delivers the mixed stream to an output backend: a
// PortAudio device, a WAV file, or a discarding null sink. Backends
// are selected by device id at mixer initialization.
package output

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
)

// Sink is one output backend. Open starts delivering src and returns
// the running output; arg carries the backend-specific remainder of
// the device id ("wav:out.wav" opens the wav backend with "out.wav").
type Sink interface {
	Name() string
	Open(ctx context.Context, arg string, src mixer.FrameSource) (mixer.Output, error)
}

// RegistryParams holds dependencies for NewRegistry.
type RegistryParams struct {
	fx.In
	Logger *zap.Logger
	Sinks  []Sink `group:"sinks"`
}

// Registry resolves device ids of the form "backend" or "backend:arg"
// to registered sinks. It implements mixer.OutputOpener.
type Registry struct {
	logger *zap.Logger
	sinks  map[string]Sink
}

// NewRegistry indexes the provided sinks by name.
func NewRegistry(params RegistryParams) *Registry {
	sinks := make(map[string]Sink, len(params.Sinks))
	for _, s := range params.Sinks {
		sinks[s.Name()] = s
	}
	return &Registry{logger: params.Logger, sinks: sinks}
}

// OpenOutput implements mixer.OutputOpener. Every failure to resolve
// or open a device reports mixer.ErrDeviceUnavailable.
func (r *Registry) OpenOutput(ctx context.Context, deviceID string, src mixer.FrameSource) (mixer.Output, error) {
	backend, arg, _ := strings.Cut(deviceID, ":")
	sink, ok := r.sinks[backend]
	if !ok {
		return nil, fmt.Errorf("%w: unknown backend %q", mixer.ErrDeviceUnavailable, backend)
	}

	out, err := sink.Open(ctx, arg, src)
	if err != nil {
		return nil, errors.Join(mixer.ErrDeviceUnavailable, err)
	}

	r.logger.Info("Output opened",
		zap.String("device", deviceID),
		zap.String("backend", backend))
	return out, nil
}
