package output

import (
	"go.uber.org/fx"

	"github.com/Raikerian/go-audio-mixer/internal/mixer"
)

// Module provides output-related dependencies.
var Module = fx.Module("output",
	fx.Provide(
		fx.Annotate(
			NewRegistry,
			fx.As(new(mixer.OutputOpener)),
		),
		// Sink providers with proper grouping
		fx.Annotate(
			NewNullSink,
			fx.As(new(Sink)),
			fx.ResultTags(`group:"sinks"`),
		),
		fx.Annotate(
			NewWAVSink,
			fx.As(new(Sink)),
			fx.ResultTags(`group:"sinks"`),
		),
		fx.Annotate(
			NewPortAudioSink,
			fx.As(new(Sink)),
			fx.ResultTags(`group:"sinks"`),
		),
	),
)
