package mixer

import (
	"go.uber.org/fx"
)

// Module provides the mixing engine
var Module = fx.Module("mixer",
	fx.Provide(NewService),
)
