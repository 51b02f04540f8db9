package playout

import (
	"go.uber.org/fx"
)

// Module provides the playout orchestration service
var Module = fx.Module("playout",
	fx.Provide(NewService),
)
