package b2b

import "go.uber.org/fx"

var Module = fx.Module("b2b.client",
	fx.Provide(New),
)
