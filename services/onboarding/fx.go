package onboarding

import "go.uber.org/fx"

var Module = fx.Module("onboarding",
	fx.Provide(
		NewService,
		NewHandler,
	),
)
