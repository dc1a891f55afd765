package cmd

import (
	"github.com/spf13/afero"
	"go.uber.org/fx"
)

var Module = fx.Module("cli",
	fx.Provide(
		afero.NewOsFs,
		fx.Annotate(deployCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(initCmd, fx.ResultTags(`group:"commands"`)),
		fx.Annotate(planCmd, fx.ResultTags(`group:"commands"`)),
		NewRoot,
	),
)
