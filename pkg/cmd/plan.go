package cmd

import (
	"context"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type planParams struct {
	fx.In

	Config *config.Config
	Fs     afero.Fs
}

// planCmd creates the plan command, a dry run of deploy that never connects
// to Snowflake.
//
// Example usage:
//
//	snowkeeper plan -e tst --last-success-build-id 4f1c2e9 --current-head 9a7d3b1 \
//	  --repository-id $REPO_ID
func planCmd(p planParams) *cli.Command {
	return &cli.Command{
		Name:  "plan",
		Usage: "Show the scripts deploy would apply",
		Description: `Resolve the change set between two revisions and print which scripts would
be applied to, or skipped in, the target environment.

Unlike deploy, plan never connects to Snowflake, so --last-success-build-id
is required.`,
		Flags: resolutionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			env, err := environment(cmd, p.Config)
			if err != nil {
				return failure.Configuration(err)
			}

			req, err := changeRequest(cmd, p.Config)
			if err != nil {
				return failure.Configuration(err)
			}

			if req.Base == "" {
				return failure.Configuration(errors.New("--last-success-build-id is required"))
			}

			resolver, err := newResolver(p.Fs, p.Config, parseDiffOptions(cmd), req.Root)
			if err != nil {
				return failure.Configuration(err)
			}

			set, err := resolver.Resolve(ctx, req)
			if err != nil {
				return err
			}

			printChangeSet(cmd.Writer, set, env)
			printPlan(cmd.Writer, set, env)
			return nil
		},
	}
}
