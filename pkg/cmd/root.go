package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Commands []*cli.Command `group:"commands"`
		Version  *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}
)

// NewRoot creates the snowkeeper CLI application from the registered
// commands.
//
// Global Flags:
//   - --verbose, -v: Log at debug level
//
// The root command only configures logging; everything else is done by the
// subcommands. The caller runs the returned command:
//
//	root := NewRoot(p)
//	if err := root.Run(ctx, os.Args); err != nil {
//		os.Exit(1)
//	}
func NewRoot(p Params) *cli.Command {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	return &cli.Command{
		Name:  "snowkeeper",
		Usage: "Deploy Snowflake change scripts from a git repository",
		Description: `snowkeeper applies the change scripts that changed between two revisions
of a repository to a Snowflake environment, rewriting environment specific
names on the way and recording every applied script in an audit table.`,
		Version: p.Version.Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Log at debug level",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level := slog.LevelInfo
			if cmd.Bool("verbose") {
				level = slog.LevelDebug
			}

			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			return ctx, nil
		},
		Commands: p.Commands,
	}
}
