package cmd

import (
	"context"
	"fmt"

	"github.com/pseudomuto/snowkeeper/pkg/project"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type initParams struct {
	fx.In

	Fs afero.Fs
}

// initCmd creates the init command for scaffolding a snowkeeper project.
//
// Example usage:
//
//	# Initialize the current directory
//	snowkeeper init
//
//	# Initialize another directory with a production warehouse size
//	snowkeeper init --dir ./edw --warehouse-size '{"prd": "LARGE"}'
func initCmd(p initParams) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize a new snowkeeper project",
		Description: `Create snowkeeper.yaml, order_file.txt and the script folders in the
project directory.

Existing files are never overwritten, so init can be run again safely.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "the project directory",
				Value:   ".",
				Config:  cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:  "warehouse-size",
				Usage: `Warehouse size per environment as a JSON object (e.g. {"prd": "LARGE"})`,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			sizes, err := jsonMap(cmd, "warehouse-size")
			if err != nil {
				return err
			}

			proj := project.New(p.Fs, cmd.String("dir"))
			created, err := proj.Initialize(project.InitOptions{WarehouseSizes: sizes})
			if err != nil {
				return err
			}

			if len(created) == 0 {
				fmt.Fprintf(cmd.Writer, "Project in %s is already initialized\n", proj.Root())
				return nil
			}

			for _, path := range created {
				fmt.Fprintf(cmd.Writer, "%s %s\n", green("created"), path)
			}

			fmt.Fprintf(cmd.Writer, "Initialized snowkeeper project in %s\n", proj.Root())
			return nil
		},
	}
}
