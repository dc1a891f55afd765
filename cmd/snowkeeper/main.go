package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pseudomuto/snowkeeper/pkg/cmd"
	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

// NB: These are set by GoReleaser during a build.
var (
	version string
	commit  string
	date    string
)

func main() {
	// A missing .env is fine; values already in the environment win.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env", "err", err)
	}

	var root *cli.Command
	app := fx.New(
		fx.NopLogger,
		fx.Supply(&cmd.Version{
			Version:   version,
			Commit:    commit,
			Timestamp: date,
		}),
		config.Module,
		cmd.Module,
		fx.Populate(&root),
	)

	if err := app.Err(); err != nil {
		slog.Error("Failed to start", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := root.Run(ctx, os.Args)
	stop()

	if err != nil {
		slog.Error("Error running command", "err", err)
		os.Exit(1)
	}
}
