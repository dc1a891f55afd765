package testutil

import (
	"bytes"
	"context"
	"testing"

	"github.com/urfave/cli/v3"
)

// RunCommand executes a command with test context
func RunCommand(t *testing.T, command *cli.Command, args []string) error {
	t.Helper()
	return RunCommandWithContext(context.Background(), t, command, args)
}

// RunCommandWithContext executes a command with a custom context
func RunCommandWithContext(ctx context.Context, t *testing.T, command *cli.Command, args []string) error {
	t.Helper()

	app := &cli.Command{
		Name:     "test",
		Commands: []*cli.Command{command},
	}

	// Prepend command name to args
	fullArgs := append([]string{"test", command.Name}, args...)

	return app.Run(ctx, fullArgs)
}

// RunCommandWithOutput executes a command and returns everything it wrote.
func RunCommandWithOutput(t *testing.T, command *cli.Command, args []string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	command.Writer = &out
	command.ErrWriter = &out

	err := RunCommand(t, command, args)
	return out.String(), err
}

// ParseCommandFlags parses command line flags for a command without running
// its action.
func ParseCommandFlags(t *testing.T, command *cli.Command, args []string) (*cli.Command, error) {
	t.Helper()

	cmdCopy := &cli.Command{
		Name:  command.Name,
		Flags: command.Flags,
		Action: func(context.Context, *cli.Command) error {
			return nil
		},
	}

	if err := RunCommand(t, cmdCopy, args); err != nil {
		return nil, err
	}

	return cmdCopy, nil
}
