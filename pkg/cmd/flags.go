package cmd

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/changeset"
	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/devops"
	"github.com/pseudomuto/snowkeeper/pkg/script"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

// resolutionFlags are shared by every command that computes a change set.
func resolutionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "root-folder",
			Aliases: []string{"f"},
			Usage:   "The root folder for the change scripts",
			Value:   ".",
			Config:  cli.StringConfig{TrimSpace: true},
		},
		&cli.StringFlag{
			Name:    "database-environment",
			Aliases: []string{"env", "e"},
			Usage:   "The environment to deploy to (e.g. dev)",
			Sources: cli.EnvVars("SNOWKEEPER_ENVIRONMENT"),
			Config:  cli.StringConfig{TrimSpace: true},
		},
		&cli.BoolFlag{
			Name:  "account-level",
			Usage: "Deploy account level scripts instead of database scripts",
		},
		&cli.StringFlag{
			Name:   "last-success-build-id",
			Usage:  "Commit of the last successful build (looked up in the build information table when empty)",
			Config: cli.StringConfig{TrimSpace: true},
		},
		&cli.StringFlag{
			Name:     "current-head",
			Usage:    "Commit being deployed",
			Required: true,
			Config:   cli.StringConfig{TrimSpace: true},
		},
		&cli.StringFlag{
			Name:    "access-token",
			Usage:   "Azure DevOps personal access token",
			Sources: cli.EnvVars("SYSTEM_ACCESSTOKEN"),
		},
		&cli.StringFlag{
			Name:     "repository-id",
			Usage:    "Azure DevOps repository id",
			Required: true,
			Config:   cli.StringConfig{TrimSpace: true},
		},
		&cli.StringFlag{
			Name:   "branch",
			Usage:  "Branch listed for post deployment scripts (account level only)",
			Value:  "main",
			Config: cli.StringConfig{TrimSpace: true},
		},
	}
}

// diffOptions locates the repository in the diff service.
type diffOptions struct {
	RepositoryID string
	AccessToken  string
}

func parseDiffOptions(cmd *cli.Command) diffOptions {
	return diffOptions{
		RepositoryID: cmd.String("repository-id"),
		AccessToken:  cmd.String("access-token"),
	}
}

// environment returns the validated target environment.
func environment(cmd *cli.Command, cfg *config.Config) (string, error) {
	env := strings.ToLower(cmd.String("database-environment"))
	if env == "" {
		return "", errors.New("--database-environment is required")
	}

	if !cfg.HasEnvironment(env) {
		return "", errors.Errorf("unknown environment %q (expected one of %s)", env, strings.Join(cfg.Environments, ", "))
	}

	return env, nil
}

// changeRequest builds the resolver request described by the flags. An
// empty Base means "look up the last successful build".
func changeRequest(cmd *cli.Command, cfg *config.Config) (changeset.Request, error) {
	root, err := filepath.Abs(cmd.String("root-folder"))
	if err != nil {
		return changeset.Request{}, errors.Wrap(err, "invalid root folder")
	}

	req := changeset.Request{
		Root:    root,
		Base:    cmd.String("last-success-build-id"),
		Target:  cmd.String("current-head"),
		Mode:    changeset.ModeDatabase,
		Subtree: cfg.Subtree,
		Branch:  cmd.String("branch"),
	}

	if cmd.Bool("account-level") {
		req.Mode = changeset.ModeAccount
		req.Subtree = cfg.AccountSubtree
		req.PostDeployment = cfg.PostDeployment
	}

	return req, nil
}

// newResolver creates a resolver backed by the Azure DevOps API.
func newResolver(fs afero.Fs, cfg *config.Config, diff diffOptions, root string) (*changeset.Resolver, error) {
	order, err := changeset.LoadOrderFile(fs, orderFilePath(root, cfg.OrderFile))
	if err != nil {
		return nil, err
	}

	return changeset.NewResolver(changeset.Config{
		Fs: fs,
		Diff: devops.NewClient(devops.Options{
			BaseURL:      cfg.DevOps.URL,
			RepositoryID: diff.RepositoryID,
			Token:        diff.AccessToken,
			APIVersion:   cfg.DevOps.APIVersion,
		}),
		Classifier:    script.NewClassifier(cfg.Environments...),
		Order:         order,
		StripSegments: cfg.OrderStripSegments,
	}), nil
}

// orderFilePath resolves a relative order file against the root folder.
func orderFilePath(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(root, path)
}

// jsonMap decodes a JSON object flag. Non string values are formatted with
// their default representation.
func jsonMap(cmd *cli.Command, name string) (map[string]string, error) {
	raw := strings.TrimSpace(cmd.String(name))
	if raw == "" {
		return nil, nil
	}

	var values map[string]any
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, errors.Wrapf(err, "--%s must be a JSON object", name)
	}

	out := make(map[string]string, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case string:
			out[k] = val
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(val)
		}
	}

	return out, nil
}
