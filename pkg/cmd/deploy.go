package cmd

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/audit"
	"github.com/pseudomuto/snowkeeper/pkg/changeset"
	"github.com/pseudomuto/snowkeeper/pkg/config"
	"github.com/pseudomuto/snowkeeper/pkg/consts"
	"github.com/pseudomuto/snowkeeper/pkg/deploy"
	"github.com/pseudomuto/snowkeeper/pkg/executor"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/metrics"
	"github.com/pseudomuto/snowkeeper/pkg/rewrite"
	"github.com/pseudomuto/snowkeeper/pkg/scaler"
	"github.com/pseudomuto/snowkeeper/pkg/snowflake"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	deployParams struct {
		fx.In

		Config *config.Config
		Fs     afero.Fs
	}

	// deployOptions is everything a deployment needs from the command line,
	// validated.
	deployOptions struct {
		Connection     snowflake.ConnectionConfig
		Environment    string
		Request        changeset.Request
		Diff           diffOptions
		ChangeHistory  audit.Table
		BuildInfo      audit.Table
		BuildID        string
		StartTime      time.Time
		Pipeline       string
		Vars           map[string]string
		Autocommit     bool
		Bootstrap      bool
		WarehouseSizes map[string]string
		Pushgateway    string
	}
)

// deployCmd creates the deploy command.
//
// Command flags:
//   - --root-folder, -f: Root folder of the change scripts (default ".")
//   - --snowflake-account/-user/-role/-warehouse/-database: Connection settings
//   - --database-environment, -e: Target environment (required)
//   - --current-head, --last-success-build-id: Revisions to diff
//   - --repository-id, --access-token: Azure DevOps repository and credentials
//   - --account-level: Deploy account level scripts
//   - --warehouse-size: JSON map of environment to warehouse size
//
// Example usage:
//
//	# Deploy everything that changed since the last recorded build
//	snowkeeper deploy -f . -a xy12345.east-us-2.azure -u DEPLOYER -r DEPLOYER_ROLE \
//	  -w ELT -d COEDW -e dev --current-head $(git rev-parse HEAD) --repository-id $REPO_ID
func deployCmd(p deployParams) *cli.Command {
	return &cli.Command{
		Name:  "deploy",
		Usage: "Apply changed scripts to a Snowflake environment",
		Description: `Apply the change scripts that changed between two revisions to the target
environment.

Versioned scripts (V_*.sql) are applied in the folder order given by the order
file, followed by repeatable scripts (R_*.sql). With --account-level, account
scripts (A_*.sql) are applied instead, followed by the post deployment scripts
found on --branch.

Each script is rewritten for the target environment before it runs: database,
stage and warehouse names are mapped through snowkeeper.yaml and {{ var }}
tokens are replaced with --vars values. Scripts named for specific
environments, e.g. R_grants(DEV)(TST).sql, are skipped elsewhere.

Every applied script is recorded in the change history table and a build
record is written once all scripts succeed. The first failure stops the run.`,
		Flags: append(resolutionFlags(),
			&cli.StringFlag{
				Name:     "snowflake-account",
				Aliases:  []string{"a"},
				Usage:    "Snowflake account identifier (e.g. abc123.east-us-2.azure)",
				Sources:  cli.EnvVars("SNOWFLAKE_ACCOUNT"),
				Required: true,
				Config:   cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:     "snowflake-user",
				Aliases:  []string{"u"},
				Usage:    "Snowflake user (e.g. DEPLOYER)",
				Sources:  cli.EnvVars("SNOWFLAKE_USER"),
				Required: true,
				Config:   cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:     "snowflake-role",
				Aliases:  []string{"r"},
				Usage:    "Role used to run scripts (e.g. DEPLOYER_ROLE)",
				Sources:  cli.EnvVars("SNOWFLAKE_ROLE"),
				Required: true,
				Config:   cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:     "snowflake-warehouse",
				Aliases:  []string{"w"},
				Usage:    "Warehouse used to run scripts",
				Sources:  cli.EnvVars("SNOWFLAKE_WAREHOUSE"),
				Required: true,
				Config:   cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:     "snowflake-database",
				Aliases:  []string{"d"},
				Usage:    "Database scripts run against (e.g. COEDW)",
				Sources:  cli.EnvVars("SNOWFLAKE_DATABASE"),
				Required: true,
				Config:   cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:    "authenticator",
				Usage:   "Snowflake authenticator (snowflake, externalbrowser, oauth, snowflake_jwt)",
				Sources: cli.EnvVars("SNOWFLAKE_AUTHENTICATOR"),
				Value:   "snowflake",
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "Snowflake password",
				Sources: cli.EnvVars("SNOWSQL_PWD"),
				Hidden:  true,
			},
			&cli.StringFlag{
				Name:    "change-history-table",
				Aliases: []string{"c"},
				Usage:   "Change history table as [[database.]schema.]table",
				Config:  cli.StringConfig{TrimSpace: true},
			},
			&cli.StringFlag{
				Name:    "build-info-table",
				Aliases: []string{"bi"},
				Usage:   "Build information table as [[database.]schema.]table",
				Config:  cli.StringConfig{TrimSpace: true},
			},
			&cli.BoolFlag{
				Name:  "bootstrap-audit",
				Usage: "Create the audit tables when they don't exist",
				Value: true,
			},
			&cli.StringFlag{
				Name:    "build-id",
				Aliases: []string{"b"},
				Usage:   "Id of the current build (random when empty)",
				Sources: cli.EnvVars("BUILD_BUILDID"),
			},
			&cli.StringFlag{
				Name:    "build-start-time",
				Aliases: []string{"t"},
				Usage:   "Start time of the current build as yyyymmddhh24miss (now when empty)",
			},
			&cli.StringFlag{
				Name:    "pipeline-name",
				Aliases: []string{"pn"},
				Usage:   "Name of the deploying pipeline",
				Sources: cli.EnvVars("BUILD_DEFINITIONNAME"),
			},
			&cli.StringFlag{
				Name:  "vars",
				Usage: `Values for {{ var }} tokens as a JSON object (e.g. {"variable1": "value1"})`,
			},
			&cli.BoolFlag{
				Name:    "autocommit",
				Aliases: []string{"ac"},
				Usage:   "Commit every statement on its own instead of one transaction per script",
			},
			&cli.StringFlag{
				Name:  "warehouse-size",
				Usage: `Warehouse size per environment as a JSON object (e.g. {"prd": "LARGE"}), overrides warehouse_sizes`,
			},
			&cli.StringFlag{
				Name:  "pushgateway",
				Usage: "Prometheus Pushgateway URL run metrics are pushed to",
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			opts, err := parseDeployOptions(cmd, p.Config)
			if err != nil {
				return failure.Configuration(err)
			}

			summary, err := runDeploy(ctx, p, opts)
			if err != nil {
				return err
			}

			printChangeSet(cmd.Writer, summary.ChangeSet, opts.Environment)
			printSummary(cmd.Writer, summary)
			return nil
		},
	}
}

func parseDeployOptions(cmd *cli.Command, cfg *config.Config) (*deployOptions, error) {
	env, err := environment(cmd, cfg)
	if err != nil {
		return nil, err
	}

	opts := &deployOptions{
		Environment: env,
		Connection: snowflake.ConnectionConfig{
			Account:       cmd.String("snowflake-account"),
			User:          cmd.String("snowflake-user"),
			Password:      cmd.String("password"),
			Role:          cmd.String("snowflake-role"),
			Warehouse:     cmd.String("snowflake-warehouse"),
			Database:      cmd.String("snowflake-database"),
			Authenticator: cmd.String("authenticator"),
		},
		BuildID:     cmd.String("build-id"),
		Pipeline:    cmd.String("pipeline-name"),
		Autocommit:  cmd.Bool("autocommit"),
		Bootstrap:   cmd.Bool("bootstrap-audit"),
		Pushgateway: cmd.String("pushgateway"),
		StartTime:   time.Now().UTC(),
	}

	if err := opts.Connection.Validate(); err != nil {
		return nil, err
	}

	if opts.Connection.Password == "" && isPasswordAuth(opts.Connection.Authenticator) {
		return nil, errors.New("the SNOWSQL_PWD environment variable has not been defined")
	}

	if opts.Request, err = changeRequest(cmd, cfg); err != nil {
		return nil, err
	}
	opts.Diff = parseDiffOptions(cmd)

	changes, builds := audit.DefaultTables(opts.Connection.Database)
	changes.Schema, changes.Name = upper(cfg.Metadata.Schema), upper(cfg.Metadata.ChangeHistoryTable)
	builds.Schema, builds.Name = upper(cfg.Metadata.Schema), upper(cfg.Metadata.BuildInfoTable)

	if opts.ChangeHistory, err = audit.ParseTable(cmd.String("change-history-table"), changes); err != nil {
		return nil, err
	}

	if opts.BuildInfo, err = audit.ParseTable(cmd.String("build-info-table"), builds); err != nil {
		return nil, err
	}

	if opts.BuildID == "" {
		opts.BuildID = uuid.NewString()
	}

	if raw := cmd.String("build-start-time"); raw != "" {
		if opts.StartTime, err = time.Parse(consts.BuildTimeLayout, raw); err != nil {
			return nil, errors.Wrapf(err, "invalid --build-start-time %q (expected yyyymmddhh24miss)", raw)
		}
	}

	if opts.Vars, err = jsonMap(cmd, "vars"); err != nil {
		return nil, err
	}

	if opts.WarehouseSizes, err = warehouseSizes(cmd, cfg); err != nil {
		return nil, err
	}

	return opts, nil
}

func runDeploy(ctx context.Context, p deployParams, opts *deployOptions) (*deploy.Summary, error) {
	resolver, err := newResolver(p.Fs, p.Config, opts.Diff, opts.Request.Root)
	if err != nil {
		return nil, failure.Configuration(err)
	}

	client, err := snowflake.Open(ctx, opts.Connection)
	if err != nil {
		return nil, failure.Configuration(err)
	}
	defer func() { _ = client.Close() }()

	warehouses, closeAdmin, err := adminSession(ctx, p.Config, opts)
	if err != nil {
		return nil, err
	}
	defer closeAdmin()

	collector := metrics.New()
	store := audit.NewStore(opts.ChangeHistory, opts.BuildInfo)

	deployer := deploy.New(deploy.Config{
		Resolver: resolver,
		Executor: executor.New(executor.Config{
			DB:          client,
			Store:       store,
			Rewriter:    rewrite.New(p.Config, opts.Environment, opts.Vars),
			Fs:          p.Fs,
			Environment: opts.Environment,
			Database:    opts.Connection.Database,
			Autocommit:  opts.Autocommit,
			Build: executor.Build{
				ID:        opts.BuildID,
				StartTime: opts.StartTime,
				User:      opts.Connection.User,
				Pipeline:  opts.Pipeline,
			},
			Observer: collector,
		}),
		Scaler:   scaler.New(warehouses, opts.Connection.Warehouse, opts.WarehouseSizes),
		Store:    store,
		DB:       client,
		Reporter: collector,
	})

	slog.Info("Starting deployment",
		"environment", opts.Environment,
		"database", opts.Connection.Database,
		"build_id", opts.BuildID,
		"account_level", opts.Request.Mode == changeset.ModeAccount,
	)

	summary, err := deployer.Run(ctx, deploy.Options{
		Request:     opts.Request,
		Environment: opts.Environment,
		Pipeline:    opts.Pipeline,
		StartTime:   opts.StartTime,
		Bootstrap:   opts.Bootstrap,
	})

	if opts.Pushgateway != "" {
		labels := map[string]string{"environment": opts.Environment, "pipeline": opts.Pipeline}
		if pushErr := collector.Push(context.WithoutCancel(ctx), opts.Pushgateway, "snowkeeper", labels); pushErr != nil {
			slog.Warn("Failed to push metrics", "error", pushErr)
		}
	}

	return summary, err
}

// adminSession opens the connection used to resize the warehouse. It is only
// opened when the size policy covers the target environment.
func adminSession(ctx context.Context, cfg *config.Config, opts *deployOptions) (scaler.Warehouses, func(), error) {
	if _, ok := opts.WarehouseSizes[opts.Environment]; !ok {
		return nil, func() {}, nil
	}

	admin, err := snowflake.Open(ctx, opts.Connection.WithRole(cfg.AdminRole))
	if err != nil {
		return nil, nil, failure.Resize(errors.Wrapf(err, "failed to connect as %s", cfg.AdminRole))
	}

	return admin, func() { _ = admin.Close() }, nil
}

// warehouseSizes merges the --warehouse-size flag over the configured policy.
func warehouseSizes(cmd *cli.Command, cfg *config.Config) (map[string]string, error) {
	overrides, err := jsonMap(cmd, "warehouse-size")
	if err != nil {
		return nil, err
	}

	sizes := make(map[string]string, len(cfg.WarehouseSizes)+len(overrides))
	for _, m := range []map[string]string{cfg.WarehouseSizes, overrides} {
		for env, size := range m {
			env = strings.ToLower(strings.TrimSpace(env))
			if !cfg.HasEnvironment(env) {
				return nil, errors.Errorf("warehouse size given for unknown environment %q", env)
			}

			if sizes[env], err = snowflake.NormalizeSize(size); err != nil {
				return nil, err
			}
		}
	}

	return sizes, nil
}

func isPasswordAuth(authenticator string) bool {
	switch strings.ToLower(authenticator) {
	case "", "snowflake", "username_password_mfa":
		return true
	default:
		return false
	}
}

func upper(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
