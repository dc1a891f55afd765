// Package deploy runs a complete deployment: resolve the change set, size
// the warehouse, apply the scripts and record the build.
//
// The warehouse resize is a scoped acquisition. Once Acquire succeeds the
// original size is restored on every exit path, including cancellation and
// script failures.
package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/snowkeeper/pkg/audit"
	"github.com/pseudomuto/snowkeeper/pkg/changeset"
	"github.com/pseudomuto/snowkeeper/pkg/executor"
	"github.com/pseudomuto/snowkeeper/pkg/failure"
	"github.com/pseudomuto/snowkeeper/pkg/scaler"
	"github.com/pseudomuto/snowkeeper/pkg/script"
)

type (
	// Resolver computes change sets.
	Resolver interface {
		Resolve(context.Context, changeset.Request) (*changeset.ChangeSet, error)
	}

	// Executor applies scripts.
	Executor interface {
		Execute(context.Context, []*script.Script) ([]*executor.ExecutionResult, error)
	}

	// Scaler sizes the warehouse for the run.
	Scaler interface {
		Acquire(ctx context.Context, environment string) (*scaler.Lease, error)
	}

	// AuditDB is the session used for audit bookkeeping outside script
	// execution.
	AuditDB interface {
		audit.Execer
		audit.Querier
	}

	// Reporter receives run level events. Optional.
	Reporter interface {
		Resize(outcome string)
		Finish(environment string, err error)
	}

	// Config holds the collaborators of a Deployer.
	Config struct {
		Resolver Resolver
		Executor Executor
		Scaler   Scaler
		Store    *audit.Store
		DB       AuditDB
		Reporter Reporter
	}

	// Options describes one run.
	Options struct {
		// Request is passed to the resolver. An empty Base is replaced by the
		// last successful build of Pipeline.
		Request changeset.Request

		Environment string
		Pipeline    string
		StartTime   time.Time

		// Bootstrap creates the audit tables before anything else.
		Bootstrap bool
	}

	// Summary describes a finished run.
	Summary struct {
		Base      string
		ChangeSet *changeset.ChangeSet
		Results   []*executor.ExecutionResult
		Resize    scaler.Outcome
		Applied   int
		Skipped   int
	}

	// Deployer runs deployments.
	Deployer struct {
		resolver Resolver
		executor Executor
		scaler   Scaler
		store    *audit.Store
		db       AuditDB
		reporter Reporter
	}
)

// New creates a Deployer.
func New(cfg Config) *Deployer {
	return &Deployer{
		resolver: cfg.Resolver,
		executor: cfg.Executor,
		scaler:   cfg.Scaler,
		store:    cfg.Store,
		db:       cfg.DB,
		reporter: cfg.Reporter,
	}
}

// Run performs a deployment. The Summary is returned even when the run fails
// part way, so callers can report what was applied.
func (d *Deployer) Run(ctx context.Context, opts Options) (summary *Summary, err error) {
	summary = &Summary{}
	if d.reporter != nil {
		defer func() { d.reporter.Finish(opts.Environment, err) }()
	}

	if opts.Bootstrap {
		if err := d.store.Bootstrap(ctx, d.db); err != nil {
			return summary, failure.Configuration(errors.Wrap(err, "failed to create audit tables"))
		}
	}

	req := opts.Request
	if req.Base == "" {
		if req.Base, err = d.lastBuild(ctx, opts.Pipeline); err != nil {
			return summary, err
		}
	}
	summary.Base = req.Base

	slog.Info("Resolving change set", "base", req.Base, "target", req.Target, "root", req.Root)
	set, err := d.resolver.Resolve(ctx, req)
	if err != nil {
		return summary, failure.Resolution(err)
	}
	summary.ChangeSet = set

	if set.Empty() {
		slog.Info("No change scripts selected since the last successful build")
		return summary, nil
	}

	err = d.withWarehouse(ctx, opts.Environment, summary, func() error {
		results, execErr := d.executor.Execute(ctx, set.Scripts())
		summary.Results = results
		summary.Applied, summary.Skipped = executor.Counts(results)
		return execErr
	})
	if err != nil {
		return summary, err
	}

	err = d.store.RecordBuild(ctx, d.db, audit.BuildRecord{
		Revision:  req.Target,
		Pipeline:  opts.Pipeline,
		StartTime: opts.StartTime,
		Scripts:   names(set.Versioned, set.Repeatable.Scripts()),
	})
	if err != nil {
		return summary, failure.Application("", err)
	}

	slog.Info("Deployment complete", "applied", summary.Applied, "skipped", summary.Skipped)
	return summary, nil
}

// withWarehouse runs fn with the warehouse sized for environment and always
// restores it afterwards. A restore failure is returned only when fn
// succeeded; otherwise it is logged.
func (d *Deployer) withWarehouse(ctx context.Context, environment string, summary *Summary, fn func() error) (err error) {
	if d.scaler == nil {
		return fn()
	}

	lease, err := d.scaler.Acquire(ctx, environment)
	if err != nil {
		return err
	}

	summary.Resize = lease.Outcome
	if d.reporter != nil {
		d.reporter.Resize(string(lease.Outcome))
	}

	defer func() {
		// the run may have been cancelled; the revert must still go out
		relErr := lease.Release(context.WithoutCancel(ctx))
		if relErr == nil {
			return
		}

		if err == nil {
			err = relErr
			return
		}

		slog.Error("Failed to restore warehouse size", "error", relErr)
	}()

	return fn()
}

func (d *Deployer) lastBuild(ctx context.Context, pipeline string) (string, error) {
	base, err := d.store.LastSuccessfulBuild(ctx, d.db, pipeline)
	if errors.Is(err, audit.ErrNoBuild) {
		return "", failure.Configuration(errors.Errorf(
			"no base revision given and no successful build recorded in %s for pipeline %q",
			d.store.BuildInformation(), pipeline,
		))
	}

	if err != nil {
		return "", failure.Resolution(err)
	}

	slog.Info("Using last successful build as base revision", "base", base, "pipeline", pipeline)
	return base, nil
}

// names lists the script names of the given groups in order.
func names(groups ...[]*script.Script) []string {
	var out []string
	for _, scripts := range groups {
		for _, s := range scripts {
			out = append(out, s.Name)
		}
	}

	return out
}
